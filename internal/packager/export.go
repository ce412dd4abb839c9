package packager

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
)

// Export file names, one JSON record per line.
const (
	CanvaTasksFile      = "canva_tasks.jsonl"
	IncompleteTasksFile = "incomplete_tasks.jsonl"
	PublishQueueFile    = "publish_queue.jsonl"
)

// WriteExport writes the render tasks, incomplete tasks and publish queue of
// b into dir. Each file is written to a temporary name and renamed into
// place.
func WriteExport(dir string, b content.PackageBatch) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	var ready, incomplete []content.CanvaTask
	for _, t := range b.CanvaTasks {
		if t.Incomplete {
			incomplete = append(incomplete, t)
			continue
		}
		ready = append(ready, t)
	}
	if err := writeJSONL(filepath.Join(dir, CanvaTasksFile), ready); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, IncompleteTasksFile), incomplete); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(dir, PublishQueueFile), b.PublishQueue)
}

func writeJSONL[T any](path string, records []T) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Publisher sends a batch of keyed events to one topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Dispatcher hands packaged tasks to the template filler and the
// distribution layer over their queues.
type Dispatcher struct {
	render  Publisher
	publish Publisher
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher writing render tasks to render and
// publish tasks to publish.
func NewDispatcher(render, publish Publisher, retry resilience.RetryConfig) *Dispatcher {
	return &Dispatcher{
		render:  render,
		publish: publish,
		retry:   retry,
		logger:  slog.Default().With("component", "dispatcher"),
	}
}

// Dispatch publishes every complete render task and every publish task of
// b, keyed by unit id. Incomplete render tasks are never sent.
func (d *Dispatcher) Dispatch(ctx context.Context, b content.PackageBatch) error {
	var renders []kafka.Event
	for _, t := range b.CanvaTasks {
		if !t.Incomplete {
			renders = append(renders, kafka.Event{Key: t.UnitID, Value: t})
		}
	}
	queue := make([]kafka.Event, len(b.PublishQueue))
	for i, t := range b.PublishQueue {
		queue[i] = kafka.Event{Key: t.UnitID, Value: t}
	}

	if len(renders) > 0 {
		err := resilience.Retry(ctx, "dispatch-render-tasks", d.retry, func() error {
			return d.render.PublishBatch(ctx, renders)
		})
		if err != nil {
			return fmt.Errorf("dispatching render tasks: %w", err)
		}
	}
	if len(queue) > 0 {
		err := resilience.Retry(ctx, "dispatch-publish-queue", d.retry, func() error {
			return d.publish.PublishBatch(ctx, queue)
		})
		if err != nil {
			return fmt.Errorf("dispatching publish queue: %w", err)
		}
	}
	d.logger.Info("tasks dispatched",
		"run_id", b.Run.RunID,
		"render_tasks", len(renders),
		"publish_tasks", len(queue),
	)
	return nil
}
