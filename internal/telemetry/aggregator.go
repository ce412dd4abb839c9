package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
)

// Bucket aggregates unit outcomes for one family, tone or CTA.
type Bucket struct {
	Key            string  `json:"key"`
	Emitted        int64   `json:"emitted"`
	Accepted       int64   `json:"accepted"`
	Repaired       int64   `json:"repaired"`
	Rejected       int64   `json:"rejected"`
	Duplicate      int64   `json:"duplicate"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	AvgComposite   float64 `json:"avg_composite"`
	MinComposite   float64 `json:"min_composite"`
	MaxComposite   float64 `json:"max_composite"`
}

// Snapshot is the aggregated view served by the telemetry API.
type Snapshot struct {
	Runs            int              `json:"runs"`
	UnitsEmitted    int64            `json:"units_emitted"`
	TasksDispatched int64            `json:"tasks_dispatched"`
	AvgSimilarity   float64          `json:"avg_similarity"`
	ByFamily        []Bucket         `json:"by_family"`
	ByTone          []Bucket         `json:"by_tone"`
	ByCTA           []Bucket         `json:"by_cta"`
	Reasons         map[string]int64 `json:"reasons"`
	TasksByKind     map[string]int64 `json:"tasks_by_kind"`
	TasksByChannel  map[string]int64 `json:"tasks_by_channel"`
	CapturedAt      time.Time        `json:"captured_at"`
}

type bucket struct {
	emitted, accepted, repaired, rejected, duplicate int64
	sum, min, max                                    float64
}

func (b *bucket) add(e Event) {
	if b.emitted == 0 || e.Composite < b.min {
		b.min = e.Composite
	}
	if b.emitted == 0 || e.Composite > b.max {
		b.max = e.Composite
	}
	b.emitted++
	b.sum += e.Composite
	switch content.Status(e.Status) {
	case content.StatusAccepted:
		b.accepted++
		if e.Attempts > 0 {
			b.repaired++
		}
	case content.StatusRejected:
		b.rejected++
	case content.StatusDuplicate:
		b.duplicate++
	}
}

func (b *bucket) export(key string) Bucket {
	out := Bucket{
		Key:          key,
		Emitted:      b.emitted,
		Accepted:     b.accepted,
		Repaired:     b.repaired,
		Rejected:     b.rejected,
		Duplicate:    b.duplicate,
		MinComposite: b.min,
		MaxComposite: b.max,
	}
	if b.emitted > 0 {
		out.AcceptanceRate = round(float64(b.accepted) / float64(b.emitted))
		out.AvgComposite = round(b.sum / float64(b.emitted))
	}
	return out
}

// Aggregator folds telemetry events into per-family, per-tone and per-CTA
// statistics. It is safe for concurrent use and doubles as a Sink.
type Aggregator struct {
	mu             sync.RWMutex
	runs           map[string]struct{}
	units          int64
	tasks          int64
	similaritySum  float64
	families       map[string]*bucket
	tones          map[string]*bucket
	ctas           map[string]*bucket
	reasons        map[string]int64
	tasksByKind    map[string]int64
	tasksByChannel map[string]int64
	now            func() time.Time
	logger         *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		runs:           make(map[string]struct{}),
		families:       make(map[string]*bucket),
		tones:          make(map[string]*bucket),
		ctas:           make(map[string]*bucket),
		reasons:        make(map[string]int64),
		tasksByKind:    make(map[string]int64),
		tasksByChannel: make(map[string]int64),
		now:            time.Now,
		logger:         slog.Default().With("component", "telemetry-aggregator"),
	}
}

// Record folds one event into the aggregates.
func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e.RunID != "" {
		a.runs[e.RunID] = struct{}{}
	}
	switch e.Type {
	case EventUnitEmitted:
		a.units++
		a.similaritySum += e.Similarity
		bucketFor(a.families, e.Family).add(e)
		bucketFor(a.tones, e.Tone).add(e)
		bucketFor(a.ctas, e.CTAID).add(e)
		if e.Reason != "" {
			a.reasons[e.Reason]++
		}
	case EventTaskDispatched:
		a.tasks++
		a.tasksByKind[e.TaskKind]++
		if e.Channel != "" {
			a.tasksByChannel[e.Channel]++
		}
	default:
		a.logger.Warn("unknown telemetry event type", "type", e.Type)
	}
}

func (a *Aggregator) Track(e Event) { a.Record(e) }
func (a *Aggregator) Close() error  { return nil }

// Stats returns a consistent snapshot of the aggregates.
func (a *Aggregator) Stats() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Snapshot{
		Runs:            len(a.runs),
		UnitsEmitted:    a.units,
		TasksDispatched: a.tasks,
		ByFamily:        exportBuckets(a.families),
		ByTone:          exportBuckets(a.tones),
		ByCTA:           exportBuckets(a.ctas),
		Reasons:         copyCounts(a.reasons),
		TasksByKind:     copyCounts(a.tasksByKind),
		TasksByChannel:  copyCounts(a.tasksByChannel),
		CapturedAt:      a.now().UTC(),
	}
	if a.units > 0 {
		s.AvgSimilarity = round(a.similaritySum / float64(a.units))
	}
	return s
}

// HandleMessage returns a Kafka handler feeding agg. Undecodable messages are
// logged and acknowledged so they do not block the partition.
func HandleMessage(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		e, err := kafka.DecodeJSON[Event](msg.Value)
		if err != nil {
			agg.logger.Error("failed to decode telemetry event", "key", string(msg.Key), "error", err)
			return nil
		}
		if e.Type == "" {
			e.Type = EventType(msg.Type)
		}
		agg.Record(e)
		return nil
	}
}

// Replay reads JSON-lines events, as written by FileSink, into agg and
// returns how many were recorded.
func Replay(r io.Reader, agg *Aggregator) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return n, fmt.Errorf("decoding telemetry line %d: %w", n+1, err)
		}
		agg.Record(e)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading telemetry: %w", err)
	}
	return n, nil
}

func bucketFor(m map[string]*bucket, key string) *bucket {
	if key == "" {
		key = "unknown"
	}
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	return b
}

func exportBuckets(m map[string]*bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for k, b := range m {
		out = append(out, b.export(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Emitted != out[j].Emitted {
			return out[i].Emitted > out[j].Emitted
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
