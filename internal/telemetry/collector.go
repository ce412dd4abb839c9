package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
)

// Publisher writes a batch of events to the telemetry topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// BatchCollector buffers events and publishes them to Kafka when the buffer
// reaches batchSize or every flushInterval. Publishing goes through a circuit
// breaker. A failed batch goes back to the front of the buffer, which holds
// at most three batches; the oldest events beyond that are dropped.
type BatchCollector struct {
	producer      Publisher
	breaker       *resilience.CircuitBreaker
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []kafka.Event

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	sent     atomic.Int64
	dropped  atomic.Int64
}

// NewBatchCollector creates a collector. Zero sizes fall back to 100 events
// and five seconds; a nil breaker gets the default thresholds.
func NewBatchCollector(producer Publisher, breaker *resilience.CircuitBreaker, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("telemetry-kafka", resilience.CircuitBreakerConfig{})
	}
	return &BatchCollector{
		producer:      producer,
		breaker:       breaker,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "telemetry-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It runs until ctx is cancelled or Close is
// called, then flushes once more with a short deadline. Only the first call
// has an effect.
func (bc *BatchCollector) Start(ctx context.Context) {
	if !bc.started.CompareAndSwap(false, true) {
		return
	}
	go bc.run(ctx)
	bc.logger.Info("telemetry collector started", "batch_size", bc.batchSize, "flush_interval", bc.flushInterval)
}

func (bc *BatchCollector) run(ctx context.Context) {
	defer close(bc.done)
	ticker := time.NewTicker(bc.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-bc.kick:
		case <-ctx.Done():
			bc.drain()
			return
		case <-bc.stop:
			bc.drain()
			return
		}
		bc.flush(ctx)
	}
}

// Track buffers an event keyed by its run id, so one run's events stay on
// one partition.
func (bc *BatchCollector) Track(e Event) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: e.RunID, Type: string(e.Type), Value: e})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()
	if full {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

// Close stops the flush loop and waits for the final flush.
func (bc *BatchCollector) Close() error {
	bc.stopOnce.Do(func() { close(bc.stop) })
	if bc.started.Load() {
		<-bc.done
	}
	return nil
}

// BufferLen returns the number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Stats returns the number of events published and dropped.
func (bc *BatchCollector) Stats() (sent, dropped int64) {
	return bc.sent.Load(), bc.dropped.Load()
}

func (bc *BatchCollector) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bc.flush(ctx)
	if n := bc.BufferLen(); n > 0 {
		bc.logger.Warn("telemetry events left unpublished", "count", n)
	}
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	batch := bc.buffer
	if len(batch) == 0 {
		bc.mu.Unlock()
		return
	}
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	err := bc.breaker.Execute(func() error { return bc.producer.PublishBatch(ctx, batch) })
	if err != nil {
		bc.logger.Error("telemetry flush failed", "batch_size", len(batch), "error", err)
		bc.requeue(batch)
		return
	}
	bc.sent.Add(int64(len(batch)))
	bc.logger.Debug("telemetry batch flushed", "events", len(batch))
}

// requeue puts a failed batch ahead of events tracked since, trimming the
// oldest events beyond the buffer limit.
func (bc *BatchCollector) requeue(batch []kafka.Event) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.buffer = append(batch, bc.buffer...)
	if over := len(bc.buffer) - 3*bc.batchSize; over > 0 {
		bc.buffer = bc.buffer[over:]
		bc.dropped.Add(int64(over))
		bc.logger.Warn("telemetry buffer full, oldest events dropped", "dropped", over)
	}
}
