package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/packager"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/runstate"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/telemetry"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
)

// app holds the runner and everything that must be closed after a command.
type app struct {
	runner  *pipeline.Runner
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// newApp wires the runner from cfg: the run store, the optional Postgres run
// registry, the telemetry sink, the optional task dispatcher and the metrics
// server.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var opts []pipeline.Option
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		a.onClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		})
		opts = append(opts, pipeline.WithMetrics(m))
	}

	store, err := newStore(a, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Registry {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting run registry: %w", err)
		}
		a.onClose(db.Close)
		reg := runstate.NewRegistry(db)
		if err := reg.Migrate(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithRegistry(reg))
	}

	sink, err := newSink(ctx, a, cfg, m)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithTelemetry(sink))

	if cfg.Telemetry.Export {
		render := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RenderTasks)
		publish := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PublishQueue)
		a.onClose(render.Close)
		a.onClose(publish.Close)
		opts = append(opts, pipeline.WithDispatcher(packager.NewDispatcher(render, publish, resilience.RetryConfig{})))
	}

	a.runner = pipeline.New(cfg, store, cfg.Storage.DataDir, opts...)
	return a, nil
}

func newStore(a *app, cfg *config.Config) (runstate.Store, error) {
	file := runstate.NewFileStore(cfg.Storage.DataDir)
	switch cfg.Storage.Backend {
	case "", "file":
		return file, nil
	case "redis":
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting run cache: %w", err)
		}
		a.onClose(client.Close)
		return runstate.NewRedisStore(client, file, cfg.Storage.RedisTTL), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// newSink builds the telemetry sink. cfg.Telemetry.Sink is a comma separated
// list; more than one entry fans events out to every sink.
func newSink(ctx context.Context, a *app, cfg *config.Config, m *metrics.Metrics) (telemetry.Sink, error) {
	var sinks telemetry.Fanout
	for _, name := range strings.Split(cfg.Telemetry.Sink, ",") {
		switch strings.TrimSpace(name) {
		case "", "none":
		case "file":
			fs, err := telemetry.NewFileSink(filepath.Join(cfg.Storage.DataDir, "telemetry.jsonl"))
			if err != nil {
				return nil, err
			}
			a.onClose(fs.Close)
			sinks = append(sinks, fs)
		case "kafka":
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Telemetry)
			a.onClose(producer.Close)
			breaker := resilience.NewCircuitBreaker("telemetry-kafka", resilience.CircuitBreakerConfig{
				FailureThreshold:    5,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
				OnStateChange: func(name string, to resilience.State) {
					if m != nil {
						m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
					}
				},
			})
			collector := telemetry.NewBatchCollector(producer, breaker, cfg.Telemetry.BatchSize, cfg.Telemetry.FlushInterval)
			collector.Start(ctx)
			a.onClose(collector.Close)
			sinks = append(sinks, collector)
		default:
			return nil, errors.New("unknown telemetry sink " + name)
		}
	}

	var sink telemetry.Sink
	switch len(sinks) {
	case 0:
		sink = telemetry.Discard{}
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}
	if m != nil {
		sink = countingSink{Sink: sink, events: m.TelemetryEvents}
	}
	return sink, nil
}

// countingSink counts events per type before forwarding them.
type countingSink struct {
	telemetry.Sink
	events *prometheus.CounterVec
}

func (c countingSink) Track(e telemetry.Event) {
	c.events.WithLabelValues(string(e.Type)).Inc()
	c.Sink.Track(e)
}
