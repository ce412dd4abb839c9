// Command telemetry starts the content telemetry service.
//
// It consumes content_unit_emitted and task_dispatched events from Kafka,
// aggregates them in memory per family, template and CTA, snapshots the
// aggregate to PostgreSQL, and exposes an HTTP API at GET /api/v1/telemetry.
// A JSONL file written by the pipeline's file sink can be replayed at start.
//
// Usage:
//
//	go run ./cmd/telemetry [-config configs/pipeline.yaml] [-replay data/telemetry.jsonl]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/telemetry"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/pipeline.yaml", "path to config file")
	replayPath := flag.String("replay", "", "JSONL telemetry file to aggregate before consuming")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting telemetry service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	agg := telemetry.NewAggregator()

	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			slog.Error("failed to open replay file", "path", *replayPath, "error", err)
			os.Exit(1)
		}
		n, err := telemetry.Replay(f, agg)
		f.Close()
		if err != nil {
			slog.Error("replay failed", "path", *replayPath, "error", err)
			os.Exit(1)
		}
		slog.Info("telemetry replayed", "path", *replayPath, "events", n)
	}

	checker := health.NewChecker()
	var wg sync.WaitGroup

	// Snapshots are optional; the service still aggregates without Postgres.
	var snapshots telemetry.SnapshotStore
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := telemetry.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate telemetry schema", "error", err)
			os.Exit(1)
		}
		snapshots = store
		checker.Register("postgres", health.Ping(db.Ping, true))
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry.RunPeriodicSave(ctx, store, agg, cfg.Telemetry.SnapshotInterval)
		}()
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Telemetry, countEvents(m, telemetry.HandleMessage(agg)))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("telemetry consumer started", "topic", cfg.Kafka.Topics.Telemetry)
	checker.Register("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, false))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	telemetry.NewHandler(agg, snapshots).Routes(r)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("telemetry service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("telemetry service stopped")
}

// countEvents counts consumed events per type before aggregating them.
func countEvents(m *metrics.Metrics, next kafka.MessageHandler) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		kind := msg.Type
		if kind == "" {
			kind = "unknown"
		}
		m.TelemetryEvents.WithLabelValues(kind).Inc()
		return next(ctx, msg)
	}
}
