// Package metrics defines the Prometheus collectors used by the pipeline and
// the telemetry service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	StageDuration        *prometheus.HistogramVec
	StageRunsTotal       *prometheus.CounterVec
	UnitsTotal           *prometheus.CounterVec
	CompositeScore       *prometheus.HistogramVec
	RepairAttempts       prometheus.Histogram
	RejectionsTotal      *prometheus.CounterVec
	AssetsIngested       prometheus.Counter
	AssetsSkipped        prometheus.Counter
	DedupIndexSize       prometheus.Gauge
	TasksTotal           *prometheus.CounterVec
	TelemetryEvents      *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Wall time of one pipeline stage.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		StageRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_runs_total",
				Help: "Stage executions by outcome (ok, error).",
			},
			[]string{"stage", "outcome"},
		),
		UnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_units_total",
				Help: "Content units leaving a stage, by status.",
			},
			[]string{"stage", "status"},
		),
		CompositeScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_composite_score",
				Help:    "Composite rubric score of scored units by family.",
				Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.92, 0.95, 0.98, 1},
			},
			[]string{"family"},
		),
		RepairAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_repair_attempts",
				Help:    "Repair attempts spent per repaired unit.",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_rejections_total",
				Help: "Rejected units by reason.",
			},
			[]string{"reason"},
		),
		AssetsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_assets_ingested_total",
				Help: "Assets accepted by the ingestor.",
			},
		),
		AssetsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_assets_skipped_total",
				Help: "Source files skipped with a warning.",
			},
		),
		DedupIndexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_dedup_index_size",
				Help: "Signatures held by the similarity index after the last dedup stage.",
			},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_total",
				Help: "Render and publish tasks produced by the packager.",
			},
			[]string{"kind"},
		),
		TelemetryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_events_total",
				Help: "Telemetry events by type.",
			},
			[]string{"type"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StageDuration,
		m.StageRunsTotal,
		m.UnitsTotal,
		m.CompositeScore,
		m.RepairAttempts,
		m.RejectionsTotal,
		m.AssetsIngested,
		m.AssetsSkipped,
		m.DedupIndexSize,
		m.TasksTotal,
		m.TelemetryEvents,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the scrape handler for g. A nil g uses the default
// gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
