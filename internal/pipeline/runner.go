// Package pipeline runs the content stages in order. Every stage reads its
// upstream output from the run-state store and persists its own output
// atomically, so any single stage can be re-run for an existing run and
// reproduces the same result. Cancellation is checked between stages;
// a cancelled stage commits nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/drafter"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/ingestor"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/packager"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/repairer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/runstate"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/telemetry"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
	applog "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/tracing"
)

const (
	indexDir  = "index"
	exportDir = "export"
)

// IngestOutput is the persisted output of the ingest stage.
type IngestOutput struct {
	content.AssetSet
	Warnings []string `json:"warnings,omitempty"`
}

// Registrar records run lifecycle events for auditing.
type Registrar interface {
	Begin(ctx context.Context, run content.RunMeta) error
	StageDone(ctx context.Context, runID string, stage runstate.Stage) error
	Finish(ctx context.Context, runID string, runErr error, report any) error
}

// Dispatcher hands packaged tasks to downstream queues.
type Dispatcher interface {
	Dispatch(ctx context.Context, b content.PackageBatch) error
}

// Runner executes pipeline stages against a run-state store.
type Runner struct {
	cfg        *config.Config
	store      runstate.Store
	dataDir    string
	registry   Registrar
	sink       telemetry.Sink
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

type Option func(*Runner)

func WithRegistry(reg Registrar) Option { return func(r *Runner) { r.registry = reg } }

func WithTelemetry(sink telemetry.Sink) Option { return func(r *Runner) { r.sink = sink } }

func WithDispatcher(d Dispatcher) Option { return func(r *Runner) { r.dispatcher = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithClock replaces time.Now for run start times and telemetry timestamps.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithRunIDs replaces the random run id generator.
func WithRunIDs(next func() string) Option { return func(r *Runner) { r.newID = next } }

// New creates a Runner. Stage outputs go to store; the similarity index and
// export files go under dataDir/runs/<runID>.
func New(cfg *config.Config, store runstate.Store, dataDir string, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		store:   store,
		dataDir: dataDir,
		sink:    telemetry.Discard{},
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// RunDir returns the directory holding a run's index and exports.
func (r *Runner) RunDir(runID string) string {
	return filepath.Join(r.dataDir, "runs", runID)
}

// Start validates the configuration and records a new run.
func (r *Runner) Start(ctx context.Context) (content.RunMeta, error) {
	if err := r.cfg.Validate(); err != nil {
		return content.RunMeta{}, err
	}
	run := content.RunMeta{
		RunID:       r.newID(),
		Seed:        r.cfg.Pipeline.Seed,
		TargetCount: r.cfg.Pipeline.TargetCount,
		ConfigHash:  r.cfg.Hash(),
		StartedAt:   r.now().UTC(),
	}
	if err := runstate.Save(ctx, r.store, run.RunID, runstate.StageRun, run); err != nil {
		return content.RunMeta{}, err
	}
	if err := r.store.SetLatest(ctx, run.RunID); err != nil {
		return content.RunMeta{}, err
	}
	if r.registry != nil {
		r.audit(ctx, "begin", func(ctx context.Context) error { return r.registry.Begin(ctx, run) })
	}
	r.logger.Info("run started",
		"run_id", run.RunID,
		"seed", run.Seed,
		"config_hash", run.ConfigHash,
		"target", r.cfg.Pipeline.TargetCount,
	)
	return run, nil
}

// Fork starts a new run that reuses the ingested assets of from with a
// different target size and seed, and plans it. Zero target or nil seed
// keep the configured values. The returned runner carries the overrides.
func (r *Runner) Fork(ctx context.Context, from string, target int, seed *uint64) (*Runner, content.RunMeta, error) {
	ingest, err := runstate.Load[IngestOutput](ctx, r.store, from, runstate.StageIngest)
	if err != nil {
		return nil, content.RunMeta{}, err
	}
	cfg := *r.cfg
	if target > 0 {
		cfg.Pipeline.TargetCount = target
	}
	if seed != nil {
		cfg.Pipeline.Seed = *seed
	}
	fork := *r
	fork.cfg = &cfg

	run, err := fork.Start(ctx)
	if err != nil {
		return nil, content.RunMeta{}, err
	}
	ingest.Run = run
	if err := runstate.Save(ctx, fork.store, run.RunID, runstate.StageIngest, ingest); err != nil {
		return nil, content.RunMeta{}, err
	}
	if err := fork.Plan(ctx, run.RunID); err != nil {
		return nil, content.RunMeta{}, err
	}
	r.logger.Info("run forked", "from", from, "run_id", run.RunID, "target", cfg.Pipeline.TargetCount, "seed", run.Seed)
	return &fork, run, nil
}

// ForRun returns a runner for an existing run: the loaded configuration with
// the run's own target and seed applied, so forked runs keep their overrides.
// The result must hash to the run's ConfigHash.
func (r *Runner) ForRun(ctx context.Context, runID string) (*Runner, error) {
	run, err := r.meta(ctx, runID)
	if err != nil {
		return nil, err
	}
	cfg := *r.cfg
	if run.TargetCount > 0 {
		cfg.Pipeline.TargetCount = run.TargetCount
	}
	cfg.Pipeline.Seed = run.Seed
	if err := checkConfig(run, &cfg); err != nil {
		return nil, err
	}
	bound := *r
	bound.cfg = &cfg
	return &bound, nil
}

// checkConfig fails when cfg is not the configuration run was started with.
// A run's configuration is fixed for its lifetime.
func checkConfig(run content.RunMeta, cfg *config.Config) error {
	if h := cfg.Hash(); h != run.ConfigHash {
		return apperrors.Newf(apperrors.ErrInvalidConfig, "",
			"run %s was started with config %s, current config is %s; start a new run, or fork this one with draft --target/--seed",
			run.RunID, run.ConfigHash, h)
	}
	return nil
}

// RunAll starts a new run and executes every stage.
func (r *Runner) RunAll(ctx context.Context) (Report, error) {
	run, err := r.Start(ctx)
	if err != nil {
		return Report{}, err
	}
	return r.Resume(ctx, run.RunID, runstate.StageIngest)
}

// Resume executes the stages of an existing run from stage from onwards and
// builds the report. A failure stops the run; per-unit failures are not
// failures of the run.
func (r *Runner) Resume(ctx context.Context, runID string, from runstate.Stage) (Report, error) {
	start := slices.Index(runstate.Stages, from)
	if start < 0 {
		return Report{}, fmt.Errorf("cannot resume from stage %q", from)
	}
	ctx = applog.WithRunID(ctx, runID)
	ctx, root := tracing.StartSpan(ctx, "run", runID)

	rep, err := func() (Report, error) {
		for _, st := range runstate.Stages[start:] {
			if err := r.RunStage(ctx, runID, st); err != nil {
				return Report{}, err
			}
		}
		return r.Report(ctx, runID)
	}()
	root.End(err)
	root.Log(r.logger)

	if r.registry != nil {
		var payload any
		if err == nil {
			payload = rep
		}
		r.audit(ctx, "finish", func(ctx context.Context) error { return r.registry.Finish(ctx, runID, err, payload) })
	}
	if err != nil {
		applog.FromContext(ctx).Error("run failed", "error", err, "fatal", apperrors.IsFatal(err))
		return Report{}, err
	}
	return rep, nil
}

// RunStage executes one stage of an existing run.
func (r *Runner) RunStage(ctx context.Context, runID string, st runstate.Stage) error {
	switch st {
	case runstate.StageIngest:
		return r.Ingest(ctx, runID)
	case runstate.StagePlan:
		return r.Plan(ctx, runID)
	case runstate.StageDraft:
		return r.Draft(ctx, runID)
	case runstate.StageScore:
		return r.Score(ctx, runID)
	case runstate.StageRepair:
		return r.Repair(ctx, runID)
	case runstate.StageDedup:
		return r.Dedupe(ctx, runID)
	case runstate.StagePackage:
		return r.Package(ctx, runID)
	case runstate.StageReport:
		_, err := r.Report(ctx, runID)
		return err
	}
	return fmt.Errorf("stage %q cannot be run", st)
}

// Ingest loads the configured asset locations. Unreadable files become
// warnings in the stage output.
func (r *Runner) Ingest(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StageIngest, func(ctx context.Context) error {
		run, err := r.meta(ctx, runID)
		if err != nil {
			return err
		}
		set, warnings, err := ingestor.New().Ingest(ctx, run, r.cfg.Assets.Locations)
		if err != nil {
			return err
		}
		out := IngestOutput{AssetSet: set}
		for _, w := range warnings {
			out.Warnings = append(out.Warnings, w.Error())
		}
		if r.metrics != nil {
			r.metrics.AssetsIngested.Add(float64(len(set.Assets)))
			r.metrics.AssetsSkipped.Add(float64(len(warnings)))
		}
		return runstate.Save(ctx, r.store, runID, runstate.StageIngest, out)
	})
}

func (r *Runner) Plan(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StagePlan, func(ctx context.Context) error {
		run, err := r.meta(ctx, runID)
		if err != nil {
			return err
		}
		agenda, err := planner.Build(run, r.cfg.Pipeline)
		if err != nil {
			return err
		}
		return runstate.Save(ctx, r.store, runID, runstate.StagePlan, agenda)
	})
}

func (r *Runner) Draft(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StageDraft, func(ctx context.Context) error {
		agenda, err := runstate.Load[content.Agenda](ctx, r.store, runID, runstate.StagePlan)
		if err != nil {
			return err
		}
		assets, err := r.assets(ctx, runID)
		if err != nil {
			return err
		}
		batch, err := drafter.New(r.cfg, assets).Draft(ctx, agenda, r.cfg.Pipeline.Shards)
		if err != nil {
			return err
		}
		r.observeUnits(runstate.StageDraft, batch)
		return runstate.Save(ctx, r.store, runID, runstate.StageDraft, batch)
	})
}

func (r *Runner) Score(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StageScore, func(ctx context.Context) error {
		drafted, err := runstate.Load[content.UnitBatch](ctx, r.store, runID, runstate.StageDraft)
		if err != nil {
			return err
		}
		assets, err := r.assets(ctx, runID)
		if err != nil {
			return err
		}
		batch, err := scorer.New(r.cfg, assets).Run(ctx, drafted)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			for _, u := range batch.Units {
				r.metrics.CompositeScore.WithLabelValues(string(u.Family)).Observe(u.Score.Composite)
			}
		}
		r.observeUnits(runstate.StageScore, batch)
		return runstate.Save(ctx, r.store, runID, runstate.StageScore, batch)
	})
}

func (r *Runner) Repair(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StageRepair, func(ctx context.Context) error {
		scored, err := runstate.Load[content.UnitBatch](ctx, r.store, runID, runstate.StageScore)
		if err != nil {
			return err
		}
		assets, err := r.assets(ctx, runID)
		if err != nil {
			return err
		}
		batch, err := repairer.New(r.cfg, assets, scorer.New(r.cfg, assets)).Run(ctx, scored)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			for _, u := range batch.Units {
				if u.Attempts > 0 {
					r.metrics.RepairAttempts.Observe(float64(u.Attempts))
				}
			}
		}
		r.observeUnits(runstate.StageRepair, batch)
		return runstate.Save(ctx, r.store, runID, runstate.StageRepair, batch)
	})
}

// Dedupe marks near-duplicates among the accepted units and persists the
// similarity index next to the batch. It always rebuilds the index from the
// accepted set, which is how a corrupted index is recovered.
func (r *Runner) Dedupe(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StageDedup, func(ctx context.Context) error {
		repaired, err := runstate.Load[content.UnitBatch](ctx, r.store, runID, runstate.StageRepair)
		if err != nil {
			return err
		}
		batch, idx, err := r.deduplicator().Run(ctx, repaired)
		if err != nil {
			return err
		}
		if _, err := dedup.WriteSegment(filepath.Join(r.RunDir(runID), indexDir), idx); err != nil {
			return fmt.Errorf("persisting similarity index: %w", err)
		}
		if err := runstate.Save(ctx, r.store, runID, runstate.StageDedup, batch); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.DedupIndexSize.Set(float64(idx.Len()))
		}
		r.observeUnits(runstate.StageDedup, batch)
		at := r.now().UTC()
		for _, u := range batch.Units {
			r.sink.Track(telemetry.UnitEvent(batch.Run, u, r.cfg.Templates[string(u.Family)].Key, at))
		}
		return nil
	})
}

// Package verifies the persisted similarity index against the accepted set,
// builds render and publish tasks, and writes the export files. Dispatch
// failures are logged; the export files stay authoritative and the stage can
// be re-run to dispatch again.
func (r *Runner) Package(ctx context.Context, runID string) error {
	return r.stage(ctx, runID, runstate.StagePackage, func(ctx context.Context) error {
		units, err := runstate.Load[content.UnitBatch](ctx, r.store, runID, runstate.StageDedup)
		if err != nil {
			return err
		}
		if err := r.verifyIndex(ctx, runID, units); err != nil {
			return err
		}
		assets, err := r.assets(ctx, runID)
		if err != nil {
			return err
		}
		batch, err := packager.New(r.cfg, assets).Run(ctx, units)
		if err != nil {
			return err
		}
		if err := packager.WriteExport(filepath.Join(r.RunDir(runID), exportDir), batch); err != nil {
			return err
		}
		if err := runstate.Save(ctx, r.store, runID, runstate.StagePackage, batch); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.TasksTotal.WithLabelValues(telemetry.TaskCanva).Add(float64(len(batch.CanvaTasks)))
			r.metrics.TasksTotal.WithLabelValues(telemetry.TaskPublish).Add(float64(len(batch.PublishQueue)))
		}
		at := r.now().UTC()
		for _, t := range batch.CanvaTasks {
			r.sink.Track(telemetry.CanvaEvent(batch.Run, t, at))
		}
		for _, t := range batch.PublishQueue {
			r.sink.Track(telemetry.PublishEvent(batch.Run, t, at))
		}
		if r.dispatcher != nil {
			if err := r.dispatcher.Dispatch(ctx, batch); err != nil {
				applog.FromContext(ctx).Warn("task dispatch failed, export files kept", "error", err)
			}
		}
		return nil
	})
}

// Report builds the run report from the persisted stage outputs and stores
// it.
func (r *Runner) Report(ctx context.Context, runID string) (Report, error) {
	var rep Report
	err := r.stage(ctx, runID, runstate.StageReport, func(ctx context.Context) error {
		ingest, err := runstate.Load[IngestOutput](ctx, r.store, runID, runstate.StageIngest)
		if err != nil {
			return err
		}
		agenda, err := runstate.Load[content.Agenda](ctx, r.store, runID, runstate.StagePlan)
		if err != nil {
			return err
		}
		units, err := runstate.Load[content.UnitBatch](ctx, r.store, runID, runstate.StageDedup)
		if err != nil {
			return err
		}
		pkg, err := runstate.Load[content.PackageBatch](ctx, r.store, runID, runstate.StagePackage)
		if err != nil {
			return err
		}
		rep = BuildReport(ingest, agenda, units, pkg)
		if r.metrics != nil {
			for reason, n := range rep.Reasons {
				r.metrics.RejectionsTotal.WithLabelValues(reason).Add(float64(n))
			}
		}
		return runstate.Save(ctx, r.store, runID, runstate.StageReport, rep)
	})
	return rep, err
}

// LatestRun returns the id of the most recently started run.
func (r *Runner) LatestRun(ctx context.Context) (string, error) {
	return r.store.Latest(ctx)
}

func (r *Runner) verifyIndex(ctx context.Context, runID string, units content.UnitBatch) error {
	idx, err := dedup.ReadSegment(filepath.Join(r.RunDir(runID), indexDir, dedup.SegmentFile))
	if err != nil {
		if errors.Is(err, apperrors.ErrIndexCorruption) {
			return fmt.Errorf("%w; rerun dedupe to rebuild the index", err)
		}
		return apperrors.Newf(apperrors.ErrIndexCorruption, runID, "reading similarity index: %v; rerun dedupe to rebuild the index", err)
	}
	if err := r.deduplicator().Verify(ctx, idx, units); err != nil {
		return fmt.Errorf("%w; rerun dedupe to rebuild the index", err)
	}
	return nil
}

func (r *Runner) deduplicator() *dedup.Deduplicator {
	return dedup.New(r.cfg.Scoring, r.cfg.Pipeline.DedupThreshold)
}

func (r *Runner) meta(ctx context.Context, runID string) (content.RunMeta, error) {
	return runstate.Load[content.RunMeta](ctx, r.store, runID, runstate.StageRun)
}

func (r *Runner) assets(ctx context.Context, runID string) (content.AssetSet, error) {
	out, err := runstate.Load[IngestOutput](ctx, r.store, runID, runstate.StageIngest)
	if err != nil {
		return content.AssetSet{}, err
	}
	return out.AssetSet, nil
}

// stage wraps one stage with the cancellation check, a tracing span,
// metrics and logging.
func (r *Runner) stage(ctx context.Context, runID string, st runstate.Stage, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run %s aborted before %s: %w", runID, st, err)
	}
	// Report only reads persisted outputs and may follow a config change.
	if st != runstate.StageReport {
		run, err := r.meta(ctx, runID)
		if err != nil {
			return fmt.Errorf("%s stage: %w", st, err)
		}
		if err := checkConfig(run, r.cfg); err != nil {
			return fmt.Errorf("%s stage: %w", st, err)
		}
	}
	ctx = applog.WithRunID(ctx, runID)
	logger := applog.FromContext(ctx).With("stage", st)
	ctx, span := tracing.StartChildSpan(ctx, string(st))
	start := time.Now()

	err := fn(ctx)
	span.End(err)
	elapsed := time.Since(start)
	if r.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.metrics.StageDuration.WithLabelValues(string(st)).Observe(elapsed.Seconds())
		r.metrics.StageRunsTotal.WithLabelValues(string(st), outcome).Inc()
	}
	if err != nil {
		logger.Error("stage failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return fmt.Errorf("%s stage: %w", st, err)
	}
	if r.registry != nil {
		r.audit(ctx, "stage", func(ctx context.Context) error { return r.registry.StageDone(ctx, runID, st) })
	}
	logger.Info("stage complete", "duration_ms", elapsed.Milliseconds())
	return nil
}

// audit writes to the registry with its own deadline. Registry failures are
// logged and never fail the run; the store already holds the run's record.
func (r *Runner) audit(ctx context.Context, op string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	err := resilience.WithTimeout(ctx, 5*time.Second, "registry-"+op, fn)
	if err != nil {
		r.logger.Warn("run registry update failed", "op", op, "error", err)
	}
}

func (r *Runner) observeUnits(st runstate.Stage, batch content.UnitBatch) {
	if r.metrics == nil {
		return
	}
	for status, n := range batch.CountByStatus() {
		r.metrics.UnitsTotal.WithLabelValues(string(st), string(status)).Add(float64(n))
	}
}
