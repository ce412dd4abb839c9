package runstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/postgres"
)

// Run statuses recorded in the registry.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Schema creates the runs table used by the Registry.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
	    run_id      TEXT PRIMARY KEY,
	    seed        NUMERIC(20,0) NOT NULL,
	    config_hash TEXT NOT NULL,
	    started_at  TIMESTAMPTZ NOT NULL,
	    status      TEXT NOT NULL,
	    last_stage  TEXT NOT NULL DEFAULT '',
	    error       TEXT NOT NULL DEFAULT '',
	    report      JSONB,
	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_started_at ON pipeline_runs (started_at DESC)`,
}

// RunRecord is one row of the registry.
type RunRecord struct {
	Run       content.RunMeta `json:"run"`
	Status    string          `json:"status"`
	LastStage Stage           `json:"last_stage"`
	Error     string          `json:"error,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Registry records every run's metadata and outcome in PostgreSQL so a run
// can be audited and reproduced from its seed and config hash.
type Registry struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewRegistry creates a Registry over db.
func NewRegistry(db *postgres.Client) *Registry {
	return &Registry{
		db:     db,
		logger: slog.Default().With("component", "run-registry"),
	}
}

// Migrate creates the runs table if needed.
func (r *Registry) Migrate(ctx context.Context) error {
	return r.db.EnsureSchema(ctx, Schema...)
}

// Begin inserts the run, or resets its status when the run is resumed.
func (r *Registry) Begin(ctx context.Context, run content.RunMeta) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO pipeline_runs (run_id, seed, config_hash, started_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status, error = '', updated_at = NOW()`,
		run.RunID, fmt.Sprint(run.Seed), run.ConfigHash, run.StartedAt.UTC(), RunRunning,
	)
	if err != nil {
		return fmt.Errorf("registering run %s: %w", run.RunID, err)
	}
	return nil
}

// StageDone records the last completed stage.
func (r *Registry) StageDone(ctx context.Context, runID string, stage Stage) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE pipeline_runs SET last_stage = $2, updated_at = NOW() WHERE run_id = $1`,
		runID, string(stage),
	)
	if err != nil {
		return fmt.Errorf("recording stage %s of run %s: %w", stage, runID, err)
	}
	return nil
}

// Finish stores the run's final status, error and report.
func (r *Registry) Finish(ctx context.Context, runID string, runErr error, report any) error {
	status, message := RunCompleted, ""
	if runErr != nil {
		status, message = RunFailed, runErr.Error()
	}
	var payload any
	if report != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		payload = string(data)
	}
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = $2, error = $3, report = COALESCE($4, report), updated_at = NOW()
		 WHERE run_id = $1`,
		runID, status, message, payload,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	r.logger.Info("run recorded", "run_id", runID, "status", status)
	return nil
}

// Get loads one run. It returns nil, nil when the run is unknown.
func (r *Registry) Get(ctx context.Context, runID string) (*RunRecord, error) {
	row := r.db.DB.QueryRowContext(ctx,
		`SELECT run_id, seed, config_hash, started_at, status, last_stage, error, report, updated_at
		 FROM pipeline_runs WHERE run_id = $1`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return rec, nil
}

// Recent lists the last limit runs, newest first.
func (r *Registry) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT run_id, seed, config_hash, started_at, status, last_stage, error, report, updated_at
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		rec    RunRecord
		seed   string
		stage  string
		report []byte
	)
	err := row.Scan(&rec.Run.RunID, &seed, &rec.Run.ConfigHash, &rec.Run.StartedAt,
		&rec.Status, &stage, &rec.Error, &report, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(seed, &rec.Run.Seed); err != nil {
		return nil, fmt.Errorf("parsing seed %q: %w", seed, err)
	}
	rec.LastStage = Stage(stage)
	if len(report) > 0 {
		rec.Report = json.RawMessage(report)
	}
	return &rec, nil
}
