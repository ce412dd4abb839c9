package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/postgres"
)

// Schema creates the snapshot table used by Store.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_snapshots (
	    id          BIGSERIAL PRIMARY KEY,
	    data        JSONB NOT NULL,
	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS telemetry_snapshots_captured_at ON telemetry_snapshots (captured_at DESC)`,
}

// Store persists aggregated telemetry snapshots in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "telemetry-store"),
	}
}

// Migrate creates the snapshot table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, Schema...)
}

func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO telemetry_snapshots (data, captured_at) VALUES ($1, $2)`,
		string(data), snap.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("saving telemetry snapshot: %w", err)
	}
	s.logger.Info("telemetry snapshot saved",
		"runs", snap.Runs,
		"units_emitted", snap.UnitsEmitted,
		"tasks_dispatched", snap.TasksDispatched,
	)
	return nil
}

// LatestSnapshot returns nil, nil when nothing was saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM telemetry_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Rows that no
// longer decode are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM telemetry_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Saver is where periodic snapshots go.
type Saver interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// RunPeriodicSave snapshots agg every interval until ctx is cancelled, then
// saves a final snapshot. It blocks.
func RunPeriodicSave(ctx context.Context, saver Saver, agg *Aggregator, interval time.Duration) {
	logger := slog.Default().With("component", "telemetry-store")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("periodic snapshot started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			if err := saver.SaveSnapshot(ctx, agg.Stats()); err != nil {
				logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := saver.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
				logger.Error("final snapshot failed", "error", err)
			}
			return
		}
	}
}
