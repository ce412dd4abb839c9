// Package runstate persists the output of each pipeline stage so any stage
// can be re-run from its upstream batch. Batches are stored as JSON documents
// keyed by run id and stage name. A stage's document is either fully written
// or absent.
package runstate

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Stage names a persisted stage output.
type Stage string

const (
	StageRun     Stage = "run"
	StageIngest  Stage = "ingest"
	StagePlan    Stage = "plan"
	StageDraft   Stage = "draft"
	StageScore   Stage = "score"
	StageRepair  Stage = "repair"
	StageDedup   Stage = "dedup"
	StagePackage Stage = "package"
	StageReport  Stage = "report"
)

// Stages lists the content stages in execution order.
var Stages = []Stage{StageIngest, StagePlan, StageDraft, StageScore, StageRepair, StageDedup, StagePackage}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	for _, s := range append([]Stage{StageRun, StageReport}, Stages...) {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

// Upstream returns the stage whose output s consumes, or "" for the first
// stage.
func (s Stage) Upstream() Stage {
	for i, st := range Stages {
		if st == s && i > 0 {
			return Stages[i-1]
		}
	}
	return ""
}

// Store holds stage documents. Get returns an error wrapping
// errors.ErrStageMissing when nothing was stored for the stage.
type Store interface {
	Put(ctx context.Context, runID string, stage Stage, data []byte) error
	Get(ctx context.Context, runID string, stage Stage) ([]byte, error)
	SetLatest(ctx context.Context, runID string) error
	Latest(ctx context.Context) (string, error)
}

// Save encodes v and stores it as the stage's output.
func Save[T any](ctx context.Context, s Store, runID string, stage Stage, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s output: %w", stage, err)
	}
	if err := s.Put(ctx, runID, stage, data); err != nil {
		return fmt.Errorf("saving %s output: %w", stage, err)
	}
	return nil
}

// Load reads and decodes the stage's output.
func Load[T any](ctx context.Context, s Store, runID string, stage Stage) (T, error) {
	var v T
	data, err := s.Get(ctx, runID, stage)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s output of run %s: %w", stage, runID, err)
	}
	return v, nil
}

func missing(runID string, stage Stage) error {
	return apperrors.Newf(apperrors.ErrStageMissing, runID, "no %s output stored", stage)
}
