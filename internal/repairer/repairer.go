// Package repairer rewrites drafted units that missed the quality threshold.
// Each attempt targets the lowest-scoring rubric dimensions, re-scores the
// unit and stops at acceptance or after the configured number of attempts.
package repairer

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/drafter"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Dimension names a rubric dimension.
type Dimension string

const (
	DimR Dimension = "R"
	DimD Dimension = "D"
	DimE Dimension = "E"
	DimC Dimension = "C"
	DimB Dimension = "B"
	DimS Dimension = "S"
)

// targetsPerAttempt is how many of the weakest dimensions one attempt fixes.
const targetsPerAttempt = 2

// Repairer applies targeted rewrites to drafted units.
type Repairer struct {
	scorer      *scorer.Scorer
	pipeline    config.PipelineConfig
	brand       config.BrandConfig
	assets      content.AssetSet
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Repairer that re-scores with sc. A cap of zero means units
// below the threshold are exhausted without any attempt.
func New(cfg *config.Config, assets content.AssetSet, sc *scorer.Scorer) *Repairer {
	return &Repairer{
		scorer:      sc,
		pipeline:    cfg.Pipeline,
		brand:       cfg.Brand,
		assets:      assets,
		maxAttempts: cfg.Pipeline.MaxRepairAttempts,
		logger:      slog.Default().With("component", "repairer"),
	}
}

// Run repairs every drafted unit of batch concurrently. Similarity is scored
// against the units the batch already holds as accepted; units accepted
// during repair are not added to that reference.
func (r *Repairer) Run(ctx context.Context, batch content.UnitBatch) (content.UnitBatch, error) {
	start := time.Now()
	out := batch.Clone()
	ref := r.scorer.Reference(out)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range out.Units {
		if out.Units[i].Status != content.StatusDrafted {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.Repair(&out.Units[i], ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return content.UnitBatch{}, err
	}

	repaired, exhausted := 0, 0
	for _, u := range out.Units {
		switch {
		case u.Attempts > 0 && u.Status == content.StatusAccepted:
			repaired++
		case u.Reason == apperrors.ReasonRepairExhausted:
			exhausted++
		}
	}
	r.logger.Info("repair complete",
		"run_id", batch.Run.RunID,
		"repaired", repaired,
		"exhausted", exhausted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Repair runs up to the attempt cap on u in place. u ends accepted, or
// rejected with a hard-constraint or repair-exhausted reason.
func (r *Repairer) Repair(u *content.ContentUnit, ref *dedup.Reference) {
	if v := r.scorer.Violations(*u); len(v) > 0 {
		r.scorer.Reject(u, v)
		return
	}
	for attempt := u.Attempts + 1; attempt <= r.maxAttempts; attempt++ {
		seed := drafter.SplitMix64(u.Seed ^ uint64(attempt)*0x9e3779b97f4a7c15)
		f := &fixer{
			rng:     rand.New(rand.NewPCG(seed, drafter.SplitMix64(seed))),
			unit:    u,
			scorer:  r.scorer,
			brand:   r.brand,
			assets:  r.assets,
			cta:     r.pipeline.CTAText(string(u.Metadata.CTAID)),
			offer:   r.pipeline.OfferText(u.Metadata.OfferID),
		}
		f.protect = f.protectedPhrases()
		for _, dim := range Weakest(u.Score, targetsPerAttempt) {
			f.fix(dim)
		}
		u.Attempts = attempt

		sc, violations := r.scorer.Evaluate(*u, ref)
		u.Score = sc
		if len(violations) > 0 {
			r.scorer.Reject(u, violations)
			return
		}
		if r.scorer.Passes(sc) {
			u.Status = content.StatusAccepted
			r.logger.Debug("unit repaired", "unit_id", u.ID, "attempts", attempt, "composite", sc.Composite)
			return
		}
	}
	err := apperrors.Newf(apperrors.ErrRepairExhausted, u.ID, "composite %.3f below %.2f after %d of %d attempts",
		u.Score.Composite, r.pipeline.QualityThreshold, u.Attempts, r.maxAttempts)
	u.Status = content.StatusRejected
	u.Reason = apperrors.Reason(err)
	r.logger.Debug("unit rejected", "error", err)
}

// Weakest returns up to n dimensions scoring below 1, weakest first. Ties
// keep rubric order.
func Weakest(sc content.Score, n int) []Dimension {
	type dim struct {
		d Dimension
		v float64
	}
	all := []dim{{DimR, sc.R}, {DimD, sc.D}, {DimE, sc.E}, {DimC, sc.C}, {DimB, sc.B}, {DimS, sc.S}}
	var below []dim
	for _, d := range all {
		if d.v < 1 {
			below = append(below, d)
		}
	}
	sort.SliceStable(below, func(i, j int) bool { return below[i].v < below[j].v })
	if len(below) > n {
		below = below[:n]
	}
	out := make([]Dimension, len(below))
	for i, d := range below {
		out[i] = d.d
	}
	return out
}
