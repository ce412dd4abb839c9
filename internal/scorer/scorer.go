// Package scorer rates content units on the six-dimension rubric, enforces
// hard constraints and routes each unit to acceptance, rejection or repair.
//
// Readability, density, evidence, cadence and brand integrity depend only on
// the unit and are computed concurrently. Similarity depends on the units
// accepted before it, so the final pass walks the batch in agenda order.
package scorer

import (
	"context"
	"log/slog"
	"runtime"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Scorer evaluates units against the run configuration.
type Scorer struct {
	threshold   float64
	pipeline    config.PipelineConfig
	brand       config.BrandConfig
	scoring     config.ScoringConfig
	assets      content.AssetSet
	checker     *Checker
	shingleSize int
	logger      *slog.Logger
}

// New creates a Scorer. The asset set resolves testimonial evidence
// references.
func New(cfg *config.Config, assets content.AssetSet) *Scorer {
	return &Scorer{
		threshold:   cfg.Pipeline.QualityThreshold,
		pipeline:    cfg.Pipeline,
		brand:       cfg.Brand,
		scoring:     cfg.Scoring,
		assets:      assets,
		checker:     NewChecker(cfg.Brand),
		shingleSize: cfg.Scoring.ShingleSize,
		logger:      slog.Default().With("component", "scorer"),
	}
}

// Threshold is the minimum composite an accepted unit needs.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Passes reports whether a score clears the quality threshold.
func (s *Scorer) Passes(sc content.Score) bool {
	return sc.Composite >= s.threshold
}

// Rubric computes the unit-local dimensions R, D, E, C and B. S is left at
// zero.
func (s *Scorer) Rubric(u content.ContentUnit) content.Score {
	return content.Score{
		R: s.readability(u),
		D: s.density(u),
		E: s.evidence(u),
		C: s.cadence(u),
		B: s.brandIntegrity(u),
	}
}

// Violations returns the hard-constraint violations of a unit.
func (s *Scorer) Violations(u content.ContentUnit) []content.Violation {
	return s.checker.Check(u.Text.Plain())
}

// Shingles returns the shingle set the similarity dimension compares.
func (s *Scorer) Shingles(u content.ContentUnit) []uint64 {
	return dedup.Shingles(u.Text.Plain(), s.shingleSize)
}

// Evaluate fully scores u against the reference of accepted units.
func (s *Scorer) Evaluate(u content.ContentUnit, ref *dedup.Reference) (content.Score, []content.Violation) {
	sc := s.Rubric(u)
	sc.S = s.similarity(u, s.Shingles(u), ref)
	sc.Composite = Composite(sc)
	return sc, s.Violations(u)
}

func (s *Scorer) similarity(u content.ContentUnit, shingles []uint64, ref *dedup.Reference) float64 {
	if ref == nil {
		return 1
	}
	_, sim := ref.Nearest(u.ID, shingles)
	return 1 - sim
}

// Reference builds the similarity reference from the accepted units of
// batch, in agenda order.
func (s *Scorer) Reference(batch content.UnitBatch) *dedup.Reference {
	ref := dedup.NewReference()
	for _, u := range batch.Units {
		if u.Status == content.StatusAccepted {
			ref.Add(u.ID, s.Shingles(u))
		}
	}
	return ref
}

type partial struct {
	score      content.Score
	violations []content.Violation
	shingles   []uint64
}

// Run scores every drafted unit of batch. Units with hard violations are
// rejected, units clearing the threshold are accepted, and the rest stay
// drafted for repair. The input batch is not modified.
func (s *Scorer) Run(ctx context.Context, batch content.UnitBatch) (content.UnitBatch, error) {
	start := time.Now()
	out := batch.Clone()
	partials := make([]partial, len(out.Units))

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
			u := out.Units[i]
			partials[i] = partial{
				score:      s.Rubric(u),
				violations: s.Violations(u),
				shingles:   s.Shingles(u),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return content.UnitBatch{}, err
	}

	ref := dedup.NewReference()
	for i := range out.Units {
		u := &out.Units[i]
		if u.Status != content.StatusDrafted {
			if u.Status == content.StatusAccepted {
				ref.Add(u.ID, s.Shingles(*u))
			}
			continue
		}
		p := partials[i]
		p.score.S = s.similarity(*u, p.shingles, ref)
		p.score.Composite = Composite(p.score)
		u.Score = p.score
		switch {
		case len(p.violations) > 0:
			s.Reject(u, p.violations)
		case s.Passes(p.score):
			u.Status = content.StatusAccepted
			ref.Add(u.ID, p.shingles)
		}
	}

	counts := out.CountByStatus()
	s.logger.Info("scoring complete",
		"run_id", batch.Run.RunID,
		"accepted", counts[content.StatusAccepted],
		"rejected", counts[content.StatusRejected],
		"needs_repair", counts[content.StatusDrafted],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Reject marks u rejected for hard-constraint violations.
func (s *Scorer) Reject(u *content.ContentUnit, violations []content.Violation) {
	err := apperrors.Newf(apperrors.ErrHardConstraint, u.ID, "%s: %s (%d violations)",
		violations[0].Kind, violations[0].Detail, len(violations))
	u.Status = content.StatusRejected
	u.Reason = apperrors.Reason(err)
	u.Violations = violations
	s.logger.Warn("unit rejected",
		"error", err,
		"excerpt", Redact(excerpt(u.Text.Body(), 80)),
	)
}

// excerpt shortens s to at most n bytes without splitting a rune.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
