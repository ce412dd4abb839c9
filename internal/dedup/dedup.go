package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// ViolationDuplicate is the violation kind recorded on duplicate units. Its
// detail names the indexed unit the duplicate matched.
const ViolationDuplicate = "near_duplicate"

// Deduplicator marks accepted units that are near-duplicates of an earlier
// accepted unit.
type Deduplicator struct {
	shingleSize int
	threshold   float64
	bands       int
	hasher      *Hasher
	logger      *slog.Logger
}

// New creates a Deduplicator from the scoring configuration and the run's
// duplicate threshold.
func New(scoring config.ScoringConfig, threshold float64) *Deduplicator {
	return &Deduplicator{
		shingleSize: scoring.ShingleSize,
		threshold:   threshold,
		bands:       scoring.LSHBands,
		hasher:      NewHasher(scoring.SignatureSize),
		logger:      slog.Default().With("component", "dedup"),
	}
}

// Run checks every accepted unit of batch in agenda order. Signatures are
// computed concurrently; index commits are sequential so the first of two
// near-duplicates always wins. Units whose estimated similarity to an indexed
// unit exceeds the threshold become duplicates and are not indexed.
func (d *Deduplicator) Run(ctx context.Context, batch content.UnitBatch) (content.UnitBatch, *Index, error) {
	out := batch.Clone()
	idx, err := NewIndex(d.hasher.Size(), d.bands)
	if err != nil {
		return content.UnitBatch{}, nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	var accepted []int
	for i, u := range out.Units {
		if u.Status == content.StatusAccepted {
			accepted = append(accepted, i)
		}
	}
	sigs, err := d.signAll(ctx, out.Units, accepted)
	if err != nil {
		return content.UnitBatch{}, nil, err
	}

	duplicates := 0
	for n, i := range accepted {
		u := &out.Units[i]
		if match, sim := idx.Nearest(sigs[n]); match != "" && sim > d.threshold {
			u.Status = content.StatusDuplicate
			u.Violations = append(u.Violations, content.Violation{Kind: ViolationDuplicate, Detail: match})
			duplicates++
			d.logger.Debug("duplicate unit", "unit_id", u.ID, "matches", match, "similarity", sim)
			continue
		}
		if err := idx.Add(u.ID, sigs[n]); err != nil {
			return content.UnitBatch{}, nil, fmt.Errorf("indexing unit %s: %w", u.ID, err)
		}
	}
	d.logger.Info("deduplication complete",
		"run_id", batch.Run.RunID,
		"checked", len(accepted),
		"duplicates", duplicates,
		"indexed", idx.Len(),
	)
	return out, idx, nil
}

// Rebuild indexes every accepted unit of batch without duplicate checks.
func (d *Deduplicator) Rebuild(ctx context.Context, batch content.UnitBatch) (*Index, error) {
	idx, err := NewIndex(d.hasher.Size(), d.bands)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	var accepted []int
	for i, u := range batch.Units {
		if u.Status == content.StatusAccepted {
			accepted = append(accepted, i)
		}
	}
	sigs, err := d.signAll(ctx, batch.Units, accepted)
	if err != nil {
		return nil, err
	}
	for n, i := range accepted {
		if err := idx.Add(batch.Units[i].ID, sigs[n]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Verify checks that idx holds exactly the accepted units of batch, in order,
// with the signatures their current text produces.
func (d *Deduplicator) Verify(ctx context.Context, idx *Index, batch content.UnitBatch) error {
	want, err := d.Rebuild(ctx, batch)
	if err != nil {
		return err
	}
	gotIDs, gotSigs := idx.Entries()
	wantIDs, wantSigs := want.Entries()
	if !slices.Equal(gotIDs, wantIDs) {
		return apperrors.Newf(apperrors.ErrIndexCorruption, "",
			"index holds %d units, accepted set has %d", len(gotIDs), len(wantIDs))
	}
	for i := range gotSigs {
		if !slices.Equal(gotSigs[i], wantSigs[i]) {
			return apperrors.New(apperrors.ErrIndexCorruption, gotIDs[i], "signature does not match unit text")
		}
	}
	return nil
}

// Sign returns the signature of a unit's text.
func (d *Deduplicator) Sign(u content.ContentUnit) Signature {
	return d.hasher.Sign(Shingles(u.Text.Plain(), d.shingleSize))
}

func (d *Deduplicator) signAll(ctx context.Context, units []content.ContentUnit, positions []int) ([]Signature, error) {
	sigs := make([]Signature, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for n, i := range positions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sigs[n] = d.Sign(units[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}
