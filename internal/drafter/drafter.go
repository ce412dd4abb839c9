// Package drafter turns agenda entries into draft content units. The agenda
// is split into contiguous shards that are drafted concurrently; each shard
// draws from its own seeded generator so a shard's output depends only on the
// run seed, the shard number and its slice of the agenda.
package drafter

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
)

const golden = 0x9e3779b97f4a7c15

// SplitMix64 is the finaliser used to derive every seed in a run.
func SplitMix64(x uint64) uint64 {
	x += golden
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// ShardSeed derives the seed of shard n from the run seed.
func ShardSeed(runSeed uint64, shard int) uint64 {
	return SplitMix64(runSeed ^ (golden * uint64(shard+1)))
}

// UnitSeed derives the seed of the pos-th entry of a shard's slice.
func UnitSeed(shardSeed uint64, pos int) uint64 {
	return SplitMix64(shardSeed + uint64(pos)*golden)
}

// Range is a half-open interval of agenda positions owned by one shard.
type Range struct {
	Start, End int
}

// Split divides n entries into shards contiguous, disjoint ranges whose sizes
// differ by at most one. Earlier shards take the extra entries.
func Split(n, shards int) []Range {
	if shards <= 0 {
		shards = 1
	}
	out := make([]Range, shards)
	base, extra := n/shards, n%shards
	start := 0
	for i := range out {
		size := base
		if i < extra {
			size++
		}
		out[i] = Range{Start: start, End: start + size}
		start += size
	}
	return out
}

// Drafter composes units from agenda entries.
type Drafter struct {
	pipeline config.PipelineConfig
	brand    config.BrandConfig
	scoring  config.ScoringConfig
	assets   content.AssetSet
	logger   *slog.Logger
}

// New creates a Drafter for the configured brand, rotations and asset set.
func New(cfg *config.Config, assets content.AssetSet) *Drafter {
	return &Drafter{
		pipeline: cfg.Pipeline,
		brand:    cfg.Brand,
		scoring:  cfg.Scoring,
		assets:   assets,
		logger:   slog.Default().With("component", "drafter"),
	}
}

// Draft drafts every agenda entry across the given number of shards and
// returns the units in agenda order.
func (d *Drafter) Draft(ctx context.Context, agenda content.Agenda, shards int) (content.UnitBatch, error) {
	start := time.Now()
	ranges := Split(len(agenda.Entries), shards)
	results := make([][]content.ContentUnit, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for shard, r := range ranges {
		entries := agenda.Entries[r.Start:r.End]
		g.Go(func() error {
			units, err := d.DraftShard(gctx, agenda.Run.Seed, shard, entries)
			if err != nil {
				return fmt.Errorf("drafting shard %d: %w", shard, err)
			}
			results[shard] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return content.UnitBatch{}, err
	}

	batch := content.UnitBatch{Run: agenda.Run, Units: make([]content.ContentUnit, 0, len(agenda.Entries))}
	for _, units := range results {
		batch.Units = append(batch.Units, units...)
	}
	d.logger.Info("drafting complete",
		"run_id", agenda.Run.RunID,
		"units", len(batch.Units),
		"shards", len(ranges),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return batch, nil
}

// DraftShard drafts one shard's slice of the agenda. It shares no state with
// other shards and returns identical units for identical inputs.
func (d *Drafter) DraftShard(ctx context.Context, runSeed uint64, shard int, entries []content.AgendaEntry) ([]content.ContentUnit, error) {
	seed := ShardSeed(runSeed, shard)
	units := make([]content.ContentUnit, 0, len(entries))
	for pos, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unitSeed := UnitSeed(seed, pos)
		c := &composer{
			rng:      rand.New(rand.NewPCG(unitSeed, SplitMix64(unitSeed))),
			entry:    entry,
			brand:    d.brand,
			assets:   d.assets,
			cta:      d.pipeline.CTAText(string(entry.CTA)),
			offer:    d.pipeline.OfferText(entry.OfferID),
			interval: d.scoring.CTAInterval,
		}
		unit := c.compose()
		unit.ID = UnitID(entry.Index)
		unit.Index = entry.Index
		unit.Shard = shard
		unit.Seed = unitSeed
		unit.Status = content.StatusDrafted
		units = append(units, unit)
	}
	d.logger.Debug("shard drafted", "shard", shard, "units", len(units))
	return units, nil
}

// UnitID names the unit drafted for the agenda entry at index.
func UnitID(index int) string {
	return fmt.Sprintf("cu-%05d", index)
}
