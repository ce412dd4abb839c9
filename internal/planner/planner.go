// Package planner builds a run's generation agenda: how many units of each
// family to draft, in what order, and under which tone, call to action and
// offer.
//
// Family counts are apportioned with the largest-remainder method, families
// are interleaved with a smooth weighted round-robin, and tone/CTA pairs
// come from a round-robin with carry over the tone×CTA product so that
// consecutive entries never share both tone and CTA while another pair is
// available.
package planner

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Build produces the agenda for run from the pipeline configuration.
func Build(run content.RunMeta, cfg config.PipelineConfig) (content.Agenda, error) {
	families, weights, err := parseFamilies(cfg.Families)
	if err != nil {
		return content.Agenda{}, err
	}
	if len(cfg.Tones) == 0 || len(cfg.CTAs) == 0 {
		return content.Agenda{}, apperrors.New(apperrors.ErrInvalidConfig, "", "tone and cta rotations must not be empty")
	}
	tones, err := uniqueTones(cfg.Tones)
	if err != nil {
		return content.Agenda{}, err
	}
	ctas, err := uniqueCTAs(cfg.CTAs)
	if err != nil {
		return content.Agenda{}, err
	}
	if cfg.TargetCount <= 0 {
		return content.Agenda{}, apperrors.New(apperrors.ErrInvalidConfig, "", "target count must be positive")
	}

	counts := Apportion(cfg.TargetCount, weights)
	order := interleave(families, counts)
	rot := newRotation(len(tones), len(ctas))

	offerCursor := make(map[content.Family]int)
	entries := make([]content.AgendaEntry, len(order))
	for i, family := range order {
		t, c := rot.next()
		entry := content.AgendaEntry{
			Index:  i,
			Family: family,
			Tone:   tones[t],
			CTA:    ctas[c],
		}
		if len(cfg.Offers) > 0 {
			entry.OfferID = cfg.Offers[offerCursor[family]%len(cfg.Offers)].ID
			offerCursor[family]++
		}
		entries[i] = entry
	}

	slog.Default().With("component", "planner").Info("agenda built",
		"run_id", run.RunID,
		"entries", len(entries),
		"families", len(families),
		"tones", len(tones),
		"ctas", len(ctas),
	)
	return content.Agenda{Run: run, Entries: entries}, nil
}

// Apportion splits total across weights with the largest-remainder method.
// Each share gets floor(total*w/sum); the leftover units go to the largest
// fractional remainders, ties broken by position.
func Apportion(total int, weights []float64) []int {
	counts := make([]int, len(weights))
	if total <= 0 || len(weights) == 0 {
		return counts
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(weights))
	assigned := 0
	for i, w := range weights {
		quota := float64(total) * w / sum
		floor := math.Floor(quota)
		counts[i] = int(floor)
		assigned += counts[i]
		rems[i] = rem{idx: i, frac: quota - floor}
	}
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for i := 0; assigned < total; i++ {
		counts[rems[i%len(rems)].idx]++
		assigned++
	}
	return counts
}

// interleave orders families with a smooth weighted round-robin over their
// counts: each step every family gains its count, the leader is emitted and
// pays back the total. Ties go to the earlier family.
func interleave(families []content.Family, counts []int) []content.Family {
	total := 0
	for _, c := range counts {
		total += c
	}
	current := make([]int, len(counts))
	remaining := append([]int(nil), counts...)
	out := make([]content.Family, 0, total)
	for len(out) < total {
		best := -1
		for i := range families {
			if remaining[i] == 0 {
				continue
			}
			current[i] += counts[i]
			if best < 0 || current[i] > current[best] {
				best = i
			}
		}
		current[best] -= total
		remaining[best]--
		out = append(out, families[best])
	}
	return out
}

// rotation hands out (tone, cta) index pairs. The tone advances every step;
// the CTA advances every step and carries forward past pairs already used in
// the current cycle of tones×ctas entries.
type rotation struct {
	tones, ctas int
	step        int
	lastCTA     int
	used        map[[2]int]struct{}
}

func newRotation(tones, ctas int) *rotation {
	return &rotation{tones: tones, ctas: ctas, lastCTA: -1, used: make(map[[2]int]struct{})}
}

func (r *rotation) next() (int, int) {
	cycle := r.tones * r.ctas
	if len(r.used) == cycle {
		r.used = make(map[[2]int]struct{})
	}
	t := r.step % r.tones
	c := (r.lastCTA + 1) % r.ctas
	for i := 0; i < r.ctas; i++ {
		if _, taken := r.used[[2]int{t, c}]; !taken {
			break
		}
		c = (c + 1) % r.ctas
	}
	r.used[[2]int{t, c}] = struct{}{}
	r.lastCTA = c
	r.step++
	return t, c
}

func parseFamilies(fws []config.FamilyWeight) ([]content.Family, []float64, error) {
	if len(fws) == 0 {
		return nil, nil, apperrors.New(apperrors.ErrInvalidConfig, "", "no content families enabled")
	}
	families := make([]content.Family, 0, len(fws))
	weights := make([]float64, 0, len(fws))
	seen := make(map[content.Family]struct{})
	for _, fw := range fws {
		f, err := content.ParseFamily(fw.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
		}
		if _, dup := seen[f]; dup {
			return nil, nil, apperrors.Newf(apperrors.ErrInvalidConfig, "", "family %s enabled twice", f)
		}
		if fw.Weight <= 0 {
			return nil, nil, apperrors.Newf(apperrors.ErrInvalidConfig, "", "family %s has non-positive weight", f)
		}
		seen[f] = struct{}{}
		families = append(families, f)
		weights = append(weights, fw.Weight)
	}
	return families, weights, nil
}

func uniqueTones(raw []string) ([]content.Tone, error) {
	out := make([]content.Tone, 0, len(raw))
	seen := make(map[string]struct{})
	for _, t := range raw {
		if t == "" {
			return nil, apperrors.New(apperrors.ErrInvalidConfig, "", "empty tone in rotation")
		}
		if _, dup := seen[t]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "", "tone %q listed twice", t)
		}
		seen[t] = struct{}{}
		out = append(out, content.Tone(t))
	}
	return out, nil
}

func uniqueCTAs(raw []config.CTAConfig) ([]content.CTAID, error) {
	out := make([]content.CTAID, 0, len(raw))
	seen := make(map[string]struct{})
	for _, c := range raw {
		if c.ID == "" {
			return nil, apperrors.New(apperrors.ErrInvalidConfig, "", "empty cta id in rotation")
		}
		if _, dup := seen[c.ID]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "", "cta %q listed twice", c.ID)
		}
		seen[c.ID] = struct{}{}
		out = append(out, content.CTAID(c.ID))
	}
	return out, nil
}
