package repairer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const brandLine = "Shine Auto. Detail done right. Satisfaction guaranteed or we redo it free. Contact: hello@shineauto.com"

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			QualityThreshold:  0.92,
			MaxRepairAttempts: 3,
			CTAs:              []config.CTAConfig{{ID: "book", Text: "Book today"}},
		},
		Brand: config.BrandConfig{
			Name:      "Shine Auto",
			Contact:   "hello@shineauto.com",
			Slogan:    "Detail done right",
			Guarantee: "Satisfaction guaranteed or we redo it free",
		},
		Scoring: config.ScoringConfig{
			CTAInterval:        3,
			KeyPointsPerWindow: 3,
			WordWindow:         100,
			ShingleSize:        5,
			ReadabilityBands:   map[string]config.ReadabilityBand{"flyer": {Min: -50, Max: 50}},
		},
	}
}

func testAssets() content.AssetSet {
	return content.AssetSet{Assets: []content.Asset{{
		ID:   "testimonial-000000000001",
		Kind: content.AssetTestimonial,
		Text: "They made my truck look new. Highly recommend.",
	}}}
}

// weakUnit scores 1 on every dimension except evidence.
func weakUnit(id string) content.ContentUnit {
	return content.ContentUnit{
		ID:     id,
		Family: content.FamilyFlyer,
		Status: content.StatusDrafted,
		Seed:   42,
		Text: content.RichText{
			Title: "Ceramic coating near you",
			Sections: []content.Section{
				{
					Paragraphs: []string{"Book today.", "We finish most cars in 3 hours."},
					Bullets:    []string{"Protection for 12 months", "Free pickup within 10 miles", "Clear prices with no hidden fees"},
				},
				{
					Paragraphs: []string{"Our crew uses gentle soap."},
					Bullets:    []string{"Safe on paint and trim", "Photos before and after"},
				},
				{Paragraphs: []string{"Book today.", brandLine}},
			},
		},
		Metadata: content.Metadata{CTAID: "book"},
	}
}

func setup(t *testing.T, cfg *config.Config) (*Repairer, *scorer.Scorer) {
	t.Helper()
	sc := scorer.New(cfg, testAssets())
	return New(cfg, testAssets(), sc), sc
}

func scored(sc *scorer.Scorer, u content.ContentUnit) content.ContentUnit {
	u.Score, _ = sc.Evaluate(u, dedup.NewReference())
	return u
}

func TestWeakestOrdering(t *testing.T) {
	assert.Equal(t, []Dimension{DimE, DimR}, Weakest(content.Score{R: 0.5, D: 0.9, E: 0, C: 1, B: 1, S: 1}, 2))
	assert.Equal(t, []Dimension{DimR, DimD}, Weakest(content.Score{R: 0.5, D: 0.5, E: 1, C: 1, B: 1, S: 0.5}, 2))
	assert.Equal(t, []Dimension{DimS}, Weakest(content.Score{R: 1, D: 1, E: 1, C: 1, B: 1, S: 0.2}, 2))
	assert.Empty(t, Weakest(content.Score{R: 1, D: 1, E: 1, C: 1, B: 1, S: 1}, 2))
}

func TestRepairAddsEvidence(t *testing.T) {
	r, sc := setup(t, testConfig())
	u := scored(sc, weakUnit("a"))
	require.Equal(t, 0.0, u.Score.E)
	require.False(t, sc.Passes(u.Score))

	r.Repair(&u, dedup.NewReference())
	assert.Equal(t, content.StatusAccepted, u.Status)
	assert.Equal(t, 1, u.Attempts)
	assert.Equal(t, 1.0, u.Score.E)
	assert.Contains(t, u.Metadata.EvidenceRefs, "testimonial-000000000001")
	assert.Contains(t, u.Assets, "testimonial-000000000001")
	assert.Contains(t, u.Text.Plain(), "They made my truck look new.")
	assert.Contains(t, u.Text.Sections[len(u.Text.Sections)-1].Paragraphs, brandLine, "footer stays last")
}

func TestRepairFallsBackToProofPoint(t *testing.T) {
	cfg := testConfig()
	cfg.Brand.ProofPoints = []string{"Trusted by 400 local drivers"}
	sc := scorer.New(cfg, content.AssetSet{})
	r := New(cfg, content.AssetSet{}, sc)

	u := scored(sc, weakUnit("a"))
	r.Repair(&u, nil)
	assert.Equal(t, content.StatusAccepted, u.Status)
	assert.Equal(t, []string{content.ProofRef(0)}, u.Metadata.EvidenceRefs)
	assert.True(t, u.Text.Contains("Trusted by 400 local drivers"))
}

func TestRepairIsDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.Brand.ProofPoints = []string{"Trusted by 400 local drivers", "Rated 4.9 by our customers"}
	sc := scorer.New(cfg, content.AssetSet{})
	r := New(cfg, content.AssetSet{}, sc)

	a := scored(sc, weakUnit("a"))
	b := a.Clone()
	r.Repair(&a, nil)
	r.Repair(&b, nil)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repair not deterministic (-a +b):\n%s", diff)
	}
}

func TestRepairStopsAtAttemptCap(t *testing.T) {
	for _, limit := range []int{0, 1, 2, 3} {
		t.Run(fmt.Sprintf("max_%d", limit), func(t *testing.T) {
			cfg := testConfig()
			cfg.Pipeline.QualityThreshold = 1.01
			cfg.Pipeline.MaxRepairAttempts = limit
			r, sc := setup(t, cfg)

			u := scored(sc, weakUnit("a"))
			r.Repair(&u, dedup.NewReference())
			assert.Equal(t, content.StatusRejected, u.Status)
			assert.Equal(t, apperrors.ReasonRepairExhausted, u.Reason)
			assert.Equal(t, limit, u.Attempts)
			assert.Empty(t, u.Violations)
		})
	}
}

func TestRepairRejectsHardViolations(t *testing.T) {
	r, sc := setup(t, testConfig())
	u := weakUnit("a")
	u.Text.Sections[1].Paragraphs = append(u.Text.Sections[1].Paragraphs, "Act now before this deal is gone!")
	u = scored(sc, u)

	r.Repair(&u, dedup.NewReference())
	assert.Equal(t, content.StatusRejected, u.Status)
	assert.Equal(t, apperrors.ReasonHardConstraint, u.Reason)
	assert.Zero(t, u.Attempts)
	require.NotEmpty(t, u.Violations)
	assert.Equal(t, scorer.ViolationDisallowedClaim, u.Violations[0].Kind)
}

func TestRunRepairsOnlyDraftedUnits(t *testing.T) {
	r, sc := setup(t, testConfig())
	accepted := weakUnit("a")
	accepted.Text.Sections = []content.Section{{Paragraphs: []string{"Wheel and tire care for work trucks, with brake dust stripped away."}}}
	accepted.Status = content.StatusAccepted
	rejected := weakUnit("c")
	rejected.Status = content.StatusRejected
	rejected.Reason = apperrors.ReasonRepairExhausted

	batch := content.UnitBatch{Units: []content.ContentUnit{accepted, scored(sc, weakUnit("b")), rejected}}
	out, err := r.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, accepted, out.Units[0])
	assert.Equal(t, 1, out.Units[1].Attempts)
	assert.Equal(t, content.StatusAccepted, out.Units[1].Status)
	assert.Equal(t, rejected, out.Units[2])
	assert.Equal(t, content.StatusDrafted, batch.Units[1].Status, "input batch untouched")
	assert.Zero(t, batch.Units[1].Attempts)
}

func TestRunHonoursCancellation(t *testing.T) {
	r, sc := setup(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, content.UnitBatch{Units: []content.ContentUnit{scored(sc, weakUnit("a"))}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCadenceFixPlacesCTA(t *testing.T) {
	cfg := testConfig()
	sc := scorer.New(cfg, testAssets())
	u := weakUnit("a")
	u.Text.Sections[0].Paragraphs = u.Text.Sections[0].Paragraphs[1:]
	u.Text.Sections[2].Paragraphs = u.Text.Sections[2].Paragraphs[1:]
	require.Equal(t, 0.0, sc.Rubric(u).C)

	f := &fixer{rng: rand.New(rand.NewPCG(1, 2)), unit: &u, scorer: sc, brand: cfg.Brand, cta: "Book today"}
	f.fix(DimC)
	assert.Equal(t, "Book today.", u.Text.Sections[2].Paragraphs[0])
	assert.Equal(t, 1.0, sc.Rubric(u).C)
}

func TestBrandFixRestoresFooter(t *testing.T) {
	cfg := testConfig()
	sc := scorer.New(cfg, testAssets())
	u := weakUnit("a")
	u.Text.Sections[1].Paragraphs = []string{"Ask shine auto about coatings. Every job is guaranteed."}
	u.Text.Sections[2].Paragraphs = []string{"Book today.", "Shine Auto. Contact: hello@shineauto.com"}
	require.Equal(t, 0.0, sc.Rubric(u).B)

	f := &fixer{rng: rand.New(rand.NewPCG(1, 2)), unit: &u, scorer: sc, brand: cfg.Brand, cta: "Book today"}
	f.fix(DimB)
	assert.Equal(t, []string{"Ask Shine Auto about coatings."}, u.Text.Sections[1].Paragraphs)
	assert.Equal(t, []string{"Book today.", brandLine}, u.Text.Sections[2].Paragraphs)
	assert.Equal(t, 1.0, sc.Rubric(u).B)
	assert.Empty(t, sc.Violations(u))
}

func TestDensityFixAddsKeyPoints(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.KeyPointsPerWindow = 12
	sc := scorer.New(cfg, testAssets())
	u := weakUnit("a")
	before := scorer.KeyPoints(u.Text)
	require.Less(t, sc.Rubric(u).D, 1.0)

	f := &fixer{rng: rand.New(rand.NewPCG(1, 2)), unit: &u, scorer: sc, brand: cfg.Brand}
	f.fix(DimD)
	assert.Greater(t, scorer.KeyPoints(u.Text), before)
	assert.Equal(t, 1.0, sc.Rubric(u).D)
}

func TestProtectedProseIsNotRewritten(t *testing.T) {
	cfg := testConfig()
	sc := scorer.New(cfg, testAssets())
	u := weakUnit("a")
	f := &fixer{rng: rand.New(rand.NewPCG(7, 7)), unit: &u, scorer: sc, brand: cfg.Brand, cta: "Book today"}
	f.protect = f.protectedPhrases()
	for range 5 {
		f.fix(DimS)
	}
	assert.Equal(t, []string{"Book today.", brandLine}, u.Text.Sections[2].Paragraphs)
}

func TestSplitAndMergeSentences(t *testing.T) {
	long := "We wash the body by hand with gentle soap, and then we dry every panel with soft towels."
	got := splitLong(long)
	assert.Equal(t, "We wash the body by hand with gentle soap. Then we dry every panel with soft towels.", got)

	assert.Equal(t, "We come to you, and we bring our own water.", mergeShort("We come to you. We bring our own water."))
	assert.Equal(t, "Short one.", mergeShort("Short one."))
}

func TestSimplifyAndElevateKeepCase(t *testing.T) {
	assert.Equal(t, "Use a skilled crew for your car.", simplify("Utilize a professional crew for your vehicle."))
	assert.True(t, strings.HasPrefix(elevate("Car care made simple."), "Vehicle maintenance"))
}
