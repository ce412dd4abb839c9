package scorer

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

const brandLine = "Shine Auto. Detail done right. Satisfaction guaranteed or we redo it free. Contact: hello@shineauto.com"

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			QualityThreshold: 0.92,
			CTAs:             []config.CTAConfig{{ID: "book", Text: "Book today"}},
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

func perfectUnit(id string) content.ContentUnit {
	return content.ContentUnit{
		ID:     id,
		Family: content.FamilyFlyer,
		Status: content.StatusDrafted,
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
				{
					Paragraphs: []string{"Book today.", brandLine, `"They made my truck look new."`},
				},
			},
		},
		Metadata: content.Metadata{CTAID: "book", EvidenceRefs: []string{"testimonial-000000000001"}},
	}
}

func TestCompositeScenario(t *testing.T) {
	sc := content.Score{R: 0.5, D: 0.9, E: 1, C: 1, B: 1, S: 1}
	sc.Composite = Composite(sc)
	assert.InDelta(t, 0.875, sc.Composite, 1e-9)
	assert.False(t, New(testConfig(), content.AssetSet{}).Passes(sc))
}

func TestCompositeBounds(t *testing.T) {
	assert.Equal(t, 0.0, Composite(content.Score{}))
	assert.InDelta(t, 1.0, Composite(content.Score{R: 1, D: 1, E: 1, C: 1, B: 1, S: 1}), 1e-12)
}

func TestPerfectUnitIsAccepted(t *testing.T) {
	s := New(testConfig(), testAssets())
	sc, violations := s.Evaluate(perfectUnit("a"), dedup.NewReference())
	assert.Empty(t, violations)
	assert.Equal(t, content.Score{R: 1, D: 1, E: 1, C: 1, B: 1, S: 1, Composite: Composite(sc)}, sc)
	assert.True(t, s.Passes(sc))
}

func TestHardConstraintDominatesComposite(t *testing.T) {
	u := perfectUnit("a")
	u.Text.Sections[1].Paragraphs = append(u.Text.Sections[1].Paragraphs, "Guaranteed results on every car.")
	batch := content.UnitBatch{Units: []content.ContentUnit{u}}

	out, err := New(testConfig(), testAssets()).Run(context.Background(), batch)
	require.NoError(t, err)
	got := out.Units[0]
	assert.Equal(t, content.StatusRejected, got.Status)
	assert.Equal(t, apperrors.ReasonHardConstraint, got.Reason)

	kinds := make(map[string]bool)
	for _, v := range got.Violations {
		kinds[v.Kind] = true
	}
	assert.True(t, kinds[ViolationDisallowedClaim])
	assert.True(t, kinds[ViolationBrandContradiction])
}

func TestRunRoutesAndLeavesInputUntouched(t *testing.T) {
	weak := perfectUnit("b")
	weak.Metadata.EvidenceRefs = nil
	weak.Text.Sections[2].Paragraphs = weak.Text.Sections[2].Paragraphs[:2]
	batch := content.UnitBatch{Units: []content.ContentUnit{perfectUnit("a"), weak}}

	out, err := New(testConfig(), testAssets()).Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, content.StatusAccepted, out.Units[0].Status)
	assert.Equal(t, content.StatusDrafted, out.Units[1].Status)
	assert.Equal(t, 0.0, out.Units[1].Score.E)
	assert.Less(t, out.Units[1].Score.Composite, 0.92)

	assert.Equal(t, content.StatusDrafted, batch.Units[0].Status)
	assert.Equal(t, content.Score{}, batch.Units[0].Score)
}

func TestIdenticalUnitLosesSimilarity(t *testing.T) {
	batch := content.UnitBatch{Units: []content.ContentUnit{perfectUnit("a"), perfectUnit("b")}}
	out, err := New(testConfig(), testAssets()).Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, content.StatusAccepted, out.Units[0].Status)
	assert.Equal(t, 0.0, out.Units[1].Score.S)
	assert.InDelta(t, 0.9, out.Units[1].Score.Composite, 1e-9)
	assert.Equal(t, content.StatusDrafted, out.Units[1].Status)
}

func TestCadence(t *testing.T) {
	s := New(testConfig(), testAssets())

	u := perfectUnit("a")
	for i := range u.Text.Sections {
		u.Text.Sections[i].Paragraphs = removeString(u.Text.Sections[i].Paragraphs, "Book today.")
	}
	assert.Equal(t, 0.0, s.Rubric(u).C, "public unit without a CTA")

	u.Family = content.FamilyWhitepaper
	assert.Equal(t, 1.0, s.Rubric(u).C, "non-public family is exempt")

	u = perfectUnit("a")
	u.Text.Sections[0].Paragraphs = u.Text.Sections[0].Paragraphs[1:]
	u.Text.Sections = append([]content.Section{{Paragraphs: []string{"One."}}, {Paragraphs: []string{"Two."}}}, u.Text.Sections...)
	// five sections, CTA only in the last: four in a row without one
	violations, found := s.CTAViolations(u)
	assert.True(t, found)
	assert.Equal(t, 2, violations)
	assert.InDelta(t, 0.6, s.Rubric(u).C, 1e-9)
}

func TestDensityWithoutKeyPoints(t *testing.T) {
	u := perfectUnit("a")
	for i := range u.Text.Sections {
		u.Text.Sections[i].Bullets = nil
	}
	u.Text.Sections[0].Paragraphs = []string{"Book today.", "We finish most cars fast."}
	assert.Equal(t, 0, KeyPoints(u.Text))
	assert.Equal(t, 0.0, New(testConfig(), testAssets()).Rubric(u).D)
}

func TestGradeAndReadability(t *testing.T) {
	g, ok := Grade("The cat sat.")
	require.True(t, ok)
	assert.InDelta(t, -2.62, g, 1e-9)

	_, ok = Grade("")
	assert.False(t, ok)

	cfg := testConfig()
	cfg.Scoring.ReadabilityBands["flyer"] = config.ReadabilityBand{Min: 0, Max: 5}
	u := perfectUnit("a")
	u.Text.Sections = []content.Section{{Paragraphs: []string{"The cat sat."}}}
	assert.InDelta(t, 1-2.62/4, New(cfg, content.AssetSet{}).Rubric(u).R, 1e-9)
}

func TestBrandIntegrity(t *testing.T) {
	s := New(testConfig(), testAssets())

	u := perfectUnit("a")
	u.Text.Sections[2].Paragraphs[1] = "Shine Auto. Satisfaction guaranteed or we redo it free. Contact: hello@shineauto.com"
	assert.Equal(t, 0.0, s.Rubric(u).B, "missing slogan")

	u = perfectUnit("a")
	u.Text.Sections[1].Paragraphs = []string{"Ask shine auto about coatings."}
	assert.Equal(t, 0.0, s.Rubric(u).B)
	assert.NotEmpty(t, s.Violations(u))
}

func TestPIIAndEarnings(t *testing.T) {
	c := NewChecker(testConfig().Brand)

	v := c.Check("Write to jane.doe@example.com or call (555) 123-4567.")
	require.Len(t, v, 2)
	assert.Equal(t, ViolationPIILeak, v[0].Kind)
	assert.NotContains(t, v[0].Detail, "jane")

	assert.Empty(t, c.Check("Contact: hello@shineauto.com"))

	v = c.Check("Partners earn $500 per week.")
	require.NotEmpty(t, v)
	assert.Equal(t, ViolationEarningsClaim, v[0].Kind)
	assert.Empty(t, c.Check("Partners earn $500 per week. Results may vary."))

	phoneBrand := testConfig().Brand
	phoneBrand.Contact = "(555) 123-4567"
	assert.Empty(t, NewChecker(phoneBrand).Check("Call 555-123-4567 today."))
}

func TestConfiguredPrivateIdentifier(t *testing.T) {
	brand := testConfig().Brand
	brand.PrivateIdentifiers = []string{"ACCT-99812"}
	brand.DisallowedClaims = []string{"best in the world"}
	c := NewChecker(brand)

	v := c.Check("Reference acct-99812 for billing.")
	require.Len(t, v, 1)
	assert.Equal(t, ViolationPIILeak, v[0].Kind)

	v = c.Check("We are the best in the world!")
	require.Len(t, v, 1)
	assert.Equal(t, ViolationDisallowedClaim, v[0].Kind)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "mail [email] or tel:[phone]", Redact("mail a.b@c.io or tel:555-123-4567"))
}

func removeString(in []string, s string) []string {
	var out []string
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func TestExcerptKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "Caf...", excerpt("Café crème", 4))
	assert.Equal(t, "Café...", excerpt("Café crème", 5))
	assert.Equal(t, "short", excerpt("short", 80))
	for n := range len("ｗａｘ polish") {
		assert.True(t, utf8.ValidString(excerpt("ｗａｘ polish", n)), n)
	}
}
