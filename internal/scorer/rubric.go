package scorer

import (
	"math"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
)

// Composite weights.
const (
	WeightR = 0.20
	WeightD = 0.25
	WeightE = 0.20
	WeightC = 0.15
	WeightB = 0.10
	WeightS = 0.10
)

// Composite is the weighted sum of the six rubric dimensions.
func Composite(s content.Score) float64 {
	return WeightR*s.R + WeightD*s.D + WeightE*s.E + WeightC*s.C + WeightB*s.B + WeightS*s.S
}

// DefaultBands are the Flesch-Kincaid grade targets per family.
var DefaultBands = map[content.Family]config.ReadabilityBand{
	content.FamilyArticle:         {Min: 6, Max: 10},
	content.FamilyFlyer:           {Min: 3, Max: 8},
	content.FamilyAdHeadlines:     {Min: 2, Max: 8},
	content.FamilyEmail:           {Min: 3, Max: 8},
	content.FamilyTestimonialCard: {Min: 2, Max: 8},
	content.FamilyWhitepaper:      {Min: 10, Max: 18},
	content.FamilyProcedure:       {Min: 5, Max: 11},
}

// gradeTolerance is the distance outside the band at which R reaches zero.
const gradeTolerance = 4.0

var (
	statisticPattern = regexp.MustCompile(`\d+(\.\d+)?\s?%`)
	casePattern      = regexp.MustCompile(`(?i)\bcase stud(y|ies)\b`)
	stepPattern      = regexp.MustCompile(`(?i)\bstep \d+\b`)
	digitPattern     = regexp.MustCompile(`\d`)
)

// Grade returns the Flesch-Kincaid grade level of text, false when text has
// no words.
func Grade(text string) (float64, bool) {
	words := tokenizer.Words(text)
	if len(words) == 0 {
		return 0, false
	}
	sentences := len(tokenizer.Sentences(text))
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += tokenizer.Syllables(w)
	}
	wps := float64(len(words)) / float64(sentences)
	spw := float64(syllables) / float64(len(words))
	return 0.39*wps + 11.8*spw - 15.59, true
}

// Band returns the readability target of a family, preferring the
// configured override.
func (s *Scorer) Band(f content.Family) config.ReadabilityBand {
	if b, ok := s.scoring.ReadabilityBands[string(f)]; ok {
		return b
	}
	return DefaultBands[f]
}

func (s *Scorer) readability(u content.ContentUnit) float64 {
	grade, ok := Grade(u.Text.Body())
	if !ok {
		return 0
	}
	band := s.Band(u.Family)
	var dist float64
	switch {
	case grade < band.Min:
		dist = band.Min - grade
	case grade > band.Max:
		dist = grade - band.Max
	}
	return math.Max(0, 1-dist/gradeTolerance)
}

// KeyPoints counts the distinct key points of a body: every bullet and every
// paragraph sentence that carries a figure.
func KeyPoints(t content.RichText) int {
	seen := make(map[string]struct{})
	add := func(s string) {
		key := strings.Join(tokenizer.Terms(s), " ")
		if key != "" {
			seen[key] = struct{}{}
		}
	}
	for _, sec := range t.Sections {
		for _, b := range sec.Bullets {
			add(b)
		}
		for _, p := range sec.Paragraphs {
			for _, sentence := range tokenizer.Sentences(p) {
				if digitPattern.MatchString(sentence) {
					add(sentence)
				}
			}
		}
	}
	return len(seen)
}

// RequiredKeyPoints is the key-point count a body of the given word count
// needs to reach full density.
func (s *Scorer) RequiredKeyPoints(words int) float64 {
	window := s.scoring.WordWindow
	if window <= 0 {
		window = 100
	}
	req := float64(s.scoring.KeyPointsPerWindow) * float64(words) / float64(window)
	return math.Max(1, req)
}

func (s *Scorer) density(u content.ContentUnit) float64 {
	words := len(tokenizer.Words(u.Text.Body()))
	if words == 0 {
		return 0
	}
	return math.Min(1, float64(KeyPoints(u.Text))/s.RequiredKeyPoints(words))
}

// HasEvidence reports whether the unit carries a resolvable testimonial or
// proof point, a statistic, a case reference or a procedural step.
func (s *Scorer) HasEvidence(u content.ContentUnit) bool {
	plain := u.Text.Plain()
	for _, ref := range u.Metadata.EvidenceRefs {
		if i, ok := content.ParseProofRef(ref); ok {
			if i < len(s.brand.ProofPoints) && strings.Contains(plain, s.brand.ProofPoints[i]) {
				return true
			}
			continue
		}
		if a, ok := s.assets.ByID(ref); ok {
			if q := a.Quote(); q != "" && strings.Contains(plain, q) {
				return true
			}
		}
	}
	return statisticPattern.MatchString(plain) || casePattern.MatchString(plain) || stepPattern.MatchString(plain)
}

func (s *Scorer) evidence(u content.ContentUnit) float64 {
	if s.HasEvidence(u) {
		return 1
	}
	return 0
}

// CTAInterval is the maximum section distance between calls to action.
func (s *Scorer) CTAInterval() int {
	if s.scoring.CTAInterval <= 0 {
		return 1
	}
	return s.scoring.CTAInterval
}

// CTAViolations counts sections beyond the allowed run of sections without
// the unit's call to action. The second result is false when the unit has no
// call to action at all.
func (s *Scorer) CTAViolations(u content.ContentUnit) (int, bool) {
	cta := s.pipeline.CTAText(string(u.Metadata.CTAID))
	allowed := s.CTAInterval() - 1
	violations, run, found := 0, 0, false
	flush := func() {
		if run > allowed {
			violations += run - allowed
		}
		run = 0
	}
	for _, sec := range u.Text.Sections {
		if sec.Contains(cta) {
			found = true
			flush()
			continue
		}
		run++
	}
	flush()
	return violations, found
}

func (s *Scorer) cadence(u content.ContentUnit) float64 {
	if !u.Family.PublicFacing() {
		return 1
	}
	violations, found := s.CTAViolations(u)
	if !found || len(u.Text.Sections) == 0 {
		return 0
	}
	return math.Max(0, 1-float64(violations)/float64(len(u.Text.Sections)))
}

// MissingBrandFields lists the configured brand fields absent from text.
func (s *Scorer) MissingBrandFields(text string) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", s.brand.Name},
		{"contact", s.brand.Contact},
		{"slogan", s.brand.Slogan},
		{"guarantee", s.brand.Guarantee},
	} {
		if f.value != "" && !strings.Contains(text, f.value) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (s *Scorer) brandIntegrity(u content.ContentUnit) float64 {
	plain := u.Text.Plain()
	if len(s.MissingBrandFields(plain)) > 0 || len(s.checker.Contradictions(plain)) > 0 {
		return 0
	}
	return 1
}
