package repairer

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/drafter"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
)

// maxAddedPoints bounds the bullets one density fix may add.
const maxAddedPoints = 12

type fixer struct {
	rng     *rand.Rand
	unit    *content.ContentUnit
	scorer  *scorer.Scorer
	brand   config.BrandConfig
	assets  content.AssetSet
	cta     string
	offer   string
	protect []string
}

func (f *fixer) fix(d Dimension) {
	switch d {
	case DimR:
		f.readability()
	case DimD:
		f.density()
	case DimE:
		f.evidence()
	case DimC:
		f.cadence()
	case DimB:
		f.restoreBrand()
	case DimS:
		f.rephrase()
	}
}

// protectedPhrases are verbatim strings other dimensions depend on. Prose
// containing any of them is left alone by the rewriting fixes.
func (f *fixer) protectedPhrases() []string {
	out := []string{f.cta, f.offer, f.brand.Name, f.brand.Contact, f.brand.Slogan, f.brand.Guarantee}
	out = append(out, f.brand.ProofPoints...)
	for _, ref := range f.unit.Metadata.EvidenceRefs {
		if a, ok := f.assets.ByID(ref); ok {
			out = append(out, a.Quote())
		}
	}
	kept := out[:0]
	for _, p := range out {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return kept
}

func (f *fixer) protected(s string) bool {
	for _, p := range f.protect {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// insertBeforeFooter adds a section ahead of the closing brand section.
func (f *fixer) insertBeforeFooter(sec content.Section) {
	secs := f.unit.Text.Sections
	at := len(secs)
	if at > 0 {
		at--
	}
	secs = append(secs, content.Section{})
	copy(secs[at+1:], secs[at:])
	secs[at] = sec
	f.unit.Text.Sections = secs
}

// evidence cites a testimonial, then a proof point, then a case study offer.
func (f *fixer) evidence() {
	if f.scorer.HasEvidence(*f.unit) {
		return
	}
	var fresh []content.Asset
	for _, a := range f.assets.ForFamily(f.unit.Family, content.AssetTestimonial) {
		if a.Quote() != "" && !f.unit.HasAsset(a.ID) {
			fresh = append(fresh, a)
		}
	}
	switch {
	case len(fresh) > 0:
		a := fresh[f.rng.IntN(len(fresh))]
		f.insertBeforeFooter(content.Section{
			Heading:    "What our customers say",
			Paragraphs: []string{`"` + a.Quote() + `"`},
		})
		f.unit.Assets = append(f.unit.Assets, a.ID)
		f.unit.Metadata.EvidenceRefs = append(f.unit.Metadata.EvidenceRefs, a.ID)
		f.protect = append(f.protect, a.Quote())
	case len(f.brand.ProofPoints) > 0:
		i := f.rng.IntN(len(f.brand.ProofPoints))
		f.insertBeforeFooter(content.Section{
			Heading:    "By the numbers",
			Paragraphs: []string{stop(f.brand.ProofPoints[i])},
		})
		f.unit.Metadata.EvidenceRefs = append(f.unit.Metadata.EvidenceRefs, content.ProofRef(i))
	default:
		f.insertBeforeFooter(content.Section{
			Heading:    "See the results",
			Paragraphs: []string{"Ask us for a case study from a recent job like yours."},
		})
	}
}

// cadence puts the call to action in every interval-th section and in the
// last section.
func (f *fixer) cadence() {
	if f.cta == "" || !f.unit.Family.PublicFacing() {
		return
	}
	interval := f.scorer.CTAInterval()
	secs := f.unit.Text.Sections
	for i := range secs {
		if (i+1)%interval != 0 && i != len(secs)-1 {
			continue
		}
		if !secs[i].Contains(f.cta) {
			secs[i].Paragraphs = append([]string{stop(f.cta)}, secs[i].Paragraphs...)
		}
	}
}

// restoreBrand rewrites the closing brand line and normalises brand-name casing.
// Sentences that state a different guarantee are dropped.
func (f *fixer) restoreBrand() {
	secs := f.unit.Text.Sections
	var nameRe *regexp.Regexp
	if f.brand.Name != "" {
		nameRe = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(f.brand.Name))
	}
	for i := range secs {
		secs[i].Paragraphs = f.cleanBrand(secs[i].Paragraphs, nameRe)
		secs[i].Bullets = f.cleanBrand(secs[i].Bullets, nameRe)
	}
	if len(secs) == 0 {
		f.unit.Text.Sections = []content.Section{{}}
		secs = f.unit.Text.Sections
	}
	last := &secs[len(secs)-1]
	var kept []string
	for _, p := range last.Paragraphs {
		if strings.Contains(p, "Contact: ") || (f.brand.Name != "" && strings.HasPrefix(p, f.brand.Name)) {
			continue
		}
		kept = append(kept, p)
	}
	last.Paragraphs = append(kept, drafter.BrandLine(f.brand, true))
}

func (f *fixer) cleanBrand(lines []string, nameRe *regexp.Regexp) []string {
	out := lines[:0]
	for _, l := range lines {
		if nameRe != nil {
			l = nameRe.ReplaceAllString(l, f.brand.Name)
		}
		if f.brand.Guarantee != "" && strings.Contains(strings.ToLower(l), "guarantee") && !strings.Contains(l, f.brand.Guarantee) {
			var keep []string
			for _, s := range tokenizer.Sentences(l) {
				if !strings.Contains(strings.ToLower(s), "guarantee") {
					keep = append(keep, s)
				}
			}
			l = strings.Join(keep, " ")
		}
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// density adds figure-bearing bullets until the key-point minimum is met.
func (f *fixer) density() {
	u := f.unit
	target := -1
	for i, s := range u.Text.Sections {
		if len(s.Bullets) > 0 && (target < 0 || len(s.Bullets) > len(u.Text.Sections[target].Bullets)) {
			target = i
		}
	}
	if target < 0 {
		f.insertBeforeFooter(content.Section{Heading: "Highlights"})
		target = len(u.Text.Sections) - 2
		if target < 0 {
			target = 0
		}
	}
	order := f.rng.Perm(len(pointBank))
	for added := 0; added < maxAddedPoints && added < len(order); added++ {
		words := len(tokenizer.Words(u.Text.Body()))
		if float64(scorer.KeyPoints(u.Text)) >= f.scorer.RequiredKeyPoints(words) {
			return
		}
		p := pointBank[order[added]]
		text := p.text
		if p.hi > 0 {
			text = strings.ReplaceAll(text, "{n}", strconv.Itoa(p.lo+f.rng.IntN(p.hi-p.lo+1)))
		}
		u.Text.Sections[target].Bullets = append(u.Text.Sections[target].Bullets, text)
	}
}

// readability moves the reading grade toward the family band by splitting
// or merging sentences and swapping vocabulary.
func (f *fixer) readability() {
	grade, ok := scorer.Grade(f.unit.Text.Body())
	if !ok {
		return
	}
	band := f.scorer.Band(f.unit.Family)
	switch {
	case grade > band.Max:
		f.rewriteProse(func(p string) string { return simplify(splitLong(p)) })
	case grade < band.Min:
		f.rewriteProse(func(p string) string { return elevate(mergeShort(p)) })
	}
}

// rephrase swaps words for seeded synonyms to move the unit away from
// similar accepted units.
func (f *fixer) rephrase() {
	f.rewriteProse(func(p string) string { return substitute(p, f.rng) })
	secs := f.unit.Text.Sections
	for i := range secs {
		for j, b := range secs[i].Bullets {
			if !f.protected(b) {
				secs[i].Bullets[j] = substitute(b, f.rng)
			}
		}
	}
}

func (f *fixer) rewriteProse(fn func(string) string) {
	secs := f.unit.Text.Sections
	for i := range secs {
		for j, p := range secs[i].Paragraphs {
			if f.protected(p) {
				continue
			}
			secs[i].Paragraphs[j] = fn(p)
		}
	}
}

func stop(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}
