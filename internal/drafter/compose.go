package drafter

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
)

// Omission rates for the defects drafts are allowed to carry into scoring.
const (
	pOmitEvidence  = 0.30
	pDropBullets   = 0.25
	pDropMidCTA    = 0.20
	pDropFooterCTA = 0.10
	pOmitSlogan    = 0.15
	pHype          = 0.03
)

type composer struct {
	rng      *rand.Rand
	entry    content.AgendaEntry
	brand    config.BrandConfig
	assets   content.AssetSet
	cta      string
	offer    string
	interval int

	svc   service
	style string
	used  []string
	refs  []string
}

func (c *composer) compose() content.ContentUnit {
	c.svc = services[c.rng.IntN(len(services))]
	c.style = styleFor(c.entry.Tone)
	family := c.entry.Family

	var sections []content.Section
	switch family {
	case content.FamilyArticle:
		sections = c.article()
	case content.FamilyFlyer:
		sections = c.flyer()
	case content.FamilyAdHeadlines:
		sections = c.adHeadlines()
	case content.FamilyEmail:
		sections = c.email()
	case content.FamilyWhitepaper:
		sections = c.whitepaper()
	case content.FamilyProcedure:
		sections = c.procedure()
	case content.FamilyTestimonialCard:
		sections = c.testimonialCard()
	}

	if c.chance(pDropBullets) {
		var withBullets []int
		for i, s := range sections {
			if len(s.Bullets) > 0 {
				withBullets = append(withBullets, i)
			}
		}
		if len(withBullets) > 0 {
			sections[withBullets[c.rng.IntN(len(withBullets))]].Bullets = nil
		}
	}
	if family != content.FamilyTestimonialCard && !c.chance(pOmitEvidence) {
		if ev, ok := c.evidence(); ok {
			sections = append(sections, ev)
		}
	}
	if c.chance(pHype) {
		last := &sections[len(sections)-1]
		last.Paragraphs = append(last.Paragraphs, hype[c.rng.IntN(len(hype))])
	}
	sections = append(sections, c.footer())
	if family.PublicFacing() {
		c.placeCTAs(sections)
	}

	unit := content.ContentUnit{
		Family: family,
		Tone:   c.entry.Tone,
		Text: content.RichText{
			Title:    c.fill(line{text: c.pick(titles[string(family)])}),
			Sections: sections,
		},
		Metadata: content.Metadata{
			CTAID:        c.entry.CTA,
			OfferID:      c.entry.OfferID,
			EvidenceRefs: c.refs,
		},
	}
	unit.Assets = append(c.visuals(), c.used...)
	return unit
}

func (c *composer) article() []content.Section {
	intro := content.Section{
		Paragraphs: []string{c.opener() + " " + c.sentences(articleSentences, 2)},
	}
	out := []content.Section{intro}
	for _, h := range c.pickN(articleHeadings, 3) {
		out = append(out, content.Section{
			Heading:    c.fill(line{text: h}),
			Paragraphs: []string{c.sentences(articleSentences, 2+c.rng.IntN(2))},
			Bullets:    c.lines(keyPoints, 3),
		})
	}
	return out
}

func (c *composer) flyer() []content.Section {
	out := []content.Section{{
		Heading:    c.fill(line{text: "Why choose {brand}"}),
		Paragraphs: []string{c.opener() + " " + c.sentences(simpleSentences, 2)},
		Bullets:    c.lines(keyPoints, 4),
	}}
	if c.offer != "" {
		out = append(out, content.Section{
			Heading:    "This month's offer",
			Paragraphs: []string{ensureStop(c.offer) + " " + c.sentences(simpleSentences, 1)},
		})
	}
	return out
}

func (c *composer) adHeadlines() []content.Section {
	desc := []string{c.opener() + " " + c.sentences(simpleSentences, 1)}
	if c.offer != "" {
		desc = append(desc, ensureStop(c.offer))
	}
	return []content.Section{
		{Heading: "Headlines", Bullets: c.lines(headlines, 5)},
		{Heading: "Descriptions", Paragraphs: desc},
	}
}

func (c *composer) email() []content.Section {
	out := []content.Section{
		{Paragraphs: []string{"Hi there,", c.opener() + " " + c.sentences(simpleSentences, 3)}},
		{Heading: "What you get", Bullets: c.lines(keyPoints, 4)},
	}
	if c.offer != "" {
		out = append(out, content.Section{
			Heading:    "Your offer",
			Paragraphs: []string{ensureStop(c.offer) + " " + c.sentences(simpleSentences, 1)},
		})
	}
	return out
}

func (c *composer) whitepaper() []content.Section {
	headings := c.pickN(whitepaperHeadings[1:], 3)
	out := []content.Section{{
		Heading:    whitepaperHeadings[0],
		Paragraphs: []string{c.sentences(whitepaperSentences, 2)},
	}}
	for _, h := range headings {
		out = append(out, content.Section{
			Heading:    h,
			Paragraphs: []string{c.sentences(whitepaperSentences, 2)},
			Bullets:    c.lines(whitepaperPoints, 3),
		})
	}
	return out
}

func (c *composer) procedure() []content.Section {
	var steps []string
	for i, s := range procedureSteps {
		if i > 1 && i < len(procedureSteps)-2 && c.chance(0.2) {
			continue
		}
		steps = append(steps, fmt.Sprintf("Step %d: %s", len(steps)+1, c.fill(s)))
	}
	return []content.Section{
		{Heading: "Scope", Paragraphs: []string{c.sentences(procedureSentences, 2)}},
		{Heading: "Steps", Bullets: steps},
		{Heading: "Aftercare", Paragraphs: []string{c.sentences(procedureSentences, 1)}, Bullets: c.lines(aftercarePoints, 2)},
	}
}

func (c *composer) testimonialCard() []content.Section {
	quote := ""
	if ts := c.assets.ForFamily(c.entry.Family, content.AssetTestimonial); len(ts) > 0 && !c.chance(pOmitEvidence) {
		a := ts[c.rng.IntN(len(ts))]
		quote = a.Quote()
		c.cite(a.ID)
	} else {
		quote = c.pick(fallbackQuotes)
	}
	return []content.Section{
		{Paragraphs: []string{`"` + quote + `"`}},
		{Paragraphs: []string{c.sentences(simpleSentences, 1)}, Bullets: c.lines(keyPoints, 2)},
	}
}

// evidence returns a section citing a testimonial or, failing that, a proof
// point from the brand configuration.
func (c *composer) evidence() (content.Section, bool) {
	if ts := c.assets.ForFamily(c.entry.Family, content.AssetTestimonial); len(ts) > 0 {
		a := ts[c.rng.IntN(len(ts))]
		c.cite(a.ID)
		return content.Section{
			Heading:    "What our customers say",
			Paragraphs: []string{`"` + a.Quote() + `"`},
		}, true
	}
	if len(c.brand.ProofPoints) > 0 {
		i := c.rng.IntN(len(c.brand.ProofPoints))
		c.refs = append(c.refs, content.ProofRef(i))
		return content.Section{
			Heading:    "By the numbers",
			Paragraphs: []string{ensureStop(c.brand.ProofPoints[i])},
		}, true
	}
	return content.Section{}, false
}

func (c *composer) cite(assetID string) {
	c.used = append(c.used, assetID)
	c.refs = append(c.refs, assetID)
}

func (c *composer) footer() content.Section {
	return content.Section{Paragraphs: []string{BrandLine(c.brand, !c.chance(pOmitSlogan))}}
}

// BrandLine renders the brand sign-off from the configured fields.
func BrandLine(b config.BrandConfig, withSlogan bool) string {
	var parts []string
	if b.Name != "" {
		parts = append(parts, ensureStop(b.Name))
	}
	if withSlogan && b.Slogan != "" {
		parts = append(parts, ensureStop(b.Slogan))
	}
	if b.Guarantee != "" {
		parts = append(parts, ensureStop(b.Guarantee))
	}
	if b.Contact != "" {
		parts = append(parts, "Contact: "+b.Contact)
	}
	return strings.Join(parts, " ")
}

// placeCTAs puts the call to action in every interval-th section and in the
// closing section, then drops some of them at the configured rates.
func (c *composer) placeCTAs(sections []content.Section) {
	if c.cta == "" {
		return
	}
	interval := c.interval
	if interval <= 0 {
		interval = 1
	}
	last := len(sections) - 1
	for i := range sections {
		switch {
		case i == last:
			if c.chance(pDropFooterCTA) {
				continue
			}
		case (i+1)%interval == 0:
			if c.chance(pDropMidCTA) {
				continue
			}
		default:
			continue
		}
		sections[i].Paragraphs = append([]string{ensureStop(c.cta)}, sections[i].Paragraphs...)
	}
}

func (c *composer) visuals() []string {
	var out []string
	if logos := c.assets.ForFamily(c.entry.Family, content.AssetLogo); len(logos) > 0 {
		out = append(out, logos[0].ID)
	}
	if photos := c.assets.ForFamily(c.entry.Family, content.AssetPhoto); len(photos) > 0 && c.chance(0.7) {
		out = append(out, photos[c.rng.IntN(len(photos))].ID)
	}
	return out
}

func (c *composer) opener() string {
	return c.pick(openers[c.style])
}

func (c *composer) sentences(bank []line, n int) string {
	return strings.Join(c.lines(bank, n), " ")
}

func (c *composer) lines(bank []line, n int) []string {
	if n > len(bank) {
		n = len(bank)
	}
	out := make([]string, 0, n)
	for _, i := range c.rng.Perm(len(bank))[:n] {
		out = append(out, c.fill(bank[i]))
	}
	return out
}

func (c *composer) pickN(bank []string, n int) []string {
	if n > len(bank) {
		n = len(bank)
	}
	out := make([]string, 0, n)
	for _, i := range c.rng.Perm(len(bank))[:n] {
		out = append(out, bank[i])
	}
	return out
}

func (c *composer) pick(bank []string) string {
	return bank[c.rng.IntN(len(bank))]
}

func (c *composer) chance(p float64) bool {
	return c.rng.Float64() < p
}

func (c *composer) fill(l line) string {
	s := strings.NewReplacer(
		"{brand}", c.brand.Name,
		"{service}", c.svc.name,
		"{Service}", capitalize(c.svc.name),
		"{benefit}", c.svc.benefit,
	).Replace(l.text)
	if l.hi > 0 {
		s = strings.ReplaceAll(s, "{n}", strconv.Itoa(l.lo+c.rng.IntN(l.hi-l.lo+1)))
	}
	return s
}

// styleFor maps a configured tone onto a phrase style. Unknown tones are
// hashed onto the known styles so they still vary deterministically.
func styleFor(t content.Tone) string {
	name := strings.ToLower(string(t))
	if _, ok := openers[name]; ok {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return styles[int(h.Sum32()%uint32(len(styles)))]
}

func ensureStop(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
