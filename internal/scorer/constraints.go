package scorer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
)

// Hard-constraint violation kinds.
const (
	ViolationDisallowedClaim    = "disallowed_claim"
	ViolationEarningsClaim      = "earnings_claim"
	ViolationPIILeak            = "pii_leak"
	ViolationBrandContradiction = "brand_contradiction"
)

// builtinClaims are rejected in every run on top of the configured list.
var builtinClaims = map[string][]string{
	"earnings": {
		"guaranteed income", "guaranteed results", "get rich quick",
		"make money fast", "no work required", "100% success rate",
		"unlimited income", "instant profits", "risk-free investment",
	},
	"medical": {
		"diagnose", "medical advice", "health benefits",
		"clinical results", "FDA approved",
	},
	"financial": {
		"investment advice", "financial planning", "stock tips",
		"insider information", "tax avoidance", "legal loopholes",
	},
	"spam": {
		"act now", "urgent response required", "congratulations you've won",
		"click here immediately", "free trial no strings", "too good to be true",
	},
	"franchise": {
		"no experience required", "guaranteed territory", "instant success",
		"passive income guaranteed", "work from home easily",
		"become your own boss overnight",
	},
}

var claimCategories = []string{"earnings", "medical", "financial", "spam", "franchise"}

var (
	earningsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$[\d,]+\s*(per|/)\s*(month|year|week)`),
		regexp.MustCompile(`(?i)[\d,]+%\s*(roi|return|profit)`),
		regexp.MustCompile(`(?i)make\s+\$[\d,]+`),
		regexp.MustCompile(`(?i)earn\s+\$[\d,]+`),
		regexp.MustCompile(`(?i)[\d,]+x\s*(return|roi)`),
	}
	disclaimers = []string{
		"results may vary", "not typical", "disclaimer", "past performance",
		"no guarantee", "individual results", "may not achieve",
	}

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

type claim struct {
	category string
	text     string
	re       *regexp.Regexp
}

// Checker evaluates the hard constraints of a unit's text. It is safe for
// concurrent use.
type Checker struct {
	brand    config.BrandConfig
	claims   []claim
	nameRe   *regexp.Regexp
	guarRe   *regexp.Regexp
	contactD string
}

// NewChecker compiles the built-in and configured claim lists for brand.
func NewChecker(brand config.BrandConfig) *Checker {
	c := &Checker{brand: brand}
	if phonePattern.MatchString(brand.Contact) {
		c.contactD = digits(brand.Contact)
	}
	for _, cat := range claimCategories {
		for _, text := range builtinClaims[cat] {
			c.claims = append(c.claims, claim{category: cat, text: text, re: phraseRegexp(text)})
		}
	}
	for _, text := range brand.DisallowedClaims {
		if strings.TrimSpace(text) == "" {
			continue
		}
		c.claims = append(c.claims, claim{category: "configured", text: text, re: phraseRegexp(text)})
	}
	if brand.Name != "" {
		c.nameRe = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(brand.Name))
	}
	if brand.Guarantee != "" {
		c.guarRe = regexp.MustCompile(`(?i)guarantee`)
	}
	return c
}

// phraseRegexp matches text case-insensitively as a whole phrase.
func phraseRegexp(text string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(text) + `(?:$|[^\p{L}\p{N}])`)
}

// Check returns every hard-constraint violation in text, in a stable order.
func (c *Checker) Check(text string) []content.Violation {
	var out []content.Violation
	for _, cl := range c.claims {
		if cl.re.MatchString(text) {
			out = append(out, content.Violation{
				Kind:   ViolationDisallowedClaim,
				Detail: fmt.Sprintf("%s claim %q", cl.category, cl.text),
			})
		}
	}
	out = append(out, c.earnings(text)...)
	out = append(out, c.pii(text)...)
	out = append(out, c.Contradictions(text)...)
	return out
}

func (c *Checker) earnings(text string) []content.Violation {
	lower := strings.ToLower(text)
	for _, d := range disclaimers {
		if strings.Contains(lower, d) {
			return nil
		}
	}
	for _, re := range earningsPatterns {
		if m := re.FindString(text); m != "" {
			return []content.Violation{{
				Kind:   ViolationEarningsClaim,
				Detail: fmt.Sprintf("earnings claim %q without disclaimer", m),
			}}
		}
	}
	return nil
}

func (c *Checker) pii(text string) []content.Violation {
	var out []content.Violation
	for _, m := range emailPattern.FindAllString(text, -1) {
		if !strings.EqualFold(m, c.brand.Contact) {
			out = append(out, content.Violation{Kind: ViolationPIILeak, Detail: "email " + Redact(m)})
		}
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		if d := digits(m); c.contactD == "" || !strings.HasSuffix(d, lastN(c.contactD, 10)) {
			out = append(out, content.Violation{Kind: ViolationPIILeak, Detail: "phone " + Redact(m)})
		}
	}
	lower := strings.ToLower(text)
	for _, id := range c.brand.PrivateIdentifiers {
		if id != "" && strings.Contains(lower, strings.ToLower(id)) {
			out = append(out, content.Violation{Kind: ViolationPIILeak, Detail: "private identifier"})
		}
	}
	return out
}

// Contradictions reports brand fields that appear in a form other than the
// configured one: a differently-cased brand name, or a guarantee that is not
// the configured guarantee.
func (c *Checker) Contradictions(text string) []content.Violation {
	var out []content.Violation
	if c.nameRe != nil {
		for _, m := range c.nameRe.FindAllString(text, -1) {
			if m != c.brand.Name {
				out = append(out, content.Violation{
					Kind:   ViolationBrandContradiction,
					Detail: fmt.Sprintf("brand name written as %q", m),
				})
				break
			}
		}
	}
	if c.guarRe != nil {
		allowed := allSpans(text, c.brand.Guarantee)
		for _, loc := range c.guarRe.FindAllStringIndex(text, -1) {
			if !within(loc, allowed) {
				out = append(out, content.Violation{
					Kind:   ViolationBrandContradiction,
					Detail: "guarantee differs from the configured guarantee",
				})
				break
			}
		}
	}
	return out
}

// Redact masks e-mail addresses and phone numbers in s for logging.
func Redact(s string) string {
	s = emailPattern.ReplaceAllString(s, "[email]")
	return phonePattern.ReplaceAllString(s, "[phone]")
}

func allSpans(text, phrase string) [][2]int {
	var out [][2]int
	for off := 0; phrase != ""; {
		i := strings.Index(text[off:], phrase)
		if i < 0 {
			break
		}
		out = append(out, [2]int{off + i, off + i + len(phrase)})
		off += i + len(phrase)
	}
	return out
}

func within(loc []int, spans [][2]int) bool {
	for _, s := range spans {
		if loc[0] >= s[0] && loc[1] <= s[1] {
			return true
		}
	}
	return false
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
