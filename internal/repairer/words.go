package repairer

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
)

type point struct {
	text   string
	lo, hi int
}

// pointBank holds the bullets density repair draws from. Every entry carries
// distinct terms so each addition counts as a new key point.
var pointBank = []point{
	{text: "Most visits wrap up within {n} hours", lo: 2, hi: 5},
	{text: "Coating care plans cover up to {n} months", lo: 6, hi: 24},
	{text: "Mobile crews reach homes within {n} miles", lo: 5, hi: 30},
	{text: "Online booking opens {n} days ahead", lo: 7, hi: 30},
	{text: "Upholstery shampoo dries in about {n} hours", lo: 2, hi: 6},
	{text: "Trained staff with {n} years on the job", lo: 2, hi: 12},
	{text: "Glass sealant repels rain for {n} weeks", lo: 4, hi: 12},
	{text: "Tire shine applied to all {n} wheels", lo: 4, hi: 4},
	{text: "Clay bar pass lifts bonded grit"},
	{text: "Leather conditioner keeps seats supple"},
	{text: "Pet hair removal included on request"},
	{text: "Trim restorer brings back faded plastics"},
	{text: "Dashboard wipe with matte finish"},
	{text: "Door jambs cleaned and dried"},
	{text: "Weekend slots available"},
}

// simpler maps long words to plain equivalents.
var simpler = map[string]string{
	"additionally":   "also",
	"approximately":  "about",
	"assistance":     "help",
	"automobile":     "car",
	"commence":       "start",
	"comprehensive":  "full",
	"consequently":   "so",
	"demonstrate":    "show",
	"exceptional":    "great",
	"facilitate":     "help",
	"immediately":    "now",
	"individual":     "person",
	"maintenance":    "care",
	"numerous":       "many",
	"particularly":   "most",
	"professional":   "skilled",
	"purchase":       "buy",
	"significantly":  "a lot",
	"subsequently":   "then",
	"sufficient":     "enough",
	"utilize":        "use",
	"vehicle":        "car",
	"environmental":  "green",
	"considerable":   "big",
	"accumulation":   "buildup",
	"appearance":     "look",
	"deterioration":  "wear",
	"recommendation": "tip",
}

// richer maps short words to longer equivalents for copy that reads too
// simply for its family.
var richer = map[string]string{
	"car":   "vehicle",
	"help":  "assistance",
	"use":   "utilize",
	"care":  "maintenance",
	"full":  "comprehensive",
	"show":  "demonstrate",
	"start": "commence",
	"many":  "numerous",
	"big":   "considerable",
	"wear":  "deterioration",
	"look":  "appearance",
	"buy":   "purchase",
	"great": "exceptional",
}

// synonyms drive the similarity rewrite.
var synonyms = map[string][]string{
	"clean":   {"fresh", "spotless", "tidy"},
	"car":     {"vehicle", "ride", "auto"},
	"book":    {"reserve", "schedule"},
	"crew":    {"team", "staff"},
	"team":    {"crew", "staff"},
	"fast":    {"quick", "speedy"},
	"quick":   {"fast", "speedy"},
	"gentle":  {"mild", "soft"},
	"shine":   {"gloss", "sheen"},
	"paint":   {"finish", "clear coat"},
	"price":   {"quote", "rate"},
	"visit":   {"appointment", "session"},
	"protect": {"shield", "guard"},
	"new":     {"fresh"},
	"great":   {"excellent", "superb"},
	"help":    {"assist", "support"},
	"spot":    {"slot", "opening"},
	"easy":    {"simple", "painless"},
	"keeps":   {"holds", "leaves"},
	"every":   {"each"},
}

var wordPattern = regexp.MustCompile(`[A-Za-z']+`)

// longSentence is the word count above which a sentence is split.
const longSentence = 14

// shortSentence is the word count below which neighbouring sentences merge.
const shortSentence = 9

func replaceWords(p string, fn func(lower string) (string, bool)) string {
	return wordPattern.ReplaceAllStringFunc(p, func(w string) string {
		repl, ok := fn(strings.ToLower(w))
		if !ok {
			return w
		}
		return matchCase(w, repl)
	})
}

func matchCase(orig, repl string) string {
	r, _ := utf8.DecodeRuneInString(orig)
	if unicode.IsUpper(r) {
		return capitalize(repl)
	}
	return repl
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || s == "I" || strings.HasPrefix(s, "I ") {
		return s
	}
	// keep acronyms and proper names that start with two capitals
	if next, _ := utf8.DecodeRuneInString(s[n:]); unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

func simplify(p string) string {
	return replaceWords(p, func(w string) (string, bool) {
		s, ok := simpler[w]
		return s, ok
	})
}

func elevate(p string) string {
	return replaceWords(p, func(w string) (string, bool) {
		s, ok := richer[w]
		return s, ok
	})
}

func substitute(p string, rng *rand.Rand) string {
	return replaceWords(p, func(w string) (string, bool) {
		alts, ok := synonyms[w]
		if !ok || rng.IntN(2) == 0 {
			return "", false
		}
		return alts[rng.IntN(len(alts))], true
	})
}

// splitLong breaks sentences longer than longSentence words at the
// conjunction or comma nearest their middle.
func splitLong(p string) string {
	sentences := tokenizer.Sentences(p)
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, splitSentence(s)...)
	}
	return strings.Join(out, " ")
}

func splitSentence(s string) []string {
	words := strings.Fields(s)
	if len(words) <= longSentence {
		return []string{s}
	}
	mid := len(words) / 2
	best := -1
	for i := 1; i < len(words)-1; i++ {
		cut := strings.HasSuffix(words[i-1], ",") || words[i] == "and" || words[i] == "but" || words[i] == "so"
		if cut && (best < 0 || abs(i-mid) < abs(best-mid)) {
			best = i
		}
	}
	if best < 0 {
		best = mid
	}
	head := strings.TrimRight(strings.Join(words[:best], " "), ",;:")
	tail := words[best:]
	if tail[0] == "and" || tail[0] == "but" || tail[0] == "so" {
		tail = tail[1:]
	}
	if len(tail) == 0 {
		return []string{s}
	}
	return []string{head + ".", capitalize(strings.Join(tail, " "))}
}

// mergeShort joins pairs of short sentences into one.
func mergeShort(p string) string {
	sentences := tokenizer.Sentences(p)
	var out []string
	for i := 0; i < len(sentences); i++ {
		s := sentences[i]
		if i+1 < len(sentences) && strings.HasSuffix(s, ".") &&
			len(strings.Fields(s)) < shortSentence && len(strings.Fields(sentences[i+1])) < shortSentence {
			s = strings.TrimSuffix(s, ".") + ", and " + lowerFirst(sentences[i+1])
			i++
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
