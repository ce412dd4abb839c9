// Package tokenizer normalises generated copy for scoring and similarity.
// Terms are NFKC-normalised, lower-cased, split on non-alphanumeric
// boundaries, stripped of stop-words and stemmed with a suffix stemmer. It
// also provides the sentence, word and syllable views the readability rubric
// needs.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopWords are function words that carry no signal for similarity or
// keyword coverage in short marketing copy.
var stopWords = wordSet(`
	a an and are as at be but by can do each for from
	had has have he if in is it its no not of on or our
	so that the their they this to was we were what when
	where which who will with you your`)

func wordSet(list string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		set[w] = struct{}{}
	}
	return set
}

// Token is a single normalised term and its position among kept terms.
type Token struct {
	Term     string
	Position int
}

// Normalize applies NFKC normalisation and lower-casing.
func Normalize(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// Tokenize returns the stemmed terms of text in order. Single-character
// words and stop words are dropped; Position counts kept terms only.
func Tokenize(text string) []Token {
	words := splitWords(Normalize(text))
	tokens := make([]Token, 0, len(words)/2)
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if term := stem(w); term != "" {
			tokens = append(tokens, Token{Term: term, Position: len(tokens)})
		}
	}
	return tokens
}

// Terms returns the Term of every token of text.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// Words returns every alphanumeric word of text, case preserved, with no
// stop-word removal or stemming.
func Words(text string) []string {
	return splitWords(norm.NFKC.String(text))
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// Sentences splits text on terminal punctuation and line breaks. Empty
// fragments are dropped.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" && len(Words(s)) > 0 {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n':
			flush()
		case r == '.' || r == '!' || r == '?':
			b.WriteRune(r)
			// keep decimals such as 4.9 together
			if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// Syllables estimates the syllable count of an English word by counting
// vowel groups, discounting a silent trailing e.
func Syllables(word string) int {
	w := strings.ToLower(word)
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// suffixRule replaces suffix with repl when at least keep runes of the word
// remain. Rules are tried in order; the first that applies wins.
type suffixRule struct {
	suffix, repl string
	keep         int
}

var suffixRules = []suffixRule{
	{"ational", "ate", 2}, {"tional", "tion", 2}, {"encies", "ence", 2},
	{"ances", "ance", 2}, {"ments", "ment", 2}, {"izing", "ize", 2},
	{"ating", "ate", 2}, {"iness", "y", 2}, {"ously", "ous", 2},
	{"ively", "ive", 2}, {"eness", "ene", 2},
	{"tion", "t", 3}, {"sion", "s", 3}, {"ying", "y", 2}, {"ling", "l", 3},
	{"ies", "y", 2}, {"ing", "", 3}, {"ers", "er", 2}, {"est", "", 3},
	{"ful", "", 3}, {"ous", "", 3}, {"ess", "", 3}, {"ble", "", 3},
	{"ed", "", 3}, {"er", "", 3}, {"ly", "", 3}, {"es", "", 3},
	{"ss", "ss", 2}, {"s", "", 3},
}

// stem strips the first matching suffix so inflections of a word share a
// term.
func stem(word string) string {
	for _, r := range suffixRules {
		base, ok := strings.CutSuffix(word, r.suffix)
		if !ok {
			continue
		}
		if out := base + r.repl; len(out) >= r.keep {
			return out
		}
	}
	return word
}
