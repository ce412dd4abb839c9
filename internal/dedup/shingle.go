// Package dedup detects near-duplicate content units. Unit text is reduced to
// hashed word shingles, min-hashed into fixed-size signatures and compared
// against an index of the units already accepted in the run.
package dedup

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
)

// Shingles returns the sorted, de-duplicated hashes of every run of k
// consecutive terms in text. Text with fewer than k terms yields a single
// shingle over all of them.
func Shingles(text string, k int) []uint64 {
	if k <= 0 {
		k = 1
	}
	terms := tokenizer.Terms(text)
	if len(terms) == 0 {
		return nil
	}
	if len(terms) < k {
		return []uint64{xxhash.Sum64String(strings.Join(terms, " "))}
	}
	out := make([]uint64, 0, len(terms)-k+1)
	for i := 0; i+k <= len(terms); i++ {
		out = append(out, xxhash.Sum64String(strings.Join(terms[i:i+k], " ")))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Jaccard is |a∩b| / |a∪b| for two sorted shingle sets. Two empty sets have
// similarity 0.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Reference holds the exact shingle sets of accepted units for the
// similarity rubric dimension.
type Reference struct {
	ids  []string
	sets [][]uint64
}

// NewReference returns an empty reference.
func NewReference() *Reference {
	return &Reference{}
}

// Add records an accepted unit's shingle set.
func (r *Reference) Add(id string, set []uint64) {
	r.ids = append(r.ids, id)
	r.sets = append(r.sets, set)
}

// Len returns the number of recorded units.
func (r *Reference) Len() int {
	return len(r.ids)
}

// Nearest returns the highest Jaccard similarity between set and any recorded
// unit other than self, and that unit's id.
func (r *Reference) Nearest(self string, set []uint64) (string, float64) {
	best, bestID := 0.0, ""
	for i, other := range r.sets {
		if r.ids[i] == self {
			continue
		}
		if j := Jaccard(set, other); j > best {
			best, bestID = j, r.ids[i]
		}
	}
	return bestID, best
}
