package dedup

import "math"

// Signature is a MinHash sketch of a shingle set.
type Signature []uint64

// Hasher min-hashes shingle sets with a fixed family of permutations
// h_i(x) = a_i*x + b_i (mod 2^64). The permutations are derived from a
// constant so signatures are stable across runs and processes.
type Hasher struct {
	a, b []uint64
}

// NewHasher builds a hasher producing signatures of the given size.
func NewHasher(size int) *Hasher {
	h := &Hasher{a: make([]uint64, size), b: make([]uint64, size)}
	state := uint64(0x5ce7a1d0c0ffee)
	for i := 0; i < size; i++ {
		state = mix(state)
		h.a[i] = state | 1
		state = mix(state)
		h.b[i] = state
	}
	return h
}

// Size returns the signature length.
func (h *Hasher) Size() int {
	return len(h.a)
}

// Sign computes the signature of a shingle set. An empty set yields a
// signature of all MaxUint64 slots.
func (h *Hasher) Sign(shingles []uint64) Signature {
	sig := make(Signature, len(h.a))
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, s := range shingles {
		x := mix(s)
		for i := range sig {
			if v := h.a[i]*x + h.b[i]; v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Similarity estimates Jaccard similarity as the fraction of equal slots.
func Similarity(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	eq := 0
	for i := range a {
		if a[i] == b[i] {
			eq++
		}
	}
	return float64(eq) / float64(len(a))
}

func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
