package dedup

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Index stores the signatures of accepted units in one flat arena. When bands
// are enabled each signature is also bucketed by band hash so candidate
// lookup only touches units sharing at least one band; with bands disabled
// lookups scan the whole arena.
type Index struct {
	mu      sync.RWMutex
	size    int
	bands   int
	rows    int
	arena   []uint64
	ids     []string
	buckets []map[uint64][]int32
}

// NewIndex creates an index for signatures of the given size split into
// bands. bands must divide size; zero disables banding.
func NewIndex(size, bands int) (*Index, error) {
	if size <= 0 {
		return nil, fmt.Errorf("signature size must be positive, got %d", size)
	}
	idx := &Index{size: size}
	if bands > 0 {
		if size%bands != 0 {
			return nil, fmt.Errorf("lsh bands %d do not divide signature size %d", bands, size)
		}
		idx.bands = bands
		idx.rows = size / bands
		idx.buckets = make([]map[uint64][]int32, bands)
		for i := range idx.buckets {
			idx.buckets[i] = make(map[uint64][]int32)
		}
	}
	return idx, nil
}

// Add appends a signature under id.
func (x *Index) Add(id string, sig Signature) error {
	if len(sig) != x.size {
		return fmt.Errorf("signature length %d, index expects %d", len(sig), x.size)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	slot := int32(len(x.ids))
	x.ids = append(x.ids, id)
	x.arena = append(x.arena, sig...)
	for b := 0; b < x.bands; b++ {
		key := x.bandKey(sig, b)
		x.buckets[b][key] = append(x.buckets[b][key], slot)
	}
	return nil
}

// Nearest returns the id and estimated similarity of the indexed signature
// closest to sig. An empty index returns ("", 0).
func (x *Index) Nearest(sig Signature) (string, float64) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	best, bestSlot := -1.0, -1
	consider := func(slot int) {
		if s := Similarity(sig, x.at(slot)); s > best {
			best, bestSlot = s, slot
		}
	}
	if x.bands == 0 {
		for slot := range x.ids {
			consider(slot)
		}
	} else {
		seen := make(map[int32]struct{})
		for b := 0; b < x.bands; b++ {
			for _, slot := range x.buckets[b][x.bandKey(sig, b)] {
				if _, ok := seen[slot]; ok {
					continue
				}
				seen[slot] = struct{}{}
				consider(int(slot))
			}
		}
	}
	if bestSlot < 0 {
		return "", 0
	}
	return x.ids[bestSlot], best
}

// Len returns the number of indexed signatures.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// SignatureSize returns the configured signature length.
func (x *Index) SignatureSize() int {
	return x.size
}

// Bands returns the number of LSH bands, zero when banding is disabled.
func (x *Index) Bands() int {
	return x.bands
}

// Entries returns a copy of the ids and signatures in insertion order.
func (x *Index) Entries() ([]string, []Signature) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ids := append([]string(nil), x.ids...)
	sigs := make([]Signature, len(ids))
	for i := range ids {
		sigs[i] = append(Signature(nil), x.at(i)...)
	}
	return ids, sigs
}

func (x *Index) at(slot int) Signature {
	return x.arena[slot*x.size : (slot+1)*x.size]
}

func (x *Index) bandKey(sig Signature, band int) uint64 {
	buf := make([]byte, 8*x.rows)
	for r := 0; r < x.rows; r++ {
		binary.LittleEndian.PutUint64(buf[r*8:], sig[band*x.rows+r])
	}
	return xxhash.Sum64(buf)
}
