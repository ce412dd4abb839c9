// Package benchmark contains Go benchmarks for tokenization, the similarity
// machinery and the drafting and scoring stages, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/dedup"
)

func variant(i int) string {
	return fmt.Sprintf("%s Variant %d adds a closing line about bay %d.", sampleTexts["flyer"], i, i%7)
}

// BenchmarkShingles measures k-shingle hashing for texts of varying length.
func BenchmarkShingles(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = dedup.Shingles(text, 5)
			}
		})
	}
}

// BenchmarkMinHashSign measures signature computation at common sizes.
func BenchmarkMinHashSign(b *testing.B) {
	shingles := dedup.Shingles(sampleTexts["whitepaper"], 5)
	for _, size := range []int{64, 128, 256} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			h := dedup.NewHasher(size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = h.Sign(shingles)
			}
		})
	}
}

func buildIndex(b *testing.B, n, bands int) (*dedup.Index, *dedup.Hasher) {
	b.Helper()
	h := dedup.NewHasher(128)
	idx, err := dedup.NewIndex(128, bands)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if err := idx.Add(fmt.Sprintf("cu-%05d", i), h.Sign(dedup.Shingles(variant(i), 5))); err != nil {
			b.Fatal(err)
		}
	}
	return idx, h
}

// BenchmarkIndexNearest compares banded lookup against a full scan over
// 5 000 accepted units.
func BenchmarkIndexNearest(b *testing.B) {
	for _, bands := range []int{0, 32} {
		b.Run(fmt.Sprintf("bands_%d", bands), func(b *testing.B) {
			idx, h := buildIndex(b, 5000, bands)
			query := h.Sign(dedup.Shingles(variant(5001), 5))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				id, sim := idx.Nearest(query)
				_, _ = id, sim
			}
		})
	}
}

// BenchmarkIndexNearestParallel measures concurrent read throughput.
func BenchmarkIndexNearestParallel(b *testing.B) {
	idx, h := buildIndex(b, 5000, 32)
	query := h.Sign(dedup.Shingles(variant(5001), 5))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id, sim := idx.Nearest(query)
			_, _ = id, sim
		}
	})
}

func BenchmarkJaccard(b *testing.B) {
	x := dedup.Shingles(variant(1), 5)
	y := dedup.Shingles(variant(2), 5)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = dedup.Jaccard(x, y)
	}
}
