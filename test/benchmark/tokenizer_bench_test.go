package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
)

var sampleTexts = map[string]string{
	"headline": "Spring detailing: book your full interior clean today",
	"flyer": `Shine Auto brings showroom shine back to your daily driver. Our team
        hand-washes, clay-bars and seals every panel, then steams the cabin until
        the seats look new. Customers tell us the finish still beads water months
        later. Book your detail today and ask about the April offer.`,
	"whitepaper": strings.Repeat(`Ceramic coatings bond to the clear coat and form a
        hard, hydrophobic layer. Preparation matters more than the product: paint
        correction removes swirl marks, and a panel wipe strips polishing oils so the
        coating can cure evenly. Cure time depends on humidity and temperature, and
        the vehicle should stay dry for at least a day. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["flyer"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := tokenizer.Tokenize(text)
			_ = tokens
		}
	})
}

// BenchmarkSentencesAndSyllables covers the readability inputs the scorer
// computes for every unit.
func BenchmarkSentencesAndSyllables(b *testing.B) {
	text := sampleTexts["whitepaper"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		syllables := 0
		for _, w := range tokenizer.Words(text) {
			syllables += tokenizer.Syllables(w)
		}
		_ = len(tokenizer.Sentences(text)) + syllables
	}
}
