package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Ranked retrieval walks the posting lists of every query term in
        ascending document order. Each matching document is weighted with BM25
        and offered to a bounded heap that keeps the best results seen so far.`,
	"unicode": strings.Repeat("Ça coûte cher à Zürich, naïve façade ", 20),
	"long": strings.Repeat(`Information retrieval systems normalise text into searchable
        terms. The inverted index maps each term to the documents containing it,
        along with positional information for phrase queries. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkNormalize(b *testing.B) {
	words := []string{"africa", "AFRICA", "Zürich", "naïve", "façade", "Trade"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = Normalize(w)
		}
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	baseWord := "ranked retrieval posting list weighting "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
