// Package testutil builds small on-disk databases for tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
)

// AfricaDocs is the three-document corpus used across the query tests:
// 1 "africa trade", 2 "africa drop me", 3 "trade only". Slot 1 holds 0.1
// on document 1 and 5 on document 2.
func AfricaDocs() []index.Input {
	return []index.Input{
		{ID: 1, Text: "africa trade", Data: []byte(`{"title":"Africa trade"}`), Values: map[uint32]float64{1: 0.1}},
		{ID: 2, Text: "africa drop me", Data: []byte(`{"title":"Africa drop me"}`), Values: map[uint32]float64{1: 5}},
		{ID: 3, Text: "trade only", Data: []byte(`{"title":"Trade only"}`)},
	}
}

// WriteDatabase indexes docs and writes them to a new database file under
// a temp directory, returning the directory.
func WriteDatabase(t testing.TB, docs []index.Input) string {
	t.Helper()
	dir := t.TempDir()
	WriteDatabaseTo(t, dir, docs)
	return dir
}

// WriteDatabaseTo indexes docs into a new database file in dir and returns
// the file's path.
func WriteDatabaseTo(t testing.TB, dir string, docs []index.Input) string {
	t.Helper()
	m := index.NewMemoryIndex()
	for _, d := range docs {
		_, err := m.Add(d)
		require.NoError(t, err)
	}
	path, err := segment.NewWriter(dir, segment.CompressionZSTD).Write(m.Snapshot())
	require.NoError(t, err)
	return path
}

// OpenDatabase writes docs and opens the result. The reader is closed when
// the test ends.
func OpenDatabase(t testing.TB, docs []index.Input) *segment.Reader {
	t.Helper()
	r, err := segment.Open(WriteDatabase(t, docs))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// RandomDocs generates n documents over a small vocabulary with a value in
// slot 1. The same seed gives the same corpus.
func RandomDocs(n int, seed int64) []index.Input {
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa"}
	rng := rand.New(rand.NewSource(seed))
	docs := make([]index.Input, 0, n)
	for i := 0; i < n; i++ {
		words := make([]string, 1+rng.Intn(12))
		for j := range words {
			// Skewed towards the head of the vocabulary.
			words[j] = vocab[rng.Intn(1+rng.Intn(len(vocab)))]
		}
		docs = append(docs, index.Input{
			Text:   strings.Join(words, " "),
			Data:   []byte(fmt.Sprintf("doc-%d", i+1)),
			Values: map[uint32]float64{1: float64(rng.Intn(100)) / 10},
		})
	}
	return docs
}
