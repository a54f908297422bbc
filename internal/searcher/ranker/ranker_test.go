package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25MonotonicInTermFrequency(t *testing.T) {
	s := BM25{K1: DefaultK1, B: DefaultB}.Prepare(Stats{TotalDocs: 100, AvgDocLength: 10, DocFreq: 5})
	prev := 0.0
	for tf := uint32(1); tf <= 50; tf++ {
		score := s.Score(tf, 10)
		assert.Greater(t, score, prev, "tf=%d", tf)
		assert.Less(t, score, s.MaxScore())
		prev = score
	}
}

func TestBM25PrefersShorterDocuments(t *testing.T) {
	s := BM25{K1: DefaultK1, B: DefaultB}.Prepare(Stats{TotalDocs: 3, AvgDocLength: 2.67, DocFreq: 2})
	assert.Greater(t, s.Score(1, 2), s.Score(1, 3))
}

func TestBM25IDFPositiveWhenEveryDocMatches(t *testing.T) {
	s := BM25{}.Prepare(Stats{TotalDocs: 4, AvgDocLength: 3, DocFreq: 4})
	assert.Greater(t, s.Score(1, 3), 0.0)
}

func TestBM25RareTermsWeighMore(t *testing.T) {
	w := BM25{K1: DefaultK1, B: DefaultB}
	rare := w.Prepare(Stats{TotalDocs: 1000, AvgDocLength: 10, DocFreq: 2})
	common := w.Prepare(Stats{TotalDocs: 1000, AvgDocLength: 10, DocFreq: 500})
	assert.Greater(t, rare.Score(1, 10), common.Score(1, 10))
}

func TestBM25WQF(t *testing.T) {
	w := BM25{K1: DefaultK1, B: DefaultB}
	one := w.Prepare(Stats{TotalDocs: 10, AvgDocLength: 5, DocFreq: 2, WQF: 1})
	two := w.Prepare(Stats{TotalDocs: 10, AvgDocLength: 5, DocFreq: 2, WQF: 2})
	assert.InDelta(t, 2*one.Score(3, 5), two.Score(3, 5), 1e-12)
}

func TestMaxScoreFromTermStatistics(t *testing.T) {
	stats := Stats{TotalDocs: 100, AvgDocLength: 10, DocFreq: 5, MaxTermFreq: 4, MinDocLength: 3}

	bm25 := BM25{K1: DefaultK1, B: DefaultB}.Prepare(stats)
	loose := BM25{K1: DefaultK1, B: DefaultB}.Prepare(Stats{TotalDocs: 100, AvgDocLength: 10, DocFreq: 5})
	assert.Equal(t, bm25.Score(4, 3), bm25.MaxScore())
	assert.Less(t, bm25.MaxScore(), loose.MaxScore())
	for tf := uint32(1); tf <= 4; tf++ {
		for length := uint32(3); length <= 20; length++ {
			assert.LessOrEqual(t, bm25.Score(tf, length), bm25.MaxScore())
		}
	}

	tfidf := TFIDF{}.Prepare(stats)
	assert.Equal(t, tfidf.Score(4, 0), tfidf.MaxScore())
	assert.False(t, math.IsInf(tfidf.MaxScore(), 1))
}

func TestTFIDF(t *testing.T) {
	s := TFIDF{}.Prepare(Stats{TotalDocs: 10, DocFreq: 2})
	assert.Greater(t, s.Score(2, 0), s.Score(1, 0))
	assert.True(t, math.IsInf(s.MaxScore(), 1))
}

func TestBool(t *testing.T) {
	s := Bool{}.Prepare(Stats{TotalDocs: 10, DocFreq: 2})
	assert.Zero(t, s.Score(5, 5))
	assert.Zero(t, s.MaxScore())
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "bm25", "tfidf", "bool"} {
		w, err := New(name, DefaultK1, DefaultB)
		require.NoError(t, err)
		assert.NotEmpty(t, w.Name())
	}
	_, err := New("dfr", 0, 0)
	assert.Error(t, err)
}
