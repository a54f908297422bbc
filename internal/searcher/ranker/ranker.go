// Package ranker holds the term weighting schemes used by the executor.
// A Weighting turns corpus statistics for one query term into a
// TermScorer, which then scores each posting of that term.
package ranker

import (
	"fmt"
	"math"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Stats are the corpus statistics for one query term. MaxTermFreq and
// MinDocLength tighten MaxScore; zero means unknown.
type Stats struct {
	TotalDocs    uint32
	AvgDocLength float64
	DocFreq      int
	WQF          uint32
	MaxTermFreq  uint32
	MinDocLength uint32
}

// TermScorer scores postings of a single term. Score must not decrease as
// termFreq grows, and MaxScore must bound every Score.
type TermScorer interface {
	Score(termFreq, docLength uint32) float64
	MaxScore() float64
}

type Weighting interface {
	Name() string
	Prepare(stats Stats) TermScorer
}

// New returns the named weighting scheme.
func New(name string, k1, b float64) (Weighting, error) {
	switch name {
	case "", "bm25":
		return BM25{K1: k1, B: b}, nil
	case "tfidf":
		return TFIDF{}, nil
	case "bool":
		return Bool{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting scheme %q", name)
	}
}

// BM25 is Okapi BM25 with a non-negative idf.
type BM25 struct {
	K1 float64
	B  float64
}

func (BM25) Name() string { return "bm25" }

func (w BM25) Prepare(s Stats) TermScorer {
	k1, b := w.K1, w.B
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return bm25Scorer{
		idf:          computeIDF(int64(s.TotalDocs), int64(s.DocFreq)),
		k1:           k1,
		b:            b,
		wqf:          float64(max(s.WQF, 1)),
		avgDocLength: s.AvgDocLength,
		maxTermFreq:  s.MaxTermFreq,
		minDocLength: s.MinDocLength,
	}
}

type bm25Scorer struct {
	idf, k1, b, wqf float64
	avgDocLength    float64
	maxTermFreq     uint32
	minDocLength    uint32
}

func (s bm25Scorer) Score(termFreq, docLength uint32) float64 {
	return s.wqf * s.idf * computeTFNorm(float64(termFreq), float64(docLength), s.avgDocLength, s.k1, s.b)
}

// MaxScore is the score of the most frequent occurrence in the shortest
// document, or the tf saturation limit when the term's statistics are
// unknown.
func (s bm25Scorer) MaxScore() float64 {
	if s.maxTermFreq > 0 {
		return s.Score(s.maxTermFreq, s.minDocLength)
	}
	return s.wqf * s.idf * (s.k1 + 1)
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	if docFreq <= 0 {
		return 0
	}
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// TFIDF weights by (1 + ln tf) * ln(1 + N/df). Without the term's maximum
// frequency it has no finite upper bound.
type TFIDF struct{}

func (TFIDF) Name() string { return "tfidf" }

func (TFIDF) Prepare(s Stats) TermScorer {
	idf := 0.0
	if s.DocFreq > 0 {
		idf = math.Log(1 + float64(s.TotalDocs)/float64(s.DocFreq))
	}
	return tfidfScorer{idf: idf, wqf: float64(max(s.WQF, 1)), maxTermFreq: s.MaxTermFreq}
}

type tfidfScorer struct {
	idf, wqf    float64
	maxTermFreq uint32
}

func (s tfidfScorer) Score(termFreq, _ uint32) float64 {
	if termFreq == 0 {
		return 0
	}
	return s.wqf * s.idf * (1 + math.Log(float64(termFreq)))
}

func (s tfidfScorer) MaxScore() float64 {
	if s.idf == 0 {
		return 0
	}
	if s.maxTermFreq > 0 {
		return s.Score(s.maxTermFreq, 0)
	}
	return math.Inf(1)
}

// Bool gives every match weight 0.
type Bool struct{}

func (Bool) Name() string { return "bool" }

func (Bool) Prepare(Stats) TermScorer { return boolScorer{} }

type boolScorer struct{}

func (boolScorer) Score(uint32, uint32) float64 { return 0 }

func (boolScorer) MaxScore() float64 { return 0 }
