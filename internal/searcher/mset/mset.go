// Package mset holds the result of one query evaluation: a ranked slice
// of matches plus estimates of how many documents matched in total.
package mset

import (
	"errors"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// ErrIteratorUnbound is returned by an Iterator that did not come from an
// MSet.
var ErrIteratorUnbound = fmt.Errorf("%w: iterator is not bound to a result set", apperrors.ErrIndexOutOfRange)

// DocumentSource loads stored documents for matches.
type DocumentSource interface {
	Document(id uint32) (*index.Document, error)
}

// Match is one ranked result.
type Match struct {
	rank    int
	weight  float64
	docID   uint32
	percent int
	docs    DocumentSource
}

// NewMatch builds a Match. docs may be nil, in which case the document
// accessors fail.
func NewMatch(rank int, docID uint32, weight float64, docs DocumentSource) Match {
	return Match{rank: rank, weight: weight, docID: docID, docs: docs}
}

// Rank is the 0-based position in the full ranking.
func (m Match) Rank() int { return m.rank }

func (m Match) Weight() float64 { return m.weight }

func (m Match) DocID() uint32 { return m.docID }

// Percent is the weight scaled against the best weight of the query.
func (m Match) Percent() int { return m.percent }

// Document loads the matched document.
func (m Match) Document() (*index.Document, error) {
	if m.docs == nil {
		return nil, errors.New("match has no document source")
	}
	return m.docs.Document(m.docID)
}

// Payload returns the opaque data stored with the document.
func (m Match) Payload() ([]byte, error) {
	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// Value returns the document's value in slot.
func (m Match) Value(slot uint32) (float64, bool, error) {
	doc, err := m.Document()
	if err != nil {
		return 0, false, err
	}
	v, ok := doc.Value(slot)
	return v, ok, nil
}

// Stats describes everything the executor learned beyond the returned
// slice.
type Stats struct {
	MatchesLowerBound int
	MatchesEstimated  int
	MatchesUpperBound int
	MaxPossible       float64
	MaxAttained       float64
	TermFreqs         map[string]int
}

// MSet is immutable once built.
type MSet struct {
	first   int
	matches []Match
	stats   Stats
}

// New builds an MSet for the slice starting at rank first.
func New(first int, matches []Match, stats Stats) *MSet {
	ms := &MSet{first: first, matches: matches, stats: stats}
	for i := range ms.matches {
		ms.matches[i].percent = ms.ConvertToPercent(ms.matches[i].weight)
	}
	if ms.stats.TermFreqs == nil {
		ms.stats.TermFreqs = map[string]int{}
	}
	return ms
}

// Size is the number of matches held.
func (m *MSet) Size() int { return len(m.matches) }

func (m *MSet) Empty() bool { return len(m.matches) == 0 }

// FirstItem is the rank of the first held match.
func (m *MSet) FirstItem() int { return m.first }

// SizeEstimate is the estimated number of matching documents in the whole
// database; it may exceed Size.
func (m *MSet) SizeEstimate() int { return m.stats.MatchesEstimated }

func (m *MSet) MatchesLowerBound() int { return m.stats.MatchesLowerBound }

func (m *MSet) MatchesUpperBound() int { return m.stats.MatchesUpperBound }

func (m *MSet) MaxPossible() float64 { return m.stats.MaxPossible }

func (m *MSet) MaxAttained() float64 { return m.stats.MaxAttained }

// TermFreq returns the number of documents containing a query term.
func (m *MSet) TermFreq(term string) int { return m.stats.TermFreqs[term] }

// ConvertToPercent scales weight against MaxAttained. When every match
// has weight 0 each counts as 100%.
func (m *MSet) ConvertToPercent(weight float64) int {
	if m.stats.MaxAttained <= 0 || math.IsInf(m.stats.MaxAttained, 0) {
		return 100
	}
	pct := int(weight/m.stats.MaxAttained*100 + 0.5)
	if pct < 1 && weight > 0 {
		pct = 1
	}
	return max(0, min(pct, 100))
}

// At returns the i-th held match.
func (m *MSet) At(i int) (Match, error) {
	if i < 0 || i >= len(m.matches) {
		return Match{}, &apperrors.IndexOutOfRangeError{Index: i, Size: len(m.matches)}
	}
	return m.matches[i], nil
}

// Matches returns a copy of the held matches.
func (m *MSet) Matches() []Match {
	return append([]Match(nil), m.matches...)
}

// Iterator returns a fresh iterator positioned before the first match.
func (m *MSet) Iterator() *Iterator {
	return &Iterator{mset: m, pos: -1}
}
