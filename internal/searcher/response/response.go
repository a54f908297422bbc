// Package response is the JSON form of a ranked result page, shared by the
// HTTP handler and the result cache.
package response

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/mset"
)

// Hit is one ranked match.
type Hit struct {
	Rank    int     `json:"rank"`
	DocID   uint32  `json:"doc_id"`
	Weight  float64 `json:"weight"`
	Percent int     `json:"percent"`
	// Data is the stored payload: embedded as-is when it is JSON, as a
	// JSON string otherwise.
	Data json.RawMessage `json:"data,omitempty"`
}

// Page is one window of a result set.
type Page struct {
	Query             string         `json:"query"`
	Parsed            string         `json:"parsed"`
	Offset            int            `json:"offset"`
	Limit             int            `json:"limit"`
	Hits              []Hit          `json:"hits"`
	MatchesEstimated  int            `json:"matches_estimated"`
	MatchesLowerBound int            `json:"matches_lower_bound"`
	MatchesUpperBound int            `json:"matches_upper_bound"`
	MaxPossible       float64        `json:"max_possible"`
	MaxAttained       float64        `json:"max_attained"`
	TermFreqs         map[string]int `json:"term_freqs,omitempty"`
	TookMs            float64        `json:"took_ms"`
	CacheHit          bool           `json:"cache_hit"`
	Database          string         `json:"database"`
}

// Pruned reports whether evaluation stopped before walking every match.
func (p *Page) Pruned() bool {
	return p.MatchesLowerBound != p.MatchesUpperBound
}

// FromMSet renders ms. terms are the query terms whose frequencies are
// reported. Payloads are loaded only when withData is set.
func FromMSet(ms *mset.MSet, terms []string, withData bool) (*Page, error) {
	page := &Page{
		Offset:            ms.FirstItem(),
		Hits:              make([]Hit, 0, ms.Size()),
		MatchesEstimated:  ms.SizeEstimate(),
		MatchesLowerBound: ms.MatchesLowerBound(),
		MatchesUpperBound: ms.MatchesUpperBound(),
		MaxPossible:       ms.MaxPossible(),
		MaxAttained:       ms.MaxAttained(),
	}
	if len(terms) > 0 {
		page.TermFreqs = make(map[string]int, len(terms))
		for _, t := range terms {
			page.TermFreqs[t] = ms.TermFreq(t)
		}
	}
	for it := ms.Iterator(); it.Next(); {
		m, err := it.Match()
		if err != nil {
			return nil, err
		}
		hit := Hit{Rank: m.Rank(), DocID: m.DocID(), Weight: m.Weight(), Percent: m.Percent()}
		if withData {
			payload, err := m.Payload()
			if err != nil {
				return nil, fmt.Errorf("loading document %d: %w", m.DocID(), err)
			}
			hit.Data = encodePayload(payload)
		}
		page.Hits = append(page.Hits, hit)
	}
	return page, nil
}

func encodePayload(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

// DocIDs returns the document ids of the hits in rank order.
func (p *Page) DocIDs() []uint32 {
	ids := make([]uint32, len(p.Hits))
	for i, h := range p.Hits {
		ids[i] = h.DocID
	}
	return ids
}
