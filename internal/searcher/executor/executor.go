// Package executor evaluates query trees against a database snapshot and
// returns ranked result sets.
//
// Evaluation is document-at-a-time: every node becomes a posting-list
// iterator, the root is walked in ascending document order, and a bounded
// heap keeps the best first+count documents. Once the heap is full its worst
// weight becomes a threshold: subtrees whose bounds cannot beat it are
// dropped or demoted to weight-only, and when nothing is left the walk stops
// early and the total match count becomes an estimate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/mset"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// cancelCheckInterval is how many matches are walked between context
// checks.
const cancelCheckInterval = 1024

// Store is the read-only database view the executor evaluates against.
type Store interface {
	postingsource.Store
	mset.DocumentSource
	Postings(term string) (index.PostingList, error)
	TermFreq(term string) int
	TermsWithPrefix(prefix string) []string
	DocLength(id uint32) uint32
	MaxTermFreq(term string) uint32
	MinDocLength() uint32
	AvgDocLength() float64
	DocCount() uint32
}

type Config struct {
	Weighting            ranker.Weighting
	OrCombiner           Combiner
	AndCombiner          Combiner
	MaxWildcardExpansion int
}

// DefaultConfig weights with BM25 and sums child weights.
func DefaultConfig() Config {
	return Config{
		Weighting:   ranker.BM25{K1: ranker.DefaultK1, B: ranker.DefaultB},
		OrCombiner:  CombineSum,
		AndCombiner: CombineSum,
	}
}

func (c Config) validate() error {
	if c.Weighting == nil {
		return errors.New("weighting is required")
	}
	if c.MaxWildcardExpansion < 0 {
		return fmt.Errorf("max wildcard expansion must be >= 0, got %d", c.MaxWildcardExpansion)
	}
	for _, comb := range []Combiner{c.OrCombiner, c.AndCombiner} {
		if comb != CombineSum && comb != CombineMax {
			return fmt.Errorf("unknown combiner %d", comb)
		}
	}
	return nil
}

// ParseCombiner maps "sum" or "max" to a Combiner.
func ParseCombiner(s string) (Combiner, error) {
	switch s {
	case "", "sum":
		return CombineSum, nil
	case "max":
		return CombineMax, nil
	default:
		return 0, fmt.Errorf("unknown combiner %q", s)
	}
}

type Executor struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func New(store Store, cfg Config) (*Executor, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	return &Executor{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}, nil
}

// Evaluate runs node and returns the matches ranked first..first+count-1.
// The returned set is the same on every run for the same snapshot and
// tree; equal weights are ordered by ascending document id.
func (e *Executor) Evaluate(ctx context.Context, node query.Node, first, count int) (*mset.MSet, error) {
	if first < 0 || count < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "offset and limit must be non-negative, got %d and %d", first, count)
	}
	start := time.Now()

	b := &builder{exec: e, termFreqs: make(map[string]int)}
	root, err := b.build(node)
	if err != nil {
		return nil, err
	}

	k := first + count
	if k < first {
		k = math.MaxInt
	}
	top := merger.NewTopK(min(k, int(e.store.DocCount())))
	maxPossible := root.maxWeight()
	fullEstimate := root.estimate()

	var (
		counted     int
		maxAttained float64
		pruned      bool
	)
	root.next()
	for did := root.docID(); did != endDoc; did = root.docID() {
		counted++
		w := root.weight()
		if w > maxAttained {
			maxAttained = w
		}
		// Documents come in ascending id order, so a later one enters a
		// full heap only by weighing strictly more than its worst entry.
		decayed := false
		if top.Offer(merger.Candidate{DocID: did, Weight: w}) && top.Full() {
			worst, _ := top.Min()
			root, decayed = root.decay(worst.Weight)
			pruned = pruned || decayed
		}
		if counted%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, contextError(err)
			}
		}
		if decayed {
			root.skipTo(did + 1)
		} else {
			root.next()
		}
	}

	stats := mset.Stats{
		MatchesLowerBound: counted,
		MatchesEstimated:  counted,
		MatchesUpperBound: counted,
		MaxPossible:       maxPossible,
		MaxAttained:       maxAttained,
		TermFreqs:         b.termFreqs,
	}
	if pruned {
		stats.MatchesUpperBound = min(max(fullEstimate, counted), int(e.store.DocCount()))
		stats.MatchesEstimated = counted + (stats.MatchesUpperBound-counted)/2
	}

	ranked := top.Sorted()
	var matches []mset.Match
	if first < len(ranked) {
		matches = make([]mset.Match, 0, len(ranked)-first)
		for i, c := range ranked[first:] {
			matches = append(matches, mset.NewMatch(first+i, c.DocID, c.Weight, e.store))
		}
	}

	e.logger.Debug("query evaluated",
		"query", query.Description(node),
		"first", first,
		"count", count,
		"matched", counted,
		"pruned", pruned,
		"returned", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return mset.New(first, matches, stats), nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("evaluating query: %w: %w", apperrors.ErrTimeout, err)
	}
	return fmt.Errorf("evaluating query: %w", err)
}
