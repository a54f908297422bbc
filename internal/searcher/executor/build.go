package executor

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// builder turns a query tree into posting lists for one evaluation.
type builder struct {
	exec      *Executor
	termFreqs map[string]int
}

func (b *builder) build(n query.Node) (postList, error) {
	switch v := n.(type) {
	case nil, query.Empty:
		return emptyPostList{}, nil
	case query.Term:
		return b.term(v.Name, v.WQF)
	case query.PostingSource:
		return b.source(v)
	case query.And:
		children, err := b.buildAll(v.Children)
		if err != nil || children == nil {
			return emptyPostList{}, err
		}
		for _, c := range children {
			if _, ok := c.(emptyPostList); ok {
				return emptyPostList{}, nil
			}
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return newAndPostList(children, b.exec.cfg.AndCombiner), nil
	case query.Or:
		children, err := b.buildAll(v.Children)
		if err != nil {
			return nil, err
		}
		return b.or(children), nil
	case query.AndMaybe:
		required, err := b.build(v.Required)
		if err != nil {
			return nil, err
		}
		optional, err := b.build(v.Optional)
		if err != nil {
			return nil, err
		}
		if _, ok := required.(emptyPostList); ok {
			return required, nil
		}
		if _, ok := optional.(emptyPostList); ok {
			return required, nil
		}
		return &andMaybePostList{required: required, optional: optional}, nil
	case query.AndNot:
		left, err := b.build(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.build(v.Right)
		if err != nil {
			return nil, err
		}
		if _, ok := left.(emptyPostList); ok {
			return left, nil
		}
		if _, ok := right.(emptyPostList); ok {
			return left, nil
		}
		return &andNotPostList{left: left, right: right}, nil
	case query.Phrase:
		return b.phrase(v.Terms)
	case query.Wildcard:
		return b.wildcard(v)
	default:
		return nil, fmt.Errorf("unknown query node %T", n)
	}
}

func (b *builder) buildAll(nodes []query.Node) ([]postList, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]postList, 0, len(nodes))
	for _, n := range nodes {
		pl, err := b.build(n)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, nil
}

// or drops empty children and collapses a single child.
func (b *builder) or(children []postList) postList {
	kept := children[:0:0]
	for _, c := range children {
		if _, ok := c.(emptyPostList); !ok {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return emptyPostList{}
	case 1:
		return kept[0]
	default:
		return newOrPostList(kept, b.exec.cfg.OrCombiner)
	}
}

func (b *builder) termList(name string, wqf uint32) (*termPostList, error) {
	store := b.exec.store
	postings, err := store.Postings(name)
	if err != nil {
		return nil, fmt.Errorf("reading postings of %q: %w", name, err)
	}
	b.termFreqs[name] = len(postings)
	if len(postings) == 0 {
		return nil, nil
	}
	scorer := b.exec.cfg.Weighting.Prepare(ranker.Stats{
		TotalDocs:    store.DocCount(),
		AvgDocLength: store.AvgDocLength(),
		DocFreq:      len(postings),
		WQF:          wqf,
		MaxTermFreq:  store.MaxTermFreq(name),
		MinDocLength: store.MinDocLength(),
	})
	return newTermPostList(postings, scorer, store.DocLength), nil
}

func (b *builder) term(name string, wqf uint32) (postList, error) {
	tl, err := b.termList(name, wqf)
	if err != nil || tl == nil {
		return emptyPostList{}, err
	}
	return tl, nil
}

func (b *builder) phrase(terms []string) (postList, error) {
	lists := make([]*termPostList, 0, len(terms))
	for _, t := range terms {
		tl, err := b.termList(t, 1)
		if err != nil {
			return nil, err
		}
		if tl == nil {
			return emptyPostList{}, nil
		}
		lists = append(lists, tl)
	}
	switch len(lists) {
	case 0:
		return emptyPostList{}, nil
	case 1:
		return lists[0], nil
	default:
		return newPhrasePostList(lists), nil
	}
}

func (b *builder) source(v query.PostingSource) (postList, error) {
	src, ok := v.Source.(postingsource.Source)
	if !ok {
		return nil, &apperrors.UnsupportedFeatureError{Feature: fmt.Sprintf("posting source %T", v.Source)}
	}
	cursor, err := src.Open(b.exec.store)
	if err != nil {
		return nil, err
	}
	if cursor.Estimate() == 0 {
		return emptyPostList{}, nil
	}
	return &sourcePostList{cursor: cursor}, nil
}

func (b *builder) wildcard(w query.Wildcard) (postList, error) {
	prefix := tokenizer.Normalize(w.Prefix)
	if prefix == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "wildcard prefix %q is empty after normalization", w.Prefix)
	}
	limit := w.Limit
	if limit == 0 {
		limit = b.exec.cfg.MaxWildcardExpansion
	}
	terms := b.exec.store.TermsWithPrefix(prefix)
	if limit > 0 && len(terms) > limit {
		return nil, &apperrors.ExpansionLimitError{Pattern: w.Prefix + "*", Limit: limit, Candidates: len(terms)}
	}
	children := make([]postList, 0, len(terms))
	for _, t := range terms {
		pl, err := b.term(t, 1)
		if err != nil {
			return nil, err
		}
		children = append(children, pl)
	}
	return b.or(children), nil
}
