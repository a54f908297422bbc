package executor

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/ranker"
)

// endDoc is the document id of an exhausted posting list.
const endDoc = ^uint32(0)

// postList is a document-at-a-time iterator over the matches of one query
// node. A new list sits before its first document (docID 0); next moves
// onto it.
type postList interface {
	docID() uint32
	next()
	// skipTo moves to the first document >= target. It never moves back.
	skipTo(target uint32)
	weight() float64
	maxWeight() float64
	// estimate bounds the number of documents from the current one on.
	estimate() int
	// decay returns a list that matches only the documents that can still
	// weigh more than threshold, with unchanged weights, and whether it
	// dropped anything. The caller must skipTo past the current document
	// before reading the result.
	decay(threshold float64) (postList, bool)
}

// boundBelow reports whether a summed bound cannot exceed threshold. The
// margin absorbs rounding differences between summed bounds and summed
// weights.
func boundBelow(bound, threshold float64) bool {
	return bound+slack(bound) <= threshold
}

func slack(bound float64) float64 { return 1e-9 * math.Abs(bound) }

// decayLeaf empties a list whose bound is at most threshold.
func decayLeaf(p postList, threshold float64) (postList, bool) {
	if p.maxWeight() <= threshold {
		return emptyPostList{}, true
	}
	return p, false
}

// Combiner merges the weights of the children matching a document.
type Combiner int

const (
	CombineSum Combiner = iota
	CombineMax
)

func (c Combiner) String() string {
	if c == CombineMax {
		return "max"
	}
	return "sum"
}

func (c Combiner) combine(acc, w float64) float64 {
	if c == CombineMax {
		return math.Max(acc, w)
	}
	return acc + w
}

type emptyPostList struct{}

func (emptyPostList) docID() uint32       { return endDoc }
func (emptyPostList) next()               {}
func (emptyPostList) skipTo(uint32)       {}
func (emptyPostList) weight() float64     { return 0 }
func (emptyPostList) maxWeight() float64  { return 0 }
func (emptyPostList) estimate() int       { return 0 }

func (e emptyPostList) decay(float64) (postList, bool) { return e, false }

func isEmpty(p postList) bool {
	_, ok := p.(emptyPostList)
	return ok
}

type termPostList struct {
	postings  index.PostingList
	idx       int
	scorer    ranker.TermScorer
	docLength func(uint32) uint32
}

func newTermPostList(postings index.PostingList, scorer ranker.TermScorer, docLength func(uint32) uint32) *termPostList {
	return &termPostList{postings: postings, idx: -1, scorer: scorer, docLength: docLength}
}

func (t *termPostList) docID() uint32 {
	if t.idx < 0 {
		return 0
	}
	if t.idx >= len(t.postings) {
		return endDoc
	}
	return t.postings[t.idx].DocID
}

func (t *termPostList) next() {
	if t.idx < len(t.postings) {
		t.idx++
	}
}

func (t *termPostList) skipTo(target uint32) {
	start := max(t.idx, 0)
	if start >= len(t.postings) {
		t.idx = len(t.postings)
		return
	}
	if t.idx >= 0 && t.postings[start].DocID >= target {
		return
	}
	rest := t.postings[start:]
	t.idx = start + sort.Search(len(rest), func(i int) bool { return rest[i].DocID >= target })
}

func (t *termPostList) weight() float64 {
	p := t.postings[t.idx]
	return t.scorer.Score(p.Frequency, t.docLength(p.DocID))
}

func (t *termPostList) maxWeight() float64 { return t.scorer.MaxScore() }

func (t *termPostList) estimate() int { return len(t.postings) - max(t.idx, 0) }

func (t *termPostList) positions() []uint32 { return t.postings[t.idx].Positions }

func (t *termPostList) decay(threshold float64) (postList, bool) { return decayLeaf(t, threshold) }

type sourcePostList struct {
	cursor *postingsource.Cursor
}

func (s *sourcePostList) docID() uint32 {
	if s.cursor.AtEnd() {
		return endDoc
	}
	return s.cursor.DocID()
}

func (s *sourcePostList) next()                { s.cursor.Next() }
func (s *sourcePostList) skipTo(target uint32) { s.cursor.SkipTo(target) }
func (s *sourcePostList) weight() float64      { return s.cursor.Weight() }
func (s *sourcePostList) maxWeight() float64   { return s.cursor.MaxWeight() }
func (s *sourcePostList) estimate() int        { return s.cursor.Remaining() }

func (s *sourcePostList) decay(threshold float64) (postList, bool) { return decayLeaf(s, threshold) }

// andPostList intersects its children by leapfrogging: every child skips
// to the largest current document id until they all agree.
type andPostList struct {
	children []postList
	combiner Combiner
	did      uint32
}

func newAndPostList(children []postList, combiner Combiner) *andPostList {
	sorted := append([]postList(nil), children...)
	// The rarest child leads.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].estimate() < sorted[j].estimate() })
	return &andPostList{children: sorted, combiner: combiner}
}

func (a *andPostList) docID() uint32 { return a.did }

func (a *andPostList) next() {
	if a.did == endDoc {
		return
	}
	a.children[0].next()
	a.align(a.children[0].docID())
}

func (a *andPostList) skipTo(target uint32) {
	if a.did == endDoc || (a.did != 0 && a.did >= target) {
		return
	}
	a.children[0].skipTo(target)
	a.align(a.children[0].docID())
}

func (a *andPostList) align(target uint32) {
	for {
		if target == endDoc {
			a.did = endDoc
			return
		}
		agreed := true
		for _, c := range a.children {
			c.skipTo(target)
			if d := c.docID(); d != target {
				target = d
				agreed = false
				break
			}
		}
		if agreed {
			a.did = target
			return
		}
	}
}

func (a *andPostList) weight() float64 {
	w := 0.0
	for _, c := range a.children {
		w = a.combiner.combine(w, c.weight())
	}
	return w
}

func (a *andPostList) maxWeight() float64 {
	w := 0.0
	for _, c := range a.children {
		w = a.combiner.combine(w, c.maxWeight())
	}
	return w
}

func (a *andPostList) estimate() int {
	if a.did == endDoc {
		return 0
	}
	return a.children[0].estimate()
}

// decay hands each child the threshold less the best the other children
// can add. Under the max combiner no single child decides the weight, so
// only the whole list can go.
func (a *andPostList) decay(threshold float64) (postList, bool) {
	total := a.maxWeight()
	if boundBelow(total, threshold) {
		return emptyPostList{}, true
	}
	if a.combiner == CombineMax {
		return a, false
	}
	changed := false
	for i, c := range a.children {
		d, ok := c.decay(threshold - (total - c.maxWeight()) - slack(total))
		if !ok {
			continue
		}
		if isEmpty(d) {
			return emptyPostList{}, true
		}
		a.children[i] = d
		changed = true
	}
	return a, changed
}

// orPostList is the union of its children; the current document is the
// smallest current document of any essential child. Non-essential children
// cannot lift a document above the heap threshold on their own, so they
// only contribute weight to documents an essential child matches.
type orPostList struct {
	children     []postList
	combiner     Combiner
	did          uint32
	nonEssential []bool
}

func newOrPostList(children []postList, combiner Combiner) *orPostList {
	return &orPostList{children: children, combiner: combiner}
}

func (o *orPostList) docID() uint32 { return o.did }

func (o *orPostList) essential(i int) bool {
	return o.nonEssential == nil || !o.nonEssential[i]
}

func (o *orPostList) next() {
	if o.did == endDoc {
		return
	}
	for i, c := range o.children {
		if o.essential(i) && c.docID() == o.did {
			c.next()
		}
	}
	o.settle()
}

func (o *orPostList) skipTo(target uint32) {
	if o.did == endDoc || (o.did != 0 && o.did >= target) {
		return
	}
	for i, c := range o.children {
		if o.essential(i) {
			c.skipTo(target)
		}
	}
	o.settle()
}

func (o *orPostList) settle() {
	o.did = endDoc
	for i, c := range o.children {
		if d := c.docID(); o.essential(i) && d < o.did {
			o.did = d
		}
	}
}

func (o *orPostList) weight() float64 {
	w := 0.0
	for i, c := range o.children {
		if !o.essential(i) {
			c.skipTo(o.did)
		}
		if c.docID() == o.did {
			w = o.combiner.combine(w, c.weight())
		}
	}
	return w
}

func (o *orPostList) maxWeight() float64 {
	w := 0.0
	for _, c := range o.children {
		w = o.combiner.combine(w, c.maxWeight())
	}
	return w
}

func (o *orPostList) estimate() int {
	n := 0
	for i, c := range o.children {
		if o.essential(i) {
			n += c.estimate()
		}
	}
	return n
}

// decay marks children non-essential. Under the sum combiner these are the
// children with the smallest bounds whose bounds together stay at or under
// threshold; under max, every child whose own bound does.
func (o *orPostList) decay(threshold float64) (postList, bool) {
	nonEssential := make([]bool, len(o.children))
	if o.combiner == CombineMax {
		for i, c := range o.children {
			nonEssential[i] = boundBelow(c.maxWeight(), threshold)
		}
	} else {
		order := make([]int, len(o.children))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return o.children[order[i]].maxWeight() < o.children[order[j]].maxWeight()
		})
		sum := 0.0
		for _, i := range order {
			sum += o.children[i].maxWeight()
			if !boundBelow(sum, threshold) {
				break
			}
			nonEssential[i] = true
		}
	}

	changed, remaining := false, 0
	for i := range o.children {
		if nonEssential[i] && o.essential(i) {
			changed = true
		}
		if !nonEssential[i] {
			remaining++
		}
	}
	if remaining == 0 {
		return emptyPostList{}, true
	}
	if changed {
		o.nonEssential = nonEssential
	}
	return o, changed
}

// andMaybePostList walks required and adds optional's weight where
// optional also matches.
type andMaybePostList struct {
	required postList
	optional postList
}

func (a *andMaybePostList) docID() uint32 { return a.required.docID() }

func (a *andMaybePostList) next() { a.required.next() }

func (a *andMaybePostList) skipTo(target uint32) { a.required.skipTo(target) }

func (a *andMaybePostList) weight() float64 {
	did := a.required.docID()
	w := a.required.weight()
	a.optional.skipTo(did)
	if a.optional.docID() == did {
		w += a.optional.weight()
	}
	return w
}

func (a *andMaybePostList) maxWeight() float64 {
	return a.required.maxWeight() + a.optional.maxWeight()
}

func (a *andMaybePostList) estimate() int { return a.required.estimate() }

// decay turns the list into an intersection once required alone cannot
// beat threshold.
func (a *andMaybePostList) decay(threshold float64) (postList, bool) {
	reqMax, optMax := a.required.maxWeight(), a.optional.maxWeight()
	if boundBelow(reqMax+optMax, threshold) {
		return emptyPostList{}, true
	}
	if boundBelow(reqMax, threshold) {
		// required leads so the weight sums in the same order.
		return &andPostList{children: []postList{a.required, a.optional}, combiner: CombineSum}, true
	}
	required, changed := a.required.decay(threshold - optMax - slack(reqMax+optMax))
	if isEmpty(required) {
		return required, true
	}
	a.required = required
	return a, changed
}

// andNotPostList walks left, skipping documents that right matches.
type andNotPostList struct {
	left  postList
	right postList
}

func (a *andNotPostList) docID() uint32 { return a.left.docID() }

func (a *andNotPostList) next() {
	a.left.next()
	a.skipExcluded()
}

func (a *andNotPostList) skipTo(target uint32) {
	a.left.skipTo(target)
	a.skipExcluded()
}

func (a *andNotPostList) skipExcluded() {
	for {
		did := a.left.docID()
		if did == endDoc {
			return
		}
		a.right.skipTo(did)
		if a.right.docID() != did {
			return
		}
		a.left.next()
	}
}

func (a *andNotPostList) weight() float64    { return a.left.weight() }
func (a *andNotPostList) maxWeight() float64 { return a.left.maxWeight() }
func (a *andNotPostList) estimate() int      { return a.left.estimate() }

func (a *andNotPostList) decay(threshold float64) (postList, bool) {
	left, changed := a.left.decay(threshold)
	if isEmpty(left) {
		return left, true
	}
	a.left = left
	return a, changed
}

// phrasePostList is an intersection of its terms filtered to documents
// where the terms occur at consecutive positions.
type phrasePostList struct {
	and   *andPostList
	terms []*termPostList
}

func newPhrasePostList(terms []*termPostList) *phrasePostList {
	children := make([]postList, len(terms))
	for i, t := range terms {
		children[i] = t
	}
	return &phrasePostList{and: newAndPostList(children, CombineSum), terms: terms}
}

func (p *phrasePostList) docID() uint32 { return p.and.docID() }

func (p *phrasePostList) next() {
	p.and.next()
	p.settle()
}

func (p *phrasePostList) skipTo(target uint32) {
	p.and.skipTo(target)
	p.settle()
}

func (p *phrasePostList) settle() {
	for p.and.docID() != endDoc && !p.matchesHere() {
		p.and.next()
	}
}

func (p *phrasePostList) matchesHere() bool {
	for _, start := range p.terms[0].positions() {
		found := true
		for i := 1; i < len(p.terms); i++ {
			if !containsPosition(p.terms[i].positions(), start+uint32(i)) {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func containsPosition(positions []uint32, pos uint32) bool {
	i := sort.Search(len(positions), func(i int) bool { return positions[i] >= pos })
	return i < len(positions) && positions[i] == pos
}

func (p *phrasePostList) weight() float64    { return p.and.weight() }
func (p *phrasePostList) maxWeight() float64 { return p.and.maxWeight() }
func (p *phrasePostList) estimate() int      { return p.and.estimate() }

func (p *phrasePostList) decay(threshold float64) (postList, bool) {
	if boundBelow(p.maxWeight(), threshold) {
		return emptyPostList{}, true
	}
	return p, false
}
