// Package merger keeps the best k candidates seen during a posting-list
// walk. Candidates rank by descending weight, then ascending document id.
package merger

import (
	"container/heap"
)

type Candidate struct {
	DocID  uint32
	Weight float64
}

// Better reports whether a ranks before b.
func Better(a, b Candidate) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.DocID < b.DocID
}

// TopK is a bounded min-heap: its root is the worst kept candidate.
type TopK struct {
	k int
	h candidateHeap
}

func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, h: make(candidateHeap, 0, min(k, 1024))}
}

// Offer adds c if it ranks among the best k seen so far and reports
// whether it was kept.
func (t *TopK) Offer(c Candidate) bool {
	if t.k == 0 {
		return false
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, c)
		return true
	}
	if !Better(c, t.h[0]) {
		return false
	}
	t.h[0] = c
	heap.Fix(&t.h, 0)
	return true
}

func (t *TopK) Len() int { return t.h.Len() }

func (t *TopK) Full() bool { return t.k > 0 && t.h.Len() == t.k }

// Min returns the worst kept candidate.
func (t *TopK) Min() (Candidate, bool) {
	if t.h.Len() == 0 {
		return Candidate{}, false
	}
	return t.h[0], true
}

// Sorted drains the heap and returns the candidates best first.
func (t *TopK) Sorted() []Candidate {
	result := make([]Candidate, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(Candidate)
	}
	return result
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool { return Better(h[j], h[i]) }

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
