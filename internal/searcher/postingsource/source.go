// Package postingsource turns a document value slot into a stream of
// synthetic postings, so a stored numeric signal can be combined with
// term matches in a query tree.
package postingsource

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
)

// Store is the read-only slot access a source needs.
type Store interface {
	SlotValues(slot uint32) ([]index.SlotValue, error)
	SlotBounds(slot uint32) (lower, upper float64, ok bool)
}

// Source is a posting source descriptor. Open returns a fresh cursor each
// time, so one Source can be used by any number of evaluations.
type Source interface {
	String() string
	Open(store Store) (*Cursor, error)
}

// Option configures a ValueWeight.
type Option func(*ValueWeight)

// WithTransform sets how slot values become weights.
func WithTransform(t Transform) Option {
	return func(v *ValueWeight) {
		if t != nil {
			v.transform = t
		}
	}
}

// ValueWeight produces one posting per document with a value in its slot,
// weighted by the transformed value.
type ValueWeight struct {
	slot      uint32
	transform Transform
	label     string
}

// Wrap exposes slot as a posting source. The weight is the raw value
// unless a transform is given.
func Wrap(slot uint32, opts ...Option) *ValueWeight {
	v := &ValueWeight{slot: slot, transform: Identity, label: "ValueWeightPostingSource"}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewValuePresence matches documents with a value in slot without adding
// weight.
func NewValuePresence(slot uint32) *ValueWeight {
	return &ValueWeight{slot: slot, transform: Zero, label: "ValuePostingSource"}
}

func (v *ValueWeight) Slot() uint32 { return v.slot }

func (v *ValueWeight) Transform() Transform { return v.transform }

func (v *ValueWeight) String() string {
	if name := v.transform.Name(); name == "identity" || name == "zero" {
		return fmt.Sprintf("%s(slot=%d)", v.label, v.slot)
	}
	return fmt.Sprintf("%s(slot=%d, transform=%s)", v.label, v.slot, v.transform.Name())
}

func (v *ValueWeight) Open(store Store) (*Cursor, error) {
	values, err := store.SlotValues(v.slot)
	if err != nil {
		return nil, fmt.Errorf("reading slot %d: %w", v.slot, err)
	}
	lower, upper, _ := store.SlotBounds(v.slot)
	return NewCursor(values, v.transform, Bounds{Lower: lower, Upper: upper}), nil
}

// Cursor walks a source's postings forward by ascending document id. A new
// cursor is positioned before the first posting.
type Cursor struct {
	docs      []uint32
	weights   []float64
	pos       int
	maxWeight float64
}

// NewCursor builds a cursor over values, which must be sorted by document
// id.
func NewCursor(values []index.SlotValue, t Transform, b Bounds) *Cursor {
	if t == nil {
		t = Identity
	}
	c := &Cursor{
		docs:    make([]uint32, len(values)),
		weights: make([]float64, len(values)),
		pos:     -1,
	}
	for i, v := range values {
		w := clamp(t.Apply(v.Value, b))
		c.docs[i] = v.DocID
		c.weights[i] = w
		if w > c.maxWeight {
			c.maxWeight = w
		}
	}
	return c
}

// Next moves to the next posting and reports whether there is one.
func (c *Cursor) Next() bool {
	if c.pos < len(c.docs) {
		c.pos++
	}
	return c.pos < len(c.docs)
}

// SkipTo moves to the first posting with document id >= target. It never
// moves backwards.
func (c *Cursor) SkipTo(target uint32) bool {
	start := max(c.pos, 0)
	if start >= len(c.docs) {
		c.pos = len(c.docs)
		return false
	}
	if c.pos >= 0 && c.docs[start] >= target {
		return true
	}
	rest := c.docs[start:]
	c.pos = start + sort.Search(len(rest), func(i int) bool { return rest[i] >= target })
	return c.pos < len(c.docs)
}

// AtEnd reports whether the cursor has moved past the last posting.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.docs) }

// DocID returns the current document id, or 0 when not on a posting.
func (c *Cursor) DocID() uint32 {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return 0
	}
	return c.docs[c.pos]
}

// Weight returns the current posting's weight, or 0 when not on a posting.
func (c *Cursor) Weight() float64 {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return 0
	}
	return c.weights[c.pos]
}

// Estimate is the number of postings.
func (c *Cursor) Estimate() int { return len(c.docs) }

// Remaining is the number of postings not yet passed.
func (c *Cursor) Remaining() int { return len(c.docs) - max(c.pos, 0) }

// MaxWeight is the largest weight any posting has.
func (c *Cursor) MaxWeight() float64 { return c.maxWeight }
