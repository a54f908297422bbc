package mset

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// Iterator walks an MSet. A new iterator is positioned before the first
// match; Next moves onto it. Once past the end, Next keeps returning false.
//
// The zero Iterator is not bound to any MSet: Next returns false and Match
// returns ErrIteratorUnbound. An iterator must be owned by one goroutine.
type Iterator struct {
	mset *MSet
	pos  int
}

func (it *Iterator) size() int {
	if it == nil || it.mset == nil {
		return 0
	}
	return len(it.mset.matches)
}

// Next advances and reports whether the iterator is on a match.
func (it *Iterator) Next() bool {
	if it == nil || it.mset == nil {
		return false
	}
	if it.pos < it.size() {
		it.pos++
	}
	return it.pos < it.size()
}

// Prev moves back one match and reports whether the iterator is on a
// match. Moving back from the first match leaves the iterator before it.
func (it *Iterator) Prev() bool {
	if it == nil || it.mset == nil {
		return false
	}
	if it.pos >= 0 {
		it.pos--
	}
	return it.pos >= 0 && it.pos < it.size()
}

// Reset moves the iterator back before the first match.
func (it *Iterator) Reset() {
	if it != nil && it.mset != nil {
		it.pos = -1
	}
}

// Valid reports whether the iterator is on a match.
func (it *Iterator) Valid() bool {
	return it != nil && it.mset != nil && it.pos >= 0 && it.pos < it.size()
}

// AtBegin reports whether the iterator is on the first match.
func (it *Iterator) AtBegin() bool {
	return it.Valid() && it.pos == 0
}

// AtEnd reports whether the iterator has moved past the last match.
func (it *Iterator) AtEnd() bool {
	return it == nil || it.mset == nil || it.pos >= it.size()
}

// Index is the position within the MSet, -1 before the first match.
func (it *Iterator) Index() int {
	if it == nil || it.mset == nil {
		return -1
	}
	return it.pos
}

// Match returns the current match. It fails before the first Next, at the
// end, and on an unbound iterator.
func (it *Iterator) Match() (Match, error) {
	if it == nil || it.mset == nil {
		return Match{}, ErrIteratorUnbound
	}
	if it.pos < 0 || it.pos >= it.size() {
		return Match{}, &apperrors.IndexOutOfRangeError{Index: it.pos, Size: it.size()}
	}
	return it.mset.matches[it.pos], nil
}

// MSet returns the result set the iterator walks, or nil.
func (it *Iterator) MSet() *MSet {
	if it == nil {
		return nil
	}
	return it.mset
}
