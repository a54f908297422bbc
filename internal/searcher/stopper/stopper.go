// Package stopper holds the set of stopwords the query parser drops.
//
// A Stopper follows a single-writer-before-many-readers discipline: it is
// populated first, then frozen, then shared by any number of concurrent
// parses. Contains on a frozen Stopper takes no lock.
package stopper

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/tokenizer"
)

// ErrFrozen is returned by Add after Freeze.
var ErrFrozen = errors.New("stopper is frozen")

// Filter is what the query parser needs from a stopword set.
type Filter interface {
	Contains(term string) bool
}

type Stopper struct {
	mu     sync.RWMutex
	words  map[string]struct{}
	frozen atomic.Bool
}

// New returns a Stopper holding words.
func New(words ...string) *Stopper {
	s := &Stopper{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		s.insert(w)
	}
	return s
}

func (s *Stopper) insert(word string) {
	term := tokenizer.Normalize(word)
	if term == "" {
		return
	}
	s.words[term] = struct{}{}
}

// Add inserts a normalised term. Adding an existing term is a no-op.
func (s *Stopper) Add(word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen.Load() {
		return ErrFrozen
	}
	s.insert(word)
	return nil
}

// Freeze makes the set read-only.
func (s *Stopper) Freeze() *Stopper {
	s.mu.Lock()
	s.frozen.Store(true)
	s.mu.Unlock()
	return s
}

func (s *Stopper) Frozen() bool {
	return s.frozen.Load()
}

func (s *Stopper) Contains(term string) bool {
	if s == nil {
		return false
	}
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	_, ok := s.words[tokenizer.Normalize(term)]
	return ok
}

func (s *Stopper) Len() int {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return len(s.words)
}

// Words returns the stopwords in ascending order.
func (s *Stopper) Words() []string {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	words := make([]string, 0, len(s.words))
	for w := range s.words {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
