package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/tokenizer"
)

// Input is a document to add to the index. A zero ID asks the index to
// assign the next free id.
type Input struct {
	ID     uint32
	Text   string
	Data   []byte
	Values map[uint32]float64
}

type MemoryIndex struct {
	mu        sync.RWMutex
	index     map[string]map[uint32]*Posting
	docs      map[uint32]*Document
	ids       *roaring.Bitmap
	lastDocID uint32
	size      int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[uint32]*Posting),
		docs:  make(map[uint32]*Document),
		ids:   roaring.New(),
	}
}

// Add indexes a document and returns its id. Adding an id that already
// exists is an error; documents are never replaced.
func (m *MemoryIndex) Add(in Input) (uint32, error) {
	for slot, v := range in.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("slot %d: value %v is not finite", slot, v)
		}
	}
	tokens := tokenizer.Tokenize(in.Text)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{Positions: make([]uint32, 0, 4)}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, uint32(token.Position))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docID := in.ID
	if docID == 0 {
		if m.lastDocID == ^uint32(0) {
			return 0, fmt.Errorf("document id space exhausted")
		}
		docID = m.lastDocID + 1
	}
	if m.ids.Contains(docID) {
		return 0, fmt.Errorf("document %d already indexed", docID)
	}

	for term, posting := range termData {
		posting.DocID = docID
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[uint32]*Posting)
		}
		m.index[term][docID] = posting
		m.size += int64(len(term) + len(posting.Positions)*4 + 16)
	}

	values := make(map[uint32]float64, len(in.Values))
	for slot, v := range in.Values {
		values[slot] = v
	}
	m.docs[docID] = &Document{
		ID:     docID,
		Data:   append([]byte(nil), in.Data...),
		Values: values,
		Length: uint32(len(tokens)),
	}
	m.size += int64(len(in.Data) + len(values)*12 + 16)
	m.ids.Add(docID)
	if docID > m.lastDocID {
		m.lastDocID = docID
	}
	return docID, nil
}

// Search returns the posting list of term, sorted by document id.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPostings(m.index[term])
}

// Snapshot copies the index into sorted, writable form.
func (m *MemoryIndex) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: sortedPostings(docs),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})

	documents := make([]Document, 0, len(m.docs))
	slots := make(map[uint32][]SlotValue)
	it := m.ids.Iterator()
	for it.HasNext() {
		doc := m.docs[it.Next()]
		documents = append(documents, *doc)
		for slot, v := range doc.Values {
			slots[slot] = append(slots[slot], SlotValue{DocID: doc.ID, Value: v})
		}
	}

	slotEntries := make([]SlotEntry, 0, len(slots))
	for slot, values := range slots {
		slotEntries = append(slotEntries, SlotEntry{Slot: slot, Values: values})
	}
	sort.Slice(slotEntries, func(i, j int) bool {
		return slotEntries[i].Slot < slotEntries[j].Slot
	})

	return Snapshot{
		Terms:     entries,
		Documents: documents,
		Slots:     slotEntries,
		LastDocID: m.lastDocID,
	}
}

// DocIDs returns a copy of the set of indexed document ids.
func (m *MemoryIndex) DocIDs() *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids.Clone()
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[uint32]*Posting)
	m.docs = make(map[uint32]*Document)
	m.ids = roaring.New()
	m.lastDocID = 0
	m.size = 0
}

func sortedPostings(docs map[uint32]*Posting) PostingList {
	if len(docs) == 0 {
		return nil
	}
	postings := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		postings = append(postings, *posting)
	}
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].DocID < postings[j].DocID
	})
	return postings
}
