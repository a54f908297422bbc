package index

// Posting is one document's entry in a term's posting list. DocID and
// Frequency are both at least 1.
type Posting struct {
	DocID     uint32
	Frequency uint32
	Positions []uint32
}

// PostingList is sorted by ascending DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// MaxFrequency is the largest within-document frequency of the term.
func (e TermEntry) MaxFrequency() uint32 {
	var m uint32
	for _, p := range e.Postings {
		m = max(m, p.Frequency)
	}
	return m
}

// CollectionFreq is the total number of occurrences of the term.
func (e TermEntry) CollectionFreq() uint64 {
	var n uint64
	for _, p := range e.Postings {
		n += uint64(p.Frequency)
	}
	return n
}

// Document is a stored document: its payload, its value slots and its
// length in tokens.
type Document struct {
	ID     uint32
	Data   []byte
	Values map[uint32]float64
	Length uint32
}

// Value returns the value stored in slot.
func (d *Document) Value(slot uint32) (float64, bool) {
	v, ok := d.Values[slot]
	return v, ok
}

// SlotValue is one document's value in a value slot.
type SlotValue struct {
	DocID uint32
	Value float64
}

// SlotEntry holds every value of one slot, sorted by ascending DocID.
type SlotEntry struct {
	Slot   uint32
	Values []SlotValue
}

// Bounds returns the smallest and largest value in the slot.
func (s SlotEntry) Bounds() (lower, upper float64) {
	for i, v := range s.Values {
		if i == 0 || v.Value < lower {
			lower = v.Value
		}
		if i == 0 || v.Value > upper {
			upper = v.Value
		}
	}
	return lower, upper
}

// Snapshot is an immutable, sorted view of a MemoryIndex, ready to be
// written as a segment.
type Snapshot struct {
	Terms     []TermEntry
	Documents []Document
	Slots     []SlotEntry
	LastDocID uint32
}
