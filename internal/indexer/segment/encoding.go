package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
)

var errTruncated = errors.New("truncated data")

// encodePostings writes count, then per posting the doc id delta, the
// frequency, the number of positions and the position deltas, all as
// uvarints.
func encodePostings(postings index.PostingList) []byte {
	buf := make([]byte, 0, len(postings)*4+binary.MaxVarintLen32)
	buf = binary.AppendUvarint(buf, uint64(len(postings)))
	var prev uint32
	for _, p := range postings {
		buf = binary.AppendUvarint(buf, uint64(p.DocID-prev))
		buf = binary.AppendUvarint(buf, uint64(p.Frequency))
		buf = binary.AppendUvarint(buf, uint64(len(p.Positions)))
		var prevPos uint32
		for _, pos := range p.Positions {
			buf = binary.AppendUvarint(buf, uint64(pos-prevPos))
			prevPos = pos
		}
		prev = p.DocID
	}
	return buf
}

func decodePostings(data []byte) (index.PostingList, error) {
	d := decoder{buf: data}
	n := d.uvarint()
	if d.err != nil {
		return nil, d.err
	}
	if n > uint64(len(data)) {
		return nil, fmt.Errorf("posting count %d exceeds block size", n)
	}
	postings := make(index.PostingList, 0, n)
	var prev uint32
	for i := uint64(0); i < n; i++ {
		docID := prev + uint32(d.uvarint())
		freq := uint32(d.uvarint())
		npos := d.uvarint()
		if d.err != nil {
			return nil, d.err
		}
		if freq == 0 || (i > 0 && docID <= prev) || docID == 0 {
			return nil, fmt.Errorf("invalid posting %d: doc %d freq %d", i, docID, freq)
		}
		if npos > uint64(len(data)) {
			return nil, fmt.Errorf("position count %d exceeds block size", npos)
		}
		positions := make([]uint32, npos)
		var pos uint32
		for j := range positions {
			pos += uint32(d.uvarint())
			positions[j] = pos
		}
		if d.err != nil {
			return nil, d.err
		}
		postings = append(postings, index.Posting{DocID: docID, Frequency: freq, Positions: positions})
		prev = docID
	}
	return postings, nil
}

// encodeSlot writes count, then per value the doc id delta and the raw
// float64 bits.
func encodeSlot(values []index.SlotValue) []byte {
	buf := make([]byte, 0, len(values)*10+binary.MaxVarintLen32)
	buf = binary.AppendUvarint(buf, uint64(len(values)))
	var prev uint32
	for _, v := range values {
		buf = binary.AppendUvarint(buf, uint64(v.DocID-prev))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Value))
		prev = v.DocID
	}
	return buf
}

func decodeSlot(data []byte) ([]index.SlotValue, error) {
	d := decoder{buf: data}
	n := d.uvarint()
	if d.err != nil {
		return nil, d.err
	}
	if n > uint64(len(data)) {
		return nil, fmt.Errorf("value count %d exceeds block size", n)
	}
	values := make([]index.SlotValue, 0, n)
	var prev uint32
	for i := uint64(0); i < n; i++ {
		docID := prev + uint32(d.uvarint())
		v := d.float64()
		if d.err != nil {
			return nil, d.err
		}
		values = append(values, index.SlotValue{DocID: docID, Value: v})
		prev = docID
	}
	return values, nil
}

// encodeDocument writes the value slots (sorted by slot) followed by the
// payload bytes.
func encodeDocument(doc index.Document) []byte {
	slots := make([]uint32, 0, len(doc.Values))
	for slot := range doc.Values {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	buf := make([]byte, 0, len(slots)*12+len(doc.Data)+binary.MaxVarintLen32)
	buf = binary.AppendUvarint(buf, uint64(len(slots)))
	for _, slot := range slots {
		buf = binary.AppendUvarint(buf, uint64(slot))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(doc.Values[slot]))
	}
	return append(buf, doc.Data...)
}

func decodeDocument(id, length uint32, data []byte) (*index.Document, error) {
	d := decoder{buf: data}
	n := d.uvarint()
	if d.err != nil {
		return nil, d.err
	}
	if n > uint64(len(data)) {
		return nil, fmt.Errorf("slot count %d exceeds block size", n)
	}
	values := make(map[uint32]float64, n)
	for i := uint64(0); i < n; i++ {
		slot := uint32(d.uvarint())
		values[slot] = d.float64()
	}
	if d.err != nil {
		return nil, d.err
	}
	return &index.Document{
		ID:     id,
		Data:   append([]byte(nil), d.buf[d.off:]...),
		Values: values,
		Length: length,
	}, nil
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf)-d.off < 8 {
		d.err = errTruncated
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v
}
