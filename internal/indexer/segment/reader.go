package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// Reader gives read-only access to one database file. It is safe for
// concurrent use: all reads go through ReadAt on an immutable file.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	docs     []DocEntry
	slots    map[uint32]SlotDesc
	ids      *roaring.Bitmap

	// minDocLen is the shortest document length, 0 when empty.
	minDocLen uint32
}

// Resolve maps a database path to a file. A directory resolves to its
// newest database file.
func Resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &apperrors.DatabaseNotFoundError{Path: path, Err: err}
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	matches, err := filepath.Glob(filepath.Join(path, "*"+FileExt))
	if err != nil {
		return "", fmt.Errorf("listing database files: %w", err)
	}
	if len(matches) == 0 {
		return "", &apperrors.DatabaseNotFoundError{Path: path}
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// Open opens the database at path (a file or a directory of database
// files). It fails with DatabaseNotFoundError or DatabaseCorruptError.
func Open(path string) (*Reader, error) {
	filePath, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperrors.DatabaseNotFoundError{Path: filePath, Err: err}
		}
		return nil, fmt.Errorf("opening database file: %w", err)
	}
	r := &Reader{file: f, filePath: filePath}
	if err := r.load(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) corrupt(reason string, err error) error {
	return &apperrors.DatabaseCorruptError{Path: r.filePath, Reason: reason, Err: err}
}

func (r *Reader) load() error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat database file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return r.corrupt("file truncated", nil)
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := r.file.ReadAt(headerBytes, 0); err != nil {
		return r.corrupt("reading header", err)
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		return r.corrupt("invalid header", err)
	}
	r.header = header

	footer := make([]byte, FooterSize)
	if _, err := r.file.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return r.corrupt("reading footer", err)
	}
	if err := checkFooter(footer, header); err != nil {
		return r.corrupt("invalid footer", err)
	}
	if header.DirOffset < int64(HeaderSize) || header.DirOffset+header.DirLen > info.Size()-int64(FooterSize) {
		return r.corrupt("directory out of bounds", nil)
	}

	dirData, err := r.readBlock(BlockRef{Offset: header.DirOffset, Len: int(header.DirLen)})
	if err != nil {
		return err
	}
	var dir Directory
	if err := json.Unmarshal(dirData, &dir); err != nil {
		return r.corrupt("parsing directory", err)
	}
	if len(dir.Terms) != int(header.TermCount) || len(dir.Docs) != int(header.DocCount) {
		return r.corrupt("directory does not match header counts", nil)
	}

	idData, err := r.readBlock(dir.IDs)
	if err != nil {
		return err
	}
	ids := roaring.New()
	if err := ids.UnmarshalBinary(idData); err != nil {
		return r.corrupt("parsing document ids", err)
	}
	if ids.GetCardinality() != uint64(header.DocCount) {
		return r.corrupt("document id set does not match header", nil)
	}

	r.dict = dir.Terms
	r.docs = dir.Docs
	for i, d := range dir.Docs {
		if i == 0 || d.Length < r.minDocLen {
			r.minDocLen = d.Length
		}
	}
	r.ids = ids
	r.slots = make(map[uint32]SlotDesc, len(dir.Slots))
	for _, s := range dir.Slots {
		r.slots[s.Slot] = s
	}
	return nil
}

// readBlock reads, verifies and decompresses the block at ref.
func (r *Reader) readBlock(ref BlockRef) ([]byte, error) {
	if ref.Len < blockHeaderSize || ref.Offset < int64(HeaderSize) {
		return nil, r.corrupt("invalid block reference", nil)
	}
	buf := make([]byte, ref.Len)
	if _, err := r.file.ReadAt(buf, ref.Offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, r.corrupt("block past end of file", err)
		}
		return nil, fmt.Errorf("reading block at %d: %w", ref.Offset, err)
	}
	data, err := decodeBlock(buf, r.header.Compression)
	if err != nil {
		return nil, r.corrupt(fmt.Sprintf("block at offset %d", ref.Offset), err)
	}
	return data, nil
}

func (r *Reader) lookup(term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// Postings returns the posting list of term, or nil when the term is not
// in the database.
func (r *Reader) Postings(term string) (index.PostingList, error) {
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	data, err := r.readBlock(entry.Block)
	if err != nil {
		return nil, err
	}
	postings, err := decodePostings(data)
	if err != nil {
		return nil, r.corrupt(fmt.Sprintf("postings of %q", term), err)
	}
	if len(postings) != entry.DocFreq {
		return nil, r.corrupt(fmt.Sprintf("postings of %q", term), fmt.Errorf("have %d, want %d", len(postings), entry.DocFreq))
	}
	return postings, nil
}

// TermFreq returns the number of documents containing term.
func (r *Reader) TermFreq(term string) int {
	entry, _ := r.lookup(term)
	return entry.DocFreq
}

// MaxTermFreq returns the largest within-document frequency of term, 0 when
// the term is absent.
func (r *Reader) MaxTermFreq(term string) uint32 {
	e, _ := r.lookup(term)
	return e.MaxFreq
}

// MinDocLength returns the length of the shortest document.
func (r *Reader) MinDocLength() uint32 {
	return r.minDocLen
}

// CollectionFreq returns the number of occurrences of term.
func (r *Reader) CollectionFreq(term string) uint64 {
	entry, _ := r.lookup(term)
	return entry.CollFreq
}

// TermExists reports whether term occurs in any document.
func (r *Reader) TermExists(term string) bool {
	_, ok := r.lookup(term)
	return ok
}

// TermsWithPrefix returns the dictionary terms starting with prefix, in
// ascending order.
func (r *Reader) TermsWithPrefix(prefix string) []string {
	start := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= prefix
	})
	var terms []string
	for i := start; i < len(r.dict) && strings.HasPrefix(r.dict[i].Term, prefix); i++ {
		terms = append(terms, r.dict[i].Term)
	}
	return terms
}

// SlotValues returns every value of slot sorted by document id.
func (r *Reader) SlotValues(slot uint32) ([]index.SlotValue, error) {
	desc, ok := r.slots[slot]
	if !ok {
		return nil, nil
	}
	data, err := r.readBlock(desc.Block)
	if err != nil {
		return nil, err
	}
	values, err := decodeSlot(data)
	if err != nil {
		return nil, r.corrupt(fmt.Sprintf("slot %d", slot), err)
	}
	return values, nil
}

// SlotBounds returns the smallest and largest value in slot. ok is false
// for an empty slot.
func (r *Reader) SlotBounds(slot uint32) (lower, upper float64, ok bool) {
	desc, ok := r.slots[slot]
	if !ok {
		return 0, 0, false
	}
	return desc.Lower, desc.Upper, true
}

// SlotCount returns the number of documents with a value in slot.
func (r *Reader) SlotCount(slot uint32) int {
	return r.slots[slot].Count
}

func (r *Reader) docEntry(id uint32) (DocEntry, bool) {
	idx := sort.Search(len(r.docs), func(i int) bool {
		return r.docs[i].ID >= id
	})
	if idx >= len(r.docs) || r.docs[idx].ID != id {
		return DocEntry{}, false
	}
	return r.docs[idx], true
}

// Document loads a stored document.
func (r *Reader) Document(id uint32) (*index.Document, error) {
	entry, ok := r.docEntry(id)
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	data, err := r.readBlock(entry.Block)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(entry.ID, entry.Length, data)
	if err != nil {
		return nil, r.corrupt(fmt.Sprintf("document %d", id), err)
	}
	return doc, nil
}

// HasDocument reports whether id is a document of this database.
func (r *Reader) HasDocument(id uint32) bool {
	return r.ids.Contains(id)
}

// DocLength returns the length in tokens of document id, or 0.
func (r *Reader) DocLength(id uint32) uint32 {
	entry, _ := r.docEntry(id)
	return entry.Length
}

// AvgDocLength returns the mean document length.
func (r *Reader) AvgDocLength() float64 {
	if r.header.DocCount == 0 {
		return 0
	}
	return float64(r.header.TotalLength) / float64(r.header.DocCount)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) LastDocID() uint32 {
	return r.header.LastDocID
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
