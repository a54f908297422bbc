package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
)

// Writer serialises index snapshots into new database files.
type Writer struct {
	dataDir     string
	compression Compression
}

// NewWriter creates a Writer that writes database files into dataDir.
func NewWriter(dataDir string, compression Compression) *Writer {
	return &Writer{dataDir: dataDir, compression: compression}
}

// offsetWriter tracks the file offset of buffered writes.
type offsetWriter struct {
	w   *bufio.Writer
	off int64
}

func (o *offsetWriter) write(p []byte) error {
	n, err := o.w.Write(p)
	o.off += int64(n)
	return err
}

// Write atomically creates a new database file containing snap and returns
// its path. It writes to a .tmp file first and renames on success.
func (w *Writer) Write(snap index.Snapshot) (string, error) {
	if len(snap.Documents) == 0 {
		return "", fmt.Errorf("cannot write empty database")
	}
	if err := validate(snap); err != nil {
		return "", err
	}
	name := fmt.Sprintf("db_%d%s", time.Now().UnixNano(), FileExt)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp database file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	out := &offsetWriter{w: bufio.NewWriter(f)}
	if err := out.write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	writeBlock := func(data []byte) (BlockRef, error) {
		block, err := encodeBlock(data, w.compression)
		if err != nil {
			return BlockRef{}, err
		}
		ref := BlockRef{Offset: out.off, Len: len(block)}
		return ref, out.write(block)
	}

	dir := Directory{
		Terms: make([]DictEntry, 0, len(snap.Terms)),
		Docs:  make([]DocEntry, 0, len(snap.Documents)),
		Slots: make([]SlotDesc, 0, len(snap.Slots)),
	}
	for _, entry := range snap.Terms {
		ref, err := writeBlock(encodePostings(entry.Postings))
		if err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dir.Terms = append(dir.Terms, DictEntry{
			Term:     entry.Term,
			Block:    ref,
			DocFreq:  len(entry.Postings),
			CollFreq: entry.CollectionFreq(),
			MaxFreq:  entry.MaxFrequency(),
		})
	}

	for _, slot := range snap.Slots {
		ref, err := writeBlock(encodeSlot(slot.Values))
		if err != nil {
			return "", fmt.Errorf("writing slot %d: %w", slot.Slot, err)
		}
		lower, upper := slot.Bounds()
		dir.Slots = append(dir.Slots, SlotDesc{
			Slot:  slot.Slot,
			Block: ref,
			Count: len(slot.Values),
			Lower: lower,
			Upper: upper,
		})
	}

	ids := roaring.New()
	var totalLength uint64
	for _, doc := range snap.Documents {
		ref, err := writeBlock(encodeDocument(doc))
		if err != nil {
			return "", fmt.Errorf("writing document %d: %w", doc.ID, err)
		}
		dir.Docs = append(dir.Docs, DocEntry{ID: doc.ID, Length: doc.Length, Block: ref})
		ids.Add(doc.ID)
		totalLength += uint64(doc.Length)
	}

	idBytes, err := ids.ToBytes()
	if err != nil {
		return "", fmt.Errorf("serialising document ids: %w", err)
	}
	if dir.IDs, err = writeBlock(idBytes); err != nil {
		return "", fmt.Errorf("writing document ids: %w", err)
	}

	dirData, err := json.Marshal(dir)
	if err != nil {
		return "", fmt.Errorf("marshaling directory: %w", err)
	}
	dirRef, err := writeBlock(dirData)
	if err != nil {
		return "", fmt.Errorf("writing directory: %w", err)
	}
	if err := out.write(encodeFooter(dirRef.Offset, int64(dirRef.Len))); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := out.w.Flush(); err != nil {
		return "", fmt.Errorf("flushing database file: %w", err)
	}

	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		TermCount:   uint32(len(dir.Terms)),
		DocCount:    uint32(len(dir.Docs)),
		LastDocID:   max(snap.LastDocID, snap.Documents[len(snap.Documents)-1].ID),
		Compression: w.compression,
		TotalLength: totalLength,
		DirOffset:   dirRef.Offset,
		DirLen:      int64(dirRef.Len),
		CreatedAt:   time.Now().Unix(),
		SlotCount:   uint32(len(dir.Slots)),
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing database file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing database file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming database file: %w", err)
	}
	return finalPath, nil
}

func validate(snap index.Snapshot) error {
	for i, doc := range snap.Documents {
		if doc.ID == 0 {
			return fmt.Errorf("document id 0 is reserved")
		}
		if i > 0 && doc.ID <= snap.Documents[i-1].ID {
			return fmt.Errorf("documents not sorted by id at %d", doc.ID)
		}
	}
	for i, entry := range snap.Terms {
		if entry.Term == "" {
			return fmt.Errorf("empty term")
		}
		if i > 0 && entry.Term <= snap.Terms[i-1].Term {
			return fmt.Errorf("terms not sorted at %q", entry.Term)
		}
	}
	return nil
}
