package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// MagicBytes identifies a database file ("RQDB").
const (
	MagicBytes    uint32 = 0x52514442
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	FileExt              = ".rqdb"
)

// Compression selects the block codec of a database file.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration string to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// Header is the 64-byte header written at the start of every database file.
//
//	[0:4]   magic
//	[4:8]   format version
//	[8:12]  term count
//	[12:16] document count
//	[16:20] last document id
//	[20]    compression
//	[24:32] total document length
//	[32:40] directory offset
//	[40:48] directory length
//	[48:56] created at (unix seconds)
//	[56:60] slot count
//	[60:64] crc32 of bytes [0:60]
type Header struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	LastDocID   uint32
	Compression Compression
	TotalLength uint64
	DirOffset   int64
	DirLen      int64
	CreatedAt   int64
	SlotCount   uint32
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.LastDocID)
	buf[20] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[24:32], h.TotalLength)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.DirOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DirLen))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint32(buf[56:60], h.SlotCount)
	binary.LittleEndian.PutUint32(buf[60:64], crc32.ChecksumIEEE(buf[0:60]))
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("short header: %d bytes", len(buf))
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != MagicBytes {
		return Header{}, fmt.Errorf("bad magic bytes %x", magic)
	}
	if got, want := crc32.ChecksumIEEE(buf[0:60]), binary.LittleEndian.Uint32(buf[60:64]); got != want {
		return Header{}, fmt.Errorf("header checksum mismatch: %08x != %08x", got, want)
	}
	h := Header{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:   binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:    binary.LittleEndian.Uint32(buf[12:16]),
		LastDocID:   binary.LittleEndian.Uint32(buf[16:20]),
		Compression: Compression(buf[20]),
		TotalLength: binary.LittleEndian.Uint64(buf[24:32]),
		DirOffset:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		DirLen:      int64(binary.LittleEndian.Uint64(buf[40:48])),
		CreatedAt:   int64(binary.LittleEndian.Uint64(buf[48:56])),
		SlotCount:   binary.LittleEndian.Uint32(buf[56:60]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported format version %d", h.Version)
	}
	if h.Compression > CompressionZSTD {
		return Header{}, fmt.Errorf("unknown compression %d", h.Compression)
	}
	return h, nil
}

// footer repeats the directory location so truncated files are detected.
//
//	[0:8]   directory offset
//	[8:12]  directory length
//	[12:16] magic
func encodeFooter(dirOffset int64, dirLen int64) []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(dirOffset))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(dirLen))
	binary.LittleEndian.PutUint32(buf[12:16], MagicBytes)
	return buf
}

func checkFooter(buf []byte, h Header) error {
	if binary.LittleEndian.Uint32(buf[12:16]) != MagicBytes {
		return fmt.Errorf("bad footer magic")
	}
	if int64(binary.LittleEndian.Uint64(buf[0:8])) != h.DirOffset ||
		int64(binary.LittleEndian.Uint32(buf[8:12])) != h.DirLen {
		return fmt.Errorf("footer does not match header")
	}
	return nil
}

// BlockRef locates a block in the file. Len includes the block header.
type BlockRef struct {
	Offset int64 `json:"o"`
	Len    int   `json:"l"`
}

// DictEntry maps a term to its postings block and statistics.
type DictEntry struct {
	Term     string   `json:"t"`
	Block    BlockRef `json:"b"`
	DocFreq  int      `json:"d"`
	CollFreq uint64   `json:"c"`
	// MaxFreq is the largest within-document frequency of the term.
	MaxFreq uint32 `json:"m,omitempty"`
}

// DocEntry maps a document id to its length and stored block.
type DocEntry struct {
	ID     uint32   `json:"i"`
	Length uint32   `json:"n"`
	Block  BlockRef `json:"b"`
}

// SlotDesc describes one value slot.
type SlotDesc struct {
	Slot  uint32   `json:"s"`
	Block BlockRef `json:"b"`
	Count int      `json:"n"`
	Lower float64  `json:"lo"`
	Upper float64  `json:"hi"`
}

// Directory is the JSON-encoded table of contents stored in the last block.
type Directory struct {
	Terms []DictEntry `json:"terms"`
	Docs  []DocEntry  `json:"docs"`
	Slots []SlotDesc  `json:"slots"`
	IDs   BlockRef    `json:"ids"`
}
