package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Every block is [raw size u32][stored size u32][crc32 of stored bytes u32]
// followed by the stored bytes. Stored size equal to raw size means the
// block is not compressed.
const blockHeaderSize = 12

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeBlock compresses data with c and frames it. Data that does not
// shrink by at least 10% is stored raw.
func encodeBlock(data []byte, c Compression) ([]byte, error) {
	stored := data
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 {
			stored = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		stored = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}
	if len(stored) == 0 || float64(len(stored)) > float64(len(data))*0.9 {
		stored = data
	}

	out := make([]byte, blockHeaderSize+len(stored))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(stored)))
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(stored))
	copy(out[blockHeaderSize:], stored)
	return out, nil
}

// decodeBlock verifies and decompresses a framed block.
func decodeBlock(block []byte, c Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errors.New("block too small for header")
	}
	rawSize := binary.LittleEndian.Uint32(block[0:4])
	storedSize := binary.LittleEndian.Uint32(block[4:8])
	sum := binary.LittleEndian.Uint32(block[8:12])
	if uint64(len(block)) != uint64(blockHeaderSize)+uint64(storedSize) {
		return nil, fmt.Errorf("block length %d does not match stored size %d", len(block), storedSize)
	}
	stored := block[blockHeaderSize:]
	if got := crc32.ChecksumIEEE(stored); got != sum {
		return nil, fmt.Errorf("block checksum mismatch: %08x != %08x", got, sum)
	}
	if storedSize == rawSize {
		return stored, nil
	}

	switch c {
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint32(n) != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint32(len(out)) != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compressed block in file with compression %s", c)
	}
}
