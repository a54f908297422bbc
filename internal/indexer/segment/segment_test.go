package segment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

func buildSnapshot(t *testing.T) index.Snapshot {
	t.Helper()
	m := index.NewMemoryIndex()
	docs := []index.Input{
		{Text: "africa trade", Data: []byte(`{"title":"one"}`), Values: map[uint32]float64{1: 0.25}},
		{Text: "africa drop me", Data: []byte(`{"title":"two"}`), Values: map[uint32]float64{1: 4}},
		{Text: "trade only " + strings.Repeat("filler words repeat ", 50)},
		{Text: "african trade routes"},
	}
	for _, d := range docs {
		_, err := m.Add(d)
		require.NoError(t, err)
	}
	return m.Snapshot()
}

func writeDatabase(t *testing.T, c Compression) string {
	t.Helper()
	path, err := NewWriter(t.TempDir(), c).Write(buildSnapshot(t))
	require.NoError(t, err)
	return path
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			r, err := Open(writeDatabase(t, c))
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, uint32(4), r.DocCount())
			assert.Equal(t, uint32(4), r.LastDocID())
			assert.Equal(t, c, r.Header().Compression)

			postings, err := r.Postings("africa")
			require.NoError(t, err)
			require.Len(t, postings, 2)
			assert.Equal(t, uint32(1), postings[0].DocID)
			assert.Equal(t, uint32(2), postings[1].DocID)
			assert.Equal(t, []uint32{0}, postings[1].Positions)

			filler, err := r.Postings("filler")
			require.NoError(t, err)
			require.Len(t, filler, 1)
			assert.Equal(t, uint32(50), filler[0].Frequency)
			assert.Len(t, filler[0].Positions, 50)

			missing, err := r.Postings("zebra")
			require.NoError(t, err)
			assert.Nil(t, missing)

			assert.Equal(t, 2, r.TermFreq("africa"))
			assert.Equal(t, uint64(3), r.CollectionFreq("trade"))
			assert.Equal(t, []string{"africa", "african"}, r.TermsWithPrefix("afr"))
			assert.Empty(t, r.TermsWithPrefix("zz"))

			values, err := r.SlotValues(1)
			require.NoError(t, err)
			assert.Equal(t, []index.SlotValue{{DocID: 1, Value: 0.25}, {DocID: 2, Value: 4}}, values)
			lower, upper, ok := r.SlotBounds(1)
			assert.True(t, ok)
			assert.Equal(t, 0.25, lower)
			assert.Equal(t, 4.0, upper)
			_, _, ok = r.SlotBounds(9)
			assert.False(t, ok)

			doc, err := r.Document(2)
			require.NoError(t, err)
			assert.Equal(t, `{"title":"two"}`, string(doc.Data))
			assert.Equal(t, uint32(3), doc.Length)
			v, ok := doc.Value(1)
			assert.True(t, ok)
			assert.Equal(t, 4.0, v)

			assert.True(t, r.HasDocument(4))
			assert.False(t, r.HasDocument(5))
			assert.Equal(t, uint32(2), r.DocLength(1))
			assert.Equal(t, uint32(2), r.MinDocLength())
			assert.Equal(t, uint32(50), r.MaxTermFreq("filler"))
			assert.Equal(t, uint32(1), r.MaxTermFreq("trade"))
			assert.Zero(t, r.MaxTermFreq("zebra"))
		})
	}
}

func TestDocumentNotFound(t *testing.T) {
	r, err := Open(writeDatabase(t, CompressionNone))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Document(99)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestOpenDirectoryPicksNewest(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, CompressionNone)
	first, err := w.Write(buildSnapshot(t))
	require.NoError(t, err)

	m := index.NewMemoryIndex()
	_, _ = m.Add(index.Input{Text: "only one"})
	second, err := w.Write(m.Snapshot())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, second, r.Path())
	assert.Equal(t, uint32(1), r.DocCount())
}

func TestOpenNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseNotFound)

	var nf *apperrors.DatabaseNotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = Open(t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrDatabaseNotFound)
}

func TestOpenCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(data []byte) []byte
	}{
		{"bad magic", func(d []byte) []byte { d[0] ^= 0xff; return d }},
		{"header field", func(d []byte) []byte { d[9] ^= 0x01; return d }},
		{"truncated", func(d []byte) []byte { return d[:len(d)-5] }},
		{"tiny", func(d []byte) []byte { return d[:10] }},
		{"directory byte", func(d []byte) []byte { d[len(d)-FooterSize-3] ^= 0x20; return d }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDatabase(t, CompressionNone)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tt.mutate(data), 0644))

			_, err = Open(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrDatabaseCorrupt)
		})
	}
}

func TestCorruptPostingsDetectedLazily(t *testing.T) {
	path := writeDatabase(t, CompressionNone)
	r, err := Open(path)
	require.NoError(t, err)
	entry, ok := r.lookup("africa")
	require.True(t, ok)
	r.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[entry.Block.Offset+int64(blockHeaderSize)] ^= 0x7f
	require.NoError(t, os.WriteFile(path, data, 0644))

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Postings("africa")
	assert.ErrorIs(t, err, apperrors.ErrDatabaseCorrupt)
}

func TestWriteRejectsEmptyAndUnsorted(t *testing.T) {
	w := NewWriter(t.TempDir(), CompressionNone)
	_, err := w.Write(index.Snapshot{})
	assert.Error(t, err)

	_, err = w.Write(index.Snapshot{Documents: []index.Document{{ID: 2}, {ID: 1}}})
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZSTD} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
