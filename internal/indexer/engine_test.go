package indexer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{DataDir: t.TempDir(), Compression: segment.CompressionLZ4})
	require.NoError(t, err)
	return e
}

func TestEngineFlushWritesSearchableDatabase(t *testing.T) {
	e := newEngine(t)

	_, err := e.Flush()
	assert.ErrorIs(t, err, ErrNothingIndexed)

	for _, d := range testutil.AfricaDocs() {
		_, err := e.IndexDocument(d)
		require.NoError(t, err)
	}
	path, err := e.Flush()
	require.NoError(t, err)
	assert.Equal(t, e.DataDir(), filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, segment.FileExt))

	again, err := e.Flush()
	require.NoError(t, err)
	assert.Equal(t, path, again, "flush without new documents reuses the file")

	db, err := search.Open(e.DataDir())
	require.NoError(t, err)
	defer db.Close()
	q, err := db.ParseQuery("africa", search.FlagDefault, nil)
	require.NoError(t, err)
	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Size())
}

func TestEngineRejectsDuplicateIDs(t *testing.T) {
	e := newEngine(t)
	_, err := e.IndexDocument(index.Input{ID: 7, Text: "one"})
	require.NoError(t, err)
	_, err = e.IndexDocument(index.Input{ID: 7, Text: "two"})
	assert.Error(t, err)
	assert.Equal(t, 1, e.DocCount())
}

func TestEnginePrune(t *testing.T) {
	e := newEngine(t)
	var paths []string
	for i := 0; i < 3; i++ {
		_, err := e.IndexDocument(index.Input{Text: "word"})
		require.NoError(t, err)
		p, err := e.Flush()
		require.NoError(t, err)
		paths = append(paths, p)
	}

	removed, err := e.Prune(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[:2], removed)

	newest, err := segment.Resolve(e.DataDir())
	require.NoError(t, err)
	assert.Equal(t, paths[2], newest)

	removed, err = e.Prune(0)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestEngineFlushLoopFinalFlush(t *testing.T) {
	e := newEngine(t)
	_, err := e.IndexDocument(index.Input{Text: "late arrival"})
	require.NoError(t, err)

	var flushed []string
	ctx, cancel := context.WithCancel(context.Background())
	done := e.StartFlushLoop(ctx, time.Hour, func(path string) { flushed = append(flushed, path) })
	cancel()
	<-done

	require.Len(t, flushed, 1)
	newest, err := segment.Resolve(e.DataDir())
	require.NoError(t, err)
	assert.Equal(t, flushed[0], newest)
}

func TestReadJSONL(t *testing.T) {
	input := `{"id": 1, "text": "africa trade", "data": {"title": "Africa trade"}, "values": {"1": 0.1}}

{"text": "no id", "data": "plain text"}
{"id": 3, "text": "bare"}
`
	var got []index.Input
	n, err := ReadJSONL(context.Background(), strings.NewReader(input), func(in index.Input) error {
		got = append(got, in)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, got, 3)

	assert.Equal(t, uint32(1), got[0].ID)
	assert.JSONEq(t, `{"title": "Africa trade"}`, string(got[0].Data))
	assert.Equal(t, map[uint32]float64{1: 0.1}, got[0].Values)
	assert.Equal(t, uint32(0), got[1].ID)
	assert.Equal(t, "plain text", string(got[1].Data))
	assert.Nil(t, got[2].Data)
}

func TestReadJSONLReportsLine(t *testing.T) {
	input := "{\"text\": \"ok\"}\n{broken\n"
	n, err := ReadJSONL(context.Background(), strings.NewReader(input), func(index.Input) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, n)
}
