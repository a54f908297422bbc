package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

func openAfrica(t *testing.T, opts ...Option) *Database {
	t.Helper()
	docs := append(testutil.AfricaDocs(), index.Input{ID: 4, Text: "african routes"})
	db, err := Open(testutil.WriteDatabase(t, docs), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ids(t *testing.T, res *MSet) []uint32 {
	t.Helper()
	var out []uint32
	for it := res.Iterator(); it.Next(); {
		m, err := it.Match()
		require.NoError(t, err)
		out = append(out, m.DocID())
	}
	return out
}

func TestStopwordedTermQuery(t *testing.T) {
	db := openAfrica(t)
	stop := NewStopper("drop", "me").Freeze()

	q, err := db.ParseQuery("africa", FlagDefault, stop)
	require.NoError(t, err)
	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint32{1, 2}, ids(t, res))
	assert.Equal(t, 2, res.SizeEstimate())

	q, err = db.ParseQuery("africa drop me", FlagDefault, stop)
	require.NoError(t, err)
	assert.Equal(t, Term("africa"), q)
}

func TestWildcardQuery(t *testing.T) {
	db := openAfrica(t)

	q, err := db.ParseQuery("afr*", FlagDefault|FlagWildcard, nil)
	require.NoError(t, err)
	assert.Equal(t, Or(Term("africa"), Term("african")), q)

	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2, 4}, ids(t, res))
}

func TestProgrammaticQueries(t *testing.T) {
	db := openAfrica(t)

	res, err := db.Evaluate(context.Background(), Wildcard("afr"), 0, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2, 4}, ids(t, res))

	res, err = db.Evaluate(context.Background(), Phrase("africa", "drop"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, ids(t, res))

	res, err = db.Evaluate(context.Background(), Phrase("drop", "africa"), 0, 10)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestPostingSourceBoost(t *testing.T) {
	db := openAfrica(t)

	q := AndMaybe(Term("africa"), Source(Wrap(1)))
	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 1}, ids(t, res))

	first, err := res.At(0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Rank())
	payload, err := first.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Africa drop me"}`, string(payload))
}

func TestResultSetIteration(t *testing.T) {
	db := openAfrica(t)

	res, err := db.Evaluate(context.Background(), Term("africa"), 0, 10)
	require.NoError(t, err)

	it := res.Iterator()
	_, err = it.Match()
	assert.Error(t, err, "iterator starts before the first match")
	for it.Next() {
	}
	for i := 0; i < 3; i++ {
		assert.False(t, it.Next())
		_, err := it.Match()
		assert.Error(t, err)
	}

	_, err = res.At(res.Size())
	assert.True(t, errors.Is(err, apperrors.ErrIndexOutOfRange))

	// A second iterator starts over.
	assert.Len(t, ids(t, res), 2)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, apperrors.ErrDatabaseNotFound))

	dir := t.TempDir()
	bad := filepath.Join(dir, "db_1.rqdb")
	require.NoError(t, os.WriteFile(bad, make([]byte, 4096), 0644))
	_, err = Open(bad)
	assert.True(t, errors.Is(err, apperrors.ErrDatabaseCorrupt))
}

func TestDatabaseAccessors(t *testing.T) {
	db := openAfrica(t)

	assert.Equal(t, uint32(4), db.DocCount())
	assert.Equal(t, uint32(4), db.LastDocID())
	assert.Equal(t, 2, db.TermFreq("africa"))
	assert.Contains(t, db.String(), "4 documents")

	doc, err := db.Document(2)
	require.NoError(t, err)
	v, ok := doc.Value(1)
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, err = db.Document(99)
	assert.True(t, errors.Is(err, apperrors.ErrDocumentNotFound))
}

func TestOptions(t *testing.T) {
	db := openAfrica(t, WithMaxWildcardExpansion(1), WithStopwordPolicy(StopwordEmpty), WithCombiners(CombineMax, CombineSum))

	_, err := db.ParseQuery("afr*", FlagDefault|FlagWildcard, nil)
	assert.True(t, errors.Is(err, apperrors.ErrExpansionLimit))

	q, err := db.ParseQuery("drop me", FlagDefault, NewStopper("drop", "me"))
	require.NoError(t, err)
	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}
