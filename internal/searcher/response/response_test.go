package response

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
)

func TestFromMSet(t *testing.T) {
	docs := append(testutil.AfricaDocs(), index.Input{ID: 4, Text: "africa plain", Data: []byte("not json")})
	exec, err := executor.New(testutil.OpenDatabase(t, docs), executor.DefaultConfig())
	require.NoError(t, err)

	ms, err := exec.Evaluate(context.Background(), query.Term{Name: "africa"}, 0, 10)
	require.NoError(t, err)

	page, err := FromMSet(ms, []string{"africa"}, true)
	require.NoError(t, err)
	require.Len(t, page.Hits, 3)
	assert.Equal(t, 3, page.MatchesEstimated)
	assert.Equal(t, map[string]int{"africa": 3}, page.TermFreqs)
	assert.False(t, page.Pruned())
	assert.ElementsMatch(t, []uint32{1, 2, 4}, page.DocIDs())

	for i, h := range page.Hits {
		assert.Equal(t, i, h.Rank)
		require.True(t, json.Valid(h.Data), "hit %d", h.DocID)
	}
	byID := map[uint32]Hit{}
	for _, h := range page.Hits {
		byID[h.DocID] = h
	}
	assert.JSONEq(t, `{"title":"Africa trade"}`, string(byID[1].Data))
	assert.JSONEq(t, `"not json"`, string(byID[4].Data))
	assert.Equal(t, 100, page.Hits[0].Percent)
}

func TestFromMSetWithoutData(t *testing.T) {
	exec, err := executor.New(testutil.OpenDatabase(t, testutil.AfricaDocs()), executor.DefaultConfig())
	require.NoError(t, err)
	ms, err := exec.Evaluate(context.Background(), query.Term{Name: "trade"}, 1, 5)
	require.NoError(t, err)

	page, err := FromMSet(ms, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Hits, 1)
	assert.Nil(t, page.Hits[0].Data)
	assert.Nil(t, page.TermFreqs)

	out, err := json.Marshal(page)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"data"`)
}
