package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

func TestDatabaseOptions(t *testing.T) {
	sc := config.Default().Search
	sc.DefaultOperator = "and"
	opts, err := databaseOptions(sc)
	require.NoError(t, err)

	db, err := search.Open(testutil.WriteDatabase(t, testutil.AfricaDocs()), opts...)
	require.NoError(t, err)
	defer db.Close()

	q, err := db.ParseQuery("africa trade", search.FlagDefault, nil)
	require.NoError(t, err)
	res, err := db.Evaluate(context.Background(), q, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Size(), "and is the default operator")
	m, err := res.At(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), m.DocID())
}

func TestDatabaseOptionsRejectsUnknownSettings(t *testing.T) {
	for _, mutate := range []func(*config.SearchConfig){
		func(sc *config.SearchConfig) { sc.Weighting = "pagerank" },
		func(sc *config.SearchConfig) { sc.OrCombiner = "avg" },
		func(sc *config.SearchConfig) { sc.AndCombiner = "avg" },
		func(sc *config.SearchConfig) { sc.DefaultOperator = "xor" },
		func(sc *config.SearchConfig) { sc.StopwordPolicy = "drop" },
	} {
		sc := config.Default().Search
		mutate(&sc)
		_, err := databaseOptions(sc)
		assert.Error(t, err)
	}
}
