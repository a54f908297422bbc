package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/resilience"
)

func TestHandleIndexComplete(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDatabaseTo(t, dir, testutil.AfricaDocs())
	r, err := New(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	handle := HandleIndexComplete(r)

	// Garbage is skipped, not retried.
	require.NoError(t, handle(context.Background(), nil, []byte("{not json")))

	next := testutil.WriteDatabaseTo(t, dir, append(testutil.AfricaDocs(), index.Input{ID: 4, Text: "africa again"}))
	value, err := json.Marshal(proto.IndexComplete{Path: next, Documents: 4})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte(next), value))

	path, docs := r.Current()
	assert.Equal(t, next, path)
	assert.Equal(t, uint32(4), docs)

	value, err = json.Marshal(proto.IndexComplete{Path: "/nonexistent/db"})
	require.NoError(t, err)
	err = handle(context.Background(), nil, value)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseNotFound)

	// Permanent failures are not retried by the consumer.
	calls := 0
	retryErr := resilience.Retry(context.Background(), "reload", resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		return handle(context.Background(), nil, value)
	})
	assert.ErrorIs(t, retryErr, apperrors.ErrDatabaseNotFound)
	assert.Equal(t, 1, calls)
}
