package postingsource

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
)

type fakeStore struct {
	slots map[uint32][]index.SlotValue
	err   error
}

func (f fakeStore) SlotValues(slot uint32) ([]index.SlotValue, error) {
	return f.slots[slot], f.err
}

func (f fakeStore) SlotBounds(slot uint32) (float64, float64, bool) {
	values := f.slots[slot]
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi := index.SlotEntry{Values: values}.Bounds()
	return lo, hi, true
}

func newStore() fakeStore {
	return fakeStore{slots: map[uint32][]index.SlotValue{
		1: {{DocID: 1, Value: 0.5}, {DocID: 2, Value: 8}, {DocID: 5, Value: 2}, {DocID: 9, Value: -3}},
	}}
}

func TestCursorIteratesInDocOrder(t *testing.T) {
	c, err := Wrap(1).Open(newStore())
	require.NoError(t, err)

	assert.Zero(t, c.DocID())
	assert.False(t, c.AtEnd())

	var docs []uint32
	var weights []float64
	for c.Next() {
		docs = append(docs, c.DocID())
		weights = append(weights, c.Weight())
	}
	assert.Equal(t, []uint32{1, 2, 5, 9}, docs)
	assert.Equal(t, []float64{0.5, 8, 2, 0}, weights, "negative values clamp to zero")
	assert.True(t, c.AtEnd())
	assert.False(t, c.Next())
	assert.False(t, c.Next())
	assert.Zero(t, c.DocID())
	assert.Equal(t, 8.0, c.MaxWeight())
	assert.Equal(t, 4, c.Estimate())
}

func TestCursorSkipTo(t *testing.T) {
	c, err := Wrap(1).Open(newStore())
	require.NoError(t, err)

	require.True(t, c.SkipTo(2))
	assert.Equal(t, uint32(2), c.DocID())

	require.True(t, c.SkipTo(1), "skip_to never moves backwards")
	assert.Equal(t, uint32(2), c.DocID())

	require.True(t, c.SkipTo(3))
	assert.Equal(t, uint32(5), c.DocID())
	assert.Equal(t, 2, c.Remaining())

	assert.False(t, c.SkipTo(10))
	assert.True(t, c.AtEnd())
	assert.False(t, c.SkipTo(1))
}

func TestTransforms(t *testing.T) {
	b := Bounds{Lower: 0.5, Upper: 8}
	tests := []struct {
		name string
		tr   Transform
		in   float64
		want float64
	}{
		{"identity", Identity, 2, 2},
		{"log", LogScale, math.E - 1, 1},
		{"normalize lower", Normalize, 0.5, 0},
		{"normalize upper", Normalize, 8, 1},
		{"scale", Scale(3), 2, 6},
		{"zero", Zero, 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.tr.Apply(tt.in, b), 1e-12)
		})
	}
	assert.Equal(t, 1.0, Normalize.Apply(3, Bounds{Lower: 3, Upper: 3}))
}

func TestWrapWithTransform(t *testing.T) {
	src := Wrap(1, WithTransform(Normalize))
	assert.Equal(t, "ValueWeightPostingSource(slot=1, transform=normalize)", src.String())

	c, err := src.Open(newStore())
	require.NoError(t, err)
	require.True(t, c.SkipTo(2))
	assert.Equal(t, 1.0, c.Weight())
}

func TestValuePresence(t *testing.T) {
	src := NewValuePresence(1)
	assert.Equal(t, "ValuePostingSource(slot=1)", src.String())
	c, err := src.Open(newStore())
	require.NoError(t, err)
	n := 0
	for c.Next() {
		assert.Zero(t, c.Weight())
		n++
	}
	assert.Equal(t, 4, n)
	assert.Zero(t, c.MaxWeight())
}

func TestEmptySlot(t *testing.T) {
	c, err := Wrap(7).Open(newStore())
	require.NoError(t, err)
	assert.False(t, c.Next())
	assert.True(t, c.AtEnd())
}

func TestOpenError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Wrap(1).Open(fakeStore{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestParseTransform(t *testing.T) {
	for _, name := range []string{"", "identity", "log", "normalize", "zero"} {
		_, err := ParseTransform(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseTransform("sqrt")
	assert.Error(t, err)
}
