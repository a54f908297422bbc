package stopper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContains(t *testing.T) {
	s := New("drop")
	require.NoError(t, s.Add("Me"))
	require.NoError(t, s.Add("me"))

	assert.True(t, s.Contains("drop"))
	assert.True(t, s.Contains("ME"))
	assert.False(t, s.Contains("africa"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"drop", "me"}, s.Words())
}

func TestNormalisesDiacritics(t *testing.T) {
	s := New("Über")
	assert.True(t, s.Contains("uber"))
	assert.True(t, s.Contains("über"))
}

func TestIgnoresEmptyWords(t *testing.T) {
	s := New("", "a")
	assert.Equal(t, 1, s.Len())
}

func TestFreeze(t *testing.T) {
	s := New("the").Freeze()
	assert.True(t, s.Frozen())
	assert.ErrorIs(t, s.Add("a"), ErrFrozen)
	assert.True(t, s.Contains("the"))
	assert.False(t, s.Contains("a"))
}

func TestNilStopperContainsNothing(t *testing.T) {
	var s *Stopper
	assert.False(t, s.Contains("the"))
}

func TestConcurrentReadersAfterFreeze(t *testing.T) {
	s := New("drop", "me").Freeze()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if !s.Contains("drop") || s.Contains("africa") {
					t.Error("unexpected stopword lookup result")
					return
				}
			}
		}()
	}
	wg.Wait()
}
