package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[string]()
	for _, s := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(s))
	}
	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueue_CloseDrains(t *testing.T) {
	q := newQueue[int]()
	q.Enqueue(1)
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(2), "enqueue after close")
	assert.False(t, q.Drained(), "queued items survive close")

	v, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, q.Drained())

	// Wait stays readable after close.
	<-q.Wait()
}

func TestQueue_StaleSignalIsNotClose(t *testing.T) {
	q := newQueue[int]()
	q.Enqueue(1)
	_, _ = q.TryDequeue()

	// The signal from the first Enqueue is still pending.
	<-q.Wait()
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Drained())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := newQueue[int]()
	var wg sync.WaitGroup
	for p := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				q.Enqueue(p*100 + i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}
