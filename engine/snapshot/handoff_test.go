package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoff_ProduceConsumeRoundTrip(t *testing.T) {
	h := NewHandoff(4, 4, 4)

	snap, ok := h.BeginProduce()
	require.True(t, ok)
	snap.Entities = append(snap.Entities, EntityRenderRecord{MeshHandle: 7})
	h.PublishProduce(1)

	read, ok := h.AcquireRead()
	require.True(t, ok)
	assert.Equal(t, uint64(1), read.Generation)
	require.Len(t, read.Entities, 1)
	assert.Equal(t, uint32(7), read.Entities[0].MeshHandle)
	h.ReleaseRead()
}

func TestHandoff_ProducerBlocksUntilConsumed(t *testing.T) {
	h := NewHandoff(1, 1, 1)

	snap, ok := h.BeginProduce()
	require.True(t, ok)
	h.PublishProduce(1)
	_ = snap

	// consumed semaphore is now empty: a second BeginProduce must wait for
	// the render side to release it.
	var secondAcquired sync.WaitGroup
	secondAcquired.Add(1)
	go func() {
		defer secondAcquired.Done()
		_, ok := h.BeginProduce()
		assert.True(t, ok)
	}()

	time.Sleep(30 * time.Millisecond) // should still be blocked
	read, ok := h.AcquireRead()
	require.True(t, ok)
	_ = read
	h.ReleaseRead()

	secondAcquired.Wait()
}

func TestHandoff_StopUnblocksWaiters(t *testing.T) {
	h := NewHandoff(1, 1, 1)
	// Drain the only "consumed" token so a further BeginProduce must wait.
	snap, ok := h.BeginProduce()
	require.True(t, ok)
	_ = snap

	done := make(chan bool, 1)
	go func() {
		_, ok := h.BeginProduce()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	h.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("BeginProduce did not unblock after Stop")
	}
}

func TestHandoff_SlotsAlternate(t *testing.T) {
	h := NewHandoff(1, 1, 1)

	s1, _ := h.BeginProduce()
	h.PublishProduce(1)
	r1, _ := h.AcquireRead()
	assert.Same(t, s1, r1)
	h.ReleaseRead()

	s2, _ := h.BeginProduce()
	assert.NotSame(t, s1, s2, "second tick must write into the other slot")
	h.PublishProduce(2)
	r2, _ := h.AcquireRead()
	assert.Same(t, s2, r2)
	h.ReleaseRead()
}
