package snapshot

import (
	"sync/atomic"
	"time"
)

// waitTimeout bounds how long a semaphore wait blocks before re-checking the
// stop flag, so neither side of the hand-off can deadlock on shutdown.
const waitTimeout = 100 * time.Millisecond

// Handoff is the lock-free double-buffer hand-off between the simulation
// thread (producer) and the render thread (consumer). Exactly one of the
// two slots is ever being written at a time; the other is either being read
// or idle, and the write_index flip makes that assignment visible to the
// reader without a mutex.
type Handoff struct {
	slots      [2]*Snapshot
	writeIndex atomic.Uint32

	// consumed is a 1-capacity semaphore: full means the render thread has
	// finished with the previously published slot and the simulation may
	// reuse it. Starts full (count = 1).
	consumed chan struct{}
	// available is a 1-capacity semaphore: full means a new snapshot has
	// been published and is ready for the render thread.
	available chan struct{}

	stopped atomic.Bool
}

// NewHandoff allocates both snapshot slots with the given capacities and
// primes the "consumed" semaphore so the first BeginProduce does not block.
func NewHandoff(capEntities, capLights, capBatches int) *Handoff {
	h := &Handoff{
		consumed:  make(chan struct{}, 1),
		available: make(chan struct{}, 1),
	}
	h.slots[0] = newSnapshot(capEntities, capLights, capBatches)
	h.slots[1] = newSnapshot(capEntities, capLights, capBatches)
	h.consumed <- struct{}{}
	return h
}

// Stop sets the shutdown flag; any in-progress or future wait unblocks
// within waitTimeout and returns ok=false.
func (h *Handoff) Stop() {
	h.stopped.Store(true)
}

// BeginProduce acquires the "consumed" semaphore and returns the snapshot
// slot the simulation thread should build into this tick, freshly reset.
// Returns ok=false if shutdown was signalled while waiting.
func (h *Handoff) BeginProduce() (snap *Snapshot, ok bool) {
	for {
		select {
		case <-h.consumed:
			w := h.writeIndex.Load()
			snap = h.slots[w]
			snap.reset()
			return snap, true
		case <-time.After(waitTimeout):
			if h.stopped.Load() {
				return nil, false
			}
		}
	}
}

// PublishProduce stamps the generation, flips write_index, and posts the
// "available" semaphore so the render thread's next AcquireRead succeeds.
func (h *Handoff) PublishProduce(generation uint64) {
	w := h.writeIndex.Load()
	h.slots[w].Generation = generation
	h.writeIndex.Store(1 - w)
	select {
	case h.available <- struct{}{}:
	default:
	}
}

// AcquireRead waits for a published snapshot and returns the slot the
// render thread should borrow for the full frame. Returns ok=false if
// shutdown was signalled while waiting.
func (h *Handoff) AcquireRead() (snap *Snapshot, ok bool) {
	for {
		select {
		case <-h.available:
			r := 1 - h.writeIndex.Load()
			return h.slots[r], true
		case <-time.After(waitTimeout):
			if h.stopped.Load() {
				return nil, false
			}
		}
	}
}

// ReleaseRead posts the "consumed" semaphore, unblocking the simulation
// thread's next BeginProduce.
func (h *Handoff) ReleaseRead() {
	select {
	case h.consumed <- struct{}{}:
	default:
	}
}
