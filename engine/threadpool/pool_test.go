package threadpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
)

func testPool() *Pool {
	cfg := map[SubsystemName]SubsystemConfig{
		SubsystemECSUpdate:    {MinWorkers: 1, MaxWorkers: 2, QueueCapacity: 4},
		SubsystemBVHBuilding:  {MinWorkers: 1, MaxWorkers: 1, QueueCapacity: 4},
		SubsystemAssetLoading: {MinWorkers: 1, MaxWorkers: 1, QueueCapacity: 1},
	}
	return NewPool(cfg)
}

func TestPool_SubmitRuns(t *testing.T) {
	p := testPool()
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	var ran atomic.Bool
	err := p.Submit(WorkItem{
		Subsystem: SubsystemECSUpdate,
		Priority:  PriorityNormal,
		Fn: func(data interface{}) {
			ran.Store(true)
			wg.Done()
		},
	})
	require.NoError(t, err)
	wg.Wait()
	assert.True(t, ran.Load())
}

func TestPool_UnknownSubsystem(t *testing.T) {
	p := testPool()
	defer p.Shutdown()

	err := p.Submit(WorkItem{Subsystem: "no_such_subsystem", Fn: func(interface{}) {}})
	assert.ErrorIs(t, err, core.ErrNoSubsystem)
}

func TestPool_QueueFull(t *testing.T) {
	p := testPool()
	defer p.Shutdown()

	block := make(chan struct{})
	// Occupy the single asset_loading worker so its queue backs up.
	require.NoError(t, p.Submit(WorkItem{
		Subsystem: SubsystemAssetLoading,
		Fn:        func(interface{}) { <-block },
	}))
	time.Sleep(20 * time.Millisecond) // let the worker pick it up

	// Queue capacity is 1 per priority level; fill it, then overflow.
	require.NoError(t, p.Submit(WorkItem{Subsystem: SubsystemAssetLoading, Fn: func(interface{}) {}}))
	err := p.Submit(WorkItem{Subsystem: SubsystemAssetLoading, Fn: func(interface{}) {}})
	assert.ErrorIs(t, err, core.ErrQueueFull)

	close(block)
}

func TestPool_PriorityOrder(t *testing.T) {
	p := testPool()
	defer p.Shutdown()

	block := make(chan struct{})
	require.NoError(t, p.Submit(WorkItem{
		Subsystem: SubsystemBVHBuilding,
		Priority:  PriorityNormal,
		Fn:        func(interface{}) { <-block },
	}))
	time.Sleep(20 * time.Millisecond)

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, p.Submit(WorkItem{
		Subsystem: SubsystemBVHBuilding,
		Priority:  PriorityLow,
		Fn: func(interface{}) {
			mu.Lock()
			order = append(order, "low")
			mu.Unlock()
			wg.Done()
		},
	}))
	require.NoError(t, p.Submit(WorkItem{
		Subsystem: SubsystemBVHBuilding,
		Priority:  PriorityCritical,
		Fn: func(interface{}) {
			mu.Lock()
			order = append(order, "critical")
			mu.Unlock()
			wg.Done()
		},
	}))

	close(block)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "critical", order[0])
	assert.Equal(t, "low", order[1])
}

func TestPool_RequestAndReleaseWorkers(t *testing.T) {
	p := testPool()
	defer p.Shutdown()

	require.NoError(t, p.RequestWorkers(SubsystemECSUpdate, SubsystemBVHBuilding, 1, 50*time.Millisecond))

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(WorkItem{
		Subsystem: SubsystemBVHBuilding,
		Fn:        func(interface{}) { wg.Done() },
	}))
	wg.Wait()

	p.ReleaseWorkers(SubsystemBVHBuilding, 1)
}

func TestPool_Shutdown(t *testing.T) {
	p := testPool()
	p.Shutdown()
	err := p.Submit(WorkItem{Subsystem: SubsystemECSUpdate, Fn: func(interface{}) {}})
	assert.ErrorIs(t, err, core.ErrPoolShutdown)
}
