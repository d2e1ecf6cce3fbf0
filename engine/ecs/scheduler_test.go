package ecs

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/threadpool"
)

func testSchedulerPool() *threadpool.Pool {
	return threadpool.NewPool(map[threadpool.SubsystemName]threadpool.SubsystemConfig{
		threadpool.SubsystemECSUpdate: {MinWorkers: 2, MaxWorkers: 4, QueueCapacity: 64},
	})
}

func TestScheduler_RegisterConflictingWritesRejected(t *testing.T) {
	pool := testSchedulerPool()
	defer pool.Shutdown()
	sched := NewScheduler(pool)

	a := &System{Name: "a", Stage: 0, Writes: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}
	b := &System{Name: "b", Stage: 0, Writes: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}

	require.NoError(t, sched.RegisterSystem(a))
	assert.ErrorIs(t, sched.RegisterSystem(b), core.ErrSystemWriteConflict)
}

func TestScheduler_ReadWriteConflictRejected(t *testing.T) {
	pool := testSchedulerPool()
	defer pool.Shutdown()
	sched := NewScheduler(pool)

	writer := &System{Name: "writer", Stage: 0, Writes: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}
	reader := &System{Name: "reader", Stage: 0, Reads: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}

	require.NoError(t, sched.RegisterSystem(writer))
	assert.ErrorIs(t, sched.RegisterSystem(reader), core.ErrSystemWriteConflict)
}

func TestScheduler_DifferentStagesNeverConflict(t *testing.T) {
	pool := testSchedulerPool()
	defer pool.Shutdown()
	sched := NewScheduler(pool)

	a := &System{Name: "a", Stage: 0, Writes: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}
	b := &System{Name: "b", Stage: 1, Writes: []reflect.Type{TypeOf[Position]()}, Run: noopSystem}

	require.NoError(t, sched.RegisterSystem(a))
	require.NoError(t, sched.RegisterSystem(b))
}

func TestScheduler_ExecuteRunsAllStagesInOrder(t *testing.T) {
	pool := testSchedulerPool()
	defer pool.Shutdown()
	sched := NewScheduler(pool)
	w := NewWorld()

	var order []int32
	results := make(chan int32, 2)

	require.NoError(t, sched.RegisterSystem(&System{
		Name: "stage1", Stage: 1,
		Run: func(w *World, dt float64, ud interface{}) error {
			results <- 1
			return nil
		},
	}))
	require.NoError(t, sched.RegisterSystem(&System{
		Name: "stage0", Stage: 0,
		Run: func(w *World, dt float64, ud interface{}) error {
			results <- 0
			return nil
		},
	}))

	sched.Execute(w, 0.016, nil)
	close(results)
	for v := range results {
		order = append(order, v)
	}
	require.Len(t, order, 2)
	assert.Equal(t, int32(0), order[0])
	assert.Equal(t, int32(1), order[1])
	assert.False(t, sched.FrameErrored.Load())
}

func TestScheduler_SystemErrorSetsFrameFlagWithoutAbortingStage(t *testing.T) {
	pool := testSchedulerPool()
	defer pool.Shutdown()
	sched := NewScheduler(pool)
	w := NewWorld()

	var otherRan atomic.Bool
	require.NoError(t, sched.RegisterSystem(&System{
		Name: "failing", Stage: 0,
		Run: func(w *World, dt float64, ud interface{}) error { return errors.New("boom") },
	}))
	require.NoError(t, sched.RegisterSystem(&System{
		Name: "ok", Stage: 0,
		Reads: []reflect.Type{TypeOf[Velocity]()},
		Run: func(w *World, dt float64, ud interface{}) error {
			otherRan.Store(true)
			return nil
		},
	}))

	sched.Execute(w, 0.016, nil)
	assert.True(t, sched.FrameErrored.Load())
	assert.True(t, otherRan.Load())
}

func noopSystem(w *World, dt float64, ud interface{}) error { return nil }
