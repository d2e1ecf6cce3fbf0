package ecs

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/threadpool"
)

// SystemFunc is the body of a system: it may mutate World through the
// component types in its declared write set and read through its read set,
// and returns an error if the tick failed for that system only.
type SystemFunc func(w *World, dt float64, userdata interface{}) error

// System is a scheduled unit of simulation work: a function plus its
// declared access set and stage. The scheduler uses Reads/Writes to decide
// which systems in the same stage may run concurrently.
type System struct {
	Name     string
	Stage    int
	Priority threadpool.Priority
	Reads    []reflect.Type
	Writes   []reflect.Type
	Run      SystemFunc
}

// TypeOf returns the reflect.Type key a system should list in Reads/Writes
// for component type T.
func TypeOf[T any]() reflect.Type { return componentType[T]() }

func conflicts(a, b *System) bool {
	for _, w := range a.Writes {
		for _, r := range b.Reads {
			if w == r {
				return true
			}
		}
		for _, w2 := range b.Writes {
			if w == w2 {
				return true
			}
		}
	}
	for _, w := range b.Writes {
		for _, r := range a.Reads {
			if w == r {
				return true
			}
		}
	}
	return false
}

// Scheduler runs registered systems stage by stage, submitting the systems
// within a stage to the thread pool's ecs_update subsystem and spinning on
// an atomic completion counter, per the spec's execute algorithm.
type Scheduler struct {
	pool *threadpool.Pool

	mu         sync.Mutex
	stages     map[int][]*System
	stageOrder []int

	// FrameErrored is set for any stage that logged at least one system
	// error during the most recent Execute call. It is not reset until the
	// next Execute call begins, so callers can read it after the tick.
	FrameErrored atomic.Bool
}

// NewScheduler builds a scheduler that submits work to pool's ecs_update
// subsystem.
func NewScheduler(pool *threadpool.Pool) *Scheduler {
	return &Scheduler{
		pool:   pool,
		stages: make(map[int][]*System),
	}
}

// RegisterSystem adds s to its declared stage. Returns ErrSystemWriteConflict
// if s's write set conflicts with an already-registered system in the same
// stage; such systems must be split into separate stages instead.
// Conflicts are found by comparing the reflect.Type entries of Reads and
// Writes only: two distinct component types that alias the same underlying
// data are not detected, and keeping such systems apart is the caller's
// responsibility.
func (sched *Scheduler) RegisterSystem(s *System) error {
	sched.mu.Lock()
	defer sched.mu.Unlock()

	existing, ok := sched.stages[s.Stage]
	if !ok {
		sched.stageOrder = append(sched.stageOrder, s.Stage)
		sortInts(sched.stageOrder)
	}
	for _, other := range existing {
		if conflicts(s, other) {
			return core.ErrSystemWriteConflict
		}
	}
	sched.stages[s.Stage] = append(existing, s)
	return nil
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// Execute runs every stage in order against world, passing dt and userdata
// to each system. Within a stage, systems are submitted to the ecs_update
// subsystem and run concurrently; the main goroutine spins on a completion
// counter with a cooperative yield between checks, per the spec.
func (sched *Scheduler) Execute(w *World, dt float64, userdata interface{}) {
	sched.mu.Lock()
	order := append([]int(nil), sched.stageOrder...)
	stagesCopy := make(map[int][]*System, len(sched.stages))
	for k, v := range sched.stages {
		stagesCopy[k] = append([]*System(nil), v...)
	}
	sched.mu.Unlock()

	sched.FrameErrored.Store(false)

	for _, stageIdx := range order {
		systems := stagesCopy[stageIdx]
		if len(systems) == 0 {
			continue
		}
		var completion atomic.Int64
		completion.Store(int64(len(systems)))

		for _, s := range systems {
			s := s
			err := sched.pool.Submit(threadpool.WorkItem{
				Subsystem: threadpool.SubsystemECSUpdate,
				Priority:  s.Priority,
				Fn: func(interface{}) {
					defer completion.Add(-1)
					if runErr := s.Run(w, dt, userdata); runErr != nil {
						core.LogError("ecs: system %q failed: %v", s.Name, runErr)
						sched.FrameErrored.Store(true)
					}
				},
			})
			if err != nil {
				// Queue full or pool shut down: run inline so the stage still
				// completes, and record the failure as a frame error.
				if runErr := s.Run(w, dt, userdata); runErr != nil {
					core.LogError("ecs: system %q failed: %v", s.Name, runErr)
				}
				completion.Add(-1)
				sched.FrameErrored.Store(true)
			}
		}

		for completion.Load() > 0 {
			runtime.Gosched()
		}
	}
}
