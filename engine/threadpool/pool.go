// Package threadpool implements the engine's multi-subsystem worker pool.
//
// Workers are grouped into named subsystems, each with its own bounded
// priority queue and worker count. This generalizes the single flat job
// queue the rest of the pack uses (engine/systems/job.go) into the
// named-subsystem model the render-graph core needs: the ECS scheduler,
// the BVH/TLAS builder, and the asset loader each get a dedicated lane so a
// flood of one kind of work cannot starve another.
package threadpool

import (
	"sync"
	"time"

	"github.com/vulcanforge/anima/engine/containers"
	"github.com/vulcanforge/anima/engine/core"
)

// Priority is a work item's scheduling priority within its subsystem.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow

	priorityLevels = 4
)

// SubsystemName identifies one of the pool's named worker lanes.
type SubsystemName string

const (
	SubsystemHotReload    SubsystemName = "hot_reload"
	SubsystemBVHBuilding  SubsystemName = "bvh_building"
	SubsystemECSUpdate    SubsystemName = "ecs_update"
	SubsystemAssetLoading SubsystemName = "asset_loading"
	SubsystemRendering    SubsystemName = "rendering"
)

// WorkItem is a unit of work submitted to a subsystem's queue.
type WorkItem struct {
	Subsystem SubsystemName
	Priority  Priority
	Fn        func(data interface{})
	Data      interface{}
}

// SubsystemConfig configures one named subsystem's worker count and queue
// capacity (capacity applies per priority level). The pool starts
// MaxWorkers workers per subsystem; MinWorkers is not read.
type SubsystemConfig struct {
	MinWorkers    int
	MaxWorkers    int
	QueueCapacity int
}

// DefaultIdleBorrowTimeout is how long a borrowed worker may sit idle before
// it is implicitly returned to its lending subsystem.
const DefaultIdleBorrowTimeout = 250 * time.Millisecond

type borrowedWorker struct {
	stop chan struct{}
	from SubsystemName
}

type subsystem struct {
	name SubsystemName
	cfg  SubsystemConfig

	mu     sync.Mutex
	cond   *sync.Cond
	queues [priorityLevels]*containers.RingQueue

	stopCh  chan struct{}
	wg      sync.WaitGroup
	borrows []*borrowedWorker
}

func newSubsystem(name SubsystemName, cfg SubsystemConfig) *subsystem {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	s := &subsystem{
		name:   name,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.queues {
		s.queues[i] = containers.NewRingQueue(cfg.QueueCapacity)
	}
	return s
}

func (s *subsystem) emptyLocked() bool {
	for _, q := range s.queues {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}

func (s *subsystem) popHighestLocked() (WorkItem, bool) {
	for _, q := range s.queues {
		if !q.IsEmpty() {
			v, err := q.Dequeue()
			if err != nil {
				continue
			}
			return v.(WorkItem), true
		}
	}
	return WorkItem{}, false
}

func (s *subsystem) submit(item WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.queues[item.Priority].Enqueue(item); err != nil {
		return core.ErrQueueFull
	}
	s.cond.Signal()
	return nil
}

func (s *subsystem) runWorker(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for s.emptyLocked() {
			select {
			case <-stop:
				s.mu.Unlock()
				return
			default:
			}
			s.cond.Wait()
		}
		select {
		case <-stop:
			s.mu.Unlock()
			return
		default:
		}
		item, ok := s.popHighestLocked()
		s.mu.Unlock()
		if ok {
			item.Fn(item.Data)
		}
	}
}

func (s *subsystem) shutdown() {
	close(s.stopCh)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// Pool is the engine's multi-subsystem worker pool.
type Pool struct {
	mu         sync.Mutex
	subsystems map[SubsystemName]*subsystem
	shutdown   bool
}

// NewPool creates a pool with the given per-subsystem configuration. Any
// subsystem name from {hot_reload, bvh_building, ecs_update, asset_loading,
// rendering} not present in configs falls back to a single-worker default.
func NewPool(configs map[SubsystemName]SubsystemConfig) *Pool {
	p := &Pool{subsystems: make(map[SubsystemName]*subsystem)}
	defaults := []SubsystemName{
		SubsystemHotReload, SubsystemBVHBuilding, SubsystemECSUpdate,
		SubsystemAssetLoading, SubsystemRendering,
	}
	for _, name := range defaults {
		cfg, ok := configs[name]
		if !ok {
			cfg = SubsystemConfig{MinWorkers: 1, MaxWorkers: 1, QueueCapacity: 256}
		}
		p.addSubsystem(name, cfg)
	}
	for name, cfg := range configs {
		if _, exists := p.subsystems[name]; !exists {
			p.addSubsystem(name, cfg)
		}
	}
	return p
}

func (p *Pool) addSubsystem(name SubsystemName, cfg SubsystemConfig) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	s := newSubsystem(name, cfg)
	s.wg.Add(cfg.MaxWorkers)
	for i := 0; i < cfg.MaxWorkers; i++ {
		go s.runWorker(s.stopCh)
	}
	p.subsystems[name] = s
}

// Submit enqueues work on the named subsystem. Returns ErrQueueFull if the
// subsystem's queue for that priority is at capacity, or ErrNoSubsystem if
// the subsystem name is unknown.
func (p *Pool) Submit(item WorkItem) error {
	p.mu.Lock()
	s, ok := p.subsystems[item.Subsystem]
	shuttingDown := p.shutdown
	p.mu.Unlock()
	if !ok {
		return core.ErrNoSubsystem
	}
	if shuttingDown {
		return core.ErrPoolShutdown
	}
	return s.submit(item)
}

// RequestWorkers temporarily borrows n workers from `from` on behalf of
// `to`. Borrowed workers run `to`'s queue and are returned either explicitly
// via ReleaseWorkers or implicitly once idle for longer than timeout.
func (p *Pool) RequestWorkers(from, to SubsystemName, n int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultIdleBorrowTimeout
	}
	p.mu.Lock()
	src, okFrom := p.subsystems[from]
	dst, okTo := p.subsystems[to]
	p.mu.Unlock()
	if !okFrom || !okTo {
		return core.ErrNoSubsystem
	}
	for i := 0; i < n; i++ {
		bw := &borrowedWorker{stop: make(chan struct{}), from: from}
		src.mu.Lock()
		src.borrows = append(src.borrows, bw)
		src.mu.Unlock()
		dst.wg.Add(1)
		go p.runBorrowedWorker(dst, bw, timeout)
	}
	return nil
}

// runBorrowedWorker polls dst's queue rather than blocking on its
// sync.Cond: a borrowed worker must additionally wake on its own stop
// channel and on an idle timeout, which a plain cond.Wait cannot express
// without a per-waiter goroutine leak, so a short poll interval is used
// instead.
func (p *Pool) runBorrowedWorker(dst *subsystem, bw *borrowedWorker, timeout time.Duration) {
	defer dst.wg.Done()
	const pollInterval = 2 * time.Millisecond
	idleSince := time.Now()
	for {
		select {
		case <-bw.stop:
			return
		case <-dst.stopCh:
			return
		default:
		}

		dst.mu.Lock()
		item, ok := dst.popHighestLocked()
		dst.mu.Unlock()

		if ok {
			idleSince = time.Now()
			item.Fn(item.Data)
			continue
		}
		if time.Since(idleSince) > timeout {
			return
		}
		time.Sleep(pollInterval)
	}
}

// ReleaseWorkers stops up to n of the currently-borrowed-into-`to` workers.
func (p *Pool) ReleaseWorkers(to SubsystemName, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subsystems {
		s.mu.Lock()
		for n > 0 && len(s.borrows) > 0 {
			bw := s.borrows[len(s.borrows)-1]
			s.borrows = s.borrows[:len(s.borrows)-1]
			close(bw.stop)
			n--
		}
		s.mu.Unlock()
	}
}

// Shutdown sets the global stop flag and waits for every worker (including
// borrowed ones) to finish its current item and exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	for _, s := range p.subsystems {
		s.shutdown()
	}
}
