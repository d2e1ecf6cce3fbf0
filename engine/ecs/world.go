package ecs

import (
	"reflect"
	"sync"

	"github.com/vulcanforge/anima/engine/core"
)

// World owns every entity slot and every registered component's dense set.
// Entity slot bookkeeping is grounded on engine/core/identifier.go's
// free-list-of-owners pattern, generalized with a generation counter per
// slot so handles can go stale.
type World struct {
	mu sync.RWMutex

	slots    []entitySlot
	freeList []uint32

	storages map[reflect.Type]componentStorage
}

// NewWorld returns an empty world with no registered component types.
func NewWorld() *World {
	return &World{
		storages: make(map[reflect.Type]componentStorage),
	}
}

// CreateEntity allocates a new entity, recycling a free slot (with bumped
// generation) when one is available.
func (w *World) CreateEntity() Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.freeList); n > 0 {
		idx := w.freeList[n-1]
		w.freeList = w.freeList[:n-1]
		w.slots[idx].alive = true
		return makeEntity(idx, w.slots[idx].generation)
	}

	idx := uint32(len(w.slots))
	w.slots = append(w.slots, entitySlot{generation: 1, alive: true})
	return makeEntity(idx, 1)
}

// IsAlive reports whether e still refers to a live slot at its recorded
// generation.
func (w *World) IsAlive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isAliveLocked(e)
}

func (w *World) isAliveLocked(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(w.slots) {
		return false
	}
	slot := w.slots[idx]
	return slot.alive && slot.generation == e.Generation()
}

// DestroyEntity invalidates e, removes its components from every registered
// storage, bumps the slot's generation, and returns it to the free list.
// Returns ErrEntityDestroyed if e is already stale.
func (w *World) DestroyEntity(e Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isAliveLocked(e) {
		return core.ErrEntityDestroyed
	}
	idx := e.Index()
	for _, s := range w.storages {
		if s.has(idx) {
			s.remove(idx)
		}
	}
	w.slots[idx].alive = false
	w.slots[idx].generation++
	w.freeList = append(w.freeList, idx)
	return nil
}

func componentType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register allocates a dense set for component type T. Must be called
// before Add[T] is used. Returns ErrAlreadyRegistered if T was already
// registered.
func Register[T any](w *World) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := componentType[T]()
	if _, ok := w.storages[t]; ok {
		return core.ErrAlreadyRegistered
	}
	w.storages[t] = NewComponentStorage[T]()
	return nil
}

func storageFor[T any](w *World) (*ComponentStorage[T], bool) {
	t := componentType[T]()
	s, ok := w.storages[t]
	if !ok {
		return nil, false
	}
	cs, ok := s.(*ComponentStorage[T])
	return cs, ok
}

// Add attaches value as e's T component. Returns ErrEntityDestroyed if e is
// stale, or ErrComponentNotRegistered if T was never registered.
func Add[T any](w *World, e Entity, value T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isAliveLocked(e) {
		return core.ErrEntityDestroyed
	}
	cs, ok := storageFor[T](w)
	if !ok {
		return core.ErrComponentNotRegistered
	}
	cs.Add(e.Index(), value)
	return nil
}

// Remove detaches e's T component, if any.
func Remove[T any](w *World, e Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isAliveLocked(e) {
		return core.ErrEntityDestroyed
	}
	cs, ok := storageFor[T](w)
	if !ok {
		return core.ErrComponentNotRegistered
	}
	cs.Remove(e.Index())
	return nil
}

// Get returns a read pointer to e's T component, or nil if absent or e is
// stale. Callers in a system's read set must not mutate through it.
func Get[T any](w *World, e Entity) *T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.isAliveLocked(e) {
		return nil
	}
	cs, ok := storageFor[T](w)
	if !ok {
		return nil
	}
	return cs.Get(e.Index())
}

// GetMut returns a write pointer to e's T component, or nil if absent or e
// is stale. Callers must hold T in their declared write set.
func GetMut[T any](w *World, e Entity) *T {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isAliveLocked(e) {
		return nil
	}
	cs, ok := storageFor[T](w)
	if !ok {
		return nil
	}
	return cs.Get(e.Index())
}

// storageRaw exposes the underlying *ComponentStorage[T] for use by the
// query helpers in view.go, which iterate the dense arrays directly rather
// than going through the World's entity-keyed API.
func storageRaw[T any](w *World) (*ComponentStorage[T], bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return storageFor[T](w)
}

func (w *World) entityFor(index uint32) Entity {
	return makeEntity(index, w.slots[index].generation)
}
