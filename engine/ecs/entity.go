// Package ecs implements the engine's entity-component-system core: a
// generation-tracked entity table, dense-set component storage, queries over
// the intersection of component sets, and a stage-ordered parallel system
// scheduler built on engine/threadpool.
//
// The design follows the identifier-table idiom already used by
// engine/core/identifier.go (a reusable slot list with free-list recycling)
// generalized with a generation counter so stale handles are detectable, and
// the query style is grounded on the other-pack Gekko ECS's fixed-arity
// MakeQuery2-style generic query helpers.
package ecs

import "fmt"

// Entity is an opaque handle: the low 32 bits are the slot index, the high 32
// bits are the slot's generation at the time the handle was issued. Two
// entities are equal iff both halves match.
type Entity uint64

// InvalidEntity is never returned by CreateEntity.
const InvalidEntity Entity = 0

func makeEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

// Index returns the entity's slot index.
func (e Entity) Index() uint32 { return uint32(e) }

// Generation returns the entity's generation at creation time.
func (e Entity) Generation() uint32 { return uint32(e >> 32) }

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d:%d)", e.Index(), e.Generation())
}

type entitySlot struct {
	generation uint32
	alive      bool
}
