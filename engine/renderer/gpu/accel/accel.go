// Package accel implements the threaded BLAS/TLAS builder: one BLAS per
// mesh built on the thread pool's bvh_building subsystem, completed handles
// published through a lock-free stack, and TLAS completion published
// through an atomic pointer the render thread reads once per frame.
//
// Grounded on engine/containers.LockFreeStack (itself grounded on the
// spec's CAS-stack requirement) and engine/renderer/vulkan/context.go's
// handle-plus-memory resource shape, generalized to acceleration
// structures.
package accel

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/vulcanforge/anima/engine/containers"
	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu"
	"github.com/vulcanforge/anima/engine/threadpool"
)

// BLAS is one mesh's bottom-level acceleration structure.
type BLAS struct {
	MeshID uint32
	Handle vk.AccelerationStructureKHR
	Buffer vk.Buffer
	Memory vk.DeviceMemory
}

// TLAS is a set's top-level acceleration structure, published atomically
// once built.
type TLAS struct {
	Handle     vk.AccelerationStructureKHR
	Buffer     vk.Buffer
	Memory     vk.DeviceMemory
	generation uint64
}

// Generation satisfies the binder package's resource interface.
func (t *TLAS) Generation() uint64 { return t.generation }

// BuildBackend performs the actual device-side BLAS/TLAS builds. Supplied
// by the Vulkan backend; tests use a fake.
type BuildBackend interface {
	BuildBLAS(meshID uint32) (*BLAS, error)
	BuildTLAS(blases []*BLAS) (*TLAS, error)
	DestroyAccelerationStructure(handle vk.AccelerationStructureKHR, buf vk.Buffer, mem vk.DeviceMemory)
}

// Set owns one TLAS and its constituent BLASes, keyed by mesh ID.
type Set struct {
	backend BuildBackend
	pool    *threadpool.Pool

	completed *containers.LockFreeStack[*BLAS]
	blasByMesh map[uint32]*BLAS

	tlas atomic.Pointer[TLAS]
	tlasGen atomic.Uint64

	deferred gpu.DeferredRing[destroyRequest]
}

type destroyRequest struct {
	handle vk.AccelerationStructureKHR
	buf    vk.Buffer
	mem    vk.DeviceMemory
}

// NewSet returns an acceleration-structure set driven by backend and
// submitting BLAS builds to pool's bvh_building subsystem.
func NewSet(backend BuildBackend, pool *threadpool.Pool) *Set {
	return &Set{
		backend:    backend,
		pool:       pool,
		completed:  containers.NewLockFreeStack[*BLAS](),
		blasByMesh: make(map[uint32]*BLAS),
	}
}

// SubmitBLASBuild enqueues a BLAS build for meshID on the bvh_building
// subsystem. On success the completed BLAS is pushed onto the lock-free
// stack; failures are reported to onError rather than aborting the set.
func (s *Set) SubmitBLASBuild(meshID uint32, priority threadpool.Priority, onError func(meshID uint32, err error)) error {
	return s.pool.Submit(threadpool.WorkItem{
		Subsystem: threadpool.SubsystemBVHBuilding,
		Priority:  priority,
		Fn: func(interface{}) {
			blas, err := s.backend.BuildBLAS(meshID)
			if err != nil {
				core.LogError("bvh: blas build failed for mesh %d: %v", meshID, err)
				if onError != nil {
					onError(meshID, err)
				}
				return
			}
			s.completed.Push(blas)
		},
	})
}

// DrainCompletedBLASes atomically pops every BLAS finished since the last
// call and folds them into the per-mesh map, replacing any prior entry for
// the same mesh (and queuing the old one for deferred destruction).
func (s *Set) DrainCompletedBLASes(frameIdx int) {
	for _, blas := range s.completed.PopAll() {
		if old, ok := s.blasByMesh[blas.MeshID]; ok {
			s.deferred.Queue(frameIdx, destroyRequest{handle: old.Handle, buf: old.Buffer, mem: old.Memory})
		}
		s.blasByMesh[blas.MeshID] = blas
	}
}

// BuildTLAS builds a TLAS from whichever BLASes have completed so far and
// publishes it with release ordering. Partial geometry renders without ray
// tracing for any mesh whose BLAS has not completed yet, per the spec's
// failure-mode contract.
func (s *Set) BuildTLAS() error {
	blases := make([]*BLAS, 0, len(s.blasByMesh))
	for _, b := range s.blasByMesh {
		blases = append(blases, b)
	}
	tlas, err := s.backend.BuildTLAS(blases)
	if err != nil {
		return fmt.Errorf("%w: tlas build: %v", core.ErrAllocationFailed, err)
	}
	tlas.generation = s.tlasGen.Add(1)
	s.tlas.Store(tlas)
	return nil
}

// CurrentTLAS reads the published TLAS with acquire ordering. Returns nil
// if no TLAS has ever completed.
func (s *Set) CurrentTLAS() *TLAS {
	return s.tlas.Load()
}

// BeginFrame destroys every acceleration structure queued for destruction
// in frameIdx's deferred-ring slot.
func (s *Set) BeginFrame(frameIdx int) {
	for _, req := range s.deferred.Drain(frameIdx) {
		s.backend.DestroyAccelerationStructure(req.handle, req.buf, req.mem)
	}
}
