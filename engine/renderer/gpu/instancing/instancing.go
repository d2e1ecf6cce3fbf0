// Package instancing implements the instanced draw cache that lives inside
// the geometry pass: per-mesh packed instance buffers keyed by
// (mesh handle, snapshot generation), rebuilt only on a cache miss and
// bound once per pipeline per frame.
//
// Grounded on engine/systems/mesh.go's per-mesh GPU-resource bookkeeping,
// generalized with the generation-keyed cache and deferred-ring eviction
// the spec's instanced draw cache model adds.
package instancing

import (
	"fmt"
	"math"

	"github.com/vulcanforge/anima/engine/renderer/gpu/binder"
	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
	"github.com/vulcanforge/anima/engine/snapshot"
)

// CacheKey identifies one unique (mesh, snapshot generation) instance
// buffer.
type CacheKey struct {
	MeshHandle uint32
	Generation uint64
}

type cacheEntry struct {
	buf          *buffer.ManagedBuffer
	instanceCount int
}

// Cache is the instanced draw cache. One Cache instance is owned by the
// geometry pass.
type Cache struct {
	bufMgr *buffer.Manager
	binder *binder.Binder

	entries        map[CacheKey]*cacheEntry
	lastGeneration uint64
	haveGeneration bool
}

// NewCache returns an empty cache backed by bufMgr for buffer allocation
// and b for binding the resolved SSBO to the geometry pipeline.
func NewCache(bufMgr *buffer.Manager, b *binder.Binder) *Cache {
	return &Cache{
		bufMgr:  bufMgr,
		binder:  b,
		entries: make(map[CacheKey]*cacheEntry),
	}
}

func packInstances(batch snapshot.InstancedBatch) []byte {
	out := make([]byte, 0, len(batch.Instances)*80)
	for _, inst := range batch.Instances {
		for _, f := range inst.Model {
			out = appendFloat32(out, f)
		}
		out = appendUint32(out, inst.MaterialIndex)
		for range inst.Padding {
			out = appendUint32(out, 0)
		}
	}
	return out
}

func appendFloat32(b []byte, v float32) []byte {
	return appendUint32(b, math.Float32bits(v))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// pipelineKey identifies the geometry pipeline the instance SSBO is bound
// to; mirrors binder's own key type without importing it as an alias.
type pipelineKey = uintptr

// EnsureBound guarantees a frame-correct, bound instance buffer for batch.
// On a cache miss it packs and uploads the batch's instance data, inserts
// the result into the cache, and binds it via resource_binder under the
// name "InstanceData". On a hit it reuses the cached buffer and does not
// rebind, since the buffer's generation (and thus the bound descriptor) is
// unchanged.
func (c *Cache) EnsureBound(pipeline pipelineKey, batch snapshot.InstancedBatch, snapshotGeneration uint64, frameIdx int) error {
	if !c.haveGeneration || snapshotGeneration != c.lastGeneration {
		c.evictStale(snapshotGeneration, frameIdx)
		c.lastGeneration = snapshotGeneration
		c.haveGeneration = true
	}

	key := CacheKey{MeshHandle: batch.Key.MeshHandle, Generation: snapshotGeneration}
	if _, ok := c.entries[key]; ok {
		return nil
	}

	data := packInstances(batch)
	buf, err := c.bufMgr.CreateAndUpload(fmt.Sprintf("instances_%d_%d", key.MeshHandle, key.Generation), data, 0, buffer.DeviceLocal, frameIdx)
	if err != nil {
		return err
	}
	c.entries[key] = &cacheEntry{buf: buf, instanceCount: len(batch.Instances)}
	return c.binder.BindStorageBufferNamed(pipeline, "InstanceData", frameIdx, buf)
}

// InstanceCount returns the number of instances packed for (mesh,
// generation), or 0 if absent from the cache.
func (c *Cache) InstanceCount(meshHandle uint32, generation uint64) int {
	e, ok := c.entries[CacheKey{MeshHandle: meshHandle, Generation: generation}]
	if !ok {
		return 0
	}
	return e.instanceCount
}

// Len reports how many (mesh, generation) entries are currently cached.
func (c *Cache) Len() int { return len(c.entries) }

// evictStale removes every entry not belonging to newGeneration, queuing
// each evicted buffer for deferred destruction; the buffers were already
// uploaded and may still be referenced by in-flight command buffers, so the
// buffer manager's own MaxFramesInFlight ring — not immediate destruction —
// guarantees they outlive any frame still drawing them.
func (c *Cache) evictStale(newGeneration uint64, frameIdx int) {
	for key, entry := range c.entries {
		if key.Generation == newGeneration {
			continue
		}
		c.bufMgr.QueueDestruction(entry.buf, frameIdx)
		delete(c.entries, key)
	}
}
