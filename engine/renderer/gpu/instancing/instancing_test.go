package instancing

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/renderer/gpu/binder"
	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
	"github.com/vulcanforge/anima/engine/snapshot"
)

type fakeBufferBackend struct {
	next      uint64
	uploads   int
	destroyed []vk.Buffer
}

func (f *fakeBufferBackend) CreateBuffer(size uint64, usage vk.BufferUsageFlags, strategy buffer.Strategy) (vk.Buffer, vk.DeviceMemory, error) {
	f.next++
	return vk.Buffer(f.next), vk.DeviceMemory(f.next), nil
}
func (f *fakeBufferBackend) DestroyBuffer(h vk.Buffer, m vk.DeviceMemory) { f.destroyed = append(f.destroyed, h) }
func (f *fakeBufferBackend) Upload(h vk.Buffer, m vk.DeviceMemory, s buffer.Strategy, data []byte) error {
	f.uploads++
	return nil
}

type fakeBinderBackend struct{ writes int }

func (f *fakeBinderBackend) WriteDescriptor(pipeline uintptr, frame int, loc binder.BindingLocation, res binder.Resource) error {
	f.writes++
	return nil
}

const testPipeline pipelineKey = 7

func newTestCache(t *testing.T) (*Cache, *fakeBufferBackend) {
	be := &fakeBufferBackend{}
	bufMgr := buffer.NewManager(be)
	bnd := binder.NewBinder(&fakeBinderBackend{})
	require.NoError(t, bnd.RegisterPipelineBindings(testPipeline, []binder.ReflectedBinding{
		{Name: "InstanceData", BindingLocation: binder.BindingLocation{Type: binder.StorageBuffer}},
	}))
	return NewCache(bufMgr, bnd), be
}

func testBatch(mesh uint32, n int) snapshot.InstancedBatch {
	instances := make([]snapshot.InstanceRecord, n)
	return snapshot.InstancedBatch{Key: snapshot.BatchKey{MeshHandle: mesh}, Instances: instances}
}

func TestCache_MissThenHit(t *testing.T) {
	c, be := newTestCache(t)

	require.NoError(t, c.EnsureBound(testPipeline, testBatch(1, 3), 1, 0))
	assert.Equal(t, 1, be.uploads)
	assert.Equal(t, 3, c.InstanceCount(1, 1))

	require.NoError(t, c.EnsureBound(testPipeline, testBatch(1, 3), 1, 0))
	assert.Equal(t, 1, be.uploads, "cache hit must not re-upload")
}

func TestCache_GenerationChangeEvictsStaleEntries(t *testing.T) {
	c, be := newTestCache(t)

	require.NoError(t, c.EnsureBound(testPipeline, testBatch(1, 3), 1, 0))
	require.NoError(t, c.EnsureBound(testPipeline, testBatch(1, 4), 2, 1))

	assert.Equal(t, 1, c.Len(), "old generation's entry must be evicted")
	assert.Equal(t, 0, c.InstanceCount(1, 1))
	assert.Equal(t, 4, c.InstanceCount(1, 2))
	_ = be
}
