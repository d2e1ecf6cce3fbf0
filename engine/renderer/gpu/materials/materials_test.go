package materials

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
	"github.com/vulcanforge/anima/engine/renderer/gpu/texture"
)

type fakeBufferBackend struct {
	next      uint64
	destroyed []vk.Buffer
}

func (f *fakeBufferBackend) CreateBuffer(size uint64, usage vk.BufferUsageFlags, strategy buffer.Strategy) (vk.Buffer, vk.DeviceMemory, error) {
	f.next++
	return vk.Buffer(f.next), vk.DeviceMemory(f.next), nil
}
func (f *fakeBufferBackend) DestroyBuffer(h vk.Buffer, m vk.DeviceMemory) { f.destroyed = append(f.destroyed, h) }
func (f *fakeBufferBackend) Upload(h vk.Buffer, m vk.DeviceMemory, s buffer.Strategy, data []byte) error {
	return nil
}

func dummyEncoder(records []MaterialRecord, resolve func(string) (uint32, bool)) ([]byte, error) {
	out := make([]byte, 0, len(records)*4)
	for _, r := range records {
		idx, ok := resolve(r.AlbedoTextureAsset)
		if !ok {
			return nil, errors.New("unresolved texture")
		}
		out = append(out, byte(idx))
	}
	return out, nil
}

func TestTextureSet_IndexZeroIsFallbackAndDirtyOnAdd(t *testing.T) {
	ts := NewTextureSet("env", texture.Descriptor{})
	assert.Equal(t, uint64(0), ts.RebuildGeneration(), "never rebuilt yet")

	ts.AddTexture("rock.png", texture.Descriptor{})
	assert.True(t, ts.dirty, "adding a texture marks the set dirty")
	idx, ok := ts.GetTextureIndex("rock.png")
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)
}

func TestTextureSet_RebuildRequiresValidDescriptors(t *testing.T) {
	ts := NewTextureSet("env", texture.Descriptor{})
	ts.AddTexture("rock.png", texture.Descriptor{})

	ts.Rebuild(false)
	assert.Equal(t, uint64(0), ts.RebuildGeneration(), "must not rebuild with invalid descriptors")

	ts.Rebuild(true)
	assert.Greater(t, ts.RebuildGeneration(), uint64(0))
}

func TestMaterialSet_RebuildDeclinedWhileTextureSetGenerationZero(t *testing.T) {
	ts := NewTextureSet("env", texture.Descriptor{})
	bufMgr := buffer.NewManager(&fakeBufferBackend{})
	ms := NewMaterialSet("env_materials", ts, bufMgr, dummyEncoder)

	ms.AddMaterial(MaterialRecord{ID: "rock_mat", AlbedoTextureAsset: "rock.png"}, texture.Descriptor{})
	require.True(t, ms.IsDirty())

	require.NoError(t, ms.Rebuild(ts.RebuildGeneration(), 0))
	assert.Nil(t, ms.Buffer(), "must not build against a texture set that has never rebuilt")
	assert.True(t, ms.IsDirty(), "stays dirty until the invariant is satisfied")
}

func TestMaterialSet_RebuildSucceedsOnceTextureSetHasRebuilt(t *testing.T) {
	ts := NewTextureSet("env", texture.Descriptor{})
	bufMgr := buffer.NewManager(&fakeBufferBackend{})
	ms := NewMaterialSet("env_materials", ts, bufMgr, dummyEncoder)

	ms.AddMaterial(MaterialRecord{ID: "rock_mat", AlbedoTextureAsset: "rock.png"}, texture.Descriptor{})
	ts.Rebuild(true)

	require.NoError(t, ms.Rebuild(ts.RebuildGeneration(), 0))
	require.NotNil(t, ms.Buffer())
	assert.False(t, ms.IsDirty())
}

func TestMaterialSet_RebuildQueuesPreviousBufferForDestruction(t *testing.T) {
	ts := NewTextureSet("env", texture.Descriptor{})
	be := &fakeBufferBackend{}
	bufMgr := buffer.NewManager(be)
	ms := NewMaterialSet("env_materials", ts, bufMgr, dummyEncoder)

	ms.AddMaterial(MaterialRecord{ID: "a", AlbedoTextureAsset: "a.png"}, texture.Descriptor{})
	ts.Rebuild(true)
	require.NoError(t, ms.Rebuild(ts.RebuildGeneration(), 0))
	firstBuf := ms.Buffer()

	ms.AddMaterial(MaterialRecord{ID: "b", AlbedoTextureAsset: "b.png"}, texture.Descriptor{})
	ts.Rebuild(true)
	require.NoError(t, ms.Rebuild(ts.RebuildGeneration(), 1))

	assert.NotSame(t, firstBuf, ms.Buffer())
	bufMgr.BeginFrame(4) // frame 1's slot comes due again at frame 1+MaxFramesInFlight
	require.Len(t, be.destroyed, 1)
}
