package buffer

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
)

type fakeBackend struct {
	nextHandle  uint64
	destroyed   []vk.Buffer
	uploads     [][]byte
	failCreate  bool
	failUpload  bool
}

func (f *fakeBackend) CreateBuffer(size uint64, usage vk.BufferUsageFlags, strategy Strategy) (vk.Buffer, vk.DeviceMemory, error) {
	if f.failCreate {
		return vk.Buffer(0), vk.DeviceMemory(0), errors.New("device out of memory")
	}
	f.nextHandle++
	return vk.Buffer(f.nextHandle), vk.DeviceMemory(f.nextHandle), nil
}

func (f *fakeBackend) DestroyBuffer(handle vk.Buffer, memory vk.DeviceMemory) {
	f.destroyed = append(f.destroyed, handle)
}

func (f *fakeBackend) Upload(handle vk.Buffer, memory vk.DeviceMemory, strategy Strategy, data []byte) error {
	if f.failUpload {
		return errors.New("map failed")
	}
	f.uploads = append(f.uploads, data)
	return nil
}

func TestManager_CreateBuffer_GenerationOne(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)

	buf, err := m.CreateBuffer(Config{Name: "ubo", Size: 64, Strategy: HostVisible}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), buf.Generation())
	assert.Equal(t, "ubo", buf.DebugName)
}

func TestManager_CreateBuffer_ZeroSizeIsInvalidArgument(t *testing.T) {
	m := NewManager(&fakeBackend{})
	_, err := m.CreateBuffer(Config{Name: "empty", Size: 0}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestManager_CreateBuffer_AllocationFailure(t *testing.T) {
	be := &fakeBackend{failCreate: true}
	m := NewManager(be)
	_, err := m.CreateBuffer(Config{Name: "x", Size: 16}, 0)
	assert.ErrorIs(t, err, core.ErrAllocationFailed)
}

func TestManager_UpdateBuffer_DoesNotBumpGeneration(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	buf, err := m.CreateBuffer(Config{Name: "ubo", Size: 16, Strategy: HostVisible}, 0)
	require.NoError(t, err)

	require.NoError(t, m.UpdateBuffer(buf, []byte{1, 2, 3, 4}, 1))
	assert.Equal(t, uint64(1), buf.Generation())
	assert.Len(t, be.uploads, 1)
}

func TestManager_UpdateBuffer_OversizeRejected(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	buf, err := m.CreateBuffer(Config{Name: "ubo", Size: 4, Strategy: HostVisible}, 0)
	require.NoError(t, err)

	err = m.UpdateBuffer(buf, []byte{1, 2, 3, 4, 5}, 1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestManager_DeferredDestructionRing(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	buf, err := m.CreateBuffer(Config{Name: "old", Size: 16, Strategy: DeviceLocal}, 0)
	require.NoError(t, err)

	m.QueueDestruction(buf, 0)
	// Not yet due: slot 0 isn't drained until frame 0 (mod MaxFramesInFlight)
	// comes around again, e.g. frame 3 with MaxFramesInFlight == 3.
	m.BeginFrame(1)
	assert.Empty(t, be.destroyed)
	m.BeginFrame(2)
	assert.Empty(t, be.destroyed)
	m.BeginFrame(3)
	require.Len(t, be.destroyed, 1)
	assert.Equal(t, buf.Handle, be.destroyed[0])
}

func TestManager_CreateAndUpload(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	buf, err := m.CreateAndUpload("instances", []byte{1, 2, 3, 4}, 0, DeviceLocal, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), buf.Size)
	assert.Len(t, be.uploads, 1)
}
