package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
)

type fakeResource struct{ gen uint64 }

func (f *fakeResource) Generation() uint64 { return f.gen }

type fakeBackend struct {
	writes []BindingLocation
}

func (f *fakeBackend) WriteDescriptor(pipeline pipelineKey, frame int, loc BindingLocation, res Resource) error {
	f.writes = append(f.writes, loc)
	return nil
}

const testPipeline pipelineKey = 1

func TestBinder_RegisterAndBindRoundTrip(t *testing.T) {
	be := &fakeBackend{}
	b := NewBinder(be)
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "CameraUBO", BindingLocation: BindingLocation{Set: 0, Binding: 0, Type: UniformBuffer}},
	}))

	res := &fakeResource{gen: 1}
	require.NoError(t, b.BindUniformBufferNamed(testPipeline, "CameraUBO", 0, res))
	require.NoError(t, b.UpdateFrame(0))
	assert.Len(t, be.writes, 1)
}

func TestBinder_DuplicateCrossStageBindingDeduped(t *testing.T) {
	be := &fakeBackend{}
	b := NewBinder(be)
	loc := BindingLocation{Set: 0, Binding: 0, Type: UniformBuffer}
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "CameraUBO", BindingLocation: loc},
		{Name: "CameraUBO", BindingLocation: loc},
	}))
	assert.Len(t, b.registry[testPipeline], 1)
}

func TestBinder_CrossStageTypeMismatchErrors(t *testing.T) {
	b := NewBinder(&fakeBackend{})
	err := b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "Shared", BindingLocation: BindingLocation{Type: UniformBuffer}},
		{Name: "Shared", BindingLocation: BindingLocation{Type: StorageBuffer}},
	})
	assert.ErrorIs(t, err, core.ErrBindingTypeMismatch)
}

func TestBinder_UnknownBindingNameErrors(t *testing.T) {
	b := NewBinder(&fakeBackend{})
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, nil))
	err := b.BindUniformBufferNamed(testPipeline, "DoesNotExist", 0, &fakeResource{})
	assert.ErrorIs(t, err, core.ErrUnknownBinding)
}

func TestBinder_BindingTypeMismatchOnBind(t *testing.T) {
	b := NewBinder(&fakeBackend{})
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "CameraUBO", BindingLocation: BindingLocation{Type: UniformBuffer}},
	}))
	err := b.BindStorageBufferNamed(testPipeline, "CameraUBO", 0, &fakeResource{})
	assert.ErrorIs(t, err, core.ErrBindingTypeMismatch)
}

func TestBinder_UpdateFrameSkipsUnchangedGeneration(t *testing.T) {
	be := &fakeBackend{}
	b := NewBinder(be)
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "CameraUBO", BindingLocation: BindingLocation{Type: UniformBuffer}},
	}))
	res := &fakeResource{gen: 1}
	require.NoError(t, b.BindUniformBufferNamed(testPipeline, "CameraUBO", 0, res))

	require.NoError(t, b.UpdateFrame(0))
	require.NoError(t, b.UpdateFrame(0))
	assert.Len(t, be.writes, 1, "second update_frame with unchanged generation must not rewrite")

	res.gen = 2
	require.NoError(t, b.UpdateFrame(0))
	assert.Len(t, be.writes, 2, "generation bump must trigger exactly one rewrite")
}

func TestBinder_UpdateFrameOnlyTouchesThatFrame(t *testing.T) {
	be := &fakeBackend{}
	b := NewBinder(be)
	require.NoError(t, b.RegisterPipelineBindings(testPipeline, []ReflectedBinding{
		{Name: "CameraUBO", BindingLocation: BindingLocation{Type: UniformBuffer}},
	}))
	require.NoError(t, b.BindUniformBufferNamed(testPipeline, "CameraUBO", 0, &fakeResource{gen: 1}))
	require.NoError(t, b.BindUniformBufferNamed(testPipeline, "CameraUBO", 1, &fakeResource{gen: 1}))

	require.NoError(t, b.UpdateFrame(0))
	assert.Len(t, be.writes, 1)
}
