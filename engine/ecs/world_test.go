package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
)

type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }

func TestWorld_CreateDestroyRecyclesGeneration(t *testing.T) {
	w := NewWorld()
	e1 := w.CreateEntity()
	assert.True(t, w.IsAlive(e1))

	require.NoError(t, w.DestroyEntity(e1))
	assert.False(t, w.IsAlive(e1))

	e2 := w.CreateEntity()
	assert.Equal(t, e1.Index(), e2.Index(), "freed slot should be recycled")
	assert.NotEqual(t, e1.Generation(), e2.Generation(), "generation must bump on recycle")
}

func TestWorld_DestroyStaleHandleErrors(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.DestroyEntity(e))
	assert.ErrorIs(t, w.DestroyEntity(e), core.ErrEntityDestroyed)
}

func TestWorld_RegisterTwiceErrors(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	assert.ErrorIs(t, Register[Position](w), core.ErrAlreadyRegistered)
}

func TestWorld_AddGetRemoveComponent(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))

	e := w.CreateEntity()
	require.NoError(t, Add(w, e, Position{X: 1, Y: 2}))

	pos := Get[Position](w, e)
	require.NotNil(t, pos)
	assert.Equal(t, float32(1), pos.X)

	mut := GetMut[Position](w, e)
	mut.X = 42
	assert.Equal(t, float32(42), Get[Position](w, e).X)

	require.NoError(t, Remove[Position](w, e))
	assert.Nil(t, Get[Position](w, e))
}

func TestWorld_AddUnregisteredComponentErrors(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	assert.ErrorIs(t, Add(w, e, Position{}), core.ErrComponentNotRegistered)
}

func TestWorld_OperationOnStaleHandleErrors(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	e := w.CreateEntity()
	require.NoError(t, w.DestroyEntity(e))

	assert.ErrorIs(t, Add(w, e, Position{}), core.ErrEntityDestroyed)
	assert.Nil(t, Get[Position](w, e))
}

func TestWorld_DestroyRemovesComponentsFromAllStorages(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	require.NoError(t, Register[Velocity](w))

	e := w.CreateEntity()
	require.NoError(t, Add(w, e, Position{X: 1}))
	require.NoError(t, Add(w, e, Velocity{DX: 1}))

	require.NoError(t, w.DestroyEntity(e))

	cs, ok := storageRaw[Position](w)
	require.True(t, ok)
	assert.Equal(t, 0, cs.Len())
}
