package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery1_IteratesAllOwners(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	require.NoError(t, Add(w, e1, Position{X: 1}))
	require.NoError(t, Add(w, e2, Position{X: 2}))

	seen := map[Entity]float32{}
	Query1[Position](w).Each(func(e Entity, p *Position) {
		seen[e] = p.X
	})
	assert.Len(t, seen, 2)
	assert.Equal(t, float32(1), seen[e1])
	assert.Equal(t, float32(2), seen[e2])
}

func TestQuery2_YieldsOnlyIntersection(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	require.NoError(t, Register[Velocity](w))

	both := w.CreateEntity()
	posOnly := w.CreateEntity()

	require.NoError(t, Add(w, both, Position{X: 1}))
	require.NoError(t, Add(w, both, Velocity{DX: 1}))
	require.NoError(t, Add(w, posOnly, Position{X: 2}))

	var matched []Entity
	Query2[Position, Velocity](w).Each(func(e Entity, p *Position, v *Velocity) {
		matched = append(matched, e)
	})
	require.Len(t, matched, 1)
	assert.Equal(t, both, matched[0])
}

func TestQuery2_MutatesThroughPointer(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	require.NoError(t, Register[Velocity](w))

	e := w.CreateEntity()
	require.NoError(t, Add(w, e, Position{X: 0}))
	require.NoError(t, Add(w, e, Velocity{DX: 5}))

	Query2[Position, Velocity](w).Each(func(e Entity, p *Position, v *Velocity) {
		p.X += v.DX
	})
	assert.Equal(t, float32(5), Get[Position](w, e).X)
}

type Tag struct{}

func TestQuery3_RequiresAllThree(t *testing.T) {
	w := NewWorld()
	require.NoError(t, Register[Position](w))
	require.NoError(t, Register[Velocity](w))
	require.NoError(t, Register[Tag](w))

	full := w.CreateEntity()
	partial := w.CreateEntity()

	require.NoError(t, Add(w, full, Position{}))
	require.NoError(t, Add(w, full, Velocity{}))
	require.NoError(t, Add(w, full, Tag{}))

	require.NoError(t, Add(w, partial, Position{}))
	require.NoError(t, Add(w, partial, Velocity{}))

	var matched []Entity
	Query3[Position, Velocity, Tag](w).Each(func(e Entity, p *Position, v *Velocity, tag *Tag) {
		matched = append(matched, e)
	})
	require.Len(t, matched, 1)
	assert.Equal(t, full, matched[0])
}
