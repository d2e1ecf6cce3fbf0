package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentStorage_AddGetRemove(t *testing.T) {
	s := NewComponentStorage[int]()
	s.Add(3, 100)
	s.Add(5, 200)

	assert.True(t, s.Has(3))
	assert.Equal(t, 100, *s.Get(3))
	assert.Equal(t, 200, *s.Get(5))
	assert.Nil(t, s.Get(9))
	assert.Equal(t, 2, s.Len())
}

func TestComponentStorage_SwapRemovePreservesOtherEntries(t *testing.T) {
	s := NewComponentStorage[string]()
	s.Add(1, "a")
	s.Add(2, "b")
	s.Add(3, "c")

	s.Remove(1) // swap-remove: last element ("c") takes slot 0

	assert.False(t, s.Has(1))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "b", *s.Get(2))
	assert.Equal(t, "c", *s.Get(3))
}

func TestComponentStorage_Each(t *testing.T) {
	s := NewComponentStorage[int]()
	s.Add(1, 10)
	s.Add(2, 20)
	s.Add(3, 30)

	seen := map[uint32]int{}
	s.Each(func(owner uint32, v *int) {
		seen[owner] = *v
	})
	assert.Equal(t, map[uint32]int{1: 10, 2: 20, 3: 30}, seen)
}

func TestComponentStorage_AddOverwrites(t *testing.T) {
	s := NewComponentStorage[int]()
	s.Add(1, 10)
	s.Add(1, 99)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 99, *s.Get(1))
}
