package containers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockFreeStack_PushPopAll(t *testing.T) {
	s := NewLockFreeStack[int]()
	assert.True(t, s.IsEmpty())

	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Push(v)
		}(i)
	}
	wg.Wait()

	assert.False(t, s.IsEmpty())
	got := s.PopAll()
	assert.Len(t, got, n)
	assert.True(t, s.IsEmpty())

	seen := make(map[int]bool, n)
	for _, v := range got {
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestLockFreeStack_PopAllEmpty(t *testing.T) {
	s := NewLockFreeStack[string]()
	assert.Nil(t, s.PopAll())
}
