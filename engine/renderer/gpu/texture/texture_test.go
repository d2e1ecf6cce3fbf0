package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArray_IndexZeroIsFallback(t *testing.T) {
	a := NewArray(Descriptor{})
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, uint64(1), a.Generation())
}

func TestArray_AppendDoesNotBumpGenerationUntilRebuild(t *testing.T) {
	a := NewArray(Descriptor{})
	idx := a.Append(Descriptor{})
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, uint64(1), a.Generation())

	a.Rebuild()
	assert.Equal(t, uint64(2), a.Generation())
}
