package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_ResetPreservesCapacity(t *testing.T) {
	s := newSnapshot(2, 2, 2)
	s.Entities = append(s.Entities, EntityRenderRecord{}, EntityRenderRecord{})
	s.Lights = append(s.Lights, LightRecord{})
	capBefore := cap(s.Entities)

	s.reset()

	assert.Len(t, s.Entities, 0)
	assert.Len(t, s.Lights, 0)
	assert.Len(t, s.Batches, 0)
	assert.Equal(t, capBefore, cap(s.Entities), "reset must not shrink backing array")
	assert.Equal(t, uint64(0), s.Generation)
}
