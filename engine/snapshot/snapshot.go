// Package snapshot implements the immutable game-state record produced once
// per simulation tick and the double-buffered hand-off that moves it from
// the simulation thread to the render thread without a lock.
//
// The snapshot's pre-allocated, capacity-preserving slices are grounded on
// the other-pack fight-club GameSnapshot/SnapshotPool pattern
// (game_snapshot.go), reduced from that pool's triple buffer to the two
// slots the spec calls for and paired with a semaphore-style hand-off
// instead of the raw atomic read/write index pool used there.
package snapshot

import (
	engmath "github.com/vulcanforge/anima/engine/math"
)

// EntityRenderRecord is one entity's worth of render-relevant state,
// extracted from the ECS world during snapshot production.
type EntityRenderRecord struct {
	World             engmath.Mat4
	MeshHandle        uint32
	MaterialBufferIdx uint32
	MaterialSetName   string
	Flags             uint32
}

// LightRecord is one light's worth of render-relevant state.
type LightRecord struct {
	Position  engmath.Vec3
	Color     engmath.Vec3
	Intensity float32
	Range     float32
	ShadowBits uint32
}

// InstanceRecord matches the shader's std430 per-instance layout.
type InstanceRecord struct {
	Model         [16]float32
	MaterialIndex uint32
	Padding       [3]uint32
}

// BatchKey identifies a unique (mesh, material set) combination within a
// snapshot.
type BatchKey struct {
	MeshHandle      uint32
	MaterialSetName string
}

// InstancedBatch is the packed per-instance array for one BatchKey, sharing
// the owning snapshot's lifetime.
type InstancedBatch struct {
	Key       BatchKey
	Instances []InstanceRecord
}

// Snapshot is an immutable, self-contained record of one simulation tick.
// Its slices are owned by the snapshot; when the Handoff reuses the slot
// they are truncated to length zero, keeping their backing arrays.
type Snapshot struct {
	Generation uint64

	CameraView       engmath.Mat4
	CameraProjection engmath.Mat4
	CameraPosition   engmath.Vec3

	Entities []EntityRenderRecord
	Lights   []LightRecord
	Batches  []InstancedBatch
}

func newSnapshot(capEntities, capLights, capBatches int) *Snapshot {
	return &Snapshot{
		Entities: make([]EntityRenderRecord, 0, capEntities),
		Lights:   make([]LightRecord, 0, capLights),
		Batches:  make([]InstancedBatch, 0, capBatches),
	}
}

func (s *Snapshot) reset() {
	s.Entities = s.Entities[:0]
	s.Lights = s.Lights[:0]
	s.Batches = s.Batches[:0]
	s.Generation = 0
}
