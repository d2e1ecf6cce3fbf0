// Package gpu holds the types shared by the buffer, binder, texture,
// materials, accel and instancing packages: the per-frame context passed
// into render graph passes, and the deferred-destruction ring every
// managed-resource manager uses to delay teardown until the in-flight
// frames referencing the old handle have retired.
package gpu

import vk "github.com/goki/vulkan"

// MaxFramesInFlight is the number of frames the renderer may have in
// flight simultaneously. Deferred-destruction ring latency is measured in
// this unit. It is a fixed compile-time value: EngineConfig.MaxFramesInFlight
// is decoded from engine.toml but nothing reads it, and the Vulkan swapchain
// sets its own frames-in-flight count separately.
const MaxFramesInFlight = 3

// FrameInfo is the per-frame context threaded through the render graph.
type FrameInfo struct {
	FrameIndex          int
	DeltaSeconds        float32
	CommandBuffer       vk.CommandBuffer
	ComputeCommandBuffer vk.CommandBuffer
	SwapchainExtent     vk.Extent2D
	ColorImage          vk.Image
	DepthImage          vk.Image
}

// DeferredRing batches resources for destruction MaxFramesInFlight frames
// after they are queued, so in-flight command buffers referencing the old
// handle have retired by the time it is actually torn down.
type DeferredRing[T any] struct {
	slots [MaxFramesInFlight][]T
}

// Queue appends item into the ring slot for frameIdx.
func (r *DeferredRing[T]) Queue(frameIdx int, item T) {
	slot := frameIdx % MaxFramesInFlight
	r.slots[slot] = append(r.slots[slot], item)
}

// Drain returns and clears every item queued for frameIdx's slot. Called at
// begin_frame once MaxFramesInFlight frames have elapsed since the items
// were queued into this slot, so the destructor runs exactly once per item.
func (r *DeferredRing[T]) Drain(frameIdx int) []T {
	slot := frameIdx % MaxFramesInFlight
	items := r.slots[slot]
	r.slots[slot] = nil
	return items
}
