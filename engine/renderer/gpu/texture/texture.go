// Package texture implements the managed texture array: an ordered slice
// of image-view/sampler descriptors with index 0 reserved for a 1x1 white
// fallback, mirroring the lifetime and generation semantics of a managed
// buffer.
//
// Grounded on engine/renderer/vulkan/image.go's VulkanImage{Handle, Memory,
// View} triple, generalized into an indexed array with the generation
// counter the spec's managed-texture-array model adds.
package texture

import vk "github.com/goki/vulkan"

// Descriptor is one entry of a managed texture array.
type Descriptor struct {
	View    vk.ImageView
	Sampler vk.Sampler
}

// Array is an ordered, generation-tracked slice of texture descriptors.
// Index 0 is always the white fallback, so a shader reading an unresolved
// index renders solid white rather than garbage or a crash.
type Array struct {
	descriptors []Descriptor
	gen         uint64
}

// NewArray creates an array with index 0 bound to the given white-fallback
// descriptor.
func NewArray(whiteFallback Descriptor) *Array {
	return &Array{
		descriptors: []Descriptor{whiteFallback},
		gen:         1,
	}
}

// Append adds d to the array and returns its index. Does not itself bump
// the generation; callers rebuild and bump generation once per batch of
// appends via Rebuild.
func (a *Array) Append(d Descriptor) uint32 {
	idx := uint32(len(a.descriptors))
	a.descriptors = append(a.descriptors, d)
	return idx
}

// Descriptors returns the current descriptor slice in index order.
func (a *Array) Descriptors() []Descriptor {
	return a.descriptors
}

// Len returns the number of descriptors, including the index-0 fallback.
func (a *Array) Len() int { return len(a.descriptors) }

// Rebuild bumps the generation after the descriptor-info slice has been
// regenerated (e.g. following a batch of Append calls), signalling to the
// resource binder that bound pipelines must rewrite this array's
// descriptor set entry.
func (a *Array) Rebuild() {
	a.gen++
}

// Generation satisfies the binder package's resource interface.
func (a *Array) Generation() uint64 { return a.gen }
