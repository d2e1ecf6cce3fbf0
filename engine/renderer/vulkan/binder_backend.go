package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu/accel"
	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
	"github.com/vulcanforge/anima/engine/renderer/gpu/binder"
	"github.com/vulcanforge/anima/engine/renderer/gpu/texture"
)

// maxBoundTextures bounds the fixed-size sampled-image-array binding every
// descriptor set layout this backend creates reserves, following a bindless
// style: unused slots repeat the array's index-0 white fallback rather than
// being left unwritten.
const maxBoundTextures = 256

// descriptorSetKey identifies one lazily-allocated descriptor set: a single
// named binding, for one pipeline, for one frame in flight.
type descriptorSetKey struct {
	pipeline uintptr
	frame    int
	set      uint32
	binding  uint32
}

// DescriptorBackend adapts a VulkanContext to binder.Backend: it owns the
// descriptor pool every resource binder's descriptor set is allocated from,
// and performs the vkUpdateDescriptorSets call the binder's per-frame
// generation diff decides is needed.
//
// Grounded on descriptor.go's VulkanDescriptorState{Generations, IDs}
// per-frame tracking shape; the generation bookkeeping itself now lives in
// the binder package, so this backend is left with exactly the device-call
// half of that split: allocate a set lazily, then write it.
type DescriptorBackend struct {
	context *VulkanContext
	pool    vk.DescriptorPool

	layouts map[binder.BindingType]vk.DescriptorSetLayout
	sets    map[descriptorSetKey]vk.DescriptorSet
}

// NewDescriptorBackend creates the shared descriptor pool and returns a
// binder.Backend driven by context.
func NewDescriptorBackend(context *VulkanContext, maxSets uint32) (*DescriptorBackend, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxSets * maxBoundTextures},
		{Type: vk.DescriptorTypeAccelerationStructureKhr, DescriptorCount: maxSets},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       maxSets,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		return nil, fmt.Errorf("failed to create descriptor pool")
	}

	return &DescriptorBackend{
		context: context,
		pool:    pool,
		layouts: make(map[binder.BindingType]vk.DescriptorSetLayout),
		sets:    make(map[descriptorSetKey]vk.DescriptorSet),
	}, nil
}

func descriptorTypeFor(t binder.BindingType) vk.DescriptorType {
	switch t {
	case binder.UniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case binder.StorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case binder.SampledImageArray:
		return vk.DescriptorTypeCombinedImageSampler
	case binder.AccelerationStructure:
		return vk.DescriptorTypeAccelerationStructureKhr
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func descriptorCountFor(t binder.BindingType) uint32 {
	if t == binder.SampledImageArray {
		return maxBoundTextures
	}
	return 1
}

func (d *DescriptorBackend) layoutFor(t binder.BindingType, binding uint32) (vk.DescriptorSetLayout, error) {
	if layout, ok := d.layouts[t]; ok {
		return layout, nil
	}

	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         binding,
		DescriptorType:  descriptorTypeFor(t),
		DescriptorCount: descriptorCountFor(t),
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllBit),
	}}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.context.Device.LogicalDevice, &createInfo, d.context.Allocator, &layout); res != vk.Success {
		return nil, fmt.Errorf("failed to create descriptor set layout")
	}
	d.layouts[t] = layout
	return layout, nil
}

func (d *DescriptorBackend) setFor(key descriptorSetKey, t binder.BindingType) (vk.DescriptorSet, error) {
	if set, ok := d.sets[key]; ok {
		return set, nil
	}
	layout, err := d.layoutFor(t, key.binding)
	if err != nil {
		return nil, err
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(d.context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
		return nil, fmt.Errorf("failed to allocate descriptor set")
	}
	d.sets[key] = sets[0]
	return sets[0], nil
}

// WriteDescriptor allocates (on first use) and writes the descriptor set
// entry for one tracked binding reference, dispatching on the resource's
// concrete type to pull the underlying Vulkan handle out.
func (d *DescriptorBackend) WriteDescriptor(pipeline uintptr, frame int, loc binder.BindingLocation, res binder.Resource) error {
	key := descriptorSetKey{pipeline: pipeline, frame: frame, set: loc.Set, binding: loc.Binding}
	set, err := d.setFor(key, loc.Type)
	if err != nil {
		return err
	}

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      loc.Binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorTypeFor(loc.Type),
	}

	switch loc.Type {
	case binder.UniformBuffer, binder.StorageBuffer:
		buf, ok := res.(*buffer.ManagedBuffer)
		if !ok {
			return fmt.Errorf("%w: binding %d expects a managed buffer", core.ErrBindingTypeMismatch, loc.Binding)
		}
		write.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: buf.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(buf.Size),
		}}

	case binder.SampledImageArray:
		arr, ok := res.(*texture.Array)
		if !ok {
			return fmt.Errorf("%w: binding %d expects a texture array", core.ErrBindingTypeMismatch, loc.Binding)
		}
		descriptors := arr.Descriptors()
		fallback := descriptors[0]
		infos := make([]vk.DescriptorImageInfo, maxBoundTextures)
		for i := range infos {
			desc := fallback
			if i < len(descriptors) {
				desc = descriptors[i]
			}
			infos[i] = vk.DescriptorImageInfo{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   desc.View,
				Sampler:     desc.Sampler,
			}
		}
		write.DescriptorCount = maxBoundTextures
		write.PImageInfo = infos

	case binder.AccelerationStructure:
		tlas, ok := res.(*accel.TLAS)
		if !ok {
			return fmt.Errorf("%w: binding %d expects a TLAS", core.ErrBindingTypeMismatch, loc.Binding)
		}
		asWrite := vk.WriteDescriptorSetAccelerationStructureKHR{
			SType:                      vk.StructureTypeWriteDescriptorSetAccelerationStructureKhr,
			AccelerationStructureCount: 1,
			PAccelerationStructures:    []vk.AccelerationStructureKHR{tlas.Handle},
		}
		write.PNext = unsafe.Pointer(&asWrite)

	default:
		return fmt.Errorf("%w: unsupported binding type %v", core.ErrBindingTypeMismatch, loc.Type)
	}

	vk.UpdateDescriptorSets(d.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

// Destroy releases the descriptor pool and every layout it allocated from.
func (d *DescriptorBackend) Destroy() {
	for _, layout := range d.layouts {
		vk.DestroyDescriptorSetLayout(d.context.Device.LogicalDevice, layout, d.context.Allocator)
	}
	if d.pool != nil {
		vk.DestroyDescriptorPool(d.context.Device.LogicalDevice, d.pool, d.context.Allocator)
	}
}
