package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
)

// BufferBackend adapts a VulkanContext to buffer.Backend: every managed
// buffer the buffer manager creates is a real vk.Buffer plus vk.DeviceMemory
// allocated and bound the same way VulkanImage is in image.go.
type BufferBackend struct {
	context *VulkanContext
}

// NewBufferBackend returns a buffer.Backend driven by context.
func NewBufferBackend(context *VulkanContext) *BufferBackend {
	return &BufferBackend{context: context}
}

func strategyMemoryFlags(strategy buffer.Strategy) vk.MemoryPropertyFlags {
	switch strategy {
	case buffer.HostVisible, buffer.HostCached:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	default:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
}

// CreateBuffer allocates size bytes of usage-flagged memory matching
// strategy, following image.go's create -> query requirements -> find
// memory index -> allocate -> bind sequence.
func (b *BufferBackend) CreateBuffer(size uint64, usage vk.BufferUsageFlags, strategy buffer.Strategy) (vk.Buffer, vk.DeviceMemory, error) {
	if strategy == buffer.DeviceLocal {
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(b.context.Device.LogicalDevice, &createInfo, b.context.Allocator, &handle); res != vk.Success {
		return nil, nil, fmt.Errorf("failed to create buffer")
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.context.Device.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	memoryType := b.context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(strategyMemoryFlags(strategy)))
	if memoryType == -1 {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, handle, b.context.Allocator)
		return nil, nil, fmt.Errorf("%w: no memory type for buffer", core.ErrAllocationFailed)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(b.context.Device.LogicalDevice, &allocateInfo, b.context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, handle, b.context.Allocator)
		return nil, nil, fmt.Errorf("failed to allocate buffer memory")
	}

	if res := vk.BindBufferMemory(b.context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(b.context.Device.LogicalDevice, memory, b.context.Allocator)
		vk.DestroyBuffer(b.context.Device.LogicalDevice, handle, b.context.Allocator)
		return nil, nil, fmt.Errorf("failed to bind buffer memory")
	}

	return handle, memory, nil
}

// DestroyBuffer frees memory and the buffer handle in the opposite order of
// creation, mirroring VulkanImage.ImageDestroy.
func (b *BufferBackend) DestroyBuffer(handle vk.Buffer, memory vk.DeviceMemory) {
	if memory != nil {
		vk.FreeMemory(b.context.Device.LogicalDevice, memory, b.context.Allocator)
	}
	if handle != nil {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, handle, b.context.Allocator)
	}
}

// Upload writes data into handle/memory. Host-visible strategies map and
// memcpy directly; device-local strategies stage through a temporary
// host-visible buffer and a single-use command buffer copy, grounded on
// AllocateAndBeginSingleUse/EndSingleUse in command_buffer.go.
func (b *BufferBackend) Upload(handle vk.Buffer, memory vk.DeviceMemory, strategy buffer.Strategy, data []byte) error {
	if strategy != buffer.DeviceLocal {
		var mapped unsafe.Pointer
		if res := vk.MapMemory(b.context.Device.LogicalDevice, memory, 0, vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
			return fmt.Errorf("failed to map buffer memory")
		}
		vk.Memcopy(mapped, data)
		vk.UnmapMemory(b.context.Device.LogicalDevice, memory)
		return nil
	}

	stagingHandle, stagingMemory, err := b.CreateBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), buffer.HostVisible)
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer b.DestroyBuffer(stagingHandle, stagingMemory)

	var mapped unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, stagingMemory, 0, vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		return fmt.Errorf("failed to map staging buffer")
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(b.context.Device.LogicalDevice, stagingMemory)

	cb, err := AllocateAndBeginSingleUse(b.context, b.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	copyRegion := vk.BufferCopy{Size: vk.DeviceSize(len(data))}
	vk.CmdCopyBuffer(cb.Handle, stagingHandle, handle, 1, []vk.BufferCopy{copyRegion})
	return cb.EndSingleUse(b.context, b.context.Device.GraphicsCommandPool, b.context.Device.GraphicsQueue)
}
