// Package buffer implements the engine's GPU buffer manager: it owns every
// buffer the renderer creates, tracks each one's stable handle and
// generation, and defers destruction through a per-frame ring so an
// in-flight command buffer never outlives the memory it reads.
//
// Grounded on engine/renderer/vulkan/context.go's VulkanBuffer{Handle,
// Memory} pair, generalized with the strategy/generation/deferred-ring
// bookkeeping the spec's buffer manager adds on top.
package buffer

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu"
)

// Strategy selects a buffer's memory type and update path.
type Strategy int

const (
	// DeviceLocal backs the buffer with device-local memory; all writes go
	// through a staging buffer. Best for large, rarely-changing data.
	DeviceLocal Strategy = iota
	// HostVisible is coherent and mapped once at creation; best for small
	// per-frame UBOs written by the CPU every frame.
	HostVisible
	// HostCached is coherent-but-cached; the writer must invalidate/flush
	// at range granularity.
	HostCached
)

// Config describes a buffer to create.
type Config struct {
	Name     string
	Size     uint64
	Strategy Strategy
	Usage    vk.BufferUsageFlags
}

// ManagedBuffer is a GPU buffer plus the bookkeeping the spec requires: a
// stable handle, a generation that only increments when the handle itself
// is replaced, and the frame it was created on.
type ManagedBuffer struct {
	Handle       vk.Buffer
	Memory       vk.DeviceMemory
	Size         uint64
	Strategy     Strategy
	Gen          uint64
	DebugName    string
	CreatedFrame int

	mapped unsafePointerSurrogate
}

// unsafePointerSurrogate stands in for the mapped host pointer of a
// host-visible/host-cached buffer without importing "unsafe" into the
// package's public surface; backend code that actually maps memory stores
// into it via SetMappedPointer.
type unsafePointerSurrogate = uintptr

// SetMappedPointer records the host-visible mapping's address for a buffer
// created with HostVisible or HostCached strategy.
func (b *ManagedBuffer) SetMappedPointer(p uintptr) { b.mapped = p }

// MappedPointer returns the host-visible mapping's address, or 0 if the
// buffer is device-local (never mapped).
func (b *ManagedBuffer) MappedPointer() uintptr { return b.mapped }

// Generation satisfies the binder package's resource interface.
func (b *ManagedBuffer) Generation() uint64 { return b.Gen }

// Backend is the subset of Vulkan device operations the manager needs. A
// real backend wraps engine/renderer/vulkan's device/context helpers;
// tests supply a fake.
type Backend interface {
	CreateBuffer(size uint64, usage vk.BufferUsageFlags, strategy Strategy) (vk.Buffer, vk.DeviceMemory, error)
	DestroyBuffer(handle vk.Buffer, memory vk.DeviceMemory)
	Upload(handle vk.Buffer, memory vk.DeviceMemory, strategy Strategy, data []byte) error
}

// Manager owns every ManagedBuffer created through it and the deferred
// destruction ring keyed by frame % MaxFramesInFlight.
type Manager struct {
	backend  Backend
	deferred gpu.DeferredRing[*ManagedBuffer]
}

// NewManager returns a buffer manager driven by backend.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// CreateBuffer allocates a new buffer per cfg. Generation is 1 at creation.
func (m *Manager) CreateBuffer(cfg Config, frameIdx int) (*ManagedBuffer, error) {
	if cfg.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has size 0", core.ErrInvalidArgument, cfg.Name)
	}
	handle, memory, err := m.backend.CreateBuffer(cfg.Size, cfg.Usage, cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAllocationFailed, err)
	}
	return &ManagedBuffer{
		Handle:       handle,
		Memory:       memory,
		Size:         cfg.Size,
		Strategy:     cfg.Strategy,
		Gen:          1,
		DebugName:    cfg.Name,
		CreatedFrame: frameIdx,
	}, nil
}

// CreateAndUpload creates a buffer sized to data and uploads it. For
// DeviceLocal this stages through a temporary buffer; the backend is
// responsible for destroying the staging buffer once the copy is safe.
func (m *Manager) CreateAndUpload(name string, data []byte, usage vk.BufferUsageFlags, strategy Strategy, frameIdx int) (*ManagedBuffer, error) {
	buf, err := m.CreateBuffer(Config{Name: name, Size: uint64(len(data)), Strategy: strategy, Usage: usage}, frameIdx)
	if err != nil {
		return nil, err
	}
	if err := m.backend.Upload(buf.Handle, buf.Memory, strategy, data); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAllocationFailed, err)
	}
	return buf, nil
}

// UpdateBuffer writes data into an existing buffer in place. For
// HostVisible/HostCached this maps and memcpys; for DeviceLocal it re-stages
// and records a copy. Generation is never bumped by a data-only update.
func (m *Manager) UpdateBuffer(buf *ManagedBuffer, data []byte, frameIdx int) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", core.ErrInvalidArgument)
	}
	if uint64(len(data)) > buf.Size {
		return fmt.Errorf("%w: update of %d bytes exceeds buffer size %d", core.ErrInvalidArgument, len(data), buf.Size)
	}
	return m.backend.Upload(buf.Handle, buf.Memory, buf.Strategy, data)
}

// QueueDestruction appends buf to the deferred ring slot for frameIdx.
func (m *Manager) QueueDestruction(buf *ManagedBuffer, frameIdx int) {
	m.deferred.Queue(frameIdx, buf)
}

// BeginFrame destroys every buffer queued in the slot for frameIdx. Safe to
// call because MaxFramesInFlight frames have elapsed since those buffers
// were queued, so no in-flight command buffer can still reference them.
func (m *Manager) BeginFrame(frameIdx int) {
	for _, buf := range m.deferred.Drain(frameIdx) {
		m.backend.DestroyBuffer(buf.Handle, buf.Memory)
	}
}
