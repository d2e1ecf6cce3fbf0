// Package rendergraph implements the render graph: passes declare resource
// reads/writes, the graph compiles them into a topologically-ordered DAG
// with Kahn's algorithm, and a per-frame Execute walks that order calling
// each enabled pass's update and execute callbacks.
//
// Grounded on engine/renderer/metadata.RenderPass's id/Targets/InternalData
// shape and the prev/next renderpass chaining in
// engine/renderer/vulkan/renderpass.go, generalized from a fixed linear
// chain to a declared-dependency DAG the spec requires.
package rendergraph

import (
	"github.com/vulcanforge/anima/engine/renderer/gpu"
)

// Stats tracks a pass's execution history for diagnostics.
type Stats struct {
	ExecuteCount   uint64
	LastFrameIndex int
}

// Pass is one render graph node: a named unit of work with declared
// resource dependencies and a setup/update/execute/teardown contract. The
// graph owns passes; a pass holds only borrowed service pointers (buffer
// manager, resource binder, pipelines) set up by its Setup callback.
type Pass struct {
	Name string

	// Reads and Writes name the resources (buffers, texture sets, the
	// swapchain color/depth images, …) this pass depends on. An edge from
	// pass A to pass B exists when A writes a resource B reads.
	Reads  []string
	Writes []string

	// Enabled elides the pass from compilation when false. To toggle it
	// while the frame loop runs, use Graph.QueueSetEnabled, which applies
	// the change at the next ApplyPendingMutations.
	Enabled bool

	Setup    func() error
	Update   func(dt float32) error
	Execute  func(frame *gpu.FrameInfo) error
	Teardown func()

	stats Stats
}

// Stats returns the pass's accumulated execution statistics.
func (p *Pass) Stats() Stats { return p.stats }
