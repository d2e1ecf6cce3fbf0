package engine

import (
	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/ecs"
	"github.com/vulcanforge/anima/engine/renderer/gpu"
	"github.com/vulcanforge/anima/engine/renderer/gpu/accel"
	"github.com/vulcanforge/anima/engine/renderer/gpu/binder"
	"github.com/vulcanforge/anima/engine/renderer/gpu/buffer"
	"github.com/vulcanforge/anima/engine/renderer/gpu/instancing"
	"github.com/vulcanforge/anima/engine/renderer/vulkan"
	"github.com/vulcanforge/anima/engine/rendergraph"
	"github.com/vulcanforge/anima/engine/snapshot"
	"github.com/vulcanforge/anima/engine/threadpool"
)

// geometryPipeline is the one pipeline key the geometry pass binds its
// instance data against. A real multi-pipeline renderer would key this off
// the material's compiled pipeline; CoreLoop only ever runs one.
var geometryPipeline uintptr = 1

// CoreLoop owns the simulation side (ECS world, scheduler) and the render
// side (render graph, GPU resource managers) of one running application,
// connected by the sim/render snapshot hand-off so neither thread blocks
// on a shared lock.
//
// Grounded on the application/game split in application.go and game.go,
// generalized from "no-op stub frame loop" into the simulate/snapshot/render
// pipeline the engine's domain packages were built to run.
type CoreLoop struct {
	World     *ecs.World
	Scheduler *ecs.Scheduler
	Pool      *threadpool.Pool
	Handoff   *snapshot.Handoff
	Graph     *rendergraph.Graph

	Buffers   *buffer.Manager
	Binder    *binder.Binder
	Accel     *accel.Set
	Instances *instancing.Cache

	descriptors *vulkan.DescriptorBackend

	currentSnapshot *snapshot.Snapshot
	frameIdx        int
	tick            uint64
}

// NewCoreLoop wires the ECS core and the Vulkan-backed GPU managers
// together against a live, already-initialized renderer.
func NewCoreLoop(cfg *core.EngineConfig, vr *vulkan.VulkanRenderer) *CoreLoop {
	pool := threadpool.NewPool(map[threadpool.SubsystemName]threadpool.SubsystemConfig{
		threadpool.SubsystemHotReload:    {MinWorkers: 1, MaxWorkers: cfg.HotReloadWorkers, QueueCapacity: cfg.QueueCapacity},
		threadpool.SubsystemBVHBuilding:  {MinWorkers: 1, MaxWorkers: cfg.BVHBuildingWorkers, QueueCapacity: cfg.QueueCapacity},
		threadpool.SubsystemECSUpdate:    {MinWorkers: 1, MaxWorkers: cfg.ECSUpdateWorkers, QueueCapacity: cfg.QueueCapacity},
		threadpool.SubsystemAssetLoading: {MinWorkers: 1, MaxWorkers: cfg.AssetLoadingWorkers, QueueCapacity: cfg.QueueCapacity},
		threadpool.SubsystemRendering:    {MinWorkers: 1, MaxWorkers: cfg.RenderingWorkers, QueueCapacity: cfg.QueueCapacity},
	})

	world := ecs.NewWorld()
	scheduler := ecs.NewScheduler(pool)
	handoff := snapshot.NewHandoff(1024, 64, 256)

	context := vr.Context()
	bufMgr := buffer.NewManager(vulkan.NewBufferBackend(context))

	descBackend, err := vulkan.NewDescriptorBackend(context, 64)
	if err != nil {
		core.LogError("core loop: descriptor backend unavailable, binder disabled: %v", err)
	}
	var bnd *binder.Binder
	if descBackend != nil {
		bnd = binder.NewBinder(descBackend)
	}

	accelSet := accel.NewSet(vulkan.NewAccelBackend(context, nil), pool)

	cl := &CoreLoop{
		World:       world,
		Scheduler:   scheduler,
		Pool:        pool,
		Handoff:     handoff,
		Graph:       rendergraph.NewGraph(),
		Buffers:     bufMgr,
		Binder:      bnd,
		Accel:       accelSet,
		Instances:   instancing.NewCache(bufMgr, bnd),
		descriptors: descBackend,
	}
	cl.registerPasses()
	return cl
}

// registerPasses builds the one render graph the engine runs by default: a
// geometry pass that drains the instanced draw cache for every batch in the
// most recently acquired snapshot, followed by a BLAS/TLAS maintenance pass.
func (cl *CoreLoop) registerPasses() {
	geometry := &rendergraph.Pass{
		Name:    "geometry",
		Writes:  []string{"color"},
		Enabled: true,
		Execute: func(frame *gpu.FrameInfo) error {
			snap := cl.currentSnapshot
			if snap == nil {
				return nil
			}
			for _, batch := range snap.Batches {
				if err := cl.Instances.EnsureBound(geometryPipeline, batch, snap.Generation, frame.FrameIndex); err != nil {
					return err
				}
			}
			return nil
		},
	}

	accelMaintenance := &rendergraph.Pass{
		Name:    "accel_maintenance",
		Reads:   []string{"color"},
		Enabled: true,
		Execute: func(frame *gpu.FrameInfo) error {
			cl.Accel.BeginFrame(frame.FrameIndex)
			cl.Accel.DrainCompletedBLASes(frame.FrameIndex)
			return cl.Accel.BuildTLAS()
		},
	}

	_ = cl.Graph.AddPass(geometry)
	_ = cl.Graph.AddPass(accelMaintenance)
	_ = cl.Graph.Compile()
}

// SimulateTick runs every registered ECS system for one timestep of dt seconds,
// then produces a snapshot for the render thread from the resulting world
// state. Returns false if shutdown was signalled while waiting for the
// previous snapshot to be consumed.
func (cl *CoreLoop) SimulateTick(dt float64, userdata interface{}) bool {
	cl.Scheduler.Execute(cl.World, dt, userdata)

	if _, ok := cl.Handoff.BeginProduce(); !ok {
		return false
	}
	// Entity/light/batch extraction into the snapshot slot is left to a
	// game's own render-relevant components and systems; CoreLoop only
	// guarantees the slot is reset and ready to be filled before publish.
	cl.tick++
	cl.Handoff.PublishProduce(cl.tick)
	return true
}

// RenderFrame acquires the latest published snapshot, runs the render
// graph over it, and retires resources queued for deferred destruction.
// Returns false if shutdown was signalled while waiting for a snapshot.
func (cl *CoreLoop) RenderFrame(dt float32) (bool, error) {
	snap, ok := cl.Handoff.AcquireRead()
	if !ok {
		return false, nil
	}
	defer cl.Handoff.ReleaseRead()

	cl.currentSnapshot = snap

	cl.Buffers.BeginFrame(cl.frameIdx)

	frame := &gpu.FrameInfo{FrameIndex: cl.frameIdx, DeltaSeconds: dt}
	err := cl.Graph.Execute(dt, frame)

	if cl.Binder != nil {
		if bErr := cl.Binder.UpdateFrame(cl.frameIdx); bErr != nil {
			core.LogError("core loop: descriptor update failed: %v", bErr)
		}
	}
	if mErr := cl.Graph.ApplyPendingMutations(); mErr != nil {
		core.LogError("core loop: render graph mutation failed: %v", mErr)
	}

	cl.frameIdx++
	return true, err
}

// Shutdown signals both hand-off directions and stops every worker in the
// thread pool, unblocking any goroutine parked in BeginProduce/AcquireRead.
func (cl *CoreLoop) Shutdown() {
	cl.Handoff.Stop()
	cl.Pool.Shutdown()
	if cl.descriptors != nil {
		cl.descriptors.Destroy()
	}
}
