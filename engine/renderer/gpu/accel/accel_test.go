package accel

import (
	"errors"
	"sync"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/threadpool"
)

type fakeBuildBackend struct {
	mu        sync.Mutex
	failMesh  map[uint32]bool
	destroyed int
}

func (f *fakeBuildBackend) BuildBLAS(meshID uint32) (*BLAS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMesh[meshID] {
		return nil, errors.New("bvh build failed")
	}
	return &BLAS{MeshID: meshID, Handle: vk.AccelerationStructureKHR(meshID + 1)}, nil
}

func (f *fakeBuildBackend) BuildTLAS(blases []*BLAS) (*TLAS, error) {
	return &TLAS{Handle: vk.AccelerationStructureKHR(999)}, nil
}

func (f *fakeBuildBackend) DestroyAccelerationStructure(h vk.AccelerationStructureKHR, buf vk.Buffer, mem vk.DeviceMemory) {
	f.mu.Lock()
	f.destroyed++
	f.mu.Unlock()
}

func testPool() *threadpool.Pool {
	return threadpool.NewPool(map[threadpool.SubsystemName]threadpool.SubsystemConfig{
		threadpool.SubsystemBVHBuilding: {MinWorkers: 2, MaxWorkers: 2, QueueCapacity: 16},
	})
}

func TestSet_BLASBuildAndTLASAssembly(t *testing.T) {
	be := &fakeBuildBackend{}
	pool := testPool()
	defer pool.Shutdown()
	s := NewSet(be, pool)

	var wg sync.WaitGroup
	for _, mesh := range []uint32{1, 2, 3} {
		wg.Add(1)
		mesh := mesh
		require.NoError(t, s.SubmitBLASBuild(mesh, threadpool.PriorityNormal, nil))
		go func() { defer wg.Done() }()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond) // allow async builds to complete

	s.DrainCompletedBLASes(0)
	assert.Len(t, s.blasByMesh, 3)

	require.NoError(t, s.BuildTLAS())
	tlas := s.CurrentTLAS()
	require.NotNil(t, tlas)
	assert.Equal(t, uint64(1), tlas.Generation())
}

func TestSet_PartialBLASFailureStillBuildsTLAS(t *testing.T) {
	be := &fakeBuildBackend{failMesh: map[uint32]bool{2: true}}
	pool := testPool()
	defer pool.Shutdown()
	s := NewSet(be, pool)

	var failed []uint32
	var mu sync.Mutex
	for _, mesh := range []uint32{1, 2, 3} {
		require.NoError(t, s.SubmitBLASBuild(mesh, threadpool.PriorityNormal, func(meshID uint32, err error) {
			mu.Lock()
			failed = append(failed, meshID)
			mu.Unlock()
		}))
	}
	time.Sleep(50 * time.Millisecond)

	s.DrainCompletedBLASes(0)
	assert.Len(t, s.blasByMesh, 2, "mesh 2 failed and should be absent")
	mu.Lock()
	assert.Equal(t, []uint32{2}, failed)
	mu.Unlock()

	require.NoError(t, s.BuildTLAS())
	assert.NotNil(t, s.CurrentTLAS())
}

func TestSet_ReplacingBLASQueuesOldForDestruction(t *testing.T) {
	be := &fakeBuildBackend{}
	pool := testPool()
	defer pool.Shutdown()
	s := NewSet(be, pool)

	require.NoError(t, s.SubmitBLASBuild(1, threadpool.PriorityNormal, nil))
	time.Sleep(30 * time.Millisecond)
	s.DrainCompletedBLASes(0)

	require.NoError(t, s.SubmitBLASBuild(1, threadpool.PriorityNormal, nil))
	time.Sleep(30 * time.Millisecond)
	s.DrainCompletedBLASes(1)

	s.BeginFrame(4) // slot 1 comes due at frame 1, 4, 7...
	assert.Equal(t, 1, be.destroyed)
}
