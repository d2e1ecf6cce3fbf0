package rendergraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu"
)

func namesOf(passes []*Pass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name
	}
	return out
}

func TestGraph_CompileOrdersByDeclaredDependency(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "lighting", Enabled: true, Reads: []string{"gbuffer"}, Writes: []string{"hdr"}}))
	require.NoError(t, g.AddPass(&Pass{Name: "geometry", Enabled: true, Writes: []string{"gbuffer"}}))
	require.NoError(t, g.AddPass(&Pass{Name: "tonemap", Enabled: true, Reads: []string{"hdr"}, Writes: []string{"color"}}))

	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"geometry", "lighting", "tonemap"}, namesOf(g.Order()))
}

func TestGraph_CompileRejectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "a", Enabled: true, Reads: []string{"y"}, Writes: []string{"x"}}))
	require.NoError(t, g.AddPass(&Pass{Name: "b", Enabled: true, Reads: []string{"x"}, Writes: []string{"y"}}))

	err := g.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDependencyCycle))
}

func TestGraph_DisabledPassIsElidedAndRetopologized(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "geometry", Enabled: true, Writes: []string{"gbuffer"}}))
	require.NoError(t, g.AddPass(&Pass{Name: "shadows", Enabled: false, Writes: []string{"shadow_map"}}))
	require.NoError(t, g.AddPass(&Pass{Name: "lighting", Enabled: true, Reads: []string{"gbuffer", "shadow_map"}, Writes: []string{"hdr"}}))

	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"geometry", "lighting"}, namesOf(g.Order()))
}

func TestGraph_AddDuplicatePassRejected(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "geometry"}))
	err := g.AddPass(&Pass{Name: "geometry"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPassAlreadyRegistered))
}

func TestGraph_QueuedMutationsApplyAtFrameEndAndRecompile(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "geometry", Enabled: true, Writes: []string{"gbuffer"}}))
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"geometry"}, namesOf(g.Order()))

	g.QueueAddPass(&Pass{Name: "lighting", Enabled: true, Reads: []string{"gbuffer"}, Writes: []string{"hdr"}})

	// mid-frame: the new pass must not appear until mutations are applied.
	assert.Equal(t, []string{"geometry"}, namesOf(g.Order()))

	require.NoError(t, g.ApplyPendingMutations())
	assert.Equal(t, []string{"geometry", "lighting"}, namesOf(g.Order()))
}

func TestGraph_ApplyPendingMutationsNoopWhenNoneQueued(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddPass(&Pass{Name: "geometry", Enabled: true}))
	require.NoError(t, g.Compile())
	before := g.Order()

	require.NoError(t, g.ApplyPendingMutations())
	assert.Equal(t, before, g.Order())
}

func TestGraph_QueueRemovePassCallsTeardown(t *testing.T) {
	g := NewGraph()
	torn := false
	require.NoError(t, g.AddPass(&Pass{Name: "geometry", Enabled: true, Teardown: func() { torn = true }}))
	require.NoError(t, g.Compile())

	g.QueueRemovePass("geometry")
	require.NoError(t, g.ApplyPendingMutations())

	assert.True(t, torn)
	_, err := g.Pass("geometry")
	assert.True(t, errors.Is(err, core.ErrUnknownPass))
}

func TestGraph_QueueSetEnabledUnknownPassErrors(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Compile())

	g.QueueSetEnabled("does-not-exist", true)
	err := g.ApplyPendingMutations()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownPass))
}

func TestGraph_ExecuteRunsUpdateThenExecuteInTopologicalOrder(t *testing.T) {
	g := NewGraph()
	var ran []string

	require.NoError(t, g.AddPass(&Pass{
		Name: "lighting", Enabled: true, Reads: []string{"gbuffer"}, Writes: []string{"hdr"},
		Update:  func(dt float32) error { ran = append(ran, "lighting.update"); return nil },
		Execute: func(frame *gpu.FrameInfo) error { ran = append(ran, "lighting.execute"); return nil },
	}))
	require.NoError(t, g.AddPass(&Pass{
		Name: "geometry", Enabled: true, Writes: []string{"gbuffer"},
		Update:  func(dt float32) error { ran = append(ran, "geometry.update"); return nil },
		Execute: func(frame *gpu.FrameInfo) error { ran = append(ran, "geometry.execute"); return nil },
	}))
	require.NoError(t, g.Compile())

	require.NoError(t, g.Execute(0.016, &gpu.FrameInfo{FrameIndex: 5}))
	assert.Equal(t, []string{"geometry.update", "geometry.execute", "lighting.update", "lighting.execute"}, ran)

	geo, err := g.Pass("geometry")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), geo.Stats().ExecuteCount)
	assert.Equal(t, 5, geo.Stats().LastFrameIndex)
}

func TestGraph_ExecuteSkipsFailingPassWithoutAbortingFrame(t *testing.T) {
	g := NewGraph()
	laterRan := false

	require.NoError(t, g.AddPass(&Pass{
		Name: "geometry", Enabled: true, Writes: []string{"gbuffer"},
		Execute: func(frame *gpu.FrameInfo) error { return errors.New("device lost") },
	}))
	require.NoError(t, g.AddPass(&Pass{
		Name: "lighting", Enabled: true, Reads: []string{"gbuffer"},
		Execute: func(frame *gpu.FrameInfo) error { laterRan = true; return nil },
	}))
	require.NoError(t, g.Compile())

	err := g.Execute(0.016, &gpu.FrameInfo{})
	require.Error(t, err)
	assert.True(t, laterRan, "a failing pass must not abort the remainder of the frame")

	geo, _ := g.Pass("geometry")
	assert.Equal(t, uint64(0), geo.Stats().ExecuteCount, "a failed pass does not count as executed")
}
