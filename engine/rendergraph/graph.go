package rendergraph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/renderer/gpu"
)

type mutationKind int

const (
	mutationAdd mutationKind = iota
	mutationRemove
	mutationSetEnabled
)

type mutation struct {
	kind    mutationKind
	name    string
	pass    *Pass
	enabled bool
}

// Graph owns the set of registered passes, their compiled topological
// order, and the queue of structural mutations deferred until frame end.
type Graph struct {
	mu sync.Mutex

	passes map[string]*Pass
	order  []string // registration order; breaks ties deterministically at compile

	topo []*Pass

	pending []mutation
}

// NewGraph returns an empty, uncompiled graph.
func NewGraph() *Graph {
	return &Graph{passes: make(map[string]*Pass)}
}

// AddPass registers p immediately; the execution order is not rebuilt until
// the next Compile or ApplyPendingMutations. Used during
// initial graph construction, before the first Compile; once the frame
// loop is running, use QueueAddPass instead so the mutation lands at frame
// end rather than mid-execute.
func (g *Graph) AddPass(p *Pass) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addPassLocked(p)
}

func (g *Graph) addPassLocked(p *Pass) error {
	if _, exists := g.passes[p.Name]; exists {
		return fmt.Errorf("%w: %q", core.ErrPassAlreadyRegistered, p.Name)
	}
	g.passes[p.Name] = p
	g.order = append(g.order, p.Name)
	if p.Setup != nil {
		if err := p.Setup(); err != nil {
			// A pass whose setup fails stays registered but disabled, so
			// the rest of the graph keeps running.
			p.Enabled = false
			return fmt.Errorf("pass %q setup: %w", p.Name, err)
		}
	}
	return nil
}

// removePassLocked drops a pass by name. Unknown names are a no-op: a
// deferred removal queued against a pass that was itself removed earlier
// in the same frame should not surface an error at apply time.
func (g *Graph) removePassLocked(name string) {
	if p, ok := g.passes[name]; ok {
		if p.Teardown != nil {
			p.Teardown()
		}
		delete(g.passes, name)
	}
}

func (g *Graph) setEnabledLocked(name string, enabled bool) error {
	p, ok := g.passes[name]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownPass, name)
	}
	p.Enabled = enabled
	return nil
}

// QueueAddPass defers registration of p until the next ApplyPendingMutations.
func (g *Graph) QueueAddPass(p *Pass) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, mutation{kind: mutationAdd, pass: p})
}

// QueueRemovePass defers removal of the named pass.
func (g *Graph) QueueRemovePass(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, mutation{kind: mutationRemove, name: name})
}

// QueueSetEnabled defers enabling or disabling the named pass.
func (g *Graph) QueueSetEnabled(name string, enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, mutation{kind: mutationSetEnabled, name: name, enabled: enabled})
}

// ApplyPendingMutations applies every mutation queued since the last call
// and, if any were applied, recompiles the graph. Call once per frame,
// after Execute.
func (g *Graph) ApplyPendingMutations() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pending) == 0 {
		return nil
	}

	var errs []error
	for _, m := range g.pending {
		switch m.kind {
		case mutationAdd:
			if err := g.addPassLocked(m.pass); err != nil {
				errs = append(errs, err)
			}
		case mutationRemove:
			g.removePassLocked(m.name)
		case mutationSetEnabled:
			if err := g.setEnabledLocked(m.name, m.enabled); err != nil {
				errs = append(errs, err)
			}
		}
	}
	g.pending = g.pending[:0]

	if err := g.compileLocked(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Compile runs Kahn's algorithm over the currently registered, enabled
// passes and stores the resulting topological order. Call once after the
// initial set of passes has been added, before the first Execute.
func (g *Graph) Compile() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compileLocked()
}

// compileLocked rebuilds the topological order from the current pass set.
// Edges run pass A -> pass B when A writes a resource B reads; disabled
// passes are elided entirely, neither contributing edges nor appearing in
// the compiled order. A cycle among the enabled passes is reported as
// core.ErrDependencyCycle rather than silently dropping passes.
func (g *Graph) compileLocked() error {
	nodes := make([]*Pass, 0, len(g.passes))
	for _, name := range g.order {
		p, ok := g.passes[name]
		if !ok || !p.Enabled {
			continue
		}
		nodes = append(nodes, p)
	}

	index := make(map[string]int, len(nodes))
	for i, p := range nodes {
		index[p.Name] = i
	}

	// writerOf maps a resource name to the index of the (single, current)
	// node writing it, so edge construction is O(V+E) rather than O(V^2).
	writerOf := make(map[string]int, len(nodes))
	for i, p := range nodes {
		for _, w := range p.Writes {
			writerOf[w] = i
		}
	}

	adj := make([][]int, len(nodes))
	inDegree := make([]int, len(nodes))
	for j, p := range nodes {
		for _, r := range p.Reads {
			i, ok := writerOf[r]
			if !ok || i == j {
				continue
			}
			adj[i] = append(adj[i], j)
			inDegree[j]++
		}
	}

	queue := make([]int, 0, len(nodes))
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	topo := make([]*Pass, 0, len(nodes))
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		topo = append(topo, nodes[i])
		for _, j := range adj[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(topo) != len(nodes) {
		return fmt.Errorf("%w: %d pass(es) unreachable from a valid topological order", core.ErrDependencyCycle, len(nodes)-len(topo))
	}

	g.topo = topo
	return nil
}

// Execute walks the compiled topological order, calling each pass's
// Update then Execute in turn. A pass that errors is logged and skipped
// for the remainder of this frame; the frame is not aborted, matching the
// scheduler's degraded-continuation policy for the same reason: one
// misbehaving pass should not take down the swapchain present.
func (g *Graph) Execute(dt float32, frame *gpu.FrameInfo) error {
	g.mu.Lock()
	topo := g.topo
	g.mu.Unlock()

	var errs []error
	for _, p := range topo {
		if p.Update != nil {
			if err := p.Update(dt); err != nil {
				errs = append(errs, fmt.Errorf("pass %q update: %w", p.Name, err))
				continue
			}
		}
		if p.Execute != nil {
			if err := p.Execute(frame); err != nil {
				errs = append(errs, fmt.Errorf("pass %q execute: %w", p.Name, err))
				continue
			}
		}
		p.stats.ExecuteCount++
		p.stats.LastFrameIndex = frame.FrameIndex
	}
	return errors.Join(errs...)
}

// Order returns the currently compiled topological order. The returned
// slice is shared with the graph; callers must not mutate it.
func (g *Graph) Order() []*Pass {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topo
}

// Pass returns the named pass, or core.ErrUnknownPass if it is not
// registered.
func (g *Graph) Pass(name string) (*Pass, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.passes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPass, name)
	}
	return p, nil
}
