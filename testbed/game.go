package testbed

import (
	stdmath "math"
	"reflect"

	"github.com/vulcanforge/anima/engine"
	"github.com/vulcanforge/anima/engine/core"
	"github.com/vulcanforge/anima/engine/ecs"
	"github.com/vulcanforge/anima/engine/math"
	"github.com/vulcanforge/anima/engine/threadpool"
)

// Transform is the demo's one spatial component: a world position plus a
// constant angular velocity about Y, so the orbit system below has
// something to mutate every tick.
type Transform struct {
	Position math.Vec3
	YawRate  float32
	Yaw      float32
}

// Orbiter tags an entity as belonging to the orbit system's write set,
// separate from Transform so a future system can own Transform for entities
// that never orbit (e.g. a static prop).
type Orbiter struct {
	Radius float32
}

type TestGame struct {
	*engine.Game

	orbiters []ecs.Entity
}

type gameState struct {
	width  uint32
	height uint32
}

// NewTestGame builds the default demo game: a handful of orbiting entities
// driven entirely by a registered ECS system, wired through CoreLoop rather
// than the legacy renderer-system stack.
func NewTestGame() *engine.Game {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   100,
				StartPosY:   100,
				StartWidth:  1280,
				StartHeight: 720,
				Name:        "Anima Game Engine",
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize

	return tg.Game
}

// Initialize reaches the live CoreLoop, registers the demo's component
// types and orbit system, and seeds a few entities for it to act on.
func (g *TestGame) Initialize() error {
	core.LogDebug("testbed: initializing...")

	cl := engine.ApplicationCore()
	if cl == nil {
		return core.ErrUnknown
	}

	if err := ecs.Register[Transform](cl.World); err != nil {
		return err
	}
	if err := ecs.Register[Orbiter](cl.World); err != nil {
		return err
	}

	system := &ecs.System{
		Name:     "orbit",
		Stage:    0,
		Priority: threadpool.PriorityNormal,
		Reads:    []reflect.Type{ecs.TypeOf[Orbiter]()},
		Writes:   []reflect.Type{ecs.TypeOf[Transform]()},
		Run:      orbitSystem,
	}
	if err := cl.Scheduler.RegisterSystem(system); err != nil {
		return err
	}

	radii := []float32{10.0, 5.0, 2.0}
	for i, radius := range radii {
		e := cl.World.CreateEntity()
		if err := ecs.Add(cl.World, e, Transform{
			Position: math.NewVec3(radius, 0, 0),
			YawRate:  float32(0.5 + 0.25*float64(i)),
		}); err != nil {
			return err
		}
		if err := ecs.Add(cl.World, e, Orbiter{Radius: radius}); err != nil {
			return err
		}
		g.orbiters = append(g.orbiters, e)
	}

	core.LogInfo("testbed: seeded %d orbiting entities", len(g.orbiters))

	return nil
}

// orbitSystem advances each orbiting entity's yaw and re-derives its
// position on the XZ plane. It is run every tick by the scheduler as part
// of CoreLoop.SimulateTick, before the snapshot is published.
func orbitSystem(w *ecs.World, dt float64, userdata interface{}) error {
	ecs.Query2[Transform, Orbiter](w).Each(func(e ecs.Entity, t *Transform, o *Orbiter) {
		t.Yaw += t.YawRate * float32(dt)
		t.Position = math.NewVec3(
			o.Radius*float32(stdmath.Cos(float64(t.Yaw))),
			0,
			o.Radius*float32(stdmath.Sin(float64(t.Yaw))),
		)
	})
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}
