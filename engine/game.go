package engine

// Game is the host application's hook set: state plus the four lifecycle
// callbacks the engine invokes. It no longer carries a SystemManager — the
// legacy engine/systems package is a pre-existing, non-compiling scaffold
// (see DESIGN.md). A game reaches the running application's ECS world and
// scheduler through ApplicationCore() instead, typically from FnInitialize.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
