package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// tmpEngineConfig mirrors the on-disk engine.toml layout before it is
// validated and transformed into an EngineConfig, matching the
// decode-then-validate-then-transform idiom the asset loaders use for
// shader configs.
type tmpEngineConfig struct {
	Window struct {
		Width  uint32 `toml:"width"`
		Height uint32 `toml:"height"`
		Title  string `toml:"title"`
	} `toml:"window"`

	Renderer struct {
		ValidationLayers  bool `toml:"validation_layers"`
		RayTracing        bool `toml:"ray_tracing"`
		MaxFramesInFlight int  `toml:"max_frames_in_flight"`
	} `toml:"renderer"`

	ThreadPool struct {
		HotReloadWorkers    int `toml:"hot_reload_workers"`
		BVHBuildingWorkers  int `toml:"bvh_building_workers"`
		ECSUpdateWorkers    int `toml:"ecs_update_workers"`
		AssetLoadingWorkers int `toml:"asset_loading_workers"`
		RenderingWorkers    int `toml:"rendering_workers"`
		QueueCapacity       int `toml:"queue_capacity"`
	} `toml:"thread_pool"`
}

// EngineConfig is the validated, ready-to-use engine configuration.
type EngineConfig struct {
	WindowWidth  uint32
	WindowHeight uint32
	WindowTitle  string

	ValidationLayers  bool
	RayTracing        bool
	MaxFramesInFlight int

	HotReloadWorkers    int
	BVHBuildingWorkers  int
	ECSUpdateWorkers    int
	AssetLoadingWorkers int
	RenderingWorkers    int
	QueueCapacity       int
}

// DefaultEngineConfig returns the configuration used when no engine.toml is
// present. After a decode, numeric and string fields left at their zero value
// also take these defaults; the renderer booleans do not (see transform).
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		WindowWidth:  1280,
		WindowHeight: 720,
		WindowTitle:  "Anima",

		ValidationLayers:  true,
		RayTracing:        false,
		MaxFramesInFlight: 3,

		HotReloadWorkers:    1,
		BVHBuildingWorkers:  2,
		ECSUpdateWorkers:    4,
		AssetLoadingWorkers: 2,
		RenderingWorkers:    1,
		QueueCapacity:       256,
	}
}

func (c *tmpEngineConfig) validate() error {
	if c.Renderer.MaxFramesInFlight < 0 {
		return fmt.Errorf("renderer.max_frames_in_flight must not be negative, got %d", c.Renderer.MaxFramesInFlight)
	}
	for name, n := range map[string]int{
		"thread_pool.hot_reload_workers":    c.ThreadPool.HotReloadWorkers,
		"thread_pool.bvh_building_workers":  c.ThreadPool.BVHBuildingWorkers,
		"thread_pool.ecs_update_workers":    c.ThreadPool.ECSUpdateWorkers,
		"thread_pool.asset_loading_workers": c.ThreadPool.AssetLoadingWorkers,
		"thread_pool.rendering_workers":     c.ThreadPool.RenderingWorkers,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, n)
		}
	}
	return nil
}

// transform folds a decoded tmpEngineConfig over DefaultEngineConfig,
// letting any numeric or string field left at its zero value in engine.toml
// fall back to the default rather than booting with e.g. a zero-sized window.
// The renderer booleans are taken as decoded, so an omitted
// validation_layers reads as false.
func (c *tmpEngineConfig) transform() *EngineConfig {
	cfg := DefaultEngineConfig()

	if c.Window.Width != 0 {
		cfg.WindowWidth = c.Window.Width
	}
	if c.Window.Height != 0 {
		cfg.WindowHeight = c.Window.Height
	}
	if c.Window.Title != "" {
		cfg.WindowTitle = c.Window.Title
	}

	cfg.ValidationLayers = c.Renderer.ValidationLayers
	cfg.RayTracing = c.Renderer.RayTracing
	if c.Renderer.MaxFramesInFlight != 0 {
		cfg.MaxFramesInFlight = c.Renderer.MaxFramesInFlight
	}

	if c.ThreadPool.HotReloadWorkers != 0 {
		cfg.HotReloadWorkers = c.ThreadPool.HotReloadWorkers
	}
	if c.ThreadPool.BVHBuildingWorkers != 0 {
		cfg.BVHBuildingWorkers = c.ThreadPool.BVHBuildingWorkers
	}
	if c.ThreadPool.ECSUpdateWorkers != 0 {
		cfg.ECSUpdateWorkers = c.ThreadPool.ECSUpdateWorkers
	}
	if c.ThreadPool.AssetLoadingWorkers != 0 {
		cfg.AssetLoadingWorkers = c.ThreadPool.AssetLoadingWorkers
	}
	if c.ThreadPool.RenderingWorkers != 0 {
		cfg.RenderingWorkers = c.ThreadPool.RenderingWorkers
	}
	if c.ThreadPool.QueueCapacity != 0 {
		cfg.QueueCapacity = c.ThreadPool.QueueCapacity
	}

	return cfg
}

// LoadEngineConfig reads and validates engine.toml at path. A missing file
// is not an error: the caller gets DefaultEngineConfig back, matching the
// teacher's tolerance for optional per-asset config files.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultEngineConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading engine config %q: %v", path, err)
	}

	var tmp tmpEngineConfig
	if err := toml.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("parsing engine config %q: %v", path, err)
	}
	if err := tmp.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config %q: %v", path, err)
	}

	return tmp.transform(), nil
}
