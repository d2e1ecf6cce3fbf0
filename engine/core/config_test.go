package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngineConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), cfg)
}

func TestLoadEngineConfig_PartialOverrideFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	writeFile(t, path, `
[window]
width = 1920
height = 1080

[renderer]
ray_tracing = true
`)

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1920), cfg.WindowWidth)
	assert.Equal(t, uint32(1080), cfg.WindowHeight)
	assert.Equal(t, "Anima", cfg.WindowTitle, "unset field falls back to default")
	assert.True(t, cfg.RayTracing)
	assert.Equal(t, 3, cfg.MaxFramesInFlight, "unset field falls back to default")
}

func TestLoadEngineConfig_NegativeWorkerCountRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	writeFile(t, path, `
[thread_pool]
ecs_update_workers = -1
`)

	_, err := LoadEngineConfig(path)
	require.Error(t, err)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
