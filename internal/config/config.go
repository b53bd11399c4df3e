// Package config loads engine settings from a YAML file and exposes them
// through clamped accessors. Missing file or missing keys fall back to
// defaults, so the engine always starts.
package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML shape of the config file.
type Settings struct {
	RenderDistance int   `yaml:"render_distance"` // in columns
	Seed           int64 `yaml:"seed"`

	MeshWorkers     int `yaml:"mesh_workers"` // 0 means NumCPU-1
	UploadsPerFrame int `yaml:"uploads_per_frame"`

	VertexHeapMB   int `yaml:"vertex_heap_mb"`
	IndexHeapMB    int `yaml:"index_heap_mb"`
	StagingMB      int `yaml:"staging_mb"`
	FramesInFlight int `yaml:"frames_in_flight"`
}

var (
	mu       sync.RWMutex
	settings = defaults()
)

func defaults() Settings {
	return Settings{
		RenderDistance:  8,
		Seed:            1337,
		MeshWorkers:     0,
		UploadsPerFrame: 32,
		VertexHeapMB:    256,
		IndexHeapMB:     64,
		StagingMB:       16,
		FramesInFlight:  2,
	}
}

// Load reads settings from path, applying defaults for absent keys. A
// missing file is not an error; a malformed one is.
func Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	s := defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	mu.Lock()
	settings = s
	mu.Unlock()
	return nil
}

// GetRenderDistance returns the render distance in columns.
func GetRenderDistance() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.RenderDistance, 2, 32)
}

// SetRenderDistance changes the render distance at runtime.
func SetRenderDistance(distance int) {
	mu.Lock()
	defer mu.Unlock()
	settings.RenderDistance = clamp(distance, 2, 32)
}

// GetSeed returns the terrain seed.
func GetSeed() int64 {
	mu.RLock()
	defer mu.RUnlock()
	return settings.Seed
}

// GetMeshWorkers returns the mesh worker count, defaulting to NumCPU-1.
func GetMeshWorkers() int {
	mu.RLock()
	defer mu.RUnlock()
	if settings.MeshWorkers > 0 {
		return settings.MeshWorkers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// GetUploadsPerFrame returns the per-frame column upload budget.
func GetUploadsPerFrame() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.UploadsPerFrame, 1, 512)
}

// GetVertexHeapBytes returns the initial vertex heap size.
func GetVertexHeapBytes() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.VertexHeapMB, 16, 2048) << 20
}

// GetIndexHeapBytes returns the initial index heap size.
func GetIndexHeapBytes() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.IndexHeapMB, 4, 512) << 20
}

// GetStagingBytes returns the per-slot staging buffer size.
func GetStagingBytes() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.StagingMB, 1, 256) << 20
}

// GetFramesInFlight returns how many frames may be recorded concurrently.
func GetFramesInFlight() int {
	mu.RLock()
	defer mu.RUnlock()
	return clamp(settings.FramesInFlight, 1, 3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
