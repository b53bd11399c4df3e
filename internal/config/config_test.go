package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxelstream.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func resetDefaults() {
	mu.Lock()
	settings = defaults()
	mu.Unlock()
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	resetDefaults()
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if got := GetRenderDistance(); got != 8 {
		t.Fatalf("render distance %d, want default 8", got)
	}
	if got := GetUploadsPerFrame(); got != 32 {
		t.Fatalf("uploads per frame %d, want default 32", got)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	resetDefaults()
	path := writeConfig(t, "render_distance: 12\nseed: 99\nstaging_mb: 8\n")
	if err := Load(path); err != nil {
		t.Fatal(err)
	}
	if got := GetRenderDistance(); got != 12 {
		t.Fatalf("render distance %d, want 12", got)
	}
	if got := GetSeed(); got != 99 {
		t.Fatalf("seed %d, want 99", got)
	}
	if got := GetStagingBytes(); got != 8<<20 {
		t.Fatalf("staging %d, want 8MB", got)
	}
	// Keys absent from the file keep their defaults.
	if got := GetVertexHeapBytes(); got != 256<<20 {
		t.Fatalf("vertex heap %d, want default 256MB", got)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	resetDefaults()
	path := writeConfig(t, "render_distance: [not a number\n")
	if err := Load(path); err == nil {
		t.Fatal("malformed yaml should error")
	}
}

func TestAccessorsClamp(t *testing.T) {
	resetDefaults()
	path := writeConfig(t, "render_distance: 500\nuploads_per_frame: 0\nframes_in_flight: 10\n")
	if err := Load(path); err != nil {
		t.Fatal(err)
	}
	if got := GetRenderDistance(); got != 32 {
		t.Fatalf("render distance %d, want clamp to 32", got)
	}
	if got := GetUploadsPerFrame(); got != 1 {
		t.Fatalf("uploads per frame %d, want clamp to 1", got)
	}
	if got := GetFramesInFlight(); got != 3 {
		t.Fatalf("frames in flight %d, want clamp to 3", got)
	}
}

func TestSetRenderDistance(t *testing.T) {
	resetDefaults()
	SetRenderDistance(1)
	if got := GetRenderDistance(); got != 2 {
		t.Fatalf("render distance %d, want clamp to 2", got)
	}
	SetRenderDistance(16)
	if got := GetRenderDistance(); got != 16 {
		t.Fatalf("render distance %d, want 16", got)
	}
}

func TestMeshWorkersDefault(t *testing.T) {
	resetDefaults()
	if got := GetMeshWorkers(); got < 1 {
		t.Fatalf("mesh workers %d, want at least 1", got)
	}
}
