package profiling

import (
	"testing"
	"time"
)

func TestCountersAccumulateAndReset(t *testing.T) {
	ResetFrame()
	Count("scene.upload.columns", 3)
	Count("scene.upload.columns", 2)
	if got := Counter("scene.upload.columns"); got != 5 {
		t.Fatalf("counter = %d, want 5", got)
	}
	ResetFrame()
	if got := Counter("scene.upload.columns"); got != 0 {
		t.Fatalf("counter after reset = %d, want 0", got)
	}
}

func TestSumWithPrefix(t *testing.T) {
	ResetFrame()
	mu.Lock()
	frameTotals["scene.Update"] = 2 * time.Millisecond
	frameTotals["scene.Render"] = 3 * time.Millisecond
	frameTotals["glfw.PollEvents"] = time.Millisecond
	mu.Unlock()
	if got, want := SumWithPrefix("scene."), 5*time.Millisecond; got != want {
		t.Fatalf("SumWithPrefix = %v, want %v", got, want)
	}
}

func TestTrackRecordsElapsed(t *testing.T) {
	ResetFrame()
	func() { defer Track("work")(); time.Sleep(time.Millisecond) }()
	if Snapshot()["work"] < time.Millisecond {
		t.Fatalf("tracked duration %v below slept time", Snapshot()["work"])
	}
}
