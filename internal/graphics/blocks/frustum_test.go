package blocks

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// testViewProj looks down -Z from the origin with a 90 degree FOV.
func testViewProj() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 0.1, 500)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func TestBoxInFrontIsVisible(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	if !isBoxVisible(mgl32.Vec3{-5, -5, -60}, mgl32.Vec3{5, 5, -50}, planes) {
		t.Fatal("box straight ahead should be visible")
	}
}

func TestBoxBehindIsCulled(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	if isBoxVisible(mgl32.Vec3{-5, -5, 50}, mgl32.Vec3{5, 5, 60}, planes) {
		t.Fatal("box behind the camera should be culled")
	}
}

func TestBoxBeyondFarPlaneIsCulled(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	if isBoxVisible(mgl32.Vec3{-5, -5, -700}, mgl32.Vec3{5, 5, -600}, planes) {
		t.Fatal("box past the far plane should be culled")
	}
}

func TestBoxFarToTheSideIsCulled(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	// At z=-10 the 90 degree frustum spans x in [-10,10].
	if isBoxVisible(mgl32.Vec3{100, -1, -11}, mgl32.Vec3{110, 1, -10}, planes) {
		t.Fatal("box far outside the side plane should be culled")
	}
}

func TestBoxStraddlingPlaneIsVisible(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	// Crosses the near plane: partially inside, must be kept.
	if !isBoxVisible(mgl32.Vec3{-1, -1, -5}, mgl32.Vec3{1, 1, 5}, planes) {
		t.Fatal("box straddling the near plane should be visible")
	}
	// Crosses the right plane at z=-10 (edge at x=10).
	if !isBoxVisible(mgl32.Vec3{8, -1, -12}, mgl32.Vec3{14, 1, -10}, planes) {
		t.Fatal("box straddling a side plane should be visible")
	}
}

func TestEnclosingBoxIsVisible(t *testing.T) {
	planes := extractFrustumPlanes(testViewProj())
	// A huge box containing the whole frustum has corners outside every
	// plane, but never fully behind one.
	if !isBoxVisible(mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, planes) {
		t.Fatal("box enclosing the frustum should be visible")
	}
}
