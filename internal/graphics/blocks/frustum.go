package blocks

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type plane struct {
	a, b, c, d float32
}

// extractFrustumPlanes builds six planes from the combined projection*view
// matrix, in order: left, right, bottom, top, near, far.
func extractFrustumPlanes(clip mgl32.Mat4) [6]plane {
	// mgl32 matrices are column-major.
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	pl := [6]plane{}
	pl[0] = normalizePlane(plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03})
	pl[1] = normalizePlane(plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03})
	pl[2] = normalizePlane(plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13})
	pl[3] = normalizePlane(plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13})
	pl[4] = normalizePlane(plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23})
	pl[5] = normalizePlane(plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23})
	return pl
}

func normalizePlane(p plane) plane {
	l := float32(math.Sqrt(float64(p.a*p.a + p.b*p.b + p.c*p.c)))
	if l == 0 {
		return p
	}
	return plane{p.a / l, p.b / l, p.c / l, p.d / l}
}

// isBoxVisible tests an AABB against the planes with the most-positive
// vertex test: for each plane pick the corner maximizing the dot product
// with the plane normal; if even that corner is behind, the box is outside.
// Conservative for boxes straddling a plane.
func isBoxVisible(min, max mgl32.Vec3, planes [6]plane) bool {
	for i := 0; i < 6; i++ {
		p := planes[i]
		px := max.X()
		if p.a < 0 {
			px = min.X()
		}
		py := max.Y()
		if p.b < 0 {
			py = min.Y()
		}
		pz := max.Z()
		if p.c < 0 {
			pz = min.Z()
		}
		if p.a*px+p.b*py+p.c*pz+p.d < 0 {
			return false
		}
	}
	return true
}
