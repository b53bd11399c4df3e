package main

import (
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	moveSpeed        = 40.0 // blocks per second
	fastMultiplier   = 4.0
	mouseSensitivity = 0.12
	nearPlane        = 0.1
	farPlane         = 2000.0
	fovDegrees       = 70.0
)

// camera is a free-flying camera driven by WASD and the mouse.
type camera struct {
	Position mgl32.Vec3
	yaw      float64
	pitch    float64

	lastX, lastY float64
	firstMouse   bool
}

func newCamera(pos mgl32.Vec3) *camera {
	return &camera{
		Position:   pos,
		yaw:        -90,
		firstMouse: true,
	}
}

func (c *camera) handleMouse(xpos, ypos float64) {
	if c.firstMouse {
		c.lastX, c.lastY = xpos, ypos
		c.firstMouse = false
		return
	}
	c.yaw += (xpos - c.lastX) * mouseSensitivity
	c.pitch += (c.lastY - ypos) * mouseSensitivity
	c.lastX, c.lastY = xpos, ypos

	if c.pitch > 89 {
		c.pitch = 89
	}
	if c.pitch < -89 {
		c.pitch = -89
	}
}

func (c *camera) forward() mgl32.Vec3 {
	yawRad := c.yaw * math.Pi / 180
	pitchRad := c.pitch * math.Pi / 180
	return mgl32.Vec3{
		float32(math.Cos(yawRad) * math.Cos(pitchRad)),
		float32(math.Sin(pitchRad)),
		float32(math.Sin(yawRad) * math.Cos(pitchRad)),
	}.Normalize()
}

func (c *camera) update(window *glfw.Window, dt float32) {
	speed := float32(moveSpeed) * dt
	if window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		speed *= fastMultiplier
	}
	fwd := c.forward()
	right := fwd.Cross(mgl32.Vec3{0, 1, 0}).Normalize()

	if window.GetKey(glfw.KeyW) == glfw.Press {
		c.Position = c.Position.Add(fwd.Mul(speed))
	}
	if window.GetKey(glfw.KeyS) == glfw.Press {
		c.Position = c.Position.Sub(fwd.Mul(speed))
	}
	if window.GetKey(glfw.KeyA) == glfw.Press {
		c.Position = c.Position.Sub(right.Mul(speed))
	}
	if window.GetKey(glfw.KeyD) == glfw.Press {
		c.Position = c.Position.Add(right.Mul(speed))
	}
	if window.GetKey(glfw.KeySpace) == glfw.Press {
		c.Position = c.Position.Add(mgl32.Vec3{0, speed, 0})
	}
	if window.GetKey(glfw.KeyLeftControl) == glfw.Press {
		c.Position = c.Position.Sub(mgl32.Vec3{0, speed, 0})
	}
}

// viewProj builds the combined matrix for the current pose. The projection
// flips Y for Vulkan clip space.
func (c *camera) viewProj(width, height uint32) mgl32.Mat4 {
	view := mgl32.LookAtV(c.Position, c.Position.Add(c.forward()), mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(fovDegrees), float32(width)/float32(height), nearPlane, farPlane)
	proj[5] *= -1
	return proj.Mul4(view)
}
