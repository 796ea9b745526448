// Package camera provides the orbit camera used by the viewer.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/physbox/internal/engine/picking"
	"github.com/Faultbox/physbox/pkg/math"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center math.Vec3

	Distance  float32
	RotationX float32 // pitch, radians
	RotationY float32 // yaw, radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	FovY      float32 // radians
	Near, Far float32

	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates a camera looking at the origin from a few metres
// away, sized for the sandbox floor.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        15,
		RotationX:       0.5,
		MinDistance:     2,
		MaxDistance:     200,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		FovY:            math32.Pi / 3,
		Near:            0.1,
		Far:             1024,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	cosPitch := math32.Cos(c.RotationX)
	offset := math.Vec3{
		X: c.Distance * cosPitch * math32.Sin(c.RotationY),
		Y: c.Distance * math32.Sin(c.RotationX),
		Z: c.Distance * cosPitch * math32.Cos(c.RotationY),
	}
	return c.Center.Add(offset)
}

// ViewMatrix returns the view matrix.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{Y: 1})
}

// ViewProjection returns projection * view for the given aspect ratio.
func (c *OrbitCamera) ViewProjection(aspect float32) math.Mat4 {
	return math.Perspective(c.FovY, aspect, c.Near, c.Far).Mul(c.ViewMatrix())
}

// Ray returns the world ray through a pixel of a width x height viewport.
func (c *OrbitCamera) Ray(x, y float32, width, height int) picking.Ray {
	aspect := float32(width) / float32(height)
	inv := c.ViewProjection(aspect).Inverse()
	return picking.ScreenToRay(x, y, float32(width), float32(height), inv)
}

// HandleDrag updates rotation from a mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = math32.Max(c.MinPitch, math32.Min(c.MaxPitch, c.RotationX))
}

// HandleZoom updates distance from a scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = math32.Max(c.MinDistance, math32.Min(c.MaxDistance, c.Distance))
}

// HandleMovement pans the center on the XZ plane relative to the view
// direction, and along Y by up.
func (c *OrbitCamera) HandleMovement(forward, right, up float32) {
	speed := c.Distance * 0.01

	sin, cos := math32.Sin(c.RotationY), math32.Cos(c.RotationY)
	c.Center.X += (-sin*forward + cos*right) * speed
	c.Center.Z += (-cos*forward - sin*right) * speed
	c.Center.Y += up * speed
}

// FitToBounds centers the camera on the box and backs off far enough to see it.
func (c *OrbitCamera) FitToBounds(min, max math.Vec3) {
	c.Center = min.Add(max).Scale(0.5)
	size := max.Sub(min).Length()
	c.Distance = math32.Max(c.MinDistance, math32.Min(c.MaxDistance, size))
	c.RotationX = 0.6
	c.RotationY = 0
}
