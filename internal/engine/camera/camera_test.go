package camera

import (
	"testing"

	"github.com/Faultbox/physbox/pkg/math"
)

func TestPositionFromAngles(t *testing.T) {
	c := NewOrbitCamera()
	c.RotationX = 0
	c.RotationY = 0
	c.Distance = 10
	c.Center = math.Vec3{X: 1}

	if got := c.Position(); !got.ApproxEqual(math.Vec3{X: 1, Z: 10}, 1e-5) {
		t.Errorf("Position = %v", got)
	}
}

func TestZoomAndDragClamp(t *testing.T) {
	c := NewOrbitCamera()
	for i := 0; i < 100; i++ {
		c.HandleZoom(5)
	}
	if c.Distance != c.MinDistance {
		t.Errorf("distance %v, want clamp to %v", c.Distance, c.MinDistance)
	}
	c.HandleDrag(0, 1e6)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch %v, want clamp to %v", c.RotationX, c.MaxPitch)
	}
}

func TestRayThroughCenterHitsTarget(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = math.Vec3{Y: 1}
	c.Near, c.Far = 0.5, 100
	r := c.Ray(400, 300, 800, 600)

	// The centre pixel looks at the orbit target.
	toCenter := c.Center.Sub(r.Origin).Normalize()
	if !r.Direction.ApproxEqual(toCenter, 1e-3) {
		t.Errorf("direction %v, want %v", r.Direction, toCenter)
	}
}

func TestFitToBounds(t *testing.T) {
	c := NewOrbitCamera()
	c.FitToBounds(math.Vec3{X: -2, Y: 0, Z: -2}, math.Vec3{X: 2, Y: 4, Z: 2})
	if c.Center != (math.Vec3{Y: 2}) {
		t.Errorf("center %v", c.Center)
	}
	if c.Distance < c.MinDistance || c.Distance > c.MaxDistance {
		t.Errorf("distance %v out of range", c.Distance)
	}
}
