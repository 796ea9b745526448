package picking

import (
	"testing"

	"github.com/Faultbox/physbox/pkg/math"
)

func TestIntersectAABB(t *testing.T) {
	box := NewAABB(math.Vec3{X: 1, Y: 1, Z: 1}, math.Vec3{X: -1, Y: -1, Z: -1})

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float32
	}{
		{"front", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}, true, 4},
		{"inside", Ray{Origin: math.Vec3{}, Direction: math.Vec3{X: 1}}, true, 1},
		{"behind", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}, false, 0},
		{"parallel outside", Ray{Origin: math.Vec3{Y: 3, Z: 5}, Direction: math.Vec3{Z: -1}}, false, 0},
		{"miss", Ray{Origin: math.Vec3{X: 3, Z: 5}, Direction: math.Vec3{X: 0.1, Z: -1}.Normalize()}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && got != tt.wantT {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
		})
	}
}

func TestIntersectPlaneY(t *testing.T) {
	r := Ray{Origin: math.Vec3{X: 1, Y: 10, Z: 2}, Direction: math.Vec3{Y: -1}}
	p, ok := r.IntersectPlaneY(0)
	if !ok || p != (math.Vec3{X: 1, Z: 2}) {
		t.Errorf("IntersectPlaneY = %v, %v", p, ok)
	}

	flat := Ray{Direction: math.Vec3{X: 1}}
	if _, ok := flat.IntersectPlaneY(0); ok {
		t.Error("parallel ray should not hit")
	}
}

func TestScreenToRayIdentity(t *testing.T) {
	r := ScreenToRay(50, 50, 100, 100, math.Identity())
	if !r.Origin.ApproxEqual(math.Vec3{Z: -1}, 1e-6) {
		t.Errorf("origin = %v", r.Origin)
	}
	if !r.Direction.ApproxEqual(math.Vec3{Z: 1}, 1e-6) {
		t.Errorf("direction = %v", r.Direction)
	}
}

func TestAABBCenter(t *testing.T) {
	b := NewAABB(math.Vec3{X: 2, Y: 4}, math.Vec3{Z: 6})
	if c := b.Center(); c != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Center = %v", c)
	}
}
