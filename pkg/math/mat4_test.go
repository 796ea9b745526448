package math

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation should be in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestScale(t *testing.T) {
	m := Scale(2, 3, 4)

	if m[0] != 2 || m[5] != 3 || m[10] != 4 {
		t.Errorf("Scale diagonal: got (%f, %f, %f), want (2, 3, 4)", m[0], m[5], m[10])
	}
}

func TestTransformPoint(t *testing.T) {
	// Translate by (10, 20, 30)
	m := Translate(10, 20, 30)
	p := [3]float32{1, 2, 3}
	result := m.TransformPoint(p)

	expected := [3]float32{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	p := [3]float32{1, 2, 3}
	result := m.TransformPoint(p)

	expected := [3]float32{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(float32(math.Pi / 2)) // 90 degrees
	p := [3]float32{1, 0, 0}           // Point on X axis
	result := m.TransformPoint(p)

	// After 90 degree Y rotation, (1,0,0) should become approximately (0,0,-1)
	if abs(result[0]) > 0.001 || abs(result[1]) > 0.001 || abs(result[2]+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", result)
	}
}

func TestPerspective(t *testing.T) {
	fov := float32(math.Pi / 4) // 45 degrees
	aspect := float32(1.0)
	near := float32(0.1)
	far := float32(100.0)

	m := Perspective(fov, aspect, near, far)

	// Should be a valid projection matrix (not identity)
	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	// Element [15] should be 0 for perspective projection
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	// Element [11] should be -1 for perspective projection
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAt(t *testing.T) {
	eye := Vec3{0, 0, 5}
	center := Vec3{0, 0, 0}
	up := Vec3{0, 1, 0}

	m := LookAt(eye, center, up)

	// Transform eye position - should result in origin (or close to it)
	// This is a simple sanity check
	if m[15] != 1 {
		t.Errorf("LookAt [15] should be 1, got %f", m[15])
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(1, -2, 3).Mul(RotateY(0.7)).Mul(RotateX(-0.3))
	got := m.Mul(m.Inverse())
	if !got.ApproxEqual(Identity(), 1e-5) {
		t.Errorf("M * M^-1 should be identity, got %v", got)
	}
}

func TestInverseMatchesMathGL(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"translation", Translate(4, 5, 6)},
		{"rotation", RotateAxis(Vec3{0, 0.6, 0.8}, 1.1)},
		{"rigid", Translate(-1, 0.5, 2).Mul(RotateZ(0.4))},
		{"scaled", Scale(2, 3, 0.5).Mul(RotateX(1.2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Mat4(mgl32.Mat4(tt.m).Inv())
			if got := tt.m.Inverse(); !got.ApproxEqual(want, 1e-5) {
				t.Errorf("Inverse() = %v, want %v", got, want)
			}
		})
	}
}

func TestMulMatchesMathGL(t *testing.T) {
	a := Translate(1, 2, 3).Mul(RotateY(0.5))
	b := RotateX(0.25).Mul(Scale(1, 2, 1))

	want := Mat4(mgl32.Mat4(a).Mul4(mgl32.Mat4(b)))
	if got := a.Mul(b); !got.ApproxEqual(want, 1e-6) {
		t.Errorf("Mul() = %v, want %v", got, want)
	}
}

func TestCompose(t *testing.T) {
	local := Translate(1, 0, 0)
	parent := RotateY(float32(math.Pi / 2)).WithPosition(Vec3{0, 5, 0})

	world := Compose(local, parent)
	// Local +X rotated 90 degrees about Y lands on -Z, then moved up by 5
	if p := world.Position(); !p.ApproxEqual(Vec3{0, 5, -1}, 1e-5) {
		t.Errorf("Compose position = %v, want (0, 5, -1)", p)
	}

	back := Relative(world, parent)
	if !back.ApproxEqual(local, 1e-5) {
		t.Errorf("Relative(Compose(l, p), p) = %v, want %v", back, local)
	}
}

func TestAxesAndPosition(t *testing.T) {
	m := RotateZ(float32(math.Pi / 2)).WithPosition(Vec3{7, 8, 9})

	if p := m.Position(); p != (Vec3{7, 8, 9}) {
		t.Errorf("Position() = %v, want (7, 8, 9)", p)
	}
	if r := m.Right(); !r.ApproxEqual(Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("Right() = %v, want (0, 1, 0)", r)
	}
	if u := m.Up(); !u.ApproxEqual(Vec3{-1, 0, 0}, 1e-6) {
		t.Errorf("Up() = %v, want (-1, 0, 0)", u)
	}
	if f := m.Front(); !f.ApproxEqual(Vec3{0, 0, 1}, 1e-6) {
		t.Errorf("Front() = %v, want (0, 0, 1)", f)
	}
}

func TestRotateLocalKeepsPosition(t *testing.T) {
	m := Translate(3, 4, 5)
	r := m.RotateLocal(RotateX(0.8))

	if p := r.Position(); p != (Vec3{3, 4, 5}) {
		t.Errorf("RotateLocal moved the position to %v", p)
	}
	if r.ApproxEqual(m, 1e-6) {
		t.Error("RotateLocal did not rotate the basis")
	}
}

func TestTransformDir(t *testing.T) {
	m := Translate(100, 100, 100).Mul(RotateY(float32(math.Pi / 2)))
	got := m.TransformDir(Vec3{1, 0, 0})
	if !got.ApproxEqual(Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("TransformDir ignored rotation or applied translation: %v", got)
	}
}
