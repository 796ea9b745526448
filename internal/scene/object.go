package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Object is anything placeable in a scene. The set of implementations is
// closed: *RigidBody and *Compound.
type Object interface {
	// ID is the object's index within its owning compound, assigned by Add.
	// It is -1 until the object is added.
	ID() int
	Type() Type

	// Matrix is the object's world transform.
	Matrix() math.Mat4
	SetMatrix(m math.Mat4)

	FreezeState() physics.FreezeState
	SetFreezeState(s physics.FreezeState)

	// ContainsBody reports whether the object or one of its descendants
	// wraps the engine body b.
	ContainsBody(b physics.BodyID) bool
	// Contains reports whether o is the object itself or one of its descendants.
	Contains(o Object) bool

	// ConvexCastPlacement returns the Y at which the object rests on the
	// geometry below it and moves it there when apply is set.
	ConvexCastPlacement(apply bool) float32

	GenBuffers(vb *VertexBuffer)
	Render(r Renderer)

	// Bounds returns the world-space axis-aligned bounding box.
	Bounds() (min, max math.Vec3)

	// Destroy releases every engine handle held by the object. It is safe to
	// call more than once.
	Destroy()

	setID(id int)
}

// noSurface is the placement height reported when nothing is below.
const noSurface float32 = -1000

// placementEpsilon lifts a placed compound clear of the surface it rests on.
const placementEpsilon float32 = 0.0001

// DrawCall is one indexed draw of an object's mesh.
type DrawCall struct {
	Object   Object
	Matrix   math.Mat4
	First    int
	Count    int
	Color    [3]float32
	Selected bool
}

// Renderer consumes draw calls produced by Object.Render.
type Renderer interface {
	Draw(call DrawCall)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(call DrawCall)

// Draw calls f(call).
func (f RendererFunc) Draw(call DrawCall) {
	f(call)
}

func boundsOf(m math.Mat4, half math.Vec3) (min, max math.Vec3) {
	first := true
	for _, sx := range [2]float32{-1, 1} {
		for _, sy := range [2]float32{-1, 1} {
			for _, sz := range [2]float32{-1, 1} {
				p := m.TransformVec3(math.Vec3{X: sx * half.X, Y: sy * half.Y, Z: sz * half.Z})
				if first {
					min, max = p, p
					first = false
					continue
				}
				min = math.Vec3{X: math32.Min(min.X, p.X), Y: math32.Min(min.Y, p.Y), Z: math32.Min(min.Z, p.Z)}
				max = math.Vec3{X: math32.Max(max.X, p.X), Y: math32.Max(max.Y, p.Y), Z: math32.Max(max.Z, p.Z)}
			}
		}
	}
	return min, max
}
