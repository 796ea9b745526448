// Package physics defines the capability surface the scene graph needs from a
// rigid-body engine: collisions, bodies, per-step callbacks and joints.
//
// Handles are opaque and owned by exactly one binding in the scene package,
// which releases them on destruction. All calls are synchronous; callbacks run
// inside Step on the caller's goroutine.
package physics

import (
	"errors"
	"fmt"

	"github.com/Faultbox/physbox/pkg/math"
)

// Engine errors.
var (
	ErrUnknownShape     = errors.New("unknown collision shape")
	ErrUnknownCollision = errors.New("unknown collision handle")
	ErrUnknownBody      = errors.New("unknown body handle")
	ErrInvalidSize      = errors.New("collision size must be positive")
)

// CollisionID identifies a collision shape created by an Engine.
type CollisionID uint32

// BodyID identifies a rigid body created by an Engine.
type BodyID uint32

// JointID identifies a constraint created by an Engine.
type JointID uint32

// NoBody stands for the static world when passed as a joint parent.
const NoBody BodyID = 0

// Shape is the collision primitive used for a body.
type Shape int

const (
	ShapeSphere Shape = iota
	ShapeBox
	ShapeCylinder
)

// String returns a human-readable shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "Sphere"
	case ShapeBox:
		return "Box"
	case ShapeCylinder:
		return "Cylinder"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// FreezeState is the sleep/active flag of a body.
type FreezeState int

const (
	// FreezeMixed is reported by aggregates whose parts disagree. It is never stored.
	FreezeMixed FreezeState = -1
	Active      FreezeState = 0
	Frozen      FreezeState = 1
)

// String returns a human-readable freeze state.
func (s FreezeState) String() string {
	switch s {
	case Active:
		return "active"
	case Frozen:
		return "frozen"
	case FreezeMixed:
		return "mixed"
	default:
		return fmt.Sprintf("FreezeState(%d)", int(s))
	}
}

// Valid reports whether s may be stored on a body.
func (s FreezeState) Valid() bool {
	return s == Active || s == Frozen
}

// TransformFunc receives the body's new world matrix after the engine moved it.
type TransformFunc func(body BodyID, matrix math.Mat4)

// ForceAndTorqueFunc is invoked once per step before integration so the
// binding can apply external forces such as gravity.
type ForceAndTorqueFunc func(body BodyID, timestep float32)

// Engine is the rigid-body engine capability surface.
type Engine interface {
	CreateCollision(shape Shape, size math.Vec3) (CollisionID, error)
	ReleaseCollision(c CollisionID)
	// InertialMatrix returns the unit-mass principal inertia and centre of mass of c.
	InertialMatrix(c CollisionID) (inertia, origin math.Vec3)

	CreateBody(c CollisionID, matrix math.Mat4) (BodyID, error)
	DestroyBody(b BodyID)
	SetBodyMatrix(b BodyID, matrix math.Mat4)
	BodyMatrix(b BodyID) math.Mat4
	SetMassMatrix(b BodyID, mass, ixx, iyy, izz float32)
	MassMatrix(b BodyID) (mass, ixx, iyy, izz float32)
	SetCentreOfMass(b BodyID, origin math.Vec3)
	SetForce(b BodyID, force math.Vec3)
	SetTransformCallback(b BodyID, fn TransformFunc)
	SetForceAndTorqueCallback(b BodyID, fn ForceAndTorqueFunc)
	SetFreezeState(b BodyID, state FreezeState)
	FreezeState(b BodyID) FreezeState

	// CreateHinge and CreateBallAndSocket accept NoBody as parent to anchor
	// the child to the static world.
	CreateHinge(frame math.Mat4, child, parent BodyID) (JointID, error)
	CreateBallAndSocket(frame math.Mat4, child, parent BodyID) (JointID, error)
	SetConeLimits(j JointID, pin math.Vec3, maxCone, maxTwist float32)
	DestroyJoint(j JointID)

	// ConvexCast drops b's collision straight down from above matrix and
	// returns the Y at which its origin comes to rest on other geometry.
	ConvexCast(b BodyID, matrix math.Mat4) (float32, bool)

	Gravity() float32
	SetGravity(g float32)
	Step(dt float32)
	Close()
}

// PinAndPivotFrame builds a joint reference frame: front = pin, up = world
// +Y, right = front x up and position = pivot.
func PinAndPivotFrame(pivot, pin math.Vec3) math.Mat4 {
	front := pin
	up := math.Vec3{X: 0, Y: 1, Z: 0}
	right := front.Cross(up)

	return math.Mat4{
		front.X, front.Y, front.Z, 0,
		up.X, up.Y, up.Z, 0,
		right.X, right.Y, right.Z, 0,
		pivot.X, pivot.Y, pivot.Z, 1,
	}
}

// UnitInertia returns the principal moments of inertia of a unit-mass shape.
// size holds the full extents of the shape's bounding box; a sphere uses X as
// its diameter and a cylinder stands along Y with X as its diameter.
func UnitInertia(shape Shape, size math.Vec3) math.Vec3 {
	switch shape {
	case ShapeSphere:
		r := size.X / 2
		i := 0.4 * r * r
		return math.Vec3{X: i, Y: i, Z: i}
	case ShapeCylinder:
		r := size.X / 2
		h := size.Y
		side := (3*r*r + h*h) / 12
		return math.Vec3{X: side, Y: r * r / 2, Z: side}
	default:
		x2, y2, z2 := size.X*size.X, size.Y*size.Y, size.Z*size.Z
		return math.Vec3{X: (y2 + z2) / 12, Y: (x2 + z2) / 12, Z: (x2 + y2) / 12}
	}
}

// HalfExtents returns half the axis-aligned extents of a shape of the given size.
func HalfExtents(shape Shape, size math.Vec3) math.Vec3 {
	if shape == ShapeSphere {
		r := size.X / 2
		return math.Vec3{X: r, Y: r, Z: r}
	}
	return size.Scale(0.5)
}

// ValidateSize rejects sizes the engines cannot build a collision for.
func ValidateSize(shape Shape, size math.Vec3) error {
	if size.X <= 0 || (shape != ShapeSphere && (size.Y <= 0 || size.Z <= 0)) {
		return fmt.Errorf("%w: %s %v", ErrInvalidSize, shape, size)
	}
	return nil
}
