// Package physicstest provides a deterministic in-memory physics.Engine for
// tests. It records every handle it hands out, integrates gravity with
// explicit Euler steps and resolves convex casts against axis-aligned bounds.
package physicstest

import (
	"fmt"
	"sort"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Collision is a recorded collision shape.
type Collision struct {
	Shape    physics.Shape
	Size     math.Vec3
	Released bool
}

// Body is a recorded rigid body.
type Body struct {
	Collision physics.CollisionID
	Matrix    math.Mat4
	Mass      float32
	Inertia   math.Vec3
	Origin    math.Vec3
	Force     math.Vec3
	Velocity  math.Vec3
	Freeze    physics.FreezeState

	transform physics.TransformFunc
	force     physics.ForceAndTorqueFunc
}

// JointKind tells recorded joints apart.
type JointKind int

const (
	KindHinge JointKind = iota
	KindBallAndSocket
)

// Joint is a recorded constraint.
type Joint struct {
	Kind     JointKind
	Frame    math.Mat4
	Child    physics.BodyID
	Parent   physics.BodyID
	Pin      math.Vec3
	MaxCone  float32
	MaxTwist float32
	Limited  bool
}

// Engine implements physics.Engine in memory.
type Engine struct {
	// Ground is the Y of the implicit plane convex casts fall onto.
	Ground float32

	// DestroyedBodies and DestroyedJoints record release order per kind;
	// Releases interleaves both as "body 3" or "joint 7".
	DestroyedBodies []physics.BodyID
	DestroyedJoints []physics.JointID
	Releases        []string

	gravity    float32
	next       uint32
	collisions map[physics.CollisionID]*Collision
	bodies     map[physics.BodyID]*Body
	joints     map[physics.JointID]*Joint
	closed     bool
}

var _ physics.Engine = (*Engine)(nil)

// New creates an engine with the given gravity along Y.
func New(gravity float32) *Engine {
	return &Engine{
		gravity:    gravity,
		collisions: make(map[physics.CollisionID]*Collision),
		bodies:     make(map[physics.BodyID]*Body),
		joints:     make(map[physics.JointID]*Joint),
	}
}

func (e *Engine) handle() uint32 {
	e.next++
	return e.next
}

// Collision returns the recorded collision or nil.
func (e *Engine) Collision(c physics.CollisionID) *Collision {
	return e.collisions[c]
}

// Body returns the recorded live body or nil.
func (e *Engine) Body(b physics.BodyID) *Body {
	return e.bodies[b]
}

// Joint returns the recorded live joint or nil.
func (e *Engine) Joint(j physics.JointID) *Joint {
	return e.joints[j]
}

// BodyCount returns the number of live bodies.
func (e *Engine) BodyCount() int {
	return len(e.bodies)
}

// JointCount returns the number of live joints.
func (e *Engine) JointCount() int {
	return len(e.joints)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	return e.closed
}

func (e *Engine) CreateCollision(shape physics.Shape, size math.Vec3) (physics.CollisionID, error) {
	switch shape {
	case physics.ShapeSphere, physics.ShapeBox, physics.ShapeCylinder:
	default:
		return 0, fmt.Errorf("%w: %v", physics.ErrUnknownShape, shape)
	}
	if err := physics.ValidateSize(shape, size); err != nil {
		return 0, err
	}
	id := physics.CollisionID(e.handle())
	e.collisions[id] = &Collision{Shape: shape, Size: size}
	return id, nil
}

func (e *Engine) ReleaseCollision(c physics.CollisionID) {
	if col, ok := e.collisions[c]; ok {
		col.Released = true
	}
}

func (e *Engine) InertialMatrix(c physics.CollisionID) (inertia, origin math.Vec3) {
	col, ok := e.collisions[c]
	if !ok {
		return math.Vec3{}, math.Vec3{}
	}
	return physics.UnitInertia(col.Shape, col.Size), math.Vec3{}
}

func (e *Engine) CreateBody(c physics.CollisionID, matrix math.Mat4) (physics.BodyID, error) {
	if _, ok := e.collisions[c]; !ok {
		return 0, fmt.Errorf("%w: %d", physics.ErrUnknownCollision, c)
	}
	id := physics.BodyID(e.handle())
	e.bodies[id] = &Body{Collision: c, Matrix: matrix}
	return id, nil
}

func (e *Engine) DestroyBody(b physics.BodyID) {
	if _, ok := e.bodies[b]; !ok {
		return
	}
	delete(e.bodies, b)
	e.DestroyedBodies = append(e.DestroyedBodies, b)
	e.Releases = append(e.Releases, fmt.Sprintf("body %d", b))
}

func (e *Engine) SetBodyMatrix(b physics.BodyID, matrix math.Mat4) {
	if body, ok := e.bodies[b]; ok {
		body.Matrix = matrix
	}
}

func (e *Engine) BodyMatrix(b physics.BodyID) math.Mat4 {
	if body, ok := e.bodies[b]; ok {
		return body.Matrix
	}
	return math.Identity()
}

func (e *Engine) SetMassMatrix(b physics.BodyID, mass, ixx, iyy, izz float32) {
	if body, ok := e.bodies[b]; ok {
		body.Mass = mass
		body.Inertia = math.Vec3{X: ixx, Y: iyy, Z: izz}
	}
}

func (e *Engine) MassMatrix(b physics.BodyID) (mass, ixx, iyy, izz float32) {
	body, ok := e.bodies[b]
	if !ok {
		return 0, 0, 0, 0
	}
	return body.Mass, body.Inertia.X, body.Inertia.Y, body.Inertia.Z
}

func (e *Engine) SetCentreOfMass(b physics.BodyID, origin math.Vec3) {
	if body, ok := e.bodies[b]; ok {
		body.Origin = origin
	}
}

func (e *Engine) SetForce(b physics.BodyID, force math.Vec3) {
	if body, ok := e.bodies[b]; ok {
		body.Force = force
	}
}

func (e *Engine) SetTransformCallback(b physics.BodyID, fn physics.TransformFunc) {
	if body, ok := e.bodies[b]; ok {
		body.transform = fn
	}
}

func (e *Engine) SetForceAndTorqueCallback(b physics.BodyID, fn physics.ForceAndTorqueFunc) {
	if body, ok := e.bodies[b]; ok {
		body.force = fn
	}
}

func (e *Engine) SetFreezeState(b physics.BodyID, state physics.FreezeState) {
	if body, ok := e.bodies[b]; ok {
		body.Freeze = state
	}
}

func (e *Engine) FreezeState(b physics.BodyID) physics.FreezeState {
	if body, ok := e.bodies[b]; ok {
		return body.Freeze
	}
	return physics.Active
}

func (e *Engine) CreateHinge(frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	return e.createJoint(KindHinge, frame, child, parent)
}

func (e *Engine) CreateBallAndSocket(frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	return e.createJoint(KindBallAndSocket, frame, child, parent)
}

func (e *Engine) createJoint(kind JointKind, frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	if _, ok := e.bodies[child]; !ok {
		return 0, fmt.Errorf("%w: child %d", physics.ErrUnknownBody, child)
	}
	if parent != physics.NoBody {
		if _, ok := e.bodies[parent]; !ok {
			return 0, fmt.Errorf("%w: parent %d", physics.ErrUnknownBody, parent)
		}
	}
	id := physics.JointID(e.handle())
	e.joints[id] = &Joint{Kind: kind, Frame: frame, Child: child, Parent: parent}
	return id, nil
}

func (e *Engine) SetConeLimits(j physics.JointID, pin math.Vec3, maxCone, maxTwist float32) {
	if joint, ok := e.joints[j]; ok {
		joint.Pin = pin
		joint.MaxCone = maxCone
		joint.MaxTwist = maxTwist
		joint.Limited = true
	}
}

func (e *Engine) DestroyJoint(j physics.JointID) {
	if _, ok := e.joints[j]; !ok {
		return
	}
	delete(e.joints, j)
	e.DestroyedJoints = append(e.DestroyedJoints, j)
	e.Releases = append(e.Releases, fmt.Sprintf("joint %d", j))
}

// ConvexCast rests b's bounds on the highest overlapping body top below
// matrix, or on Ground when nothing overlaps in XZ.
func (e *Engine) ConvexCast(b physics.BodyID, matrix math.Mat4) (float32, bool) {
	body, ok := e.bodies[b]
	if !ok {
		return 0, false
	}
	half := e.halfExtents(body)
	pos := matrix.Position()

	rest := e.Ground
	for id, other := range e.bodies {
		if id == b {
			continue
		}
		oh := e.halfExtents(other)
		op := other.Matrix.Position()
		if abs(pos.X-op.X) >= half.X+oh.X || abs(pos.Z-op.Z) >= half.Z+oh.Z {
			continue
		}
		top := op.Y + oh.Y
		if top > rest && top <= pos.Y {
			rest = top
		}
	}
	return rest + half.Y, true
}

func (e *Engine) halfExtents(body *Body) math.Vec3 {
	col := e.collisions[body.Collision]
	if col == nil {
		return math.Vec3{}
	}
	return physics.HalfExtents(col.Shape, col.Size)
}

func (e *Engine) Gravity() float32 {
	return e.gravity
}

func (e *Engine) SetGravity(g float32) {
	e.gravity = g
}

// Step runs force callbacks, integrates every active dynamic body and then
// reports the new matrices through the transform callbacks. Bodies are
// visited in handle order.
func (e *Engine) Step(dt float32) {
	ids := make([]physics.BodyID, 0, len(e.bodies))
	for id := range e.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		body := e.bodies[id]
		if body == nil || body.Mass <= 0 || body.Freeze == physics.Frozen {
			continue
		}
		body.Force = math.Vec3{}
		if body.force != nil {
			body.force(id, dt)
		}
		body.Velocity = body.Velocity.Add(body.Force.Scale(dt / body.Mass))
		pos := body.Matrix.Position().Add(body.Velocity.Scale(dt))
		body.Matrix = body.Matrix.WithPosition(pos)
		if body.transform != nil {
			body.transform(id, body.Matrix)
		}
	}
}

func (e *Engine) Close() {
	e.closed = true
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
