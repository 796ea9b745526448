package scene

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// ErrNotPrimitive is returned when a rigid body is requested for a type that
// has no collision shape.
var ErrNotPrimitive = errors.New("type is not a primitive")

// RigidBody is a primitive object backed by one engine body. The engine
// writes its world matrix back through the transform callback and pulls
// gravity through the force callback.
type RigidBody struct {
	id     int
	typ    Type
	matrix math.Mat4
	size   math.Vec3
	mass   float32
	freeze physics.FreezeState

	engine    physics.Engine
	body      physics.BodyID
	collision physics.CollisionID
	destroyed bool

	mesh meshRange
}

// NewObject creates an object of type t with registry defaults. A Compound
// type yields an empty compound.
func NewObject(eng physics.Engine, t Type, matrix math.Mat4) (Object, error) {
	if t == CompoundType {
		return NewCompound(eng, matrix), nil
	}
	info := TypeInfo(t)
	rb, err := NewRigidBody(eng, t, matrix, info.Size, info.Mass)
	if err != nil {
		return nil, err
	}
	return rb, nil
}

// NewRigidBody creates the collision and body for a primitive. A zero mass
// leaves the body static.
func NewRigidBody(eng physics.Engine, t Type, matrix math.Mat4, size math.Vec3, mass float32) (*RigidBody, error) {
	if !t.Primitive() {
		return nil, fmt.Errorf("%w: %s", ErrNotPrimitive, t)
	}
	info := TypeInfo(t)

	collision, err := eng.CreateCollision(info.Shape, size)
	if err != nil {
		return nil, fmt.Errorf("create %s collision: %w", t, err)
	}
	body, err := eng.CreateBody(collision, matrix)
	if err != nil {
		eng.ReleaseCollision(collision)
		return nil, fmt.Errorf("create %s body: %w", t, err)
	}

	rb := &RigidBody{
		id:        -1,
		typ:       t,
		matrix:    matrix,
		size:      size,
		mass:      mass,
		freeze:    info.Freeze,
		engine:    eng,
		body:      body,
		collision: collision,
	}

	inertia, origin := eng.InertialMatrix(collision)
	if mass != 0 {
		eng.SetMassMatrix(body, mass, mass*inertia.X, mass*inertia.Y, mass*inertia.Z)
	}
	eng.SetCentreOfMass(body, origin)
	eng.SetForceAndTorqueCallback(body, rb.applyForceAndTorque)
	eng.SetTransformCallback(body, rb.setTransform)
	eng.SetFreezeState(body, rb.freeze)

	logger.Debug("rigid body created",
		zap.Stringer("type", t),
		zap.Uint32("body", uint32(body)),
		zap.Float32("mass", mass))
	return rb, nil
}

func (rb *RigidBody) setTransform(_ physics.BodyID, m math.Mat4) {
	if rb.destroyed {
		return
	}
	rb.matrix = m
}

func (rb *RigidBody) applyForceAndTorque(b physics.BodyID, _ float32) {
	if rb.destroyed {
		return
	}
	mass, _, _, _ := rb.engine.MassMatrix(b)
	rb.engine.SetForce(b, math.Vec3{Y: mass * rb.engine.Gravity()})
}

func (rb *RigidBody) ID() int           { return rb.id }
func (rb *RigidBody) setID(id int)      { rb.id = id }
func (rb *RigidBody) Type() Type        { return rb.typ }
func (rb *RigidBody) Matrix() math.Mat4 { return rb.matrix }

// Size returns the full extents the collision was built with.
func (rb *RigidBody) Size() math.Vec3 { return rb.size }

// Mass returns the mass the body was created with; zero means static.
func (rb *RigidBody) Mass() float32 { return rb.mass }

// Body returns the engine handle, or physics.NoBody once destroyed.
func (rb *RigidBody) Body() physics.BodyID {
	if rb.destroyed {
		return physics.NoBody
	}
	return rb.body
}

// Live reports whether the body still holds an engine handle.
func (rb *RigidBody) Live() bool {
	return !rb.destroyed
}

func (rb *RigidBody) SetMatrix(m math.Mat4) {
	rb.matrix = m
	if !rb.destroyed {
		rb.engine.SetBodyMatrix(rb.body, m)
	}
}

func (rb *RigidBody) FreezeState() physics.FreezeState {
	return rb.freeze
}

// SetFreezeState stores s and forwards it to the engine. FreezeMixed is not
// a storable state and is ignored.
func (rb *RigidBody) SetFreezeState(s physics.FreezeState) {
	if !s.Valid() {
		return
	}
	rb.freeze = s
	if !rb.destroyed {
		rb.engine.SetFreezeState(rb.body, s)
	}
}

func (rb *RigidBody) ContainsBody(b physics.BodyID) bool {
	return !rb.destroyed && b != physics.NoBody && rb.body == b
}

func (rb *RigidBody) Contains(o Object) bool {
	other, ok := o.(*RigidBody)
	return ok && other == rb
}

func (rb *RigidBody) ConvexCastPlacement(apply bool) float32 {
	pos := rb.matrix.Position()
	y := pos.Y
	if !rb.destroyed {
		if rest, ok := rb.engine.ConvexCast(rb.body, rb.matrix); ok {
			y = rest
		}
	}
	if apply {
		rb.SetMatrix(rb.matrix.WithPosition(pos.WithAxis('y', y)))
	}
	return y
}

func (rb *RigidBody) GenBuffers(vb *VertexBuffer) {
	if rb.mesh.in(vb) {
		return
	}
	rb.mesh = appendMesh(vb, TypeInfo(rb.typ).Shape, rb.size)
}

func (rb *RigidBody) Render(r Renderer) {
	if rb.mesh.count == 0 {
		return
	}
	r.Draw(DrawCall{
		Object: rb,
		Matrix: rb.matrix,
		First:  rb.mesh.first,
		Count:  rb.mesh.count,
		Color:  TypeInfo(rb.typ).Color,
	})
}

func (rb *RigidBody) Bounds() (min, max math.Vec3) {
	return boundsOf(rb.matrix, physics.HalfExtents(TypeInfo(rb.typ).Shape, rb.size))
}

// Destroy releases the body and its collision.
func (rb *RigidBody) Destroy() {
	if rb.destroyed {
		return
	}
	rb.destroyed = true
	rb.engine.DestroyBody(rb.body)
	rb.engine.ReleaseCollision(rb.collision)
}
