// Package cpengine implements physics.Engine on top of chipmunk
// (github.com/jakecoffman/cp/v2).
//
// Chipmunk is planar, so the 3D surface is projected onto the XY plane:
// spheres become circles, every other shape becomes an X by Y box, rotation
// about Z is the body angle and Z is carried through unchanged. Any rotation
// that is not about Z is kept as a residual and re-applied when the body
// matrix is read back.
package cpengine

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// castDepth is how far below its start a convex cast searches.
const castDepth = 1000

// Options configures the chipmunk space.
type Options struct {
	Gravity            float32
	Iterations         int
	SleepTimeThreshold float32
}

// DefaultOptions returns Earth gravity with chipmunk's default solver settings.
func DefaultOptions() Options {
	return Options{
		Gravity:            -9.81,
		Iterations:         10,
		SleepTimeThreshold: 0.5,
	}
}

type collision struct {
	shape physics.Shape
	size  math.Vec3
}

type body struct {
	id       physics.BodyID
	cpBody   *cp.Body
	cpShape  *cp.Shape
	shape    physics.Shape
	size     math.Vec3
	residual math.Mat4
	z        float32
	mass     float32
	inertia  math.Vec3
	frozen   bool

	transform physics.TransformFunc
	force     physics.ForceAndTorqueFunc
}

type joint struct {
	a, b   *cp.Body
	pivot  *cp.Constraint
	limit  *cp.Constraint
	child  physics.BodyID
	parent physics.BodyID
}

// Engine is a chipmunk-backed physics.Engine.
type Engine struct {
	space      *cp.Space
	gravity    float32
	sleeping   bool
	next       uint32
	collisions map[physics.CollisionID]collision
	bodies     map[physics.BodyID]*body
	joints     map[physics.JointID]*joint
	log        *zap.Logger
}

var _ physics.Engine = (*Engine)(nil)

// New creates a chipmunk space configured by opts.
func New(opts Options) *Engine {
	space := cp.NewSpace()
	// Gravity is applied per body by the force callback.
	space.SetGravity(cp.Vector{})
	if opts.Iterations > 0 {
		space.Iterations = uint(opts.Iterations)
	}
	sleeping := opts.SleepTimeThreshold > 0
	if sleeping {
		space.SleepTimeThreshold = float64(opts.SleepTimeThreshold)
	}

	e := &Engine{
		space:      space,
		gravity:    opts.Gravity,
		sleeping:   sleeping,
		collisions: make(map[physics.CollisionID]collision),
		bodies:     make(map[physics.BodyID]*body),
		joints:     make(map[physics.JointID]*joint),
		log:        logger.Named("physics"),
	}
	e.log.Debug("chipmunk space created",
		zap.Float32("gravity", opts.Gravity),
		zap.Int("iterations", opts.Iterations),
		zap.Bool("sleeping", sleeping))
	return e
}

func (e *Engine) handle() uint32 {
	e.next++
	return e.next
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
	e.collisions[id] = collision{shape: shape, size: size}
	return id, nil
}

func (e *Engine) ReleaseCollision(c physics.CollisionID) {
	delete(e.collisions, c)
}

func (e *Engine) InertialMatrix(c physics.CollisionID) (inertia, origin math.Vec3) {
	col, ok := e.collisions[c]
	if !ok {
		return math.Vec3{}, math.Vec3{}
	}
	return physics.UnitInertia(col.shape, col.size), math.Vec3{}
}

// CreateBody creates a kinematic body that stays in place until it is given
// a positive mass.
func (e *Engine) CreateBody(c physics.CollisionID, matrix math.Mat4) (physics.BodyID, error) {
	col, ok := e.collisions[c]
	if !ok {
		return 0, fmt.Errorf("%w: %d", physics.ErrUnknownCollision, c)
	}

	id := physics.BodyID(e.handle())
	b := &body{
		id:    id,
		shape: col.shape,
		size:  col.size,
	}
	b.cpBody = e.space.AddBody(cp.NewKinematicBody())
	b.cpBody.UserData = id

	var shape *cp.Shape
	if col.shape == physics.ShapeSphere {
		shape = cp.NewCircle(b.cpBody, float64(col.size.X/2), cp.Vector{})
	} else {
		shape = cp.NewBox(b.cpBody, float64(col.size.X), float64(col.size.Y), 0)
	}
	shape.SetFriction(0.7)
	shape.SetFilter(cp.NewShapeFilter(uint(id), cp.ALL_CATEGORIES, cp.ALL_CATEGORIES))
	b.cpShape = e.space.AddShape(shape)

	b.cpBody.SetVelocityUpdateFunc(func(cb *cp.Body, _ cp.Vector, damping, dt float64) {
		if b.frozen {
			cb.SetVelocity(0, 0)
			cb.SetAngularVelocity(0)
			return
		}
		if b.force != nil {
			b.force(id, float32(dt))
		}
		cp.BodyUpdateVelocity(cb, cp.Vector{}, damping, dt)
	})
	b.cpBody.SetPositionUpdateFunc(func(cb *cp.Body, dt float64) {
		if b.frozen {
			return
		}
		cp.BodyUpdatePosition(cb, dt)
	})

	e.bodies[id] = b
	e.place(b, matrix)
	return id, nil
}

func (e *Engine) DestroyBody(id physics.BodyID) {
	b, ok := e.bodies[id]
	if !ok {
		return
	}
	for jid, j := range e.joints {
		if j.child == id || j.parent == id {
			e.log.Debug("releasing joint of destroyed body",
				zap.Uint32("joint", uint32(jid)), zap.Uint32("body", uint32(id)))
			e.DestroyJoint(jid)
		}
	}
	e.space.RemoveShape(b.cpShape)
	e.space.RemoveBody(b.cpBody)
	delete(e.bodies, id)
}

// place moves b to matrix, splitting the rotation into a Z angle and a residual.
func (e *Engine) place(b *body, matrix math.Mat4) {
	angle := math32.Atan2(matrix[1], matrix[0])
	rotation := matrix.WithPosition(math.Vec3{})
	b.residual = math.Compose(rotation, math.RotateZ(-angle))
	pos := matrix.Position()
	b.z = pos.Z

	b.cpBody.SetPosition(cp.Vector{X: float64(pos.X), Y: float64(pos.Y)})
	b.cpBody.SetAngle(float64(angle))
	if b.cpBody.GetType() == cp.BODY_DYNAMIC {
		b.cpBody.SetVelocity(0, 0)
		b.cpBody.SetAngularVelocity(0)
	}
}

func (e *Engine) matrix(b *body) math.Mat4 {
	p := b.cpBody.Position()
	rotation := math.Compose(b.residual, math.RotateZ(float32(b.cpBody.Angle())))
	return rotation.WithPosition(math.Vec3{X: float32(p.X), Y: float32(p.Y), Z: b.z})
}

func (e *Engine) SetBodyMatrix(id physics.BodyID, matrix math.Mat4) {
	if b, ok := e.bodies[id]; ok {
		e.place(b, matrix)
	}
}

func (e *Engine) BodyMatrix(id physics.BodyID) math.Mat4 {
	if b, ok := e.bodies[id]; ok {
		return e.matrix(b)
	}
	return math.Identity()
}

// SetMassMatrix makes the body dynamic for a positive mass and kinematic
// otherwise. Chipmunk only rotates about Z, so izz is the moment used.
func (e *Engine) SetMassMatrix(id physics.BodyID, mass, ixx, iyy, izz float32) {
	b, ok := e.bodies[id]
	if !ok {
		return
	}
	b.mass = mass
	b.inertia = math.Vec3{X: ixx, Y: iyy, Z: izz}

	if mass <= 0 {
		b.cpBody.SetType(cp.BODY_KINEMATIC)
		return
	}
	b.cpBody.SetType(cp.BODY_DYNAMIC)
	b.cpBody.SetMass(float64(mass))
	moment := float64(izz)
	if moment <= 0 {
		if b.shape == physics.ShapeSphere {
			moment = cp.MomentForCircle(float64(mass), 0, float64(b.size.X/2), cp.Vector{})
		} else {
			moment = cp.MomentForBox(float64(mass), float64(b.size.X), float64(b.size.Y))
		}
	}
	b.cpBody.SetMoment(moment)
}

func (e *Engine) MassMatrix(id physics.BodyID) (mass, ixx, iyy, izz float32) {
	b, ok := e.bodies[id]
	if !ok {
		return 0, 0, 0, 0
	}
	return b.mass, b.inertia.X, b.inertia.Y, b.inertia.Z
}

func (e *Engine) SetCentreOfMass(id physics.BodyID, origin math.Vec3) {
	if b, ok := e.bodies[id]; ok {
		b.cpBody.SetCenterOfGravity(cp.Vector{X: float64(origin.X), Y: float64(origin.Y)})
	}
}

func (e *Engine) SetForce(id physics.BodyID, force math.Vec3) {
	if b, ok := e.bodies[id]; ok {
		b.cpBody.SetForce(cp.Vector{X: float64(force.X), Y: float64(force.Y)})
	}
}

func (e *Engine) SetTransformCallback(id physics.BodyID, fn physics.TransformFunc) {
	if b, ok := e.bodies[id]; ok {
		b.transform = fn
	}
}

func (e *Engine) SetForceAndTorqueCallback(id physics.BodyID, fn physics.ForceAndTorqueFunc) {
	if b, ok := e.bodies[id]; ok {
		b.force = fn
	}
}

func (e *Engine) SetFreezeState(id physics.BodyID, state physics.FreezeState) {
	b, ok := e.bodies[id]
	if !ok {
		return
	}
	b.frozen = state == physics.Frozen
	if b.cpBody.GetType() != cp.BODY_DYNAMIC {
		return
	}
	if !b.frozen {
		b.cpBody.Activate()
		return
	}
	b.cpBody.SetVelocity(0, 0)
	b.cpBody.SetAngularVelocity(0)
	if e.sleeping && !b.cpBody.IsSleeping() {
		b.cpBody.Sleep()
	}
}

func (e *Engine) FreezeState(id physics.BodyID) physics.FreezeState {
	if b, ok := e.bodies[id]; ok && b.frozen {
		return physics.Frozen
	}
	return physics.Active
}

func (e *Engine) CreateHinge(frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	return e.createPivot(frame, child, parent)
}

func (e *Engine) CreateBallAndSocket(frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	return e.createPivot(frame, child, parent)
}

// createPivot pins child to parent (or the static world) at the frame origin.
// In the plane a hinge about any pin and a ball and socket are both a pivot.
func (e *Engine) createPivot(frame math.Mat4, child, parent physics.BodyID) (physics.JointID, error) {
	cb, ok := e.bodies[child]
	if !ok {
		return 0, fmt.Errorf("%w: child %d", physics.ErrUnknownBody, child)
	}
	anchor := e.space.StaticBody
	if parent != physics.NoBody {
		pb, ok := e.bodies[parent]
		if !ok {
			return 0, fmt.Errorf("%w: parent %d", physics.ErrUnknownBody, parent)
		}
		anchor = pb.cpBody
	}

	pivot := frame.Position()
	c := e.space.AddConstraint(cp.NewPivotJoint(anchor, cb.cpBody, cp.Vector{X: float64(pivot.X), Y: float64(pivot.Y)}))

	id := physics.JointID(e.handle())
	e.joints[id] = &joint{a: anchor, b: cb.cpBody, pivot: c, child: child, parent: parent}
	return id, nil
}

// SetConeLimits bounds the relative angle to plus or minus maxTwist. The cone
// angle has no planar counterpart.
func (e *Engine) SetConeLimits(id physics.JointID, pin math.Vec3, maxCone, maxTwist float32) {
	j, ok := e.joints[id]
	if !ok {
		return
	}
	if j.limit != nil {
		e.space.RemoveConstraint(j.limit)
	}
	j.limit = e.space.AddConstraint(cp.NewRotaryLimitJoint(j.a, j.b, -float64(maxTwist), float64(maxTwist)))
}

func (e *Engine) DestroyJoint(id physics.JointID) {
	j, ok := e.joints[id]
	if !ok {
		return
	}
	if j.limit != nil {
		e.space.RemoveConstraint(j.limit)
	}
	e.space.RemoveConstraint(j.pivot)
	delete(e.joints, id)
}

// ConvexCast sweeps a circle as wide as the body straight down from matrix
// and rests the body's bounds on the first surface it touches.
func (e *Engine) ConvexCast(id physics.BodyID, matrix math.Mat4) (float32, bool) {
	b, ok := e.bodies[id]
	if !ok {
		return 0, false
	}
	half := physics.HalfExtents(b.shape, b.size)
	pos := matrix.Position()
	radius := float64(half.X)

	start := cp.Vector{X: float64(pos.X), Y: float64(pos.Y)}
	end := cp.Vector{X: start.X, Y: start.Y - castDepth}
	filter := cp.NewShapeFilter(uint(id), cp.ALL_CATEGORIES, cp.ALL_CATEGORIES)

	info := e.space.SegmentQueryFirst(start, end, radius, filter)
	if info.Shape == nil {
		return 0, false
	}
	centre := start.Y + info.Alpha*(end.Y-start.Y)
	surface := float32(centre - radius)
	return surface + half.Y, true
}

func (e *Engine) Gravity() float32 {
	return e.gravity
}

func (e *Engine) SetGravity(g float32) {
	e.gravity = g
}

// Step advances the space by dt and reports every awake dynamic body through
// its transform callback, in handle order.
func (e *Engine) Step(dt float32) {
	if dt <= 0 {
		return
	}
	e.space.Step(float64(dt))

	ids := make([]physics.BodyID, 0, len(e.bodies))
	for id, b := range e.bodies {
		if b.transform == nil || b.frozen || b.cpBody.GetType() != cp.BODY_DYNAMIC {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		b := e.bodies[id]
		b.transform(id, e.matrix(b))
	}
}

// Close releases every constraint and body still in the space.
func (e *Engine) Close() {
	for id := range e.joints {
		e.DestroyJoint(id)
	}
	for id := range e.bodies {
		e.DestroyBody(id)
	}
	e.collisions = make(map[physics.CollisionID]collision)
	e.log.Debug("chipmunk space closed")
}
