package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Joint construction errors.
var (
	ErrNoChild       = errors.New("joint has no child")
	ErrSameEndpoints = errors.New("joint child and parent are the same object")
	ErrNotPhysical   = errors.New("joint endpoint is not a live rigid body")
	ErrUnknownJoint  = errors.New("unknown joint type")
)

// JointKind is the kind of a joint.
type JointKind int

const (
	KindHinge JointKind = iota
	KindBallAndSocket
	KindBallAndSocketLimited
)

var jointTags = [...]string{
	KindHinge:                "hinge",
	KindBallAndSocket:        "ballandsocket",
	KindBallAndSocketLimited: "ballandsocketlimited",
}

// String returns the document tag of k.
func (k JointKind) String() string {
	if k < 0 || int(k) >= len(jointTags) {
		return fmt.Sprintf("JointKind(%d)", int(k))
	}
	return jointTags[k]
}

// ParseJointKind maps a document tag to its JointKind.
func ParseJointKind(tag string) (JointKind, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for k, name := range jointTags {
		if name == tag {
			return JointKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownJoint, tag)
}

// Joint is a constraint between a child object and a parent object or the
// static world. Implementations are *Hinge, *BallAndSocket and
// *BallAndSocketLimited.
type Joint interface {
	Kind() JointKind
	Child() Object
	// Parent returns nil when the child is anchored to the static world.
	Parent() Object
	// Pivot and PinDir are in world space. A joint between two bodies keeps
	// them fixed in the child's frame, so they follow the child as it moves.
	Pivot() math.Vec3
	PinDir() math.Vec3
	Handle() physics.JointID
	Destroy()

	base() *jointBase
}

type jointBase struct {
	pivot     math.Vec3
	pin       math.Vec3
	anchor    math.Vec3 // pivot in the child's frame
	anchorPin math.Vec3
	child     Object
	parent    Object
	engine    physics.Engine
	handle    physics.JointID
	destroyed bool
}

func (j *jointBase) Child() Object           { return j.child }
func (j *jointBase) Parent() Object          { return j.parent }
func (j *jointBase) Handle() physics.JointID { return j.handle }
func (j *jointBase) base() *jointBase        { return j }

func (j *jointBase) Pivot() math.Vec3 {
	if j.parent == nil {
		return j.pivot
	}
	return j.child.Matrix().TransformVec3(j.anchor)
}

func (j *jointBase) PinDir() math.Vec3 {
	if j.parent == nil {
		return j.pin
	}
	return j.child.Matrix().TransformDir(j.anchorPin)
}

// Destroy releases the engine constraint. It is safe to call more than once.
func (j *jointBase) Destroy() {
	if j.destroyed {
		return
	}
	j.destroyed = true
	j.engine.DestroyJoint(j.handle)
}

// move carries the pivot and pin along with a compound transform change.
func (j *jointBase) move(delta math.Mat4) {
	j.pivot = delta.TransformVec3(j.pivot)
	j.pin = delta.TransformDir(j.pin)
}

// reanchor replaces the engine constraint of a joint held by the static world
// with one at the current pivot. The old constraint is kept when the new one
// cannot be created.
func reanchor(j Joint) error {
	b := j.base()
	if b.destroyed || b.parent != nil {
		return nil
	}
	cb, ok := physicalBody(b.child)
	if !ok {
		return fmt.Errorf("%w: child %s", ErrNotPhysical, b.child.Type())
	}

	frame := physics.PinAndPivotFrame(b.pivot, b.pin)
	var handle physics.JointID
	var err error
	if j.Kind() == KindHinge {
		handle, err = b.engine.CreateHinge(frame, cb.Body(), physics.NoBody)
	} else {
		handle, err = b.engine.CreateBallAndSocket(frame, cb.Body(), physics.NoBody)
	}
	if err != nil {
		return fmt.Errorf("reanchor %s: %w", j.Kind(), err)
	}
	if limited, ok := j.(*BallAndSocketLimited); ok {
		b.engine.SetConeLimits(handle, b.pin, limited.MaxConeAngle, limited.MaxTwistAngle)
	}
	b.engine.DestroyJoint(b.handle)
	b.handle = handle
	return nil
}

// references reports whether o is or contains one of the joint's endpoints.
func (j *jointBase) references(o Object) bool {
	if o.Contains(j.child) {
		return true
	}
	return j.parent != nil && o.Contains(j.parent)
}

func physicalBody(o Object) (*RigidBody, bool) {
	rb, ok := o.(*RigidBody)
	if !ok || rb == nil || !rb.Live() {
		return nil, false
	}
	return rb, true
}

// prepare checks the endpoints and returns the engine frame and handles.
func prepare(pivot, pin math.Vec3, child, parent Object) (jointBase, math.Mat4, physics.BodyID, physics.BodyID, error) {
	if child == nil {
		return jointBase{}, math.Mat4{}, 0, 0, ErrNoChild
	}
	if parent != nil && child == parent {
		return jointBase{}, math.Mat4{}, 0, 0, ErrSameEndpoints
	}
	cb, ok := physicalBody(child)
	if !ok {
		return jointBase{}, math.Mat4{}, 0, 0, fmt.Errorf("%w: child %s", ErrNotPhysical, child.Type())
	}
	parentBody := physics.NoBody
	if parent != nil {
		pb, ok := physicalBody(parent)
		if !ok {
			return jointBase{}, math.Mat4{}, 0, 0, fmt.Errorf("%w: parent %s", ErrNotPhysical, parent.Type())
		}
		parentBody = pb.Body()
	}

	inv := child.Matrix().Inverse()
	base := jointBase{
		pivot:     pivot,
		pin:       pin,
		anchor:    inv.TransformVec3(pivot),
		anchorPin: inv.TransformDir(pin),
		child:     child,
		parent:    parent,
		engine:    cb.engine,
	}
	return base, physics.PinAndPivotFrame(pivot, pin), cb.Body(), parentBody, nil
}

// Hinge allows one rotational degree of freedom about the pin through the pivot.
type Hinge struct {
	jointBase
}

// NewHinge creates a hinge from world-space pivot and pin. A nil parent
// anchors the child to the static world.
func NewHinge(pivot, pin math.Vec3, child, parent Object) (*Hinge, error) {
	base, frame, cb, pb, err := prepare(pivot, pin, child, parent)
	if err != nil {
		return nil, err
	}
	base.handle, err = base.engine.CreateHinge(frame, cb, pb)
	if err != nil {
		return nil, fmt.Errorf("create hinge: %w", err)
	}
	return &Hinge{jointBase: base}, nil
}

func (*Hinge) Kind() JointKind { return KindHinge }

// BallAndSocket allows three rotational degrees of freedom about the pivot.
type BallAndSocket struct {
	jointBase
}

// NewBallAndSocket creates a ball and socket from world-space pivot and pin.
func NewBallAndSocket(pivot, pin math.Vec3, child, parent Object) (*BallAndSocket, error) {
	base, err := newBallAndSocket(pivot, pin, child, parent)
	if err != nil {
		return nil, err
	}
	return &BallAndSocket{jointBase: base}, nil
}

func newBallAndSocket(pivot, pin math.Vec3, child, parent Object) (jointBase, error) {
	base, frame, cb, pb, err := prepare(pivot, pin, child, parent)
	if err != nil {
		return jointBase{}, err
	}
	base.handle, err = base.engine.CreateBallAndSocket(frame, cb, pb)
	if err != nil {
		return jointBase{}, fmt.Errorf("create ball and socket: %w", err)
	}
	return base, nil
}

func (*BallAndSocket) Kind() JointKind { return KindBallAndSocket }

// BallAndSocketLimited is a ball and socket whose swing away from the pin is
// bounded by MaxConeAngle and whose twist about it by MaxTwistAngle, both in
// radians.
type BallAndSocketLimited struct {
	jointBase
	MaxConeAngle  float32
	MaxTwistAngle float32
}

// NewBallAndSocketLimited creates a limited ball and socket from world-space
// pivot and pin.
func NewBallAndSocketLimited(pivot, pin math.Vec3, child, parent Object, maxCone, maxTwist float32) (*BallAndSocketLimited, error) {
	base, err := newBallAndSocket(pivot, pin, child, parent)
	if err != nil {
		return nil, err
	}
	base.engine.SetConeLimits(base.handle, pin, maxCone, maxTwist)
	return &BallAndSocketLimited{
		jointBase:     base,
		MaxConeAngle:  maxCone,
		MaxTwistAngle: maxTwist,
	}, nil
}

func (*BallAndSocketLimited) Kind() JointKind { return KindBallAndSocketLimited }

// jointSpec is the kind-independent description of a joint, used to rebuild
// joints from documents.
type jointSpec struct {
	kind     JointKind
	pivot    math.Vec3
	pin      math.Vec3
	maxCone  float32
	maxTwist float32
}

func (s jointSpec) build(child, parent Object) (Joint, error) {
	switch s.kind {
	case KindHinge:
		j, err := NewHinge(s.pivot, s.pin, child, parent)
		if err != nil {
			return nil, err
		}
		return j, nil
	case KindBallAndSocket:
		j, err := NewBallAndSocket(s.pivot, s.pin, child, parent)
		if err != nil {
			return nil, err
		}
		return j, nil
	case KindBallAndSocketLimited:
		j, err := NewBallAndSocketLimited(s.pivot, s.pin, child, parent, s.maxCone, s.maxTwist)
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownJoint, s.kind)
}
