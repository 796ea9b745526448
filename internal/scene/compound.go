package scene

import (
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Compound is an object that owns an ordered list of child objects and the
// joints between them. Children keep world-space matrices; moving the
// compound moves them by the same delta.
type Compound struct {
	id     int
	matrix math.Mat4
	freeze physics.FreezeState
	nodes  []Object
	joints []Joint
	nextID int
	engine physics.Engine
	file   string

	destroyed bool
}

// NewCompound creates an empty, active compound at matrix.
func NewCompound(eng physics.Engine, matrix math.Mat4) *Compound {
	return &Compound{
		id:     -1,
		matrix: matrix,
		freeze: physics.Active,
		engine: eng,
	}
}

func (c *Compound) ID() int           { return c.id }
func (c *Compound) setID(id int)      { c.id = id }
func (c *Compound) Type() Type        { return CompoundType }
func (c *Compound) Matrix() math.Mat4 { return c.matrix }

// Engine returns the engine children of this compound are created in.
func (c *Compound) Engine() physics.Engine { return c.engine }

// File returns the scene document the compound was spawned from, if any.
func (c *Compound) File() string { return c.file }

// SetFile records the scene document the compound was spawned from.
func (c *Compound) SetFile(path string) { c.file = path }

// Len returns the number of direct children.
func (c *Compound) Len() int { return len(c.nodes) }

// Nodes returns the direct children in insertion order.
func (c *Compound) Nodes() []Object {
	return append([]Object(nil), c.nodes...)
}

// Joints returns the joints in insertion order.
func (c *Compound) Joints() []Joint {
	return append([]Joint(nil), c.joints...)
}

// Node returns the direct child with the given id.
func (c *Compound) Node(id int) (Object, bool) {
	for _, n := range c.nodes {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}

// Walk visits every descendant in pre-order. depth is 0 for direct children.
func (c *Compound) Walk(fn func(o Object, depth int)) {
	c.walk(fn, 0)
}

func (c *Compound) walk(fn func(o Object, depth int), depth int) {
	for _, n := range c.nodes {
		fn(n, depth)
		if sub, ok := n.(*Compound); ok {
			sub.walk(fn, depth+1)
		}
	}
}

// Add takes ownership of obj. The object gets the next sibling id, inherits
// the compound's freeze state and has its matrix composed with the
// compound's, so a matrix relative to the compound becomes world space.
func (c *Compound) Add(obj Object) {
	obj.setID(c.nextID)
	c.nextID++
	obj.SetFreezeState(c.freeze)
	obj.SetMatrix(math.Compose(obj.Matrix(), c.matrix))
	c.nodes = append(c.nodes, obj)
}

// Remove destroys obj and every joint of this compound that references it or
// one of its descendants. It returns false when obj is not a direct child.
func (c *Compound) Remove(obj Object) bool {
	idx := -1
	for i, n := range c.nodes {
		if n == obj {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	kept := c.joints[:0]
	for _, j := range c.joints {
		if j.base().references(obj) {
			j.Destroy()
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(c.joints); i++ {
		c.joints[i] = nil
	}
	c.joints = kept

	c.nodes = append(c.nodes[:idx], c.nodes[idx+1:]...)
	obj.Destroy()
	return true
}

// SetMatrix moves every child by the change from the old matrix to m and
// carries the joint pivots and pins along. Joints held by the static world
// get a new engine constraint at the moved pivot.
func (c *Compound) SetMatrix(m math.Mat4) {
	delta := math.Compose(c.matrix.Inverse(), m)
	for _, n := range c.nodes {
		n.SetMatrix(math.Compose(n.Matrix(), delta))
	}
	for _, j := range c.joints {
		j.base().move(delta)
		if err := reanchor(j); err != nil {
			logger.Warn("world joint keeps its old anchor",
				zap.Stringer("kind", j.Kind()), zap.Error(err))
		}
	}
	c.matrix = m
}

// FreezeState returns the stored freeze state.
func (c *Compound) FreezeState() physics.FreezeState {
	return c.freeze
}

// SetFreezeState stores s and forwards it to every child. FreezeMixed is
// ignored.
func (c *Compound) SetFreezeState(s physics.FreezeState) {
	if !s.Valid() {
		return
	}
	c.freeze = s
	for _, n := range c.nodes {
		n.SetFreezeState(s)
	}
}

// AggregateFreezeState returns the state shared by every child, or
// physics.FreezeMixed when they disagree. Nested compounds are aggregated
// recursively. An empty compound reports its stored state.
func (c *Compound) AggregateFreezeState() physics.FreezeState {
	if len(c.nodes) == 0 {
		return c.freeze
	}
	state := aggregate(c.nodes[0])
	for _, n := range c.nodes[1:] {
		if aggregate(n) != state {
			return physics.FreezeMixed
		}
	}
	return state
}

func aggregate(o Object) physics.FreezeState {
	if sub, ok := o.(*Compound); ok {
		return sub.AggregateFreezeState()
	}
	return o.FreezeState()
}

func (c *Compound) ContainsBody(b physics.BodyID) bool {
	for _, n := range c.nodes {
		if n.ContainsBody(b) {
			return true
		}
	}
	return false
}

func (c *Compound) Contains(o Object) bool {
	if other, ok := o.(*Compound); ok && other == c {
		return true
	}
	for _, n := range c.nodes {
		if n.Contains(o) {
			return true
		}
	}
	return false
}

// ConvexCastPlacement lifts the compound to just above the highest resting
// height of its children.
func (c *Compound) ConvexCastPlacement(apply bool) float32 {
	maximum := noSurface
	for _, n := range c.nodes {
		if y := n.ConvexCastPlacement(false); y > maximum {
			maximum = y
		}
	}
	pos := c.matrix.Position()
	m := c.matrix.WithPosition(pos.WithAxis('y', maximum+placementEpsilon))
	if apply {
		c.SetMatrix(m)
	}
	return m.Position().Y
}

func (c *Compound) GenBuffers(vb *VertexBuffer) {
	for _, n := range c.nodes {
		n.GenBuffers(vb)
	}
}

func (c *Compound) Render(r Renderer) {
	for _, n := range c.nodes {
		n.Render(r)
	}
}

func (c *Compound) Bounds() (min, max math.Vec3) {
	if len(c.nodes) == 0 {
		p := c.matrix.Position()
		return p, p
	}
	min, max = c.nodes[0].Bounds()
	for _, n := range c.nodes[1:] {
		lo, hi := n.Bounds()
		min = math.Vec3{X: math32.Min(min.X, lo.X), Y: math32.Min(min.Y, lo.Y), Z: math32.Min(min.Z, lo.Z)}
		max = math.Vec3{X: math32.Max(max.X, hi.X), Y: math32.Max(max.Y, hi.Y), Z: math32.Max(max.Z, hi.Z)}
	}
	return min, max
}

// Destroy tears down every joint, then every child, recursively.
func (c *Compound) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	for _, j := range c.joints {
		j.Destroy()
	}
	for _, n := range c.nodes {
		n.Destroy()
	}
	logger.Debug("compound destroyed",
		zap.Int("nodes", len(c.nodes)),
		zap.Int("joints", len(c.joints)))
	c.joints = nil
	c.nodes = nil
}

// CreateHinge creates a hinge from a pivot and pin in the compound's frame
// and registers it.
func (c *Compound) CreateHinge(pivot, pinDir math.Vec3, child, parent Object) (*Hinge, error) {
	j, err := c.createJoint(jointSpec{kind: KindHinge, pivot: pivot, pin: pinDir}, child, parent)
	if err != nil {
		return nil, err
	}
	return j.(*Hinge), nil
}

// CreateBallAndSocket creates a ball and socket from a pivot and pin in the
// compound's frame and registers it.
func (c *Compound) CreateBallAndSocket(pivot, pinDir math.Vec3, child, parent Object) (*BallAndSocket, error) {
	j, err := c.createJoint(jointSpec{kind: KindBallAndSocket, pivot: pivot, pin: pinDir}, child, parent)
	if err != nil {
		return nil, err
	}
	return j.(*BallAndSocket), nil
}

// CreateBallAndSocketLimited creates a limited ball and socket from a pivot
// and pin in the compound's frame and registers it.
func (c *Compound) CreateBallAndSocketLimited(pivot, pinDir math.Vec3, child, parent Object, maxCone, maxTwist float32) (*BallAndSocketLimited, error) {
	s := jointSpec{
		kind:     KindBallAndSocketLimited,
		pivot:    pivot,
		pin:      pinDir,
		maxCone:  maxCone,
		maxTwist: maxTwist,
	}
	j, err := c.createJoint(s, child, parent)
	if err != nil {
		return nil, err
	}
	return j.(*BallAndSocketLimited), nil
}

// createJoint converts s from the compound's frame to world space, builds
// the joint and registers it. Nothing is registered on error.
func (c *Compound) createJoint(s jointSpec, child, parent Object) (Joint, error) {
	s.pivot = c.matrix.TransformVec3(s.pivot)
	s.pin = c.matrix.TransformDir(s.pin)
	j, err := s.build(child, parent)
	if err != nil {
		return nil, err
	}
	c.joints = append(c.joints, j)
	return j, nil
}

// localJoint returns the pivot and pin of j in the compound's frame.
func (c *Compound) localJoint(j Joint) (pivot, pin math.Vec3) {
	inv := c.matrix.Inverse()
	return inv.TransformVec3(j.Pivot()), inv.TransformDir(j.PinDir())
}
