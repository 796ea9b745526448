// Package simulation holds the sandbox state driven by the viewer: the root
// compound, the engine tick, the selection and the spin-box setters.
package simulation

import (
	"errors"
	"fmt"
	gomath "math"
	"os"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/engine/picking"
	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/pkg/math"
)

// Simulation errors.
var (
	ErrNoSelection = errors.New("no object selected")
	ErrUnknownAxis = errors.New("unknown axis")
)

// maxSubSteps bounds the fixed steps taken for one Update so a long frame
// cannot stall the loop.
const maxSubSteps = 5

// Options configures a Simulation.
type Options struct {
	// TimeStep is the fixed engine step in seconds.
	TimeStep float32
	// Floor adds a static floor whenever the scene is reset.
	Floor  bool
	Paused bool
}

// DefaultOptions returns a 60 Hz running simulation with a floor.
func DefaultOptions() Options {
	return Options{TimeStep: 1.0 / 60, Floor: true}
}

// Simulation owns the engine and the root compound of the scene.
type Simulation struct {
	opts   Options
	engine physics.Engine
	root   *scene.Compound
	file   string

	selected    scene.Object
	renderScale math.Vec3

	paused      bool
	accumulator float32

	frames  int
	elapsed float32
	fps     int

	buffers *scene.VertexBuffer
	dirty   bool

	log *zap.Logger
}

// New creates a simulation over eng with an empty scene. The simulation
// takes ownership of eng and closes it in Close.
func New(eng physics.Engine, opts Options) (*Simulation, error) {
	if opts.TimeStep <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %v", opts.TimeStep)
	}
	s := &Simulation{
		opts:        opts,
		engine:      eng,
		paused:      opts.Paused,
		renderScale: math.Vec3{X: 1, Y: 1, Z: 1},
		buffers:     &scene.VertexBuffer{},
		log:         logger.Named("simulation"),
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Engine returns the physics engine.
func (s *Simulation) Engine() physics.Engine { return s.engine }

// Root returns the root compound.
func (s *Simulation) Root() *scene.Compound { return s.root }

// File returns the path the scene was last loaded from or saved to.
func (s *Simulation) File() string { return s.file }

// Update advances the engine by dt in fixed steps and returns how many steps
// were taken. The frame counter runs even while paused.
func (s *Simulation) Update(dt float32) int {
	s.countFrame(dt)
	if s.paused || dt <= 0 {
		return 0
	}

	s.accumulator += dt
	steps := 0
	for s.accumulator >= s.opts.TimeStep && steps < maxSubSteps {
		s.engine.Step(s.opts.TimeStep)
		s.accumulator -= s.opts.TimeStep
		steps++
	}
	if steps == maxSubSteps {
		s.accumulator = 0
	}
	return steps
}

func (s *Simulation) countFrame(dt float32) {
	s.frames++
	s.elapsed += dt
	if s.elapsed < 1 {
		return
	}
	s.fps = s.frames
	s.log.Debug("fps", zap.Int("frames", s.frames), zap.Float32("elapsed", s.elapsed))
	s.frames = 0
	s.elapsed = 0
}

// FPS returns the frame count of the last full second.
func (s *Simulation) FPS() int { return s.fps }

// Paused reports whether stepping is suspended.
func (s *Simulation) Paused() bool { return s.paused }

// TogglePause flips the paused flag and returns the new value.
func (s *Simulation) TogglePause() bool {
	s.paused = !s.paused
	s.accumulator = 0
	s.log.Info("simulation paused", zap.Bool("paused", s.paused))
	return s.paused
}

// Selected returns the selected top-level object or nil.
func (s *Simulation) Selected() scene.Object { return s.selected }

// SelectedMatrix returns the world matrix of the selection.
func (s *Simulation) SelectedMatrix() (math.Mat4, bool) {
	if s.selected == nil {
		return math.Mat4{}, false
	}
	return s.selected.Matrix(), true
}

// Select makes o the selection. A nil o clears it.
func (s *Simulation) Select(o scene.Object) {
	s.selected = o
	if o == nil {
		s.log.Debug("selection cleared")
		return
	}
	s.log.Info("object selected",
		zap.Stringer("type", o.Type()),
		zap.Int("id", o.ID()),
		zap.Stringer("matrix", o.Matrix()))
}

// SelectBody selects the top-level object wrapping engine body b. It returns
// nil and clears the selection when no object does.
func (s *Simulation) SelectBody(b physics.BodyID) scene.Object {
	for _, n := range s.root.Nodes() {
		if n.ContainsBody(b) {
			s.Select(n)
			return n
		}
	}
	s.Select(nil)
	return nil
}

// SelectRay selects the nearest top-level object whose bounds the ray hits.
func (s *Simulation) SelectRay(r picking.Ray) scene.Object {
	var best scene.Object
	nearest := float32(gomath.MaxFloat32)
	for _, n := range s.root.Nodes() {
		lo, hi := n.Bounds()
		if t, ok := r.IntersectAABB(picking.NewAABB(lo, hi)); ok && t < nearest {
			best, nearest = n, t
		}
	}
	s.Select(best)
	return best
}

func checkAxis(axis byte) error {
	if _, ok := (math.Vec3{}).Axis(axis); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAxis, axis)
	}
	return nil
}

// SetSize sets the render scale along axis to value/10. It only changes how
// the scene is drawn; collisions keep their size.
func (s *Simulation) SetSize(axis byte, value int) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	s.renderScale = s.renderScale.WithAxis(axis, float32(value)/10)
	s.log.Debug("render scale", zap.Stringer("scale", s.renderScale))
	return nil
}

// RenderScale returns the scale applied to every draw call.
func (s *Simulation) RenderScale() math.Vec3 { return s.renderScale }

// SetPosition moves the selection so its position along axis is value/10.
func (s *Simulation) SetPosition(axis byte, value int) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if s.selected == nil {
		return ErrNoSelection
	}
	m := s.selected.Matrix()
	pos := m.Position().WithAxis(axis, float32(value)/10)
	s.selected.SetMatrix(m.WithPosition(pos))
	return nil
}

// SetRotation rotates the selection by degrees about its local axis.
func (s *Simulation) SetRotation(axis byte, degrees int) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if s.selected == nil {
		return ErrNoSelection
	}
	angle := float32(degrees) * math32.Pi / 180
	var r math.Mat4
	switch axis {
	case 'x':
		r = math.RotateX(angle)
	case 'y':
		r = math.RotateY(angle)
	default:
		r = math.RotateZ(angle)
	}
	s.selected.SetMatrix(s.selected.Matrix().RotateLocal(r))
	return nil
}

// ToggleFreezeSelected freezes an active selection and wakes a frozen or
// mixed one. It returns the new state.
func (s *Simulation) ToggleFreezeSelected() (physics.FreezeState, error) {
	if s.selected == nil {
		return physics.FreezeMixed, ErrNoSelection
	}
	state := s.selected.FreezeState()
	if c, ok := s.selected.(*scene.Compound); ok {
		state = c.AggregateFreezeState()
	}
	next := physics.Frozen
	if state != physics.Active {
		next = physics.Active
	}
	s.selected.SetFreezeState(next)
	s.log.Debug("freeze toggled", zap.Stringer("state", next))
	return next, nil
}

// DeleteSelected removes the selection from the scene.
func (s *Simulation) DeleteSelected() error {
	if s.selected == nil {
		return ErrNoSelection
	}
	o := s.selected
	s.selected = nil
	if !s.root.Remove(o) {
		return fmt.Errorf("selected %s is not in the scene", o.Type())
	}
	s.log.Info("object deleted", zap.Stringer("type", o.Type()))
	return nil
}

// Spawn creates an object from tpl at pos, drops it onto the geometry below
// and adds it to the scene. File templates load their contents from disk.
func (s *Simulation) Spawn(tpl scene.Template, pos math.Vec3) (scene.Object, error) {
	obj, err := s.build(tpl, pos)
	if err != nil {
		s.log.Warn("spawn failed", zap.String("template", tpl.Name), zap.Error(err))
		return nil, fmt.Errorf("spawn %s: %w", tpl.Name, err)
	}

	freeze := obj.FreezeState()
	s.root.Add(obj)
	if freeze != s.root.FreezeState() {
		obj.SetFreezeState(freeze)
	}
	y := obj.ConvexCastPlacement(true)
	obj.GenBuffers(s.buffers)
	s.dirty = true

	s.log.Info("object spawned",
		zap.String("template", tpl.Name),
		zap.Int("id", obj.ID()),
		zap.Float32("y", y))
	return obj, nil
}

func (s *Simulation) build(tpl scene.Template, pos math.Vec3) (scene.Object, error) {
	at := math.TranslateVec3(pos)
	if tpl.FromFile() {
		return s.loadTemplate(tpl.File, at)
	}
	if tpl.Type == scene.CompoundType {
		return scene.NewCompound(s.engine, at), nil
	}
	rb, err := scene.NewRigidBody(s.engine, tpl.Type, at, tpl.Size, tpl.Mass)
	if err != nil {
		return nil, err
	}
	rb.SetFreezeState(tpl.Freeze)
	return rb, nil
}

func (s *Simulation) loadTemplate(path string, at math.Mat4) (*scene.Compound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := scene.NewCompound(s.engine, at)
	report, err := scene.LoadInto(c, f)
	if err != nil {
		c.Destroy()
		return nil, err
	}
	c.SetFile(path)
	s.logReport(path, report)
	return c, nil
}

func (s *Simulation) logReport(path string, report *scene.LoadReport) {
	for _, sk := range report.Skipped {
		s.log.Warn("joint skipped",
			zap.String("file", path),
			zap.String("kind", sk.Kind),
			zap.Int("line", sk.Line),
			zap.Error(sk.Reason))
	}
}

// Save writes the scene to path.
func (s *Simulation) Save(path string) error {
	if err := scene.SaveFile(path, s.root); err != nil {
		return err
	}
	s.file = path
	s.log.Info("scene saved", zap.String("file", path), zap.Int("objects", s.ObjectCount()))
	return nil
}

// Load replaces the scene with the document at path. The current scene is
// kept when loading fails.
func (s *Simulation) Load(path string) (*scene.LoadReport, error) {
	root, report, err := scene.LoadFile(path, s.engine)
	if err != nil {
		return nil, err
	}
	s.replace(root)
	s.file = path
	s.logReport(path, report)
	s.log.Info("scene loaded",
		zap.String("file", path),
		zap.Int("objects", report.Objects),
		zap.Int("joints", report.Joints))
	return report, nil
}

// Reset replaces the scene with an empty one, plus the floor when enabled.
func (s *Simulation) Reset() error {
	root := scene.NewCompound(s.engine, math.Identity())
	if s.opts.Floor {
		tpl := scene.TemplateFor(scene.Floor)
		floor, err := scene.NewRigidBody(s.engine, scene.Floor,
			math.Translate(0, -tpl.Size.Y/2, 0), tpl.Size, tpl.Mass)
		if err != nil {
			root.Destroy()
			return fmt.Errorf("create floor: %w", err)
		}
		root.Add(floor)
		floor.SetFreezeState(tpl.Freeze)
	}
	s.replace(root)
	s.file = ""
	return nil
}

func (s *Simulation) replace(root *scene.Compound) {
	if s.root != nil {
		s.root.Destroy()
	}
	s.root = root
	s.selected = nil
	s.accumulator = 0
	s.buffers.Reset()
	root.GenBuffers(s.buffers)
	s.dirty = true
}

// ObjectCount returns the number of objects in the scene, nested ones
// included.
func (s *Simulation) ObjectCount() int {
	n := 0
	s.root.Walk(func(scene.Object, int) { n++ })
	return n
}

// Buffers returns the scene's vertex buffer and whether it changed since
// the last call.
func (s *Simulation) Buffers() (*scene.VertexBuffer, bool) {
	dirty := s.dirty
	s.dirty = false
	return s.buffers, dirty
}

// Render emits the scene's draw calls with the render scale applied and the
// selection marked.
func (s *Simulation) Render(r scene.Renderer) {
	scale := math.Scale(s.renderScale.X, s.renderScale.Y, s.renderScale.Z)
	s.root.Render(scene.RendererFunc(func(call scene.DrawCall) {
		call.Selected = s.selected != nil && s.selected.Contains(call.Object)
		call.Matrix = math.Compose(scale, call.Matrix)
		r.Draw(call)
	}))
}

// Close destroys the scene and closes the engine.
func (s *Simulation) Close() {
	s.root.Destroy()
	s.selected = nil
	s.engine.Close()
}
