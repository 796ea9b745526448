package scene

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Document errors.
var (
	ErrNotScene = errors.New("document is not a scene")
	// ErrDangling marks a joint that references an id no earlier sibling has.
	ErrDangling = errors.New("joint references an unknown object")
)

const (
	elemObject = "object"
	elemJoint  = "joint"
)

// SkippedJoint describes a joint element that could not be attached.
type SkippedJoint struct {
	Kind     string
	ParentID int
	ChildID  int
	Line     int
	Reason   error
}

// LoadReport summarizes a load. Objects counts every object below the root,
// Joints every joint that was attached.
type LoadReport struct {
	Objects int
	Joints  int
	Skipped []SkippedJoint
}

// SaveFile writes c to path, creating parent directories as needed.
func SaveFile(path string, c *Compound) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create scene directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scene file: %w", err)
	}
	if err := SaveXML(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveXML writes c as a scene document. Children come first in list order,
// then joints in list order. Nested matrices and joint frames are written
// relative to the owning compound.
func SaveXML(w io.Writer, c *Compound) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write scene header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeObject(enc, c, math.Identity()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func writeObject(enc *xml.Encoder, o Object, parent math.Mat4) error {
	start := xml.StartElement{
		Name: xml.Name{Local: elemObject},
		Attr: []xml.Attr{
			attr("type", o.Type().String()),
			attr("matrix", math.Relative(o.Matrix(), parent).String()),
		},
	}

	switch obj := o.(type) {
	case *RigidBody:
		info := TypeInfo(obj.typ)
		start.Attr = append(start.Attr,
			attr("size", obj.size.String()),
			attr("freeze", strconv.Itoa(int(obj.freeze))))
		if obj.mass != info.Mass {
			start.Attr = append(start.Attr, attr("mass", formatFloat(obj.mass)))
		}
		if err := enc.EncodeToken(start); err != nil {
			return fmt.Errorf("write object: %w", err)
		}
	case *Compound:
		if state := obj.AggregateFreezeState(); state.Valid() {
			start.Attr = append(start.Attr, attr("freeze", strconv.Itoa(int(state))))
		}
		if obj.file != "" {
			start.Attr = append(start.Attr, attr("file", obj.file))
		}
		if err := enc.EncodeToken(start); err != nil {
			return fmt.Errorf("write compound: %w", err)
		}
		for _, n := range obj.nodes {
			if err := writeObject(enc, n, obj.matrix); err != nil {
				return err
			}
		}
		for _, j := range obj.joints {
			if err := writeJoint(enc, obj, j); err != nil {
				return err
			}
		}
	}

	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// writeJoint writes j with its endpoints as sibling ids. A joint whose
// endpoints are not direct children of c cannot be referenced and is left out.
func writeJoint(enc *xml.Encoder, c *Compound, j Joint) error {
	childID, ok := siblingID(c, j.Child())
	if !ok {
		logger.Warn("joint child is not a direct child of its compound, not saved",
			zap.Stringer("kind", j.Kind()))
		return nil
	}
	parentID := -1
	if p := j.Parent(); p != nil {
		if parentID, ok = siblingID(c, p); !ok {
			logger.Warn("joint parent is not a direct child of its compound, not saved",
				zap.Stringer("kind", j.Kind()))
			return nil
		}
	}

	pivot, pin := c.localJoint(j)
	start := xml.StartElement{
		Name: xml.Name{Local: elemJoint},
		Attr: []xml.Attr{
			attr("type", j.Kind().String()),
			attr("parentID", strconv.Itoa(parentID)),
			attr("childID", strconv.Itoa(childID)),
			attr("pivot", pivot.String()),
			attr("pinDir", pin.String()),
		},
	}
	if limited, ok := j.(*BallAndSocketLimited); ok {
		start.Attr = append(start.Attr,
			attr("maxCone", formatFloat(limited.MaxConeAngle)),
			attr("maxTwist", formatFloat(limited.MaxTwistAngle)))
	}

	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("write joint: %w", err)
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("write joint: %w", err)
	}
	return nil
}

func siblingID(c *Compound, o Object) (int, bool) {
	n, ok := c.Node(o.ID())
	if !ok || n != o {
		return 0, false
	}
	return o.ID(), true
}

// LoadFile reads the scene document at path into a new root compound.
func LoadFile(path string, eng physics.Engine) (*Compound, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	c, report, err := LoadXML(f, eng)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, report, nil
}

// LoadXML reads a scene document into a new root compound placed at the
// document's root matrix. Joints that cannot be attached are skipped and
// listed in the report; any other error fails the load.
func LoadXML(r io.Reader, eng physics.Engine) (*Compound, *LoadReport, error) {
	c := NewCompound(eng, math.Identity())
	report, err := load(c, r, true)
	if err != nil {
		c.Destroy()
		return nil, nil, err
	}
	return c, report, nil
}

// LoadInto adds the children and joints of a scene document to c, relative
// to c's current matrix. The document's root matrix is ignored so a saved
// scene can be dropped anywhere.
func LoadInto(c *Compound, r io.Reader) (*LoadReport, error) {
	return load(c, r, false)
}

type loader struct {
	dec    *xml.Decoder
	engine physics.Engine
	report *LoadReport
	// freezes holds the freeze attribute of every object element that had one.
	freezes map[Object]physics.FreezeState
}

func load(c *Compound, r io.Reader, placeRoot bool) (*LoadReport, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	l := &loader{
		dec:     dec,
		engine:  c.Engine(),
		report:  &LoadReport{},
		freezes: make(map[Object]physics.FreezeState),
	}

	root, err := l.root()
	if err != nil {
		return nil, err
	}
	attrs := attrMap(root)
	t, err := ParseType(attrs["type"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotScene, err)
	}
	if t != CompoundType {
		return nil, fmt.Errorf("%w: root object is a %s", ErrNotScene, t)
	}
	if placeRoot {
		m, err := l.matrix(attrs)
		if err != nil {
			return nil, err
		}
		c.matrix = m
	}

	if err := l.children(c, attrs); err != nil {
		return nil, err
	}
	logger.Debug("scene loaded",
		zap.Int("objects", l.report.Objects),
		zap.Int("joints", l.report.Joints),
		zap.Int("skipped", len(l.report.Skipped)))
	return l.report, nil
}

func (l *loader) root() (xml.StartElement, error) {
	for {
		tok, err := l.dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, fmt.Errorf("%w: empty document", ErrNotScene)
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("read scene: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != elemObject {
				return xml.StartElement{}, fmt.Errorf("%w: root element <%s>", ErrNotScene, start.Name.Local)
			}
			return start, nil
		}
	}
}

func attrMap(start xml.StartElement) map[string]string {
	m := make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

func (l *loader) matrix(attrs map[string]string) (math.Mat4, error) {
	s, ok := attrs["matrix"]
	if !ok {
		return math.Identity(), nil
	}
	m, err := math.ParseMat4(s)
	if err != nil {
		return math.Mat4{}, fmt.Errorf("%s matrix: %w", attrs["type"], err)
	}
	return m, nil
}

func parseFreeze(attrs map[string]string) (physics.FreezeState, bool, error) {
	s, ok := attrs["freeze"]
	if !ok {
		return physics.Active, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || !physics.FreezeState(v).Valid() {
		return physics.Active, false, fmt.Errorf("%w: freeze %q", math.ErrMalformed, s)
	}
	return physics.FreezeState(v), true, nil
}

// children reads the contents of an object element up to its end tag.
// Objects are added as they appear; joints resolve against the objects added
// so far. The freeze attribute is applied last so it is not overwritten by
// the state each child inherits in Add.
func (l *loader) children(c *Compound, attrs map[string]string) error {
	freeze, hasFreeze, err := parseFreeze(attrs)
	if err != nil {
		return err
	}
	if f, ok := attrs["file"]; ok {
		c.file = f
	}

	for {
		tok, err := l.dec.Token()
		if err == io.EOF {
			return fmt.Errorf("read scene: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return fmt.Errorf("read scene: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case elemObject:
				obj, err := l.object(t)
				if err != nil {
					return err
				}
				l.adopt(c, obj)
				l.report.Objects++
			case elemJoint:
				l.joint(c, t)
				if err := l.dec.Skip(); err != nil {
					return fmt.Errorf("read joint: %w", err)
				}
			default:
				line, _ := l.dec.InputPos()
				logger.Warn("ignoring unknown scene element",
					zap.String("element", t.Name.Local), zap.Int("line", line))
				if err := l.dec.Skip(); err != nil {
					return fmt.Errorf("read scene: %w", err)
				}
			}
		case xml.EndElement:
			if hasFreeze {
				c.SetFreezeState(freeze)
				c.Walk(func(o Object, _ int) { delete(l.freezes, o) })
				l.freezes[c] = freeze
			}
			return nil
		}
	}
}

func (l *loader) object(start xml.StartElement) (Object, error) {
	attrs := attrMap(start)
	t, err := ParseType(attrs["type"])
	if err != nil {
		return nil, err
	}
	m, err := l.matrix(attrs)
	if err != nil {
		return nil, err
	}

	if t == CompoundType {
		sub := NewCompound(l.engine, m)
		if err := l.children(sub, attrs); err != nil {
			sub.Destroy()
			return nil, err
		}
		return sub, nil
	}

	info := TypeInfo(t)
	size := info.Size
	if s, ok := attrs["size"]; ok {
		if size, err = math.ParseVec3(s); err != nil {
			return nil, fmt.Errorf("%s size: %w", t, err)
		}
	}
	mass := info.Mass
	if s, ok := attrs["mass"]; ok {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s mass %q", math.ErrMalformed, t, s)
		}
		mass = float32(v)
	}
	freeze, hasFreeze, err := parseFreeze(attrs)
	if err != nil {
		return nil, err
	}

	rb, err := NewRigidBody(l.engine, t, m, size, mass)
	if err != nil {
		return nil, err
	}
	if hasFreeze {
		rb.SetFreezeState(freeze)
		l.freezes[rb] = freeze
	}
	if err := l.dec.Skip(); err != nil {
		rb.Destroy()
		return nil, fmt.Errorf("read object: %w", err)
	}
	return rb, nil
}

// adopt adds obj to c, then restores the freeze attributes read for obj and
// its descendants in pre-order, so the state Add hands down only sticks where
// the document gave none.
func (l *loader) adopt(c *Compound, obj Object) {
	c.Add(obj)
	if s, ok := l.freezes[obj]; ok {
		obj.SetFreezeState(s)
	}
	if sub, ok := obj.(*Compound); ok {
		sub.Walk(func(o Object, _ int) {
			if s, ok := l.freezes[o]; ok {
				o.SetFreezeState(s)
			}
		})
	}
}

// joint attaches a joint element to c or records why it was skipped.
func (l *loader) joint(c *Compound, start xml.StartElement) {
	attrs := attrMap(start)
	line, _ := l.dec.InputPos()
	skipped := SkippedJoint{Kind: attrs["type"], ParentID: -1, ChildID: -1, Line: line}

	skip := func(reason error) {
		skipped.Reason = reason
		l.report.Skipped = append(l.report.Skipped, skipped)
		logger.Warn("skipping joint",
			zap.String("kind", skipped.Kind),
			zap.Int("parentID", skipped.ParentID),
			zap.Int("childID", skipped.ChildID),
			zap.Int("line", line),
			zap.Error(reason))
	}

	s, err := l.jointSpec(attrs, &skipped)
	if err != nil {
		skip(err)
		return
	}

	child, ok := c.Node(skipped.ChildID)
	if !ok {
		skip(fmt.Errorf("%w: child %d", ErrDangling, skipped.ChildID))
		return
	}
	var parent Object
	if skipped.ParentID >= 0 {
		if parent, ok = c.Node(skipped.ParentID); !ok {
			skip(fmt.Errorf("%w: parent %d", ErrDangling, skipped.ParentID))
			return
		}
	}

	if _, err := c.createJoint(s, child, parent); err != nil {
		skip(err)
		return
	}
	l.report.Joints++
}

func (l *loader) jointSpec(attrs map[string]string, ids *SkippedJoint) (jointSpec, error) {
	var s jointSpec
	var err error

	if s.kind, err = ParseJointKind(attrs["type"]); err != nil {
		return s, err
	}
	if ids.ChildID, err = strconv.Atoi(attrs["childID"]); err != nil {
		return s, fmt.Errorf("%w: childID %q", math.ErrMalformed, attrs["childID"])
	}
	if p, ok := attrs["parentID"]; ok {
		if ids.ParentID, err = strconv.Atoi(p); err != nil {
			return s, fmt.Errorf("%w: parentID %q", math.ErrMalformed, p)
		}
	}
	if s.pivot, err = math.ParseVec3(attrs["pivot"]); err != nil {
		return s, fmt.Errorf("pivot: %w", err)
	}
	if s.pin, err = math.ParseVec3(attrs["pinDir"]); err != nil {
		return s, fmt.Errorf("pinDir: %w", err)
	}
	if s.kind == KindBallAndSocketLimited {
		if s.maxCone, err = parseAngle(attrs, "maxCone"); err != nil {
			return s, err
		}
		if s.maxTwist, err = parseAngle(attrs, "maxTwist"); err != nil {
			return s, err
		}
	}
	return s, nil
}

func parseAngle(attrs map[string]string, name string) (float32, error) {
	s, ok := attrs[name]
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", math.ErrMalformed, name, s)
	}
	return float32(v), nil
}
