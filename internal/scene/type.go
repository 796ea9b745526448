// Package scene holds the object graph of a physics sandbox: rigid bodies,
// compounds owning bodies and joints, drop-to-surface placement, render
// buffers and the XML scene document.
package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// ErrUnknownType is returned when a document names an object type that is
// not in the registry.
var ErrUnknownType = errors.New("unknown object type")

// Type is the kind of a scene object.
type Type int

const (
	Sphere Type = iota
	Box
	Cylinder
	Floor
	CompoundType
	typeCount
)

// Info is the registry entry for a Type.
type Info struct {
	Name   string
	Mass   float32
	Freeze physics.FreezeState
	Size   math.Vec3
	Shape  physics.Shape
	Color  [3]float32
}

var registry = [typeCount]Info{
	Sphere: {
		Name:  "sphere",
		Mass:  1,
		Size:  math.Vec3{X: 1, Y: 1, Z: 1},
		Shape: physics.ShapeSphere,
		Color: [3]float32{0.85, 0.35, 0.3},
	},
	Box: {
		Name:  "box",
		Mass:  1,
		Size:  math.Vec3{X: 1, Y: 1, Z: 1},
		Shape: physics.ShapeBox,
		Color: [3]float32{0.35, 0.55, 0.85},
	},
	Cylinder: {
		Name:  "cylinder",
		Mass:  1,
		Size:  math.Vec3{X: 1, Y: 1, Z: 1},
		Shape: physics.ShapeCylinder,
		Color: [3]float32{0.4, 0.75, 0.4},
	},
	Floor: {
		Name:   "floor",
		Freeze: physics.Frozen,
		Size:   math.Vec3{X: 40, Y: 0.5, Z: 40},
		Shape:  physics.ShapeBox,
		Color:  [3]float32{0.45, 0.45, 0.5},
	},
	CompoundType: {
		Name: "compound",
	},
}

// TypeInfo returns the registry entry for t. It panics for a Type outside the
// registry.
func TypeInfo(t Type) Info {
	if t < 0 || t >= typeCount {
		panic(fmt.Sprintf("scene: type %d is not registered", int(t)))
	}
	return registry[t]
}

// String returns the document tag of t.
func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return registry[t].Name
}

// Primitive reports whether t is backed by a single rigid body.
func (t Type) Primitive() bool {
	return t >= Sphere && t < CompoundType
}

// ParseType maps a document tag to its Type. Matching ignores case.
func ParseType(tag string) (Type, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for t := Type(0); t < typeCount; t++ {
		if registry[t].Name == tag {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, tag)
}

// Types returns every registered Type in declaration order.
func Types() []Type {
	types := make([]Type, 0, typeCount)
	for t := Type(0); t < typeCount; t++ {
		types = append(types, t)
	}
	return types
}
