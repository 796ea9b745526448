package scene

import (
	"path/filepath"
	"strings"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// Template describes a spawnable object. A template with a File is a
// compound placeholder whose contents are loaded from that scene document
// when it is spawned.
type Template struct {
	Name   string
	Type   Type
	Mass   float32
	Freeze physics.FreezeState
	Size   math.Vec3
	File   string
}

// TemplateFor returns the registry defaults of t as a template.
func TemplateFor(t Type) Template {
	info := TypeInfo(t)
	return Template{
		Name:   info.Name,
		Type:   t,
		Mass:   info.Mass,
		Freeze: info.Freeze,
		Size:   info.Size,
	}
}

// TemplateFromFile returns a compound placeholder for the document at path.
func TemplateFromFile(path string) Template {
	tpl := TemplateFor(CompoundType)
	tpl.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tpl.File = path
	return tpl
}

// Templates lists the built-in spawnable templates.
func Templates() []Template {
	return []Template{
		TemplateFor(Sphere),
		TemplateFor(Box),
		TemplateFor(Cylinder),
		TemplateFor(Floor),
	}
}

// FromFile reports whether the template defers to a scene document.
func (t Template) FromFile() bool {
	return t.File != ""
}
