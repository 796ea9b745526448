// Package lighting describes the directional light that shades the scene.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/physbox/pkg/math"
)

// Sun is a directional light placed by two angles in degrees.
// Azimuth turns around the Y axis starting at +Z, elevation rises from the
// horizon. Ambient is the share of the base color lit regardless of the
// surface normal.
type Sun struct {
	Azimuth   float32
	Elevation float32
	Ambient   float32
}

// DefaultSun returns a light from above and behind the default camera.
func DefaultSun() Sun {
	return Sun{Azimuth: 210, Elevation: 60, Ambient: 0.25}
}

// ToSun returns the unit vector from the origin towards the sun.
func (s Sun) ToSun() math.Vec3 {
	az := s.Azimuth * math32.Pi / 180
	el := s.Elevation * math32.Pi / 180

	return math.Vec3{
		X: math32.Cos(el) * math32.Sin(az),
		Y: math32.Sin(el),
		Z: math32.Cos(el) * math32.Cos(az),
	}
}

// Direction returns the direction the light travels, as the shader expects.
func (s Sun) Direction() math.Vec3 {
	return s.ToSun().Scale(-1)
}
