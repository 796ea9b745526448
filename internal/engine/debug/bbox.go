// Package debug builds line geometry and captures used by the viewer for
// inspection: selection boxes, the floor grid and screenshots.
package debug

import "github.com/Faultbox/physbox/pkg/math"

// BoxVertexCount is the number of line vertices in a box wireframe
// (12 edges of 2 endpoints).
const BoxVertexCount = 24

// SelectionPadding is the gap between a selected object and its box.
const SelectionPadding = 0.05

// BoxWireframe returns line vertices (x, y, z each) for the box spanning min
// and max, grown by padding on every side.
func BoxWireframe(min, max math.Vec3, padding float32) []float32 {
	pad := math.Vec3{X: padding, Y: padding, Z: padding}
	lo, hi := min.Sub(pad), max.Add(pad)

	corner := func(x, y, z bool) [3]float32 {
		c := [3]float32{lo.X, lo.Y, lo.Z}
		if x {
			c[0] = hi.X
		}
		if y {
			c[1] = hi.Y
		}
		if z {
			c[2] = hi.Z
		}
		return c
	}

	out := make([]float32, 0, BoxVertexCount*3)
	edge := func(a, b [3]float32) {
		out = append(out, a[0], a[1], a[2], b[0], b[1], b[2])
	}
	for _, y := range [2]bool{false, true} {
		edge(corner(false, y, false), corner(true, y, false))
		edge(corner(true, y, false), corner(true, y, true))
		edge(corner(true, y, true), corner(false, y, true))
		edge(corner(false, y, true), corner(false, y, false))
	}
	for _, x := range [2]bool{false, true} {
		for _, z := range [2]bool{false, true} {
			edge(corner(x, false, z), corner(x, true, z))
		}
	}
	return out
}

// GridLines returns line vertices for a square grid on the plane y, centred
// on the origin and extending half units along X and Z.
func GridLines(half, spacing, y float32) []float32 {
	if half <= 0 || spacing <= 0 {
		return nil
	}
	n := int(half / spacing)
	out := make([]float32, 0, (2*n+1)*12)
	for i := -n; i <= n; i++ {
		o := float32(i) * spacing
		out = append(out,
			o, y, -half, o, y, half,
			-half, y, o, half, y, o)
	}
	return out
}
