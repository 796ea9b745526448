package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

// VertexStride is the number of floats per vertex: position then normal.
const VertexStride = 6

const (
	sphereSlices    = 24
	sphereStacks    = 16
	cylinderSegment = 24
)

// VertexBuffer accumulates interleaved vertices and triangle indices for
// every object in a scene so they can be uploaded in one go.
type VertexBuffer struct {
	Vertices []float32
	Indices  []uint32
}

// VertexCount returns the number of vertices in the buffer.
func (vb *VertexBuffer) VertexCount() int {
	return len(vb.Vertices) / VertexStride
}

// Reset empties the buffer, keeping its storage.
func (vb *VertexBuffer) Reset() {
	vb.Vertices = vb.Vertices[:0]
	vb.Indices = vb.Indices[:0]
}

// meshRange is the slice of a VertexBuffer's indices holding one mesh.
type meshRange struct {
	buffer *VertexBuffer
	first  int
	count  int
}

func (r meshRange) in(vb *VertexBuffer) bool {
	return r.buffer == vb && r.count > 0
}

type meshBuilder struct {
	vb   *VertexBuffer
	from int
}

func newMeshBuilder(vb *VertexBuffer) *meshBuilder {
	return &meshBuilder{
		vb:   vb,
		from: len(vb.Indices),
	}
}

func (b *meshBuilder) vertex(p, n math.Vec3) uint32 {
	idx := uint32(b.vb.VertexCount())
	b.vb.Vertices = append(b.vb.Vertices, p.X, p.Y, p.Z, n.X, n.Y, n.Z)
	return idx
}

func (b *meshBuilder) triangle(i0, i1, i2 uint32) {
	b.vb.Indices = append(b.vb.Indices, i0, i1, i2)
}

func (b *meshBuilder) quad(i0, i1, i2, i3 uint32) {
	b.triangle(i0, i1, i2)
	b.triangle(i0, i2, i3)
}

func (b *meshBuilder) done() meshRange {
	return meshRange{buffer: b.vb, first: b.from, count: len(b.vb.Indices) - b.from}
}

// appendMesh writes the local-space mesh of a shape of the given size.
func appendMesh(vb *VertexBuffer, shape physics.Shape, size math.Vec3) meshRange {
	b := newMeshBuilder(vb)
	switch shape {
	case physics.ShapeSphere:
		buildSphere(b, size.X/2)
	case physics.ShapeCylinder:
		buildCylinder(b, size.X/2, size.Y)
	default:
		buildBox(b, size.Scale(0.5))
	}
	return b.done()
}

func buildBox(b *meshBuilder, h math.Vec3) {
	faces := []struct {
		normal, u, v math.Vec3
	}{
		{math.Vec3{X: 1}, math.Vec3{Z: -1}, math.Vec3{Y: 1}},
		{math.Vec3{X: -1}, math.Vec3{Z: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Y: 1}, math.Vec3{X: 1}, math.Vec3{Z: -1}},
		{math.Vec3{Y: -1}, math.Vec3{X: 1}, math.Vec3{Z: 1}},
		{math.Vec3{Z: 1}, math.Vec3{X: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Z: -1}, math.Vec3{X: -1}, math.Vec3{Y: 1}},
	}
	for _, f := range faces {
		centre := f.normal.Mul(h)
		u := f.u.Mul(h)
		v := f.v.Mul(h)
		i0 := b.vertex(centre.Sub(u).Sub(v), f.normal)
		i1 := b.vertex(centre.Add(u).Sub(v), f.normal)
		i2 := b.vertex(centre.Add(u).Add(v), f.normal)
		i3 := b.vertex(centre.Sub(u).Add(v), f.normal)
		b.quad(i0, i1, i2, i3)
	}
}

func buildSphere(b *meshBuilder, r float32) {
	start := uint32(b.vb.VertexCount())
	for stack := 0; stack <= sphereStacks; stack++ {
		phi := math32.Pi * float32(stack) / sphereStacks
		for slice := 0; slice <= sphereSlices; slice++ {
			theta := 2 * math32.Pi * float32(slice) / sphereSlices
			n := math.Vec3{
				X: math32.Sin(phi) * math32.Cos(theta),
				Y: math32.Cos(phi),
				Z: math32.Sin(phi) * math32.Sin(theta),
			}
			b.vertex(n.Scale(r), n)
		}
	}
	row := uint32(sphereSlices + 1)
	for stack := uint32(0); stack < sphereStacks; stack++ {
		for slice := uint32(0); slice < sphereSlices; slice++ {
			i0 := start + stack*row + slice
			i1 := i0 + row
			b.quad(i0, i0+1, i1+1, i1)
		}
	}
}

func buildCylinder(b *meshBuilder, r, height float32) {
	top := height / 2
	up := math.Vec3{Y: 1}
	down := math.Vec3{Y: -1}

	side := uint32(b.vb.VertexCount())
	for i := 0; i <= cylinderSegment; i++ {
		theta := 2 * math32.Pi * float32(i) / cylinderSegment
		n := math.Vec3{X: math32.Cos(theta), Z: math32.Sin(theta)}
		b.vertex(math.Vec3{X: n.X * r, Y: -top, Z: n.Z * r}, n)
		b.vertex(math.Vec3{X: n.X * r, Y: top, Z: n.Z * r}, n)
	}
	for i := uint32(0); i < cylinderSegment; i++ {
		i0 := side + 2*i
		b.quad(i0, i0+1, i0+3, i0+2)
	}

	for _, c := range []struct {
		y      float32
		normal math.Vec3
	}{{top, up}, {-top, down}} {
		centre := b.vertex(math.Vec3{Y: c.y}, c.normal)
		rim := uint32(b.vb.VertexCount())
		for i := 0; i <= cylinderSegment; i++ {
			theta := 2 * math32.Pi * float32(i) / cylinderSegment
			b.vertex(math.Vec3{X: math32.Cos(theta) * r, Y: c.y, Z: math32.Sin(theta) * r}, c.normal)
		}
		for i := uint32(0); i < cylinderSegment; i++ {
			if c.y > 0 {
				b.triangle(centre, rim+i+1, rim+i)
			} else {
				b.triangle(centre, rim+i, rim+i+1)
			}
		}
	}
}
