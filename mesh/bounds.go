package mesh

import "github.com/go-gl/mathgl/mgl32"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max mgl32.Vec3
}

// BoundsOf returns the smallest box containing points.
func BoundsOf(points ...mgl32.Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Extend(p)
	}
	return b
}

// Extend grows b to contain p.
func (b *Bounds) Extend(p mgl32.Vec3) {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// Union grows b to contain o.
func (b *Bounds) Union(o Bounds) {
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Corners returns the eight corners, bit 0 selecting x, bit 1 y and bit 2 z
// from Max.
func (b Bounds) Corners() [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := range c {
		c[i] = b.Min
		if i&1 != 0 {
			c[i][0] = b.Max[0]
		}
		if i&2 != 0 {
			c[i][1] = b.Max[1]
		}
		if i&4 != 0 {
			c[i][2] = b.Max[2]
		}
	}
	return c
}

// Transform returns the box containing b transformed by m.
func (b Bounds) Transform(m mgl32.Mat4) Bounds {
	corners := b.Corners()
	pts := make([]mgl32.Vec3, len(corners))
	for i, c := range corners {
		pts[i] = m.Mul4x1(c.Vec4(1)).Vec3()
	}
	return BoundsOf(pts...)
}

// boxEdges indexes Corners as 12 line segments.
var boxEdges = []uint32{
	0, 1, 2, 3, 4, 5, 6, 7, // along x
	0, 2, 1, 3, 4, 6, 5, 7, // along y
	0, 4, 1, 5, 2, 6, 3, 7, // along z
}

// Wireframe returns a line-list mesh outlining b.
func (b Bounds) Wireframe(name string) *Mesh {
	m := &Mesh{Name: name, Topology: LineList}
	for _, c := range b.Corners() {
		m.Vertices = append(m.Vertices, Vertex{Position: c, Color: mgl32.Vec4{1, 1, 1, 1}})
	}
	m.Indices = append([]uint32(nil), boxEdges...)
	return m
}
