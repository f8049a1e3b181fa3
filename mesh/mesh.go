// Package mesh holds CPU geometry and uploads it into pooled GPU buffers.
package mesh

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
)

// Topology is the primitive type of a mesh.
type Topology uint8

const (
	TriangleList Topology = iota
	LineList
)

// Mesh is CPU-side indexed geometry.
type Mesh struct {
	Name     string
	Topology Topology
	Vertices []Vertex
	Indices  []uint32
}

// New returns an empty triangle mesh.
func New(name string) *Mesh { return &Mesh{Name: name} }

// Add appends a vertex and returns its index.
func (m *Mesh) Add(v Vertex) uint32 {
	m.Vertices = append(m.Vertices, v)
	return uint32(len(m.Vertices) - 1)
}

// Triangle appends one triangle by vertex indices.
func (m *Mesh) Triangle(a, b, c uint32) *Mesh {
	m.Indices = append(m.Indices, a, b, c)
	return m
}

// IndexList returns the indices, or 0..n-1 for unindexed meshes.
func (m *Mesh) IndexList() []uint32 {
	if len(m.Indices) > 0 {
		return m.Indices
	}
	idx := make([]uint32, len(m.Vertices))
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}

// Bounds returns the bounding box of the vertex positions.
func (m *Mesh) Bounds() Bounds {
	pts := make([]mgl32.Vec3, len(m.Vertices))
	for i := range m.Vertices {
		pts[i] = m.Vertices[i].Position
	}
	return BoundsOf(pts...)
}

// Pack returns the vertex stream for flags and the index stream.
func (m *Mesh) Pack(flags VertexFlag) (vertices, indices []byte) {
	vertices = make([]byte, 0, len(m.Vertices)*int(flags.Stride()))
	for i := range m.Vertices {
		vertices = m.Vertices[i].AppendTo(vertices, flags)
	}
	list := m.IndexList()
	indices = make([]byte, 0, 4*len(list))
	for _, i := range list {
		indices = binary.LittleEndian.AppendUint32(indices, i)
	}
	return vertices, indices
}

// Quad returns a unit square in the XY plane facing +Z.
func Quad(name string, color mgl32.Vec4) *Mesh {
	m := New(name)
	n := mgl32.Vec3{0, 0, 1}
	m.Add(Vertex{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: color, UV: mgl32.Vec2{0, 1}, Normal: n})
	m.Add(Vertex{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: color, UV: mgl32.Vec2{1, 1}, Normal: n})
	m.Add(Vertex{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: color, UV: mgl32.Vec2{1, 0}, Normal: n})
	m.Add(Vertex{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: color, UV: mgl32.Vec2{0, 0}, Normal: n})
	return m.Triangle(0, 1, 2).Triangle(0, 2, 3)
}

// Cube returns a unit cube centered on the origin with per-face normals.
func Cube(name string, color mgl32.Vec4) *Mesh {
	m := New(name)
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	for _, f := range faces {
		c := f.n.Mul(0.5)
		base := uint32(len(m.Vertices))
		for _, corner := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := c.Add(f.u.Mul(corner[0] * 0.5)).Add(f.v.Mul(corner[1] * 0.5))
			uv := mgl32.Vec2{(corner[0] + 1) / 2, (1 - corner[1]) / 2}
			m.Add(Vertex{Position: p, Color: color, UV: uv, Normal: f.n})
		}
		m.Triangle(base, base+1, base+2).Triangle(base, base+2, base+3)
	}
	return m
}
