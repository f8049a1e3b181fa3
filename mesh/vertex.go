package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

// VertexFlag selects the attributes present in a vertex stream. Each
// attribute has a fixed shader location equal to its bit index.
type VertexFlag uint32

const (
	VertexPosition VertexFlag = 1 << iota
	VertexColor
	VertexTexture
	VertexNormal
	VertexNormalTexture
	VertexTangent
	VertexBitangent

	vertexFlagEnd
)

var vertexFlagNames = map[VertexFlag]string{
	VertexPosition:      "position",
	VertexColor:         "color",
	VertexTexture:       "texture",
	VertexNormal:        "normal",
	VertexNormalTexture: "normal_texture",
	VertexTangent:       "tangent",
	VertexBitangent:     "bitangent",
}

// Has reports whether all bits of o are set in f.
func (f VertexFlag) Has(o VertexFlag) bool { return f&o == o }

func (f VertexFlag) each(fn func(bit VertexFlag, location uint32)) {
	loc := uint32(0)
	for bit := VertexPosition; bit < vertexFlagEnd; bit <<= 1 {
		if f&bit != 0 {
			fn(bit, loc)
		}
		loc++
	}
}

func (f VertexFlag) String() string {
	var parts []string
	f.each(func(bit VertexFlag, _ uint32) { parts = append(parts, vertexFlagNames[bit]) })
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseVertexFlags parses attribute names as used in material configs.
func ParseVertexFlags(names []string) (VertexFlag, error) {
	var f VertexFlag
	for _, n := range names {
		found := false
		for bit, name := range vertexFlagNames {
			if strings.EqualFold(n, name) {
				f |= bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("mesh: unknown vertex attribute %q", n)
		}
	}
	return f, nil
}

func attributeFormat(bit VertexFlag) (gputypes.VertexFormat, uint32) {
	switch bit {
	case VertexColor:
		return gputypes.VertexFormatFloat32x4, 16
	case VertexTexture, VertexNormalTexture:
		return gputypes.VertexFormatFloat32x2, 8
	default:
		return gputypes.VertexFormatFloat32x3, 12
	}
}

// Stride returns the byte size of one tightly packed vertex.
func (f VertexFlag) Stride() uint32 {
	var n uint32
	f.each(func(bit VertexFlag, _ uint32) {
		_, size := attributeFormat(bit)
		n += size
	})
	return n
}

// Attributes returns the pipeline vertex layout of f.
func (f VertexFlag) Attributes() []gfx.VertexAttribute {
	var attrs []gfx.VertexAttribute
	var offset uint32
	f.each(func(bit VertexFlag, loc uint32) {
		format, size := attributeFormat(bit)
		attrs = append(attrs, gfx.VertexAttribute{Location: loc, Format: format, Offset: offset})
		offset += size
	})
	return attrs
}

// Vertex holds every attribute a mesh may provide.
type Vertex struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec4
	UV        mgl32.Vec2
	Normal    mgl32.Vec3
	NormalUV  mgl32.Vec2
	Tangent   mgl32.Vec3
	Bitangent mgl32.Vec3
}

// AppendTo appends the attributes selected by f to dst.
func (v *Vertex) AppendTo(dst []byte, f VertexFlag) []byte {
	f.each(func(bit VertexFlag, _ uint32) {
		switch bit {
		case VertexPosition:
			dst = appendFloats(dst, v.Position[:]...)
		case VertexColor:
			dst = appendFloats(dst, v.Color[:]...)
		case VertexTexture:
			dst = appendFloats(dst, v.UV[:]...)
		case VertexNormal:
			dst = appendFloats(dst, v.Normal[:]...)
		case VertexNormalTexture:
			dst = appendFloats(dst, v.NormalUV[:]...)
		case VertexTangent:
			dst = appendFloats(dst, v.Tangent[:]...)
		case VertexBitangent:
			dst = appendFloats(dst, v.Bitangent[:]...)
		}
	})
	return dst
}

func appendFloats(dst []byte, fs ...float32) []byte {
	for _, f := range fs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
