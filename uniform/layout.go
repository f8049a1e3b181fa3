// Package uniform describes uniform and push data layouts and packs
// values into GPU byte layouts.
package uniform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrLayoutMismatch is returned when packed values do not match a layout.
var ErrLayoutMismatch = errors.New("uniform: values do not match layout")

// Prop is the type of one layout member.
type Prop uint8

const (
	Mat4F Prop = iota
	Mat3F
	Vec4F
	Vec3F
	Vec2F
	F32
	U32
	// U64 holds device addresses.
	U64
)

// size and alignment follow std140 rules; mat3 occupies three vec4 columns.
func (p Prop) size() int {
	switch p {
	case Mat4F:
		return 64
	case Mat3F:
		return 48
	case Vec4F, Vec3F:
		return 16
	case Vec2F, U64:
		return 8
	default:
		return 4
	}
}

func (p Prop) align() int {
	switch p {
	case Mat4F, Mat3F, Vec4F, Vec3F:
		return 16
	case Vec2F, U64:
		return 8
	default:
		return 4
	}
}

func (p Prop) String() string {
	switch p {
	case Mat4F:
		return "mat4"
	case Mat3F:
		return "mat3"
	case Vec4F:
		return "vec4"
	case Vec3F:
		return "vec3"
	case Vec2F:
		return "vec2"
	case F32:
		return "f32"
	case U32:
		return "u32"
	case U64:
		return "u64"
	}
	return "unknown"
}

// Member is a named layout entry.
type Member struct {
	Name string
	Prop Prop
}

// Layout is an ordered list of members with computed offsets. Layouts are
// compared by pointer when used as pool families.
type Layout struct {
	name    string
	members []Member
	offsets []int
	size    int
}

// NewLayout computes offsets for members. The total size is rounded up to
// 16 bytes.
func NewLayout(name string, members ...Member) *Layout {
	l := &Layout{name: name, members: append([]Member(nil), members...)}
	off := 0
	for _, m := range members {
		a := m.Prop.align()
		off = (off + a - 1) / a * a
		l.offsets = append(l.offsets, off)
		off += m.Prop.size()
	}
	l.size = (off + 15) / 16 * 16
	return l
}

func (l *Layout) Name() string      { return l.name }
func (l *Layout) Size() int         { return l.size }
func (l *Layout) Members() []Member { return l.members }
func (l *Layout) Offset(i int) int  { return l.offsets[i] }

func (l *Layout) String() string {
	parts := make([]string, len(l.members))
	for i, m := range l.members {
		parts[i] = fmt.Sprintf("%s:%s@%d", m.Name, m.Prop, l.offsets[i])
	}
	return fmt.Sprintf("%s{%s}", l.name, strings.Join(parts, " "))
}

// Pack encodes values in member order. Accepted Go types are mgl32.Mat4,
// mgl32.Mat3, mgl32.Vec4, mgl32.Vec3, mgl32.Vec2, float32, uint32 and
// uint64.
func (l *Layout) Pack(values ...any) ([]byte, error) {
	out := make([]byte, l.size)
	if err := l.PackInto(out, values...); err != nil {
		return nil, err
	}
	return out, nil
}

// PackInto encodes values into dst, which must hold Size bytes.
func (l *Layout) PackInto(dst []byte, values ...any) error {
	if len(values) != len(l.members) {
		return fmt.Errorf("%w: %s has %d members, got %d values", ErrLayoutMismatch, l.name, len(l.members), len(values))
	}
	if len(dst) < l.size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrLayoutMismatch, l.name, l.size, len(dst))
	}
	for i, v := range values {
		m := l.members[i]
		if err := put(dst[l.offsets[i]:], m.Prop, v); err != nil {
			return fmt.Errorf("%w: %s.%s: %w", ErrLayoutMismatch, l.name, m.Name, err)
		}
	}
	return nil
}

func putFloats(dst []byte, fs ...float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func put(dst []byte, p Prop, v any) error {
	switch p {
	case Mat4F:
		m, ok := v.(mgl32.Mat4)
		if !ok {
			return fmt.Errorf("want mgl32.Mat4, got %T", v)
		}
		putFloats(dst, m[:]...)
	case Mat3F:
		m, ok := v.(mgl32.Mat3)
		if !ok {
			return fmt.Errorf("want mgl32.Mat3, got %T", v)
		}
		for c := range 3 {
			col := m.Col(c)
			putFloats(dst[c*16:], col[0], col[1], col[2], 0)
		}
	case Vec4F:
		x, ok := v.(mgl32.Vec4)
		if !ok {
			return fmt.Errorf("want mgl32.Vec4, got %T", v)
		}
		putFloats(dst, x[:]...)
	case Vec3F:
		x, ok := v.(mgl32.Vec3)
		if !ok {
			return fmt.Errorf("want mgl32.Vec3, got %T", v)
		}
		putFloats(dst, x[0], x[1], x[2], 0)
	case Vec2F:
		x, ok := v.(mgl32.Vec2)
		if !ok {
			return fmt.Errorf("want mgl32.Vec2, got %T", v)
		}
		putFloats(dst, x[:]...)
	case F32:
		x, ok := v.(float32)
		if !ok {
			return fmt.Errorf("want float32, got %T", v)
		}
		putFloats(dst, x)
	case U32:
		x, ok := v.(uint32)
		if !ok {
			return fmt.Errorf("want uint32, got %T", v)
		}
		binary.LittleEndian.PutUint32(dst, x)
	case U64:
		x, ok := v.(uint64)
		if !ok {
			return fmt.Errorf("want uint64, got %T", v)
		}
		binary.LittleEndian.PutUint64(dst, x)
	default:
		return fmt.Errorf("unknown prop %d", p)
	}
	return nil
}
