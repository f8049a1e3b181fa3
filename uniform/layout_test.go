package uniform

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/gfxtest"
)

func TestLayoutOffsets(t *testing.T) {
	l := NewLayout("scene",
		Member{"camera_position", Vec3F},
		Member{"view_proj", Mat4F},
		Member{"light_direction", Vec3F},
		Member{"light_color", Vec4F},
		Member{"ambient_color", Vec4F},
	)
	wantOffsets := []int{0, 16, 80, 96, 112}
	for i, want := range wantOffsets {
		if got := l.Offset(i); got != want {
			t.Errorf("Offset(%d) = %d, want %d", i, got, want)
		}
	}
	if l.Size() != 128 {
		t.Errorf("Size = %d, want 128", l.Size())
	}
}

func TestLayoutAlignsScalarsAndAddresses(t *testing.T) {
	l := NewLayout("push",
		Member{"world", Mat4F},
		Member{"normal", Mat3F},
		Member{"flags", U32},
		Member{"vertices", U64},
	)
	if got := l.Offset(2); got != 112 {
		t.Errorf("flags offset = %d, want 112", got)
	}
	if got := l.Offset(3); got != 120 {
		t.Errorf("vertices offset = %d, want 120", got)
	}
	if l.Size() != 128 {
		t.Errorf("Size = %d, want 128", l.Size())
	}
}

func TestPack(t *testing.T) {
	l := NewLayout("t", Member{"color", Vec4F}, Member{"addr", U64}, Member{"scale", F32})
	data, err := l.Pack(mgl32.Vec4{1, 0.5, 0.25, 1}, uint64(0xdeadbeef00), float32(2))
	if err != nil {
		t.Fatal(err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[4:])); got != 0.5 {
		t.Errorf("color.g = %v, want 0.5", got)
	}
	if got := binary.LittleEndian.Uint64(data[16:]); got != 0xdeadbeef00 {
		t.Errorf("addr = %#x", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[24:])); got != 2 {
		t.Errorf("scale = %v, want 2", got)
	}
}

func TestPackMismatch(t *testing.T) {
	l := NewLayout("t", Member{"m", Mat4F})
	tests := []struct {
		name   string
		values []any
	}{
		{"count", nil},
		{"type", []any{mgl32.Vec4{}}},
		{"scalar", []any{float64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Pack(tt.values...); !errors.Is(err, ErrLayoutMismatch) {
				t.Errorf("Pack err = %v, want ErrLayoutMismatch", err)
			}
		})
	}
}

func TestAllocatorPoolsByLayout(t *testing.T) {
	dev := gfxtest.NewDevice()
	a := NewAllocator()
	scene := NewLayout("scene", Member{"view_proj", Mat4F})
	other := NewLayout("other", Member{"view_proj", Mat4F})

	b, err := a.Allocate(dev, "scene-0", scene.Size(), scene)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Update(dev.Queue(gfx.QueueGraphics), mgl32.Ident4()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	a.Recycle(b)

	c, err := a.Allocate(dev, "other-0", other.Size(), other)
	if err != nil {
		t.Fatal(err)
	}
	if c == b {
		t.Error("buffer reused across layouts")
	}
	d, _ := a.Allocate(dev, "scene-1", scene.Size(), scene)
	if d != b {
		t.Error("buffer of the same layout not reused")
	}
	raw := b.Buffer.(*gfxtest.Buffer).Bytes()
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw[0:])); got != 1 {
		t.Errorf("view_proj[0] = %v, want 1", got)
	}
}
