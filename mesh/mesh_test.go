package mesh

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/gfxtest"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/resource"
)

func TestVertexLayout(t *testing.T) {
	tests := []struct {
		flags  VertexFlag
		stride uint32
		locs   []uint32
	}{
		{VertexPosition, 12, []uint32{0}},
		{VertexPosition | VertexColor | VertexNormal, 40, []uint32{0, 1, 3}},
		{VertexPosition | VertexTexture | VertexNormal, 32, []uint32{0, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.flags.String(), func(t *testing.T) {
			if got := tt.flags.Stride(); got != tt.stride {
				t.Errorf("Stride = %d, want %d", got, tt.stride)
			}
			attrs := tt.flags.Attributes()
			if len(attrs) != len(tt.locs) {
				t.Fatalf("%d attributes, want %d", len(attrs), len(tt.locs))
			}
			for i, a := range attrs {
				if a.Location != tt.locs[i] {
					t.Errorf("attr %d location = %d, want %d", i, a.Location, tt.locs[i])
				}
			}
		})
	}
	attrs := (VertexPosition | VertexColor).Attributes()
	if attrs[1].Offset != 12 || attrs[1].Format != gputypes.VertexFormatFloat32x4 {
		t.Errorf("color attribute = %+v", attrs[1])
	}
}

func TestParseVertexFlags(t *testing.T) {
	f, err := ParseVertexFlags([]string{"Position", "color", "normal"})
	if err != nil {
		t.Fatal(err)
	}
	if f != VertexPosition|VertexColor|VertexNormal {
		t.Errorf("flags = %v", f)
	}
	if _, err := ParseVertexFlags([]string{"bogus"}); err == nil {
		t.Error("unknown attribute accepted")
	}
}

func TestPack(t *testing.T) {
	m := Quad("q", mgl32.Vec4{1, 0, 0, 1})
	vertices, indices := m.Pack(VertexPosition | VertexColor)
	if len(vertices) != 4*28 {
		t.Errorf("vertex bytes = %d, want %d", len(vertices), 4*28)
	}
	if len(indices) != 6*4 {
		t.Errorf("index bytes = %d, want 24", len(indices))
	}
	// Second vertex color red channel follows its position.
	if r := math.Float32frombits(binary.LittleEndian.Uint32(vertices[28+12:])); r != 1 {
		t.Errorf("red = %v, want 1", r)
	}
}

func TestBoundsTransform(t *testing.T) {
	b := Cube("c", mgl32.Vec4{}).Bounds()
	if b.Min != (mgl32.Vec3{-0.5, -0.5, -0.5}) || b.Max != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Fatalf("cube bounds = %+v", b)
	}
	moved := b.Transform(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2)))
	if moved.Min != (mgl32.Vec3{9, -1, -1}) || moved.Max != (mgl32.Vec3{11, 1, 1}) {
		t.Errorf("transformed bounds = %+v", moved)
	}
	w := b.Wireframe("box")
	if w.Topology != LineList || len(w.Indices) != 24 || len(w.Vertices) != 8 {
		t.Errorf("wireframe = %d vertices %d indices", len(w.Vertices), len(w.Indices))
	}
}

func newTestStore(t *testing.T) (*gfxtest.Device, *Store, *pool.BufferAllocator) {
	t.Helper()
	dev := gfxtest.NewDevice()
	ctx, err := gfx.NewContext(dev, nil, gfx.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Close)
	buffers := pool.NewBufferAllocator("mesh")
	return dev, NewStore(NewLoader(ctx, buffers)), buffers
}

func TestLoaderUploadsPerLayout(t *testing.T) {
	dev, store, buffers := newTestStore(t)
	h := store.Add(Properties{Name: "cube", Mesh: Cube("cube", mgl32.Vec4{1, 1, 1, 1})}, resource.Static)

	full, err := store.GetData(h, VertexPosition|VertexColor|VertexNormal)
	if err != nil {
		t.Fatal(err)
	}
	depth, err := store.GetData(h, VertexPosition)
	if err != nil {
		t.Fatal(err)
	}
	if full.VertexLen != 24*40 || depth.VertexLen != 24*12 {
		t.Errorf("vertex lens = %d, %d", full.VertexLen, depth.VertexLen)
	}
	if full.IndexCount != 36 {
		t.Errorf("IndexCount = %d, want 36", full.IndexCount)
	}
	vb := full.VertexBuffer.(*gfxtest.Buffer)
	if x := math.Float32frombits(binary.LittleEndian.Uint32(vb.Bytes())); x != -0.5 {
		t.Errorf("first position x = %v, want -0.5", x)
	}
	if store.Loaded(h) != 2 {
		t.Errorf("Loaded = %d, want 2", store.Loaded(h))
	}
	if got := buffers.Idle(gfx.BufferFamilyStaging); got != 1 {
		t.Errorf("idle staging = %d, want 1", got)
	}
	if v := dev.Validation(); len(v) != 0 {
		t.Errorf("validation: %v", v)
	}

	if err := store.Unload(h); err != nil {
		t.Fatal(err)
	}
	if got := buffers.Idle(gfx.BufferFamilyVertex); got != 2 {
		t.Errorf("idle vertex buffers after unload = %d, want 2", got)
	}
}

func TestLoaderRejectsMissingPosition(t *testing.T) {
	_, store, _ := newTestStore(t)
	h := store.Add(Properties{Name: "q", Mesh: Quad("q", mgl32.Vec4{})}, resource.Static)
	if _, err := store.GetData(h, VertexColor); !errors.Is(err, resource.ErrInvalidData) {
		t.Errorf("err = %v, want ErrInvalidData", err)
	}
	empty := store.Add(Properties{Name: "empty", Mesh: New("empty")}, resource.Static)
	if _, err := store.GetData(empty, VertexPosition); !errors.Is(err, resource.ErrInvalidData) {
		t.Errorf("err = %v, want ErrInvalidData", err)
	}
}

func TestUploadRecyclesBuffersOnStagingFailure(t *testing.T) {
	dev := gfxtest.NewDevice()
	ctx, err := gfx.NewContext(dev, nil, gfx.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Close)
	buffers := pool.NewBufferAllocator("mesh")
	l := NewLoader(ctx, buffers)

	// A destroyed staging buffer parked in the pool makes the staging
	// write fail.
	staging, err := buffers.Allocate(dev, "staging", StagingSize, gfx.BufferFamilyStaging)
	if err != nil {
		t.Fatal(err)
	}
	staging.Destroy()
	buffers.Recycle(staging)

	if _, err := l.Upload("tri", make([]byte, 36), make([]byte, 12)); err == nil {
		t.Fatal("Upload into destroyed staging succeeded")
	}
	for _, family := range []gfx.BufferUsage{gfx.BufferFamilyVertex, gfx.BufferFamilyIndex} {
		if got := buffers.Idle(family); got != 1 {
			t.Errorf("idle %v buffers = %d, want 1", family, got)
		}
	}
}
