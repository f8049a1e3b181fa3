// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gogpu/framegraph/assets"
	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/gfxtest"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pass"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/texture"
)

var small = gfx.Extent2D{Width: 64, Height: 32}

type fixture struct {
	dev     *gfxtest.Device
	display *gfxtest.Display
	ctx     *gfx.Context
	env     pass.Env
	reg     *assets.Registry
	model   *assets.Model
}

func newFixture(t *testing.T, withDisplay bool) *fixture {
	t.Helper()
	dev := gfxtest.NewDevice()
	var display *gfxtest.Display
	var ctx *gfx.Context
	var err error
	if withDisplay {
		if display, err = gfxtest.NewDisplay(dev, small, 3); err != nil {
			t.Fatal(err)
		}
		ctx, err = gfx.NewContext(dev, display, gfx.Config{FramesInFlight: 2})
	} else {
		ctx, err = gfx.NewContext(dev, nil, gfx.Config{FramesInFlight: 2})
	}
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Close)
	lib := shader.NewLibrary(dev, shader.WithSPIRV(false))
	t.Cleanup(lib.Close)
	pipelines := pipeline.NewCache(dev)
	t.Cleanup(pipelines.DestroyAll)
	reg := assets.NewRegistry(ctx, lib, pipelines)
	t.Cleanup(reg.Close)

	flags := mesh.VertexPosition | mesh.VertexColor | mesh.VertexNormal
	opaque := reg.Materials.Add(material.Properties{Name: "color", VertexShader: "forward.wgsl", FragmentShader: "forward.wgsl", VertexFlags: flags}, resource.Static)
	glassy := reg.Materials.Add(material.Properties{Name: "glass", VertexShader: "forward.wgsl", FragmentShader: "forward.wgsl", VertexFlags: flags, Blend: gfx.BlendAlpha}, resource.Static)
	cube := reg.Meshes.Add(mesh.Properties{Name: "cube", Mesh: mesh.Cube("cube", mgl32.Vec4{1, 1, 1, 1})}, resource.Static)
	model := assets.NewModel("cubes").
		Add(cube, reg.Instances.Add(material.NewInstance("glass-1", glassy), resource.Static)).
		Add(cube, reg.Instances.Add(material.NewInstance("color-1", opaque), resource.Static))

	return &fixture{
		dev:     dev,
		display: display,
		ctx:     ctx,
		env:     pass.Env{Ctx: ctx, Shaders: lib, Pipelines: pipelines, Uniforms: reg.Uniforms},
		reg:     reg,
		model:   model,
	}
}

// build creates a graph of the named built-in preset.
func (f *fixture) build(t *testing.T, preset string, opts ...Option) *Graph {
	t.Helper()
	opts = append([]Option{WithMinRenderExtent(small)}, opts...)
	g, err := New(f.ctx, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Destroy)
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Build(g, f.env, preset); err != nil {
		t.Fatal(err)
	}
	return g
}

// scene returns a finished batch drawing the cube model in the forward
// pass of g.
func (f *fixture) scene(t *testing.T, g *Graph) *batch.Batch {
	t.Helper()
	b := batch.New(f.reg)
	fwd, err := g.PassByName("forward")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddModel(f.model, mgl32.Ident4(), fwd, false); err != nil {
		t.Fatal(err)
	}
	if err := b.AddCameraData(fwd, &batch.SceneInfo{View: mgl32.Ident4(), Projection: mgl32.Ident4()}); err != nil {
		t.Fatal(err)
	}
	b.Finish()
	return b
}

func (f *fixture) checkValidation(t *testing.T) {
	t.Helper()
	if v := f.dev.Validation(); len(v) != 0 {
		t.Fatalf("validation: %v", v)
	}
}

func TestPresentedImageMatchesDraw(t *testing.T) {
	f := newFixture(t, true)
	g := f.build(t, PresetDefault)
	b := f.scene(t, g)

	if err := g.Draw(context.Background(), 0, b); err != nil {
		t.Fatal(err)
	}
	f.checkValidation(t)

	presented := f.display.Presented()
	if len(presented) != 1 {
		t.Fatalf("presented %d frames, want 1", len(presented))
	}
	img, err := g.Image("draw")
	if err != nil {
		t.Fatal(err)
	}
	draw := img.(*gfxtest.Image).Content()
	want := []string{"dispatch:sky:5x3x1", "draw:color@forward:36", "draw:glass@forward:36"}
	if !slices.Equal(draw, want) {
		t.Errorf("draw content = %v, want %v", draw, want)
	}
	if !slices.Equal(presented[0].Content, draw) {
		t.Errorf("presented %v, draw attachment holds %v", presented[0].Content, draw)
	}

	st, ok := b.Stats().Pass(pass.ID(2))
	if !ok || st.Draws != 2 || st.Indices != 72 {
		t.Errorf("forward stats = %+v, %v", st, ok)
	}
}

func TestPresentedImageMatchesDrawEveryFrame(t *testing.T) {
	f := newFixture(t, true)
	g := f.build(t, PresetDefault)
	b := f.scene(t, g)
	ctx := context.Background()

	want := []string{"dispatch:sky:5x3x1", "draw:color@forward:36", "draw:glass@forward:36"}
	for n := range uint64(3) {
		if err := g.Draw(ctx, n, b); err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
		img, err := g.Image("draw")
		if err != nil {
			t.Fatal(err)
		}
		draw := img.(*gfxtest.Image).Content()
		if !slices.Equal(draw, want) {
			t.Errorf("frame %d: draw content = %v, want %v", n, draw, want)
		}
		presented := f.display.Presented()
		if len(presented) != int(n)+1 {
			t.Fatalf("frame %d: presented %d frames", n, len(presented))
		}
		if last := presented[n].Content; !slices.Equal(last, draw) {
			t.Errorf("frame %d: presented %v, draw attachment holds %v", n, last, draw)
		}
	}
	f.checkValidation(t)
}

func TestFramesInFlight(t *testing.T) {
	f := newFixture(t, false)
	f.dev.Deferred = true
	g := f.build(t, PresetHeadless)
	b := f.scene(t, g)
	ctx := context.Background()

	for n := range uint64(2) {
		if err := g.Draw(ctx, n, b); err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
	}
	if n := f.dev.Pending(); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}

	// Slot 0 still executes frame 0.
	if err := g.Frame(0).BeginRecording(2); !errors.Is(err, ErrFrameInFlight) {
		t.Fatalf("BeginRecording on busy slot = %v, want ErrFrameInFlight", err)
	}

	fr, err := g.Begin(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if fr.Slot != 0 || fr.Number != 2 {
		t.Errorf("frame 2 got slot %d number %d", fr.Slot, fr.Number)
	}
	// Begin waited for frame 0 only.
	if n := f.dev.Pending(); n != 1 {
		t.Errorf("pending after begin = %d, want 1", n)
	}
	if g.Frame(1).Fence.Signaled() {
		t.Error("slot 1 fence signaled before its frame completed")
	}
	if err := g.Render(fr, b); err != nil {
		t.Fatal(err)
	}
	if err := g.End(fr); err != nil {
		t.Fatal(err)
	}
	f.dev.Complete()
	f.checkValidation(t)
}

func TestSurfaceErrors(t *testing.T) {
	tests := []struct {
		name    string
		fail    func(d *gfxtest.Display)
		want    error
		wantOp  string
		wantErr error
	}{
		{"acquire outdated", func(d *gfxtest.Display) { d.FailNextAcquire(gfx.ErrSurfaceOutdated) }, ErrOutdated, "acquire", gfx.ErrSurfaceOutdated},
		{"acquire lost", func(d *gfxtest.Display) { d.FailNextAcquire(gfx.ErrSurfaceLost) }, ErrLost, "acquire", gfx.ErrSurfaceLost},
		{"present outdated", func(d *gfxtest.Display) { d.FailNextPresent(gfx.ErrSurfaceOutdated) }, ErrOutdated, "present", gfx.ErrSurfaceOutdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			g := f.build(t, PresetDefault)
			b := f.scene(t, g)
			ctx := context.Background()

			tt.fail(f.display)
			err := g.Draw(ctx, 0, b)
			if !errors.Is(err, tt.want) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Draw = %v, want %v", err, tt.want)
			}
			if !IsSurfaceError(err) {
				t.Errorf("IsSurfaceError(%v) = false", err)
			}
			var re *RenderError
			if !errors.As(err, &re) || re.Op != tt.wantOp {
				t.Errorf("error = %#v, want op %q", re, tt.wantOp)
			}

			// The slot stays usable.
			for n := uint64(1); n < 4; n++ {
				if err := g.Draw(ctx, n, b); err != nil {
					t.Fatalf("frame %d after failure: %v", n, err)
				}
			}
			f.checkValidation(t)
		})
	}
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.dev.Deferred = true
	g := f.build(t, PresetHeadless)
	// Uploads of the scene complete before the device stops progressing.
	b := f.scene(t, g)
	f.dev.Hung = true
	t.Cleanup(func() { f.dev.Hung = false })
	ctx := context.Background()

	for n := range uint64(2) {
		if err := g.Draw(ctx, n, b); err != nil {
			t.Fatal(err)
		}
	}
	err := g.Draw(ctx, 2, b)
	if !errors.Is(err, ErrFatal) || !errors.Is(err, gfx.ErrFenceTimeout) {
		t.Fatalf("Draw on hung device = %v", err)
	}
	var re *RenderError
	if !errors.As(err, &re) || re.Kind != KindFatal || re.Op != "begin" {
		t.Errorf("error = %#v", re)
	}
	if IsSurfaceError(err) {
		t.Error("fence timeout reported as surface error")
	}
}

func newBareGraph(t *testing.T, f *fixture) *Graph {
	t.Helper()
	g, err := New(f.ctx, WithMinRenderExtent(small))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Destroy)
	for _, a := range []Attachment{
		{Name: "draw", Kind: ColorAttachment, Format: gputypes.TextureFormatRGBA8Unorm},
		{Name: "depth", Kind: DepthAttachment, Format: gputypes.TextureFormatDepth24PlusStencil8},
	} {
		if err := g.AddAttachment(a); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestAddPassValidation(t *testing.T) {
	write := func(name string, usage pass.Usage) pass.AttachmentRef {
		return pass.AttachmentRef{Name: name, Usage: usage, Access: pass.Write}
	}
	tests := []struct {
		name string
		pass func(id pass.ID) pass.RenderPass
		want error
	}{
		{"wrong id", func(id pass.ID) pass.RenderPass { return pass.NewDummyPass(id+3, "x") }, ErrInvalidData},
		{"unknown attachment", func(id pass.ID) pass.RenderPass {
			return pass.NewDummyPass(id, "x", write("normals", pass.UsageColor))
		}, ErrUnknownAttachment},
		{"read before write", func(id pass.ID) pass.RenderPass { return pass.NewPresentPass(id, "present", "draw") }, ErrUndeclaredAttachment},
		{"depth use of color", func(id pass.ID) pass.RenderPass {
			return pass.NewDummyPass(id, "x", write("draw", pass.UsageDepth))
		}, ErrInvalidData},
		{"color use of depth", func(id pass.ID) pass.RenderPass {
			return pass.NewDummyPass(id, "x", write("depth", pass.UsageColor))
		}, ErrInvalidData},
		{"format mismatch", func(id pass.ID) pass.RenderPass {
			ref := write("draw", pass.UsageColor)
			ref.Format = gputypes.TextureFormatBGRA8Unorm
			return pass.NewDummyPass(id, "x", ref)
		}, ErrInvalidData},
		{"duplicate name", func(id pass.ID) pass.RenderPass { return pass.NewDummyPass(id, "clear") }, ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			g := newBareGraph(t, f)
			if err := g.AddPass(pass.NewDummyPass(0, "clear")); err != nil {
				t.Fatal(err)
			}
			err := g.AddPass(tt.pass(g.NextID()))
			if !errors.Is(err, tt.want) {
				t.Errorf("AddPass = %v, want %v", err, tt.want)
			}
			if n := len(g.Passes()); n != 1 {
				t.Errorf("graph holds %d passes after a rejected add", n)
			}
		})
	}
}

func TestPassLookup(t *testing.T) {
	f := newFixture(t, false)
	g := newBareGraph(t, f)
	rw := pass.AttachmentRef{Name: "draw", Usage: pass.UsageColor, Access: pass.ReadWrite}
	// A pass reading and writing the same attachment counts as its writer.
	if err := g.AddPass(pass.NewDummyPass(0, "paint", rw)); err != nil {
		t.Fatal(err)
	}
	if err := g.AddPass(pass.NewPresentPass(1, "present", "draw")); err != nil {
		t.Fatal(err)
	}

	if p, err := g.PassByID(1); err != nil || p.Name() != "present" {
		t.Errorf("PassByID(1) = %v, %v", p, err)
	}
	if p, err := g.PassByName("paint"); err != nil || p.ID() != 0 {
		t.Errorf("PassByName(paint) = %v, %v", p, err)
	}
	if p, err := g.PassByKind(pass.Present); err != nil || p.ID() != 1 {
		t.Errorf("PassByKind(present) = %v, %v", p, err)
	}
	for _, err := range []error{
		second(g.PassByID(7)),
		second(g.PassByName("forward")),
		second(g.PassByKind(pass.Forward)),
	} {
		if !errors.Is(err, ErrPassNotFound) {
			t.Errorf("lookup error = %v, want ErrPassNotFound", err)
		}
	}
}

func second[T any](_ T, err error) error { return err }

func TestAddAttachmentErrors(t *testing.T) {
	f := newFixture(t, false)
	g := newBareGraph(t, f)
	tests := []struct {
		name string
		a    Attachment
	}{
		{"empty name", Attachment{Format: gputypes.TextureFormatRGBA8Unorm}},
		{"no format", Attachment{Name: "hdr"}},
		{"duplicate", Attachment{Name: "draw", Format: gputypes.TextureFormatRGBA8Unorm}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddAttachment(tt.a); !errors.Is(err, ErrInvalidData) {
				t.Errorf("AddAttachment = %v, want ErrInvalidData", err)
			}
		})
	}
	if _, err := g.Image("hdr"); !errors.Is(err, ErrUnknownAttachment) {
		t.Errorf("Image(hdr) = %v", err)
	}

	fixed := Attachment{Name: "shadow", Kind: DepthAttachment, Format: gputypes.TextureFormatDepth24PlusStencil8, Extent: gfx.Extent2D{Width: 512, Height: 512}}
	if err := g.AddAttachment(fixed); err != nil {
		t.Fatal(err)
	}
	img, _ := g.Image("shadow")
	if img.Extent() != fixed.Extent {
		t.Errorf("shadow extent = %v", img.Extent())
	}
}

func TestRenderExtent(t *testing.T) {
	tests := []struct {
		name         string
		surface, min gfx.Extent2D
		scaling      float32
		render, draw gfx.Extent2D
	}{
		{"floor", gfx.Extent2D{Width: 20, Height: 10}, small, 1, small, small},
		{"larger surface", gfx.Extent2D{Width: 300, Height: 10}, small, 1, gfx.Extent2D{Width: 300, Height: 32}, gfx.Extent2D{Width: 300, Height: 32}},
		{"scaled", gfx.Extent2D{Width: 200, Height: 100}, small, 0.5, gfx.Extent2D{Width: 200, Height: 100}, gfx.Extent2D{Width: 100, Height: 50}},
		{"scaling ignored", gfx.Extent2D{Width: 200, Height: 100}, small, 2, gfx.Extent2D{Width: 200, Height: 100}, gfx.Extent2D{Width: 200, Height: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			g, err := New(f.ctx, WithMinRenderExtent(tt.min), WithRenderScaling(tt.scaling))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(g.Destroy)
			if _, err := g.Resize(tt.surface); err != nil {
				t.Fatal(err)
			}
			if g.RenderExtent() != tt.render || g.DrawExtent() != tt.draw {
				t.Errorf("render %v draw %v, want %v and %v", g.RenderExtent(), g.DrawExtent(), tt.render, tt.draw)
			}
		})
	}
}

func TestResize(t *testing.T) {
	f := newFixture(t, false)
	images := pool.NewImageAllocator("test")
	g := f.build(t, PresetHeadless, WithImageAllocator(images))
	b := f.scene(t, g)
	ctx := context.Background()

	if err := g.Draw(ctx, 0, b); err != nil {
		t.Fatal(err)
	}
	old, _ := g.Image("draw")

	changed, err := g.Resize(gfx.Extent2D{Width: 10, Height: 10})
	if err != nil || changed {
		t.Fatalf("resize below the floor = %v, %v", changed, err)
	}

	big := gfx.Extent2D{Width: 128, Height: 64}
	if changed, err = g.Resize(big); err != nil || !changed {
		t.Fatalf("Resize(%v) = %v, %v", big, changed, err)
	}
	img, _ := g.Image("draw")
	if img == old || img.Extent() != big {
		t.Errorf("draw image not recreated: %v", img.Extent())
	}
	if n := images.Idle(old.Family()); n != 1 {
		t.Errorf("old draw image idle = %d, want 1", n)
	}
	sky, _ := g.PassByName("sky")
	if x, y := sky.(*pass.ComputePass).Workgroups(); x != 9 || y != 5 {
		t.Errorf("sky workgroups = %dx%d, want 9x5", x, y)
	}
	if err := g.Draw(ctx, 1, b); err != nil {
		t.Fatal(err)
	}

	// Shrinking back reuses the parked image.
	if _, err := g.Resize(small); err != nil {
		t.Fatal(err)
	}
	if img, _ := g.Image("draw"); img != old {
		t.Error("resize back did not reuse the pooled image")
	}
	if err := g.Draw(ctx, 2, b); err != nil {
		t.Fatal(err)
	}
	f.checkValidation(t)
}

func TestResizeFailureKeepsExtent(t *testing.T) {
	f := newFixture(t, false)
	g := f.build(t, PresetHeadless)
	old, _ := g.Image("draw")
	big := gfx.Extent2D{Width: 128, Height: 64}

	f.dev.FailAllocations = true
	if _, err := g.Resize(big); err == nil {
		t.Fatal("Resize with failing allocations succeeded")
	}
	if g.RenderExtent() != small || g.DrawExtent() != small {
		t.Errorf("extent after failed resize: render %v draw %v", g.RenderExtent(), g.DrawExtent())
	}
	if img, _ := g.Image("draw"); img != old {
		t.Error("draw image replaced by a failed resize")
	}

	f.dev.FailAllocations = false
	changed, err := g.Resize(big)
	if err != nil || !changed {
		t.Fatalf("retry Resize(%v) = %v, %v", big, changed, err)
	}
	if img, _ := g.Image("draw"); img.Extent() != big {
		t.Errorf("draw extent after retry = %v, want %v", img.Extent(), big)
	}
	if err := g.Draw(context.Background(), 0, f.scene(t, g)); err != nil {
		t.Fatal(err)
	}
	f.checkValidation(t)
}

func TestReadAttachment(t *testing.T) {
	f := newFixture(t, false)
	g := f.build(t, PresetHeadless)
	if err := g.Draw(context.Background(), 0, f.scene(t, g)); err != nil {
		t.Fatal(err)
	}
	data, err := g.ReadAttachment("draw")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != small.Area()*4 {
		t.Errorf("read %d bytes, want %d", len(data), small.Area()*4)
	}
	if !bytes.HasPrefix(data, []byte("[dispatch:sky:5x3x1 draw:color@forward:36")) {
		t.Errorf("readback = %q", data[:48])
	}
	if _, err := g.ReadAttachment("normals"); !errors.Is(err, ErrUnknownAttachment) {
		t.Errorf("ReadAttachment(normals) = %v", err)
	}
	f.checkValidation(t)
}

func TestRetiredBuffersWaitForSlot(t *testing.T) {
	f := newFixture(t, false)
	g := f.build(t, PresetHeadless)
	b := f.scene(t, g)
	ctx := context.Background()

	buf, err := g.Buffers().Allocate(f.dev, "transient", 256, gfx.BufferFamilyVertex)
	if err != nil {
		t.Fatal(err)
	}

	fr, err := g.Begin(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	g.Retire(buf)
	if err := g.Render(fr, b); err != nil {
		t.Fatal(err)
	}
	if err := g.End(fr); err != nil {
		t.Fatal(err)
	}

	if err := g.Draw(ctx, 1, b); err != nil {
		t.Fatal(err)
	}
	if n := g.Buffers().Idle(gfx.BufferFamilyVertex); n != 0 {
		t.Fatalf("buffer recycled by another slot: idle = %d", n)
	}
	if err := g.Draw(ctx, 2, b); err != nil {
		t.Fatal(err)
	}
	if n := g.Buffers().Idle(gfx.BufferFamilyVertex); n != 1 {
		t.Fatalf("idle after slot reuse = %d, want 1", n)
	}

	// Between frames, objects wait for the frame that follows.
	if buf, err = g.Buffers().Allocate(f.dev, "transient", 256, gfx.BufferFamilyVertex); err != nil {
		t.Fatal(err)
	}
	released := 0
	g.Retire(buf)
	g.Defer(func() { released++ })
	for n := uint64(3); n < 5; n++ {
		if err := g.Draw(ctx, n, b); err != nil {
			t.Fatal(err)
		}
		if idle := g.Buffers().Idle(gfx.BufferFamilyVertex); idle != 0 || released != 0 {
			t.Fatalf("frame %d: released early (idle %d, releases %d)", n, idle, released)
		}
	}
	if err := g.Draw(ctx, 5, b); err != nil {
		t.Fatal(err)
	}
	if idle := g.Buffers().Idle(gfx.BufferFamilyVertex); idle != 1 || released != 1 {
		t.Errorf("after frame 5: idle %d, releases %d", idle, released)
	}
}

func TestUnloadedTextureOutlivesPendingFrames(t *testing.T) {
	f := newFixture(t, false)
	f.dev.Deferred = true
	g := f.build(t, PresetHeadless)
	f.reg.SetRetire(g.Retire, g.Defer)
	b := f.scene(t, g)
	ctx := context.Background()

	h := f.reg.Textures.Add(texture.New("white", texture.Solid(color.White, 4, 4)), resource.Static)
	tex, err := f.reg.Textures.GetData(h, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	img := tex.Image.(*gfxtest.Image)

	if err := g.Draw(ctx, 0, b); err != nil {
		t.Fatal(err)
	}
	if err := f.reg.Textures.Unload(h); err != nil {
		t.Fatal(err)
	}
	if f.dev.Pending() == 0 {
		t.Fatal("frame 0 already completed")
	}
	if img.Destroyed() {
		t.Fatal("texture image destroyed while a frame is pending")
	}
	for n := uint64(1); n < 4; n++ {
		if err := g.Draw(ctx, n, b); err != nil {
			t.Fatal(err)
		}
	}
	if !img.Destroyed() {
		t.Error("texture image not destroyed once its frame slot was reused")
	}
	f.checkValidation(t)
}

func TestTracing(t *testing.T) {
	f := newFixture(t, true)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	g := f.build(t, PresetUI, WithTracerProvider(tp))
	b := batch.New(f.reg)
	b.Finish()
	if err := g.Draw(context.Background(), 0, b); err != nil {
		t.Fatal(err)
	}
	f.display.FailNextAcquire(gfx.ErrSurfaceOutdated)
	if err := g.Draw(context.Background(), 1, b); !errors.Is(err, ErrOutdated) {
		t.Fatalf("Draw = %v", err)
	}

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	want := []string{"pass ui", "pass present", "frame", "frame"}
	if !slices.Equal(names, want) {
		t.Errorf("spans = %v, want %v", names, want)
	}
	failed := sr.Ended()[3]
	if failed.Status().Code != codes.Error || len(failed.Events()) == 0 {
		t.Errorf("failed frame span status %v events %d", failed.Status(), len(failed.Events()))
	}
	for _, kv := range failed.Attributes() {
		if kv.Key == "frame.number" && kv.Value.AsInt64() != 1 {
			t.Errorf("frame.number = %d", kv.Value.AsInt64())
		}
	}
}

func TestRenderErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
		is   error
	}{
		{"lost", gfx.ErrSurfaceLost, KindLost, ErrLost},
		{"outdated", gfx.ErrSurfaceOutdated, KindOutdated, ErrOutdated},
		{"device lost", gfx.ErrDeviceLost, KindFatal, ErrFatal},
		{"allocation", pool.ErrAllocation, KindFatal, ErrFatal},
		{"pipeline", pass.ErrInvalidPipeline, KindInvalidPipeline, pass.ErrInvalidPipeline},
		{"missing attachment", pass.ErrMissingAttachment, KindInvalidData, ErrInvalidData},
		{"not found", ErrPassNotFound, KindPassNotFound, ErrPassNotFound},
		{"other", gfx.ErrInvalidState, KindGfx, gfx.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := renderError("op", tt.err)
			var re *RenderError
			if !errors.As(err, &re) || re.Kind != tt.kind {
				t.Fatalf("renderError(%v) = %v, want kind %s", tt.err, err, tt.kind)
			}
			if !errors.Is(err, tt.is) || !errors.Is(err, tt.err) {
				t.Errorf("%v does not match %v", err, tt.is)
			}
			if again := renderError("outer", err); again != err {
				t.Errorf("renderError rewrapped %v", err)
			}
		})
	}
	if renderError("op", nil) != nil {
		t.Error("renderError(nil) != nil")
	}
}
