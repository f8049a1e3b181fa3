// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

const computeWGSL = `
@group(2) @binding(0) var<uniform> draw_data: vec4<f32>;

@compute @workgroup_size(8, 8)
fn main() {}
`

func noopDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	dev, _, err := OpenNoop(gfx.BackendOptions{Label: opts.Label})
	if err != nil {
		t.Fatal(err)
	}
	d := dev.(*Device)
	if opts.PushCapacity > 0 {
		d.opts.PushCapacity = opts.PushCapacity
	}
	t.Cleanup(d.Destroy)
	return d
}

func recorder(t *testing.T, d *Device) *Recorder {
	t.Helper()
	cmd, err := d.CreateCommandRecorder("test", gfx.QueueGraphics)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cmd.Destroy)
	return cmd.(*Recorder)
}

func computePipeline(t *testing.T, d *Device, push uint32) gfx.Pipeline {
	t.Helper()
	sh, err := d.CreateShader(&gfx.ShaderDescriptor{Label: "compute", WGSL: computeWGSL})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sh.Destroy)
	p, err := d.CreateComputePipeline(&gfx.ComputePipelineDescriptor{
		Label:    "compute",
		Compute:  gfx.ShaderEntry{Shader: sh, Entry: "main"},
		PushSize: push,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func TestFenceSignalsOnSubmit(t *testing.T) {
	d := noopDevice(t, Options{})
	cmd := recorder(t, d)
	fence, err := d.CreateFence("frame", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := fence.Wait(0); !errors.Is(err, gfx.ErrFenceTimeout) {
		t.Fatalf("wait on unsubmitted fence = %v", err)
	}
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cmd.End(); err != nil {
		t.Fatal(err)
	}
	if err := d.Queue(gfx.QueueGraphics).Submit(cmd, gfx.SubmitInfo{Fence: fence}); err != nil {
		t.Fatal(err)
	}
	if err := fence.Wait(gfx.DefaultFenceTimeout); err != nil {
		t.Fatal(err)
	}
	if !fence.Signaled() {
		t.Error("fence not signaled after wait")
	}
	if err := d.Queue(gfx.QueueGraphics).Submit(cmd, gfx.SubmitInfo{}); !errors.Is(err, gfx.ErrInvalidState) {
		t.Errorf("resubmit pending recorder = %v", err)
	}
	if err := cmd.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := fence.Reset(); err != nil || fence.Signaled() {
		t.Errorf("reset fence: signaled %v, %v", fence.Signaled(), err)
	}
	if err := d.WaitIdle(); err != nil {
		t.Error(err)
	}
}

func TestRecorderStates(t *testing.T) {
	d := noopDevice(t, Options{})
	cmd := recorder(t, d)
	queue := d.Queue(gfx.QueueGraphics)

	if err := queue.Submit(cmd, gfx.SubmitInfo{}); !errors.Is(err, gfx.ErrInvalidState) {
		t.Errorf("submit before End = %v", err)
	}
	if err := cmd.End(); !errors.Is(err, gfx.ErrInvalidState) {
		t.Errorf("End before Begin = %v", err)
	}
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Begin(); !errors.Is(err, gfx.ErrInvalidState) {
		t.Errorf("second Begin = %v", err)
	}
	if err := cmd.Reset(); err != nil {
		t.Fatal(err)
	}
	if cmd.state != stateInitial {
		t.Errorf("state after Reset = %s", cmd.state)
	}
}

func TestRecordingErrors(t *testing.T) {
	tests := []struct {
		name   string
		record func(t *testing.T, d *Device, cmd *Recorder)
		want   error
	}{
		{"draw outside rendering", func(t *testing.T, d *Device, cmd *Recorder) {
			cmd.Draw(3, 0)
		}, gfx.ErrInvalidState},
		{"dispatch without pipeline", func(t *testing.T, d *Device, cmd *Recorder) {
			cmd.Dispatch(1, 1, 1)
		}, gfx.ErrInvalidState},
		{"end rendering without begin", func(t *testing.T, d *Device, cmd *Recorder) {
			cmd.EndRendering()
		}, gfx.ErrInvalidState},
		{"push overflow", func(t *testing.T, d *Device, cmd *Recorder) {
			p := computePipeline(t, d, 64)
			cmd.BindPipeline(p)
			for range 3 {
				cmd.PushConstants(p, make([]byte, 64))
				cmd.Dispatch(1, 1, 1)
			}
		}, errPushOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := noopDevice(t, Options{PushCapacity: 2 * pushAlign})
			cmd := recorder(t, d)
			if err := cmd.Begin(); err != nil {
				t.Fatal(err)
			}
			tt.record(t, d, cmd)
			if err := cmd.End(); !errors.Is(err, tt.want) {
				t.Errorf("End = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScaledImageCopyBlits(t *testing.T) {
	d := noopDevice(t, Options{})
	cmd := recorder(t, d)
	img := func(e gfx.Extent2D) gfx.Image {
		i, err := d.CreateImage(&gfx.ImageDescriptor{
			Label: e.String(), Format: gputypes.TextureFormatRGBA8Unorm, Extent: e,
			Usage: gfx.ImageUsageColor | gfx.ImageUsageSampled | gfx.ImageUsageTransferSrc | gfx.ImageUsageTransferDst,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(i.Destroy)
		return i
	}
	small, big := gfx.Extent2D{Width: 16, Height: 16}, gfx.Extent2D{Width: 32, Height: 32}
	src, dst := img(small), img(big)

	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	cmd.TransitionImage(src, gfx.LayoutTransferSrc)
	cmd.TransitionImage(dst, gfx.LayoutTransferDst)
	if src.Layout() != gfx.LayoutTransferSrc || dst.Layout() != gfx.LayoutTransferDst {
		t.Errorf("layouts %s, %s", src.Layout(), dst.Layout())
	}
	cmd.CopyImageToImage(src, dst, small, big)
	cmd.CopyImageToImage(src, dst, small, big)
	if err := cmd.End(); err != nil {
		t.Fatal(err)
	}
	if len(cmd.transient) != 2 || len(cmd.push) != 2*pushAlign {
		t.Errorf("blits left %d groups and %d push bytes", len(cmd.transient), len(cmd.push))
	}
	if src.Layout() != gfx.LayoutTransferSrc || dst.Layout() != gfx.LayoutTransferDst {
		t.Errorf("blit changed layouts to %s, %s", src.Layout(), dst.Layout())
	}
	if err := d.Queue(gfx.QueueGraphics).Submit(cmd, gfx.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Reset(); err != nil {
		t.Fatal(err)
	}
	if len(cmd.transient) != 0 {
		t.Errorf("%d blit groups survived Reset", len(cmd.transient))
	}
}

func TestBindingGroupPoolExhausted(t *testing.T) {
	d := noopDevice(t, Options{})
	layout, err := d.CreateBindingGroupLayout(&gfx.BindingGroupLayoutDescriptor{
		Label:   "scene",
		Entries: []gfx.BindingLayoutEntry{{Binding: 0, Kind: gfx.BindingUniformBuffer, Stages: gfx.StageVertex}},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer layout.Destroy()
	buf, err := d.CreateBuffer(&gfx.BufferDescriptor{Label: "scene", Size: 256, Usage: gfx.BufferFamilyUniform})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()
	pool, err := d.CreateBindingGroupPool("scene", layout, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Destroy()

	entries := []gfx.BindingEntry{{Binding: 0, Buffer: buf}}
	for range 2 {
		if _, err := pool.Allocate("scene", entries); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := pool.Allocate("scene", entries); !errors.Is(err, gfx.ErrPoolExhausted) {
		t.Errorf("allocate past capacity = %v", err)
	}
	if _, err := pool.Allocate("scene", nil); err == nil {
		t.Error("allocate with missing entries succeeded")
	}
	pool.Reset()
	if pool.Len() != 0 {
		t.Errorf("Len after Reset = %d", pool.Len())
	}
}

func TestPushNeedsFreeGroup(t *testing.T) {
	d := noopDevice(t, Options{})
	layout, err := d.CreateBindingGroupLayout(&gfx.BindingGroupLayoutDescriptor{Label: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	defer layout.Destroy()
	sh, err := d.CreateShader(&gfx.ShaderDescriptor{Label: "compute", WGSL: computeWGSL})
	if err != nil {
		t.Fatal(err)
	}
	defer sh.Destroy()
	_, err = d.CreateComputePipeline(&gfx.ComputePipelineDescriptor{
		Label:          "three-groups",
		Compute:        gfx.ShaderEntry{Shader: sh, Entry: "main"},
		BindingLayouts: []gfx.BindingGroupLayout{layout, layout, layout},
		PushSize:       16,
	})
	if err == nil {
		t.Error("pipeline with three groups and push data was created")
	}
}

func TestBufferBounds(t *testing.T) {
	d := noopDevice(t, Options{})
	buf, err := d.CreateBuffer(&gfx.BufferDescriptor{Label: "vertices", Size: 64, Usage: gfx.BufferFamilyVertex})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()
	q := d.Queue(gfx.QueueTransfer)
	if err := q.WriteBuffer(buf, 0, make([]byte, 64)); err != nil {
		t.Error(err)
	}
	if err := q.WriteBuffer(buf, 32, make([]byte, 64)); err == nil {
		t.Error("write past the end succeeded")
	}
	if _, err := d.CreateBuffer(&gfx.BufferDescriptor{Label: "empty"}); err == nil {
		t.Error("zero-sized buffer created")
	}
	other, err := d.CreateBuffer(&gfx.BufferDescriptor{Label: "other", Size: 64, Usage: gfx.BufferFamilyVertex})
	if err != nil {
		t.Fatal(err)
	}
	defer other.Destroy()
	if buf.Address() == other.Address() {
		t.Error("buffers share a device address")
	}
}

func TestDisplay(t *testing.T) {
	d := noopDevice(t, Options{})
	extent := gfx.Extent2D{Width: 32, Height: 16}
	disp, err := NewDisplay(d, extent, gputypes.TextureFormatUndefined, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer disp.Destroy()
	if disp.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v", disp.Format())
	}
	if disp.RenderTarget() != nil {
		t.Error("render target before acquire")
	}

	var seen []gfx.Image
	for i := range 3 {
		if err := disp.Acquire(i, nil); err != nil {
			t.Fatal(err)
		}
		seen = append(seen, disp.RenderTarget())
		if err := disp.Present(i, nil); err != nil {
			t.Fatal(err)
		}
	}
	if seen[0] != seen[2] || seen[0] == seen[1] {
		t.Error("display does not cycle through its images")
	}
	if disp.Presents() != 3 {
		t.Errorf("Presents() = %d", disp.Presents())
	}

	disp.FailNextAcquire(gfx.ErrSurfaceLost)
	if err := disp.Acquire(3, nil); !errors.Is(err, gfx.ErrSurfaceLost) {
		t.Errorf("Acquire = %v", err)
	}
	if err := disp.Resize(gfx.Extent2D{}); !errors.Is(err, gfx.ErrSurfaceOutdated) {
		t.Errorf("zero Resize = %v", err)
	}
	big := gfx.Extent2D{Width: 64, Height: 64}
	if err := disp.Resize(big); err != nil {
		t.Fatal(err)
	}
	if err := disp.Present(0, nil); !errors.Is(err, gfx.ErrInvalidState) {
		t.Errorf("present after resize = %v", err)
	}
	if err := disp.Acquire(0, nil); err != nil {
		t.Fatal(err)
	}
	if disp.Current().Extent() != big {
		t.Errorf("extent = %v", disp.Current().Extent())
	}
}

type bareProvider struct{ gpucontext.DeviceProvider }

type foreignProvider struct{ gpucontext.DeviceProvider }

func (foreignProvider) HalDevice() any { return "device" }
func (foreignProvider) HalQueue() any  { return "queue" }

func TestFromProviderRejectsNonHAL(t *testing.T) {
	for _, p := range []gpucontext.DeviceProvider{bareProvider{}, foreignProvider{}} {
		if _, _, err := FromProvider(p, gfx.Extent2D{}, Options{}); !errors.Is(err, ErrNoHAL) {
			t.Errorf("FromProvider(%T) = %v", p, err)
		}
	}
}

func TestRegistry(t *testing.T) {
	if !slices.Contains(gfx.Backends(), "noop") {
		t.Fatalf("backends = %v", gfx.Backends())
	}
	dev, disp, err := gfx.Open("noop", gfx.BackendOptions{Extent: gfx.Extent2D{Width: 8, Height: 8}, Label: "reg"})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Destroy()
	hd, ok := disp.(*Display)
	if !ok {
		t.Fatalf("display is %T", disp)
	}
	defer hd.Destroy()

	ctx, err := gfx.NewContext(dev, disp, gfx.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	src, err := dev.CreateBuffer(&gfx.BufferDescriptor{Label: "staging", Size: 16, Usage: gfx.BufferFamilyStaging})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Destroy()
	dst, err := dev.CreateBuffer(&gfx.BufferDescriptor{Label: "vertices", Size: 16, Usage: gfx.BufferFamilyVertex})
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Destroy()
	err = ctx.RunTransfer("upload", func(cmd gfx.CommandRecorder) error {
		cmd.CopyBuffer(src, dst, gfx.BufferCopy{Size: 16})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
