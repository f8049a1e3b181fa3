// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgfx implements the gfx device layer on top of gogpu/wgpu's
// hardware abstraction layer.
//
// A Device is opened from a registered HAL backend (Vulkan, or the noop
// backend for tests) or borrowed from a gpucontext provider such as a
// gogpu window. All submissions go to the single HAL queue and signal one
// timeline fence; gfx fences and WaitIdle wait on timeline values.
//
// HAL has no push constants. Pipelines with push data get a uniform
// binding group with a dynamic offset at PushGroup, fed from a per-recorder
// ring buffer that is uploaded right before the recorder is submitted.
package halgfx

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
)

// PushGroup is the binding group index of emulated push data. Shaders
// declare it as @group(2) @binding(0) var<uniform>.
const PushGroup = 2

const (
	// pushAlign is the dynamic uniform offset alignment.
	pushAlign = 256
	// DefaultPushCapacity is the push ring size of each recorder.
	DefaultPushCapacity = 256 * 1024
	idleTimeout         = 10 * time.Second
)

// Options configures a Device.
type Options struct {
	// Label prefixes object labels.
	Label string
	// PushCapacity is the push ring size of each recorder in bytes.
	PushCapacity int
}

// Device is a gfx.Device backed by a HAL device and queue.
type Device struct {
	hal      hal.Device
	queue    *Queue
	instance hal.Instance
	external bool
	opts     Options

	// All submissions signal timeline with increasing values.
	timeline  hal.Fence
	submitted atomic.Uint64

	// Shared layouts for emulated push data and padding groups.
	pushLayout  hal.BindGroupLayout
	emptyLayout hal.BindGroupLayout
	emptyGroup  hal.BindGroup

	blit *blitter

	nextID    atomic.Uint64
	mu        sync.Mutex
	destroyed bool
}

// New wraps a HAL device and queue. The caller keeps ownership of both.
func New(device hal.Device, queue hal.Queue, opts Options) (*Device, error) {
	if device == nil || queue == nil {
		return nil, gfx.ErrNilDevice
	}
	if opts.PushCapacity <= 0 {
		opts.PushCapacity = DefaultPushCapacity
	}
	d := &Device{hal: device, external: true, opts: opts}
	d.queue = &Queue{dev: d, hal: queue}
	d.nextID.Store(1)

	var err error
	if d.timeline, err = device.CreateFence(); err != nil {
		return nil, fmt.Errorf("halgfx: create timeline fence: %w", err)
	}
	d.pushLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: d.label("push"),
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment | gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, HasDynamicOffset: true},
		}},
	})
	if err != nil {
		device.DestroyFence(d.timeline)
		return nil, fmt.Errorf("halgfx: create push layout: %w", err)
	}
	d.emptyLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: d.label("empty")})
	if err != nil {
		device.DestroyBindGroupLayout(d.pushLayout)
		device.DestroyFence(d.timeline)
		return nil, fmt.Errorf("halgfx: create empty layout: %w", err)
	}
	d.emptyGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{Label: d.label("empty"), Layout: d.emptyLayout})
	if err != nil {
		device.DestroyBindGroupLayout(d.emptyLayout)
		device.DestroyBindGroupLayout(d.pushLayout)
		device.DestroyFence(d.timeline)
		return nil, fmt.Errorf("halgfx: create empty group: %w", err)
	}
	return d, nil
}

// Open creates an instance of the HAL backend and opens a device on its
// best adapter. Discrete and integrated GPUs are preferred. The device and
// instance are destroyed with the Device.
func Open(backend gputypes.Backend, opts Options) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("halgfx: %w: %v", gfx.ErrUnknownBackend, backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halgfx: create instance: %w", err)
	}
	d, err := openInstance(instance, opts)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openInstance(instance hal.Instance, opts Options) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("halgfx: no adapters: %w", gfx.ErrDeviceLost)
	}
	selected := &adapters[0]
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("halgfx: open %s: %w", selected.Info.Name, err)
	}
	d, err := New(open.Device, open.Queue, opts)
	if err != nil {
		open.Device.Destroy()
		return nil, err
	}
	d.instance = instance
	d.external = false
	logging.L().Info("halgfx: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.hal }

func (d *Device) label(s string) string {
	if d.opts.Label == "" {
		return s
	}
	return d.opts.Label + "-" + s
}

func (d *Device) id() uint64 { return d.nextID.Add(1) }

// CreateBuffer implements gfx.Device.
func (d *Device) CreateBuffer(desc *gfx.BufferDescriptor) (gfx.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("halgfx: buffer %q: size %d", desc.Label, desc.Size)
	}
	b, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(desc.Size),
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: buffer %q: %w: %w", desc.Label, gfx.ErrOutOfMemory, err)
	}
	// HAL buffers have no device address; the id keeps addresses unique.
	return &Buffer{dev: d, hal: b, label: desc.Label, size: desc.Size, usage: desc.Usage, addr: d.id() << 32}, nil
}

// CreateImage implements gfx.Device.
func (d *Device) CreateImage(desc *gfx.ImageDescriptor) (gfx.Image, error) {
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("halgfx: image %q: extent %v", desc.Label, desc.Extent)
	}
	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         imageUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: image %q: %w: %w", desc.Label, gfx.ErrOutOfMemory, err)
	}
	view, err := d.hal.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label,
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.hal.DestroyTexture(tex)
		return nil, fmt.Errorf("halgfx: image %q view: %w", desc.Label, err)
	}
	return &Image{dev: d, tex: tex, view: view, desc: *desc}, nil
}

// CreateSampler implements gfx.Device.
func (d *Device) CreateSampler(desc *gfx.SamplerDescriptor) (gfx.Sampler, error) {
	filter := gputypes.FilterModeLinear
	if desc.Filter == gfx.FilterNearest {
		filter = gputypes.FilterModeNearest
	}
	wrap := gputypes.AddressModeClampToEdge
	if desc.Wrap == gfx.WrapRepeat {
		wrap = gputypes.AddressModeRepeat
	}
	s, err := d.hal.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: wrap,
		AddressModeV: wrap,
		AddressModeW: wrap,
		MagFilter:    filter,
		MinFilter:    filter,
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: sampler %q: %w", desc.Label, err)
	}
	return &Sampler{dev: d, hal: s, label: desc.Label}, nil
}

// CreateShader implements gfx.Device. SPIR-V is preferred when present.
func (d *Device) CreateShader(desc *gfx.ShaderDescriptor) (gfx.Shader, error) {
	src := hal.ShaderSource{WGSL: desc.WGSL}
	if len(desc.SPIRV) > 0 {
		src = hal.ShaderSource{SPIRV: desc.SPIRV}
	}
	if src.WGSL == "" && len(src.SPIRV) == 0 {
		return nil, fmt.Errorf("halgfx: shader %q: no source", desc.Label)
	}
	m, err := d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: src})
	if err != nil {
		return nil, fmt.Errorf("halgfx: shader %q: %w", desc.Label, err)
	}
	return &Shader{dev: d, hal: m, label: desc.Label}, nil
}

// CreateBindingGroupLayout implements gfx.Device.
func (d *Device) CreateBindingGroupLayout(desc *gfx.BindingGroupLayoutDescriptor) (gfx.BindingGroupLayout, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = layoutEntry(e)
	}
	l, err := d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("halgfx: binding layout %q: %w", desc.Label, err)
	}
	return &BindingGroupLayout{dev: d, hal: l, label: desc.Label, entries: append([]gfx.BindingLayoutEntry(nil), desc.Entries...)}, nil
}

// CreateBindingGroupPool implements gfx.Device. HAL has no descriptor
// pools; the pool tracks the groups it created and destroys them on Reset.
func (d *Device) CreateBindingGroupPool(label string, layout gfx.BindingGroupLayout, capacity int) (gfx.BindingGroupPool, error) {
	l, ok := layout.(*BindingGroupLayout)
	if !ok {
		return nil, fmt.Errorf("halgfx: binding pool %q: foreign layout %T", label, layout)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("halgfx: binding pool %q: capacity %d", label, capacity)
	}
	return &BindingGroupPool{dev: d, label: label, layout: l, capacity: capacity}, nil
}

// pipelineLayout builds the HAL pipeline layout for the given groups plus
// the push group when push is non-zero.
func (d *Device) pipelineLayout(label string, layouts []gfx.BindingGroupLayout, push uint32) (hal.PipelineLayout, error) {
	groups := make([]hal.BindGroupLayout, 0, max(len(layouts), PushGroup+1))
	for _, l := range layouts {
		hl, ok := l.(*BindingGroupLayout)
		if !ok {
			return nil, fmt.Errorf("halgfx: pipeline %q: foreign layout %T", label, l)
		}
		groups = append(groups, hl.hal)
	}
	if push > 0 {
		if len(groups) > PushGroup {
			return nil, fmt.Errorf("halgfx: pipeline %q: %d binding groups leave no room for push data", label, len(groups))
		}
		for len(groups) < PushGroup {
			groups = append(groups, d.emptyLayout)
		}
		groups = append(groups, d.pushLayout)
	}
	return d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label, BindGroupLayouts: groups})
}

// CreateRenderPipeline implements gfx.Device.
func (d *Device) CreateRenderPipeline(desc *gfx.RenderPipelineDescriptor) (gfx.Pipeline, error) {
	vs, ok := desc.Vertex.Shader.(*Shader)
	if !ok {
		return nil, fmt.Errorf("halgfx: pipeline %q: vertex shader %T", desc.Label, desc.Vertex.Shader)
	}
	layout, err := d.pipelineLayout(desc.Label, desc.BindingLayouts, desc.PushSize)
	if err != nil {
		return nil, err
	}
	hd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs.hal,
			EntryPoint: desc.Vertex.Entry,
			Buffers:    vertexBuffers(desc),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology(desc.Topology),
			CullMode: cullMode(desc.Cull),
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if desc.Fragment.Shader != nil {
		fs, ok := desc.Fragment.Shader.(*Shader)
		if !ok {
			d.hal.DestroyPipelineLayout(layout)
			return nil, fmt.Errorf("halgfx: pipeline %q: fragment shader %T", desc.Label, desc.Fragment.Shader)
		}
		hd.Fragment = &hal.FragmentState{
			Module:     fs.hal,
			EntryPoint: desc.Fragment.Entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.ColorFormat,
				Blend:     blendState(desc.Blend),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		}
	}
	if desc.DepthFormat != gputypes.TextureFormatUndefined {
		compare := gputypes.CompareFunctionAlways
		if desc.DepthTest {
			compare = gputypes.CompareFunctionLessEqual
		}
		hd.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthFormat,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways, FailOp: hal.StencilOperationKeep, DepthFailOp: hal.StencilOperationKeep, PassOp: hal.StencilOperationKeep},
			StencilBack:       hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways, FailOp: hal.StencilOperationKeep, DepthFailOp: hal.StencilOperationKeep, PassOp: hal.StencilOperationKeep},
		}
	}
	p, err := d.hal.CreateRenderPipeline(hd)
	if err != nil {
		d.hal.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("halgfx: render pipeline %q: %w", desc.Label, err)
	}
	return &Pipeline{
		dev: d, id: gfx.PipelineID(d.id()), label: desc.Label, kind: gfx.PipelineGraphics,
		layouts: desc.BindingLayouts, push: desc.PushSize, layout: layout, render: p,
	}, nil
}

// CreateComputePipeline implements gfx.Device.
func (d *Device) CreateComputePipeline(desc *gfx.ComputePipelineDescriptor) (gfx.Pipeline, error) {
	cs, ok := desc.Compute.Shader.(*Shader)
	if !ok {
		return nil, fmt.Errorf("halgfx: pipeline %q: compute shader %T", desc.Label, desc.Compute.Shader)
	}
	layout, err := d.pipelineLayout(desc.Label, desc.BindingLayouts, desc.PushSize)
	if err != nil {
		return nil, err
	}
	p, err := d.hal.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: cs.hal, EntryPoint: desc.Compute.Entry},
	})
	if err != nil {
		d.hal.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("halgfx: compute pipeline %q: %w", desc.Label, err)
	}
	return &Pipeline{
		dev: d, id: gfx.PipelineID(d.id()), label: desc.Label, kind: gfx.PipelineCompute,
		layouts: desc.BindingLayouts, push: desc.PushSize, layout: layout, compute: p,
	}, nil
}

// CreateCommandRecorder implements gfx.Device. Both queue types map to the
// single HAL queue.
func (d *Device) CreateCommandRecorder(label string, queue gfx.QueueType) (gfx.CommandRecorder, error) {
	enc, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("halgfx: recorder %q: %w", label, err)
	}
	r := &Recorder{dev: d, enc: enc, label: label, queue: queue, push: make([]byte, 0, d.opts.PushCapacity)}
	if err := r.createPushRing(); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateFence implements gfx.Device.
func (d *Device) CreateFence(label string, signaled bool) (gfx.Fence, error) {
	return &Fence{dev: d, label: label, signaled: signaled}, nil
}

// CreateSemaphore implements gfx.Device. Work on the single HAL queue runs
// in submission order, so semaphores carry no state.
func (d *Device) CreateSemaphore(label string) (gfx.Semaphore, error) {
	return &Semaphore{label: label}, nil
}

// Queue implements gfx.Device.
func (d *Device) Queue(gfx.QueueType) gfx.Queue { return d.queue }

// waitValue blocks until the timeline reached v.
func (d *Device) waitValue(v uint64, timeout time.Duration) error {
	if v == 0 {
		return nil
	}
	ok, err := d.hal.Wait(d.timeline, v, timeout)
	if err != nil {
		return fmt.Errorf("halgfx: wait %d: %w: %w", v, gfx.ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("halgfx: wait %d after %v: %w", v, timeout, gfx.ErrFenceTimeout)
	}
	return nil
}

// WaitIdle implements gfx.Device.
func (d *Device) WaitIdle() error {
	return d.waitValue(d.submitted.Load(), idleTimeout)
}

// Destroy implements gfx.Device. The HAL device is destroyed only when it
// was opened by this package.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	if err := d.WaitIdle(); err != nil {
		logging.L().Warn("halgfx: destroy", "err", err)
	}
	if d.blit != nil {
		d.destroyBlitter(d.blit)
		d.blit = nil
	}
	d.hal.DestroyBindGroup(d.emptyGroup)
	d.hal.DestroyBindGroupLayout(d.emptyLayout)
	d.hal.DestroyBindGroupLayout(d.pushLayout)
	d.hal.DestroyFence(d.timeline)
	if !d.external {
		d.hal.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
}
