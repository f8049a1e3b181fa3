// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/gfx"
)

// Buffer wraps a HAL buffer.
type Buffer struct {
	dev   *Device
	hal   hal.Buffer
	label string
	size  int
	usage gfx.BufferUsage
	addr  uint64
}

func (b *Buffer) Label() string           { return b.label }
func (b *Buffer) Size() int               { return b.size }
func (b *Buffer) Usage() gfx.BufferUsage  { return b.usage }
func (b *Buffer) Family() gfx.BufferUsage { return b.usage }
func (b *Buffer) Address() uint64         { return b.addr }

// HAL returns the underlying HAL buffer.
func (b *Buffer) HAL() hal.Buffer { return b.hal }

func (b *Buffer) Destroy() {
	if b.hal != nil {
		b.dev.hal.DestroyBuffer(b.hal)
		b.hal = nil
	}
}

// Image wraps a HAL texture and its default view. The layout is tracked
// at record time.
type Image struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	desc   gfx.ImageDescriptor
	layout gfx.ImageLayout
	// Display images are destroyed by their display.
	borrowed bool
}

func (i *Image) Label() string                  { return i.desc.Label }
func (i *Image) Format() gputypes.TextureFormat { return i.desc.Format }
func (i *Image) Usage() gfx.ImageUsage          { return i.desc.Usage }
func (i *Image) Extent() gfx.Extent2D           { return i.desc.Extent }
func (i *Image) Size() int                      { return i.desc.Extent.Area() * gfx.BytesPerPixel(i.desc.Format) }
func (i *Image) Family() gfx.ImageFamily        { return i.desc.Family() }
func (i *Image) Layout() gfx.ImageLayout        { return i.layout }

func (i *Image) Destroy() {
	if i.borrowed || i.tex == nil {
		return
	}
	i.dev.hal.DestroyTextureView(i.view)
	i.dev.hal.DestroyTexture(i.tex)
	i.tex, i.view = nil, nil
}

func (i *Image) extent3D() hal.Extent3D {
	return hal.Extent3D{Width: i.desc.Extent.Width, Height: i.desc.Extent.Height, DepthOrArrayLayers: 1}
}

// Sampler wraps a HAL sampler.
type Sampler struct {
	dev   *Device
	hal   hal.Sampler
	label string
}

func (s *Sampler) Label() string { return s.label }
func (s *Sampler) Destroy()      { s.dev.hal.DestroySampler(s.hal) }

// Shader wraps a HAL shader module.
type Shader struct {
	dev   *Device
	hal   hal.ShaderModule
	label string
}

func (s *Shader) Label() string { return s.label }
func (s *Shader) Destroy()      { s.dev.hal.DestroyShaderModule(s.hal) }

// BindingGroupLayout wraps a HAL bind group layout.
type BindingGroupLayout struct {
	dev     *Device
	hal     hal.BindGroupLayout
	label   string
	entries []gfx.BindingLayoutEntry
}

func (l *BindingGroupLayout) Label() string                     { return l.label }
func (l *BindingGroupLayout) Entries() []gfx.BindingLayoutEntry { return l.entries }
func (l *BindingGroupLayout) Destroy()                          { l.dev.hal.DestroyBindGroupLayout(l.hal) }

// BindingGroup wraps a HAL bind group owned by a pool.
type BindingGroup struct {
	hal     hal.BindGroup
	label   string
	layout  *BindingGroupLayout
	entries []gfx.BindingEntry
}

func (g *BindingGroup) Label() string                  { return g.label }
func (g *BindingGroup) Layout() gfx.BindingGroupLayout { return g.layout }
func (g *BindingGroup) Entries() []gfx.BindingEntry    { return g.entries }

// BindingGroupPool hands out bind groups of one layout up to its capacity.
type BindingGroupPool struct {
	dev      *Device
	label    string
	layout   *BindingGroupLayout
	capacity int
	groups   []*BindingGroup
}

// Allocate implements gfx.BindingGroupPool.
func (p *BindingGroupPool) Allocate(label string, entries []gfx.BindingEntry) (gfx.BindingGroup, error) {
	if len(p.groups) >= p.capacity {
		return nil, fmt.Errorf("halgfx: pool %q: %w", p.label, gfx.ErrPoolExhausted)
	}
	if len(entries) != len(p.layout.entries) {
		return nil, fmt.Errorf("halgfx: group %q: %d entries for layout %q with %d", label, len(entries), p.layout.label, len(p.layout.entries))
	}
	he := make([]gputypes.BindGroupEntry, len(entries))
	for i, e := range entries {
		var err error
		if he[i], err = bindGroupEntry(e); err != nil {
			return nil, fmt.Errorf("halgfx: group %q: %w", label, err)
		}
	}
	bg, err := p.dev.hal.CreateBindGroup(&hal.BindGroupDescriptor{Label: label, Layout: p.layout.hal, Entries: he})
	if err != nil {
		return nil, fmt.Errorf("halgfx: group %q: %w", label, err)
	}
	g := &BindingGroup{hal: bg, label: label, layout: p.layout, entries: append([]gfx.BindingEntry(nil), entries...)}
	p.groups = append(p.groups, g)
	return g, nil
}

func bindGroupEntry(e gfx.BindingEntry) (gputypes.BindGroupEntry, error) {
	entry := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != nil:
		b, ok := e.Buffer.(*Buffer)
		if !ok {
			return entry, fmt.Errorf("binding %d: foreign buffer %T", e.Binding, e.Buffer)
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		entry.Resource = gputypes.BufferBinding{Buffer: b.hal.NativeHandle(), Offset: uint64(e.Offset), Size: uint64(size)}
	case e.Image != nil:
		img, ok := e.Image.(*Image)
		if !ok {
			return entry, fmt.Errorf("binding %d: foreign image %T", e.Binding, e.Image)
		}
		entry.Resource = gputypes.TextureViewBinding{TextureView: img.view.NativeHandle()}
	case e.Sampler != nil:
		s, ok := e.Sampler.(*Sampler)
		if !ok {
			return entry, fmt.Errorf("binding %d: foreign sampler %T", e.Binding, e.Sampler)
		}
		entry.Resource = gputypes.SamplerBinding{Sampler: s.hal.NativeHandle()}
	default:
		return entry, fmt.Errorf("binding %d: no resource", e.Binding)
	}
	return entry, nil
}

// Reset implements gfx.BindingGroupPool.
func (p *BindingGroupPool) Reset() {
	for _, g := range p.groups {
		p.dev.hal.DestroyBindGroup(g.hal)
	}
	p.groups = p.groups[:0]
}

func (p *BindingGroupPool) Len() int      { return len(p.groups) }
func (p *BindingGroupPool) Capacity() int { return p.capacity }
func (p *BindingGroupPool) Destroy()      { p.Reset() }

// Pipeline is a HAL render or compute pipeline with its layout.
type Pipeline struct {
	dev     *Device
	id      gfx.PipelineID
	label   string
	kind    gfx.PipelineKind
	layouts []gfx.BindingGroupLayout
	push    uint32

	layout  hal.PipelineLayout
	render  hal.RenderPipeline
	compute hal.ComputePipeline
}

func (p *Pipeline) ID() gfx.PipelineID                       { return p.id }
func (p *Pipeline) Label() string                            { return p.label }
func (p *Pipeline) Kind() gfx.PipelineKind                   { return p.kind }
func (p *Pipeline) BindingLayouts() []gfx.BindingGroupLayout { return p.layouts }
func (p *Pipeline) PushSize() uint32                         { return p.push }

func (p *Pipeline) Destroy() {
	if p.render != nil {
		p.dev.hal.DestroyRenderPipeline(p.render)
	}
	if p.compute != nil {
		p.dev.hal.DestroyComputePipeline(p.compute)
	}
	p.dev.hal.DestroyPipelineLayout(p.layout)
}

// Fence is a point on the device timeline. A submission arms it with the
// timeline value it signals.
type Fence struct {
	dev      *Device
	label    string
	target   uint64
	signaled bool
}

func (f *Fence) Label() string  { return f.label }
func (f *Fence) Signaled() bool { return f.signaled }
func (f *Fence) Destroy()       {}

// Reset implements gfx.Fence.
func (f *Fence) Reset() error {
	f.signaled = false
	f.target = 0
	return nil
}

// Wait implements gfx.Fence. Waiting on a reset fence that was never
// submitted times out immediately.
func (f *Fence) Wait(timeout time.Duration) error {
	if f.signaled {
		return nil
	}
	if f.target == 0 {
		return fmt.Errorf("halgfx: fence %q not submitted: %w", f.label, gfx.ErrFenceTimeout)
	}
	if err := f.dev.waitValue(f.target, timeout); err != nil {
		return fmt.Errorf("halgfx: fence %q: %w", f.label, err)
	}
	f.signaled = true
	return nil
}

// Semaphore is an ordering token. The single HAL queue already executes
// submissions in order.
type Semaphore struct {
	label string
}

func (s *Semaphore) Label() string { return s.label }
func (s *Semaphore) Destroy()      {}

// Queue submits recorders to the HAL queue.
type Queue struct {
	dev *Device
	hal hal.Queue
}

// Submit implements gfx.Queue. The recorder's push data is uploaded before
// its commands are submitted.
func (q *Queue) Submit(cmd gfx.CommandRecorder, info gfx.SubmitInfo) error {
	r, ok := cmd.(*Recorder)
	if !ok {
		return fmt.Errorf("halgfx: submit foreign recorder %T", cmd)
	}
	if r.state != stateExecutable {
		return fmt.Errorf("halgfx: submit %q in state %s: %w", r.label, r.state, gfx.ErrInvalidState)
	}
	var fence *Fence
	if info.Fence != nil {
		if fence, ok = info.Fence.(*Fence); !ok {
			return fmt.Errorf("halgfx: submit with foreign fence %T", info.Fence)
		}
		if fence.signaled {
			return fmt.Errorf("halgfx: submit with signaled fence %q: %w", fence.label, gfx.ErrInvalidState)
		}
	}
	if len(r.push) > 0 {
		q.hal.WriteBuffer(r.pushRing, 0, r.push)
	}
	v := q.dev.submitted.Add(1)
	if err := q.hal.Submit([]hal.CommandBuffer{r.cmdBuf}, q.dev.timeline, v); err != nil {
		return fmt.Errorf("halgfx: submit %q: %w: %w", r.label, gfx.ErrDeviceLost, err)
	}
	r.state = statePending
	r.value = v
	if fence != nil {
		fence.target = v
	}
	return nil
}

// WriteBuffer implements gfx.Queue.
func (q *Queue) WriteBuffer(buf gfx.Buffer, offset int, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("halgfx: write foreign buffer %T", buf)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("halgfx: write %d bytes at %d into %q of %d", len(data), offset, b.label, b.size)
	}
	q.hal.WriteBuffer(b.hal, uint64(offset), data)
	return nil
}

// ReadBuffer implements gfx.Queue.
func (q *Queue) ReadBuffer(buf gfx.Buffer, offset int, out []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("halgfx: read foreign buffer %T", buf)
	}
	if offset < 0 || offset+len(out) > b.size {
		return fmt.Errorf("halgfx: read %d bytes at %d from %q of %d", len(out), offset, b.label, b.size)
	}
	if err := q.hal.ReadBuffer(b.hal, uint64(offset), out); err != nil {
		return fmt.Errorf("halgfx: read %q: %w", b.label, err)
	}
	return nil
}
