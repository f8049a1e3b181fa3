// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/gfx"
)

type recorderState uint8

const (
	stateInitial recorderState = iota
	stateRecording
	stateExecutable
	statePending
)

func (s recorderState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateRecording:
		return "recording"
	case stateExecutable:
		return "executable"
	case statePending:
		return "pending"
	}
	return "unknown"
}

var errPushOverflow = errors.New("push ring overflow")

// Recorder is a gfx.CommandRecorder over a HAL command encoder. Render and
// compute passes are opened lazily: BeginRendering opens a render pass and
// the first compute bind outside rendering opens a compute pass.
type Recorder struct {
	dev   *Device
	enc   hal.CommandEncoder
	label string
	queue gfx.QueueType

	state  recorderState
	err    error
	cmdBuf hal.CommandBuffer
	// Timeline value of the last submission.
	value uint64

	push      []byte
	pushRing  hal.Buffer
	pushGroup hal.BindGroup
	// Groups created while recording, destroyed once the recorder is reset.
	transient []hal.BindGroup

	rp       hal.RenderPassEncoder
	cp       hal.ComputePassEncoder
	pipeline *Pipeline
}

func (r *Recorder) createPushRing() error {
	var err error
	r.pushRing, err = r.dev.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: r.dev.label(r.label + "-push"),
		Size:  uint64(cap(r.push)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("halgfx: recorder %q push ring: %w: %w", r.label, gfx.ErrOutOfMemory, err)
	}
	r.pushGroup, err = r.dev.hal.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.dev.label(r.label + "-push"),
		Layout: r.dev.pushLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: r.pushRing.NativeHandle(), Size: pushAlign},
		}},
	})
	if err != nil {
		r.dev.hal.DestroyBuffer(r.pushRing)
		return fmt.Errorf("halgfx: recorder %q push group: %w", r.label, err)
	}
	return nil
}

func (r *Recorder) Label() string        { return r.label }
func (r *Recorder) Queue() gfx.QueueType { return r.queue }

func (r *Recorder) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("halgfx: recorder %q: %w", r.label, err)
	}
}

// Begin implements gfx.CommandRecorder.
func (r *Recorder) Begin() error {
	if r.state != stateInitial {
		return fmt.Errorf("halgfx: begin %q in state %s: %w", r.label, r.state, gfx.ErrInvalidState)
	}
	if err := r.enc.BeginEncoding(r.label); err != nil {
		return fmt.Errorf("halgfx: begin %q: %w", r.label, err)
	}
	r.state = stateRecording
	r.err = nil
	r.push = r.push[:0]
	r.pipeline = nil
	return nil
}

// End implements gfx.CommandRecorder.
func (r *Recorder) End() error {
	if r.state != stateRecording {
		return fmt.Errorf("halgfx: end %q in state %s: %w", r.label, r.state, gfx.ErrInvalidState)
	}
	r.endPasses()
	if r.err != nil {
		r.enc.DiscardEncoding()
		r.state = stateInitial
		return r.err
	}
	cb, err := r.enc.EndEncoding()
	if err != nil {
		r.state = stateInitial
		return fmt.Errorf("halgfx: end %q: %w", r.label, err)
	}
	r.cmdBuf = cb
	r.state = stateExecutable
	return nil
}

// Reset implements gfx.CommandRecorder. A pending recorder must have
// completed; the caller waits on its fence first.
func (r *Recorder) Reset() error {
	switch r.state {
	case stateRecording:
		r.endPasses()
		r.enc.DiscardEncoding()
	case statePending:
		if err := r.dev.waitValue(r.value, 0); err != nil {
			return fmt.Errorf("halgfx: reset %q while in flight: %w", r.label, gfx.ErrInvalidState)
		}
	}
	r.release()
	r.state = stateInitial
	r.err = nil
	r.push = r.push[:0]
	return nil
}

func (r *Recorder) release() {
	if r.cmdBuf != nil {
		r.dev.hal.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	for _, g := range r.transient {
		r.dev.hal.DestroyBindGroup(g)
	}
	r.transient = r.transient[:0]
}

func (r *Recorder) BeginLabel(string) {}
func (r *Recorder) EndLabel()         {}

func (r *Recorder) recording() bool {
	if r.state != stateRecording {
		r.fail(fmt.Errorf("record in state %s: %w", r.state, gfx.ErrInvalidState))
		return false
	}
	return true
}

func (r *Recorder) endCompute() {
	if r.cp != nil {
		r.cp.End()
		r.cp = nil
	}
}

func (r *Recorder) endPasses() {
	r.endCompute()
	if r.rp != nil {
		r.rp.End()
		r.rp = nil
	}
}

// transfer ends open passes before a copy or barrier.
func (r *Recorder) transfer() bool {
	if !r.recording() {
		return false
	}
	if r.rp != nil {
		r.fail(fmt.Errorf("transfer inside rendering: %w", gfx.ErrInvalidState))
		return false
	}
	r.endCompute()
	return true
}

// CopyBuffer implements gfx.CommandRecorder.
func (r *Recorder) CopyBuffer(src, dst gfx.Buffer, regions ...gfx.BufferCopy) {
	if !r.transfer() {
		return
	}
	s, ok1 := src.(*Buffer)
	d, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		r.fail(fmt.Errorf("copy between foreign buffers %T, %T", src, dst))
		return
	}
	hr := make([]hal.BufferCopy, len(regions))
	for i, c := range regions {
		if c.SrcOffset+c.Size > s.size || c.DstOffset+c.Size > d.size {
			r.fail(fmt.Errorf("copy %d bytes %q@%d -> %q@%d out of range", c.Size, s.label, c.SrcOffset, d.label, c.DstOffset))
			return
		}
		hr[i] = hal.BufferCopy{SrcOffset: uint64(c.SrcOffset), DstOffset: uint64(c.DstOffset), Size: uint64(c.Size)}
	}
	r.enc.CopyBufferToBuffer(s.hal, d.hal, hr)
}

func (r *Recorder) bufferImage(buf gfx.Buffer, img gfx.Image, region gfx.BufferImageCopy) (*Buffer, *Image, []hal.BufferTextureCopy, bool) {
	b, ok1 := buf.(*Buffer)
	i, ok2 := img.(*Image)
	if !ok1 || !ok2 {
		r.fail(fmt.Errorf("copy between foreign %T and %T", buf, img))
		return nil, nil, nil, false
	}
	extent := region.Extent
	if extent.IsZero() {
		extent = i.desc.Extent
	}
	bpr := region.BytesPerRow
	if bpr == 0 {
		bpr = extent.Width * uint32(gfx.BytesPerPixel(i.desc.Format))
	}
	return b, i, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: uint64(region.BufferOffset), BytesPerRow: bpr, RowsPerImage: extent.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: i.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
	}}, true
}

// CopyBufferToImage implements gfx.CommandRecorder.
func (r *Recorder) CopyBufferToImage(src gfx.Buffer, dst gfx.Image, region gfx.BufferImageCopy) {
	if !r.transfer() {
		return
	}
	if b, i, regions, ok := r.bufferImage(src, dst, region); ok {
		r.enc.CopyBufferToTexture(b.hal, i.tex, regions)
	}
}

// CopyImageToBuffer implements gfx.CommandRecorder.
func (r *Recorder) CopyImageToBuffer(src gfx.Image, dst gfx.Buffer, region gfx.BufferImageCopy) {
	if !r.transfer() {
		return
	}
	if b, i, regions, ok := r.bufferImage(dst, src, region); ok {
		r.enc.CopyTextureToBuffer(i.tex, b.hal, regions)
	}
}

// CopyImageToImage implements gfx.CommandRecorder. Copies between
// different extents are drawn with a linear-filtered blit; the source
// must be sampled-capable and the destination a color attachment.
func (r *Recorder) CopyImageToImage(src, dst gfx.Image, srcExtent, dstExtent gfx.Extent2D) {
	if !r.transfer() {
		return
	}
	s, ok1 := src.(*Image)
	d, ok2 := dst.(*Image)
	if !ok1 || !ok2 {
		r.fail(fmt.Errorf("copy between foreign images %T, %T", src, dst))
		return
	}
	if srcExtent != dstExtent {
		r.blit(s, d, [2]uint32{srcExtent.Width, srcExtent.Height}, [2]uint32{dstExtent.Width, dstExtent.Height})
		return
	}
	r.enc.CopyTextureToTexture(s.tex, d.tex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: s.tex},
		DstBase: hal.ImageCopyTexture{Texture: d.tex},
		Size:    hal.Extent3D{Width: srcExtent.Width, Height: srcExtent.Height, DepthOrArrayLayers: 1},
	}})
}

// TransitionImage implements gfx.CommandRecorder.
func (r *Recorder) TransitionImage(img gfx.Image, layout gfx.ImageLayout) {
	if !r.transfer() {
		return
	}
	i, ok := img.(*Image)
	if !ok {
		r.fail(fmt.Errorf("transition foreign image %T", img))
		return
	}
	if i.layout == layout {
		return
	}
	r.enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: i.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: layoutUsage(i.layout), NewUsage: layoutUsage(layout)},
	}})
	i.layout = layout
}

// BeginRendering implements gfx.CommandRecorder.
func (r *Recorder) BeginRendering(info *gfx.RenderingInfo) {
	if !r.transfer() {
		return
	}
	desc := &hal.RenderPassDescriptor{Label: info.Label}
	if info.Color != nil {
		c, ok := info.Color.(*Image)
		if !ok {
			r.fail(fmt.Errorf("render to foreign image %T", info.Color))
			return
		}
		load := gputypes.LoadOpLoad
		if info.ClearColor {
			load = gputypes.LoadOpClear
		}
		desc.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:       c.view,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: info.Clear.R, G: info.Clear.G, B: info.Clear.B, A: info.Clear.A},
		}}
	}
	if info.Depth != nil {
		d, ok := info.Depth.(*Image)
		if !ok {
			r.fail(fmt.Errorf("render to foreign depth image %T", info.Depth))
			return
		}
		load := gputypes.LoadOpLoad
		if info.ClearDepth {
			load = gputypes.LoadOpClear
		}
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            d.view,
			DepthLoadOp:     load,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: info.DepthClear,
		}
		if hasStencil(d.desc.Format) {
			ds.StencilLoadOp = load
			ds.StencilStoreOp = gputypes.StoreOpStore
		}
		desc.DepthStencilAttachment = ds
	}
	r.rp = r.enc.BeginRenderPass(desc)
	r.pipeline = nil
	if !info.Extent.IsZero() {
		r.SetViewport(gfx.ViewportFor(info.Extent))
	}
}

// EndRendering implements gfx.CommandRecorder.
func (r *Recorder) EndRendering() {
	if !r.recording() {
		return
	}
	if r.rp == nil {
		r.fail(fmt.Errorf("end rendering without begin: %w", gfx.ErrInvalidState))
		return
	}
	r.rp.End()
	r.rp = nil
	r.pipeline = nil
}

// SetViewport implements gfx.CommandRecorder.
func (r *Recorder) SetViewport(v gfx.Viewport) {
	if !r.recording() {
		return
	}
	if r.rp == nil {
		r.fail(fmt.Errorf("viewport outside rendering: %w", gfx.ErrInvalidState))
		return
	}
	r.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
}

// BindPipeline implements gfx.CommandRecorder.
func (r *Recorder) BindPipeline(p gfx.Pipeline) {
	if !r.recording() {
		return
	}
	hp, ok := p.(*Pipeline)
	if !ok {
		r.fail(fmt.Errorf("bind foreign pipeline %T", p))
		return
	}
	switch hp.kind {
	case gfx.PipelineGraphics:
		if r.rp == nil {
			r.fail(fmt.Errorf("graphics pipeline %q outside rendering: %w", hp.label, gfx.ErrInvalidState))
			return
		}
		r.rp.SetPipeline(hp.render)
	case gfx.PipelineCompute:
		if r.rp != nil {
			r.fail(fmt.Errorf("compute pipeline %q inside rendering: %w", hp.label, gfx.ErrInvalidState))
			return
		}
		if r.cp == nil {
			r.cp = r.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: hp.label})
		}
		r.cp.SetPipeline(hp.compute)
	}
	r.pipeline = hp
	if hp.push > 0 {
		for i := len(hp.layouts); i < PushGroup; i++ {
			r.setBindGroup(uint32(i), r.dev.emptyGroup, nil)
		}
	}
}

func (r *Recorder) setBindGroup(index uint32, g hal.BindGroup, offsets []uint32) {
	switch {
	case r.rp != nil:
		r.rp.SetBindGroup(index, g, offsets)
	case r.cp != nil:
		r.cp.SetBindGroup(index, g, offsets)
	default:
		r.fail(fmt.Errorf("bind group %d without a bound pipeline: %w", index, gfx.ErrInvalidState))
	}
}

// BindGroup implements gfx.CommandRecorder.
func (r *Recorder) BindGroup(index uint32, group gfx.BindingGroup) {
	if !r.recording() {
		return
	}
	g, ok := group.(*BindingGroup)
	if !ok {
		r.fail(fmt.Errorf("bind foreign group %T", group))
		return
	}
	if index >= PushGroup {
		r.fail(fmt.Errorf("group index %d is reserved for push data", index))
		return
	}
	r.setBindGroup(index, g.hal, nil)
}

// PushConstants implements gfx.CommandRecorder. The data is appended to
// the push ring and bound at PushGroup with its ring offset.
func (r *Recorder) PushConstants(p gfx.Pipeline, data []byte) {
	if !r.recording() {
		return
	}
	if uint32(len(data)) > p.PushSize() || len(data) > pushAlign {
		r.fail(fmt.Errorf("%d push bytes for pipeline %q with push size %d", len(data), p.Label(), p.PushSize()))
		return
	}
	if off, ok := r.pushSlot(data); ok {
		r.setBindGroup(PushGroup, r.pushGroup, []uint32{off})
	}
}

// pushSlot copies data into the next aligned slot of the push ring.
func (r *Recorder) pushSlot(data []byte) (uint32, bool) {
	off := len(r.push)
	if off+pushAlign > cap(r.push) {
		r.fail(fmt.Errorf("%w: %d bytes", errPushOverflow, cap(r.push)))
		return 0, false
	}
	r.push = r.push[:off+pushAlign]
	clear(r.push[off:])
	copy(r.push[off:], data)
	return uint32(off), true
}

// BindVertexBuffer implements gfx.CommandRecorder.
func (r *Recorder) BindVertexBuffer(buf gfx.Buffer, offset int) {
	if !r.drawing() {
		return
	}
	b, ok := buf.(*Buffer)
	if !ok {
		r.fail(fmt.Errorf("bind foreign vertex buffer %T", buf))
		return
	}
	r.rp.SetVertexBuffer(0, b.hal, uint64(offset))
}

// BindIndexBuffer implements gfx.CommandRecorder.
func (r *Recorder) BindIndexBuffer(buf gfx.Buffer, offset int, format gputypes.IndexFormat) {
	if !r.drawing() {
		return
	}
	b, ok := buf.(*Buffer)
	if !ok {
		r.fail(fmt.Errorf("bind foreign index buffer %T", buf))
		return
	}
	r.rp.SetIndexBuffer(b.hal, format, uint64(offset))
}

func (r *Recorder) drawing() bool {
	if !r.recording() {
		return false
	}
	if r.rp == nil {
		r.fail(fmt.Errorf("draw outside rendering: %w", gfx.ErrInvalidState))
		return false
	}
	return true
}

// DrawIndexed implements gfx.CommandRecorder.
func (r *Recorder) DrawIndexed(indexCount, firstIndex uint32, baseVertex int32) {
	if !r.drawing() {
		return
	}
	r.rp.DrawIndexed(indexCount, 1, firstIndex, baseVertex, 0)
}

// Draw implements gfx.CommandRecorder.
func (r *Recorder) Draw(vertexCount, firstVertex uint32) {
	if !r.drawing() {
		return
	}
	r.rp.Draw(vertexCount, 1, firstVertex, 0)
}

// Dispatch implements gfx.CommandRecorder.
func (r *Recorder) Dispatch(x, y, z uint32) {
	if !r.recording() {
		return
	}
	if r.cp == nil {
		r.fail(fmt.Errorf("dispatch without a compute pipeline: %w", gfx.ErrInvalidState))
		return
	}
	r.cp.Dispatch(x, y, z)
}

// Destroy implements gfx.CommandRecorder.
func (r *Recorder) Destroy() {
	if r.state == stateRecording {
		r.endPasses()
		r.enc.DiscardEncoding()
	}
	r.release()
	if r.pushGroup != nil {
		r.dev.hal.DestroyBindGroup(r.pushGroup)
		r.pushGroup = nil
	}
	if r.pushRing != nil {
		r.dev.hal.DestroyBuffer(r.pushRing)
		r.pushRing = nil
	}
}
