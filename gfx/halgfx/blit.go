// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// blitWGSL draws a fullscreen triangle sampling the source region
// [0, uv_scale.xy] of the bound texture.
const blitWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;
@group(2) @binding(0) var<uniform> uv_scale: vec4<f32>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    var out: VertexOutput;
    out.position = vec4<f32>(uv.x * 2.0 - 1.0, 1.0 - uv.y * 2.0, 0.0, 1.0);
    out.uv = uv * uv_scale.xy;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(src, src_sampler, in.uv);
}
`

// blitter holds the shared objects of scaled image copies. Pipelines are
// created per destination format.
type blitter struct {
	layout    hal.BindGroupLayout
	pipeLay   hal.PipelineLayout
	sampler   hal.Sampler
	shader    hal.ShaderModule
	pipelines map[gputypes.TextureFormat]hal.RenderPipeline
}

func (d *Device) blitPipeline(format gputypes.TextureFormat) (*blitter, hal.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blit == nil {
		b, err := d.newBlitter()
		if err != nil {
			return nil, nil, err
		}
		d.blit = b
	}
	if p, ok := d.blit.pipelines[format]; ok {
		return d.blit, p, nil
	}
	p, err := d.hal.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  d.label("blit"),
		Layout: d.blit.pipeLay,
		Vertex: hal.VertexState{Module: d.blit.shader, EntryPoint: "vs_main"},
		Fragment: &hal.FragmentState{
			Module:     d.blit.shader,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{{Format: format, WriteMask: gputypes.ColorWriteMaskAll}},
		},
		Primitive:   gputypes.PrimitiveState{Topology: gputypes.PrimitiveTopologyTriangleList, CullMode: gputypes.CullModeNone},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("halgfx: blit pipeline %v: %w", format, err)
	}
	d.blit.pipelines[format] = p
	return d.blit, p, nil
}

func (d *Device) newBlitter() (*blitter, error) {
	b := &blitter{pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline)}
	var err error
	defer func() {
		if err != nil {
			d.destroyBlitter(b)
		}
	}()
	b.layout, err = d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: d.label("blit"),
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Texture: &gputypes.TextureBindingLayout{
				SampleType: gputypes.TextureSampleTypeFloat, ViewDimension: gputypes.TextureViewDimension2D,
			}},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Sampler: &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: blit layout: %w", err)
	}
	b.pipeLay, err = d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            d.label("blit"),
		BindGroupLayouts: []hal.BindGroupLayout{b.layout, d.emptyLayout, d.pushLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: blit pipeline layout: %w", err)
	}
	b.sampler, err = d.hal.CreateSampler(&hal.SamplerDescriptor{
		Label:        d.label("blit"),
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("halgfx: blit sampler: %w", err)
	}
	b.shader, err = d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: d.label("blit"), Source: hal.ShaderSource{WGSL: blitWGSL}})
	if err != nil {
		return nil, fmt.Errorf("halgfx: blit shader: %w", err)
	}
	return b, nil
}

func (d *Device) destroyBlitter(b *blitter) {
	for _, p := range b.pipelines {
		d.hal.DestroyRenderPipeline(p)
	}
	if b.shader != nil {
		d.hal.DestroyShaderModule(b.shader)
	}
	if b.sampler != nil {
		d.hal.DestroySampler(b.sampler)
	}
	if b.pipeLay != nil {
		d.hal.DestroyPipelineLayout(b.pipeLay)
	}
	if b.layout != nil {
		d.hal.DestroyBindGroupLayout(b.layout)
	}
}

// blit draws the srcRegion of s scaled over dstRegion of dst. Both images
// keep their tracked layouts.
func (r *Recorder) blit(s, dst *Image, srcRegion, dstRegion [2]uint32) {
	b, pipe, err := r.dev.blitPipeline(dst.desc.Format)
	if err != nil {
		r.fail(err)
		return
	}
	bg, err := r.dev.hal.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.dev.label("blit"),
		Layout: b.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: s.view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: b.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		r.fail(fmt.Errorf("blit group: %w", err))
		return
	}
	r.transient = append(r.transient, bg)

	var scale [16]byte
	binary.LittleEndian.PutUint32(scale[0:], math.Float32bits(float32(srcRegion[0])/float32(s.desc.Extent.Width)))
	binary.LittleEndian.PutUint32(scale[4:], math.Float32bits(float32(srcRegion[1])/float32(s.desc.Extent.Height)))
	off, ok := r.pushSlot(scale[:])
	if !ok {
		return
	}

	r.enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: s.tex, Usage: hal.TextureUsageTransition{OldUsage: layoutUsage(s.layout), NewUsage: gputypes.TextureUsageTextureBinding}},
		{Texture: dst.tex, Usage: hal.TextureUsageTransition{OldUsage: layoutUsage(dst.layout), NewUsage: gputypes.TextureUsageRenderAttachment}},
	})
	rp := r.enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: r.dev.label("blit"),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    dst.view,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetViewport(0, 0, float32(dstRegion[0]), float32(dstRegion[1]), 0, 1)
	rp.SetPipeline(pipe)
	rp.SetBindGroup(0, bg, nil)
	rp.SetBindGroup(1, r.dev.emptyGroup, nil)
	rp.SetBindGroup(PushGroup, r.pushGroup, []uint32{off})
	rp.Draw(3, 1, 0, 0)
	rp.End()
	r.enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: s.tex, Usage: hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageTextureBinding, NewUsage: layoutUsage(s.layout)}},
		{Texture: dst.tex, Usage: hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageRenderAttachment, NewUsage: layoutUsage(dst.layout)}},
	})
}
