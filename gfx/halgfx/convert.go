// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

func bufferUsage(u gfx.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(gfx.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(gfx.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(gfx.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(gfx.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(gfx.BufferUsageTransferSrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(gfx.BufferUsageTransferDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	if u.Has(gfx.BufferUsageReadback) {
		out |= gputypes.BufferUsageMapRead
	}
	// Every buffer can be filled with Queue.WriteBuffer.
	return out | gputypes.BufferUsageCopyDst
}

func imageUsage(u gfx.ImageUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(gfx.ImageUsageColor) || u.Has(gfx.ImageUsageDepth) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u.Has(gfx.ImageUsageSampled) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(gfx.ImageUsageStorage) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(gfx.ImageUsageTransferSrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(gfx.ImageUsageTransferDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

// layoutUsage is the texture usage an image is in while in layout l.
func layoutUsage(l gfx.ImageLayout) gputypes.TextureUsage {
	switch l {
	case gfx.LayoutColor, gfx.LayoutDepth, gfx.LayoutPresent:
		return gputypes.TextureUsageRenderAttachment
	case gfx.LayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	case gfx.LayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	case gfx.LayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case gfx.LayoutShader:
		return gputypes.TextureUsageTextureBinding
	}
	return 0
}

func shaderStages(s gfx.ShaderStage) gputypes.ShaderStage {
	var out gputypes.ShaderStage
	if s&gfx.StageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&gfx.StageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if s&gfx.StageCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}

func layoutEntry(e gfx.BindingLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: shaderStages(e.Stages)}
	switch e.Kind {
	case gfx.BindingUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gfx.BindingStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case gfx.BindingSampledImage:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gfx.BindingStorageImage:
		out.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gfx.BindingSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return out
}

func vertexBuffers(desc *gfx.RenderPipelineDescriptor) []gputypes.VertexBufferLayout {
	if len(desc.VertexLayout) == 0 {
		return nil
	}
	attrs := make([]gputypes.VertexAttribute, len(desc.VertexLayout))
	for i, a := range desc.VertexLayout {
		attrs[i] = gputypes.VertexAttribute{Format: a.Format, Offset: uint64(a.Offset), ShaderLocation: a.Location}
	}
	return []gputypes.VertexBufferLayout{{
		ArrayStride: uint64(desc.VertexStride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}}
}

func topology(t gfx.Topology) gputypes.PrimitiveTopology {
	if t == gfx.TopologyLines {
		return gputypes.PrimitiveTopologyLineList
	}
	return gputypes.PrimitiveTopologyTriangleList
}

func cullMode(c gfx.CullMode) gputypes.CullMode {
	switch c {
	case gfx.CullBack:
		return gputypes.CullModeBack
	case gfx.CullFront:
		return gputypes.CullModeFront
	}
	return gputypes.CullModeNone
}

func blendState(b gfx.BlendMode) *gputypes.BlendState {
	add := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
	}
	var s gputypes.BlendState
	switch b {
	case gfx.BlendAlpha:
		s = gputypes.BlendState{
			Color: add(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: add(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case gfx.BlendPremultiplied:
		s = gputypes.BlendStatePremultiplied()
	case gfx.BlendAdditive:
		s = gputypes.BlendState{
			Color: add(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
			Alpha: add(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
		}
	default:
		return nil
	}
	return &s
}

func hasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}
