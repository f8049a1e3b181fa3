// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "github.com/gogpu/gputypes"

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  int
	Usage BufferUsage
}

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Usage  ImageUsage
	Extent Extent2D
}

// Family returns the pool family of images built from d.
func (d *ImageDescriptor) Family() ImageFamily {
	return ImageFamily{Format: d.Format, Usage: d.Usage, Extent: d.Extent}
}

// SamplerFilter selects texel filtering.
type SamplerFilter uint8

const (
	FilterLinear SamplerFilter = iota
	FilterNearest
)

// SamplerWrap selects the addressing mode outside [0, 1].
type SamplerWrap uint8

const (
	WrapClamp SamplerWrap = iota
	WrapRepeat
)

// SamplerDescriptor describes a sampler.
type SamplerDescriptor struct {
	Label  string
	Filter SamplerFilter
	Wrap   SamplerWrap
}

// ShaderDescriptor carries either WGSL text or SPIR-V words.
type ShaderDescriptor struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// BindingKind is the type of resource a binding slot holds.
type BindingKind uint8

const (
	BindingUniformBuffer BindingKind = iota
	BindingStorageBuffer
	BindingSampledImage
	BindingStorageImage
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniformBuffer:
		return "uniform-buffer"
	case BindingStorageBuffer:
		return "storage-buffer"
	case BindingSampledImage:
		return "sampled-image"
	case BindingStorageImage:
		return "storage-image"
	case BindingSampler:
		return "sampler"
	}
	return "unknown"
}

// ShaderStage is a bit set of pipeline stages.
type ShaderStage uint8

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// BindingLayoutEntry declares one binding slot.
type BindingLayoutEntry struct {
	Binding uint32
	Kind    BindingKind
	Stages  ShaderStage
}

// BindingGroupLayoutDescriptor describes a binding group layout.
type BindingGroupLayoutDescriptor struct {
	Label   string
	Entries []BindingLayoutEntry
}

// BindingEntry binds one resource to a slot. Exactly one of Buffer, Image
// or Sampler is set, matching the layout kind of the slot.
type BindingEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  int
	Size    int
	Image   Image
	Sampler Sampler
}

// BlendMode selects color blending for a render pipeline.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendPremultiplied
	BlendAdditive
)

func (b BlendMode) String() string {
	switch b {
	case BlendNone:
		return "none"
	case BlendAlpha:
		return "alpha"
	case BlendPremultiplied:
		return "premultiplied"
	case BlendAdditive:
		return "additive"
	}
	return "unknown"
}

// Topology selects primitive assembly.
type Topology uint8

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

// CullMode selects face culling.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// VertexAttribute describes one attribute of the interleaved vertex stream.
type VertexAttribute struct {
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// ShaderEntry names a shader module and its entry point.
type ShaderEntry struct {
	Shader Shader
	Entry  string
}

// RenderPipelineDescriptor describes a graphics pipeline.
//
// PushSize is the byte size of per-draw push data, at most 256. Backends
// without native push constants emulate it with a uniform binding group
// at index 2, so such pipelines use at most two groups of their own.
type RenderPipelineDescriptor struct {
	Label          string
	Vertex         ShaderEntry
	Fragment       ShaderEntry
	VertexStride   uint32
	VertexLayout   []VertexAttribute
	ColorFormat    gputypes.TextureFormat
	DepthFormat    gputypes.TextureFormat
	DepthTest      bool
	DepthWrite     bool
	Blend          BlendMode
	Cull           CullMode
	Topology       Topology
	BindingLayouts []BindingGroupLayout
	PushSize       uint32
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label          string
	Compute        ShaderEntry
	BindingLayouts []BindingGroupLayout
	PushSize       uint32
}

// PipelineKind distinguishes graphics from compute pipelines.
type PipelineKind uint8

const (
	PipelineGraphics PipelineKind = iota
	PipelineCompute
)

// BufferCopy is a buffer-to-buffer copy region.
type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

// BufferImageCopy is a buffer/image copy region covering a full mip 0.
type BufferImageCopy struct {
	BufferOffset int
	BytesPerRow  uint32
	Extent       Extent2D
}

// RenderingInfo configures a dynamic rendering scope. Color or Depth may be
// nil when the pass only writes one of them.
type RenderingInfo struct {
	Label      string
	Color      Image
	Depth      Image
	Extent     Extent2D
	ClearColor bool
	Clear      Color
	ClearDepth bool
	DepthClear float32
}

// SubmitInfo lists the synchronization primitives of a submission.
type SubmitInfo struct {
	Wait   []Semaphore
	Signal []Semaphore
	Fence  Fence
}
