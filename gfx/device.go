// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Device creates GPU objects. Objects are released with their own Destroy
// method; the device must outlive them.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateImage(desc *ImageDescriptor) (Image, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateShader(desc *ShaderDescriptor) (Shader, error)
	CreateBindingGroupLayout(desc *BindingGroupLayoutDescriptor) (BindingGroupLayout, error)
	CreateBindingGroupPool(label string, layout BindingGroupLayout, capacity int) (BindingGroupPool, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (Pipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (Pipeline, error)
	CreateCommandRecorder(label string, queue QueueType) (CommandRecorder, error)
	CreateFence(label string, signaled bool) (Fence, error)
	CreateSemaphore(label string) (Semaphore, error)

	// Queue returns the queue of the given type. Devices with a single
	// queue return it for every type.
	Queue(t QueueType) Queue

	// WaitIdle blocks until all submitted work completed.
	WaitIdle() error

	Destroy()
}

// Queue accepts command submissions and host-side buffer transfers.
type Queue interface {
	Submit(cmd CommandRecorder, info SubmitInfo) error
	WriteBuffer(buf Buffer, offset int, data []byte) error
	ReadBuffer(buf Buffer, offset int, out []byte) error
}

// Buffer is a linear GPU allocation. Its pool family is its usage.
type Buffer interface {
	Label() string
	Size() int
	Usage() BufferUsage
	Family() BufferUsage
	// Address is the device address used by shaders that pull vertices
	// from storage buffers.
	Address() uint64
	Destroy()
}

// Image is a 2D GPU image with a CPU-tracked current layout.
type Image interface {
	Label() string
	Format() gputypes.TextureFormat
	Usage() ImageUsage
	Extent() Extent2D
	Size() int
	Family() ImageFamily
	Layout() ImageLayout
	Destroy()
}

// Sampler is an image sampler.
type Sampler interface {
	Label() string
	Destroy()
}

// Shader is a compiled shader module.
type Shader interface {
	Label() string
	Destroy()
}

// PipelineID identifies a pipeline for redundant-bind elision.
type PipelineID uint64

// Pipeline is a graphics or compute pipeline.
type Pipeline interface {
	ID() PipelineID
	Label() string
	Kind() PipelineKind
	BindingLayouts() []BindingGroupLayout
	PushSize() uint32
	Destroy()
}

// BindingGroupLayout is the layout of one binding group.
type BindingGroupLayout interface {
	Label() string
	Entries() []BindingLayoutEntry
	Destroy()
}

// BindingGroup is an immutable set of resource bindings.
type BindingGroup interface {
	Label() string
	Layout() BindingGroupLayout
	Entries() []BindingEntry
}

// BindingGroupPool hands out binding groups of a single layout. Groups are
// never freed individually; Reset returns every group at once.
type BindingGroupPool interface {
	Allocate(label string, entries []BindingEntry) (BindingGroup, error)
	Reset()
	Len() int
	Capacity() int
	Destroy()
}

// Fence is a CPU-visible completion signal.
type Fence interface {
	Label() string
	// Wait blocks until the fence signals or timeout elapses, in which case
	// it returns an error wrapping ErrFenceTimeout.
	Wait(timeout time.Duration) error
	Reset() error
	Signaled() bool
	Destroy()
}

// Semaphore orders GPU work between submissions and presentation.
type Semaphore interface {
	Label() string
	Destroy()
}

// Display is the presentation surface.
type Display interface {
	Extent() Extent2D
	Format() gputypes.TextureFormat
	// Acquire makes the next swapchain image current. It returns errors
	// wrapping ErrSurfaceOutdated or ErrSurfaceLost when the swapchain
	// must be recreated.
	Acquire(frame int, imageReady Semaphore) error
	// RenderTarget returns the image acquired by the last Acquire.
	RenderTarget() Image
	Present(frame int, renderReady Semaphore) error
	Resize(extent Extent2D) error
	RequestRedraw()
}
