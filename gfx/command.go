// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "github.com/gogpu/gputypes"

// CommandRecorder records GPU commands for later submission.
//
// Recording methods do not return errors. The first recording error is kept
// and returned by End, matching how deferred-validation APIs behave.
type CommandRecorder interface {
	Label() string
	Queue() QueueType

	// Begin starts recording. The recorder must be reset or freshly created.
	Begin() error
	// End finishes recording and reports the first recording error.
	End() error
	// Reset discards recorded commands so the recorder can be reused.
	Reset() error

	BeginLabel(label string)
	EndLabel()

	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, region BufferImageCopy)
	CopyImageToBuffer(src Image, dst Buffer, region BufferImageCopy)
	CopyImageToImage(src, dst Image, srcExtent, dstExtent Extent2D)
	TransitionImage(img Image, layout ImageLayout)

	BeginRendering(info *RenderingInfo)
	EndRendering()
	SetViewport(v Viewport)

	BindPipeline(p Pipeline)
	BindGroup(index uint32, group BindingGroup)
	PushConstants(p Pipeline, data []byte)
	BindVertexBuffer(buf Buffer, offset int)
	BindIndexBuffer(buf Buffer, offset int, format gputypes.IndexFormat)
	DrawIndexed(indexCount, firstIndex uint32, baseVertex int32)
	Draw(vertexCount, firstVertex uint32)
	Dispatch(x, y, z uint32)

	Destroy()
}
