// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pass implements the render passes of a frame graph.
//
// A pass declares the attachments it reads and writes, owns the per-frame
// scene uniform buffers and binding groups it needs, and records its
// commands into the frame recorder. Material passes draw batch objects,
// either with their material pipelines or with one fixed pipeline built
// from a shader file. Compute passes dispatch over a storage attachment.
// The present pass copies the final attachment into the display image.
//
// Before recording, every pass transitions its attachments to the layout
// its usage requires, so passes can be reordered without tracking the
// layout a previous pass left behind.
package pass

var (
	_ RenderPass = (*MaterialPass)(nil)
	_ RenderPass = (*ComputePass)(nil)
	_ RenderPass = (*PresentPass)(nil)
	_ RenderPass = (*DummyPass)(nil)
	_ Resizer    = (*ComputePass)(nil)
)
