// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"fmt"

	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
)

// PresentPass copies an attachment into the acquired display image. It
// does nothing on a headless context.
type PresentPass struct {
	base
	source string
}

// NewPresentPass returns a pass presenting the attachment source.
func NewPresentPass(id ID, name, source string) *PresentPass {
	return &PresentPass{
		base: base{id: id, name: name, kind: Present, refs: []AttachmentRef{{
			Name: source, Usage: UsageTransferSrc, Access: Read,
		}}},
		source: source,
	}
}

// Render implements RenderPass.
func (p *PresentPass) Render(ctx *gfx.Context, f *Frame, images Images, b *batch.Batch) error {
	if ctx.Display == nil {
		return nil
	}
	dst := ctx.Display.RenderTarget()
	if dst == nil {
		return nil
	}
	src, err := lookup(images, p.source)
	if err != nil {
		return fmt.Errorf("pass %s: %w", p.name, err)
	}
	cmd := f.Cmd
	cmd.BeginLabel("present " + p.name)
	cmd.TransitionImage(src, gfx.LayoutTransferSrc)
	cmd.TransitionImage(dst, gfx.LayoutTransferDst)
	cmd.CopyImageToImage(src, dst, f.Extent, dst.Extent())
	cmd.EndLabel()
	b.Stats().Finish(p.id)
	return nil
}

// DummyPass records nothing but a debug label. Graphs use it as a
// placeholder while passes are configured.
type DummyPass struct {
	base
}

// NewDummyPass returns a pass that records a debug label only.
func NewDummyPass(id ID, name string, refs ...AttachmentRef) *DummyPass {
	return &DummyPass{base{id: id, name: name, kind: Dummy, refs: refs}}
}

func (p *DummyPass) Render(_ *gfx.Context, f *Frame, _ Images, _ *batch.Batch) error {
	f.Cmd.BeginLabel(p.name)
	f.Cmd.EndLabel()
	return nil
}
