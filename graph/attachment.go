// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/pass"
)

// AttachmentKind is the role of a graph attachment.
type AttachmentKind uint8

const (
	ColorAttachment AttachmentKind = iota
	DepthAttachment
)

func (k AttachmentKind) String() string {
	if k == DepthAttachment {
		return "depth"
	}
	return "color"
}

// Attachment declares an image shared between passes.
type Attachment struct {
	Name   string
	Kind   AttachmentKind
	Format gputypes.TextureFormat
	// Extent fixes the image size. Zero makes the attachment follow the
	// draw extent, recreating it on resize.
	Extent gfx.Extent2D
}

// Usage returns the image usage the attachment is created with.
func (a *Attachment) Usage() gfx.ImageUsage {
	if a.Kind == DepthAttachment {
		return gfx.ImageUsageDepth | gfx.ImageUsageSampled
	}
	return gfx.ImageUsageColor | gfx.ImageUsageStorage | gfx.ImageUsageSampled | gfx.ImageUsageTransferSrc
}

// Layout returns the layout passes render the attachment in.
func (a *Attachment) Layout() gfx.ImageLayout {
	if a.Kind == DepthAttachment {
		return gfx.LayoutDepth
	}
	return gfx.LayoutColor
}

// SizeDependent reports whether the attachment follows the draw extent.
func (a *Attachment) SizeDependent() bool { return a.Extent.IsZero() }

func (a *Attachment) family(draw gfx.Extent2D) gfx.ImageFamily {
	ext := a.Extent
	if ext.IsZero() {
		ext = draw
	}
	return gfx.ImageFamily{Format: a.Format, Usage: a.Usage(), Extent: ext}
}

// compatible reports whether ref can use the attachment.
func (a *Attachment) compatible(ref pass.AttachmentRef) error {
	switch ref.Usage {
	case pass.UsageColor, pass.UsageStorage, pass.UsageTransferSrc:
		if a.Kind != ColorAttachment {
			return fmt.Errorf("%w: %s is a %s attachment", ErrInvalidData, a.Name, a.Kind)
		}
	case pass.UsageDepth:
		if a.Kind != DepthAttachment {
			return fmt.Errorf("%w: %s is a %s attachment", ErrInvalidData, a.Name, a.Kind)
		}
	}
	if ref.Format != gputypes.TextureFormatUndefined && ref.Format != a.Format {
		return fmt.Errorf("%w: %s format mismatch", ErrInvalidData, a.Name)
	}
	return nil
}

var formatNames = map[string]gputypes.TextureFormat{
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb":      gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb":      gputypes.TextureFormatBGRA8UnormSrgb,
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"r32float":             gputypes.TextureFormatR32Float,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

// ParseFormat parses a WebGPU texture format name such as "rgba8unorm".
func ParseFormat(s string) (gputypes.TextureFormat, error) {
	f, ok := formatNames[strings.ToLower(s)]
	if !ok {
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: unknown format %q", ErrInvalidData, s)
	}
	return f, nil
}

// attachmentSet resolves attachment names to the images of the graph.
type attachmentSet struct {
	decls  map[string]*Attachment
	images map[string]gfx.Image
	order  []string
}

func (s *attachmentSet) Image(name string) (gfx.Image, error) {
	img, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttachment, name)
	}
	return img, nil
}
