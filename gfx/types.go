// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent2D) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Area returns Width*Height.
func (e Extent2D) Area() int { return int(e.Width) * int(e.Height) }

// Max returns the component-wise maximum of e and o.
func (e Extent2D) Max(o Extent2D) Extent2D {
	return Extent2D{Width: max(e.Width, o.Width), Height: max(e.Height, o.Height)}
}

// Scale multiplies both dimensions by s, never going below one pixel.
func (e Extent2D) Scale(s float32) Extent2D {
	w := uint32(float32(e.Width) * s)
	h := uint32(float32(e.Height) * s)
	return Extent2D{Width: max(w, 1), Height: max(h, 1)}
}

func (e Extent2D) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// ImageLayout is the access state an image must be in before a command
// touches it. Transitions are recorded explicitly by passes.
type ImageLayout uint8

const (
	LayoutUndefined ImageLayout = iota
	LayoutColor
	LayoutDepth
	LayoutTransferSrc
	LayoutTransferDst
	LayoutGeneral
	LayoutShader
	LayoutPresent
)

var layoutNames = [...]string{
	LayoutUndefined:   "undefined",
	LayoutColor:       "color",
	LayoutDepth:       "depth",
	LayoutTransferSrc: "transfer-src",
	LayoutTransferDst: "transfer-dst",
	LayoutGeneral:     "general",
	LayoutShader:      "shader",
	LayoutPresent:     "present",
}

func (l ImageLayout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("ImageLayout(%d)", l)
}

// ImageUsage is a bit set describing how an image may be used.
type ImageUsage uint32

const (
	ImageUsageColor ImageUsage = 1 << iota
	ImageUsageDepth
	ImageUsageSampled
	ImageUsageStorage
	ImageUsageTransferSrc
	ImageUsageTransferDst
)

// Has reports whether all bits of u2 are set in u.
func (u ImageUsage) Has(u2 ImageUsage) bool { return u&u2 == u2 }

// BufferUsage is a bit set describing buffer usage. It doubles as the pool
// family key for buffers.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
	BufferUsageReadback
)

// Common buffer families.
const (
	BufferFamilyVertex   = BufferUsageVertex | BufferUsageStorage | BufferUsageTransferDst
	BufferFamilyIndex    = BufferUsageIndex | BufferUsageTransferDst
	BufferFamilyUniform  = BufferUsageUniform | BufferUsageTransferDst
	BufferFamilyStaging  = BufferUsageTransferSrc
	BufferFamilyReadback = BufferUsageReadback | BufferUsageTransferDst
)

// Has reports whether all bits of u2 are set in u.
func (u BufferUsage) Has(u2 BufferUsage) bool { return u&u2 == u2 }

// ImageFamily is the pool family key for images. Images are only
// interchangeable when format, usage and extent all match.
type ImageFamily struct {
	Format gputypes.TextureFormat
	Usage  ImageUsage
	Extent Extent2D
}

// QueueType selects the queue a recorder submits to.
type QueueType uint8

const (
	QueueGraphics QueueType = iota
	QueueTransfer
)

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// Viewport describes the rasterization rectangle.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// ViewportFor returns a full-extent viewport with depth range [0, 1].
func ViewportFor(extent Extent2D) Viewport {
	return Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1}
}

// BytesPerPixel returns the texel size of the formats used by the engine.
func BytesPerPixel(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatR32Float:
		return 4
	case gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

func (q QueueType) String() string {
	if q == QueueTransfer {
		return "transfer"
	}
	return "graphics"
}
