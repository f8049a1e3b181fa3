package pool

import (
	"fmt"

	"github.com/gogpu/framegraph/gfx"
)

// BufferAllocator pools buffers keyed by usage.
type BufferAllocator = Allocator[gfx.Device, gfx.BufferUsage, gfx.Buffer]

// ImageAllocator pools images keyed by format, usage and extent.
type ImageAllocator = Allocator[gfx.Device, gfx.ImageFamily, gfx.Image]

// NewBufferAllocator creates a buffer pool. Discarded buffers are destroyed.
func NewBufferAllocator(name string) *BufferAllocator {
	return NewAllocator(allocBuffer,
		WithName[gfx.Buffer](name),
		WithDiscard(func(b gfx.Buffer) { b.Destroy() }))
}

func allocBuffer(device gfx.Device, name string, size int, usage gfx.BufferUsage) (gfx.Buffer, error) {
	return device.CreateBuffer(&gfx.BufferDescriptor{Label: name, Size: size, Usage: usage})
}

// NewImageAllocator creates an image pool. The family fully describes the
// image, so size only filters out mismatches.
func NewImageAllocator(name string) *ImageAllocator {
	return NewAllocator(allocImage,
		WithName[gfx.Image](name),
		WithDiscard(func(i gfx.Image) { i.Destroy() }))
}

func allocImage(device gfx.Device, name string, _ int, family gfx.ImageFamily) (gfx.Image, error) {
	if family.Extent.IsZero() {
		return nil, fmt.Errorf("image %q: empty extent", name)
	}
	return device.CreateImage(&gfx.ImageDescriptor{
		Label:  name,
		Format: family.Format,
		Usage:  family.Usage,
		Extent: family.Extent,
	})
}

// ImageSize returns the byte size an image of family occupies.
func ImageSize(family gfx.ImageFamily) int {
	return family.Extent.Area() * gfx.BytesPerPixel(family.Format)
}
