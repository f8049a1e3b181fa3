// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

// DefaultDisplayImages is the image count of an offscreen display.
const DefaultDisplayImages = 3

// Display is an offscreen swapchain of HAL textures. It is used for
// headless rendering and by hosts that copy the presented image out with
// Current after each frame.
type Display struct {
	dev     *Device
	extent  gfx.Extent2D
	format  gputypes.TextureFormat
	images  []*Image
	count   int
	current int

	acquireErr error
	presentErr error
	presents   int
	redraws    int
}

// NewDisplay creates an offscreen display of n images.
func NewDisplay(dev *Device, extent gfx.Extent2D, format gputypes.TextureFormat, n int) (*Display, error) {
	if n <= 0 {
		n = DefaultDisplayImages
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	d := &Display{dev: dev, format: format, count: n, current: -1}
	if err := d.Resize(extent); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Display) Extent() gfx.Extent2D           { return d.extent }
func (d *Display) Format() gputypes.TextureFormat { return d.format }
func (d *Display) RequestRedraw()                 { d.redraws++ }

// Presents returns the number of frames presented.
func (d *Display) Presents() int { return d.presents }

// FailNextAcquire makes the next Acquire return err.
func (d *Display) FailNextAcquire(err error) { d.acquireErr = err }

// FailNextPresent makes the next Present return err.
func (d *Display) FailNextPresent(err error) { d.presentErr = err }

// Acquire implements gfx.Display.
func (d *Display) Acquire(int, gfx.Semaphore) error {
	if err := d.acquireErr; err != nil {
		d.acquireErr = nil
		return fmt.Errorf("halgfx: acquire: %w", err)
	}
	d.current = (d.current + 1) % len(d.images)
	d.images[d.current].layout = gfx.LayoutUndefined
	return nil
}

// RenderTarget implements gfx.Display.
func (d *Display) RenderTarget() gfx.Image {
	if d.current < 0 {
		return nil
	}
	return d.images[d.current]
}

// Current returns the HAL image of the last acquired frame.
func (d *Display) Current() *Image {
	if d.current < 0 {
		return nil
	}
	return d.images[d.current]
}

// Present implements gfx.Display.
func (d *Display) Present(int, gfx.Semaphore) error {
	if err := d.presentErr; err != nil {
		d.presentErr = nil
		return fmt.Errorf("halgfx: present: %w", err)
	}
	if d.current < 0 {
		return fmt.Errorf("halgfx: present without acquire: %w", gfx.ErrInvalidState)
	}
	d.presents++
	return nil
}

// Resize implements gfx.Display. The old images are destroyed; callers
// wait for the device to go idle first.
func (d *Display) Resize(extent gfx.Extent2D) error {
	if extent.IsZero() {
		return fmt.Errorf("halgfx: resize to %v: %w", extent, gfx.ErrSurfaceOutdated)
	}
	d.destroyImages()
	for i := range d.count {
		img, err := d.dev.CreateImage(&gfx.ImageDescriptor{
			Label:  d.dev.label(fmt.Sprintf("display-%d", i)),
			Format: d.format,
			Usage:  gfx.ImageUsageColor | gfx.ImageUsageTransferDst | gfx.ImageUsageTransferSrc,
			Extent: extent,
		})
		if err != nil {
			d.destroyImages()
			return err
		}
		hi := img.(*Image)
		hi.borrowed = true
		d.images = append(d.images, hi)
	}
	d.extent = extent
	d.current = -1
	return nil
}

func (d *Display) destroyImages() {
	for _, img := range d.images {
		img.borrowed = false
		img.Destroy()
	}
	d.images = d.images[:0]
}

// Destroy releases the display images.
func (d *Display) Destroy() { d.destroyImages() }
