// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/gfx"
)

// ErrNoHAL is returned when a device provider does not expose HAL types.
var ErrNoHAL = errors.New("halgfx: provider does not expose HAL types")

// FromProvider borrows the HAL device and queue of an external provider,
// such as a gogpu window. The provider must implement HalDevice() any and
// HalQueue() any. The returned display renders offscreen in the provider's
// surface format; the host copies Display.Current to its surface.
//
// The HAL device stays owned by the provider.
func FromProvider(p gpucontext.DeviceProvider, extent gfx.Extent2D, opts Options) (*Device, *Display, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHAL, hp.HalQueue())
	}
	dev, err := New(device, queue, opts)
	if err != nil {
		return nil, nil, err
	}
	if extent.IsZero() {
		return dev, nil, nil
	}
	disp, err := NewDisplay(dev, extent, p.SurfaceFormat(), DefaultDisplayImages)
	if err != nil {
		dev.Destroy()
		return nil, nil, err
	}
	return dev, disp, nil
}
