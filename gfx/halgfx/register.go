// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/framegraph/gfx"
)

func init() {
	gfx.Register("vulkan", 10, func(opts gfx.BackendOptions) (gfx.Device, gfx.Display, error) {
		dev, err := Open(gputypes.BackendVulkan, Options{Label: opts.Label})
		if err != nil {
			return nil, nil, err
		}
		return withDisplay(dev, opts)
	}, func() bool {
		_, ok := hal.GetBackend(gputypes.BackendVulkan)
		return ok
	})
	gfx.Register("noop", 0, OpenNoop, nil)
}

// OpenNoop opens a device on the HAL noop backend. Commands are accepted
// and discarded; it is meant for tests and CI machines without a GPU.
func OpenNoop(opts gfx.BackendOptions) (gfx.Device, gfx.Display, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("halgfx: noop instance: %w", err)
	}
	dev, err := openInstance(instance, Options{Label: opts.Label})
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	return withDisplay(dev, opts)
}

func withDisplay(dev *Device, opts gfx.BackendOptions) (gfx.Device, gfx.Display, error) {
	if opts.Extent.IsZero() {
		return dev, nil, nil
	}
	disp, err := NewDisplay(dev, opts.Extent, gputypes.TextureFormatRGBA8Unorm, DefaultDisplayImages)
	if err != nil {
		dev.Destroy()
		return nil, nil, err
	}
	return dev, disp, nil
}
