// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/internal/logging"
)

// Defaults used when a Config field is left zero.
const (
	DefaultFramesInFlight  = 2
	DefaultFenceTimeout    = 5 * time.Second
	DefaultBindingHeadroom = 2
)

// Config holds device-level settings shared by every engine component.
type Config struct {
	// FramesInFlight bounds how many frames the CPU may record ahead of
	// the GPU.
	FramesInFlight int
	// FenceTimeout bounds every blocking fence wait.
	FenceTimeout time.Duration
	// ColorFormat is the format of the offscreen draw attachment.
	ColorFormat gputypes.TextureFormat
	// DepthFormat is the format of the depth attachment.
	DepthFormat gputypes.TextureFormat
	// BindingHeadroom is added to FramesInFlight when sizing binding
	// group pools.
	BindingHeadroom int
}

func (c *Config) setDefaults() {
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = DefaultFramesInFlight
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = DefaultFenceTimeout
	}
	if c.ColorFormat == gputypes.TextureFormatUndefined {
		c.ColorFormat = gputypes.TextureFormatRGBA8Unorm
	}
	if c.DepthFormat == gputypes.TextureFormatUndefined {
		c.DepthFormat = gputypes.TextureFormatDepth24PlusStencil8
	}
	if c.BindingHeadroom < 0 {
		c.BindingHeadroom = 0
	} else if c.BindingHeadroom == 0 {
		c.BindingHeadroom = DefaultBindingHeadroom
	}
}

// Context bundles the device, its display and the dedicated recorders used
// for blocking one-off submissions.
type Context struct {
	Device  Device
	Display Display
	Config  Config

	immediate      CommandRecorder
	immediateFence Fence
	transfer       CommandRecorder
	transferFence  Fence
	closed         bool
}

// NewContext creates a context. display may be nil for headless use.
func NewContext(device Device, display Display, cfg Config) (*Context, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	cfg.setDefaults()

	c := &Context{Device: device, Display: display, Config: cfg}

	var err error
	if c.immediate, err = device.CreateCommandRecorder("immediate", QueueGraphics); err != nil {
		return nil, fmt.Errorf("gfx: create immediate recorder: %w", err)
	}
	if c.immediateFence, err = device.CreateFence("immediate", true); err != nil {
		c.Close()
		return nil, fmt.Errorf("gfx: create immediate fence: %w", err)
	}
	if c.transfer, err = device.CreateCommandRecorder("transfer", QueueTransfer); err != nil {
		c.Close()
		return nil, fmt.Errorf("gfx: create transfer recorder: %w", err)
	}
	if c.transferFence, err = device.CreateFence("transfer", true); err != nil {
		c.Close()
		return nil, fmt.Errorf("gfx: create transfer fence: %w", err)
	}
	return c, nil
}

// FramesInFlight returns the configured number of frame slots.
func (c *Context) FramesInFlight() int { return c.Config.FramesInFlight }

// BindingPoolCapacity is the capacity of per-pass binding group pools.
func (c *Context) BindingPoolCapacity() int {
	return c.Config.FramesInFlight + c.Config.BindingHeadroom
}

// SurfaceExtent returns the display extent, or zero when headless.
func (c *Context) SurfaceExtent() Extent2D {
	if c.Display == nil {
		return Extent2D{}
	}
	return c.Display.Extent()
}

// RunImmediate records fn into the graphics recorder, submits it and blocks
// until the GPU finished executing it.
func (c *Context) RunImmediate(label string, fn func(cmd CommandRecorder) error) error {
	return c.run(label, c.immediate, c.immediateFence, fn)
}

// RunTransfer is RunImmediate on the transfer queue. Uploads go here.
func (c *Context) RunTransfer(label string, fn func(cmd CommandRecorder) error) error {
	return c.run(label, c.transfer, c.transferFence, fn)
}

var runCounter atomic.Uint64

func (c *Context) run(label string, cmd CommandRecorder, fence Fence, fn func(CommandRecorder) error) error {
	if c.closed {
		return fmt.Errorf("gfx: %s: context closed", label)
	}
	if err := fence.Reset(); err != nil {
		return fmt.Errorf("gfx: %s: reset fence: %w", label, err)
	}
	if err := cmd.Reset(); err != nil {
		return fmt.Errorf("gfx: %s: reset recorder: %w", label, err)
	}
	if err := cmd.Begin(); err != nil {
		return fmt.Errorf("gfx: %s: begin: %w", label, err)
	}
	cmd.BeginLabel(label)
	fnErr := fn(cmd)
	cmd.EndLabel()
	endErr := cmd.End()
	if fnErr != nil {
		return fmt.Errorf("gfx: %s: %w", label, fnErr)
	}
	if endErr != nil {
		return fmt.Errorf("gfx: %s: end: %w", label, endErr)
	}

	n := runCounter.Add(1)
	logging.L().Debug("gfx: submit", "label", label, "queue", cmd.Queue(), "n", n)

	if err := c.Device.Queue(cmd.Queue()).Submit(cmd, SubmitInfo{Fence: fence}); err != nil {
		return fmt.Errorf("gfx: %s: submit: %w", label, err)
	}
	if err := fence.Wait(c.Config.FenceTimeout); err != nil {
		return fmt.Errorf("gfx: %s: %w", label, err)
	}
	return nil
}

// WaitIdle waits for the device to finish all submitted work.
func (c *Context) WaitIdle() error {
	return c.Device.WaitIdle()
}

// Close releases the context recorders and fences. The device and display
// stay owned by the caller.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	var errs []error
	if c.immediate != nil || c.transfer != nil {
		errs = append(errs, c.Device.WaitIdle())
	}
	for _, r := range []CommandRecorder{c.immediate, c.transfer} {
		if r != nil {
			r.Destroy()
		}
	}
	for _, f := range []Fence{c.immediateFence, c.transferFence} {
		if f != nil {
			f.Destroy()
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.L().Warn("gfx: close context", "err", err)
	}
}
