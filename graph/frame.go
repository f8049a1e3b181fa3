// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/framegraph/gfx"
)

// FrameData is the recording state of one frame slot. A slot is reused
// every FramesInFlight frames, once its fence signaled.
type FrameData struct {
	Slot   int
	Number uint64

	Cmd   gfx.CommandRecorder
	Fence gfx.Fence
	// ImageReady is signaled by the display when the acquired image can
	// be written; RenderReady by the submission when it can be presented.
	ImageReady  gfx.Semaphore
	RenderReady gfx.Semaphore

	ctx  context.Context
	span trace.Span
}

func newFrameData(device gfx.Device, slot int, display bool) (*FrameData, error) {
	f := &FrameData{Slot: slot}
	var err error
	if f.Cmd, err = device.CreateCommandRecorder(fmt.Sprintf("frame-%d", slot), gfx.QueueGraphics); err != nil {
		return nil, err
	}
	// Created signaled so the first wait on the slot returns at once.
	if f.Fence, err = device.CreateFence(fmt.Sprintf("frame-%d", slot), true); err != nil {
		f.destroy()
		return nil, err
	}
	if !display {
		return f, nil
	}
	if f.ImageReady, err = device.CreateSemaphore(fmt.Sprintf("image-ready-%d", slot)); err != nil {
		f.destroy()
		return nil, err
	}
	if f.RenderReady, err = device.CreateSemaphore(fmt.Sprintf("render-ready-%d", slot)); err != nil {
		f.destroy()
		return nil, err
	}
	return f, nil
}

// BeginRecording resets the slot recorder and begins recording frame
// number. It returns ErrFrameInFlight while the previous submission of the
// slot has not completed; it never waits. The fence stays signaled until
// the frame is submitted.
func (f *FrameData) BeginRecording(number uint64) error {
	if !f.Fence.Signaled() {
		return fmt.Errorf("slot %d frame %d: %w", f.Slot, f.Number, ErrFrameInFlight)
	}
	if err := f.Cmd.Reset(); err != nil {
		return err
	}
	if err := f.Cmd.Begin(); err != nil {
		return err
	}
	f.Number = number
	return nil
}

// Context returns the context carrying the frame span.
func (f *FrameData) Context() context.Context {
	if f.ctx == nil {
		return context.Background()
	}
	return f.ctx
}

func (f *FrameData) destroy() {
	if f.Cmd != nil {
		f.Cmd.Destroy()
	}
	if f.Fence != nil {
		f.Fence.Destroy()
	}
	if f.ImageReady != nil {
		f.ImageReady.Destroy()
	}
	if f.RenderReady != nil {
		f.RenderReady.Destroy()
	}
}
