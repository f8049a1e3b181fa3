// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graph schedules render passes over shared attachments.
//
// A Graph owns an attachment table, a list of passes executed in declared
// order and one FrameData per frame in flight. Each frame follows the same
// sequence:
//
//	f, err := g.Begin(ctx, n) // wait slot fence, acquire, reset recorder
//	err = g.Render(f, batch)  // record every pass
//	err = g.End(f)            // submit, present
//
// Errors from the frame operations are *RenderError values. Surface errors
// (ErrLost, ErrOutdated) ask the caller to recreate the swapchain and skip
// the frame; ErrFatal means the device must be torn down.
//
// Graphs are usually built from a configuration file, see Config. The
// built-in configuration carries the default, headless and ui presets.
package graph
