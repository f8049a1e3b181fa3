// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/pass"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/uniform"
)

// Graph errors.
var (
	// ErrLost is returned when the presentation surface is gone.
	ErrLost = errors.New("graph: surface lost")

	// ErrOutdated is returned when the swapchain must be recreated.
	ErrOutdated = errors.New("graph: surface outdated")

	// ErrPassNotFound is returned by pass lookups.
	ErrPassNotFound = errors.New("graph: pass not found")

	// ErrInvalidData is returned for malformed graphs and frame data.
	ErrInvalidData = errors.New("graph: invalid data")

	// ErrFatal marks errors after which the device cannot be used.
	ErrFatal = errors.New("graph: fatal device error")

	// ErrUndeclaredAttachment is returned by AddPass when a pass reads an
	// attachment no earlier pass wrote.
	ErrUndeclaredAttachment = errors.New("graph: attachment read before written")

	// ErrUnknownAttachment is returned for names missing from the
	// attachment table.
	ErrUnknownAttachment = errors.New("graph: unknown attachment")

	// ErrFrameInFlight is returned by FrameData.BeginRecording while the
	// slot's previous submission has not completed.
	ErrFrameInFlight = errors.New("graph: frame slot still in flight")
)

// ErrorKind classifies a RenderError.
type ErrorKind uint8

const (
	KindGfx ErrorKind = iota
	KindLost
	KindOutdated
	KindPassNotFound
	KindInvalidPipeline
	KindInvalidData
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindGfx:
		return "gfx"
	case KindLost:
		return "lost"
	case KindOutdated:
		return "outdated"
	case KindPassNotFound:
		return "pass not found"
	case KindInvalidPipeline:
		return "invalid pipeline"
	case KindInvalidData:
		return "invalid data"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindLost:
		return ErrLost
	case KindOutdated:
		return ErrOutdated
	case KindPassNotFound:
		return ErrPassNotFound
	case KindInvalidPipeline:
		return pass.ErrInvalidPipeline
	case KindInvalidData:
		return ErrInvalidData
	case KindFatal:
		return ErrFatal
	}
	return nil
}

// RenderError is returned by the frame operations. errors.Is matches both
// the sentinel of its kind and the wrapped error.
type RenderError struct {
	Op   string // "begin", "render forward", "end", ...
	Kind ErrorKind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("graph: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// renderError classifies err. Errors that already are RenderErrors keep
// their kind.
func renderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, gfx.ErrSurfaceLost):
		return KindLost
	case errors.Is(err, gfx.ErrSurfaceOutdated):
		return KindOutdated
	case gfx.IsFatal(err), pool.IsAllocationFailure(err):
		return KindFatal
	case errors.Is(err, ErrPassNotFound):
		return KindPassNotFound
	case errors.Is(err, pass.ErrInvalidPipeline):
		return KindInvalidPipeline
	case errors.Is(err, ErrInvalidData), errors.Is(err, uniform.ErrLayoutMismatch),
		errors.Is(err, resource.ErrNotFound), errors.Is(err, resource.ErrUnloaded),
		errors.Is(err, pass.ErrMissingAttachment), errors.Is(err, pass.ErrInvalidConfig):
		return KindInvalidData
	}
	return KindGfx
}

// IsSurfaceError reports whether err asks the caller to recreate the
// swapchain and skip the frame.
func IsSurfaceError(err error) bool {
	return errors.Is(err, ErrLost) || errors.Is(err, ErrOutdated)
}
