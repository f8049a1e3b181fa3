// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "errors"

// Device errors.
var (
	// ErrFenceTimeout is returned when a fence wait exceeds its timeout.
	// It is fatal: the device is considered hung.
	ErrFenceTimeout = errors.New("gfx: fence wait timed out")

	// ErrDeviceLost is returned when the device stopped accepting work.
	ErrDeviceLost = errors.New("gfx: device lost")

	// ErrOutOfMemory is returned when the device cannot satisfy an allocation.
	ErrOutOfMemory = errors.New("gfx: out of device memory")

	// ErrSurfaceOutdated is returned by Acquire/Present when the swapchain
	// no longer matches the surface and must be recreated.
	ErrSurfaceOutdated = errors.New("gfx: surface outdated")

	// ErrSurfaceLost is returned when the presentation surface is gone.
	ErrSurfaceLost = errors.New("gfx: surface lost")

	// ErrPoolExhausted is returned when a binding group pool is full.
	ErrPoolExhausted = errors.New("gfx: binding group pool exhausted")

	// ErrInvalidState is returned when a recorder is used out of order.
	ErrInvalidState = errors.New("gfx: invalid recorder state")

	// ErrNilDevice is returned when a context is built without a device.
	ErrNilDevice = errors.New("gfx: device is nil")

	// ErrUnknownBackend is returned by the registry for unregistered names.
	ErrUnknownBackend = errors.New("gfx: unknown backend")
)

// IsFatal reports whether err leaves the device unusable. Callers should
// stop rendering and tear the device down.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFenceTimeout) ||
		errors.Is(err, ErrDeviceLost) ||
		errors.Is(err, ErrOutOfMemory)
}

// IsSurfaceError reports whether err asks for swapchain recreation.
func IsSurfaceError(err error) bool {
	return errors.Is(err, ErrSurfaceOutdated) || errors.Is(err, ErrSurfaceLost)
}
