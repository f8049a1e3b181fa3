package resource

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrNotFound is returned for handles that never referred to a slot.
	ErrNotFound = errors.New("resource: not found")

	// ErrUnloaded is returned for handles whose resource was unloaded.
	ErrUnloaded = errors.New("resource: handle unloaded")

	// ErrLoadFailed wraps loader failures.
	ErrLoadFailed = errors.New("resource: load failed")

	// ErrInvalidData is returned by loaders for malformed properties.
	ErrInvalidData = errors.New("resource: invalid data")
)

// Error describes a failed store operation.
type Error struct {
	Op     string // "get", "load", "unload", ...
	Store  string
	Handle string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resource: %s %s %s: %v", e.Op, e.Store, e.Handle, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
