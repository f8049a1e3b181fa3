package resource

import "fmt"

// Handle refers to a resource with properties P. The zero Handle is never
// valid.
type Handle[P any] struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle[P]) IsZero() bool { return h.gen == 0 }

// Index returns the slot index, stable for the life of the resource.
func (h Handle[P]) Index() uint32 { return h.index }

func (h Handle[P]) String() string { return fmt.Sprintf("#%d.%d", h.index, h.gen) }

// Lifetime controls when a resource is released.
type Lifetime uint8

const (
	// Static resources live until unloaded explicitly.
	Static Lifetime = iota
	// Transient resources are collected once they went unused for
	// frames_in_flight frames.
	Transient
)

func (l Lifetime) String() string {
	if l == Transient {
		return "transient"
	}
	return "static"
}
