// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gfx

import (
	"fmt"
	"sort"
	"sync"
)

// BackendOptions configures device creation through the registry.
type BackendOptions struct {
	// Extent is the initial display extent. Zero means headless.
	Extent Extent2D
	// Label prefixes object labels created by the backend.
	Label string
}

// BackendFactory opens a device and its display. Display may be nil for
// headless backends.
type BackendFactory func(opts BackendOptions) (Device, Display, error)

// Backend is a registered device backend.
type Backend struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	Priority int

	Factory BackendFactory

	// Available reports if the backend can run on this system.
	Available func() bool
}

var globalRegistry = &Registry{}

// Registry maps backend names to factories.
//
// Backends register themselves from init:
//
//	func init() {
//	    gfx.Register("noop", 10, openNoop, nil)
//	}
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Backend)}
}

// Register adds a backend to the global registry. A nil available func
// means always available. Re-registering a name replaces it.
func Register(name string, priority int, factory BackendFactory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Backends returns available backend names sorted by priority.
func Backends() []string { return globalRegistry.Available() }

// Open opens the named backend, or the best available one when name is
// empty.
func Open(name string, opts BackendOptions) (Device, Display, error) {
	return globalRegistry.Open(name, opts)
}

// Register adds a backend to r.
func (r *Registry) Register(name string, priority int, factory BackendFactory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*Backend)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &Backend{Name: name, Priority: priority, Factory: factory, Available: available}
}

// Unregister removes a backend from r.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Available returns names of available backends, highest priority first.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type entry struct {
		name     string
		priority int
	}
	entries := make([]entry, 0, len(r.entries))
	for name, e := range r.entries {
		if e.Available() {
			entries = append(entries, entry{name: name, priority: e.Priority})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].name < entries[j].name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Open opens a backend by name, or tries every available backend in
// priority order when name is empty.
func (r *Registry) Open(name string, opts BackendOptions) (Device, Display, error) {
	if name != "" {
		r.mu.RLock()
		entry, ok := r.entries[name]
		r.mu.RUnlock()
		if !ok || !entry.Available() {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
		return entry.Factory(opts)
	}

	var lastErr error
	for _, n := range r.Available() {
		dev, disp, err := r.Open(n, opts)
		if err == nil {
			return dev, disp, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, fmt.Errorf("%w: none registered", ErrUnknownBackend)
}
