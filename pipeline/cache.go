// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
)

// Pipeline cache errors.
var (
	// ErrNilDescriptor is returned for a nil pipeline descriptor.
	ErrNilDescriptor = errors.New("pipeline: descriptor is nil")

	// ErrNilShader is returned when a required shader module is missing.
	ErrNilShader = errors.New("pipeline: shader module is nil")
)

// Cache creates pipelines on a device and returns cached pipelines for
// equal descriptors.
//
// Cache is safe for concurrent use. It uses RWMutex with double-check
// locking for cheap hits.
type Cache struct {
	device gfx.Device

	mu        sync.RWMutex
	pipelines map[uint64]gfx.Pipeline
	layouts   map[uint64]gfx.BindingGroupLayout
	ids       map[any]uint64
	nextID    uint64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates an empty cache for device.
func NewCache(device gfx.Device) *Cache {
	return &Cache{
		device:    device,
		pipelines: make(map[uint64]gfx.Pipeline),
		layouts:   make(map[uint64]gfx.BindingGroupLayout),
		ids:       make(map[any]uint64),
	}
}

// Device returns the device pipelines are created on.
func (c *Cache) Device() gfx.Device { return c.device }

// id returns the stable number of a shader or layout. Caller must hold
// the write lock, or the read lock for objects already seen.
func (c *Cache) id(obj any) uint64 {
	if n, ok := c.ids[obj]; ok {
		return n
	}
	c.nextID++
	c.ids[obj] = c.nextID
	return c.nextID
}

// known reports whether every object already has an id, so hashing under
// the read lock cannot mutate the id table.
func (c *Cache) known(objs ...any) bool {
	for _, o := range objs {
		if o == nil {
			continue
		}
		if _, ok := c.ids[o]; !ok {
			return false
		}
	}
	return true
}

// Render returns the render pipeline for desc, creating it on a miss.
func (c *Cache) Render(desc *gfx.RenderPipelineDescriptor) (gfx.Pipeline, error) {
	if desc == nil {
		return nil, ErrNilDescriptor
	}
	if desc.Vertex.Shader == nil {
		return nil, fmt.Errorf("%w: %s vertex stage", ErrNilShader, desc.Label)
	}
	objs := []any{desc.Vertex.Shader}
	if desc.Fragment.Shader != nil {
		objs = append(objs, desc.Fragment.Shader)
	}
	for _, l := range desc.BindingLayouts {
		objs = append(objs, l)
	}

	return c.getOrCreate(objs,
		func() uint64 { return hashRender(desc, c.id) },
		func() (gfx.Pipeline, error) { return c.device.CreateRenderPipeline(desc) },
		desc.Label)
}

// Compute returns the compute pipeline for desc, creating it on a miss.
func (c *Cache) Compute(desc *gfx.ComputePipelineDescriptor) (gfx.Pipeline, error) {
	if desc == nil {
		return nil, ErrNilDescriptor
	}
	if desc.Compute.Shader == nil {
		return nil, fmt.Errorf("%w: %s compute stage", ErrNilShader, desc.Label)
	}
	objs := []any{desc.Compute.Shader}
	for _, l := range desc.BindingLayouts {
		objs = append(objs, l)
	}

	return c.getOrCreate(objs,
		func() uint64 { return hashCompute(desc, c.id) },
		func() (gfx.Pipeline, error) { return c.device.CreateComputePipeline(desc) },
		desc.Label)
}

func (c *Cache) getOrCreate(objs []any, key func() uint64, create func() (gfx.Pipeline, error), label string) (gfx.Pipeline, error) {
	// Fast path: read lock
	c.mu.RLock()
	if c.known(objs...) {
		if p, ok := c.pipelines[key()]; ok {
			c.mu.RUnlock()
			c.hits.Add(1)
			return p, nil
		}
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key()
	if p, ok := c.pipelines[k]; ok {
		c.hits.Add(1)
		return p, nil
	}
	p, err := create()
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", label, err)
	}
	c.pipelines[k] = p
	c.misses.Add(1)
	logging.L().Debug("pipeline: created", "label", label, "id", p.ID(), "key", k)
	return p, nil
}

// BindingLayout returns a layout with the given entries, creating it on
// first request. Equal entry lists share one layout object.
func (c *Cache) BindingLayout(label string, entries ...gfx.BindingLayoutEntry) (gfx.BindingGroupLayout, error) {
	k := hashLayoutEntries(entries)

	c.mu.RLock()
	l, ok := c.layouts[k]
	c.mu.RUnlock()
	if ok {
		return l, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.layouts[k]; ok {
		return l, nil
	}
	l, err := c.device.CreateBindingGroupLayout(&gfx.BindingGroupLayoutDescriptor{Label: label, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create layout %s: %w", label, err)
	}
	c.layouts[k] = l
	return l, nil
}

// Stats returns cache hits and misses.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 before the first request.
func (c *Cache) HitRate() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// DestroyAll destroys every pipeline and layout and empties the cache.
func (c *Cache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		p.Destroy()
	}
	for _, l := range c.layouts {
		l.Destroy()
	}
	c.pipelines = make(map[uint64]gfx.Pipeline)
	c.layouts = make(map[uint64]gfx.BindingGroupLayout)
	c.ids = make(map[any]uint64)
	c.hits.Store(0)
	c.misses.Store(0)
}
