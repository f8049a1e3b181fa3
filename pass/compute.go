// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"fmt"

	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
)

// WorkgroupSize is the workgroup edge of the built-in compute shaders.
const WorkgroupSize = 16

// ComputeConfig describes a compute pass writing one storage attachment.
type ComputeConfig struct {
	Name string
	// Shader is the compute shader file; Entry defaults to "main".
	Shader string
	Entry  string
	// Target is the storage attachment the shader writes.
	Target string
}

// ComputePass dispatches a compute shader over its storage attachment,
// one invocation per pixel of the draw extent.
type ComputePass struct {
	base

	target   string
	layout   gfx.BindingGroupLayout
	pipeline gfx.Pipeline
	pools    []gfx.BindingGroupPool
	groups   []gfx.BindingGroup

	extent     gfx.Extent2D
	workgroups [2]uint32
}

// NewComputePass builds the pass described by cfg.
func NewComputePass(env Env, id ID, cfg ComputeConfig) (*ComputePass, error) {
	if cfg.Shader == "" || cfg.Target == "" {
		return nil, fmt.Errorf("%w: compute pass %s needs a shader and a target", ErrInvalidConfig, cfg.Name)
	}
	entry := cfg.Entry
	if entry == "" {
		entry = "main"
	}
	p := &ComputePass{
		base: base{id: id, name: cfg.Name, kind: Compute, refs: []AttachmentRef{{
			Name: cfg.Target, Usage: UsageStorage, Access: ReadWrite,
		}}},
		target: cfg.Target,
	}

	var err error
	p.layout, err = env.Pipelines.BindingLayout(cfg.Name+"-storage", gfx.BindingLayoutEntry{
		Binding: 0, Kind: gfx.BindingStorageImage, Stages: gfx.StageCompute,
	})
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", cfg.Name, err)
	}
	mod, err := env.Shaders.Module(cfg.Shader)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", cfg.Name, err)
	}
	p.pipeline, err = env.Pipelines.Compute(&gfx.ComputePipelineDescriptor{
		Label:          cfg.Name,
		Compute:        gfx.ShaderEntry{Shader: mod, Entry: entry},
		BindingLayouts: []gfx.BindingGroupLayout{p.layout},
	})
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", cfg.Name, err)
	}

	n := env.Ctx.FramesInFlight()
	p.pools = make([]gfx.BindingGroupPool, n)
	p.groups = make([]gfx.BindingGroup, n)
	for i := range p.pools {
		// One storage group per frame; the headroom covers resizes within
		// a frame.
		pool, err := env.Ctx.Device.CreateBindingGroupPool(fmt.Sprintf("%s-%d", cfg.Name, i), p.layout, env.Ctx.BindingPoolCapacity())
		if err != nil {
			p.Destroy()
			return nil, fmt.Errorf("pass %s: %w", cfg.Name, err)
		}
		p.pools[i] = pool
	}
	logging.L().Info("pass: created", "name", cfg.Name, "kind", Compute, "id", id, "shader", cfg.Shader)
	return p, nil
}

func (p *ComputePass) Pipeline() gfx.Pipeline { return p.pipeline }

// Workgroups returns the dispatch size for the last resized extent.
func (p *ComputePass) Workgroups() (x, y uint32) { return p.workgroups[0], p.workgroups[1] }

// Resize caches the dispatch size for extent. It reports false when the
// extent did not change.
func (p *ComputePass) Resize(extent gfx.Extent2D) bool {
	if extent == p.extent {
		return false
	}
	p.extent = extent
	p.workgroups = [2]uint32{extent.Width/WorkgroupSize + 1, extent.Height/WorkgroupSize + 1}
	return true
}

// BindingGroup returns the storage group of slot, once Render allocated
// it.
func (p *ComputePass) BindingGroup(slot int, kind GroupKind) (gfx.BindingGroup, error) {
	if kind != GroupStorage {
		return nil, fmt.Errorf("pass %s: %w", p.name, ErrNoBindingGroup)
	}
	g := p.groups[slot%len(p.groups)]
	if g == nil {
		return nil, fmt.Errorf("pass %s: storage group of slot %d not allocated: %w", p.name, slot, ErrNoBindingGroup)
	}
	return g, nil
}

func (p *ComputePass) ResetFrame(slot int) {
	i := slot % len(p.pools)
	p.pools[i].Reset()
	p.groups[i] = nil
}

// Render implements RenderPass.
func (p *ComputePass) Render(_ *gfx.Context, f *Frame, images Images, b *batch.Batch) error {
	img, err := lookup(images, p.target)
	if err != nil {
		return fmt.Errorf("pass %s: %w", p.name, err)
	}
	p.Resize(f.Extent)

	i := f.Slot % len(p.pools)
	if p.groups[i] == nil || p.groups[i].Entries()[0].Image != img {
		g, err := p.pools[i].Allocate(p.name, []gfx.BindingEntry{{Binding: 0, Image: img}})
		if err != nil {
			return fmt.Errorf("pass %s: %w", p.name, err)
		}
		p.groups[i] = g
	}

	stats := b.Stats()
	cmd := f.Cmd
	cmd.BeginLabel("compute " + p.name)
	cmd.TransitionImage(img, gfx.LayoutGeneral)
	cmd.BindPipeline(p.pipeline)
	stats.BindPipeline(p.id)
	cmd.BindGroup(0, p.groups[i])
	stats.BindResource(p.id)
	cmd.Dispatch(p.workgroups[0], p.workgroups[1], 1)
	cmd.EndLabel()
	stats.Finish(p.id)
	return nil
}

// Destroy releases the binding pools. The pipeline belongs to the cache.
func (p *ComputePass) Destroy() {
	for i, pool := range p.pools {
		if pool != nil {
			pool.Destroy()
			p.pools[i] = nil
		}
	}
	clear(p.groups)
}
