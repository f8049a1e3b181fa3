// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/uniform"
)

// Config describes a pass that draws batch objects.
type Config struct {
	Name string
	Kind Kind
	// Pipeline is the shader file of a fixed pipeline. When empty, objects
	// are drawn with their material pipelines.
	Pipeline string
	// VertexFlags is the vertex layout of the fixed pipeline. Zero means
	// position only.
	VertexFlags mesh.VertexFlag
	Topology    gfx.Topology
	Blend       gfx.BlendMode
	Attachments []AttachmentRef

	ObjectLayout      []uniform.ObjectProp
	SceneLayout       []uniform.SceneProp
	RenderOpaque      bool
	RenderTransparent bool
	ClearColor        gfx.Color
}

// MaterialPass draws the batch objects of one pass id into its color
// and depth attachments. Depth, forward, wire, bounds and UI passes are
// all material passes with different configurations.
type MaterialPass struct {
	base

	color *AttachmentRef
	depth *AttachmentRef
	clear gfx.Color

	opaque      bool
	transparent bool

	uniformLayout *uniform.Layout
	pushLayout    *uniform.Layout
	sceneBinding  gfx.BindingGroupLayout
	target        material.Target
	fixed         gfx.Pipeline
	flags         mesh.VertexFlag

	uniforms *uniform.Allocator
	frames   []frameData
	objData  []byte
}

type frameData struct {
	uniform *uniform.Buffer
	pool    gfx.BindingGroupPool
	group   gfx.BindingGroup
}

// NewMaterialPass builds the pass described by cfg.
func NewMaterialPass(env Env, id ID, cfg Config) (*MaterialPass, error) {
	p := &MaterialPass{
		base:        base{id: id, name: cfg.Name, kind: cfg.Kind, refs: append([]AttachmentRef(nil), cfg.Attachments...)},
		clear:       cfg.ClearColor,
		opaque:      cfg.RenderOpaque,
		transparent: cfg.RenderTransparent,
		uniforms:    env.Uniforms,
	}
	for i := range p.refs {
		ref := &p.refs[i]
		switch ref.Usage {
		case UsageColor:
			if p.color == nil {
				p.color = ref
			}
		case UsageDepth:
			if p.depth == nil {
				p.depth = ref
			}
		}
	}
	if p.color == nil && p.depth == nil {
		return nil, fmt.Errorf("%w: pass %s has no color or depth attachment", ErrInvalidConfig, cfg.Name)
	}

	p.uniformLayout = uniform.SceneLayout(cfg.SceneLayout...)
	if len(cfg.ObjectLayout) > 0 {
		p.pushLayout = uniform.ObjectLayout(cfg.ObjectLayout...)
		p.objData = make([]byte, p.pushLayout.Size())
	}

	var err error
	p.sceneBinding, err = env.Pipelines.BindingLayout("scene", gfx.BindingLayoutEntry{
		Binding: 0, Kind: gfx.BindingUniformBuffer, Stages: gfx.StageVertex | gfx.StageFragment,
	})
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", cfg.Name, err)
	}

	p.target = material.Target{
		Name:        cfg.Name,
		Topology:    cfg.Topology,
		SceneLayout: p.sceneBinding,
	}
	if p.pushLayout != nil {
		p.target.PushSize = uint32(p.pushLayout.Size())
	}
	if p.color != nil {
		p.target.ColorFormat = p.color.Format
	}
	if p.depth != nil {
		p.target.DepthFormat = p.depth.Format
		p.target.DepthTest = true
		p.target.DepthWrite = p.depth.Writes()
	}

	if cfg.Pipeline != "" {
		if err := p.buildFixed(env, cfg); err != nil {
			return nil, err
		}
	}

	if err := p.createFrames(env); err != nil {
		p.Destroy()
		return nil, err
	}
	logging.L().Info("pass: created", "name", cfg.Name, "kind", cfg.Kind, "id", id, "fixed", p.fixed != nil)
	return p, nil
}

func (p *MaterialPass) buildFixed(env Env, cfg Config) error {
	mod, err := env.Shaders.Module(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("pass %s: %w", cfg.Name, err)
	}
	empty, err := env.Pipelines.BindingLayout("empty")
	if err != nil {
		return fmt.Errorf("pass %s: %w", cfg.Name, err)
	}
	p.flags = cfg.VertexFlags
	if p.flags == 0 {
		p.flags = mesh.VertexPosition
	}
	desc := &gfx.RenderPipelineDescriptor{
		Label:          cfg.Name,
		Vertex:         gfx.ShaderEntry{Shader: mod, Entry: material.DefaultVertexEntry},
		VertexStride:   p.flags.Stride(),
		VertexLayout:   p.flags.Attributes(),
		ColorFormat:    p.target.ColorFormat,
		DepthFormat:    p.target.DepthFormat,
		DepthTest:      p.target.DepthTest,
		DepthWrite:     p.target.DepthWrite,
		Blend:          cfg.Blend,
		Topology:       cfg.Topology,
		BindingLayouts: []gfx.BindingGroupLayout{p.sceneBinding, empty},
		PushSize:       p.target.PushSize,
	}
	// Depth-only pipelines have no fragment stage.
	if p.color != nil {
		desc.Fragment = gfx.ShaderEntry{Shader: mod, Entry: material.DefaultFragmentEntry}
	}
	if p.fixed, err = env.Pipelines.Render(desc); err != nil {
		return fmt.Errorf("pass %s: %w", cfg.Name, err)
	}
	return nil
}

func (p *MaterialPass) createFrames(env Env) error {
	ctx := env.Ctx
	p.frames = make([]frameData, ctx.FramesInFlight())
	for i := range p.frames {
		fd := &p.frames[i]
		label := fmt.Sprintf("%s-scene-%d", p.name, i)
		if p.uniformLayout != nil {
			buf, err := p.uniforms.Allocate(ctx.Device, label, p.uniformLayout.Size(), p.uniformLayout)
			if err != nil {
				return fmt.Errorf("pass %s: %w", p.name, err)
			}
			fd.uniform = buf
		}
		pool, err := ctx.Device.CreateBindingGroupPool(label, p.sceneBinding, ctx.BindingPoolCapacity())
		if err != nil {
			return fmt.Errorf("pass %s: %w", p.name, err)
		}
		fd.pool = pool
	}
	return nil
}

func (p *MaterialPass) UniformLayout() *uniform.Layout { return p.uniformLayout }
func (p *MaterialPass) PushLayout() *uniform.Layout    { return p.pushLayout }
func (p *MaterialPass) Target() material.Target        { return p.target }
func (p *MaterialPass) Pipeline() gfx.Pipeline         { return p.fixed }

// VertexFlags returns the fixed pipeline vertex layout, or zero for
// passes drawing with material pipelines.
func (p *MaterialPass) VertexFlags() mesh.VertexFlag { return p.flags }

// ColorFormat returns the format of the color attachment, if any.
func (p *MaterialPass) ColorFormat() gputypes.TextureFormat { return p.target.ColorFormat }

// SceneData implements RenderPass.
func (p *MaterialPass) SceneData(scene *batch.SceneInfo) ([]byte, error) {
	return sceneData(p.uniformLayout, scene)
}

// BindingGroup returns the scene group of slot. Passes without a fixed
// pipeline return ErrInvalidPipeline.
func (p *MaterialPass) BindingGroup(slot int, kind GroupKind) (gfx.BindingGroup, error) {
	if p.fixed == nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, ErrInvalidPipeline)
	}
	if kind != GroupScene {
		return nil, fmt.Errorf("pass %s: %w", p.name, ErrNoBindingGroup)
	}
	return p.sceneGroup(&p.frames[slot%len(p.frames)])
}

func (p *MaterialPass) sceneGroup(fd *frameData) (gfx.BindingGroup, error) {
	if fd.group != nil || fd.uniform == nil {
		return fd.group, nil
	}
	g, err := fd.pool.Allocate(p.name+"-scene", []gfx.BindingEntry{{
		Binding: 0,
		Buffer:  fd.uniform.Buffer,
		Size:    p.uniformLayout.Size(),
	}})
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.name, err)
	}
	fd.group = g
	return g, nil
}

// ResetFrame implements RenderPass.
func (p *MaterialPass) ResetFrame(slot int) {
	fd := &p.frames[slot%len(p.frames)]
	fd.pool.Reset()
	fd.group = nil
}

// Render implements RenderPass.
func (p *MaterialPass) Render(ctx *gfx.Context, f *Frame, images Images, b *batch.Batch) error {
	fd := &p.frames[f.Slot%len(p.frames)]
	if err := p.uploadScene(ctx, fd, b); err != nil {
		return err
	}

	info := gfx.RenderingInfo{Label: p.name, Extent: f.Extent, Clear: p.clear, DepthClear: 1}
	if p.color != nil {
		img, err := lookup(images, p.color.Name)
		if err != nil {
			return fmt.Errorf("pass %s: %w", p.name, err)
		}
		info.Color = img
		info.ClearColor = p.color.Clear
	}
	if p.depth != nil {
		img, err := lookup(images, p.depth.Name)
		if err != nil {
			return fmt.Errorf("pass %s: %w", p.name, err)
		}
		info.Depth = img
		info.ClearDepth = p.depth.Clear
	}

	cmd := f.Cmd
	cmd.BeginLabel("draw " + p.name)
	for _, ref := range p.refs {
		img, err := lookup(images, ref.Name)
		if err != nil {
			cmd.EndLabel()
			return fmt.Errorf("pass %s: %w", p.name, err)
		}
		cmd.TransitionImage(img, ref.Usage.Layout())
	}
	cmd.BeginRendering(&info)
	cmd.SetViewport(gfx.ViewportFor(f.Extent))

	err := p.drawList(cmd, fd, b)

	cmd.EndRendering()
	cmd.EndLabel()
	b.Stats().Finish(p.id)
	return err
}

func (p *MaterialPass) uploadScene(ctx *gfx.Context, fd *frameData, b *batch.Batch) error {
	if fd.uniform == nil {
		return nil
	}
	data, ok := b.SceneData(p.id)
	if !ok {
		logging.L().Debug("pass: no scene data", "pass", p.name)
		return nil
	}
	if err := fd.uniform.Write(ctx.Device.Queue(gfx.QueueGraphics), data); err != nil {
		return fmt.Errorf("pass %s: scene data: %w", p.name, err)
	}
	return nil
}

// drawState tracks what the recorder has bound so redundant binds are
// skipped.
type drawState struct {
	pipeline    gfx.PipelineID
	sceneBound  bool
	material    uuid.UUID
	hasMaterial bool
	vertex      gfx.Buffer
	vertexOff   int
	index       gfx.Buffer
	indexOff    int
}

func (p *MaterialPass) accepts(obj *batch.RenderObject) bool {
	if obj.Pass != p.id {
		return false
	}
	if obj.Transparent {
		return p.transparent
	}
	return p.opaque
}

func (p *MaterialPass) drawList(cmd gfx.CommandRecorder, fd *frameData, b *batch.Batch) error {
	stats := b.Stats()
	var st drawState
	objects := b.Objects()
	for i := range objects {
		obj := &objects[i]
		if !p.accepts(obj) {
			continue
		}

		pipe := p.fixed
		if pipe == nil {
			pipe = obj.Pipeline
		}
		if pipe == nil {
			return fmt.Errorf("pass %s: object %d: %w", p.name, i, ErrInvalidPipeline)
		}
		if pipe.ID() != st.pipeline {
			cmd.BindPipeline(pipe)
			stats.BindPipeline(p.id)
			st.pipeline = pipe.ID()
			// Binding a pipeline invalidates the groups bound before it.
			st.sceneBound = false
			st.hasMaterial = false
		}

		if !st.sceneBound {
			g, err := p.sceneGroup(fd)
			if err != nil {
				return err
			}
			if g != nil {
				cmd.BindGroup(0, g)
				stats.BindResource(p.id)
			}
			st.sceneBound = true
		}

		if p.fixed == nil && (!st.hasMaterial || st.material != obj.MaterialID) {
			for gi, g := range obj.Groups {
				cmd.BindGroup(uint32(1+gi), g)
				stats.BindResource(p.id)
			}
			st.material = obj.MaterialID
			st.hasMaterial = true
		}

		if p.pushLayout != nil {
			if err := batch.ObjectData(p.pushLayout, obj, p.objData); err != nil {
				return fmt.Errorf("pass %s: %w", p.name, err)
			}
			cmd.PushConstants(pipe, p.objData)
		}

		if st.vertex != obj.VertexBuffer || st.vertexOff != obj.VertexOffset {
			cmd.BindVertexBuffer(obj.VertexBuffer, obj.VertexOffset)
			stats.BindResource(p.id)
			st.vertex, st.vertexOff = obj.VertexBuffer, obj.VertexOffset
		}
		if st.index != obj.IndexBuffer || st.indexOff != obj.IndexOffset {
			cmd.BindIndexBuffer(obj.IndexBuffer, obj.IndexOffset, mesh.IndexFormat)
			stats.BindResource(p.id)
			st.index, st.indexOff = obj.IndexBuffer, obj.IndexOffset
		}

		cmd.DrawIndexed(uint32(obj.IndexCount), 0, 0)
		stats.Draw(p.id, obj.IndexCount)
	}
	return nil
}

// Destroy releases the per-frame uniform buffers and binding pools. The
// fixed pipeline stays owned by the pipeline cache.
func (p *MaterialPass) Destroy() {
	for i := range p.frames {
		fd := &p.frames[i]
		if fd.uniform != nil {
			p.uniforms.Recycle(fd.uniform)
			fd.uniform = nil
		}
		if fd.pool != nil {
			fd.pool.Destroy()
			fd.pool = nil
		}
		fd.group = nil
	}
}
