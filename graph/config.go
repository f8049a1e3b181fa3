// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	_ "embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/config"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pass"
	"github.com/gogpu/framegraph/uniform"
)

// Preset graph names of the default configuration.
const (
	PresetDefault  = "default"
	PresetHeadless = "headless"
	PresetUI       = "ui"
)

//go:embed default.yaml
var defaultConfig []byte

// Config is a graph configuration file: an attachment table, pass
// definitions and named graphs listing passes in execution order.
type Config struct {
	Attachments map[string]AttachmentConfig `yaml:"attachments" toml:"attachments" validate:"required,min=1,dive"`
	Passes      map[string]PassConfig       `yaml:"passes" toml:"passes" validate:"required,min=1,dive"`
	Graphs      map[string][]string         `yaml:"graphs" toml:"graphs" validate:"required,min=1,dive,min=1"`
}

// AttachmentConfig declares one attachment. A zero size follows the draw
// extent.
type AttachmentConfig struct {
	Kind   string `yaml:"kind" toml:"kind" validate:"required,oneof=color depth"`
	Format string `yaml:"format" toml:"format" validate:"required"`
	Width  uint32 `yaml:"width" toml:"width"`
	Height uint32 `yaml:"height" toml:"height" validate:"required_with=Width"`
}

// PassConfig defines one pass.
type PassConfig struct {
	Type string `yaml:"type" toml:"type" validate:"required,oneof=compute depth forward wire bounds ui present dummy"`
	// Pipeline is the shader file of a fixed pipeline, or of the compute
	// shader. Material passes leave it empty.
	Pipeline          string      `yaml:"pipeline" toml:"pipeline" validate:"required_if=Type compute"`
	Entry             string      `yaml:"entry" toml:"entry"`
	VertexAttributes  []string    `yaml:"vertex_attributes" toml:"vertex_attributes"`
	Topology          string      `yaml:"topology" toml:"topology" validate:"omitempty,oneof=triangles lines"`
	Blend             string      `yaml:"blend" toml:"blend" validate:"omitempty,oneof=none alpha premultiplied additive"`
	Attachments       []RefConfig `yaml:"attachments" toml:"attachments" validate:"dive"`
	ObjectLayout      []string    `yaml:"object_layout" toml:"object_layout" validate:"dive,oneof=world_matrix normal_matrix vertex_buffer_address"`
	SceneLayout       []string    `yaml:"scene_layout" toml:"scene_layout"`
	RenderOpaque      bool        `yaml:"render_opaque" toml:"render_opaque"`
	RenderTransparent bool        `yaml:"render_transparent" toml:"render_transparent"`
	ClearColor        []float64   `yaml:"clear_color" toml:"clear_color" validate:"omitempty,len=4"`
}

// RefConfig names an attachment used by a pass.
type RefConfig struct {
	Name   string `yaml:"name" toml:"name" validate:"required"`
	Access string `yaml:"access" toml:"access" validate:"required,oneof=read write read_write"`
	Clear  bool   `yaml:"clear" toml:"clear"`
}

// ParseConfig decodes and validates a graph configuration.
func ParseConfig(data []byte, format config.Format) (*Config, error) {
	var c Config
	if err := config.Decode(data, format, &c); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig reads a graph configuration from fsys. The format follows the
// file extension.
func LoadConfig(fsys fs.FS, name string) (*Config, error) {
	var c Config
	if err := config.Load(fsys, name, &c); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, fmt.Errorf("graph: %s: %w", name, err)
	}
	return &c, nil
}

// DefaultConfig returns the built-in configuration with the default,
// headless and UI presets.
func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultConfig, config.YAML)
}

// check verifies cross references the validator cannot see.
func (c *Config) check() error {
	for name, g := range c.Graphs {
		for _, p := range g {
			if _, ok := c.Passes[p]; !ok {
				return fmt.Errorf("graph %s: %w: %s", name, ErrPassNotFound, p)
			}
		}
	}
	for name, p := range c.Passes {
		for _, r := range p.Attachments {
			if _, ok := c.Attachments[r.Name]; !ok {
				return fmt.Errorf("pass %s: %w: %s", name, ErrUnknownAttachment, r.Name)
			}
		}
	}
	return nil
}

// Names returns the graph names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Graphs))
	for n := range c.Graphs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build adds the attachments and passes of the named graph to g. Passes
// get ids in the order the graph lists them.
func (c *Config) Build(g *Graph, env pass.Env, name string) error {
	list, ok := c.Graphs[name]
	if !ok {
		return fmt.Errorf("%w: graph %s", ErrPassNotFound, name)
	}

	used := make(map[string]bool)
	for _, pn := range list {
		for _, r := range c.Passes[pn].Attachments {
			used[r.Name] = true
		}
	}
	names := make([]string, 0, len(used))
	for n := range used {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, err := g.Attachment(n); err == nil {
			continue
		}
		a, err := c.attachment(n)
		if err != nil {
			return err
		}
		if err := g.AddAttachment(a); err != nil {
			return err
		}
	}

	for _, pn := range list {
		p, err := c.pass(g, env, pn)
		if err != nil {
			return fmt.Errorf("graph %s: %w", name, err)
		}
		if err := g.AddPass(p); err != nil {
			p.Destroy()
			return fmt.Errorf("graph %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) attachment(name string) (Attachment, error) {
	ac := c.Attachments[name]
	format, err := ParseFormat(ac.Format)
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: %w", name, err)
	}
	kind := ColorAttachment
	if ac.Kind == "depth" {
		kind = DepthAttachment
	}
	return Attachment{
		Name:   name,
		Kind:   kind,
		Format: format,
		Extent: gfx.Extent2D{Width: ac.Width, Height: ac.Height},
	}, nil
}

func (c *Config) pass(g *Graph, env pass.Env, name string) (pass.RenderPass, error) {
	pc := c.Passes[name]
	kind, err := pass.ParseKind(pc.Type)
	if err != nil {
		return nil, err
	}
	refs, err := c.refs(g, kind, pc.Attachments)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", name, err)
	}
	id := g.NextID()

	switch kind {
	case pass.Compute:
		if len(refs) != 1 {
			return nil, fmt.Errorf("pass %s: %w: compute passes write one attachment", name, ErrInvalidData)
		}
		p, err := pass.NewComputePass(env, id, pass.ComputeConfig{Name: name, Shader: pc.Pipeline, Entry: pc.Entry, Target: refs[0].Name})
		if err != nil {
			return nil, err
		}
		return p, nil
	case pass.Present:
		if len(refs) != 1 {
			return nil, fmt.Errorf("pass %s: %w: present passes read one attachment", name, ErrInvalidData)
		}
		return pass.NewPresentPass(id, name, refs[0].Name), nil
	case pass.Dummy:
		return pass.NewDummyPass(id, name, refs...), nil
	}

	cfg := pass.Config{
		Name:              name,
		Kind:              kind,
		Pipeline:          pc.Pipeline,
		Attachments:       refs,
		RenderOpaque:      pc.RenderOpaque,
		RenderTransparent: pc.RenderTransparent,
	}
	if len(pc.VertexAttributes) > 0 {
		if cfg.VertexFlags, err = mesh.ParseVertexFlags(pc.VertexAttributes); err != nil {
			return nil, fmt.Errorf("pass %s: %w", name, err)
		}
	}
	// Wire and bounds passes draw line lists; gfx has no polygon mode.
	if pc.Topology == "lines" || pc.Topology == "" && (kind == pass.Wire || kind == pass.Bounds) {
		cfg.Topology = gfx.TopologyLines
	}
	cfg.Blend = parseBlend(pc.Blend)
	if cfg.ObjectLayout, err = uniform.ParseObjectProps(pc.ObjectLayout); err != nil {
		return nil, fmt.Errorf("pass %s: %w", name, err)
	}
	if cfg.SceneLayout, err = uniform.ParseSceneProps(pc.SceneLayout); err != nil {
		return nil, fmt.Errorf("pass %s: %w", name, err)
	}
	if len(pc.ClearColor) == 4 {
		cfg.ClearColor = gfx.Color{R: pc.ClearColor[0], G: pc.ClearColor[1], B: pc.ClearColor[2], A: pc.ClearColor[3]}
	}
	p, err := pass.NewMaterialPass(env, id, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// refs resolves the attachment references of a pass of kind. The usage
// follows the pass kind and the attachment kind.
func (c *Config) refs(g *Graph, kind pass.Kind, rcs []RefConfig) ([]pass.AttachmentRef, error) {
	refs := make([]pass.AttachmentRef, 0, len(rcs))
	for _, rc := range rcs {
		decl, err := g.Attachment(rc.Name)
		if err != nil {
			return nil, err
		}
		access, err := pass.ParseAccess(rc.Access)
		if err != nil {
			return nil, err
		}
		ref := pass.AttachmentRef{Name: rc.Name, Access: access, Clear: rc.Clear, Format: decl.Format}
		switch {
		case kind == pass.Compute:
			ref.Usage = pass.UsageStorage
		case kind == pass.Present:
			ref.Usage = pass.UsageTransferSrc
		case decl.Kind == DepthAttachment:
			ref.Usage = pass.UsageDepth
		default:
			ref.Usage = pass.UsageColor
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseBlend(s string) gfx.BlendMode {
	switch s {
	case "alpha":
		return gfx.BlendAlpha
	case "premultiplied":
		return gfx.BlendPremultiplied
	case "additive":
		return gfx.BlendAdditive
	}
	return gfx.BlendNone
}
