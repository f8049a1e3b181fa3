// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"errors"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/config"
	"github.com/gogpu/framegraph/pass"
)

const offscreenTOML = `
[attachments.color]
kind = "color"
format = "bgra8unorm"

[attachments.shadow]
kind = "depth"
format = "depth24plus-stencil8"
width = 256
height = 256

[passes.shadow]
type = "depth"
pipeline = "depth.wgsl"
attachments = [{name = "shadow", access = "write", clear = true}]
object_layout = ["world_matrix"]
scene_layout = ["view_proj"]
render_opaque = true

[passes.paint]
type = "compute"
pipeline = "sky.wgsl"
attachments = [{name = "color", access = "write"}]

[passes.lines]
type = "wire"
pipeline = "wire.wgsl"
attachments = [{name = "color", access = "read_write"}]
object_layout = ["world_matrix"]
scene_layout = ["view_proj"]
render_opaque = true
clear_color = [0.1, 0.2, 0.3, 1.0]

[graphs]
offscreen = ["shadow", "paint", "lines"]
`

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Names(); !slices.Equal(got, []string{PresetDefault, PresetHeadless, PresetUI}) {
		t.Errorf("Names() = %v", got)
	}
	tests := []struct {
		preset string
		kinds  []pass.Kind
	}{
		{PresetDefault, []pass.Kind{pass.Compute, pass.Depth, pass.Forward, pass.Wire, pass.Bounds, pass.Present}},
		{PresetHeadless, []pass.Kind{pass.Compute, pass.Depth, pass.Forward}},
		{PresetUI, []pass.Kind{pass.UI, pass.Present}},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			f := newFixture(t, tt.preset != PresetHeadless)
			g := f.build(t, tt.preset)
			var kinds []pass.Kind
			for i, p := range g.Passes() {
				if p.ID() != pass.ID(i) {
					t.Errorf("pass %s has id %d at %d", p.Name(), p.ID(), i)
				}
				kinds = append(kinds, p.Kind())
			}
			if !slices.Equal(kinds, tt.kinds) {
				t.Errorf("kinds = %v, want %v", kinds, tt.kinds)
			}
		})
	}
}

func TestLoadConfigTOML(t *testing.T) {
	fsys := fstest.MapFS{"graph.toml": {Data: []byte(offscreenTOML)}}
	cfg, err := LoadConfig(fsys, "graph.toml")
	if err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, false)
	g, err := New(f.ctx, WithMinRenderExtent(small))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Destroy)
	if err := cfg.Build(g, f.env, "offscreen"); err != nil {
		t.Fatal(err)
	}

	shadow, err := g.Image("shadow")
	if err != nil {
		t.Fatal(err)
	}
	if want := (gfx.Extent2D{Width: 256, Height: 256}); shadow.Extent() != want {
		t.Errorf("shadow extent = %v, want %v", shadow.Extent(), want)
	}
	if a, _ := g.Attachment("color"); !a.SizeDependent() || a.Kind != ColorAttachment {
		t.Errorf("color attachment = %+v", a)
	}
	lines, err := g.PassByName("lines")
	if err != nil {
		t.Fatal(err)
	}
	mp := lines.(*pass.MaterialPass)
	if mp.Pipeline() == nil || mp.Pipeline().Kind() != gfx.PipelineGraphics {
		t.Errorf("lines pipeline = %v", mp.Pipeline())
	}
	if err := cfg.Build(g, f.env, "onscreen"); !errors.Is(err, ErrPassNotFound) {
		t.Errorf("Build(onscreen) = %v", err)
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown pass in graph", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: dummy, attachments: [{name: draw, access: write}]}}
graphs: {main: [p, q]}
`, ErrPassNotFound},
		{"unknown attachment", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: dummy, attachments: [{name: hdr, access: write}]}}
graphs: {main: [p]}
`, ErrUnknownAttachment},
		{"bad access", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: dummy, attachments: [{name: draw, access: sometimes}]}}
graphs: {main: [p]}
`, nil},
		{"compute without shader", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: compute, attachments: [{name: draw, access: write}]}}
graphs: {main: [p]}
`, nil},
		{"unknown key", `
attachments: {draw: {kind: color, format: rgba8unorm, samples: 4}}
passes: {p: {type: dummy}}
graphs: {main: [p]}
`, nil},
		{"empty graph", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: dummy}}
graphs: {main: []}
`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), config.YAML)
			if err == nil {
				t.Fatal("ParseConfig succeeded")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("ParseConfig = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"bad format", `
attachments: {draw: {kind: color, format: rgb565}}
passes: {p: {type: dummy, attachments: [{name: draw, access: write}]}}
graphs: {main: [p]}
`, ErrInvalidData},
		{"read before write", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {show: {type: present, attachments: [{name: draw, access: read}]}}
graphs: {main: [show]}
`, ErrUndeclaredAttachment},
		{"compute with two targets", `
attachments: {a: {kind: color, format: rgba8unorm}, b: {kind: color, format: rgba8unorm}}
passes: {p: {type: compute, pipeline: sky.wgsl, attachments: [{name: a, access: write}, {name: b, access: write}]}}
graphs: {main: [p]}
`, ErrInvalidData},
		{"forward without attachments", `
attachments: {draw: {kind: color, format: rgba8unorm}}
passes: {p: {type: forward}, w: {type: dummy, attachments: [{name: draw, access: write}]}}
graphs: {main: [w, p]}
`, pass.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml), config.YAML)
			if err != nil {
				t.Fatal(err)
			}
			f := newFixture(t, false)
			g, err := New(f.ctx, WithMinRenderExtent(small))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(g.Destroy)
			if err := cfg.Build(g, f.env, "main"); !errors.Is(err, tt.want) {
				t.Errorf("Build = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"rgba8unorm", "RGBA8Unorm", "depth24plus-stencil8", "bgra8unorm-srgb"} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q) = %v", name, err)
		}
	}
	if _, err := ParseFormat("rgb565"); !errors.Is(err, ErrInvalidData) {
		t.Errorf("ParseFormat(rgb565) = %v", err)
	}
}
