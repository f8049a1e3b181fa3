package pipeline

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/gfxtest"
)

func newShader(t *testing.T, dev gfx.Device, label string) gfx.Shader {
	t.Helper()
	s, err := dev.CreateShader(&gfx.ShaderDescriptor{Label: label, WGSL: "// " + label})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func renderDesc(vs, fs gfx.Shader, layouts ...gfx.BindingGroupLayout) *gfx.RenderPipelineDescriptor {
	return &gfx.RenderPipelineDescriptor{
		Label:        "forward",
		Vertex:       gfx.ShaderEntry{Shader: vs, Entry: "vs_main"},
		Fragment:     gfx.ShaderEntry{Shader: fs, Entry: "fs_main"},
		VertexStride: 28,
		VertexLayout: []gfx.VertexAttribute{
			{Location: 0, Format: gputypes.VertexFormatFloat32x3},
			{Location: 1, Format: gputypes.VertexFormatFloat32x4, Offset: 12},
		},
		ColorFormat:    gputypes.TextureFormatRGBA8Unorm,
		DepthFormat:    gputypes.TextureFormatDepth24PlusStencil8,
		DepthTest:      true,
		DepthWrite:     true,
		BindingLayouts: layouts,
		PushSize:       64,
	}
}

func TestRenderPipelineCached(t *testing.T) {
	dev := gfxtest.NewDevice()
	c := NewCache(dev)
	vs, fs := newShader(t, dev, "vs"), newShader(t, dev, "fs")

	a, err := c.Render(renderDesc(vs, fs))
	if err != nil {
		t.Fatal(err)
	}
	desc := renderDesc(vs, fs)
	desc.Label = "other label"
	b, err := c.Render(desc)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("equal descriptors produced different pipelines")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats = %d/%d, want 1/1", hits, misses)
	}
	if dev.Created("pipeline") != 1 {
		t.Errorf("created %d pipelines, want 1", dev.Created("pipeline"))
	}
}

func TestRenderPipelineKeyFields(t *testing.T) {
	dev := gfxtest.NewDevice()
	c := NewCache(dev)
	vs, fs, fs2 := newShader(t, dev, "vs"), newShader(t, dev, "fs"), newShader(t, dev, "fs2")
	base, err := c.Render(renderDesc(vs, fs))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		modify func(d *gfx.RenderPipelineDescriptor)
	}{
		{"blend", func(d *gfx.RenderPipelineDescriptor) { d.Blend = gfx.BlendAlpha }},
		{"fragment shader", func(d *gfx.RenderPipelineDescriptor) { d.Fragment.Shader = fs2 }},
		{"entry", func(d *gfx.RenderPipelineDescriptor) { d.Vertex.Entry = "main" }},
		{"depth write", func(d *gfx.RenderPipelineDescriptor) { d.DepthWrite = false }},
		{"topology", func(d *gfx.RenderPipelineDescriptor) { d.Topology = gfx.TopologyLines }},
		{"push size", func(d *gfx.RenderPipelineDescriptor) { d.PushSize = 128 }},
		{"color format", func(d *gfx.RenderPipelineDescriptor) { d.ColorFormat = gputypes.TextureFormatBGRA8Unorm }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := renderDesc(vs, fs)
			tt.modify(d)
			p, err := c.Render(d)
			if err != nil {
				t.Fatal(err)
			}
			if p == base {
				t.Errorf("changing %s reused the base pipeline", tt.name)
			}
		})
	}
}

func TestComputePipelineCached(t *testing.T) {
	dev := gfxtest.NewDevice()
	c := NewCache(dev)
	cs := newShader(t, dev, "sky")
	layout, err := c.BindingLayout("compute", gfx.BindingLayoutEntry{Binding: 0, Kind: gfx.BindingStorageImage, Stages: gfx.StageCompute})
	if err != nil {
		t.Fatal(err)
	}
	desc := &gfx.ComputePipelineDescriptor{
		Label:          "sky",
		Compute:        gfx.ShaderEntry{Shader: cs, Entry: "main"},
		BindingLayouts: []gfx.BindingGroupLayout{layout},
	}
	a, err := c.Compute(desc)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Compute(desc)
	if a != b {
		t.Error("compute pipeline not cached")
	}
	if a.Kind() != gfx.PipelineCompute {
		t.Errorf("Kind = %v, want compute", a.Kind())
	}
}

func TestBindingLayoutDeduplicated(t *testing.T) {
	dev := gfxtest.NewDevice()
	c := NewCache(dev)
	entry := gfx.BindingLayoutEntry{Binding: 0, Kind: gfx.BindingUniformBuffer, Stages: gfx.StageVertex | gfx.StageFragment}

	a, _ := c.BindingLayout("scene", entry)
	b, _ := c.BindingLayout("scene-again", entry)
	if a != b {
		t.Error("equal layouts not shared")
	}
	d, _ := c.BindingLayout("empty")
	if d == a {
		t.Error("different layouts shared")
	}
	if dev.Live("binding-layout") != 2 {
		t.Errorf("live layouts = %d, want 2", dev.Live("binding-layout"))
	}

	c.DestroyAll()
	if dev.Live("binding-layout") != 0 {
		t.Errorf("live layouts after DestroyAll = %d", dev.Live("binding-layout"))
	}
}

func TestNilDescriptor(t *testing.T) {
	c := NewCache(gfxtest.NewDevice())
	if _, err := c.Render(nil); !errors.Is(err, ErrNilDescriptor) {
		t.Errorf("Render(nil) err = %v", err)
	}
	if _, err := c.Render(&gfx.RenderPipelineDescriptor{Label: "x"}); !errors.Is(err, ErrNilShader) {
		t.Errorf("Render without shader err = %v", err)
	}
	if _, err := c.Compute(&gfx.ComputePipelineDescriptor{}); !errors.Is(err, ErrNilShader) {
		t.Errorf("Compute without shader err = %v", err)
	}
}
