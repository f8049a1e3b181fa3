package material

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/shader"
)

// Target describes the pass a material pipeline is built for. It is the
// load parameter of the material store, so each material builds one
// pipeline per pass.
type Target struct {
	Name        string
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	DepthTest   bool
	DepthWrite  bool
	Topology    gfx.Topology
	SceneLayout gfx.BindingGroupLayout
	PushSize    uint32
}

// Material is the GPU side of a material for one target.
type Material struct {
	Pipeline    gfx.Pipeline
	Layout      gfx.BindingGroupLayout
	VertexFlags mesh.VertexFlag
	Blending    bool
}

// Store holds materials.
type Store = resource.Store[Properties, Material, Target]

// Loader builds material pipelines through the shared shader library and
// pipeline cache. Pipelines are owned by the cache and survive unload.
type Loader struct {
	shaders   *shader.Library
	pipelines *pipeline.Cache
}

// NewLoader creates a material loader.
func NewLoader(shaders *shader.Library, pipelines *pipeline.Cache) *Loader {
	return &Loader{shaders: shaders, pipelines: pipelines}
}

// NewStore creates a material store backed by l.
func NewStore(l *Loader) *Store {
	return resource.NewStore[Properties, Material, Target]("material", l)
}

// Layout returns the binding group layout of props.
func (l *Loader) Layout(props *Properties) (gfx.BindingGroupLayout, error) {
	return l.pipelines.BindingLayout("material:"+props.Name, props.BindingEntries()...)
}

// Load implements resource.Loader.
func (l *Loader) Load(h Handle, props *Properties, target Target) (Material, error) {
	if err := props.validate(); err != nil {
		return Material{}, err
	}
	if target.SceneLayout == nil {
		return Material{}, fmt.Errorf("material %s: target %s has no scene layout", props.Name, target.Name)
	}
	layout, err := l.Layout(props)
	if err != nil {
		return Material{}, fmt.Errorf("material %s: %w", props.Name, err)
	}

	vs, err := l.shaders.Module(props.VertexShader)
	if err != nil {
		return Material{}, fmt.Errorf("material %s: %w", props.Name, err)
	}
	desc := &gfx.RenderPipelineDescriptor{
		Label:          props.Name + "@" + target.Name,
		Vertex:         gfx.ShaderEntry{Shader: vs, Entry: orDefault(props.VertexEntry, DefaultVertexEntry)},
		VertexStride:   props.VertexFlags.Stride(),
		VertexLayout:   props.VertexFlags.Attributes(),
		ColorFormat:    target.ColorFormat,
		DepthFormat:    target.DepthFormat,
		DepthTest:      target.DepthTest,
		DepthWrite:     target.DepthWrite && !props.BlendingEnabled(),
		Blend:          props.Blend,
		Cull:           props.Cull,
		Topology:       target.Topology,
		BindingLayouts: []gfx.BindingGroupLayout{target.SceneLayout, layout},
		PushSize:       target.PushSize,
	}
	if props.FragmentShader != "" {
		fs, err := l.shaders.Module(props.FragmentShader)
		if err != nil {
			return Material{}, fmt.Errorf("material %s: %w", props.Name, err)
		}
		desc.Fragment = gfx.ShaderEntry{Shader: fs, Entry: orDefault(props.FragmentEntry, DefaultFragmentEntry)}
	}

	p, err := l.pipelines.Render(desc)
	if err != nil {
		return Material{}, fmt.Errorf("material %s: %w", props.Name, err)
	}
	logging.L().Debug("material: pipeline ready", "material", props.Name, "handle", h.String(), "target", target.Name)
	return Material{Pipeline: p, Layout: layout, VertexFlags: props.VertexFlags, Blending: props.BlendingEnabled()}, nil
}

// Unload implements resource.Loader. Nothing is released: pipelines and
// layouts belong to the cache.
func (l *Loader) Unload(Material) {}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
