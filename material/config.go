package material

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/config"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/uniform"
)

// Config is a material configuration file: a default object layout and
// a table of named materials.
type Config struct {
	Default   DefaultConfig             `yaml:"default" toml:"default"`
	Materials map[string]MaterialConfig `yaml:"materials" toml:"materials" validate:"required,min=1,dive"`
}

// DefaultConfig holds settings shared by every material pass.
type DefaultConfig struct {
	ObjectLayout []string `yaml:"object_layout" toml:"object_layout" validate:"dive,oneof=world_matrix normal_matrix vertex_buffer_address"`
}

// MaterialConfig describes one named material.
type MaterialConfig struct {
	VertexShader     string   `yaml:"vertex_shader" toml:"vertex_shader" validate:"required"`
	VertexEntry      string   `yaml:"vertex_entry" toml:"vertex_entry"`
	FragmentShader   string   `yaml:"fragment_shader" toml:"fragment_shader"`
	FragmentEntry    string   `yaml:"fragment_entry" toml:"fragment_entry"`
	VertexAttributes []string `yaml:"vertex_attributes" toml:"vertex_attributes" validate:"required,min=1"`
	BlendMode        string   `yaml:"blend_mode" toml:"blend_mode" validate:"omitempty,oneof=none alpha premultiplied additive"`
	Cull             string   `yaml:"cull" toml:"cull" validate:"omitempty,oneof=none back front"`
	TextureLayout    []string `yaml:"texture_layout" toml:"texture_layout" validate:"dive,oneof=diffuse normal emission specular"`
	MaterialLayout   []string `yaml:"material_layout" toml:"material_layout" validate:"dive,oneof=diffuse_color emission_color specular_color specular_power"`
}

// ParseConfig decodes and validates a material configuration.
func ParseConfig(data []byte, format config.Format) (*Config, error) {
	var c Config
	if err := config.Decode(data, format, &c); err != nil {
		return nil, fmt.Errorf("material: %w", err)
	}
	return &c, nil
}

// LoadConfig reads a material configuration from fsys. The format follows
// the file extension.
func LoadConfig(fsys fs.FS, name string) (*Config, error) {
	var c Config
	if err := config.Load(fsys, name, &c); err != nil {
		return nil, fmt.Errorf("material: %w", err)
	}
	return &c, nil
}

// ObjectLayout returns the default per-draw object layout.
func (c *Config) ObjectLayout() ([]uniform.ObjectProp, error) {
	return uniform.ParseObjectProps(c.Default.ObjectLayout)
}

// Names returns the material names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Materials))
	for n := range c.Materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Properties converts the named material into material properties.
func (c *Config) Properties(name string) (Properties, error) {
	mc, ok := c.Materials[name]
	if !ok {
		return Properties{}, fmt.Errorf("material: %w: %s", resource.ErrNotFound, name)
	}
	flags, err := mesh.ParseVertexFlags(mc.VertexAttributes)
	if err != nil {
		return Properties{}, fmt.Errorf("material %s: %w", name, err)
	}
	p := Properties{
		Name:           name,
		VertexShader:   mc.VertexShader,
		VertexEntry:    mc.VertexEntry,
		FragmentShader: mc.FragmentShader,
		FragmentEntry:  mc.FragmentEntry,
		VertexFlags:    flags,
		Blend:          parseBlend(mc.BlendMode),
		Cull:           parseCull(mc.Cull),
	}
	for _, s := range mc.TextureLayout {
		slot, err := ParseTextureSlot(s)
		if err != nil {
			return Properties{}, err
		}
		p.Textures = append(p.Textures, slot)
	}
	for _, s := range mc.MaterialLayout {
		prop, err := ParseProperty(s)
		if err != nil {
			return Properties{}, err
		}
		p.Uniforms = append(p.Uniforms, prop)
	}
	return p, nil
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

func parseCull(s string) gfx.CullMode {
	switch s {
	case "back":
		return gfx.CullBack
	case "front":
		return gfx.CullFront
	}
	return gfx.CullNone
}

// Registry maps configured material names to store handles.
type Registry struct {
	store     *Store
	instances *InstanceStore
	handles   map[string]Handle
}

// NewRegistry creates an empty registry over store. When instances is not
// nil, instances of updated materials drop their binding groups too.
func NewRegistry(store *Store, instances *InstanceStore) *Registry {
	return &Registry{store: store, instances: instances, handles: make(map[string]Handle)}
}

// Apply registers every material of c. Materials already registered under
// the same name are updated in place so existing handles see the new
// properties; their pipelines are rebuilt on next use.
func (r *Registry) Apply(c *Config) error {
	for _, name := range c.Names() {
		props, err := c.Properties(name)
		if err != nil {
			return err
		}
		if h, ok := r.handles[name]; ok && r.store.Contains(h) {
			if err := r.store.Update(h, props); err != nil {
				return err
			}
			r.reloadInstances(h)
			logging.L().Info("material: updated", "name", name)
			continue
		}
		r.handles[name] = r.store.Add(props, resource.Static)
	}
	return nil
}

func (r *Registry) reloadInstances(material Handle) {
	if r.instances == nil {
		return
	}
	r.instances.Each(func(h InstanceHandle, props *InstanceProperties) {
		if props.Material == material {
			// Update only fails for stale handles, and Each yields live ones.
			_ = r.instances.Update(h, *props)
		}
	})
}

// Handle returns the handle of a configured material.
func (r *Registry) Handle(name string) (Handle, error) {
	h, ok := r.handles[name]
	if !ok {
		return Handle{}, fmt.Errorf("material: %w: %s", resource.ErrNotFound, name)
	}
	return h, nil
}

// Len returns the number of registered materials.
func (r *Registry) Len() int { return len(r.handles) }
