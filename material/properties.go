package material

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/uniform"
)

// Default shader entry points.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// TextureSlot names the role of a material texture.
type TextureSlot uint8

const (
	Diffuse TextureSlot = iota
	Normal
	Emission
	Specular
)

var slotNames = [...]string{Diffuse: "diffuse", Normal: "normal", Emission: "emission", Specular: "specular"}

func (s TextureSlot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("TextureSlot(%d)", s)
}

// ParseTextureSlot parses a texture slot name.
func ParseTextureSlot(s string) (TextureSlot, error) {
	for i, n := range slotNames {
		if strings.EqualFold(s, n) {
			return TextureSlot(i), nil
		}
	}
	return 0, fmt.Errorf("material: unknown texture slot %q", s)
}

// Property is a member of the material uniform block.
type Property uint8

const (
	DiffuseColor Property = iota
	EmissionColor
	SpecularColor
	SpecularPower
)

var propertyInfo = [...]struct {
	name string
	prop uniform.Prop
	def  any
}{
	DiffuseColor:  {"diffuse_color", uniform.Vec4F, mgl32.Vec4{1, 1, 1, 1}},
	EmissionColor: {"emission_color", uniform.Vec4F, mgl32.Vec4{0, 0, 0, 1}},
	SpecularColor: {"specular_color", uniform.Vec4F, mgl32.Vec4{1, 1, 1, 1}},
	SpecularPower: {"specular_power", uniform.F32, float32(32)},
}

func (p Property) String() string {
	if int(p) < len(propertyInfo) {
		return propertyInfo[p].name
	}
	return fmt.Sprintf("Property(%d)", p)
}

// Default returns the value used when an instance does not set p.
func (p Property) Default() any { return propertyInfo[p].def }

// ParseProperty parses a material property name.
func ParseProperty(s string) (Property, error) {
	for i, info := range propertyInfo {
		if strings.EqualFold(s, info.name) {
			return Property(i), nil
		}
	}
	return 0, fmt.Errorf("material: unknown property %q", s)
}

// Properties describes a material: the shaders, vertex layout, blending
// and the resources its instances bind.
type Properties struct {
	Name           string
	VertexShader   string
	VertexEntry    string
	FragmentShader string
	FragmentEntry  string
	VertexFlags    mesh.VertexFlag
	Blend          gfx.BlendMode
	Cull           gfx.CullMode
	Textures       []TextureSlot
	Uniforms       []Property
}

// Handle refers to a material in a store.
type Handle = resource.Handle[Properties]

// BlendingEnabled reports whether objects using the material are drawn
// in the transparent phase.
func (p *Properties) BlendingEnabled() bool { return p.Blend != gfx.BlendNone }

// BindingEntries returns the layout of the material binding group: a
// sampled image and a sampler per texture, followed by the uniform block
// when the material has uniform properties.
func (p *Properties) BindingEntries() []gfx.BindingLayoutEntry {
	entries := make([]gfx.BindingLayoutEntry, 0, 2*len(p.Textures)+1)
	for i := range p.Textures {
		entries = append(entries,
			gfx.BindingLayoutEntry{Binding: uint32(2 * i), Kind: gfx.BindingSampledImage, Stages: gfx.StageFragment},
			gfx.BindingLayoutEntry{Binding: uint32(2*i + 1), Kind: gfx.BindingSampler, Stages: gfx.StageFragment},
		)
	}
	if len(p.Uniforms) > 0 {
		entries = append(entries, gfx.BindingLayoutEntry{
			Binding: uint32(2 * len(p.Textures)),
			Kind:    gfx.BindingUniformBuffer,
			Stages:  gfx.StageVertex | gfx.StageFragment,
		})
	}
	return entries
}

// UniformMembers returns the members of the material uniform block.
func (p *Properties) UniformMembers() []uniform.Member {
	members := make([]uniform.Member, len(p.Uniforms))
	for i, u := range p.Uniforms {
		members[i] = uniform.Member{Name: u.String(), Prop: propertyInfo[u].prop}
	}
	return members
}

func (p *Properties) validate() error {
	if p.VertexShader == "" {
		return fmt.Errorf("material %s: %w: no vertex shader", p.Name, resource.ErrInvalidData)
	}
	if !p.VertexFlags.Has(mesh.VertexPosition) {
		return fmt.Errorf("material %s: %w: vertex layout %v without position", p.Name, resource.ErrInvalidData, p.VertexFlags)
	}
	for _, u := range p.Uniforms {
		if int(u) >= len(propertyInfo) {
			return fmt.Errorf("material %s: %w: %v", p.Name, resource.ErrInvalidData, u)
		}
	}
	return nil
}
