package material

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/texture"
	"github.com/gogpu/framegraph/uniform"
)

// InstanceProperties binds concrete textures and uniform values to a
// material.
type InstanceProperties struct {
	ID       uuid.UUID
	Name     string
	Material Handle
	// Textures follow the texture slots of the material, in order.
	Textures []texture.Handle
	// Values overrides material property defaults.
	Values map[Property]any
}

// NewInstance returns instance properties with a fresh id.
func NewInstance(name string, material Handle, textures ...texture.Handle) InstanceProperties {
	return InstanceProperties{ID: uuid.New(), Name: name, Material: material, Textures: textures}
}

// InstanceHandle refers to a material instance in a store.
type InstanceHandle = resource.Handle[InstanceProperties]

// Instance is the GPU side of a material instance: its binding group and
// the resources behind it.
type Instance struct {
	ID       uuid.UUID
	Material Handle
	Blending bool
	Group    gfx.BindingGroup
	Uniform  *uniform.Buffer
	pool     gfx.BindingGroupPool
}

// InstanceStore holds material instances. Instances do not depend on the
// pass, so the load parameter is empty.
type InstanceStore = resource.Store[InstanceProperties, Instance, struct{}]

// InstanceLoader builds instance binding groups. It reads the material
// and texture stores it was created with.
type InstanceLoader struct {
	ctx       *gfx.Context
	loader    *Loader
	materials *Store
	textures  *texture.Store
	uniforms  *uniform.Allocator
	layouts   map[string]*uniform.Layout
	retire    func(func())
}

// NewInstanceLoader creates an instance loader. Released resources are
// freed immediately unless SetRetire installs a frame-deferred path.
func NewInstanceLoader(ctx *gfx.Context, loader *Loader, materials *Store, textures *texture.Store, uniforms *uniform.Allocator) *InstanceLoader {
	return &InstanceLoader{
		ctx:       ctx,
		loader:    loader,
		materials: materials,
		textures:  textures,
		uniforms:  uniforms,
		layouts:   make(map[string]*uniform.Layout),
		retire:    func(fn func()) { fn() },
	}
}

// SetRetire sets how the resources of unloaded instances are released.
func (l *InstanceLoader) SetRetire(fn func(release func())) { l.retire = fn }

// NewInstanceStore creates an instance store backed by l.
func NewInstanceStore(l *InstanceLoader) *InstanceStore {
	return resource.NewStore[InstanceProperties, Instance, struct{}]("material-instance", l)
}

// uniformLayout returns one shared layout per member list, so uniform
// buffers of equal layouts pool together.
func (l *InstanceLoader) uniformLayout(props *Properties) *uniform.Layout {
	members := props.UniformMembers()
	key := uniform.NewLayout("material", members...).String()
	if ul, ok := l.layouts[key]; ok {
		return ul
	}
	ul := uniform.NewLayout("material", members...)
	l.layouts[key] = ul
	return ul
}

// Load implements resource.Loader.
func (l *InstanceLoader) Load(h InstanceHandle, props *InstanceProperties, _ struct{}) (Instance, error) {
	mp, err := l.materials.Properties(props.Material)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s: %w", props.Name, err)
	}
	if len(props.Textures) != len(mp.Textures) {
		return Instance{}, fmt.Errorf("instance %s: %w: %d textures for material %s with %d slots",
			props.Name, resource.ErrInvalidData, len(props.Textures), mp.Name, len(mp.Textures))
	}
	layout, err := l.loader.Layout(mp)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s: %w", props.Name, err)
	}

	entries := make([]gfx.BindingEntry, 0, len(layout.Entries()))
	for i, th := range props.Textures {
		tex, err := l.textures.GetData(th, struct{}{})
		if err != nil {
			return Instance{}, fmt.Errorf("instance %s: %s texture: %w", props.Name, mp.Textures[i], err)
		}
		entries = append(entries,
			gfx.BindingEntry{Binding: uint32(2 * i), Image: tex.Image},
			gfx.BindingEntry{Binding: uint32(2*i + 1), Sampler: tex.Sampler},
		)
	}

	inst := Instance{ID: props.ID, Material: props.Material, Blending: mp.BlendingEnabled()}
	if len(mp.Uniforms) > 0 {
		ul := l.uniformLayout(mp)
		buf, err := l.uniforms.Allocate(l.ctx.Device, "material:"+props.Name, ul.Size(), ul)
		if err != nil {
			return Instance{}, fmt.Errorf("instance %s: %w", props.Name, err)
		}
		values := make([]any, len(mp.Uniforms))
		for i, u := range mp.Uniforms {
			values[i] = u.Default()
			if v, ok := props.Values[u]; ok {
				values[i] = v
			}
		}
		if err := buf.Update(l.ctx.Device.Queue(gfx.QueueGraphics), values...); err != nil {
			l.uniforms.Recycle(buf)
			return Instance{}, fmt.Errorf("instance %s: %w: %w", props.Name, resource.ErrInvalidData, err)
		}
		inst.Uniform = buf
		entries = append(entries, gfx.BindingEntry{Binding: uint32(2 * len(mp.Textures)), Buffer: buf.Buffer, Size: ul.Size()})
	}

	inst.pool, err = l.ctx.Device.CreateBindingGroupPool("instance:"+props.Name, layout, l.ctx.BindingPoolCapacity())
	if err != nil {
		l.release(inst)
		return Instance{}, fmt.Errorf("instance %s: %w", props.Name, err)
	}
	inst.Group, err = inst.pool.Allocate(props.Name, entries)
	if err != nil {
		l.release(inst)
		return Instance{}, fmt.Errorf("instance %s: %w", props.Name, err)
	}
	logging.L().Debug("material: instance ready", "instance", props.Name, "handle", h.String(),
		"material", mp.Name, "textures", len(props.Textures))
	return inst, nil
}

func (l *InstanceLoader) release(inst Instance) {
	if inst.pool != nil {
		inst.pool.Destroy()
	}
	if inst.Uniform != nil {
		l.uniforms.Recycle(inst.Uniform)
	}
}

// Unload implements resource.Loader.
func (l *InstanceLoader) Unload(inst Instance) {
	l.retire(func() { l.release(inst) })
}
