package batch

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph/assets"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/uniform"
)

// Batch is the draw list of one frame plus the per-pass scene data.
type Batch struct {
	assets  *assets.Registry
	objects []RenderObject
	scene   map[PassID][]byte
	stats   RenderStats
	retire  func(gfx.Buffer)
}

// New creates an empty batch resolving models through r. Buffers of
// transient geometry go back to the registry pool unless SetRetire
// installs a frame-deferred path.
func New(r *assets.Registry) *Batch {
	return &Batch{assets: r, scene: make(map[PassID][]byte), retire: r.Buffers.Recycle}
}

// SetRetire sets where buffers of transient geometry go after the frame.
func (b *Batch) SetRetire(fn func(gfx.Buffer)) { b.retire = fn }

// AddModel appends one object per primitive of m for pass p. Meshes and
// materials are resolved with the pass parameters and loaded on first
// use. Transient models upload their meshes for this frame only.
func (b *Batch) AddModel(m *assets.Model, transform mgl32.Mat4, p Pass, transient bool) error {
	for i, prim := range m.Primitives {
		obj, err := b.resolve(m, prim, p, transient)
		if err != nil {
			return fmt.Errorf("batch: model %s primitive %d: %w", m.Name, i, err)
		}
		obj.ModelID = m.ID
		obj.Transform = transform
		obj.Pass = p.ID()
		b.push(obj)
	}
	return nil
}

func (b *Batch) resolve(m *assets.Model, prim assets.Primitive, p Pass, transient bool) (RenderObject, error) {
	r := b.assets
	ip, err := r.Instances.Properties(prim.Instance)
	if err != nil {
		return RenderObject{}, err
	}
	mp, err := r.Materials.Properties(ip.Material)
	if err != nil {
		return RenderObject{}, err
	}

	var (
		pipeline gfx.Pipeline
		groups   []gfx.BindingGroup
		id       = ip.ID
	)
	// Fixed-pipeline passes only need geometry in their own layout.
	flags := p.VertexFlags()
	if flags == 0 {
		mat, err := r.Materials.GetData(ip.Material, p.Target())
		if err != nil {
			return RenderObject{}, err
		}
		inst, err := r.Instances.GetData(prim.Instance, struct{}{})
		if err != nil {
			return RenderObject{}, err
		}
		flags = mat.VertexFlags
		pipeline = mat.Pipeline
		groups = []gfx.BindingGroup{inst.Group}
	}

	var gm *mesh.GPUMesh
	if transient {
		gm, err = b.upload(m.Name, prim.Mesh, flags)
	} else {
		gm, err = r.Meshes.GetData(prim.Mesh, flags)
	}
	if err != nil {
		return RenderObject{}, err
	}
	obj := objectFromMesh(gm)
	obj.Pipeline = pipeline
	obj.Groups = groups
	obj.MaterialID = id
	obj.Transparent = mp.BlendingEnabled()
	return obj, nil
}

func (b *Batch) upload(name string, h mesh.Handle, flags mesh.VertexFlag) (*mesh.GPUMesh, error) {
	props, err := b.assets.Meshes.Properties(h)
	if err != nil {
		return nil, err
	}
	if props.Mesh == nil {
		return nil, fmt.Errorf("mesh %s: no geometry", props.Name)
	}
	vertices, indices := props.Mesh.Pack(flags)
	gm, err := b.assets.MeshLoader().Upload(name+"/"+props.Name, vertices, indices)
	if err != nil {
		return nil, err
	}
	b.retire(gm.VertexBuffer)
	b.retire(gm.IndexBuffer)
	gm.Flags = flags
	gm.VertexCount = len(props.Mesh.Vertices)
	return &gm, nil
}

// AddBounds appends a wireframe box for pass p. The geometry lives for
// this frame only.
func (b *Batch) AddBounds(box mesh.Bounds, transform mgl32.Mat4, p Pass) error {
	wire := box.Wireframe("bounds")
	flags := p.VertexFlags()
	if flags == 0 {
		flags = mesh.VertexPosition
	}
	vertices, indices := wire.Pack(flags)
	gm, err := b.assets.MeshLoader().Upload("bounds", vertices, indices)
	if err != nil {
		return fmt.Errorf("batch: bounds: %w", err)
	}
	b.retire(gm.VertexBuffer)
	b.retire(gm.IndexBuffer)
	gm.VertexCount = len(wire.Vertices)

	obj := objectFromMesh(&gm)
	obj.Transform = transform
	obj.Pass = p.ID()
	b.push(obj)
	return nil
}

// AddObject appends a pre-built object.
func (b *Batch) AddObject(obj RenderObject) { b.push(obj) }

func (b *Batch) push(obj RenderObject) {
	b.objects = append(b.objects, obj)
	b.stats.Objects++
}

// SetSceneData sets the packed scene uniform of pass id.
func (b *Batch) SetSceneData(id PassID, data []byte) { b.scene[id] = data }

// AddCameraData packs scene into the uniform layout of p. Passes without
// a uniform layout are skipped.
func (b *Batch) AddCameraData(p Pass, scene *SceneInfo) error {
	l := p.UniformLayout()
	if l == nil {
		return nil
	}
	data, err := scene.Pack(l)
	if err != nil {
		return fmt.Errorf("batch: pass %s: %w", p.Name(), err)
	}
	b.scene[p.ID()] = data
	return nil
}

// AddExtentData packs the screen size into the uniform layout of p, whose
// single member must be a vec2.
func (b *Batch) AddExtentData(p Pass, extent gfx.Extent2D) error {
	l := p.UniformLayout()
	if l == nil {
		return nil
	}
	data, err := l.Pack(mgl32.Vec2{float32(extent.Width), float32(extent.Height)})
	if err != nil {
		return fmt.Errorf("batch: pass %s: %w", p.Name(), err)
	}
	b.scene[p.ID()] = data
	return nil
}

// SceneData returns the scene uniform bytes of pass id.
func (b *Batch) SceneData(id PassID) ([]byte, bool) {
	d, ok := b.scene[id]
	return d, ok
}

// Objects returns the draw list. After Finish it is sorted.
func (b *Batch) Objects() []RenderObject { return b.objects }

// Len returns the number of objects.
func (b *Batch) Len() int { return len(b.objects) }

// Stats returns the frame statistics.
func (b *Batch) Stats() *RenderStats { return &b.stats }

// Finish sorts the draw list by pass, opaque before transparent, then
// material and model. Equal keys keep insertion order.
func (b *Batch) Finish() {
	slices.SortStableFunc(b.objects, compareObjects)
	logging.L().Debug("batch: finished", "objects", len(b.objects))
}

func compareObjects(x, y RenderObject) int {
	if x.Pass != y.Pass {
		if x.Pass < y.Pass {
			return -1
		}
		return 1
	}
	if x.Transparent != y.Transparent {
		if !x.Transparent {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(x.MaterialID[:], y.MaterialID[:]); c != 0 {
		return c
	}
	return bytes.Compare(x.ModelID[:], y.ModelID[:])
}

// Reset clears the draw list, the scene data and the statistics.
func (b *Batch) Reset() {
	clear(b.objects)
	b.objects = b.objects[:0]
	clear(b.scene)
	b.stats.Reset()
}

// ObjectData packs the per-draw data of obj into layout l.
func ObjectData(l *uniform.Layout, obj *RenderObject, dst []byte) error {
	members := l.Members()
	values := make([]any, len(members))
	for i, m := range members {
		switch m.Name {
		case uniform.WorldMatrix.String():
			values[i] = obj.Transform
		case uniform.NormalMatrix.String():
			values[i] = obj.NormalMatrix()
		case uniform.VertexBufferAddress.String():
			values[i] = obj.VertexAddress()
		default:
			return fmt.Errorf("%w: %s has no object value for %q", uniform.ErrLayoutMismatch, l.Name(), m.Name)
		}
	}
	return l.PackInto(dst, values...)
}
