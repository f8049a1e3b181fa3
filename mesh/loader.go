package mesh

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/resource"
)

// StagingSize is the minimum staging buffer size, so small uploads share
// one recycled buffer.
const StagingSize = 1 << 20

// IndexFormat is the index format of every GPU mesh.
const IndexFormat = gputypes.IndexFormatUint32

// Properties describes a mesh resource.
type Properties struct {
	Name string
	Mesh *Mesh
}

// Handle refers to a mesh in a store.
type Handle = resource.Handle[Properties]

// GPUMesh is a mesh uploaded for one vertex layout.
type GPUMesh struct {
	Flags        VertexFlag
	Topology     Topology
	VertexBuffer gfx.Buffer
	VertexOffset int
	VertexLen    int
	VertexCount  int
	IndexBuffer  gfx.Buffer
	IndexOffset  int
	IndexCount   int
}

// VertexAddress returns the device address of the first vertex.
func (m *GPUMesh) VertexAddress() uint64 {
	return m.VertexBuffer.Address() + uint64(m.VertexOffset)
}

// Store holds meshes. The load parameter is the vertex layout the pass
// pipeline consumes.
type Store = resource.Store[Properties, GPUMesh, VertexFlag]

// Loader uploads meshes into buffers from a shared allocator.
type Loader struct {
	ctx     *gfx.Context
	buffers *pool.BufferAllocator
	retire  func(gfx.Buffer)
}

// NewLoader creates a loader. Unloaded buffers go back to buffers
// unless SetRetire installs a frame-deferred path.
func NewLoader(ctx *gfx.Context, buffers *pool.BufferAllocator) *Loader {
	return &Loader{ctx: ctx, buffers: buffers, retire: buffers.Recycle}
}

// SetRetire sets where buffers of unloaded meshes go.
func (l *Loader) SetRetire(fn func(gfx.Buffer)) { l.retire = fn }

// NewStore creates a mesh store backed by l.
func NewStore(l *Loader) *Store {
	return resource.NewStore[Properties, GPUMesh, VertexFlag]("mesh", l)
}

// Load implements resource.Loader.
func (l *Loader) Load(h Handle, props *Properties, flags VertexFlag) (GPUMesh, error) {
	if props.Mesh == nil || len(props.Mesh.Vertices) == 0 {
		return GPUMesh{}, fmt.Errorf("mesh %s: %w: no vertices", props.Name, resource.ErrInvalidData)
	}
	if !flags.Has(VertexPosition) {
		return GPUMesh{}, fmt.Errorf("mesh %s: %w: layout %v without position", props.Name, resource.ErrInvalidData, flags)
	}
	vertices, indices := props.Mesh.Pack(flags)

	m, err := l.Upload(props.Name, vertices, indices)
	if err != nil {
		return GPUMesh{}, err
	}
	m.Flags = flags
	m.Topology = props.Mesh.Topology
	m.VertexCount = len(props.Mesh.Vertices)
	logging.L().Debug("mesh: loaded", "name", props.Name, "handle", h.String(), "layout", flags,
		"vertices", m.VertexCount, "indices", m.IndexCount)
	return m, nil
}

// Upload copies packed vertex and index bytes into new pooled buffers
// through a staging buffer on the transfer queue.
func (l *Loader) Upload(name string, vertices, indices []byte) (GPUMesh, error) {
	dev := l.ctx.Device
	vb, err := l.buffers.Allocate(dev, "vertex:"+name, len(vertices), gfx.BufferFamilyVertex)
	if err != nil {
		return GPUMesh{}, fmt.Errorf("mesh %s: %w", name, err)
	}
	ib, err := l.buffers.Allocate(dev, "index:"+name, len(indices), gfx.BufferFamilyIndex)
	if err != nil {
		l.buffers.Recycle(vb)
		return GPUMesh{}, fmt.Errorf("mesh %s: %w", name, err)
	}
	staging, err := l.buffers.Allocate(dev, "staging", max(len(vertices)+len(indices), StagingSize), gfx.BufferFamilyStaging)
	if err != nil {
		l.buffers.Recycle(vb)
		l.buffers.Recycle(ib)
		return GPUMesh{}, fmt.Errorf("mesh %s: %w", name, err)
	}
	defer l.buffers.Recycle(staging)

	if err := l.transfer(name, staging, vb, ib, vertices, indices); err != nil {
		l.buffers.Recycle(vb)
		l.buffers.Recycle(ib)
		return GPUMesh{}, err
	}
	return GPUMesh{
		VertexBuffer: vb,
		VertexLen:    len(vertices),
		IndexBuffer:  ib,
		IndexCount:   len(indices) / 4,
	}, nil
}

// Unload implements resource.Loader.
func (l *Loader) Unload(m GPUMesh) {
	if m.VertexBuffer != nil {
		l.retire(m.VertexBuffer)
	}
	if m.IndexBuffer != nil {
		l.retire(m.IndexBuffer)
	}
}

func (l *Loader) transfer(name string, staging, vb, ib gfx.Buffer, vertices, indices []byte) error {
	q := l.ctx.Device.Queue(gfx.QueueTransfer)
	if err := q.WriteBuffer(staging, 0, vertices); err != nil {
		return fmt.Errorf("mesh %s: %w", name, err)
	}
	if err := q.WriteBuffer(staging, len(vertices), indices); err != nil {
		return fmt.Errorf("mesh %s: %w", name, err)
	}
	return l.ctx.RunTransfer("upload mesh "+name, func(cmd gfx.CommandRecorder) error {
		cmd.CopyBuffer(staging, vb, gfx.BufferCopy{Size: len(vertices)})
		cmd.CopyBuffer(staging, ib, gfx.BufferCopy{SrcOffset: len(vertices), Size: len(indices)})
		return nil
	})
}
