package batch

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/uniform"
)

// PassID identifies a render pass. Ids are assigned in registration order
// and double as the primary draw sort key.
type PassID uint32

// Pass is what the batch needs from a render pass to resolve draws.
type Pass interface {
	ID() PassID
	Name() string
	// UniformLayout is the per-frame scene layout, or nil.
	UniformLayout() *uniform.Layout
	// VertexFlags is the vertex layout of a fixed pass pipeline. Zero means
	// objects are drawn with their material pipelines.
	VertexFlags() mesh.VertexFlag
	// Target is the material target of material-driven passes.
	Target() material.Target
}

// RenderObject is one draw. Objects are rebuilt every frame.
type RenderObject struct {
	ModelID   uuid.UUID
	Transform mgl32.Mat4
	Pass      PassID

	VertexBuffer gfx.Buffer
	VertexOffset int
	VertexLen    int
	VertexCount  int
	IndexBuffer  gfx.Buffer
	IndexOffset  int
	IndexCount   int

	// Pipeline is nil for passes with a fixed pipeline.
	Pipeline    gfx.Pipeline
	Transparent bool
	// Groups are the material binding groups, bound from group 1 on.
	Groups     []gfx.BindingGroup
	MaterialID uuid.UUID
}

// PipelineID returns the id of the object pipeline, or zero.
func (o *RenderObject) PipelineID() gfx.PipelineID {
	if o.Pipeline == nil {
		return 0
	}
	return o.Pipeline.ID()
}

// VertexAddress returns the device address of the first vertex.
func (o *RenderObject) VertexAddress() uint64 {
	return o.VertexBuffer.Address() + uint64(o.VertexOffset)
}

// NormalMatrix returns the inverse transpose of the upper 3x3 transform.
func (o *RenderObject) NormalMatrix() mgl32.Mat3 {
	return o.Transform.Mat3().Inv().Transpose()
}

func objectFromMesh(m *mesh.GPUMesh) RenderObject {
	return RenderObject{
		VertexBuffer: m.VertexBuffer,
		VertexOffset: m.VertexOffset,
		VertexLen:    m.VertexLen,
		VertexCount:  m.VertexCount,
		IndexBuffer:  m.IndexBuffer,
		IndexOffset:  m.IndexOffset,
		IndexCount:   m.IndexCount,
	}
}
