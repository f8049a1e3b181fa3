package pipeline

import (
	"encoding/binary"
	"hash"
	"hash/fnv"

	"github.com/gogpu/framegraph/gfx"
)

// identity maps device objects to stable numbers for hashing.
type identity func(obj any) uint64

// hashRender computes the cache key of a render pipeline descriptor.
// Labels do not participate in the key.
func hashRender(desc *gfx.RenderPipelineDescriptor, id identity) uint64 {
	h := fnv.New64a()

	writeU32(h, 'R')
	writeShaderEntry(h, desc.Vertex, id)
	writeShaderEntry(h, desc.Fragment, id)

	writeU32(h, desc.VertexStride)
	writeU32(h, uint32(len(desc.VertexLayout)))
	for _, a := range desc.VertexLayout {
		writeU32(h, a.Location)
		writeU32(h, uint32(a.Format))
		writeU32(h, a.Offset)
	}

	writeU32(h, uint32(desc.ColorFormat))
	writeU32(h, uint32(desc.DepthFormat))
	writeBool(h, desc.DepthTest)
	writeBool(h, desc.DepthWrite)
	writeU32(h, uint32(desc.Blend))
	writeU32(h, uint32(desc.Cull))
	writeU32(h, uint32(desc.Topology))

	writeLayouts(h, desc.BindingLayouts, id)
	writeU32(h, desc.PushSize)
	return h.Sum64()
}

func hashCompute(desc *gfx.ComputePipelineDescriptor, id identity) uint64 {
	h := fnv.New64a()
	writeU32(h, 'C')
	writeShaderEntry(h, desc.Compute, id)
	writeLayouts(h, desc.BindingLayouts, id)
	writeU32(h, desc.PushSize)
	return h.Sum64()
}

func hashLayoutEntries(entries []gfx.BindingLayoutEntry) uint64 {
	h := fnv.New64a()
	writeU32(h, uint32(len(entries)))
	for _, e := range entries {
		writeU32(h, e.Binding)
		writeU32(h, uint32(e.Kind))
		writeU32(h, uint32(e.Stages))
	}
	return h.Sum64()
}

func writeShaderEntry(h hash.Hash64, e gfx.ShaderEntry, id identity) {
	if e.Shader == nil {
		writeU64(h, 0)
	} else {
		writeU64(h, id(e.Shader))
	}
	writeString(h, e.Entry)
}

func writeLayouts(h hash.Hash64, layouts []gfx.BindingGroupLayout, id identity) {
	writeU32(h, uint32(len(layouts)))
	for _, l := range layouts {
		writeU64(h, id(l))
	}
}

func writeU32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeU64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeBool(h hash.Hash64, v bool) {
	if v {
		writeU32(h, 1)
	} else {
		writeU32(h, 0)
	}
}

func writeString(h hash.Hash64, s string) {
	writeU32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}
