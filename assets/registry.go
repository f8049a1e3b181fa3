// Package assets groups the resource stores of a renderer: textures,
// meshes, materials and material instances, with the loaders and pools
// behind them.
package assets

import (
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/texture"
	"github.com/gogpu/framegraph/uniform"
)

// Registry owns the resource stores. Stores reference each other by
// handle only: instances name their material and textures, models name
// meshes and instances.
type Registry struct {
	Textures  *texture.Store
	Meshes    *mesh.Store
	Materials *material.Store
	Instances *material.InstanceStore
	Configs   *material.Registry

	Buffers  *pool.BufferAllocator
	Uniforms *uniform.Allocator

	textures  *texture.Loader
	meshes    *mesh.Loader
	materials *material.Loader
	instances *material.InstanceLoader
}

// NewRegistry creates empty stores whose loaders upload through ctx and
// build pipelines with shaders and pipelines.
func NewRegistry(ctx *gfx.Context, shaders *shader.Library, pipelines *pipeline.Cache) *Registry {
	r := &Registry{
		Buffers:  pool.NewBufferAllocator("buffers"),
		Uniforms: uniform.NewAllocator(),
	}
	r.textures = texture.NewLoader(ctx, r.Buffers)
	r.Textures = texture.NewStore(r.textures)
	r.meshes = mesh.NewLoader(ctx, r.Buffers)
	r.Meshes = mesh.NewStore(r.meshes)
	r.materials = material.NewLoader(shaders, pipelines)
	r.Materials = material.NewStore(r.materials)
	r.instances = material.NewInstanceLoader(ctx, r.materials, r.Materials, r.Textures, r.Uniforms)
	r.Instances = material.NewInstanceStore(r.instances)
	r.Configs = material.NewRegistry(r.Materials, r.Instances)
	return r
}

// SetRetire routes GPU objects released by unloads through a
// frame-deferred path. buffer receives mesh buffers; release receives
// destructors of instance resources and texture images.
func (r *Registry) SetRetire(buffer func(gfx.Buffer), release func(func())) {
	r.meshes.SetRetire(buffer)
	r.textures.SetRetire(release)
	r.instances.SetRetire(release)
}

// MeshLoader returns the mesh loader, used for transient geometry uploads.
func (r *Registry) MeshLoader() *mesh.Loader { return r.meshes }

// ApplyMaterials registers or updates the materials of c.
func (r *Registry) ApplyMaterials(c *material.Config) error {
	return r.Configs.Apply(c)
}

// SetFrame records the frame number in every store.
func (r *Registry) SetFrame(frame uint64) {
	r.Textures.SetFrame(frame)
	r.Meshes.SetFrame(frame)
	r.Materials.SetFrame(frame)
	r.Instances.SetFrame(frame)
}

// CollectTransient releases transient resources unused for
// framesInFlight frames and returns how many were released.
func (r *Registry) CollectTransient(framesInFlight int) int {
	return r.Instances.CollectTransient(framesInFlight) +
		r.Materials.CollectTransient(framesInFlight) +
		r.Meshes.CollectTransient(framesInFlight) +
		r.Textures.CollectTransient(framesInFlight)
}

// Close unloads every resource and destroys pooled objects. The device
// must be idle, so releases no longer need deferring.
func (r *Registry) Close() {
	r.SetRetire(r.Buffers.Recycle, func(release func()) { release() })
	r.Instances.Close()
	r.Materials.Close()
	r.Meshes.Close()
	r.Textures.Close()
	r.textures.Close()
	r.Buffers.Drain()
	r.Uniforms.Drain()
}
