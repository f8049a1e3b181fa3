package assets

import (
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/gfxtest"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/texture"
)

func newRegistry(t *testing.T) (*gfxtest.Device, *Registry) {
	t.Helper()
	dev := gfxtest.NewDevice()
	ctx, err := gfx.NewContext(dev, nil, gfx.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Close)
	lib := shader.NewLibrary(dev, shader.WithSPIRV(false))
	t.Cleanup(lib.Close)
	pipelines := pipeline.NewCache(dev)
	t.Cleanup(pipelines.DestroyAll)
	return dev, NewRegistry(ctx, lib, pipelines)
}

func TestModelPrimitives(t *testing.T) {
	_, r := newRegistry(t)
	cube := r.Meshes.Add(mesh.Properties{Name: "cube", Mesh: mesh.Cube("cube", mgl32.Vec4{1, 1, 1, 1})}, resource.Static)
	mat := r.Materials.Add(material.Properties{
		Name:         "color",
		VertexShader: "forward.wgsl",
		VertexFlags:  mesh.VertexPosition | mesh.VertexColor | mesh.VertexNormal,
	}, resource.Static)
	inst := r.Instances.Add(material.NewInstance("color-1", mat), resource.Static)

	a := NewModel("a").Add(cube, inst).Add(cube, inst)
	b := NewModel("b")
	if a.ID == b.ID {
		t.Error("models share an id")
	}
	if len(a.Primitives) != 2 || a.Primitives[1].Mesh != cube {
		t.Errorf("primitives = %v", a.Primitives)
	}
}

func TestRegistryCloseReleasesEverything(t *testing.T) {
	dev, r := newRegistry(t)
	var deferred []gfx.Buffer
	r.SetRetire(func(b gfx.Buffer) { deferred = append(deferred, b) }, func(fn func()) { fn() })

	tex := r.Textures.Add(texture.New("white", texture.Solid(color.White, 4, 4)), resource.Static)
	if _, err := r.Textures.GetData(tex, struct{}{}); err != nil {
		t.Fatal(err)
	}
	tri := r.Meshes.Add(mesh.Properties{Name: "quad", Mesh: mesh.Quad("quad", mgl32.Vec4{1, 0, 0, 1})}, resource.Transient)
	if _, err := r.Meshes.GetData(tri, mesh.VertexPosition); err != nil {
		t.Fatal(err)
	}

	r.SetFrame(5)
	if n := r.CollectTransient(2); n != 1 {
		t.Fatalf("collected %d, want 1", n)
	}
	if len(deferred) != 2 {
		t.Errorf("deferred %d buffers, want vertex and index", len(deferred))
	}
	for _, b := range deferred {
		r.Buffers.Recycle(b)
	}

	r.Close()
	if n := dev.Live("buffer"); n != 0 {
		t.Errorf("live buffers = %d", n)
	}
	if n := dev.Live("image"); n != 0 {
		t.Errorf("live images = %d", n)
	}
	if n := dev.Live("sampler"); n != 0 {
		t.Errorf("live samplers = %d", n)
	}
}
