// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgfx_test

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/assets"
	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/gfx/halgfx"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/resource"
)

func TestRendererOnNoopDevice(t *testing.T) {
	extent := gfx.Extent2D{Width: 64, Height: 32}
	r, err := framegraph.Open(extent, framegraph.WithBackend("noop"), framegraph.WithWGSLModules())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	disp, ok := r.Context().Display.(*halgfx.Display)
	if !ok {
		t.Fatalf("display is %T", r.Context().Display)
	}

	reg := r.Assets()
	flags := mesh.VertexPosition | mesh.VertexColor | mesh.VertexNormal
	color := reg.Materials.Add(material.Properties{Name: "color", VertexShader: "forward.wgsl", FragmentShader: "forward.wgsl", VertexFlags: flags}, resource.Static)
	cube := reg.Meshes.Add(mesh.Properties{Name: "cube", Mesh: mesh.Cube("cube", mgl32.Vec4{1, 1, 1, 1})}, resource.Static)
	model := assets.NewModel("cubes").Add(cube, reg.Instances.Add(material.NewInstance("color-1", color), resource.Static))

	fwd, err := r.Pass("forward")
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := r.Batch().AddModel(model, mgl32.Ident4(), fwd, false); err != nil {
			t.Fatal(err)
		}
		if err := r.Batch().AddCameraData(fwd, &batch.SceneInfo{View: mgl32.Ident4(), Projection: mgl32.Ident4()}); err != nil {
			t.Fatal(err)
		}
		if err := r.Draw(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if disp.Presents() != 3 {
		t.Errorf("presented %d frames, want 3", disp.Presents())
	}
	if r.Skipped() != 0 {
		t.Errorf("skipped %d frames", r.Skipped())
	}
}
