// Package framegraph is a real-time rendering core built around a frame
// graph.
//
// # Overview
//
// A Renderer owns a GPU device context, a registry of GPU resources
// (meshes, textures, materials and material instances), a frame graph of
// render passes and the batch of objects drawn each frame. The graph runs
// its passes in declared order over shared attachments, records them into
// one command recorder per frame in flight and presents the result.
//
// # Quick Start
//
//	import "github.com/gogpu/framegraph"
//
//	r, err := framegraph.Open(gfx.Extent2D{Width: 1280, Height: 720})
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	cube := r.Assets().Meshes.Add(mesh.Properties{Name: "cube", Mesh: mesh.Cube("cube", white)}, resource.Static)
//	// ... materials, instances and models ...
//
//	for running {
//	    fwd, _ := r.Pass("forward")
//	    r.Batch().AddModel(model, transform, fwd, false)
//	    r.Batch().AddCameraData(fwd, &scene)
//	    if err := r.Draw(ctx); err != nil {
//	        return err // fatal, the device is gone
//	    }
//	}
//
// # Architecture
//
// The library is organized into:
//   - gfx: backend-neutral device, command recording, fences and display
//   - pool, resource: object pooling and generational resource stores
//   - shader, pipeline, uniform: shader modules, pipeline cache, data layouts
//   - texture, mesh, material, assets: resource types and their loaders
//   - batch, pass, graph: per-frame draw list, render passes, frame graph
//
// Backends register themselves with gfx; gfx/halgfx runs on gogpu/wgpu's
// HAL and gfx/gfxtest is a deterministic software device for tests.
//
// # Frames in flight
//
// Each frame slot owns a recorder, a fence and, with a display, two
// semaphores. A slot is reused only after its fence signaled, and GPU
// objects released during a frame are recycled only then.
//
// # Errors
//
// Draw skips frames whose surface is lost or outdated and recreates the
// swapchain on the next call. Errors matching graph.ErrFatal (fence
// timeouts, lost devices, failed allocations) are returned.
package framegraph
