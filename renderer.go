package framegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/assets"
	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/pass"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// Renderer ties a device context, the resource registry, a frame graph
// and the per-frame batch together. A Renderer is owned by the render
// goroutine.
//
// A frame is drawn by filling the batch and calling Draw:
//
//	b := r.Batch()
//	fwd, _ := r.Pass("forward")
//	b.AddModel(model, transform, fwd, false)
//	b.AddCameraData(fwd, &scene)
//	err := r.Draw(ctx)
type Renderer struct {
	ctx       *gfx.Context
	shaders   *shader.Library
	pipelines *pipeline.Cache
	assets    *assets.Registry
	graph     *graph.Graph
	batch     *batch.Batch
	metrics   *batch.Metrics

	frame   uint64
	skipped uint64

	// Swapchain recreation requested by a surface error or Resize. A
	// surface error keeps the display extent.
	recreate bool
	resize   bool
	extent   gfx.Extent2D

	watcher     *material.Watcher
	stopWatcher context.CancelFunc
	ownsDevice  bool
}

// Open opens a device through the backend registry and creates a renderer
// for it. A zero extent opens a headless device. The renderer destroys the
// device on Close.
func Open(extent gfx.Extent2D, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	device, display, err := gfx.Open(o.backend, gfx.BackendOptions{Extent: extent, Label: "framegraph"})
	if err != nil {
		return nil, fmt.Errorf("framegraph: open: %w", err)
	}
	r, err := newRenderer(device, display, o)
	if err != nil {
		device.Destroy()
		return nil, err
	}
	r.ownsDevice = true
	return r, nil
}

// New creates a renderer on an existing device. display may be nil for
// headless rendering.
func New(device gfx.Device, display gfx.Display, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newRenderer(device, display, o)
}

func newRenderer(device gfx.Device, display gfx.Display, o options) (*Renderer, error) {
	ctx, err := gfx.NewContext(device, display, o.gfx)
	if err != nil {
		return nil, fmt.Errorf("framegraph: %w", err)
	}
	shaderOpts := []shader.Option{shader.WithSPIRV(o.spirv)}
	if o.shaderFS != nil {
		shaderOpts = append(shaderOpts, shader.WithFS(o.shaderFS))
	}
	r := &Renderer{
		ctx:       ctx,
		shaders:   shader.NewLibrary(device, shaderOpts...),
		pipelines: pipeline.NewCache(device),
	}
	r.assets = assets.NewRegistry(ctx, r.shaders, r.pipelines)
	if o.materials != nil {
		if err := r.assets.ApplyMaterials(o.materials); err != nil {
			r.Close()
			return nil, fmt.Errorf("framegraph: materials: %w", err)
		}
	}

	gopts := []graph.Option{
		graph.WithMinRenderExtent(o.minExtent),
		graph.WithRenderScaling(o.scaling),
		graph.WithBufferAllocator(r.assets.Buffers),
	}
	if o.tracer != nil {
		gopts = append(gopts, graph.WithTracerProvider(o.tracer))
	}
	if r.graph, err = graph.New(ctx, gopts...); err != nil {
		r.Close()
		return nil, fmt.Errorf("framegraph: %w", err)
	}

	cfg := o.graphs
	if cfg == nil {
		if cfg, err = graph.DefaultConfig(); err != nil {
			r.Close()
			return nil, fmt.Errorf("framegraph: %w", err)
		}
	}
	preset := o.preset
	if preset == "" {
		preset = graph.PresetDefault
		if display == nil {
			preset = graph.PresetHeadless
		}
	}
	env := pass.Env{Ctx: ctx, Shaders: r.shaders, Pipelines: r.pipelines, Uniforms: r.assets.Uniforms}
	if err := cfg.Build(r.graph, env, preset); err != nil {
		r.Close()
		return nil, fmt.Errorf("framegraph: %w", err)
	}

	r.assets.SetRetire(r.graph.Retire, r.graph.Defer)
	r.batch = batch.New(r.assets)
	r.batch.SetRetire(r.graph.Retire)

	if o.metrics != nil {
		if r.metrics, err = batch.NewMetrics("framegraph", o.metrics); err != nil {
			r.Close()
			return nil, fmt.Errorf("framegraph: metrics: %w", err)
		}
		for _, p := range r.graph.Passes() {
			r.metrics.SetPassName(p.ID(), p.Name())
		}
	}

	logging.L().Info("framegraph: renderer ready",
		"graph", preset,
		"passes", len(r.graph.Passes()),
		"frames", ctx.FramesInFlight(),
		"draw", r.graph.DrawExtent())
	return r, nil
}

// Context returns the device context.
func (r *Renderer) Context() *gfx.Context { return r.ctx }

// Assets returns the resource registry.
func (r *Renderer) Assets() *assets.Registry { return r.assets }

// Graph returns the frame graph.
func (r *Renderer) Graph() *graph.Graph { return r.graph }

// Batch returns the batch the next Draw renders. It is cleared after
// every Draw.
func (r *Renderer) Batch() *batch.Batch { return r.batch }

// Pass returns the graph pass called name.
func (r *Renderer) Pass(name string) (pass.RenderPass, error) { return r.graph.PassByName(name) }

// Frame returns the number of the next frame.
func (r *Renderer) Frame() uint64 { return r.frame }

// Skipped returns how many frames were skipped for swapchain recreation.
func (r *Renderer) Skipped() uint64 { return r.skipped }

// Resize schedules a surface resize. It takes effect on the next Draw.
func (r *Renderer) Resize(extent gfx.Extent2D) {
	r.extent = extent
	r.resize = true
	r.recreate = true
}

// Draw renders the batch as the next frame and clears it. A frame hitting
// a lost or outdated surface is skipped without error; the swapchain is
// recreated on the next Draw. Errors matching graph.ErrFatal mean the
// device must be torn down.
func (r *Renderer) Draw(ctx context.Context) error {
	r.applyMaterialConfigs()
	if r.recreate {
		if err := r.recreateSwapchain(); err != nil {
			if graph.IsSurfaceError(err) {
				r.skip(err)
				return nil
			}
			return err
		}
	}

	b := r.batch
	r.assets.SetFrame(r.frame)
	b.Stats().MarkPrepareBegin()
	b.Finish()
	b.Stats().MarkPrepareDraw()
	err := r.graph.Draw(ctx, r.frame, b)
	b.Stats().MarkPrepareEnd()
	if err == nil && r.metrics != nil {
		r.metrics.Observe(b.Stats())
		r.metrics.ObservePool(r.assets.Buffers.Name(), r.assets.Buffers.Stats())
		r.metrics.ObservePool(r.assets.Uniforms.Name(), r.assets.Uniforms.Stats())
	}
	b.Reset()
	r.frame++
	if n := r.assets.CollectTransient(r.ctx.FramesInFlight()); n > 0 {
		logging.L().Debug("framegraph: released transient resources", "n", n)
	}

	if graph.IsSurfaceError(err) {
		r.skip(err)
		return nil
	}
	return err
}

func (r *Renderer) skip(err error) {
	r.skipped++
	r.recreate = true
	logging.L().Warn("framegraph: frame skipped", "frame", r.frame, "err", err)
}

// recreateSwapchain resizes the display to the requested extent, or to its
// own extent after a surface error, and the graph after it.
func (r *Renderer) recreateSwapchain() error {
	if err := r.ctx.WaitIdle(); err != nil {
		return fmt.Errorf("framegraph: recreate swapchain: %w", errors.Join(graph.ErrFatal, err))
	}
	extent := r.extent
	if display := r.ctx.Display; display != nil {
		if !r.resize {
			extent = display.Extent()
		}
		if err := display.Resize(extent); err != nil {
			if gfx.IsSurfaceError(err) {
				return fmt.Errorf("framegraph: recreate swapchain: %w: %w", graph.ErrOutdated, err)
			}
			return fmt.Errorf("framegraph: recreate swapchain: %w", err)
		}
	}
	if _, err := r.graph.Resize(extent); err != nil {
		return err
	}
	r.recreate, r.resize = false, false
	logging.L().Info("framegraph: swapchain recreated", "extent", extent, "draw", r.graph.DrawExtent())
	return nil
}

// ReadAttachment copies the named graph attachment into host memory.
func (r *Renderer) ReadAttachment(name string) ([]byte, error) {
	return r.graph.ReadAttachment(name)
}

// WatchMaterials reloads the material configuration at path whenever it
// changes. Reloaded materials are applied at the start of the next Draw.
func (r *Renderer) WatchMaterials(ctx context.Context, path string) error {
	if r.watcher != nil {
		return fmt.Errorf("framegraph: already watching materials")
	}
	wctx, cancel := context.WithCancel(ctx)
	w, err := material.Watch(wctx, path, 0)
	if err != nil {
		cancel()
		return err
	}
	r.watcher, r.stopWatcher = w, cancel
	return nil
}

func (r *Renderer) applyMaterialConfigs() {
	if r.watcher == nil {
		return
	}
	for {
		select {
		case c := <-r.watcher.Configs():
			if err := r.assets.ApplyMaterials(c); err != nil {
				logging.L().Warn("framegraph: material reload rejected", "err", err)
			}
		default:
			return
		}
	}
}

// Close waits for the device and releases everything the renderer
// created, including the device when Open created it.
func (r *Renderer) Close() {
	if r.stopWatcher != nil {
		r.stopWatcher()
		<-r.watcher.Done()
		r.watcher, r.stopWatcher = nil, nil
	}
	if r.graph != nil {
		r.graph.Destroy()
		r.graph = nil
	}
	if r.assets != nil {
		r.assets.Close()
		r.assets = nil
	}
	r.pipelines.DestroyAll()
	r.shaders.Close()
	device := r.ctx.Device
	r.ctx.Close()
	if r.ownsDevice {
		if d, ok := r.ctx.Display.(interface{ Destroy() }); ok {
			d.Destroy()
		}
		device.Destroy()
	}
}
