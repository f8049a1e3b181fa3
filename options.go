package framegraph

import (
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/material"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := framegraph.Open(gfx.Extent2D{Width: 1280, Height: 720},
//	    framegraph.WithFramesInFlight(3),
//	    framegraph.WithRenderScaling(0.75))
type Option func(*options)

type options struct {
	gfx gfx.Config

	backend   string
	minExtent gfx.Extent2D
	scaling   float32

	shaderFS  fs.FS
	spirv     bool
	graphs    *graph.Config
	preset    string
	materials *material.Config

	tracer  trace.TracerProvider
	metrics prometheus.Registerer
}

func defaultOptions() options {
	return options{
		minExtent: graph.DefaultMinRenderExtent,
		scaling:   1,
		spirv:     true,
	}
}

// WithFramesInFlight sets how many frames the CPU may record ahead of the
// GPU.
func WithFramesInFlight(n int) Option {
	return func(o *options) { o.gfx.FramesInFlight = n }
}

// WithFenceTimeout bounds every fence wait. A timeout is fatal.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) { o.gfx.FenceTimeout = d }
}

// WithBindingHeadroom adds spare binding groups to every per-pass pool.
func WithBindingHeadroom(n int) Option {
	return func(o *options) { o.gfx.BindingHeadroom = n }
}

// WithMinRenderExtent sets the render extent floor. Surfaces smaller than
// it are rendered at this size.
func WithMinRenderExtent(e gfx.Extent2D) Option {
	return func(o *options) { o.minExtent = e }
}

// WithRenderScaling draws at a fraction of the render extent.
func WithRenderScaling(s float32) Option {
	return func(o *options) { o.scaling = s }
}

// WithBackend selects the device backend Open uses. Empty picks the best
// available one.
func WithBackend(name string) Option {
	return func(o *options) { o.backend = name }
}

// WithShaderFS adds WGSL sources searched before the built-in shaders.
func WithShaderFS(fsys fs.FS) Option {
	return func(o *options) { o.shaderFS = fsys }
}

// WithWGSLModules hands shaders to the device as WGSL text instead of
// compiling them to SPIR-V first.
func WithWGSLModules() Option {
	return func(o *options) { o.spirv = false }
}

// WithGraphConfig builds the named graph of c instead of a preset of the
// built-in configuration.
func WithGraphConfig(c *graph.Config, name string) Option {
	return func(o *options) {
		o.graphs = c
		o.preset = name
	}
}

// WithGraphPreset builds a named graph of the built-in configuration.
func WithGraphPreset(name string) Option {
	return func(o *options) { o.preset = name }
}

// WithMaterialConfig registers the materials of c at creation.
func WithMaterialConfig(c *material.Config) Option {
	return func(o *options) { o.materials = c }
}

// WithTracerProvider sets the provider of frame and pass spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMetrics exports render and pool statistics to reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg }
}
