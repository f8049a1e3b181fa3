// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/pass"
	"github.com/gogpu/framegraph/pool"
)

// DefaultMinRenderExtent is the smallest render extent. Smaller surfaces
// are rendered at this size and scaled on present.
var DefaultMinRenderExtent = gfx.Extent2D{Width: 1920, Height: 1080}

const tracerName = "github.com/gogpu/framegraph/graph"

// Option configures a Graph.
type Option func(*options)

type options struct {
	minExtent gfx.Extent2D
	scaling   float32
	images    *pool.ImageAllocator
	buffers   *pool.BufferAllocator
	tracer    trace.TracerProvider
}

// WithMinRenderExtent sets the render extent floor.
func WithMinRenderExtent(e gfx.Extent2D) Option {
	return func(o *options) { o.minExtent = e }
}

// WithRenderScaling sets the draw extent as a fraction of the render
// extent. Values outside (0, 1] are ignored.
func WithRenderScaling(s float32) Option {
	return func(o *options) {
		if s > 0 && s <= 1 {
			o.scaling = s
		}
	}
}

// WithImageAllocator shares an image pool with the graph.
func WithImageAllocator(a *pool.ImageAllocator) Option {
	return func(o *options) { o.images = a }
}

// WithBufferAllocator shares the buffer pool that retired frame buffers
// return to.
func WithBufferAllocator(a *pool.BufferAllocator) Option {
	return func(o *options) { o.buffers = a }
}

// WithTracerProvider sets the provider of frame and pass spans. The
// global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// Graph is a frame graph: an attachment table, passes in declared order
// and one FrameData per frame in flight. A Graph is owned by the render
// goroutine.
type Graph struct {
	ctx    *gfx.Context
	opts   options
	tracer trace.Tracer

	attachments attachmentSet
	written     map[string]bool
	passes      []pass.RenderPass

	frames   []*FrameData
	retired  *pool.FrameRecycler[gfx.Buffer]
	releases *pool.FrameRecycler[func()]
	current  *FrameData
	// Retired between frames; handed to the slot of the next frame.
	pendingBuffers  []gfx.Buffer
	pendingReleases []func()

	renderExtent gfx.Extent2D
	drawExtent   gfx.Extent2D
}

// New creates an empty graph for ctx.
func New(ctx *gfx.Context, opts ...Option) (*Graph, error) {
	o := options{minExtent: DefaultMinRenderExtent, scaling: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.images == nil {
		o.images = pool.NewImageAllocator("attachments")
	}
	if o.buffers == nil {
		o.buffers = pool.NewBufferAllocator("frame-buffers")
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}

	g := &Graph{
		ctx:      ctx,
		opts:     o,
		tracer:   o.tracer.Tracer(tracerName),
		written:  make(map[string]bool),
		retired:  pool.NewFrameRecycler[gfx.Buffer](ctx.FramesInFlight()),
		releases: pool.NewFrameRecycler[func()](ctx.FramesInFlight()),
		attachments: attachmentSet{
			decls:  make(map[string]*Attachment),
			images: make(map[string]gfx.Image),
		},
	}
	g.renderExtent, g.drawExtent = g.extents(ctx.SurfaceExtent())

	for i := range ctx.FramesInFlight() {
		f, err := newFrameData(ctx.Device, i, ctx.Display != nil)
		if err != nil {
			g.Destroy()
			return nil, fmt.Errorf("graph: frame %d: %w", i, err)
		}
		g.frames = append(g.frames, f)
	}
	logging.L().Info("graph: created", "frames", len(g.frames), "render", g.renderExtent, "draw", g.drawExtent)
	return g, nil
}

func (g *Graph) extents(surface gfx.Extent2D) (render, draw gfx.Extent2D) {
	render = surface.Max(g.opts.minExtent)
	return render, render.Scale(g.opts.scaling)
}

// RenderExtent returns max(surface extent, minimum render extent).
func (g *Graph) RenderExtent() gfx.Extent2D { return g.renderExtent }

// DrawExtent returns the render extent times the render scaling.
func (g *Graph) DrawExtent() gfx.Extent2D { return g.drawExtent }

// Frame returns the FrameData of slot.
func (g *Graph) Frame(slot int) *FrameData { return g.frames[slot%len(g.frames)] }

// AddAttachment registers an attachment and allocates its image.
func (g *Graph) AddAttachment(a Attachment) error {
	if a.Name == "" || a.Format == gputypes.TextureFormatUndefined {
		return fmt.Errorf("%w: attachment %q needs a name and a format", ErrInvalidData, a.Name)
	}
	if _, ok := g.attachments.decls[a.Name]; ok {
		return fmt.Errorf("%w: attachment %s declared twice", ErrInvalidData, a.Name)
	}
	decl := a
	img, err := g.allocImage(&decl, g.drawExtent)
	if err != nil {
		return err
	}
	g.attachments.decls[a.Name] = &decl
	g.attachments.images[a.Name] = img
	g.attachments.order = append(g.attachments.order, a.Name)
	logging.L().Debug("graph: attachment", "name", a.Name, "kind", a.Kind, "extent", img.Extent())
	return nil
}

func (g *Graph) allocImage(a *Attachment, draw gfx.Extent2D) (gfx.Image, error) {
	family := a.family(draw)
	img, err := g.opts.images.Allocate(g.ctx.Device, a.Name, pool.ImageSize(family), family)
	if err != nil {
		return nil, renderError("attachment "+a.Name, err)
	}
	return img, nil
}

// Attachment returns the declaration of the named attachment.
func (g *Graph) Attachment(name string) (Attachment, error) {
	a, ok := g.attachments.decls[name]
	if !ok {
		return Attachment{}, fmt.Errorf("%w: %s", ErrUnknownAttachment, name)
	}
	return *a, nil
}

// Image returns the current image of the named attachment.
func (g *Graph) Image(name string) (gfx.Image, error) { return g.attachments.Image(name) }

// NextID returns the id the next added pass must carry.
func (g *Graph) NextID() pass.ID { return pass.ID(len(g.passes)) }

// AddPass appends p to the graph. Every attachment p reads must have been
// written by an earlier pass or by p itself.
func (g *Graph) AddPass(p pass.RenderPass) error {
	if p.ID() != g.NextID() {
		return fmt.Errorf("%w: pass %s has id %d, want %d", ErrInvalidData, p.Name(), p.ID(), g.NextID())
	}
	if _, err := g.PassByName(p.Name()); err == nil {
		return fmt.Errorf("%w: pass %s added twice", ErrInvalidData, p.Name())
	}
	refs := p.Attachments()
	for _, ref := range refs {
		decl, ok := g.attachments.decls[ref.Name]
		if !ok {
			return fmt.Errorf("pass %s: %w: %s", p.Name(), ErrUnknownAttachment, ref.Name)
		}
		if err := decl.compatible(ref); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if ref.Reads() && !g.written[ref.Name] && !writes(refs, ref.Name) {
			return fmt.Errorf("pass %s: %w: %s", p.Name(), ErrUndeclaredAttachment, ref.Name)
		}
	}
	for _, ref := range refs {
		if ref.Writes() {
			g.written[ref.Name] = true
		}
	}
	if r, ok := p.(pass.Resizer); ok {
		r.Resize(g.drawExtent)
	}
	g.passes = append(g.passes, p)
	logging.L().Info("graph: pass added", "name", p.Name(), "kind", p.Kind(), "id", p.ID())
	return nil
}

func writes(refs []pass.AttachmentRef, name string) bool {
	for _, r := range refs {
		if r.Name == name && r.Writes() {
			return true
		}
	}
	return false
}

// Passes returns the passes in declared order.
func (g *Graph) Passes() []pass.RenderPass { return g.passes }

// PassByID returns the pass with id.
func (g *Graph) PassByID(id pass.ID) (pass.RenderPass, error) {
	if int(id) >= len(g.passes) {
		return nil, fmt.Errorf("%w: id %d", ErrPassNotFound, id)
	}
	return g.passes[id], nil
}

// PassByName returns the pass called name.
func (g *Graph) PassByName(name string) (pass.RenderPass, error) {
	for _, p := range g.passes {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPassNotFound, name)
}

// PassByKind returns the first pass of kind.
func (g *Graph) PassByKind(kind pass.Kind) (pass.RenderPass, error) {
	for _, p := range g.passes {
		if p.Kind() == kind {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: kind %s", ErrPassNotFound, kind)
}

// Retire returns buf to the buffer pool once the GPU no longer uses it.
// Inside a frame the buffer waits for the current slot; between frames it
// waits for the slot of the next frame.
func (g *Graph) Retire(buf gfx.Buffer) {
	if g.current != nil {
		g.retired.Retire(g.current.Slot, buf)
		return
	}
	g.pendingBuffers = append(g.pendingBuffers, buf)
}

// Defer runs release once the GPU no longer uses what it frees, under the
// same rules as Retire.
func (g *Graph) Defer(release func()) {
	if g.current != nil {
		g.releases.Retire(g.current.Slot, release)
		return
	}
	g.pendingReleases = append(g.pendingReleases, release)
}

// Buffers returns the pool retired buffers return to.
func (g *Graph) Buffers() *pool.BufferAllocator { return g.opts.buffers }

// Begin starts frame number. It waits for the slot fence, acquires the
// display image, recycles the slot's retired buffers and binding groups
// and begins the slot recorder. A frame abandoned after Begin needs no
// cleanup: the next Begin of the slot resets the recorder.
func (g *Graph) Begin(ctx context.Context, number uint64) (*FrameData, error) {
	f := g.frames[int(number%uint64(len(g.frames)))]
	f.ctx, f.span = g.tracer.Start(ctx, "frame", trace.WithAttributes(
		attribute.Int64("frame.number", int64(number)),
		attribute.Int("frame.slot", f.Slot),
	))

	if err := f.Fence.Wait(g.ctx.Config.FenceTimeout); err != nil {
		return nil, g.fail(f, "begin", err)
	}
	if g.ctx.Display != nil {
		if err := g.ctx.Display.Acquire(f.Slot, f.ImageReady); err != nil {
			return nil, g.fail(f, "acquire", err)
		}
	}
	if err := f.BeginRecording(number); err != nil {
		return nil, g.fail(f, "begin", err)
	}

	n := g.retired.Collect(f.Slot, g.opts.buffers.Recycle)
	n += g.releases.Collect(f.Slot, func(release func()) { release() })
	if n > 0 {
		logging.L().Debug("graph: released frame objects", "slot", f.Slot, "n", n)
	}
	for _, buf := range g.pendingBuffers {
		g.retired.Retire(f.Slot, buf)
	}
	for _, release := range g.pendingReleases {
		g.releases.Retire(f.Slot, release)
	}
	clear(g.pendingBuffers)
	clear(g.pendingReleases)
	g.pendingBuffers, g.pendingReleases = g.pendingBuffers[:0], g.pendingReleases[:0]
	for _, p := range g.passes {
		p.ResetFrame(f.Slot)
	}
	g.current = f
	f.Cmd.BeginLabel(fmt.Sprintf("frame %d", number))
	return f, nil
}

// Render records every pass in declared order.
func (g *Graph) Render(f *FrameData, b *batch.Batch) error {
	fr := &pass.Frame{Slot: f.Slot, Number: f.Number, Cmd: f.Cmd, Extent: g.drawExtent}
	for _, p := range g.passes {
		_, span := g.tracer.Start(f.Context(), "pass "+p.Name(), trace.WithAttributes(
			attribute.String("pass.kind", p.Kind().String()),
			attribute.Int("pass.id", int(p.ID())),
		))
		err := p.Render(g.ctx, fr, &g.attachments, b)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return g.fail(f, "render "+p.Name(), err)
		}
		if st, ok := b.Stats().Pass(p.ID()); ok {
			span.SetAttributes(attribute.Int("pass.draws", st.Draws))
		}
		span.End()
	}
	return nil
}

// End closes the recorder, submits the frame and presents it.
func (g *Graph) End(f *FrameData) error {
	display := g.ctx.Display
	if display != nil {
		if target := display.RenderTarget(); target != nil {
			f.Cmd.TransitionImage(target, gfx.LayoutPresent)
		}
	}
	f.Cmd.EndLabel()
	if err := f.Cmd.End(); err != nil {
		return g.fail(f, "end", err)
	}

	// The fence is reset only here so a frame abandoned before submission
	// leaves its slot signaled.
	if err := f.Fence.Reset(); err != nil {
		return g.fail(f, "end", err)
	}
	info := gfx.SubmitInfo{Fence: f.Fence}
	if display != nil {
		info.Wait = []gfx.Semaphore{f.ImageReady}
		info.Signal = []gfx.Semaphore{f.RenderReady}
	}
	if err := g.ctx.Device.Queue(gfx.QueueGraphics).Submit(f.Cmd, info); err != nil {
		return g.fail(f, "submit", err)
	}
	if display != nil {
		if err := display.Present(f.Slot, f.RenderReady); err != nil {
			return g.fail(f, "present", err)
		}
	}
	g.current = nil
	f.span.End()
	return nil
}

// Draw runs Begin, Render and End for frame number.
func (g *Graph) Draw(ctx context.Context, number uint64, b *batch.Batch) error {
	f, err := g.Begin(ctx, number)
	if err != nil {
		return err
	}
	if err := g.Render(f, b); err != nil {
		return err
	}
	return g.End(f)
}

func (g *Graph) fail(f *FrameData, op string, err error) error {
	err = renderError(op, err)
	if f.span != nil {
		f.span.RecordError(err)
		f.span.SetStatus(codes.Error, err.Error())
		f.span.End()
	}
	g.current = nil
	var re *RenderError
	if errors.As(err, &re) && re.Kind == KindFatal {
		logging.L().Error("graph: fatal", "op", op, "slot", f.Slot, "err", err)
	} else {
		logging.L().Warn("graph: frame failed", "op", op, "slot", f.Slot, "err", err)
	}
	return err
}

// Resize recomputes the render extent for a new surface extent. When it
// changed, the graph waits for the device, recreates every size-dependent
// attachment and resizes passes that cache an extent. It reports whether
// anything changed.
func (g *Graph) Resize(surface gfx.Extent2D) (bool, error) {
	render, draw := g.extents(surface)
	if render == g.renderExtent && draw == g.drawExtent {
		return false, nil
	}
	if err := g.ctx.WaitIdle(); err != nil {
		return false, renderError("resize", err)
	}
	// The extent only changes once every attachment has its new image.
	fresh := make(map[string]gfx.Image)
	for _, name := range g.attachments.order {
		decl := g.attachments.decls[name]
		if !decl.SizeDependent() {
			continue
		}
		img, err := g.allocImage(decl, draw)
		if err != nil {
			for _, img := range fresh {
				g.opts.images.Recycle(img)
			}
			return false, err
		}
		fresh[name] = img
	}
	for name, img := range fresh {
		g.opts.images.Recycle(g.attachments.images[name])
		g.attachments.images[name] = img
	}
	g.renderExtent, g.drawExtent = render, draw
	for _, p := range g.passes {
		if r, ok := p.(pass.Resizer); ok {
			r.Resize(g.drawExtent)
		}
	}
	logging.L().Info("graph: resized", "render", g.renderExtent, "draw", g.drawExtent)
	return true, nil
}

// ReadAttachment copies the named attachment into host memory. It blocks
// until the copy completed.
func (g *Graph) ReadAttachment(name string) ([]byte, error) {
	img, err := g.Image(name)
	if err != nil {
		return nil, err
	}
	size := pool.ImageSize(img.Family())
	buf, err := g.opts.buffers.Allocate(g.ctx.Device, "readback "+name, size, gfx.BufferFamilyReadback)
	if err != nil {
		return nil, renderError("read "+name, err)
	}
	defer g.opts.buffers.Recycle(buf)

	ext := img.Extent()
	err = g.ctx.RunImmediate("read "+name, func(cmd gfx.CommandRecorder) error {
		cmd.TransitionImage(img, gfx.LayoutTransferSrc)
		cmd.CopyImageToBuffer(img, buf, gfx.BufferImageCopy{
			BytesPerRow: ext.Width * uint32(gfx.BytesPerPixel(img.Format())),
			Extent:      ext,
		})
		return nil
	})
	if err != nil {
		return nil, renderError("read "+name, err)
	}
	out := make([]byte, size)
	if err := g.ctx.Device.Queue(gfx.QueueTransfer).ReadBuffer(buf, 0, out); err != nil {
		return nil, renderError("read "+name, err)
	}
	return out, nil
}

// Destroy waits for the device and releases frames, passes and
// attachment images.
func (g *Graph) Destroy() {
	if err := g.ctx.WaitIdle(); err != nil {
		logging.L().Warn("graph: destroy", "err", err)
	}
	for _, p := range g.passes {
		p.Destroy()
	}
	g.passes = nil
	g.retired.CollectAll(g.opts.buffers.Recycle)
	g.releases.CollectAll(func(release func()) { release() })
	for _, buf := range g.pendingBuffers {
		g.opts.buffers.Recycle(buf)
	}
	for _, release := range g.pendingReleases {
		release()
	}
	g.pendingBuffers, g.pendingReleases = nil, nil
	for _, f := range g.frames {
		f.destroy()
	}
	g.frames = nil
	for _, name := range g.attachments.order {
		g.opts.images.Recycle(g.attachments.images[name])
	}
	clear(g.attachments.images)
	clear(g.attachments.decls)
	g.attachments.order = nil
	clear(g.written)
}
