// Package gfxtest is a deterministic software implementation of the gfx
// device layer.
//
// It does not rasterize. Images carry a list of content markers ("clear",
// "draw:<pipeline>:<indices>", "dispatch:<pipeline>", copies) that commands
// append when they execute, which is enough to check what a frame wrote
// and what reached the display. Layout and scope mistakes are collected
// as validation messages instead of failing the recording.
//
// Submissions execute immediately unless Device.Deferred is set, in which
// case they stay pending (fences unsignaled) until Complete, WaitIdle or a
// fence wait runs them.
package gfxtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

// Device is a software gfx.Device.
type Device struct {
	// Deferred keeps submissions pending until they are waited on.
	Deferred bool
	// Hung makes every wait on pending work time out.
	Hung bool
	// FailAllocations makes CreateBuffer and CreateImage fail.
	FailAllocations bool
	// WorkgroupSize is the edge of the square compute workgroup assumed
	// when deciding whether a dispatch covers a storage image. Zero means
	// DefaultWorkgroupSize.
	WorkgroupSize uint32

	mu          sync.Mutex
	queue       *Queue
	pending     []*submission
	validation  []string
	live        map[string]int
	created     map[string]int
	nextID      uint64
	submissions int
}

// DefaultWorkgroupSize matches the built-in compute shaders.
const DefaultWorkgroupSize = 16

func (d *Device) covers(img *Image, x, y uint32) bool {
	ws := d.WorkgroupSize
	if ws == 0 {
		ws = DefaultWorkgroupSize
	}
	e := img.desc.Extent
	return x*ws >= e.Width && y*ws >= e.Height
}

// NewDevice creates an empty software device.
func NewDevice() *Device {
	d := &Device{
		live:    make(map[string]int),
		created: make(map[string]int),
	}
	d.queue = &Queue{dev: d}
	return d
}

func init() {
	gfx.Register("software", 1, func(opts gfx.BackendOptions) (gfx.Device, gfx.Display, error) {
		dev := NewDevice()
		if opts.Extent.IsZero() {
			return dev, nil, nil
		}
		disp, err := NewDisplay(dev, opts.Extent, 3)
		if err != nil {
			return nil, nil, err
		}
		return dev, disp, nil
	}, nil)
}

func (d *Device) track(kind string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.live[kind]++
	d.created[kind]++
	return d.nextID
}

func (d *Device) release(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[kind]--
}

func (d *Device) invalid(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.validation = append(d.validation, fmt.Sprintf(format, args...))
}

// Validation returns every validation message collected so far.
func (d *Device) Validation() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.validation...)
}

// Live returns how many objects of kind ("buffer", "image", "pipeline",
// ...) are alive.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind]
}

// Created returns how many objects of kind were ever created.
func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Submissions returns the number of queue submissions.
func (d *Device) Submissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}

// Pending returns the number of submissions not yet executed.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Complete executes every pending submission in order.
func (d *Device) Complete() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		sub := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()
		sub.execute()
	}
}

// completeThrough executes pending submissions up to and including target.
func (d *Device) completeThrough(target *submission) {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		sub := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()
		sub.execute()
		if sub == target {
			return
		}
	}
}

// CreateBuffer implements gfx.Device.
func (d *Device) CreateBuffer(desc *gfx.BufferDescriptor) (gfx.Buffer, error) {
	if d.FailAllocations {
		return nil, fmt.Errorf("gfxtest: buffer %q: %w", desc.Label, gfx.ErrOutOfMemory)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("gfxtest: buffer %q: invalid size %d", desc.Label, desc.Size)
	}
	id := d.track("buffer")
	return &Buffer{dev: d, label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size), addr: id << 32}, nil
}

// CreateImage implements gfx.Device.
func (d *Device) CreateImage(desc *gfx.ImageDescriptor) (gfx.Image, error) {
	if d.FailAllocations {
		return nil, fmt.Errorf("gfxtest: image %q: %w", desc.Label, gfx.ErrOutOfMemory)
	}
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("gfxtest: image %q: empty extent", desc.Label)
	}
	d.track("image")
	return &Image{dev: d, desc: *desc}, nil
}

// CreateSampler implements gfx.Device.
func (d *Device) CreateSampler(desc *gfx.SamplerDescriptor) (gfx.Sampler, error) {
	d.track("sampler")
	return &object{dev: d, kind: "sampler", label: desc.Label}, nil
}

// CreateShader implements gfx.Device.
func (d *Device) CreateShader(desc *gfx.ShaderDescriptor) (gfx.Shader, error) {
	if desc.WGSL == "" && len(desc.SPIRV) == 0 {
		return nil, fmt.Errorf("gfxtest: shader %q: empty source", desc.Label)
	}
	d.track("shader")
	return &object{dev: d, kind: "shader", label: desc.Label}, nil
}

// CreateBindingGroupLayout implements gfx.Device.
func (d *Device) CreateBindingGroupLayout(desc *gfx.BindingGroupLayoutDescriptor) (gfx.BindingGroupLayout, error) {
	d.track("binding-layout")
	return &BindingGroupLayout{dev: d, label: desc.Label, entries: append([]gfx.BindingLayoutEntry(nil), desc.Entries...)}, nil
}

// CreateBindingGroupPool implements gfx.Device.
func (d *Device) CreateBindingGroupPool(label string, layout gfx.BindingGroupLayout, capacity int) (gfx.BindingGroupPool, error) {
	if layout == nil {
		return nil, fmt.Errorf("gfxtest: binding pool %q: nil layout", label)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("gfxtest: binding pool %q: invalid capacity %d", label, capacity)
	}
	d.track("binding-pool")
	return &BindingGroupPool{dev: d, label: label, layout: layout, capacity: capacity}, nil
}

// CreateRenderPipeline implements gfx.Device.
func (d *Device) CreateRenderPipeline(desc *gfx.RenderPipelineDescriptor) (gfx.Pipeline, error) {
	if desc.Vertex.Shader == nil {
		return nil, fmt.Errorf("gfxtest: pipeline %q: missing vertex shader", desc.Label)
	}
	id := d.track("pipeline")
	return &Pipeline{
		dev:     d,
		id:      gfx.PipelineID(id),
		label:   desc.Label,
		kind:    gfx.PipelineGraphics,
		layouts: append([]gfx.BindingGroupLayout(nil), desc.BindingLayouts...),
		push:    desc.PushSize,
		Desc:    desc,
	}, nil
}

// CreateComputePipeline implements gfx.Device.
func (d *Device) CreateComputePipeline(desc *gfx.ComputePipelineDescriptor) (gfx.Pipeline, error) {
	if desc.Compute.Shader == nil {
		return nil, fmt.Errorf("gfxtest: pipeline %q: missing compute shader", desc.Label)
	}
	id := d.track("pipeline")
	return &Pipeline{
		dev:     d,
		id:      gfx.PipelineID(id),
		label:   desc.Label,
		kind:    gfx.PipelineCompute,
		layouts: append([]gfx.BindingGroupLayout(nil), desc.BindingLayouts...),
		push:    desc.PushSize,
	}, nil
}

// CreateCommandRecorder implements gfx.Device.
func (d *Device) CreateCommandRecorder(label string, queue gfx.QueueType) (gfx.CommandRecorder, error) {
	d.track("recorder")
	return &Recorder{dev: d, label: label, queue: queue}, nil
}

// CreateFence implements gfx.Device.
func (d *Device) CreateFence(label string, signaled bool) (gfx.Fence, error) {
	d.track("fence")
	return &Fence{dev: d, label: label, signaled: signaled}, nil
}

// CreateSemaphore implements gfx.Device.
func (d *Device) CreateSemaphore(label string) (gfx.Semaphore, error) {
	d.track("semaphore")
	return &Semaphore{dev: d, label: label}, nil
}

// Queue implements gfx.Device. The device has a single queue.
func (d *Device) Queue(gfx.QueueType) gfx.Queue { return d.queue }

// WaitIdle implements gfx.Device.
func (d *Device) WaitIdle() error {
	if d.Hung && d.Pending() > 0 {
		return fmt.Errorf("gfxtest: wait idle: %w", gfx.ErrFenceTimeout)
	}
	d.Complete()
	return nil
}

// Destroy implements gfx.Device.
func (d *Device) Destroy() {
	d.Complete()
}

// object backs samplers and shaders.
type object struct {
	dev   *Device
	kind  string
	label string
}

func (o *object) Label() string { return o.label }
func (o *object) Destroy()      { o.dev.release(o.kind) }

// Buffer is a host-memory buffer.
type Buffer struct {
	dev       *Device
	label     string
	usage     gfx.BufferUsage
	data      []byte
	addr      uint64
	destroyed bool
}

func (b *Buffer) Label() string           { return b.label }
func (b *Buffer) Size() int               { return len(b.data) }
func (b *Buffer) Usage() gfx.BufferUsage  { return b.usage }
func (b *Buffer) Family() gfx.BufferUsage { return b.usage }
func (b *Buffer) Address() uint64         { return b.addr }
func (b *Buffer) Bytes() []byte           { return b.data }
func (b *Buffer) Destroyed() bool         { return b.destroyed }

// Destroy implements gfx.Buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		b.dev.invalid("buffer %q destroyed twice", b.label)
		return
	}
	b.destroyed = true
	b.dev.release("buffer")
}

// Image is a software image. Content holds the markers written by
// executed commands; Data holds uploaded bytes.
type Image struct {
	dev       *Device
	desc      gfx.ImageDescriptor
	layout    gfx.ImageLayout
	content   []string
	data      []byte
	destroyed bool
}

func (i *Image) Label() string                  { return i.desc.Label }
func (i *Image) Format() gputypes.TextureFormat { return i.desc.Format }
func (i *Image) Usage() gfx.ImageUsage          { return i.desc.Usage }
func (i *Image) Extent() gfx.Extent2D           { return i.desc.Extent }
func (i *Image) Size() int                      { return i.desc.Extent.Area() * gfx.BytesPerPixel(i.desc.Format) }
func (i *Image) Family() gfx.ImageFamily        { return i.desc.Family() }
func (i *Image) Layout() gfx.ImageLayout        { return i.layout }
func (i *Image) Destroyed() bool                { return i.destroyed }

// Content returns a copy of the content markers.
func (i *Image) Content() []string { return append([]string(nil), i.content...) }

// Data returns the bytes last uploaded into the image.
func (i *Image) Data() []byte { return i.data }

// Destroy implements gfx.Image.
func (i *Image) Destroy() {
	if i.destroyed {
		i.dev.invalid("image %q destroyed twice", i.desc.Label)
		return
	}
	i.destroyed = true
	i.dev.release("image")
}

// Pipeline is a software pipeline. Desc is nil for compute pipelines.
type Pipeline struct {
	dev     *Device
	id      gfx.PipelineID
	label   string
	kind    gfx.PipelineKind
	layouts []gfx.BindingGroupLayout
	push    uint32
	Desc    *gfx.RenderPipelineDescriptor
}

func (p *Pipeline) ID() gfx.PipelineID                       { return p.id }
func (p *Pipeline) Label() string                            { return p.label }
func (p *Pipeline) Kind() gfx.PipelineKind                   { return p.kind }
func (p *Pipeline) BindingLayouts() []gfx.BindingGroupLayout { return p.layouts }
func (p *Pipeline) PushSize() uint32                         { return p.push }
func (p *Pipeline) Destroy()                                 { p.dev.release("pipeline") }

// BindingGroupLayout is a software binding layout.
type BindingGroupLayout struct {
	dev     *Device
	label   string
	entries []gfx.BindingLayoutEntry
}

func (l *BindingGroupLayout) Label() string                     { return l.label }
func (l *BindingGroupLayout) Entries() []gfx.BindingLayoutEntry { return l.entries }
func (l *BindingGroupLayout) Destroy()                          { l.dev.release("binding-layout") }

// BindingGroup is a software binding group.
type BindingGroup struct {
	label   string
	layout  gfx.BindingGroupLayout
	entries []gfx.BindingEntry
}

func (g *BindingGroup) Label() string                  { return g.label }
func (g *BindingGroup) Layout() gfx.BindingGroupLayout { return g.layout }
func (g *BindingGroup) Entries() []gfx.BindingEntry    { return g.entries }

// BindingGroupPool is a fixed-capacity software pool.
type BindingGroupPool struct {
	dev      *Device
	label    string
	layout   gfx.BindingGroupLayout
	capacity int
	groups   int
	resets   int
}

// Allocate implements gfx.BindingGroupPool. Entries are checked against
// the layout.
func (p *BindingGroupPool) Allocate(label string, entries []gfx.BindingEntry) (gfx.BindingGroup, error) {
	if p.groups >= p.capacity {
		return nil, fmt.Errorf("gfxtest: pool %q (%d groups): %w", p.label, p.capacity, gfx.ErrPoolExhausted)
	}
	if err := checkEntries(p.layout, entries); err != nil {
		return nil, fmt.Errorf("gfxtest: pool %q: %w", p.label, err)
	}
	p.groups++
	return &BindingGroup{label: label, layout: p.layout, entries: append([]gfx.BindingEntry(nil), entries...)}, nil
}

func (p *BindingGroupPool) Reset()        { p.groups = 0; p.resets++ }
func (p *BindingGroupPool) Len() int      { return p.groups }
func (p *BindingGroupPool) Capacity() int { return p.capacity }
func (p *BindingGroupPool) Resets() int   { return p.resets }
func (p *BindingGroupPool) Destroy()      { p.dev.release("binding-pool") }

func checkEntries(layout gfx.BindingGroupLayout, entries []gfx.BindingEntry) error {
	byBinding := make(map[uint32]gfx.BindingEntry, len(entries))
	for _, e := range entries {
		byBinding[e.Binding] = e
	}
	for _, le := range layout.Entries() {
		e, ok := byBinding[le.Binding]
		if !ok {
			return fmt.Errorf("binding %d (%s) not provided", le.Binding, le.Kind)
		}
		switch le.Kind {
		case gfx.BindingUniformBuffer, gfx.BindingStorageBuffer:
			if e.Buffer == nil {
				return fmt.Errorf("binding %d expects a buffer", le.Binding)
			}
		case gfx.BindingSampledImage, gfx.BindingStorageImage:
			if e.Image == nil {
				return fmt.Errorf("binding %d expects an image", le.Binding)
			}
		case gfx.BindingSampler:
			if e.Sampler == nil {
				return fmt.Errorf("binding %d expects a sampler", le.Binding)
			}
		}
	}
	if len(entries) != len(layout.Entries()) {
		return fmt.Errorf("%d entries for %d bindings", len(entries), len(layout.Entries()))
	}
	return nil
}

// Fence is a software fence.
type Fence struct {
	dev      *Device
	label    string
	signaled bool
	pending  *submission
}

func (f *Fence) Label() string  { return f.label }
func (f *Fence) Signaled() bool { return f.signaled }
func (f *Fence) Destroy()       { f.dev.release("fence") }

// Reset implements gfx.Fence.
func (f *Fence) Reset() error {
	if f.pending != nil {
		return fmt.Errorf("gfxtest: fence %q: reset while pending: %w", f.label, gfx.ErrInvalidState)
	}
	f.signaled = false
	return nil
}

// Wait implements gfx.Fence. Waiting runs pending work up to the
// submission that signals f.
func (f *Fence) Wait(timeout time.Duration) error {
	if f.signaled {
		return nil
	}
	if f.pending == nil {
		// Nothing will ever signal it.
		return fmt.Errorf("gfxtest: fence %q after %v: %w", f.label, timeout, gfx.ErrFenceTimeout)
	}
	if f.dev.Hung {
		return fmt.Errorf("gfxtest: fence %q after %v: %w", f.label, timeout, gfx.ErrFenceTimeout)
	}
	f.dev.completeThrough(f.pending)
	if !f.signaled {
		return fmt.Errorf("gfxtest: fence %q blocked on unsignaled semaphore: %w", f.label, gfx.ErrFenceTimeout)
	}
	return nil
}

// Semaphore is a software binary semaphore.
type Semaphore struct {
	dev      *Device
	label    string
	signaled bool
	waiters  []func()
}

func (s *Semaphore) Label() string  { return s.label }
func (s *Semaphore) Signaled() bool { return s.signaled }
func (s *Semaphore) Destroy()       { s.dev.release("semaphore") }

func (s *Semaphore) signal() {
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		w()
		return
	}
	s.signaled = true
}

// await runs fn once s is signaled, consuming the signal.
func (s *Semaphore) await(fn func()) {
	if s.signaled {
		s.signaled = false
		fn()
		return
	}
	s.waiters = append(s.waiters, fn)
}
