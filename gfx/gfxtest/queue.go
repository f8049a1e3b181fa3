package gfxtest

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

// Queue is the single software queue.
type Queue struct {
	dev *Device
}

type submission struct {
	rec    *Recorder
	fence  *Fence
	signal []*Semaphore
	ops    []func()
}

func (s *submission) execute() {
	for _, op := range s.ops {
		op()
	}
	if s.rec.state == statePending {
		s.rec.state = stateExecutable
	}
	for _, sem := range s.signal {
		sem.signal()
	}
	if s.fence != nil {
		s.fence.signaled = true
		if s.fence.pending == s {
			s.fence.pending = nil
		}
	}
}

// Submit implements gfx.Queue.
func (q *Queue) Submit(cmd gfx.CommandRecorder, info gfx.SubmitInfo) error {
	rec, ok := cmd.(*Recorder)
	if !ok {
		return fmt.Errorf("gfxtest: submit foreign recorder %T", cmd)
	}
	if rec.state != stateExecutable {
		return fmt.Errorf("gfxtest: submit recorder %q in state %s: %w", rec.label, rec.state, gfx.ErrInvalidState)
	}
	sub := &submission{rec: rec, ops: rec.ops}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.signaled || f.pending != nil {
			q.dev.invalid("submit with fence %q not reset", f.label)
		}
		f.signaled = false
		f.pending = sub
		sub.fence = f
	}
	for _, s := range info.Signal {
		sub.signal = append(sub.signal, s.(*Semaphore))
	}
	rec.state = statePending

	q.dev.mu.Lock()
	q.dev.submissions++
	q.dev.mu.Unlock()

	// Execution starts once every wait semaphore has been signaled.
	waits := make([]*Semaphore, 0, len(info.Wait))
	for _, s := range info.Wait {
		waits = append(waits, s.(*Semaphore))
	}
	q.enqueueAfter(waits, sub)
	return nil
}

func (q *Queue) enqueueAfter(waits []*Semaphore, sub *submission) {
	if len(waits) == 0 {
		q.enqueue(sub)
		return
	}
	waits[0].await(func() { q.enqueueAfter(waits[1:], sub) })
}

func (q *Queue) enqueue(sub *submission) {
	if !q.dev.Deferred {
		sub.execute()
		return
	}
	q.dev.mu.Lock()
	q.dev.pending = append(q.dev.pending, sub)
	q.dev.mu.Unlock()
}

// WriteBuffer implements gfx.Queue.
func (q *Queue) WriteBuffer(buf gfx.Buffer, offset int, data []byte) error {
	b := buf.(*Buffer)
	if b.destroyed {
		return fmt.Errorf("gfxtest: write destroyed buffer %q", b.label)
	}
	if offset+len(data) > len(b.data) {
		return fmt.Errorf("gfxtest: write %d bytes at %d into buffer %q of %d bytes", len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer implements gfx.Queue.
func (q *Queue) ReadBuffer(buf gfx.Buffer, offset int, out []byte) error {
	b := buf.(*Buffer)
	if offset+len(out) > len(b.data) {
		return fmt.Errorf("gfxtest: read %d bytes at %d from buffer %q of %d bytes", len(out), offset, b.label, len(b.data))
	}
	copy(out, b.data[offset:])
	return nil
}

// Presentation records one presented frame.
type Presentation struct {
	Frame   int
	Image   *Image
	Content []string
}

// Display is a software swapchain.
type Display struct {
	dev     *Device
	extent  gfx.Extent2D
	format  gputypes.TextureFormat
	images  []*Image
	current int
	count   int

	acquireErr error
	presentErr error
	presented  []Presentation
	redraws    int
}

// NewDisplay creates a swapchain of n images.
func NewDisplay(dev *Device, extent gfx.Extent2D, n int) (*Display, error) {
	d := &Display{dev: dev, format: gputypes.TextureFormatBGRA8Unorm, count: n, current: -1}
	if err := d.Resize(extent); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Display) Extent() gfx.Extent2D           { return d.extent }
func (d *Display) Format() gputypes.TextureFormat { return d.format }
func (d *Display) RequestRedraw()                 { d.redraws++ }
func (d *Display) Redraws() int                   { return d.redraws }

// FailNextAcquire makes the next Acquire return err.
func (d *Display) FailNextAcquire(err error) { d.acquireErr = err }

// FailNextPresent makes the next Present return err.
func (d *Display) FailNextPresent(err error) { d.presentErr = err }

// Presented returns every presentation executed so far.
func (d *Display) Presented() []Presentation { return append([]Presentation(nil), d.presented...) }

// Acquire implements gfx.Display.
func (d *Display) Acquire(_ int, imageReady gfx.Semaphore) error {
	if err := d.acquireErr; err != nil {
		d.acquireErr = nil
		return fmt.Errorf("gfxtest: acquire: %w", err)
	}
	d.current = (d.current + 1) % len(d.images)
	d.images[d.current].layout = gfx.LayoutUndefined
	if imageReady != nil {
		imageReady.(*Semaphore).signal()
	}
	return nil
}

// RenderTarget implements gfx.Display.
func (d *Display) RenderTarget() gfx.Image {
	if d.current < 0 {
		return nil
	}
	return d.images[d.current]
}

// Present implements gfx.Display. The presented content is captured once
// the render-ready semaphore is signaled.
func (d *Display) Present(frame int, renderReady gfx.Semaphore) error {
	if err := d.presentErr; err != nil {
		d.presentErr = nil
		return fmt.Errorf("gfxtest: present: %w", err)
	}
	if d.current < 0 {
		return fmt.Errorf("gfxtest: present without acquire: %w", gfx.ErrInvalidState)
	}
	img := d.images[d.current]
	if img.layout != gfx.LayoutPresent {
		d.dev.invalid("present image %q in layout %s", img.desc.Label, img.layout)
	}
	capture := func() {
		d.presented = append(d.presented, Presentation{Frame: frame, Image: img, Content: img.Content()})
	}
	if renderReady == nil {
		capture()
		return nil
	}
	renderReady.(*Semaphore).await(capture)
	return nil
}

// Resize implements gfx.Display.
func (d *Display) Resize(extent gfx.Extent2D) error {
	if extent.IsZero() {
		return fmt.Errorf("gfxtest: resize to %v: %w", extent, gfx.ErrSurfaceOutdated)
	}
	for _, img := range d.images {
		img.Destroy()
	}
	d.images = d.images[:0]
	for i := range d.count {
		img, err := d.dev.CreateImage(&gfx.ImageDescriptor{
			Label:  fmt.Sprintf("swapchain-%d", i),
			Format: d.format,
			Usage:  gfx.ImageUsageColor | gfx.ImageUsageTransferDst,
			Extent: extent,
		})
		if err != nil {
			return err
		}
		d.images = append(d.images, img.(*Image))
	}
	d.extent = extent
	d.current = -1
	return nil
}
