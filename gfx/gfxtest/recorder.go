package gfxtest

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
)

type recorderState uint8

const (
	stateInitial recorderState = iota
	stateRecording
	stateExecutable
	statePending
)

func (s recorderState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateRecording:
		return "recording"
	case stateExecutable:
		return "executable"
	case statePending:
		return "pending"
	}
	return "unknown"
}

// Recorder is a software command recorder. Commands are validated when
// recorded and executed when the submission runs.
type Recorder struct {
	dev   *Device
	label string
	queue gfx.QueueType
	state recorderState
	err   error

	ops       []func()
	names     []string
	labels    int
	rendering *gfx.RenderingInfo
	pipeline  gfx.Pipeline
	groups    map[uint32]gfx.BindingGroup
	push      []byte
	vertex    gfx.Buffer
	index     gfx.Buffer
}

func (r *Recorder) Label() string        { return r.label }
func (r *Recorder) Queue() gfx.QueueType { return r.queue }
func (r *Recorder) Destroy()             { r.dev.release("recorder") }
func (r *Recorder) Pending() bool        { return r.state == statePending }

// Commands returns the names of the commands recorded since Begin.
func (r *Recorder) Commands() []string { return append([]string(nil), r.names...) }

// Count returns how many times the named command was recorded.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.names {
		if c == name {
			n++
		}
	}
	return n
}

func (r *Recorder) fail(format string, args ...any) {
	err := fmt.Errorf("gfxtest: recorder %q: "+format, append([]any{r.label}, args...)...)
	if r.err == nil {
		r.err = err
	}
	r.dev.invalid("%v", err)
}

func (r *Recorder) record(name string, op func()) {
	if r.state != stateRecording {
		r.fail("%s outside recording (state %s)", name, r.state)
		return
	}
	r.names = append(r.names, name)
	if op != nil {
		r.ops = append(r.ops, op)
	}
}

// Begin implements gfx.CommandRecorder.
func (r *Recorder) Begin() error {
	if r.state != stateInitial {
		return fmt.Errorf("gfxtest: recorder %q: begin in state %s: %w", r.label, r.state, gfx.ErrInvalidState)
	}
	r.state = stateRecording
	return nil
}

// End implements gfx.CommandRecorder.
func (r *Recorder) End() error {
	if r.state != stateRecording {
		return fmt.Errorf("gfxtest: recorder %q: end in state %s: %w", r.label, r.state, gfx.ErrInvalidState)
	}
	if r.rendering != nil {
		r.fail("end inside rendering scope %q", r.rendering.Label)
	}
	if r.labels != 0 {
		r.fail("%d unbalanced debug labels", r.labels)
	}
	r.state = stateExecutable
	return r.err
}

// Reset implements gfx.CommandRecorder. Resetting a recorder the GPU is
// still executing is an error.
func (r *Recorder) Reset() error {
	if r.state == statePending {
		return fmt.Errorf("gfxtest: recorder %q: reset while pending: %w", r.label, gfx.ErrInvalidState)
	}
	r.state = stateInitial
	r.err = nil
	r.ops = nil
	r.names = nil
	r.labels = 0
	r.rendering = nil
	r.pipeline = nil
	r.groups = nil
	r.push = nil
	r.vertex = nil
	r.index = nil
	return nil
}

func (r *Recorder) BeginLabel(string) {
	r.labels++
	r.record("begin-label", nil)
}

func (r *Recorder) EndLabel() {
	r.labels--
	r.record("end-label", nil)
}

// CopyBuffer implements gfx.CommandRecorder.
func (r *Recorder) CopyBuffer(src, dst gfx.Buffer, regions ...gfx.BufferCopy) {
	s, d := src.(*Buffer), dst.(*Buffer)
	for _, rg := range regions {
		if rg.SrcOffset+rg.Size > s.Size() || rg.DstOffset+rg.Size > d.Size() {
			r.fail("copy buffer %q->%q out of range", s.label, d.label)
			return
		}
	}
	regions = append([]gfx.BufferCopy(nil), regions...)
	r.record("copy-buffer", func() {
		for _, rg := range regions {
			copy(d.data[rg.DstOffset:rg.DstOffset+rg.Size], s.data[rg.SrcOffset:rg.SrcOffset+rg.Size])
		}
	})
}

// CopyBufferToImage implements gfx.CommandRecorder.
func (r *Recorder) CopyBufferToImage(src gfx.Buffer, dst gfx.Image, region gfx.BufferImageCopy) {
	s, d := src.(*Buffer), dst.(*Image)
	r.expectLayout(d, gfx.LayoutTransferDst, "copy buffer to image")
	n := int(region.BytesPerRow) * int(region.Extent.Height)
	if region.BufferOffset+n > s.Size() {
		r.fail("copy buffer %q to image %q: %d bytes past buffer end", s.label, d.desc.Label, region.BufferOffset+n-s.Size())
		return
	}
	r.record("copy-buffer-to-image", func() {
		d.data = append([]byte(nil), s.data[region.BufferOffset:region.BufferOffset+n]...)
		d.content = []string{fmt.Sprintf("upload:%s:%d", s.label, n)}
	})
}

// CopyImageToBuffer implements gfx.CommandRecorder. Images without
// uploaded bytes read back their content markers.
func (r *Recorder) CopyImageToBuffer(src gfx.Image, dst gfx.Buffer, region gfx.BufferImageCopy) {
	s, d := src.(*Image), dst.(*Buffer)
	r.expectLayout(s, gfx.LayoutTransferSrc, "copy image to buffer")
	r.record("copy-image-to-buffer", func() {
		payload := s.data
		if payload == nil {
			payload = []byte(fmt.Sprint(s.content))
		}
		copy(d.data[region.BufferOffset:], payload)
	})
}

// CopyImageToImage implements gfx.CommandRecorder.
func (r *Recorder) CopyImageToImage(src, dst gfx.Image, srcExtent, dstExtent gfx.Extent2D) {
	s, d := src.(*Image), dst.(*Image)
	r.expectLayout(s, gfx.LayoutTransferSrc, "copy image source")
	r.expectLayout(d, gfx.LayoutTransferDst, "copy image destination")
	r.record("copy-image", func() {
		d.content = append([]string(nil), s.content...)
		d.data = append([]byte(nil), s.data...)
	})
}

// TransitionImage implements gfx.CommandRecorder. Layouts are tracked at
// record time.
func (r *Recorder) TransitionImage(img gfx.Image, layout gfx.ImageLayout) {
	i := img.(*Image)
	if r.rendering != nil {
		r.fail("transition of %q inside rendering scope", i.desc.Label)
	}
	r.record("transition", nil)
	i.layout = layout
}

func (r *Recorder) expectLayout(i *Image, want gfx.ImageLayout, what string) {
	if i.layout != want {
		r.fail("%s: image %q in layout %s, want %s", what, i.desc.Label, i.layout, want)
	}
}

// BeginRendering implements gfx.CommandRecorder.
func (r *Recorder) BeginRendering(info *gfx.RenderingInfo) {
	if r.rendering != nil {
		r.fail("nested rendering scope %q", info.Label)
		return
	}
	var color, depth *Image
	if info.Color != nil {
		color = info.Color.(*Image)
		r.expectLayout(color, gfx.LayoutColor, "color attachment")
	}
	if info.Depth != nil {
		depth = info.Depth.(*Image)
		r.expectLayout(depth, gfx.LayoutDepth, "depth attachment")
	}
	cp := *info
	r.rendering = &cp
	r.record("begin-rendering", func() {
		if color != nil && cp.ClearColor {
			color.content = []string{fmt.Sprintf("clear:%.2f,%.2f,%.2f,%.2f", cp.Clear.R, cp.Clear.G, cp.Clear.B, cp.Clear.A)}
		}
		if depth != nil && cp.ClearDepth {
			depth.content = []string{fmt.Sprintf("clear-depth:%.2f", cp.DepthClear)}
		}
	})
}

// EndRendering implements gfx.CommandRecorder.
func (r *Recorder) EndRendering() {
	if r.rendering == nil {
		r.fail("end rendering without begin")
		return
	}
	r.rendering = nil
	r.record("end-rendering", nil)
}

func (r *Recorder) SetViewport(gfx.Viewport) { r.record("set-viewport", nil) }

// BindPipeline implements gfx.CommandRecorder.
func (r *Recorder) BindPipeline(p gfx.Pipeline) {
	if p == nil {
		r.fail("bind nil pipeline")
		return
	}
	if p.Kind() == gfx.PipelineGraphics && r.rendering == nil {
		r.fail("graphics pipeline %q bound outside rendering", p.Label())
	}
	r.pipeline = p
	r.groups = nil
	r.record("bind-pipeline", nil)
}

// BindGroup implements gfx.CommandRecorder.
func (r *Recorder) BindGroup(index uint32, group gfx.BindingGroup) {
	if r.pipeline == nil {
		r.fail("bind group %d without pipeline", index)
		return
	}
	layouts := r.pipeline.BindingLayouts()
	if int(index) >= len(layouts) {
		r.fail("bind group %d: pipeline %q has %d layouts", index, r.pipeline.Label(), len(layouts))
		return
	}
	if layouts[index] != group.Layout() {
		r.fail("bind group %d: layout %q does not match pipeline %q", index, group.Layout().Label(), r.pipeline.Label())
	}
	if r.groups == nil {
		r.groups = make(map[uint32]gfx.BindingGroup)
	}
	r.groups[index] = group
	r.record("bind-group", nil)
}

// PushConstants implements gfx.CommandRecorder.
func (r *Recorder) PushConstants(p gfx.Pipeline, data []byte) {
	if uint32(len(data)) > p.PushSize() {
		r.fail("push %d bytes to pipeline %q with push size %d", len(data), p.Label(), p.PushSize())
		return
	}
	r.push = append(r.push[:0], data...)
	r.record("push-constants", nil)
}

func (r *Recorder) BindVertexBuffer(buf gfx.Buffer, _ int) {
	r.vertex = buf
	r.record("bind-vertex-buffer", nil)
}

func (r *Recorder) BindIndexBuffer(buf gfx.Buffer, _ int, _ gputypes.IndexFormat) {
	r.index = buf
	r.record("bind-index-buffer", nil)
}

// DrawIndexed implements gfx.CommandRecorder.
func (r *Recorder) DrawIndexed(indexCount, _ uint32, _ int32) {
	if r.index == nil {
		r.fail("draw indexed without index buffer")
		return
	}
	r.draw("draw-indexed", indexCount)
}

// Draw implements gfx.CommandRecorder.
func (r *Recorder) Draw(vertexCount, _ uint32) {
	r.draw("draw", vertexCount)
}

func (r *Recorder) draw(name string, count uint32) {
	if r.rendering == nil {
		r.fail("%s outside rendering", name)
		return
	}
	if r.pipeline == nil || r.pipeline.Kind() != gfx.PipelineGraphics {
		r.fail("%s without graphics pipeline", name)
		return
	}
	target := r.rendering.Color
	if target == nil {
		target = r.rendering.Depth
	}
	img := target.(*Image)
	marker := fmt.Sprintf("draw:%s:%d", r.pipeline.Label(), count)
	r.record(name, func() { img.content = append(img.content, marker) })
}

// Dispatch implements gfx.CommandRecorder. Storage images bound to the
// current pipeline receive a dispatch marker. A dispatch whose workgroups
// cover the whole image overwrites it, so the marker replaces the content.
func (r *Recorder) Dispatch(x, y, z uint32) {
	if r.rendering != nil {
		r.fail("dispatch inside rendering scope")
		return
	}
	if r.pipeline == nil || r.pipeline.Kind() != gfx.PipelineCompute {
		r.fail("dispatch without compute pipeline")
		return
	}
	var targets []*Image
	for idx, g := range r.groups {
		layouts := r.pipeline.BindingLayouts()[idx].Entries()
		for _, e := range g.Entries() {
			for _, le := range layouts {
				if le.Binding == e.Binding && le.Kind == gfx.BindingStorageImage {
					img := e.Image.(*Image)
					r.expectLayout(img, gfx.LayoutGeneral, "storage image")
					targets = append(targets, img)
				}
			}
		}
	}
	marker := fmt.Sprintf("dispatch:%s:%dx%dx%d", r.pipeline.Label(), x, y, z)
	r.record("dispatch", func() {
		for _, img := range targets {
			if r.dev.covers(img, x, y) {
				img.content = img.content[:0]
			}
			img.content = append(img.content, marker)
		}
	})
}
