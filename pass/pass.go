// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
	"github.com/gogpu/framegraph/uniform"
)

// Pass errors.
var (
	// ErrInvalidPipeline is returned when a pass or an object it draws has
	// no pipeline to bind.
	ErrInvalidPipeline = errors.New("pass: no pipeline")

	// ErrNoBindingGroup is returned for binding group kinds a pass does
	// not own.
	ErrNoBindingGroup = errors.New("pass: no binding group of that kind")

	// ErrMissingAttachment is returned when an attachment image cannot be
	// resolved at render time.
	ErrMissingAttachment = errors.New("pass: attachment missing")

	// ErrInvalidConfig is returned for pass configurations that cannot be
	// built.
	ErrInvalidConfig = errors.New("pass: invalid configuration")
)

// ID identifies a pass inside a graph. Ids follow registration order.
type ID = batch.PassID

// Kind is the type of a pass.
type Kind uint8

const (
	Compute Kind = iota
	Depth
	Forward
	Wire
	Bounds
	UI
	Present
	Dummy
)

var kindNames = [...]string{
	Compute: "compute",
	Depth:   "depth",
	Forward: "forward",
	Wire:    "wire",
	Bounds:  "bounds",
	UI:      "ui",
	Present: "present",
	Dummy:   "dummy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pass kind %q", ErrInvalidConfig, s)
}

// Access is how a pass uses an attachment.
type Access uint8

const (
	Read Access = 1 << iota
	Write

	ReadWrite = Read | Write
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "read_write"
	}
	return fmt.Sprintf("Access(%d)", a)
}

// ParseAccess parses read, write or read_write.
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(s) {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	case "read_write", "readwrite":
		return ReadWrite, nil
	}
	return 0, fmt.Errorf("%w: unknown attachment access %q", ErrInvalidConfig, s)
}

// Usage is the role an attachment plays in a pass. It decides the layout
// the attachment is transitioned to before the pass records.
type Usage uint8

const (
	UsageColor Usage = iota
	UsageDepth
	UsageStorage
	UsageTransferSrc
	UsageSampled
)

// Layout returns the image layout a pass needs for u.
func (u Usage) Layout() gfx.ImageLayout {
	switch u {
	case UsageColor:
		return gfx.LayoutColor
	case UsageDepth:
		return gfx.LayoutDepth
	case UsageStorage:
		return gfx.LayoutGeneral
	case UsageTransferSrc:
		return gfx.LayoutTransferSrc
	case UsageSampled:
		return gfx.LayoutShader
	}
	return gfx.LayoutUndefined
}

// AttachmentRef names a graph attachment used by a pass.
type AttachmentRef struct {
	Name   string
	Usage  Usage
	Access Access
	// Clear clears the attachment when the pass begins rendering.
	Clear  bool
	Format gputypes.TextureFormat
}

func (r AttachmentRef) Reads() bool  { return r.Access&Read != 0 }
func (r AttachmentRef) Writes() bool { return r.Access&Write != 0 }

// GroupKind selects a binding group owned by a pass.
type GroupKind uint8

const (
	// GroupScene holds the per-frame scene uniform buffer (group 0).
	GroupScene GroupKind = iota
	// GroupStorage holds the storage image of compute passes.
	GroupStorage
)

// Frame is the per-frame state a pass records into.
type Frame struct {
	Slot   int
	Number uint64
	Cmd    gfx.CommandRecorder
	// Extent is the draw extent: the render extent times the render
	// scaling.
	Extent gfx.Extent2D
}

// Images resolves attachment names to the images of the current frame.
type Images interface {
	Image(name string) (gfx.Image, error)
}

// Env is what passes need to build their pipelines and per-frame data.
type Env struct {
	Ctx       *gfx.Context
	Shaders   *shader.Library
	Pipelines *pipeline.Cache
	Uniforms  *uniform.Allocator
}

// RenderPass is one step of a frame graph.
type RenderPass interface {
	batch.Pass

	Kind() Kind
	Attachments() []AttachmentRef
	// PushLayout is the per-draw object layout, or nil.
	PushLayout() *uniform.Layout
	// Pipeline is the fixed pipeline of the pass, or nil when objects
	// bring their own.
	Pipeline() gfx.Pipeline
	// SceneData packs scene into the uniform layout of the pass.
	SceneData(scene *batch.SceneInfo) ([]byte, error)
	// BindingGroup returns the group of kind for frame slot.
	BindingGroup(slot int, kind GroupKind) (gfx.BindingGroup, error)

	// ResetFrame recycles the binding groups of slot. The graph calls it
	// once the slot fence signaled.
	ResetFrame(slot int)
	Render(ctx *gfx.Context, f *Frame, images Images, b *batch.Batch) error
	Destroy()
}

// Resizer is implemented by passes that cache an extent. Resize reports
// whether anything changed.
type Resizer interface {
	Resize(extent gfx.Extent2D) bool
}

func sceneData(l *uniform.Layout, scene *batch.SceneInfo) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	return scene.Pack(l)
}

func lookup(images Images, name string) (gfx.Image, error) {
	img, err := images.Image(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingAttachment, name, err)
	}
	return img, nil
}
