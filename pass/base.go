// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"github.com/gogpu/framegraph/batch"
	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/uniform"
)

// base carries the identity of a pass and the defaults of passes that
// neither draw objects nor own scene data.
type base struct {
	id   ID
	name string
	kind Kind
	refs []AttachmentRef
}

func (b *base) ID() ID                         { return b.id }
func (b *base) Name() string                   { return b.name }
func (b *base) Kind() Kind                     { return b.kind }
func (b *base) Attachments() []AttachmentRef   { return b.refs }
func (b *base) UniformLayout() *uniform.Layout { return nil }
func (b *base) PushLayout() *uniform.Layout    { return nil }
func (b *base) VertexFlags() mesh.VertexFlag   { return 0 }
func (b *base) Target() material.Target        { return material.Target{} }
func (b *base) Pipeline() gfx.Pipeline         { return nil }
func (b *base) ResetFrame(int)                 {}
func (b *base) Destroy()                       {}

func (b *base) SceneData(*batch.SceneInfo) ([]byte, error) { return nil, nil }

func (b *base) BindingGroup(int, GroupKind) (gfx.BindingGroup, error) {
	return nil, ErrInvalidPipeline
}
