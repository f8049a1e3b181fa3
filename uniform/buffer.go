package uniform

import (
	"fmt"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/pool"
)

// Buffer is a GPU uniform buffer sized for one layout. It is pooled with
// its layout as family.
type Buffer struct {
	gfx.Buffer
	layout *Layout
}

// Family implements pool.Allocable.
func (b *Buffer) Family() *Layout { return b.layout }

// Layout returns the layout the buffer was sized for.
func (b *Buffer) Layout() *Layout { return b.layout }

// Update packs values and writes them through queue.
func (b *Buffer) Update(queue gfx.Queue, values ...any) error {
	data, err := b.layout.Pack(values...)
	if err != nil {
		return err
	}
	return queue.WriteBuffer(b.Buffer, 0, data)
}

// Write uploads already packed bytes.
func (b *Buffer) Write(queue gfx.Queue, data []byte) error {
	if len(data) > b.Size() {
		return fmt.Errorf("uniform: %d bytes for %s buffer of %d", len(data), b.layout.name, b.Size())
	}
	return queue.WriteBuffer(b.Buffer, 0, data)
}

// Allocator pools uniform buffers by layout.
type Allocator = pool.Allocator[gfx.Device, *Layout, *Buffer]

// NewAllocator creates a uniform buffer pool.
func NewAllocator() *Allocator {
	return pool.NewAllocator(allocBuffer,
		pool.WithName[*Buffer]("uniform"),
		pool.WithDiscard(func(b *Buffer) { b.Destroy() }))
}

func allocBuffer(device gfx.Device, name string, size int, layout *Layout) (*Buffer, error) {
	size = max(size, layout.Size())
	buf, err := device.CreateBuffer(&gfx.BufferDescriptor{Label: name, Size: size, Usage: gfx.BufferFamilyUniform})
	if err != nil {
		return nil, err
	}
	return &Buffer{Buffer: buf, layout: layout}, nil
}
