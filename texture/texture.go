// Package texture uploads CPU images to sampled GPU images.
package texture

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/framegraph/gfx"
	srgb "github.com/gogpu/framegraph/internal/color"
	"github.com/gogpu/framegraph/resource"
)

// Properties describes a texture. Source is converted to Format at load
// time and downscaled to fit MaxExtent when set.
type Properties struct {
	Name      string
	Source    image.Image
	Format    gputypes.TextureFormat
	Filter    gfx.SamplerFilter
	Wrap      gfx.SamplerWrap
	MaxExtent gfx.Extent2D
}

// New returns properties for src in RGBA8 with linear filtering.
func New(name string, src image.Image) Properties {
	return Properties{Name: name, Source: src, Format: gputypes.TextureFormatRGBA8Unorm}
}

// Handle refers to a texture in a store.
type Handle = resource.Handle[Properties]

// Texture is the GPU data of a texture.
type Texture struct {
	Image   gfx.Image
	Sampler gfx.Sampler
}

// Solid returns a w x h image filled with c.
func Solid(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Checker returns an n x n checkerboard of cell-sized squares.
func Checker(n, cell int, a, b color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := range n {
		for x := range n {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

// Pixels converts props.Source into tightly packed texels of props.Format
// and returns them with the resulting extent. Float formats receive linear
// values decoded from the sRGB source.
func Pixels(props *Properties) ([]byte, gfx.Extent2D, error) {
	if props.Source == nil {
		return nil, gfx.Extent2D{}, fmt.Errorf("texture %s: %w: no source image", props.Name, resource.ErrInvalidData)
	}
	b := props.Source.Bounds()
	if b.Empty() {
		return nil, gfx.Extent2D{}, fmt.Errorf("texture %s: %w: empty image", props.Name, resource.ErrInvalidData)
	}

	w, h := b.Dx(), b.Dy()
	if m := props.MaxExtent; !m.IsZero() && (w > int(m.Width) || h > int(m.Height)) {
		s := min(float64(m.Width)/float64(w), float64(m.Height)/float64(h))
		w, h = max(int(float64(w)*s), 1), max(int(float64(h)*s), 1)
	}
	extent := gfx.Extent2D{Width: uint32(w), Height: uint32(h)}

	switch props.Format {
	case gputypes.TextureFormatR8Unorm:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		scale(dst, props.Source)
		return dst.Pix, extent, nil
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatUndefined:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		scale(dst, props.Source)
		return dst.Pix, extent, nil
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		scale(dst, props.Source)
		for i := 0; i < len(dst.Pix); i += 4 {
			dst.Pix[i], dst.Pix[i+2] = dst.Pix[i+2], dst.Pix[i]
		}
		return dst.Pix, extent, nil
	case gputypes.TextureFormatRGBA32Float:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		scale(dst, props.Source)
		return srgb.LinearRGBA32F(dst.Pix), extent, nil
	}
	return nil, gfx.Extent2D{}, fmt.Errorf("texture %s: %w: unsupported format %v", props.Name, resource.ErrInvalidData, props.Format)
}

func scale(dst draw.Image, src image.Image) {
	if dst.Bounds().Size() == src.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
