package texture

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/resource"
)

// Store holds textures. Textures do not depend on the pass that samples
// them, so the load parameter is empty.
type Store = resource.Store[Properties, Texture, struct{}]

type samplerKey struct {
	filter gfx.SamplerFilter
	wrap   gfx.SamplerWrap
}

// Loader uploads texture pixels through a pooled staging buffer on the
// transfer queue.
type Loader struct {
	ctx      *gfx.Context
	staging  *pool.BufferAllocator
	samplers map[samplerKey]gfx.Sampler
	retire   func(func())
}

// NewLoader creates a loader. staging is shared with the other uploaders.
// Images of unloaded textures are destroyed immediately unless SetRetire
// installs a frame-deferred path.
func NewLoader(ctx *gfx.Context, staging *pool.BufferAllocator) *Loader {
	return &Loader{
		ctx:      ctx,
		staging:  staging,
		samplers: make(map[samplerKey]gfx.Sampler),
		retire:   func(fn func()) { fn() },
	}
}

// SetRetire sets how images of unloaded textures are destroyed.
func (l *Loader) SetRetire(fn func(release func())) { l.retire = fn }

// NewStore creates a texture store backed by l.
func NewStore(l *Loader) *Store {
	return resource.NewStore[Properties, Texture, struct{}]("texture", l)
}

// Load implements resource.Loader.
func (l *Loader) Load(h Handle, props *Properties, _ struct{}) (Texture, error) {
	pixels, extent, err := Pixels(props)
	if err != nil {
		return Texture{}, err
	}
	format := props.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}

	img, err := l.ctx.Device.CreateImage(&gfx.ImageDescriptor{
		Label:  props.Name,
		Format: format,
		Usage:  gfx.ImageUsageSampled | gfx.ImageUsageTransferDst | gfx.ImageUsageTransferSrc,
		Extent: extent,
	})
	if err != nil {
		return Texture{}, fmt.Errorf("texture %s: %w", props.Name, err)
	}
	if err := l.upload(props.Name, img, pixels, extent, format); err != nil {
		img.Destroy()
		return Texture{}, err
	}

	sampler, err := l.sampler(props.Filter, props.Wrap)
	if err != nil {
		img.Destroy()
		return Texture{}, err
	}
	logging.L().Debug("texture: loaded", "name", props.Name, "handle", h.String(), "extent", extent)
	return Texture{Image: img, Sampler: sampler}, nil
}

func (l *Loader) upload(name string, img gfx.Image, pixels []byte, extent gfx.Extent2D, format gputypes.TextureFormat) error {
	staging, err := l.staging.Allocate(l.ctx.Device, "staging:"+name, len(pixels), gfx.BufferFamilyStaging)
	if err != nil {
		return fmt.Errorf("texture %s: staging: %w", name, err)
	}
	defer l.staging.Recycle(staging)

	if err := l.ctx.Device.Queue(gfx.QueueTransfer).WriteBuffer(staging, 0, pixels); err != nil {
		return fmt.Errorf("texture %s: write staging: %w", name, err)
	}
	return l.ctx.RunTransfer("upload texture "+name, func(cmd gfx.CommandRecorder) error {
		cmd.TransitionImage(img, gfx.LayoutTransferDst)
		cmd.CopyBufferToImage(staging, img, gfx.BufferImageCopy{
			BytesPerRow: extent.Width * uint32(gfx.BytesPerPixel(format)),
			Extent:      extent,
		})
		cmd.TransitionImage(img, gfx.LayoutShader)
		return nil
	})
}

func (l *Loader) sampler(filter gfx.SamplerFilter, wrap gfx.SamplerWrap) (gfx.Sampler, error) {
	k := samplerKey{filter, wrap}
	if s, ok := l.samplers[k]; ok {
		return s, nil
	}
	s, err := l.ctx.Device.CreateSampler(&gfx.SamplerDescriptor{
		Label:  fmt.Sprintf("sampler-%d-%d", filter, wrap),
		Filter: filter,
		Wrap:   wrap,
	})
	if err != nil {
		return nil, fmt.Errorf("texture: sampler: %w", err)
	}
	l.samplers[k] = s
	return s, nil
}

// Unload implements resource.Loader. Samplers are shared and survive.
func (l *Loader) Unload(t Texture) {
	if t.Image != nil {
		l.retire(t.Image.Destroy)
	}
}

// Close destroys the shared samplers.
func (l *Loader) Close() {
	for k, s := range l.samplers {
		s.Destroy()
		delete(l.samplers, k)
	}
}
