package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/gogpu/framegraph/gfx"
	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/internal/logging"
)

// DefaultCacheSize bounds the number of compiled sources kept around.
const DefaultCacheSize = 64

// Library resolves shader names to device shader modules.
//
// Modules are cached by name until Invalidate or Close. Compiled SPIR-V is
// cached by source hash independently of names.
type Library struct {
	device gfx.Device
	fsys   []fs.FS
	spirv  bool

	mu       sync.Mutex
	modules  map[string]gfx.Shader
	compiled *cache.Cache[uint64, []uint32]
	compiles int
}

// Option configures a Library.
type Option func(*libraryConfig)

type libraryConfig struct {
	fsys      []fs.FS
	spirv     bool
	cacheSize int
}

// WithFS adds a file system searched before the built-in shaders. Later
// calls take precedence over earlier ones.
func WithFS(fsys fs.FS) Option {
	return func(c *libraryConfig) {
		if fsys != nil {
			c.fsys = append([]fs.FS{fsys}, c.fsys...)
		}
	}
}

// WithSPIRV selects whether modules are handed to the device as SPIR-V
// (the default) or as WGSL text.
func WithSPIRV(enabled bool) Option {
	return func(c *libraryConfig) { c.spirv = enabled }
}

// WithCacheSize bounds the compiled SPIR-V cache.
func WithCacheSize(n int) Option {
	return func(c *libraryConfig) { c.cacheSize = n }
}

// NewLibrary creates a library creating modules on device.
func NewLibrary(device gfx.Device, opts ...Option) *Library {
	cfg := libraryConfig{spirv: true, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Library{
		device:   device,
		fsys:     append(cfg.fsys, Builtin()),
		spirv:    cfg.spirv,
		modules:  make(map[string]gfx.Shader),
		compiled: cache.New[uint64, []uint32](cfg.cacheSize),
	}
}

// Source returns the WGSL text of name.
func (l *Library) Source(name string) (string, error) {
	for _, fsys := range l.fsys {
		data, err := fs.ReadFile(fsys, name)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("shader: read %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Module returns the device module of name, creating it on first use.
func (l *Library) Module(name string) (gfx.Shader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	src, err := l.Source(name)
	if err != nil {
		return nil, err
	}
	desc := &gfx.ShaderDescriptor{Label: name}
	if l.spirv {
		words, err := l.compiled.GetOrCreate(SourceHash(src), func() ([]uint32, error) {
			l.compiles++
			return CompileSPIRV(src)
		})
		if err != nil {
			return nil, fmt.Errorf("shader: %s: %w", name, err)
		}
		desc.SPIRV = words
	} else {
		desc.WGSL = src
	}

	m, err := l.device.CreateShader(desc)
	if err != nil {
		return nil, fmt.Errorf("shader: create %s: %w", name, err)
	}
	l.modules[name] = m
	logging.L().Debug("shader: module created", "name", name, "spirv", l.spirv)
	return m, nil
}

// Invalidate drops the module of name so the next Module call rereads its
// source. Pipelines already built from it keep working.
func (l *Library) Invalidate(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.modules[name]; ok {
		m.Destroy()
		delete(l.modules, name)
	}
}

// Compiles returns how many sources were compiled to SPIR-V.
func (l *Library) Compiles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compiles
}

// CacheStats returns statistics of the compiled SPIR-V cache.
func (l *Library) CacheStats() cache.Stats { return l.compiled.Stats() }

// Close destroys every module.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, m := range l.modules {
		m.Destroy()
		delete(l.modules, name)
	}
	l.compiled.Clear()
}
