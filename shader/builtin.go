package shader

import (
	"embed"
	"io/fs"
)

//go:embed shaders/*.wgsl
var builtin embed.FS

// Builtin returns the shaders shipped with the engine: forward.wgsl,
// textured.wgsl, depth.wgsl, wire.wgsl, ui.wgsl and sky.wgsl.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtin, "shaders")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}
