// Package gfx defines the device layer the frame graph records against.
//
// The interfaces mirror an explicit GPU API: images carry a layout that
// passes transition explicitly, command recorders are reset and reused per
// frame slot, and fences bound how far the CPU may run ahead. Backends live
// in subpackages: halgfx drives github.com/gogpu/wgpu/hal devices, gfxtest
// is a deterministic software device used by tests.
//
// Context bundles a device with its display and provides RunImmediate and
// RunTransfer for blocking one-off submissions such as uploads and
// readbacks.
package gfx
