// Package shader loads WGSL sources and turns them into device shader
// modules.
//
// Sources are looked up in a user file system first and in the built-in
// shader set second. On backends that consume SPIR-V, sources are compiled
// with naga and the resulting words are cached by source hash, so editing
// and reloading a file only recompiles when its text changed.
package shader
