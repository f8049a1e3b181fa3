// Package resource implements the typed resource registry.
//
// Each resource type has its own Store: a generational slot map from
// Handle[P] to the resource properties P plus lazily loaded GPU data D, one
// entry per load parameter Q (for example the pass a pipeline is built
// for). Data is produced by a Loader the first time it is requested and
// cached until the resource is unloaded.
//
// Handles are plain values. Unloading bumps the slot generation, so stale
// handles are detected and reported as *Error instead of aliasing a newer
// resource. No store method panics on a bad handle.
package resource
