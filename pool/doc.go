// Package pool recycles GPU objects by family.
//
// An Allocator hands out objects whose Size is at least the requested size
// and whose Family equals the requested family. Objects come back through
// Recycle and are reused first-fit: candidates popped from the family
// bucket that are too small are discarded, not kept. Pools never shrink or
// compact on their own; Drain releases everything at shutdown.
//
// FrameRecycler defers recycling until the frame slot that used an object
// has been waited on, so objects are never handed out while the GPU may
// still read them.
package pool
