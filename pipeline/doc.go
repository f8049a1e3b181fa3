// Package pipeline caches device pipelines and binding group layouts.
//
// Pipeline creation is expensive, and material loaders ask for the same
// pipeline once per pass. The cache hashes descriptors with FNV-1a and
// returns the existing pipeline for equal descriptors. Binding group
// layouts are deduplicated the same way so that every pipeline sharing a
// scene layout accepts the same binding groups.
package pipeline
