// Package material turns declarative material descriptions into render
// pipelines and per-instance binding groups.
//
// A material names its shaders, vertex layout, blend mode, texture slots
// and uniform properties. The material store loads one pipeline per pass
// target; the instance store loads one binding group per instance, with a
// sampled image and sampler per texture slot followed by the material
// uniform block. Materials come from YAML or TOML files (see Config) and
// may be reloaded while rendering through Watch.
package material
