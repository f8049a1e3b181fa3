// Package cache provides a generic LRU cache with an eviction hook.
//
// It backs the compiled shader and pipeline caches, where evicted values
// own GPU objects that must be destroyed:
//
//	c := cache.New[uint64, gfx.Shader](64, cache.WithEvict(func(_ uint64, s gfx.Shader) {
//		s.Destroy()
//	}))
//	s, err := c.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
