package cache

import "sync"

// Cache is a generic LRU cache. A limit of 0 means unlimited.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruNode[K, V]
	order   lruList[K, V]
	limit   int
	onEvict func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvict registers fn to be called for every value leaving the cache
// through eviction, Delete or Clear.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// New creates a cache holding at most limit entries.
func New[K comparable, V any](limit int, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*lruNode[K, V]),
		limit:   limit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(node)
	return node.value, true
}

// Set stores a value, replacing any previous value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	var evicted []*lruNode[K, V]
	if node, ok := c.entries[key]; ok {
		if c.onEvict != nil {
			evicted = append(evicted, &lruNode[K, V]{key: key, value: node.value})
		}
		node.value = value
		c.order.MoveToFront(node)
	} else {
		c.entries[key] = c.order.PushFront(key, value)
		evicted = append(evicted, c.trim()...)
	}
	c.mu.Unlock()
	c.notify(evicted)
}

// GetOrCreate returns the cached value for key or stores the result of
// create. create runs under the cache lock, so concurrent callers never
// build the same value twice. A failed create caches nothing.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if node, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(node)
		c.mu.Unlock()
		return node.value, nil
	}
	c.misses++
	value, err := create()
	if err != nil {
		c.mu.Unlock()
		return value, err
	}
	c.entries[key] = c.order.PushFront(key, value)
	evicted := c.trim()
	c.mu.Unlock()

	c.notify(evicted)
	return value, nil
}

// Delete removes key. It reports whether an entry was removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	node, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.order.Remove(node)
	}
	c.mu.Unlock()
	if ok {
		c.notify([]*lruNode[K, V]{node})
	}
	return ok
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	var all []*lruNode[K, V]
	for n := c.order.head; n != nil; n = n.next {
		all = append(all, n)
	}
	c.entries = make(map[K]*lruNode[K, V])
	c.order.Clear()
	c.mu.Unlock()
	c.notify(all)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.entries))
	for n := c.order.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// trim evicts least recently used entries above the limit.
// Caller must hold c.mu.
func (c *Cache[K, V]) trim() []*lruNode[K, V] {
	if c.limit <= 0 {
		return nil
	}
	var evicted []*lruNode[K, V]
	for len(c.entries) > c.limit {
		node := c.order.Oldest()
		c.order.Remove(node)
		delete(c.entries, node.key)
		c.evictions++
		evicted = append(evicted, node)
	}
	return evicted
}

// notify runs the eviction hook outside the lock.
func (c *Cache[K, V]) notify(nodes []*lruNode[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, n := range nodes {
		c.onEvict(n.key, n.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// HitRate is Hits / (Hits + Misses), 0 before the first lookup.
	HitRate float64
}
