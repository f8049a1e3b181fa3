package pool

// Allocable is implemented by pooled objects.
type Allocable[F comparable] interface {
	Family() F
	Size() int
}

// ObjectPool stores idle objects in per-family LIFO buckets.
// ObjectPool is not safe for concurrent use.
type ObjectPool[F comparable, A any] struct {
	buckets map[F][]A
	count   int
}

// NewObjectPool creates an empty pool.
func NewObjectPool[F comparable, A any]() *ObjectPool[F, A] {
	return &ObjectPool[F, A]{buckets: make(map[F][]A)}
}

// Insert adds obj to the bucket of family.
func (p *ObjectPool[F, A]) Insert(family F, obj A) {
	p.buckets[family] = append(p.buckets[family], obj)
	p.count++
}

// Pop removes the most recently inserted object of family.
func (p *ObjectPool[F, A]) Pop(family F) (A, bool) {
	bucket := p.buckets[family]
	if len(bucket) == 0 {
		var zero A
		return zero, false
	}
	obj := bucket[len(bucket)-1]
	var zero A
	bucket[len(bucket)-1] = zero
	bucket = bucket[:len(bucket)-1]
	if len(bucket) == 0 {
		delete(p.buckets, family)
	} else {
		p.buckets[family] = bucket
	}
	p.count--
	return obj, true
}

// Contains reports whether family has idle objects.
func (p *ObjectPool[F, A]) Contains(family F) bool { return len(p.buckets[family]) > 0 }

// Len returns the number of idle objects of family.
func (p *ObjectPool[F, A]) Len(family F) int { return len(p.buckets[family]) }

// Total returns the number of idle objects across all families.
func (p *ObjectPool[F, A]) Total() int { return p.count }

// Families returns the families that currently hold idle objects.
func (p *ObjectPool[F, A]) Families() []F {
	out := make([]F, 0, len(p.buckets))
	for f := range p.buckets {
		out = append(out, f)
	}
	return out
}

// Drain removes every idle object, calling fn for each.
func (p *ObjectPool[F, A]) Drain(fn func(A)) {
	for f, bucket := range p.buckets {
		for _, obj := range bucket {
			if fn != nil {
				fn(obj)
			}
		}
		delete(p.buckets, f)
	}
	p.count = 0
}
