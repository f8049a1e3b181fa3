package pool

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/internal/logging"
)

// ErrAllocation wraps every failure to construct a new pooled object.
// Callers treat it as fatal for the frame.
var ErrAllocation = errors.New("pool: allocation failed")

// IsAllocationFailure reports whether err came from a failed construction.
func IsAllocationFailure(err error) bool { return errors.Is(err, ErrAllocation) }

// AllocFunc constructs a new object of at least size bytes in family.
type AllocFunc[D any, F comparable, A Allocable[F]] func(device D, name string, size int, family F) (A, error)

// Stats counts allocator activity.
type Stats struct {
	Allocations uint64
	Reuses      uint64
	Discards    uint64
	Recycles    uint64
	// Idle is the number of objects currently parked in the pool.
	Idle int
}

// Allocator hands out pooled objects and constructs new ones on a miss.
// Allocator is not safe for concurrent use; the render goroutine owns it.
type Allocator[D any, F comparable, A Allocable[F]] struct {
	name    string
	alloc   AllocFunc[D, F, A]
	discard func(A)
	pool    *ObjectPool[F, A]
	stats   Stats
}

// Option configures an Allocator.
type Option[A any] func(*options[A])

type options[A any] struct {
	name    string
	discard func(A)
}

// WithName sets the name used in log records.
func WithName[A any](name string) Option[A] {
	return func(o *options[A]) { o.name = name }
}

// WithDiscard sets the function called for objects dropped because they
// were too small, and for every object on Drain.
func WithDiscard[A any](fn func(A)) Option[A] {
	return func(o *options[A]) { o.discard = fn }
}

// NewAllocator creates an allocator that builds objects with alloc.
func NewAllocator[D any, F comparable, A Allocable[F]](alloc AllocFunc[D, F, A], opts ...Option[A]) *Allocator[D, F, A] {
	o := options[A]{name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Allocator[D, F, A]{
		name:    o.name,
		alloc:   alloc,
		discard: o.discard,
		pool:    NewObjectPool[F, A](),
	}
}

// Allocate returns an object of family with Size() >= size. Idle objects
// of the family are tried newest first; undersized ones are discarded.
// When the bucket runs dry a new object is constructed.
func (a *Allocator[D, F, A]) Allocate(device D, name string, size int, family F) (A, error) {
	for {
		obj, ok := a.pool.Pop(family)
		if !ok {
			break
		}
		if obj.Size() >= size {
			a.stats.Reuses++
			logging.L().Debug("pool: reuse", "pool", a.name, "name", name, "size", size, "have", obj.Size())
			return obj, nil
		}
		a.stats.Discards++
		logging.L().Debug("pool: discard undersized", "pool", a.name, "size", size, "have", obj.Size())
		if a.discard != nil {
			a.discard(obj)
		}
	}

	obj, err := a.alloc(device, name, size, family)
	if err != nil {
		var zero A
		return zero, fmt.Errorf("pool: %s: allocate %q (%d bytes): %w: %w", a.name, name, size, ErrAllocation, err)
	}
	a.stats.Allocations++
	logging.L().Debug("pool: allocate", "pool", a.name, "name", name, "size", size)
	return obj, nil
}

// Recycle parks obj in the bucket of its own family.
func (a *Allocator[D, F, A]) Recycle(obj A) {
	a.pool.Insert(obj.Family(), obj)
	a.stats.Recycles++
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator[D, F, A]) Stats() Stats {
	s := a.stats
	s.Idle = a.pool.Total()
	return s
}

// Idle returns the number of idle objects of family.
func (a *Allocator[D, F, A]) Idle(family F) int { return a.pool.Len(family) }

// Name returns the allocator name.
func (a *Allocator[D, F, A]) Name() string { return a.name }

// Drain releases every idle object through the discard function.
func (a *Allocator[D, F, A]) Drain() {
	a.pool.Drain(a.discard)
}
