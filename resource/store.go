package resource

import (
	"fmt"

	"github.com/gogpu/framegraph/internal/logging"
)

// Loader produces the GPU data of a resource for one parameter.
type Loader[P, D any, Q comparable] interface {
	Load(h Handle[P], props *P, param Q) (D, error)
	Unload(data D)
}

// LoaderFuncs adapts a pair of functions to Loader.
type LoaderFuncs[P, D any, Q comparable] struct {
	LoadFunc   func(h Handle[P], props *P, param Q) (D, error)
	UnloadFunc func(data D)
}

func (f LoaderFuncs[P, D, Q]) Load(h Handle[P], props *P, param Q) (D, error) {
	return f.LoadFunc(h, props, param)
}

func (f LoaderFuncs[P, D, Q]) Unload(data D) {
	if f.UnloadFunc != nil {
		f.UnloadFunc(data)
	}
}

type slot[P, D any, Q comparable] struct {
	gen      uint32
	live     bool
	props    P
	lifetime Lifetime
	data     map[Q]*D
	lastUsed uint64
}

// Store is the registry of one resource type.
// Store is not safe for concurrent use; the render goroutine owns it.
type Store[P, D any, Q comparable] struct {
	name   string
	loader Loader[P, D, Q]
	slots  []slot[P, D, Q]
	free   []uint32
	live   int
	frame  uint64
	loads  uint64
}

// NewStore creates an empty store whose data is produced by loader.
func NewStore[P, D any, Q comparable](name string, loader Loader[P, D, Q]) *Store[P, D, Q] {
	return &Store[P, D, Q]{name: name, loader: loader}
}

// Name returns the store name.
func (s *Store[P, D, Q]) Name() string { return s.name }

// Add registers props and returns its handle. No data is loaded yet.
func (s *Store[P, D, Q]) Add(props P, lifetime Lifetime) Handle[P] {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot[P, D, Q]{})
	}
	sl := &s.slots[idx]
	sl.gen++
	sl.live = true
	sl.props = props
	sl.lifetime = lifetime
	sl.data = nil
	sl.lastUsed = s.frame
	s.live++
	return Handle[P]{index: idx, gen: sl.gen}
}

func (s *Store[P, D, Q]) lookup(op string, h Handle[P]) (*slot[P, D, Q], error) {
	if h.IsZero() || int(h.index) >= len(s.slots) {
		return nil, &Error{Op: op, Store: s.name, Handle: h.String(), Err: ErrNotFound}
	}
	sl := &s.slots[h.index]
	if !sl.live || sl.gen != h.gen {
		return nil, &Error{Op: op, Store: s.name, Handle: h.String(), Err: ErrUnloaded}
	}
	return sl, nil
}

// Contains reports whether h refers to a live resource.
func (s *Store[P, D, Q]) Contains(h Handle[P]) bool {
	_, err := s.lookup("contains", h)
	return err == nil
}

// Properties returns the properties of h. The pointer stays valid until
// the next Add, which may grow the slot table.
func (s *Store[P, D, Q]) Properties(h Handle[P]) (*P, error) {
	sl, err := s.lookup("properties", h)
	if err != nil {
		return nil, err
	}
	return &sl.props, nil
}

// GetData returns the data of h for param, loading it on first request.
// Each (handle, param) pair is loaded exactly once until unload.
func (s *Store[P, D, Q]) GetData(h Handle[P], param Q) (*D, error) {
	sl, err := s.lookup("get", h)
	if err != nil {
		return nil, err
	}
	sl.lastUsed = s.frame
	if d, ok := sl.data[param]; ok {
		return d, nil
	}

	data, err := s.loader.Load(h, &sl.props, param)
	if err != nil {
		return nil, &Error{Op: "load", Store: s.name, Handle: h.String(), Err: fmt.Errorf("%w: %w", ErrLoadFailed, err)}
	}
	// The loader may have added resources to this store and moved the
	// slot table.
	sl = &s.slots[h.index]
	if sl.data == nil {
		sl.data = make(map[Q]*D)
	}
	d := &data
	sl.data[param] = d
	s.loads++
	logging.L().Debug("resource: loaded", "store", s.name, "handle", h.String(), "param", param)
	return d, nil
}

// Loaded returns how many parameters of h have data loaded.
func (s *Store[P, D, Q]) Loaded(h Handle[P]) int {
	sl, err := s.lookup("loaded", h)
	if err != nil {
		return 0
	}
	return len(sl.data)
}

// Loads returns the total number of loader invocations.
func (s *Store[P, D, Q]) Loads() uint64 { return s.loads }

// Update replaces the properties of h and drops its loaded data, which is
// reloaded on the next GetData. Callers must make sure the GPU no longer
// uses the old data.
func (s *Store[P, D, Q]) Update(h Handle[P], props P) error {
	sl, err := s.lookup("update", h)
	if err != nil {
		return err
	}
	s.unloadData(sl)
	sl.props = props
	return nil
}

// Clone registers a copy of the properties of h with the same lifetime.
// Data is not shared; the clone loads its own.
func (s *Store[P, D, Q]) Clone(h Handle[P]) (Handle[P], error) {
	sl, err := s.lookup("clone", h)
	if err != nil {
		return Handle[P]{}, err
	}
	return s.Add(sl.props, sl.lifetime), nil
}

// Unload releases every loaded parameter of h and invalidates h.
func (s *Store[P, D, Q]) Unload(h Handle[P]) error {
	sl, err := s.lookup("unload", h)
	if err != nil {
		return err
	}
	s.release(h.index, sl)
	return nil
}

func (s *Store[P, D, Q]) unloadData(sl *slot[P, D, Q]) {
	for _, d := range sl.data {
		s.loader.Unload(*d)
	}
	sl.data = nil
}

func (s *Store[P, D, Q]) release(idx uint32, sl *slot[P, D, Q]) {
	s.unloadData(sl)
	var zero P
	sl.props = zero
	sl.live = false
	// Stale handles must not match even if the slot is never reused.
	sl.gen++
	s.free = append(s.free, idx)
	s.live--
}

// SetFrame records the current frame number for transient tracking.
func (s *Store[P, D, Q]) SetFrame(frame uint64) { s.frame = frame }

// CollectTransient unloads transient resources not requested during the
// last framesInFlight frames. It returns the number collected.
func (s *Store[P, D, Q]) CollectTransient(framesInFlight int) int {
	n := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.live || sl.lifetime != Transient {
			continue
		}
		if s.frame-sl.lastUsed < uint64(framesInFlight) {
			continue
		}
		s.release(uint32(i), sl)
		n++
	}
	if n > 0 {
		logging.L().Debug("resource: collected transient", "store", s.name, "count", n)
	}
	return n
}

// Len returns the number of live resources.
func (s *Store[P, D, Q]) Len() int { return s.live }

// Each calls fn for every live resource in slot order.
func (s *Store[P, D, Q]) Each(fn func(h Handle[P], props *P)) {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.live {
			fn(Handle[P]{index: uint32(i), gen: sl.gen}, &sl.props)
		}
	}
}

// Close unloads every resource.
func (s *Store[P, D, Q]) Close() {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.live {
			s.release(uint32(i), sl)
		}
	}
}
