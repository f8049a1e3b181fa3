package pool

import (
	"errors"
	"fmt"
	"testing"
)

type fakeObj struct {
	id     int
	family string
	size   int
}

func (o *fakeObj) Family() string { return o.family }
func (o *fakeObj) Size() int      { return o.size }

type fakeDevice struct {
	next int
	fail error
}

func newFakeAllocator(discarded *[]*fakeObj) *Allocator[*fakeDevice, string, *fakeObj] {
	alloc := func(d *fakeDevice, _ string, size int, family string) (*fakeObj, error) {
		if d.fail != nil {
			return nil, d.fail
		}
		d.next++
		return &fakeObj{id: d.next, family: family, size: size}, nil
	}
	return NewAllocator(alloc, WithName[*fakeObj]("test"), WithDiscard(func(o *fakeObj) {
		if discarded != nil {
			*discarded = append(*discarded, o)
		}
	}))
}

func TestAllocatorReusesRecycledObject(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAllocator(nil)

	first, err := a.Allocate(dev, "u", 256, "uniform")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Recycle(first)

	second, err := a.Allocate(dev, "u", 128, "uniform")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if second != first {
		t.Errorf("Allocate after recycle = object %d, want recycled object %d", second.id, first.id)
	}
	if got := a.Stats(); got.Allocations != 1 || got.Reuses != 1 {
		t.Errorf("Stats = %+v, want 1 allocation and 1 reuse", got)
	}
}

func TestAllocatorDiscardsUndersized(t *testing.T) {
	dev := &fakeDevice{}
	var discarded []*fakeObj
	a := newFakeAllocator(&discarded)

	small, _ := a.Allocate(dev, "v", 64, "vertex")
	a.Recycle(small)

	big, err := a.Allocate(dev, "v", 1024, "vertex")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if big == small {
		t.Fatal("undersized object was handed out")
	}
	if big.Size() < 1024 {
		t.Errorf("Size() = %d, want >= 1024", big.Size())
	}
	if len(discarded) != 1 || discarded[0] != small {
		t.Errorf("discarded = %v, want the 64-byte object", discarded)
	}
	if a.Idle("vertex") != 0 {
		t.Errorf("Idle(vertex) = %d, want 0", a.Idle("vertex"))
	}
}

func TestAllocatorFamilyIsolation(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAllocator(nil)

	idx, _ := a.Allocate(dev, "i", 512, "index")
	a.Recycle(idx)

	v, err := a.Allocate(dev, "v", 16, "vertex")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if v == idx || v.Family() != "vertex" {
		t.Errorf("Allocate(vertex) returned family %q object %d", v.Family(), v.id)
	}
	if a.Idle("index") != 1 {
		t.Errorf("Idle(index) = %d, want 1", a.Idle("index"))
	}
}

// Every sequence of allocate/recycle returns objects that satisfy the
// request and never lets the same object be outstanding twice.
func TestAllocatorSequenceProperties(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAllocator(nil)
	families := []string{"vertex", "index", "uniform"}
	outstanding := make(map[*fakeObj]bool)
	var held []*fakeObj

	seed := uint32(7)
	next := func(n int) int {
		seed = seed*1664525 + 1013904223
		return int(seed>>16) % n
	}

	for step := range 2000 {
		if len(held) > 0 && next(3) == 0 {
			i := next(len(held))
			obj := held[i]
			held = append(held[:i], held[i+1:]...)
			delete(outstanding, obj)
			a.Recycle(obj)
			continue
		}
		family := families[next(len(families))]
		size := 16 << next(8)
		obj, err := a.Allocate(dev, fmt.Sprintf("obj-%d", step), size, family)
		if err != nil {
			t.Fatalf("step %d: Allocate: %v", step, err)
		}
		if obj.Size() < size {
			t.Fatalf("step %d: Size() = %d, want >= %d", step, obj.Size(), size)
		}
		if obj.Family() != family {
			t.Fatalf("step %d: Family() = %q, want %q", step, obj.Family(), family)
		}
		if outstanding[obj] {
			t.Fatalf("step %d: object %d handed out twice", step, obj.id)
		}
		outstanding[obj] = true
		held = append(held, obj)
	}
}

func TestAllocatorFailureIsWrapped(t *testing.T) {
	cause := errors.New("device out of memory")
	dev := &fakeDevice{fail: cause}
	a := newFakeAllocator(nil)

	_, err := a.Allocate(dev, "big", 1<<30, "vertex")
	if err == nil {
		t.Fatal("Allocate succeeded, want error")
	}
	if !IsAllocationFailure(err) {
		t.Errorf("IsAllocationFailure(%v) = false, want true", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false for %v", err)
	}
}

func TestAllocatorDrain(t *testing.T) {
	dev := &fakeDevice{}
	var discarded []*fakeObj
	a := newFakeAllocator(&discarded)

	for i := range 3 {
		obj, _ := a.Allocate(dev, "x", 32*(i+1), "uniform")
		a.Recycle(obj)
	}
	a.Drain()
	if len(discarded) != 3 {
		t.Errorf("Drain discarded %d objects, want 3", len(discarded))
	}
	if got := a.Stats().Idle; got != 0 {
		t.Errorf("Idle after Drain = %d, want 0", got)
	}
}

func TestFrameRecycler(t *testing.T) {
	r := NewFrameRecycler[int](2)
	r.Retire(0, 1)
	r.Retire(1, 2)
	r.Retire(2, 3) // slot 0 again

	var got []int
	n := r.Collect(0, func(v int) { got = append(got, v) })
	if n != 2 || len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Collect(0) = %v (n=%d), want [1 3]", got, n)
	}
	if r.Len(0) != 0 {
		t.Errorf("Len(0) after Collect = %d, want 0", r.Len(0))
	}
	if r.Len(1) != 1 {
		t.Errorf("Len(1) = %d, want 1", r.Len(1))
	}
	if n := r.CollectAll(func(int) {}); n != 1 {
		t.Errorf("CollectAll = %d, want 1", n)
	}
}
