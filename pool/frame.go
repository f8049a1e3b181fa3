package pool

// FrameRecycler queues objects used by a frame slot until the slot's fence
// has been waited on.
type FrameRecycler[A any] struct {
	slots [][]A
}

// NewFrameRecycler creates a recycler for framesInFlight slots.
func NewFrameRecycler[A any](framesInFlight int) *FrameRecycler[A] {
	return &FrameRecycler[A]{slots: make([][]A, max(framesInFlight, 1))}
}

// Retire queues obj for slot.
func (r *FrameRecycler[A]) Retire(slot int, obj A) {
	slot %= len(r.slots)
	r.slots[slot] = append(r.slots[slot], obj)
}

// Collect hands every object queued for slot to recycle. Call it only
// after the slot's previous submission completed.
func (r *FrameRecycler[A]) Collect(slot int, recycle func(A)) int {
	slot %= len(r.slots)
	objs := r.slots[slot]
	for i, obj := range objs {
		recycle(obj)
		var zero A
		objs[i] = zero
	}
	r.slots[slot] = objs[:0]
	return len(objs)
}

// Len returns the number of objects queued for slot.
func (r *FrameRecycler[A]) Len(slot int) int { return len(r.slots[slot%len(r.slots)]) }

// CollectAll drains every slot. Call it after the device went idle.
func (r *FrameRecycler[A]) CollectAll(recycle func(A)) int {
	n := 0
	for i := range r.slots {
		n += r.Collect(i, recycle)
	}
	return n
}
