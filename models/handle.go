package models

import "fmt"

// Handle is a generation-checked reference to an arena slot. The zero
// Handle never refers to a live value.
type Handle struct {
	Index uint32 `json:"index" msgpack:"index"`
	Gen   uint32 `json:"gen"   msgpack:"gen"`
}

func (h Handle) IsZero() bool {
	return h.Gen == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Gen)
}

// Arena stores values in reusable slots. Removing a value bumps the slot
// generation so that handles to it go stale instead of aliasing the next
// value stored in the slot.
//
// An Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

type slot[T any] struct {
	gen   uint32
	used  bool
	value T
}

// Add stores v and returns its handle. Freed slots are reused in priority.
func (a *Arena[T]) Add(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	s.gen++
	s.used = true
	s.value = v
	a.count++

	return Handle{Index: idx, Gen: s.gen}
}

// Get returns a pointer to the value referenced by h. The pointer is only
// valid until the next Add.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	if !a.Contains(h) {
		return nil, false
	}
	return &a.slots[h.Index].value, true
}

func (a *Arena[T]) Contains(h Handle) bool {
	if h.IsZero() || int(h.Index) >= len(a.slots) {
		return false
	}

	s := a.slots[h.Index]
	return s.used && s.gen == h.Gen
}

// Remove frees the slot referenced by h. Stale handles are ignored.
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Contains(h) {
		return false
	}

	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.used = false
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

func (a *Arena[T]) Len() int {
	return a.count
}

// Handles returns the handles of every live value in slot order.
func (a *Arena[T]) Handles() []Handle {
	handles := make([]Handle, 0, a.count)
	for i, s := range a.slots {
		if s.used {
			handles = append(handles, Handle{Index: uint32(i), Gen: s.gen})
		}
	}
	return handles
}

// Each calls fn for every live value in slot order until fn returns false.
// fn must not add or remove values.
func (a *Arena[T]) Each(fn func(Handle, *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.used {
			continue
		}
		if !fn(Handle{Index: uint32(i), Gen: s.gen}, &s.value) {
			return
		}
	}
}
