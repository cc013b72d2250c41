// File: pool/arena.go
// Package pool implements fixed-capacity object arenas with stable handles.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// An Arena pre-allocates all slots up front and hands out integer handles
// instead of raw pointers, so a released slot can never be reached through
// a stale reference by accident: handle validity is checked on every Put.
// Arenas are not goroutine-safe; frameloop confines each arena to the
// event-loop thread that owns it.

package pool

import "fmt"

// Arena is a fixed-capacity slab of T with a free list of stable indices.
type Arena[T any] struct {
	slots  []T
	free   []int32
	inUse  []bool
	active int

	totalGet uint64
	totalPut uint64
}

// NewArena creates an arena of capacity slots. If init is non-nil it runs
// once per slot at construction, typically to wire fixed buffers that live
// for the arena's whole lifetime.
func NewArena[T any](capacity int, init func(handle int, item *T)) *Arena[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("pool: invalid arena capacity %d", capacity))
	}
	a := &Arena[T]{
		slots: make([]T, capacity),
		free:  make([]int32, 0, capacity),
		inUse: make([]bool, capacity),
	}
	// Stack the free list so low handles are reused first.
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, int32(i))
	}
	if init != nil {
		for i := range a.slots {
			init(i, &a.slots[i])
		}
	}
	return a
}

// Get pops a free slot. ok == false means the arena is exhausted, which is
// the caller's backpressure signal, not an error.
func (a *Arena[T]) Get() (handle int, item *T, ok bool) {
	if len(a.free) == 0 {
		return -1, nil, false
	}
	h := int(a.free[len(a.free)-1])
	a.free = a.free[:len(a.free)-1]
	a.inUse[h] = true
	a.active++
	a.totalGet++
	return h, &a.slots[h], true
}

// At returns the slot for a handle obtained from Get. It does not check
// liveness; callers index only handles they own.
func (a *Arena[T]) At(handle int) *T {
	return &a.slots[handle]
}

// Put returns a slot to the free list. A double Put or an out-of-range
// handle is a programming error and panics.
func (a *Arena[T]) Put(handle int) {
	if handle < 0 || handle >= len(a.slots) || !a.inUse[handle] {
		panic(fmt.Sprintf("pool: put of invalid or free handle %d", handle))
	}
	a.inUse[handle] = false
	a.active--
	a.totalPut++
	a.free = append(a.free, int32(handle))
}

// Len returns the number of slots currently in use.
func (a *Arena[T]) Len() int { return a.active }

// Cap returns the fixed slot count.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Stats reports cumulative Get/Put counts.
func (a *Arena[T]) Stats() (totalGet, totalPut uint64) {
	return a.totalGet, a.totalPut
}
