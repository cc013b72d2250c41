// File: pool/arena_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/frameloop/pool"
)

type slot struct {
	buf []byte
	id  int
}

func TestArenaGetPut(t *testing.T) {
	a := pool.NewArena[slot](2, func(h int, s *slot) {
		s.buf = make([]byte, 8)
		s.id = h
	})
	require.Equal(t, 2, a.Cap())
	require.Zero(t, a.Len())

	h1, s1, ok := a.Get()
	require.True(t, ok)
	require.NotNil(t, s1.buf)
	require.Equal(t, h1, s1.id)

	h2, _, ok := a.Get()
	require.True(t, ok)
	require.NotEqual(t, h1, h2)
	require.Equal(t, 2, a.Len())

	// Exhausted: backpressure, not an error.
	_, _, ok = a.Get()
	require.False(t, ok)

	a.Put(h1)
	require.Equal(t, 1, a.Len())

	h3, s3, ok := a.Get()
	require.True(t, ok)
	require.Equal(t, h1, h3, "freed low handle is reused first")
	require.Same(t, s1, s3, "slot storage is stable across reuse")
}

func TestArenaInitRunsOncePerSlot(t *testing.T) {
	calls := 0
	a := pool.NewArena[slot](4, func(int, *slot) { calls++ })
	require.Equal(t, 4, calls)

	h, _, _ := a.Get()
	a.Put(h)
	a.Get()
	require.Equal(t, 4, calls, "reuse must not re-init")
}

func TestArenaDoublePutPanics(t *testing.T) {
	a := pool.NewArena[slot](1, nil)
	h, _, _ := a.Get()
	a.Put(h)
	require.Panics(t, func() { a.Put(h) })
	require.Panics(t, func() { a.Put(99) })
}

func TestArenaStats(t *testing.T) {
	a := pool.NewArena[slot](3, nil)
	h, _, _ := a.Get()
	a.Get()
	a.Put(h)

	gets, puts := a.Stats()
	require.Equal(t, uint64(2), gets)
	require.Equal(t, uint64(1), puts)
}
