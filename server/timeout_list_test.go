// File: server/timeout_list_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func listOrder(l *timeoutList) []int64 {
	var ids []int64
	for c := l.head; c != nil; c = c.next {
		ids = append(ids, c.id)
	}
	return ids
}

func TestTimeoutListAppendOrder(t *testing.T) {
	var l timeoutList
	a, b, c := &Conn{id: 1}, &Conn{id: 2}, &Conn{id: 3}
	l.pushBack(a)
	l.pushBack(b)
	l.pushBack(c)

	require.Equal(t, []int64{1, 2, 3}, listOrder(&l))
	require.Equal(t, 3, l.len())
	require.Same(t, a, l.front())
}

// Refreshing B must leave A and C in their original relative order with B
// behind both, the invariant idle eviction depends on.
func TestTimeoutListMoveToBack(t *testing.T) {
	var l timeoutList
	a, b, c := &Conn{id: 1}, &Conn{id: 2}, &Conn{id: 3}
	l.pushBack(a)
	l.pushBack(b)
	l.pushBack(c)

	l.moveToBack(b)
	require.Equal(t, []int64{1, 3, 2}, listOrder(&l))
	require.Same(t, a, l.front())
}

func TestTimeoutListRemove(t *testing.T) {
	var l timeoutList
	a, b, c := &Conn{id: 1}, &Conn{id: 2}, &Conn{id: 3}
	l.pushBack(a)
	l.pushBack(b)
	l.pushBack(c)

	l.remove(a) // head
	require.Equal(t, []int64{2, 3}, listOrder(&l))
	l.remove(c) // tail
	require.Equal(t, []int64{2}, listOrder(&l))
	l.remove(b) // last
	require.Empty(t, listOrder(&l))
	require.Nil(t, l.front())
	require.Zero(t, l.len())

	// remove is idempotent so close paths cannot corrupt the list.
	l.remove(b)
	require.Zero(t, l.len())
}

func TestTimeoutListDoublePushPanics(t *testing.T) {
	var l timeoutList
	a := &Conn{id: 1}
	l.pushBack(a)
	require.Panics(t, func() { l.pushBack(a) })
}
