// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/frameloop/reactor"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func openLoop(t *testing.T) *reactor.Loop {
	t.Helper()
	l, err := reactor.Open(16)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

// waitOnce runs one Wait on a fresh goroutine so the test can exercise the
// cross-thread contract, and returns the delivered batch.
func waitOnce(t *testing.T, l *reactor.Loop, timeoutMs int) []reactor.Event {
	t.Helper()
	type result struct {
		events []reactor.Event
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		events := make([]reactor.Event, 16)
		n, err := l.Wait(events, timeoutMs)
		ch <- result{events: events[:n], err: err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.events
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
		return nil
	}
}

func TestWaitTimeout(t *testing.T) {
	l := openLoop(t)
	start := time.Now()
	events := waitOnce(t, l, 50)
	require.Empty(t, events)
	require.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestWakeUnblocksWait(t *testing.T) {
	l := openLoop(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = l.Wake()
	}()
	events := waitOnce(t, l, reactor.BlockIndefinitely)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindWake, events[0].Kind)
}

func TestWakeCoalesces(t *testing.T) {
	l := openLoop(t)
	for i := 0; i < 8; i++ {
		require.NoError(t, l.Wake())
	}
	events := waitOnce(t, l, 100)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindWake, events[0].Kind)

	// Drained: the next wait sees nothing.
	events = waitOnce(t, l, 50)
	require.Empty(t, events)
}

func TestReadReadiness(t *testing.T) {
	l := openLoop(t)
	a, b := socketpair(t)
	require.NoError(t, l.Register(a))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events := waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.Event{FD: a, Kind: reactor.KindRead}, events[0])

	// Level-triggered: unread data reports again.
	events = waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindRead, events[0].Kind)

	require.NoError(t, l.Deregister(a))
	events = waitOnce(t, l, 50)
	require.Empty(t, events)
}

func TestOneShotReadRequiresRearm(t *testing.T) {
	l := openLoop(t)
	a, b := socketpair(t)
	require.NoError(t, l.RegisterOneShot(a))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events := waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindRead, events[0].Kind)

	// Consumed: silent until re-armed even though data remains.
	events = waitOnce(t, l, 50)
	require.Empty(t, events)

	require.NoError(t, l.RearmRead(a))
	events = waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindRead, events[0].Kind)
}

// TestCrossThreadSetWriteMode validates the contract the worker re-arm
// pattern depends on: interest changes from a foreign goroutine take effect
// for a Wait already in flight.
func TestCrossThreadSetWriteMode(t *testing.T) {
	l := openLoop(t)
	a, _ := socketpair(t)
	require.NoError(t, l.RegisterOneShot(a))

	// No data: the in-flight Wait blocks until the mode switch makes the
	// idle socket writable.
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = l.SetWriteMode(a)
	}()
	events := waitOnce(t, l, reactor.BlockIndefinitely)
	require.Len(t, events, 1)
	require.Equal(t, reactor.Event{FD: a, Kind: reactor.KindWrite}, events[0])

	// Write interest is one-shot.
	events = waitOnce(t, l, 50)
	require.Empty(t, events)
}

func TestListenerOneShotAndRearm(t *testing.T) {
	l := openLoop(t)
	a, b := socketpair(t)
	require.NoError(t, l.AddListener(a))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events := waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.Event{FD: a, Kind: reactor.KindAccept}, events[0])

	// Parked until re-armed.
	events = waitOnce(t, l, 50)
	require.Empty(t, events)

	require.NoError(t, l.RearmListener(a))
	events = waitOnce(t, l, 1000)
	require.Len(t, events, 1)
	require.Equal(t, reactor.KindAccept, events[0].Kind)

	require.NoError(t, l.RemoveListener(a))
}
