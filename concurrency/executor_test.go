// File: concurrency/executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/frameloop/concurrency"
)

func TestExecutorRunsTasks(t *testing.T) {
	e := concurrency.NewExecutor(4, 64, nil)
	defer e.Close()

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			n.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()
	require.Equal(t, int64(32), n.Load())

	submitted, completed := e.Stats()
	require.Equal(t, int64(32), submitted)
	require.Equal(t, int64(32), completed)
}

func TestExecutorSubmitAfterClose(t *testing.T) {
	e := concurrency.NewExecutor(1, 4, nil)
	e.Close()
	err := e.Submit(func() {})
	require.ErrorIs(t, err, concurrency.ErrExecutorClosed)
}

func TestExecutorQueueBound(t *testing.T) {
	e := concurrency.NewExecutor(1, 2, nil)
	defer e.Close()

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(func() {
		close(started)
		<-gate
	}))
	<-started // worker busy; further submissions queue up

	require.NoError(t, e.Submit(func() {}))
	require.NoError(t, e.Submit(func() {}))
	err := e.Submit(func() {})
	require.ErrorIs(t, err, concurrency.ErrQueueFull)
	close(gate)
}

func TestExecutorCloseDrainsQueue(t *testing.T) {
	e := concurrency.NewExecutor(2, 64, nil)
	var n atomic.Int64
	for i := 0; i < 16; i++ {
		require.NoError(t, e.Submit(func() {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}
	e.Close()
	require.Equal(t, int64(16), n.Load(), "queued tasks finish before Close returns")
}

func TestExecutorSurvivesPanic(t *testing.T) {
	e := concurrency.NewExecutor(1, 8, nil)
	defer e.Close()

	require.NoError(t, e.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after task panic")
	}
}
