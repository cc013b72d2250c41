// File: concurrency/executor.go
// Package concurrency implements the bounded worker pool that runs message
// callbacks off the event-loop thread.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The executor is deliberately simple: one shared FIFO guarded by a mutex
// and condition variable, backed by a growable ring (eapache/queue), with a
// hard queue bound for backpressure. Ordering within one connection is not
// the executor's job; the server guarantees it by never having more than
// one task per connection in flight.

package concurrency

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Errors returned by Submit.
var (
	ErrExecutorClosed = errors.New("executor closed")
	ErrQueueFull      = errors.New("executor queue full")
)

// Task is a unit of work to execute on a worker goroutine.
type Task func()

// Executor manages a fixed set of worker goroutines pulling from one
// bounded FIFO.
type Executor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	jobs     *queue.Queue
	queueCap int
	closed   bool
	wg       sync.WaitGroup
	log      *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
}

// NewExecutor starts workers goroutines (NumCPU when workers <= 0) sharing
// a FIFO bounded at queueCap (workers*64 when queueCap <= 0). logger may be
// nil.
func NewExecutor(workers, queueCap int, logger *zap.Logger) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueCap <= 0 {
		queueCap = workers * 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		jobs:     queue.New(),
		queueCap: queueCap,
		log:      logger,
	}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.run(i)
	}
	return e
}

// Submit enqueues a task. It never blocks: a full queue returns
// ErrQueueFull and a closed executor returns ErrExecutorClosed.
func (e *Executor) Submit(t Task) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	if e.jobs.Length() >= e.queueCap {
		e.mu.Unlock()
		return ErrQueueFull
	}
	e.jobs.Add(t)
	e.mu.Unlock()
	e.submitted.Add(1)
	e.cond.Signal()
	return nil
}

// Pending returns the number of queued, not yet started tasks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobs.Length()
}

// Stats reports cumulative submitted and completed task counts.
func (e *Executor) Stats() (submitted, completed int64) {
	return e.submitted.Load(), e.completed.Load()
}

// Close stops accepting tasks, lets queued tasks finish, and waits for all
// workers to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

func (e *Executor) run(id int) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.jobs.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.jobs.Length() == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		t := e.jobs.Remove().(Task)
		e.mu.Unlock()
		e.execute(id, t)
	}
}

// execute isolates worker panics: a panicking task must not take down its
// worker or the process.
func (e *Executor) execute(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("task panic", zap.Int("worker", id), zap.Any("panic", r))
		}
		e.completed.Add(1)
	}()
	t()
}
