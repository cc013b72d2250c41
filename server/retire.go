// File: server/retire.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "sync"

// retireOp is a worker's completion record for one dispatch. The loop
// thread consumes it to refresh the deadline, re-arm read interest, or
// close the connection: all state workers are forbidden to touch.
type retireOp struct {
	c    *Conn
	msgs int
	err  error // nil requests a re-arm; non-nil requests a close
}

// retireQueue is the MPSC handoff from worker goroutines back to the event
// loop. Workers push and Wake the loop; the loop drains after every Wait.
type retireQueue struct {
	mu  sync.Mutex
	ops []retireOp
}

func (q *retireQueue) push(op retireOp) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

// take swaps out the accumulated batch, leaving the queue empty.
func (q *retireQueue) take(into []retireOp) []retireOp {
	q.mu.Lock()
	out := append(into[:0], q.ops...)
	q.ops = q.ops[:0]
	q.mu.Unlock()
	return out
}
