// File: reactor/reactor.go
// Package reactor multiplexes many non-blocking sockets through the
// platform readiness facility: epoll on Linux, kqueue on BSD and Darwin.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The backend is chosen at build time; both expose the identical Loop
// method set, so there is no dynamic dispatch on the hot path. A Loop is
// driven by exactly one goroutine blocked in Wait. Interest changes
// (Register, Deregister, SetReadMode, SetWriteMode, RearmRead) and Wake are
// safe to call from other goroutines while Wait is in flight; the kernel
// applies them to the current and all future waits.

package reactor

// EventKind tags a readiness report.
type EventKind uint8

const (
	// KindAccept reports readiness on the registered listening socket.
	KindAccept EventKind = iota
	// KindRead reports inbound data (or an EOF discoverable by read).
	KindRead
	// KindWrite reports kernel send-buffer space on a connection that
	// previously switched to write interest.
	KindWrite
	// KindWake reports a cross-thread Wake call.
	KindWake
	// KindHangup reports peer hangup or a socket error with no pending
	// readable data.
	KindHangup
)

// String returns the kind name for logs.
func (k EventKind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindWake:
		return "wake"
	case KindHangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Event is one readiness report produced by Wait. It carries the ready
// descriptor, not a pointer: callers resolve the fd through their own
// connection table. An Event is a view valid until the next Wait call.
type Event struct {
	FD   int
	Kind EventKind
}

// BlockIndefinitely is the Wait timeout meaning "no deadline".
const BlockIndefinitely = -1

// defaultMaxEvents bounds one Wait batch when the caller passes 0.
const defaultMaxEvents = 128
