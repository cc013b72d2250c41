// File: api/errors.go
// Package api defines the error taxonomy shared across frameloop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Sentinel errors used across the library.
var (
	// ErrWouldBlock signals that a non-blocking operation has no data or
	// space available right now. It is a control-flow signal, never a
	// failure: callers yield back to the event loop and retry on the next
	// readiness report.
	ErrWouldBlock = errors.New("operation would block")

	// ErrClosed signals that the peer closed the connection (a read of 0
	// bytes) or that the write side observed a closed socket.
	ErrClosed = errors.New("connection closed by peer")

	// ErrBufferTooSmall signals a declared frame length that can never fit
	// the connection's fixed read buffer. Fatal for the connection only.
	ErrBufferTooSmall = errors.New("message exceeds buffer capacity")

	// ErrPendingMessage is returned by the writer when a frame is still
	// draining; at most one outbound frame is in flight per connection.
	ErrPendingMessage = errors.New("previous message still pending")

	// ErrMessageTooLarge is returned by the writer when the framed payload
	// cannot fit the fixed write buffer.
	ErrMessageTooLarge = errors.New("message exceeds write buffer capacity")

	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("server closed")
)

// FromErrno maps a syscall errno onto the library taxonomy. EAGAIN and
// EWOULDBLOCK become ErrWouldBlock; everything else passes through.
func FromErrno(err error) error {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return ErrWouldBlock
	}
	return err
}

// IsWouldBlock reports whether err is the non-fatal retry signal.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
