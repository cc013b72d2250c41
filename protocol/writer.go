// File: protocol/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/momentics/frameloop/api"
)

// Writer buffers one outbound frame in a fixed buffer and drives partial
// writes to completion. pending is a view into the buffer: empty when idle,
// non-empty while a frame drains. At most one frame is outstanding per
// connection.
type Writer struct {
	buf     []byte
	pending []byte
}

// NewWriter creates a Writer with a fixed capacity. The capacity bounds the
// largest framed message the connection can send.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, capacity)}
}

// Reset discards any pending frame so the Writer can serve a new
// connection.
func (w *Writer) Reset() { w.pending = nil }

// HasPending reports whether a frame is still draining.
func (w *Writer) HasPending() bool { return len(w.pending) > 0 }

// QueueMessage encodes the length prefix and payload into the write buffer
// and starts draining. done == false means the kernel send buffer filled
// up; the caller must switch the connection to write interest and call
// Drain again on the next write-readiness report.
//
// Returns api.ErrPendingMessage while a previous frame drains and
// api.ErrMessageTooLarge when the framed payload cannot fit.
func (w *Writer) QueueMessage(fd int, payload []byte) (done bool, err error) {
	if len(w.pending) > 0 {
		return false, api.ErrPendingMessage
	}
	total := HeaderSize + len(payload)
	if total > len(w.buf) {
		return false, api.ErrMessageTooLarge
	}
	binary.LittleEndian.PutUint32(w.buf, uint32(len(payload)))
	copy(w.buf[HeaderSize:], payload)
	w.pending = w.buf[:total]
	return w.Drain(fd)
}

// Drain writes from the head of the pending frame until it completes or
// the socket signals no space. A partial write advances the view; EAGAIN
// returns done == false with a nil error; a zero-length write reports
// api.ErrClosed; completion clears pending.
func (w *Writer) Drain(fd int) (done bool, err error) {
	for len(w.pending) > 0 {
		n, err := unix.Write(fd, w.pending)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return false, nil
			}
			return false, err
		}
		if n == 0 {
			return false, api.ErrClosed
		}
		w.pending = w.pending[n:]
	}
	w.pending = nil
	return true, nil
}
