// File: protocol/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/momentics/frameloop/api"
)

// Reader reassembles length-prefixed frames from a non-blocking socket
// using one fixed buffer. buf[start:pos] holds the unconsumed bytes;
// 0 <= start <= pos <= cap always holds. Compaction slides the unconsumed
// window to offset zero when the tail runs out of room, so no frame ever
// needs a second allocation.
type Reader struct {
	buf   []byte
	start int
	pos   int
}

// NewReader creates a Reader with a fixed capacity. The capacity bounds the
// largest framed message the connection can ever receive.
func NewReader(capacity int) *Reader {
	return &Reader{buf: make([]byte, capacity)}
}

// Reset discards buffered bytes so the Reader can serve a new connection.
func (r *Reader) Reset() {
	r.start, r.pos = 0, 0
}

// Buffered returns the number of unconsumed bytes.
func (r *Reader) Buffered() int { return r.pos - r.start }

// Capacity returns the fixed buffer capacity.
func (r *Reader) Capacity() int { return len(r.buf) }

// ReadMessage returns the next complete payload. A buffered frame is
// returned without touching the socket; otherwise one read(2) is issued per
// iteration until a frame completes or the socket has no more data.
//
// Returns api.ErrWouldBlock when no complete frame is available yet,
// api.ErrClosed on peer close, api.ErrBufferTooSmall when a declared length
// can never fit, and the raw errno for anything else. The returned slice
// aliases the internal buffer and is valid only until the next call that
// mutates it.
func (r *Reader) ReadMessage(fd int) ([]byte, error) {
	for {
		msg, ok, err := r.bufferedMessage()
		if err != nil {
			return nil, err
		}
		if ok {
			return msg, nil
		}
		n, err := unix.Read(fd, r.buf[r.pos:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, api.FromErrno(err)
		}
		if n == 0 {
			return nil, api.ErrClosed
		}
		r.pos += n
	}
}

// bufferedMessage decodes a frame from the unconsumed window if one is
// complete. When it is not, it guarantees spare tail capacity for the bytes
// still missing so the next read can make progress.
func (r *Reader) bufferedMessage() ([]byte, bool, error) {
	unprocessed := r.pos - r.start
	if unprocessed < HeaderSize {
		if err := r.ensureSpace(HeaderSize); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	length := binary.LittleEndian.Uint32(r.buf[r.start:])
	if int64(HeaderSize)+int64(length) > int64(len(r.buf)) {
		return nil, false, api.ErrBufferTooSmall
	}
	total := HeaderSize + int(length)
	if unprocessed < total {
		if err := r.ensureSpace(total); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	msg := r.buf[r.start+HeaderSize : r.start+total]
	r.start += total
	return msg, true, nil
}

// ensureSpace makes room for needed contiguous bytes starting at start,
// compacting the unconsumed window to offset zero when the tail is short.
// The copy is overlap-safe: source and destination ranges may intersect
// whenever start > 0.
func (r *Reader) ensureSpace(needed int) error {
	if needed > len(r.buf) {
		return api.ErrBufferTooSmall
	}
	if len(r.buf)-r.start >= needed {
		return nil
	}
	copy(r.buf, r.buf[r.start:r.pos])
	r.pos -= r.start
	r.start = 0
	return nil
}
