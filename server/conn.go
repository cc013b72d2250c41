// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/frameloop/protocol"
)

// Conn is one accepted socket with its framing state and timeout linkage.
// Conns live in a fixed arena; the reader and writer buffers are allocated
// once per slot and reused across connections.
//
// Ownership: all fields except the reader/writer buffers belong to the
// event-loop thread. While a worker processes a dispatch (held == true) the
// worker owns the reader and writer exclusively and the loop keeps its
// hands off the connection until the retire record comes back.
type Conn struct {
	fd     int
	id     int64
	handle int
	remote string

	reader *protocol.Reader
	writer *protocol.Writer

	deadline time.Time
	prev     *Conn
	next     *Conn
	inList   bool

	open bool
	held bool
}

// ID returns the connection identifier passed to the message handler.
func (c *Conn) ID() int64 { return c.id }

// RemoteAddr returns the peer address, informational only.
func (c *Conn) RemoteAddr() string { return c.remote }

// reset prepares a recycled arena slot for a fresh socket.
func (c *Conn) reset(fd int, id int64, remote string) {
	c.fd = fd
	c.id = id
	c.remote = remote
	c.reader.Reset()
	c.writer.Reset()
	c.prev, c.next = nil, nil
	c.inList = false
	c.open = true
	c.held = false
}
