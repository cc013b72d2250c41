// File: client/client.go
// Package client provides a blocking framed TCP client for tests and
// tooling.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client intentionally uses the stdlib blocking dialer: it exercises a
// frameloop server the way an ordinary peer does, with none of the server's
// non-blocking machinery.

package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/momentics/frameloop/protocol"
)

// Client is a framed connection to a frameloop server. Not goroutine-safe.
type Client struct {
	conn net.Conn
	hdr  [protocol.HeaderSize]byte
}

// Dial connects to addr within timeout.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %q: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Wrap adopts an established connection.
func Wrap(conn net.Conn) *Client { return &Client{conn: conn} }

// Send writes one framed payload.
func (c *Client) Send(payload []byte) error {
	frame := protocol.AppendFrame(make([]byte, 0, protocol.HeaderSize+len(payload)), payload)
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("client: send: %w", err)
	}
	return nil
}

// SendRaw writes bytes as-is, letting tests exercise split frames and
// malformed prefixes.
func (c *Client) SendRaw(raw []byte) error {
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("client: send raw: %w", err)
	}
	return nil
}

// Recv reads one complete frame, blocking up to the connection's read
// deadline if one is set.
func (c *Client) Recv() ([]byte, error) {
	if _, err := io.ReadFull(c.conn, c.hdr[:]); err != nil {
		return nil, fmt.Errorf("client: read header: %w", err)
	}
	length := binary.LittleEndian.Uint32(c.hdr[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, fmt.Errorf("client: read payload: %w", err)
	}
	return payload, nil
}

// SetDeadline bounds subsequent Send and Recv calls.
func (c *Client) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
