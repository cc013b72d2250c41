// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"time"

	"github.com/momentics/frameloop/protocol"
)

// Config carries server sizing and tuning knobs.
type Config struct {
	// Addr is the TCP listen address, e.g. ":9000".
	Addr string

	// MaxConns bounds concurrently open connections. The connection arena
	// and all per-connection buffers are allocated for this count at
	// startup. When the arena is full the listener stays un-armed until a
	// slot frees up.
	MaxConns int

	// MaxEvents bounds one readiness batch per Wait call.
	MaxEvents int

	// ReadBufferSize is the fixed per-connection read buffer. It bounds
	// the largest receivable frame (payload + 4-byte prefix).
	ReadBufferSize int

	// WriteBufferSize is the fixed per-connection write buffer. It bounds
	// the largest sendable frame.
	WriteBufferSize int

	// ReadTimeout is the shared idle deadline. A connection that delivers
	// no message for this long is evicted. One fixed duration for all
	// connections keeps idle eviction O(1).
	ReadTimeout time.Duration

	// Workers selects the dispatch mode: 0 runs handlers inline on the
	// event-loop thread; > 0 runs them on that many worker goroutines with
	// one-shot read interest re-armed after each dispatch.
	Workers int

	// WorkerQueue bounds the executor FIFO; 0 defaults to MaxConns, which
	// can never fill because at most one dispatch per connection is in
	// flight.
	WorkerQueue int

	// Backlog is the listen(2) backlog.
	Backlog int

	// ReusePort additionally sets the load-spreading reuse-port option so
	// several server processes can share one port.
	ReusePort bool
}

// DefaultConfig returns production-leaning defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9000",
		MaxConns:        1024,
		MaxEvents:       128,
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 64 << 10,
		ReadTimeout:     60 * time.Second,
		Workers:         0,
		Backlog:         1024,
	}
}

// Validate rejects configurations the arena and framing layers cannot
// honor.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: empty listen address")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("config: MaxConns must be positive, got %d", c.MaxConns)
	}
	if c.ReadBufferSize <= protocol.HeaderSize {
		return fmt.Errorf("config: ReadBufferSize must exceed the %d-byte header, got %d",
			protocol.HeaderSize, c.ReadBufferSize)
	}
	if c.WriteBufferSize <= protocol.HeaderSize {
		return fmt.Errorf("config: WriteBufferSize must exceed the %d-byte header, got %d",
			protocol.HeaderSize, c.WriteBufferSize)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("config: ReadTimeout must be positive, got %v", c.ReadTimeout)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: Workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 128
	}
	if c.Backlog <= 0 {
		c.Backlog = 1024
	}
	return nil
}
