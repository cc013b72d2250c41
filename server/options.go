// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/frameloop/api"
	"github.com/momentics/frameloop/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStats attaches runtime counters.
func WithStats(st *control.Stats) Option {
	return func(s *Server) {
		s.stats = st
	}
}

// WithObserver attaches connection lifecycle hooks.
func WithObserver(obs api.ConnObserver) Option {
	return func(s *Server) {
		s.observer = obs
	}
}

// WithWorkers overrides Config.Workers.
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.cfg.Workers = n
	}
}

// WithMaxConns overrides Config.MaxConns.
func WithMaxConns(n int) Option {
	return func(s *Server) {
		s.cfg.MaxConns = n
	}
}

// WithReadBufferSize overrides Config.ReadBufferSize.
func WithReadBufferSize(n int) Option {
	return func(s *Server) {
		s.cfg.ReadBufferSize = n
	}
}

// WithWriteBufferSize overrides Config.WriteBufferSize.
func WithWriteBufferSize(n int) Option {
	return func(s *Server) {
		s.cfg.WriteBufferSize = n
	}
}

// WithReusePort overrides Config.ReusePort.
func WithReusePort(on bool) Option {
	return func(s *Server) {
		s.cfg.ReusePort = on
	}
}

// WithReadTimeout overrides Config.ReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.ReadTimeout = d
	}
}
