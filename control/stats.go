// File: control/stats.go
// Package control exposes runtime counters for monitoring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stats methods are nil-safe: a server constructed without stats carries a
// nil *Stats and every increment is a no-op, keeping the hot path free of
// conditionals at call sites.

package control

import "github.com/prometheus/client_golang/prometheus"

// Stats aggregates server-level counters as Prometheus collectors.
type Stats struct {
	accepted     prometheus.Counter
	acceptErrors prometheus.Counter
	active       prometheus.Gauge
	messages     prometheus.Counter
	timeouts     prometheus.Counter
	oversized    prometheus.Counter
}

// NewStats builds the collectors and registers them on reg when non-nil.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frameloop", Name: "connections_accepted_total",
			Help: "Connections accepted since start.",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frameloop", Name: "accept_errors_total",
			Help: "Transient accept failures.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frameloop", Name: "connections_active",
			Help: "Currently open connections.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frameloop", Name: "messages_total",
			Help: "Fully framed messages delivered to the handler.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frameloop", Name: "idle_timeouts_total",
			Help: "Connections evicted by the idle deadline.",
		}),
		oversized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frameloop", Name: "oversized_frames_total",
			Help: "Connections dropped for declaring a frame larger than the read buffer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.accepted, s.acceptErrors, s.active, s.messages, s.timeouts, s.oversized)
	}
	return s
}

// ConnAccepted records one accepted connection.
func (s *Stats) ConnAccepted() {
	if s == nil {
		return
	}
	s.accepted.Inc()
	s.active.Inc()
}

// ConnClosed records one closed connection.
func (s *Stats) ConnClosed() {
	if s == nil {
		return
	}
	s.active.Dec()
}

// AcceptError records one transient accept failure.
func (s *Stats) AcceptError() {
	if s == nil {
		return
	}
	s.acceptErrors.Inc()
}

// Message records one delivered message.
func (s *Stats) Message() {
	if s == nil {
		return
	}
	s.messages.Inc()
}

// IdleTimeout records one deadline eviction.
func (s *Stats) IdleTimeout() {
	if s == nil {
		return
	}
	s.timeouts.Inc()
}

// OversizedFrame records one buffer-capacity rejection.
func (s *Stats) OversizedFrame() {
	if s == nil {
		return
	}
	s.oversized.Inc()
}
