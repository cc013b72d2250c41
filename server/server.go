// File: server/server.go
// Package server drives the accept/event loop for the frameloop evented
// TCP server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One goroutine owns the reactor Loop, the connection arena, the fd table,
// and the timeout list. Worker goroutines (when configured) own a
// connection's framing buffers only between dispatch and the retire record
// that re-arms its one-shot read interest, so a connection's messages are
// processed in arrival order with at most one dispatch in flight.

package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/frameloop/api"
	"github.com/momentics/frameloop/concurrency"
	"github.com/momentics/frameloop/control"
	"github.com/momentics/frameloop/pool"
	"github.com/momentics/frameloop/protocol"
	"github.com/momentics/frameloop/reactor"
)

// Server accepts framed TCP connections and delivers complete messages to
// one MessageHandler.
type Server struct {
	cfg      Config
	log      *zap.Logger
	stats    *control.Stats
	handler  api.MessageHandler
	observer api.ConnObserver

	loop     *reactor.Loop
	listenFD int

	arena    *pool.Arena[Conn]
	byFD     map[int]*Conn
	timeouts timeoutList

	idMu sync.RWMutex
	byID map[int64]*Conn

	exec    *concurrency.Executor
	retire  retireQueue
	scratch []retireOp

	nextID        int64
	listenerArmed bool
	serving       atomic.Bool
	closing       atomic.Bool
	done          chan struct{}
	shutdownOnce  sync.Once
}

// New builds a Server listening on cfg.Addr. Startup errors (loop
// creation, bind, listen) are the only failures fatal to the caller;
// everything after Serve starts is per-connection.
func New(cfg Config, handler api.MessageHandler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("server: nil handler")
	}
	s := &Server{
		cfg:     cfg,
		log:     zap.NewNop(),
		handler: handler,
		byFD:    make(map[int]*Conn, cfg.MaxConns),
		byID:    make(map[int64]*Conn, cfg.MaxConns),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	loop, err := reactor.Open(s.cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	listenFD, err := NewListenFD(s.cfg.Addr, s.cfg.Backlog, s.cfg.ReusePort)
	if err != nil {
		loop.Close()
		return nil, err
	}
	if err := loop.AddListener(listenFD); err != nil {
		unix.Close(listenFD)
		loop.Close()
		return nil, err
	}

	s.loop = loop
	s.listenFD = listenFD
	s.listenerArmed = true
	s.arena = pool.NewArena[Conn](s.cfg.MaxConns, func(_ int, c *Conn) {
		c.reader = protocol.NewReader(s.cfg.ReadBufferSize)
		c.writer = protocol.NewWriter(s.cfg.WriteBufferSize)
	})
	if s.cfg.Workers > 0 {
		queueCap := s.cfg.WorkerQueue
		if queueCap <= 0 {
			queueCap = s.cfg.MaxConns
		}
		s.exec = concurrency.NewExecutor(s.cfg.Workers, queueCap, s.log)
	}
	s.scratch = make([]retireOp, 0, s.cfg.MaxEvents)
	return s, nil
}

// Port reports the bound listen port, useful with Addr ":0".
func (s *Server) Port() (int, error) { return ListenPort(s.listenFD) }

// workerMode reports whether dispatch runs on the executor.
func (s *Server) workerMode() bool { return s.exec != nil }

// Serve runs the accept/event loop on the calling goroutine until Shutdown.
// It is the only goroutine permitted to call Wait. Returns
// api.ErrServerClosed after a clean shutdown.
func (s *Server) Serve() error {
	s.serving.Store(true)
	defer close(s.done)
	events := make([]reactor.Event, s.cfg.MaxEvents)
	next := reactor.BlockIndefinitely
	for {
		n, err := s.loop.Wait(events, next)
		if err != nil {
			if s.closing.Load() {
				return api.ErrServerClosed
			}
			return fmt.Errorf("server: wait: %w", err)
		}
		for i := 0; i < n; i++ {
			s.dispatch(events[i])
		}
		s.drainRetire()
		// Re-check the shutdown flag after every wakeup; spurious wakes
		// are possible and must not be treated as fatal.
		if s.closing.Load() {
			return api.ErrServerClosed
		}
		next = s.enforceTimeouts()
	}
}

func (s *Server) dispatch(ev reactor.Event) {
	switch ev.Kind {
	case reactor.KindAccept:
		s.acceptBurst()
	case reactor.KindWake:
		// Retire records and the shutdown flag are handled by Serve
		// after the batch.
	case reactor.KindRead:
		c := s.byFD[ev.FD]
		if c == nil || !c.open || c.held {
			return
		}
		if s.workerMode() {
			s.dispatchToWorker(c)
		} else {
			s.readInline(c)
		}
	case reactor.KindWrite:
		c := s.byFD[ev.FD]
		if c == nil || !c.open || c.held {
			return
		}
		s.continueWrite(c)
	case reactor.KindHangup:
		c := s.byFD[ev.FD]
		if c == nil || !c.open || c.held {
			return
		}
		s.closeConn(c, api.ErrClosed)
	}
}

// acceptBurst accepts until the kernel queue drains or the arena fills.
// EAGAIN ends the burst normally: with shared listeners another acceptor
// may have won the race, which is expected, not anomalous.
func (s *Server) acceptBurst() {
	if s.closing.Load() {
		return
	}
	for {
		if s.arena.Len() >= s.arena.Cap() {
			// Table full: park the listener. It is re-armed when a slot
			// frees in closeConn.
			s.listenerArmed = false
			s.log.Warn("connection table full, pausing accepts",
				zap.Int("max_conns", s.arena.Cap()))
			return
		}
		fd, sa, err := sysAccept(s.listenFD)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				s.rearmListener()
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			default:
				s.stats.AcceptError()
				s.log.Warn("accept failed", zap.Error(err))
				s.rearmListener()
				return
			}
		}
		s.setupConn(fd, sa)
	}
}

func (s *Server) rearmListener() {
	if err := s.loop.RearmListener(s.listenFD); err != nil {
		s.log.Error("rearm listener", zap.Error(err))
		return
	}
	s.listenerArmed = true
}

func (s *Server) setupConn(fd int, sa unix.Sockaddr) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	handle, c, ok := s.arena.Get()
	if !ok {
		// Raced with the capacity check above; shed the connection.
		unix.Close(fd)
		return
	}
	s.nextID++
	c.handle = handle
	c.reset(fd, s.nextID, formatSockaddr(sa))
	c.deadline = time.Now().Add(s.cfg.ReadTimeout)

	var err error
	if s.workerMode() {
		err = s.loop.RegisterOneShot(fd)
	} else {
		err = s.loop.Register(fd)
	}
	if err != nil {
		s.log.Warn("register connection", zap.String("remote", c.remote), zap.Error(err))
		c.open = false
		s.arena.Put(handle)
		unix.Close(fd)
		return
	}

	s.byFD[fd] = c
	s.idMu.Lock()
	s.byID[c.id] = c
	s.idMu.Unlock()
	s.timeouts.pushBack(c)
	s.stats.ConnAccepted()
	if s.observer != nil {
		s.observer.OnOpen(c.id, c.remote)
	}
	s.log.Debug("accepted", zap.Int64("conn", c.id), zap.String("remote", c.remote))
}

// readInline drains complete frames on the loop thread (Workers == 0).
func (s *Server) readInline(c *Conn) {
	for {
		msg, err := c.reader.ReadMessage(c.fd)
		if err == nil {
			s.stats.Message()
			s.touch(c)
			if herr := s.handler.OnMessage(c.id, msg); herr != nil {
				s.closeConn(c, herr)
				return
			}
			continue
		}
		switch {
		case api.IsWouldBlock(err):
			return
		case err == api.ErrBufferTooSmall:
			s.stats.OversizedFrame()
			s.log.Warn("frame exceeds read buffer",
				zap.Int64("conn", c.id), zap.Int("capacity", c.reader.Capacity()))
			s.closeConn(c, err)
			return
		default:
			s.closeConn(c, err)
			return
		}
	}
}

// dispatchToWorker hands the connection to the executor. The one-shot read
// registration is already disarmed, so no second dispatch can occur until
// the retire record re-arms it.
func (s *Server) dispatchToWorker(c *Conn) {
	c.held = true
	if err := s.exec.Submit(func() { s.processOnWorker(c) }); err != nil {
		c.held = false
		s.closeConn(c, err)
	}
}

// processOnWorker runs on an executor goroutine. It owns the connection's
// reader and writer until the retire record is consumed; it must not touch
// the timeout list, the arena, or the fd table.
func (s *Server) processOnWorker(c *Conn) {
	msgs := 0
	var failure error
	for {
		msg, err := c.reader.ReadMessage(c.fd)
		if err == nil {
			msgs++
			s.stats.Message()
			if herr := s.handler.OnMessage(c.id, msg); herr != nil {
				failure = herr
				break
			}
			continue
		}
		if api.IsWouldBlock(err) {
			break
		}
		if err == api.ErrBufferTooSmall {
			s.stats.OversizedFrame()
		}
		failure = err
		break
	}
	s.retire.push(retireOp{c: c, msgs: msgs, err: failure})
	if werr := s.loop.Wake(); werr != nil {
		s.log.Error("wake after dispatch", zap.Error(werr))
	}
}

// drainRetire consumes worker completion records on the loop thread.
func (s *Server) drainRetire() {
	s.scratch = s.retire.take(s.scratch)
	for i := range s.scratch {
		op := s.scratch[i]
		c := op.c
		c.held = false
		if !c.open {
			continue
		}
		if op.err != nil {
			s.closeConn(c, op.err)
			continue
		}
		if op.msgs > 0 && c.inList {
			s.touch(c)
		}
		if c.writer.HasPending() {
			// The worker queued a reply it could not fully flush.
			done, err := c.writer.Drain(c.fd)
			if err != nil {
				s.closeConn(c, err)
				continue
			}
			if !done {
				if err := s.loop.SetWriteMode(c.fd); err != nil {
					s.closeConn(c, err)
				}
				continue
			}
		}
		if err := s.loop.RearmRead(c.fd); err != nil {
			s.closeConn(c, err)
		}
	}
}

// continueWrite finishes a partially written frame after a write-readiness
// report, then restores read interest.
func (s *Server) continueWrite(c *Conn) {
	done, err := c.writer.Drain(c.fd)
	if err != nil {
		s.closeConn(c, err)
		return
	}
	if !done {
		// Send buffer filled again; write interest is one-shot, re-arm.
		if err := s.loop.SetWriteMode(c.fd); err != nil {
			s.closeConn(c, err)
		}
		return
	}
	var rerr error
	if s.workerMode() {
		rerr = s.loop.RearmRead(c.fd)
	} else {
		rerr = s.loop.SetReadMode(c.fd)
	}
	if rerr != nil {
		s.closeConn(c, rerr)
	}
}

// Send queues one framed reply on the connection. It may only be called
// from inside OnMessage for the same connection: that call runs on the
// thread currently holding the connection's buffers. At most one reply may
// be outstanding; a second Send before the first drains returns
// api.ErrPendingMessage.
func (s *Server) Send(connID int64, payload []byte) error {
	s.idMu.RLock()
	c := s.byID[connID]
	s.idMu.RUnlock()
	if c == nil || !c.open {
		return api.ErrClosed
	}
	done, err := c.writer.QueueMessage(c.fd, payload)
	if err != nil {
		return err
	}
	if !done && !s.workerMode() {
		// Inline mode runs on the loop thread; switch interest directly.
		// Worker mode defers the switch to the retire record.
		if err := s.loop.SetWriteMode(c.fd); err != nil {
			return err
		}
	}
	return nil
}

// touch refreshes the idle deadline and moves the connection to the tail,
// keeping the head as next-to-expire.
func (s *Server) touch(c *Conn) {
	c.deadline = time.Now().Add(s.cfg.ReadTimeout)
	s.timeouts.moveToBack(c)
}

// enforceTimeouts evicts idle connections from the head of the list and
// returns the milliseconds until the next deadline, or BlockIndefinitely
// when nothing is linked. Eviction is a read-side shutdown: the readiness
// report that follows observes the closure through the normal read path
// instead of hanging on a dead peer.
func (s *Server) enforceTimeouts() int {
	now := time.Now()
	for {
		c := s.timeouts.front()
		if c == nil {
			return reactor.BlockIndefinitely
		}
		if c.deadline.After(now) {
			ms := int(c.deadline.Sub(now) / time.Millisecond)
			return ms + 1
		}
		s.timeouts.remove(c)
		s.stats.IdleTimeout()
		s.log.Debug("idle timeout", zap.Int64("conn", c.id), zap.String("remote", c.remote))
		if !c.held && c.writer.HasPending() {
			// Parked in write-only interest: a read shutdown would never
			// surface as a readiness event, so tear down directly. Held
			// connections keep the shutdown path; the worker owns their
			// writer and will observe the closed read side.
			s.closeConn(c, api.ErrClosed)
			continue
		}
		_ = unix.Shutdown(c.fd, unix.SHUT_RD)
	}
}

// closeConn tears a connection down exactly once: unlink, deregister,
// close, release the slot. A failure here affects only this connection.
func (s *Server) closeConn(c *Conn, reason error) {
	if !c.open {
		return
	}
	c.open = false
	s.timeouts.remove(c)
	if err := s.loop.Deregister(c.fd); err != nil {
		s.log.Debug("deregister", zap.Int64("conn", c.id), zap.Error(err))
	}
	unix.Close(c.fd)
	delete(s.byFD, c.fd)
	s.idMu.Lock()
	delete(s.byID, c.id)
	s.idMu.Unlock()
	s.arena.Put(c.handle)
	s.stats.ConnClosed()
	if s.observer != nil {
		s.observer.OnClose(c.id)
	}
	if reason != nil && reason != api.ErrClosed && !api.IsWouldBlock(reason) {
		s.log.Debug("connection closed", zap.Int64("conn", c.id), zap.Error(reason))
	}
	if !s.listenerArmed && !s.closing.Load() {
		s.rearmListener()
	}
}

// Shutdown stops the loop, waits for workers, and releases every socket and
// kernel object. Safe to call more than once, and safe on a server whose
// Serve was never started; it must not race the start of Serve itself.
// Later calls return nil.
func (s *Server) Shutdown() error {
	var errs error
	s.shutdownOnce.Do(func() {
		s.closing.Store(true)
		if err := s.loop.Wake(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if s.serving.Load() {
			<-s.done
		}

		if s.exec != nil {
			s.exec.Close()
		}
		// Workers are gone; consume their final retire records so held
		// flags clear before teardown.
		s.drainRetire()

		for _, c := range s.byFD {
			s.closeConn(c, api.ErrServerClosed)
		}
		if err := s.loop.RemoveListener(s.listenFD); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := unix.Close(s.listenFD); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close listener: %w", err))
		}
		if err := s.loop.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
	})
	return errs
}
