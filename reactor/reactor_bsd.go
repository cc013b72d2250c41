//go:build darwin || freebsd || dragonfly

// File: reactor/reactor_bsd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// kqueue-backed Loop. The cross-thread wake primitive is an EVFILT_USER
// registration triggered with NOTE_TRIGGER; EV_CLEAR coalesces concurrent
// Wake calls into one delivery.

package reactor

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// wakeIdent is the EVFILT_USER identifier reserved for Wake.
const wakeIdent = 0

// Loop is the kqueue readiness backend.
type Loop struct {
	kqfd     int
	listenfd atomic.Int64
	ready    []unix.Kevent_t
}

// Open creates a Loop able to return up to maxEvents events per Wait.
func Open(maxEvents int) (*Loop, error) {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, wakeIdent, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kqfd, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(kqfd)
		return nil, fmt.Errorf("kevent add user filter: %w", err)
	}
	l := &Loop{kqfd: kqfd, ready: make([]unix.Kevent_t, maxEvents)}
	l.listenfd.Store(-1)
	return l, nil
}

func (l *Loop) change(fd int, filter int, flags int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filter, flags)
	if _, err := unix.Kevent(l.kqfd, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return fmt.Errorf("kevent fd=%d: %w", fd, err)
	}
	return nil
}

// changeQuiet applies a filter delete, tolerating a filter that was never
// installed or already consumed by EV_ONESHOT.
func (l *Loop) changeQuiet(fd int, filter int) {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filter, unix.EV_DELETE)
	_, _ = unix.Kevent(l.kqfd, []unix.Kevent_t{ev}, nil, nil)
}

// AddListener registers the listening socket with one-shot read interest.
func (l *Loop) AddListener(fd int) error {
	if err := l.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT); err != nil {
		return err
	}
	l.listenfd.Store(int64(fd))
	return nil
}

// RearmListener re-installs the one-shot listener filter. kqueue removes a
// one-shot filter on delivery, so re-arming is a plain EV_ADD.
func (l *Loop) RearmListener(fd int) error {
	return l.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT)
}

// RemoveListener drops the listening socket from the interest set.
func (l *Loop) RemoveListener(fd int) error {
	l.listenfd.Store(-1)
	l.changeQuiet(fd, unix.EVFILT_READ)
	return nil
}

// Register adds a connection with level-triggered read interest.
func (l *Loop) Register(fd int) error {
	return l.change(fd, unix.EVFILT_READ, unix.EV_ADD)
}

// RegisterOneShot adds a connection with one-shot read interest, for the
// worker re-arm dispatch pattern.
func (l *Loop) RegisterOneShot(fd int) error {
	return l.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT)
}

// RearmRead re-installs one-shot read interest after a worker finished
// processing. Safe from any goroutine.
func (l *Loop) RearmRead(fd int) error {
	return l.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT)
}

// SetReadMode switches a connection back to level-triggered read interest.
func (l *Loop) SetReadMode(fd int) error {
	l.changeQuiet(fd, unix.EVFILT_WRITE)
	return l.change(fd, unix.EVFILT_READ, unix.EV_ADD)
}

// SetWriteMode switches a connection to one-shot write interest while a
// frame drains.
func (l *Loop) SetWriteMode(fd int) error {
	l.changeQuiet(fd, unix.EVFILT_READ)
	return l.change(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ONESHOT)
}

// Deregister removes a connection from the interest set.
func (l *Loop) Deregister(fd int) error {
	l.changeQuiet(fd, unix.EVFILT_READ)
	l.changeQuiet(fd, unix.EVFILT_WRITE)
	return nil
}

// Wake unblocks a concurrent or future Wait.
func (l *Loop) Wake() error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, wakeIdent, unix.EVFILT_USER, 0)
	ev.Fflags = unix.NOTE_TRIGGER
	if _, err := unix.Kevent(l.kqfd, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return fmt.Errorf("kevent trigger: %w", err)
	}
	return nil
}

// Wait blocks up to timeoutMs (BlockIndefinitely for no deadline) and fills
// events with readiness reports. n == 0 means the timeout elapsed. EINTR is
// absorbed and reported as a timeout so the caller re-evaluates deadlines.
func (l *Loop) Wait(events []Event, timeoutMs int) (int, error) {
	batch := l.ready
	if len(events) < len(batch) {
		batch = batch[:len(events)]
	}
	var tsPtr *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * int64(1e6))
		tsPtr = &ts
	}
	n, err := unix.Kevent(l.kqfd, nil, batch, tsPtr)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("kevent wait: %w", err)
	}
	listenfd := int(l.listenfd.Load())
	out := 0
	for i := 0; i < n; i++ {
		ev := batch[i]
		fd := int(ev.Ident)
		switch {
		case ev.Filter == unix.EVFILT_USER:
			events[out] = Event{FD: fd, Kind: KindWake}
		case fd == listenfd:
			events[out] = Event{FD: fd, Kind: KindAccept}
		case ev.Filter == unix.EVFILT_WRITE:
			events[out] = Event{FD: fd, Kind: KindWrite}
		case ev.Filter == unix.EVFILT_READ:
			// EV_EOF still reports readable; the read path drains any
			// buffered bytes and then observes the zero-length read.
			events[out] = Event{FD: fd, Kind: KindRead}
		default:
			events[out] = Event{FD: fd, Kind: KindHangup}
		}
		out++
	}
	return out, nil
}

// Close releases the kqueue descriptor.
func (l *Loop) Close() error {
	if err := unix.Close(l.kqfd); err != nil {
		return fmt.Errorf("close kqueue: %w", err)
	}
	return nil
}
