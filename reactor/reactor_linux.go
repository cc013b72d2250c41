//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// epoll-backed Loop. The cross-thread wake primitive is an eventfd
// registered edge-triggered, so one kernel object serves any number of
// concurrent Wake callers.

package reactor

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Loop is the epoll readiness backend.
type Loop struct {
	epfd     int
	wakefd   int
	listenfd atomic.Int64
	ready    []unix.EpollEvent
}

// Open creates a Loop able to return up to maxEvents events per Wait.
func Open(maxEvents int) (*Loop, error) {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	l := &Loop{epfd: epfd, wakefd: wakefd, ready: make([]unix.EpollEvent, maxEvents)}
	l.listenfd.Store(-1)
	return l, nil
}

func (l *Loop) ctl(op int, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl fd=%d: %w", fd, err)
	}
	return nil
}

// AddListener registers the listening socket with one-shot read interest.
// One-shot keeps acceptor threads sharing the port from duplicate wakeups
// and lets the acceptor hold off re-arming while the connection table is
// full.
func (l *Loop) AddListener(fd int) error {
	if err := l.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLONESHOT); err != nil {
		return err
	}
	l.listenfd.Store(int64(fd))
	return nil
}

// RearmListener re-enables the one-shot listener registration.
func (l *Loop) RearmListener(fd int) error {
	return l.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLONESHOT)
}

// RemoveListener drops the listening socket from the interest set.
func (l *Loop) RemoveListener(fd int) error {
	l.listenfd.Store(-1)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del listener fd=%d: %w", fd, err)
	}
	return nil
}

// Register adds a connection with level-triggered read interest.
func (l *Loop) Register(fd int) error {
	return l.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLRDHUP)
}

// RegisterOneShot adds a connection with one-shot read interest, for the
// worker re-arm dispatch pattern.
func (l *Loop) RegisterOneShot(fd int) error {
	return l.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLONESHOT)
}

// RearmRead re-enables one-shot read interest after a worker finished
// processing. Safe from any goroutine.
func (l *Loop) RearmRead(fd int) error {
	return l.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLONESHOT)
}

// SetReadMode switches a connection back to level-triggered read interest.
func (l *Loop) SetReadMode(fd int) error {
	return l.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLRDHUP)
}

// SetWriteMode switches a connection to one-shot write interest while a
// frame drains. One-shot avoids busy wakeups once the send buffer empties.
func (l *Loop) SetWriteMode(fd int) error {
	return l.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLOUT|unix.EPOLLONESHOT)
}

// Deregister removes a connection from the interest set.
func (l *Loop) Deregister(fd int) error {
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wake unblocks a concurrent or future Wait. Any number of goroutines may
// call it; coalesced wakeups deliver a single KindWake event.
func (l *Loop) Wake() error {
	var one [8]byte
	one[0] = 1
	for {
		_, err := unix.Write(l.wakefd, one[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Counter saturated: a wake is already pending.
			return nil
		}
		if err != nil {
			return fmt.Errorf("eventfd write: %w", err)
		}
		return nil
	}
}

// Wait blocks up to timeoutMs (BlockIndefinitely for no deadline) and fills
// events with readiness reports. n == 0 means the timeout elapsed. EINTR is
// absorbed and reported as a timeout so the caller re-evaluates deadlines.
func (l *Loop) Wait(events []Event, timeoutMs int) (int, error) {
	batch := l.ready
	if len(events) < len(batch) {
		batch = batch[:len(events)]
	}
	n, err := unix.EpollWait(l.epfd, batch, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	listenfd := int(l.listenfd.Load())
	out := 0
	for i := 0; i < n; i++ {
		ev := batch[i]
		fd := int(ev.Fd)
		switch {
		case fd == l.wakefd:
			var drain [8]byte
			_, _ = unix.Read(l.wakefd, drain[:])
			events[out] = Event{FD: fd, Kind: KindWake}
		case fd == listenfd:
			events[out] = Event{FD: fd, Kind: KindAccept}
		case ev.Events&unix.EPOLLOUT != 0:
			events[out] = Event{FD: fd, Kind: KindWrite}
		case ev.Events&unix.EPOLLIN != 0:
			// Readable wins over RDHUP so buffered bytes are consumed
			// before the read path observes EOF.
			events[out] = Event{FD: fd, Kind: KindRead}
		default:
			events[out] = Event{FD: fd, Kind: KindHangup}
		}
		out++
	}
	return out, nil
}

// Close releases the epoll and wake descriptors.
func (l *Loop) Close() error {
	werr := unix.Close(l.wakefd)
	eerr := unix.Close(l.epfd)
	if eerr != nil {
		return fmt.Errorf("close epoll: %w", eerr)
	}
	if werr != nil {
		return fmt.Errorf("close eventfd: %w", werr)
	}
	return nil
}
