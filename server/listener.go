// File: server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening-socket creation lives in this file as the black-box boundary:
// the event loop consumes a ready, non-blocking listener fd and never
// inspects how it was configured.

package server

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// NewListenFD creates a non-blocking TCP listening socket bound to addr
// with SO_REUSEADDR set. reusePort additionally sets the platform's
// load-spreading reuse-port option so multiple acceptor processes can share
// the port.
func NewListenFD(addr string, backlog int, reusePort bool) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, fmt.Errorf("resolve %q: %w", addr, err)
	}
	family := unix.AF_INET
	if tcpAddr.IP.To4() == nil && tcpAddr.IP.To16() != nil {
		family = unix.AF_INET6
	}

	fd, err := sysListenSocket(family)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("setsockopt SO_REUSEPORT: %w", err)
		}
	}

	sa, err := sockaddrFromTCPAddr(family, tcpAddr)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %q: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen %q: %w", addr, err)
	}
	return fd, nil
}

// ListenPort reports the port a listener fd is bound to, useful when addr
// requested port 0.
func ListenPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	default:
		return 0, fmt.Errorf("getsockname: unexpected family %T", sa)
	}
}

func sockaddrFromTCPAddr(family int, a *net.TCPAddr) (unix.Sockaddr, error) {
	switch family {
	case unix.AF_INET:
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := a.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, nil
	case unix.AF_INET6:
		sa := &unix.SockaddrInet6{Port: a.Port}
		if ip16 := a.IP.To16(); ip16 != nil {
			copy(sa.Addr[:], ip16)
		}
		return sa, nil
	default:
		return nil, fmt.Errorf("unsupported address family %d", family)
	}
}

// formatSockaddr renders a peer address for logs and the ConnObserver.
func formatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	default:
		return "unknown"
	}
}
