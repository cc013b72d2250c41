//go:build darwin || freebsd || dragonfly

// File: server/sys_bsd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "golang.org/x/sys/unix"

// sysListenSocket creates a non-blocking, close-on-exec stream socket.
// kqueue platforms lack SOCK_NONBLOCK, so the flags are applied after
// socket(2).
func sysListenSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

// sysAccept accepts one pending connection and applies the non-blocking
// and close-on-exec flags before returning it.
func sysAccept(listenFD int) (int, unix.Sockaddr, error) {
	fd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, nil, err
	}
	unix.CloseOnExec(fd)
	return fd, sa, nil
}
