//go:build linux

// File: server/sys_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "golang.org/x/sys/unix"

// sysListenSocket creates a non-blocking, close-on-exec stream socket.
func sysListenSocket(family int) (int, error) {
	return unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

// sysAccept accepts one pending connection with the non-blocking and
// close-on-exec flags applied atomically by accept4(2).
func sysAccept(listenFD int) (int, unix.Sockaddr, error) {
	return unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}
