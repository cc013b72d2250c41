// File: protocol/writer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/frameloop/api"
	"github.com/momentics/frameloop/protocol"
)

// wpair returns a connected socketpair with the writer end non-blocking.
func wpair(t *testing.T) (wfd, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func readN(t *testing.T, fd, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 64<<10)
	for len(out) < n {
		m, err := unix.Read(fd, buf)
		require.NoError(t, err)
		require.NotZero(t, m)
		out = append(out, buf[:m]...)
	}
	return out
}

func TestQueueMessageSmallCompletes(t *testing.T) {
	wfd, peer := wpair(t)
	w := protocol.NewWriter(64)

	done, err := w.QueueMessage(wfd, []byte("pong"))
	require.NoError(t, err)
	require.True(t, done)
	require.False(t, w.HasPending())

	frame := readN(t, peer, protocol.HeaderSize+4)
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(frame))
	require.Equal(t, []byte("pong"), frame[protocol.HeaderSize:])
}

func TestQueueMessageTooLarge(t *testing.T) {
	wfd, _ := wpair(t)
	w := protocol.NewWriter(16)

	_, err := w.QueueMessage(wfd, make([]byte, 13))
	require.ErrorIs(t, err, api.ErrMessageTooLarge)
	require.False(t, w.HasPending())

	// Exactly at capacity is fine.
	done, err := w.QueueMessage(wfd, make([]byte, 12))
	require.NoError(t, err)
	require.True(t, done)
}

// TestDrainPartialWrites forces the kernel send buffer to fill so the frame
// drains across several write-readiness rounds.
func TestDrainPartialWrites(t *testing.T) {
	wfd, peer := wpair(t)
	require.NoError(t, unix.SetsockoptInt(wfd, unix.SOL_SOCKET, unix.SO_SNDBUF, 8<<10))

	const payloadLen = 1 << 20
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	w := protocol.NewWriter(payloadLen + protocol.HeaderSize)

	done, err := w.QueueMessage(wfd, payload)
	require.NoError(t, err)
	require.False(t, done, "1 MiB cannot fit an 8 KiB send buffer in one write")
	require.True(t, w.HasPending())

	// A second message while one drains is caller misuse.
	_, err = w.QueueMessage(wfd, []byte("x"))
	require.ErrorIs(t, err, api.ErrPendingMessage)

	received := make([]byte, 0, payloadLen+protocol.HeaderSize)
	buf := make([]byte, 64<<10)
	for !done {
		n, rerr := unix.Read(peer, buf)
		require.NoError(t, rerr)
		received = append(received, buf[:n]...)
		done, err = w.Drain(wfd)
		require.NoError(t, err)
	}
	require.False(t, w.HasPending())
	for len(received) < payloadLen+protocol.HeaderSize {
		n, rerr := unix.Read(peer, buf)
		require.NoError(t, rerr)
		received = append(received, buf[:n]...)
	}

	require.Equal(t, uint32(payloadLen), binary.LittleEndian.Uint32(received))
	require.Equal(t, payload, received[protocol.HeaderSize:])
}

func TestWriterReset(t *testing.T) {
	wfd, _ := wpair(t)
	require.NoError(t, unix.SetsockoptInt(wfd, unix.SOL_SOCKET, unix.SO_SNDBUF, 8<<10))

	w := protocol.NewWriter(1 << 20)
	done, err := w.QueueMessage(wfd, make([]byte, 512<<10))
	require.NoError(t, err)
	require.False(t, done)

	w.Reset()
	require.False(t, w.HasPending())
}
