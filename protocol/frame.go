// File: protocol/frame.go
// Package protocol implements length-prefixed framing over a byte stream.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each frame is a 4-byte little-endian u32 payload length followed by
// exactly that many payload bytes. The format has no inherent maximum; a
// frame is bounded only by the per-connection buffer capacity.

package protocol

import "encoding/binary"

// HeaderSize is the fixed length-prefix size in bytes.
const HeaderSize = 4

// AppendFrame appends the framed payload to dst and returns the extended
// slice.
func AppendFrame(dst []byte, payload []byte) []byte {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// EncodeFrame returns a freshly allocated framed payload. Hot paths use
// AppendFrame or the Writer's in-place encoding instead.
func EncodeFrame(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), payload)
}
