// File: api/handler.go
// Package api defines the callback surface exposed to application code.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// MessageHandler receives exactly one call per fully framed message.
// The payload slice aliases the connection's read buffer and is valid only
// for the duration of the call; implementations that need to retain it must
// copy. Returning a non-nil error closes the connection.
type MessageHandler interface {
	OnMessage(connID int64, payload []byte) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(connID int64, payload []byte) error

// OnMessage implements MessageHandler.
func (f MessageHandlerFunc) OnMessage(connID int64, payload []byte) error {
	return f(connID, payload)
}

// ConnObserver receives connection lifecycle notifications. Both hooks run
// on the event-loop thread and must not block.
type ConnObserver interface {
	OnOpen(connID int64, remoteAddr string)
	OnClose(connID int64)
}
