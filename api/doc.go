// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api holds the public contracts of frameloop: the error taxonomy
// shared by the reactor, protocol, and server packages, and the callback
// interfaces application code implements.
package api
