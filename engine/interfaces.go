// Package engine implements the server-side per-connection WebSocket
// protocol engine: frame validation, message reassembly, heartbeat
// liveness, and the closing handshake. It consumes already-decoded
// frame.Frame values from an upstream codec and drives three
// collaborators — Service, Channel, and IdleDetector — that this
// package treats as externally supplied, per spec.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package engine

import (
	"time"

	"github.com/corvidio/wsconn/closecode"
)

// Service is the application dispatch layer. All four methods are
// invoked on the Connection's own serial execution context (see
// taskQueue), so a Service implementation never observes two calls
// for the same Connection running concurrently, and never observes a
// Received* call after Disconnected. The Connection does not block
// while dispatching these calls (spec.md §5): a Service method is
// free to call Send, SendText, Ping, Close, or Drop back on the same
// Connection — the task queue detects the reentrant call and runs it
// inline rather than deadlocking the worker against itself.
type Service interface {
	// Connected fires once, when the connection attaches to its channel.
	Connected(conn *Connection)

	// Disconnected fires at most once per connection, per invariant I3.
	Disconnected(conn *Connection, reason closecode.CloseReason)

	// ReceivedText fires once per complete text message, after UTF-8
	// validation has already succeeded.
	ReceivedText(conn *Connection, text string)

	// ReceivedBinary fires once per complete binary message.
	ReceivedBinary(conn *Connection, data []byte)
}

// Channel is the transport abstraction a Connection is attached to.
// Implementations are expected to serialize WriteAndFlush calls with
// whatever reads frames off the wire, i.e. to BE the execution context
// this package's exported methods marshal work onto.
type Channel interface {
	// Writable reports whether outbound frames may currently be sent.
	Writable() bool

	// Active reports whether the channel is still attached; once
	// false, no further writes will succeed.
	Active() bool

	// WriteAndFlush serializes f and sends it immediately.
	WriteAndFlush(f *FrameOut) error

	// Close tears down the channel. mode distinguishes a graceful
	// close (stop reading once the peer's close arrives) from an
	// immediate shutdown of the write side after the current write
	// completes.
	Close(mode CloseMode) error
}

// CloseMode selects how Channel.Close tears down the transport.
type CloseMode int

const (
	// CloseGraceful leaves the read side open so a peer's close frame
	// can still be observed; used by the soft Connection.Close path.
	CloseGraceful CloseMode = iota

	// CloseImmediate shuts down both directions; used by Connection.Drop
	// and by hard closes the engine originates itself (protocol
	// violations, missed heartbeats).
	CloseImmediate
)

// FrameOut is the outbound counterpart callers hand to Channel. It
// carries only what a server-origin frame ever needs: masking is
// never set, per invariant I5.
type FrameOut struct {
	Fin     bool
	Opcode  byte
	Payload []byte
}

// IdleDetector notifies a Connection when no I/O has occurred on its
// channel for the configured interval. Implementations reset their
// timer on every call to Touch.
type IdleDetector interface {
	// Start begins emitting onIdle once per interval until Stop is
	// called. Safe to call at most once per detector instance.
	Start(interval time.Duration, onIdle func())

	// Touch resets the idle timer; called by the engine whenever I/O
	// occurs in either direction.
	Touch()

	// Stop halts the detector. Safe to call multiple times.
	Stop()
}
