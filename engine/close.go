package engine

import (
	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

// writableChannel returns the attached channel if it is active and
// writable, or (nil, false) otherwise. Outbound operations suppress
// their frame entirely in the false case, per spec.md §4.2.
func (c *Connection) writableChannel() (Channel, bool) {
	ch := c.currentChannel()
	if ch == nil || !ch.Active() || !ch.Writable() {
		return nil, false
	}
	return ch, true
}

// hardClose drop-closes the connection for an engine-detected
// violation (RSV, masking, opcode, fragmentation, payload or transport
// error). It is a no-op if a close is already in flight, per
// invariant I2.
func (c *Connection) hardClose(reason closecode.CloseReason) {
	_ = c.closeLocalSync(reason, true)
}

// handleTransportError implements spec.md §4.5 for write failures: the
// channel is assumed broken, so the engine does not attempt to send a
// second close frame over it, it closes the channel directly and
// reports the translated reason.
func (c *Connection) handleTransportError(err error) {
	reason := translateTransportError(err)
	c.awaitClose = true
	if ch := c.currentChannel(); ch != nil {
		ch.Close(CloseImmediate)
	}
	c.markDisconnected(reason)
}

// closeLocalSync implements the locally-initiated half of spec.md §4.3.
// hard selects Drop's semantics (close the channel once the close
// frame write completes, and report the reason immediately rather than
// waiting for the peer); soft selects Close's semantics (send the
// close frame and keep reading, deferring Disconnected to whichever
// close event concludes the handshake).
func (c *Connection) closeLocalSync(reason closecode.CloseReason, hard bool) error {
	ch := c.currentChannel()
	if ch == nil || !ch.Active() {
		return ErrNotAttached
	}
	if c.awaitClose {
		return ErrAwaitingClose
	}

	if !ch.Writable() {
		mode := CloseGraceful
		if hard {
			mode = CloseImmediate
		}
		ch.Close(mode)
		c.awaitClose = true
		if hard {
			c.markDisconnected(reason)
		}
		return nil
	}

	c.idle.Touch()
	out := &FrameOut{Fin: true, Opcode: byte(frame.OpcodeClose), Payload: closecode.EncodePayload(reason.Code, reason.Description)}
	err := ch.WriteAndFlush(out)
	c.awaitClose = true
	if err != nil {
		c.handleTransportError(err)
		return err
	}
	c.metrics.observeFrameOut(out.Opcode)

	if hard {
		ch.Close(CloseImmediate)
		c.markDisconnected(reason)
	}
	return nil
}
