package engine

import (
	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

// Send enqueues a binary message, marshalled onto the connection's
// execution context per spec.md §4.2. It returns once the frame has
// been handed to the channel (or suppressed).
func (c *Connection) Send(payload []byte) error {
	return c.sendDataFrame(frame.OpcodeBinary, payload)
}

// SendText enqueues a text message.
func (c *Connection) SendText(text string) error {
	return c.sendDataFrame(frame.OpcodeText, []byte(text))
}

func (c *Connection) sendDataFrame(opcode frame.Opcode, payload []byte) error {
	return c.tasks.RunSync(func() error { return c.sendDataFrameSync(opcode, payload) })
}

func (c *Connection) sendDataFrameSync(opcode frame.Opcode, payload []byte) error {
	ch, ok := c.writableChannel()
	if !ok {
		return ErrNotAttached
	}
	if c.awaitClose {
		return ErrAwaitingClose
	}
	c.idle.Touch()
	out := &FrameOut{Fin: true, Opcode: byte(opcode), Payload: payload}
	if err := ch.WriteAndFlush(out); err != nil {
		c.handleTransportError(err)
		return err
	}
	c.metrics.observeFrameOut(out.Opcode)
	return nil
}

// Ping enqueues a ping frame with an optional application payload.
func (c *Connection) Ping(payload []byte) error {
	return c.tasks.RunSync(func() error { return c.pingSync(payload) })
}

func (c *Connection) pingSync(payload []byte) error {
	ch, ok := c.writableChannel()
	if !ok {
		return ErrNotAttached
	}
	if c.awaitClose {
		return ErrAwaitingClose
	}
	c.idle.Touch()
	out := &FrameOut{Fin: true, Opcode: byte(frame.OpcodePing), Payload: payload}
	if err := ch.WriteAndFlush(out); err != nil {
		c.handleTransportError(err)
		return err
	}
	c.metrics.observeFrameOut(out.Opcode)
	return nil
}

// Close performs a soft close: send a close frame carrying reason and
// description, then keep the connection open for the peer's closing
// handshake reply. Disconnected fires from whichever close event
// concludes the handshake, not from this call.
func (c *Connection) Close(reason closecode.Reason, description string) error {
	return c.tasks.RunSync(func() error { return c.closeLocalSync(closecode.New(reason, description), false) })
}

// Drop performs a hard close: send a close frame, then shut the
// channel down as soon as the write completes, firing Disconnected
// with reason immediately.
func (c *Connection) Drop(reason closecode.Reason, description string) error {
	return c.tasks.RunSync(func() error { return c.closeLocalSync(closecode.New(reason, description), true) })
}
