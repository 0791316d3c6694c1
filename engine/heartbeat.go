package engine

import (
	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

// onIdleSync runs on the task queue whenever the idle detector fires
// with no I/O observed for one heartbeat interval (spec.md §4.4). If
// the previous ping was never answered, the peer missed a full cycle
// and the channel is hard-closed without a close frame. Otherwise a
// fresh ping is sent and the cycle restarts.
func (c *Connection) onIdleSync() {
	if c.waitingForPong {
		c.metrics.observeHeartbeatMiss()
		c.awaitClose = true
		if ch := c.currentChannel(); ch != nil {
			ch.Close(CloseImmediate)
		}
		c.markDisconnected(closecode.NoReasonCodeSent())
		return
	}

	ch, ok := c.writableChannel()
	if !ok || c.awaitClose {
		return
	}
	out := &FrameOut{Fin: true, Opcode: byte(frame.OpcodePing)}
	if err := ch.WriteAndFlush(out); err != nil {
		c.handleTransportError(err)
		return
	}
	c.metrics.observeFrameOut(out.Opcode)
	c.waitingForPong = true
}
