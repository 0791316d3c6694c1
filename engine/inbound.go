package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

// OnFrame submits f for processing on the Connection's execution
// context. Frames submitted in arrival order are processed in that
// same order, since taskQueue is a strict FIFO drained by one worker
// (spec.md §4.1, §5).
func (c *Connection) OnFrame(f *frame.Frame) {
	c.tasks.Submit(func() { c.onFrameSync(f) })
}

// OnReadError reports a failure decoding an inbound frame — typically
// one of the frame package's sentinel errors — and closes the
// connection with the translation spec.md §4.5 defines for it.
func (c *Connection) OnReadError(err error) {
	c.tasks.Submit(func() { c.hardClose(translateTransportError(err)) })
}

func (c *Connection) onFrameSync(f *frame.Frame) {
	c.chMu.RLock()
	fired := c.disconnectedFired
	c.chMu.RUnlock()
	if fired {
		return
	}

	c.idle.Touch()
	c.metrics.observeFrameIn(byte(f.Opcode))

	if reason, ok := c.validateRSV(f); !ok {
		c.hardClose(reason)
		return
	}

	if (f.Opcode == frame.OpcodeText || f.Opcode == frame.OpcodeBinary) && !f.Masked {
		c.hardClose(closecode.New(closecode.ReasonProtocolError, "Received a frame from a client that wasn't masked"))
		return
	}
	f.Unmask()

	switch f.Opcode {
	case frame.OpcodeText:
		c.handleText(f)
	case frame.OpcodeBinary:
		c.handleBinary(f)
	case frame.OpcodeContinuation:
		c.handleContinuation(f)
	case frame.OpcodeClose:
		c.handleClose(f)
	case frame.OpcodePing:
		c.handlePing(f)
	case frame.OpcodePong:
		c.handlePong(f)
	default:
		c.hardClose(closecode.New(closecode.ReasonProtocolError,
			fmt.Sprintf("Parsed a frame with an invalid operation code of %d", f.Opcode)))
	}
}

// validateRSV implements spec.md §4.1.1: rsv1 must be 0 unless
// permessage-deflate was negotiated; rsv2/rsv3 are always reserved.
// All offending bit names are accumulated before closing, per the
// explicit-accumulator design note in spec.md §9.
func (c *Connection) validateRSV(f *frame.Frame) (closecode.CloseReason, bool) {
	var bad []string
	if f.RSV1 && !c.extensionNegotiated {
		bad = append(bad, "RSV1")
	}
	if f.RSV2 {
		bad = append(bad, "RSV2")
	}
	if f.RSV3 {
		bad = append(bad, "RSV3")
	}
	if len(bad) == 0 {
		return closecode.CloseReason{}, true
	}
	desc := strings.Join(bad, ", ") + " must be 0 unless negotiated to define meaning for non-zero values"
	return closecode.New(closecode.ReasonProtocolError, desc), false
}

func (c *Connection) handleText(f *frame.Frame) {
	if c.messageState != stateUnknown {
		c.hardClose(closecode.New(closecode.ReasonProtocolError, "A text frame must be the first in the message"))
		return
	}
	if f.Fin {
		c.deliverText(f.Payload)
		return
	}
	c.messageState = stateText
	c.messageBuffer = append([]byte(nil), f.Payload...)
}

func (c *Connection) handleBinary(f *frame.Frame) {
	if c.messageState != stateUnknown {
		c.hardClose(closecode.New(closecode.ReasonProtocolError, "A binary frame must be the first in the message"))
		return
	}
	if f.Fin {
		c.deliverBinary(f.Payload)
		return
	}
	c.messageState = stateBinary
	c.messageBuffer = append([]byte(nil), f.Payload...)
}

// handleContinuation implements spec.md §4.1.4's fragmentation rule
// and finalizes the reassembled message on the terminating frame.
func (c *Connection) handleContinuation(f *frame.Frame) {
	if c.messageState == stateUnknown {
		c.hardClose(closecode.New(closecode.ReasonProtocolError, "Continuation sent with prior binary or text frame"))
		return
	}

	if c.limits.MaxMessageLength > 0 && int64(len(c.messageBuffer)+len(f.Payload)) > c.limits.MaxMessageLength {
		c.hardClose(closecode.New(closecode.ReasonMessageTooLarge, "Reassembled message exceeds the configured maximum size"))
		return
	}
	c.messageBuffer = append(c.messageBuffer, f.Payload...)
	if !f.Fin {
		return
	}

	state := c.messageState
	payload := c.messageBuffer
	c.messageBuffer = nil
	c.messageState = stateUnknown

	switch state {
	case stateText:
		c.deliverText(payload)
	case stateBinary:
		c.deliverBinary(payload)
	}
}

// deliverText validates UTF-8 and invokes Service.ReceivedText, or
// closes with dataInconsistentWithMessage on failure. A zero-length
// payload is delivered as "" without a UTF-8 pass, per spec.md §4.1.3's
// empty-text special case and §9's preserved-quirk note.
func (c *Connection) deliverText(payload []byte) {
	if len(payload) == 0 {
		c.metrics.observeMessageBytes(0)
		c.service.ReceivedText(c, "")
		return
	}
	if !utf8.Valid(payload) {
		c.hardClose(closecode.New(closecode.ReasonInvalidDataContents, "Failed to convert received payload to UTF-8 String"))
		return
	}
	c.metrics.observeMessageBytes(len(payload))
	c.service.ReceivedText(c, string(payload))
}

func (c *Connection) deliverBinary(payload []byte) {
	c.metrics.observeMessageBytes(len(payload))
	c.service.ReceivedBinary(c, payload)
}

// handlePing echoes the payload back as a pong. The frame codec
// already rejects oversized or fragmented control frames before a
// Frame reaches here (translated via translateTransportError into the
// same descriptions spec.md §4.1.3's ping row names), so no separate
// fin/length check is needed.
func (c *Connection) handlePing(f *frame.Frame) {
	ch, ok := c.writableChannel()
	if !ok || c.awaitClose {
		return
	}
	c.idle.Touch()
	out := &FrameOut{Fin: true, Opcode: byte(frame.OpcodePong), Payload: f.Payload}
	if err := ch.WriteAndFlush(out); err != nil {
		c.handleTransportError(err)
		return
	}
	c.metrics.observeFrameOut(out.Opcode)
}

// handlePong clears the heartbeat's waitingForPong flag; an
// unsolicited pong is ignored, per spec.md §4.1.3.
func (c *Connection) handlePong(*frame.Frame) {
	c.waitingForPong = false
}

// handleClose implements the peer-initiated half of spec.md §4.3.
func (c *Connection) handleClose(f *frame.Frame) {
	reason, err := closecode.DecodePayload(f.Payload)
	if err != nil {
		switch err {
		case closecode.ErrBadCloseLength:
			c.hardClose(closecode.New(closecode.ReasonProtocolError,
				"Close frames, that have a payload, must be between 2 and 125 octets inclusive"))
		case closecode.ErrBadDescriptionUTF8:
			c.hardClose(closecode.New(closecode.ReasonInvalidDataContents,
				"Failed to convert received payload to UTF-8 String"))
		default:
			c.hardClose(closecode.New(closecode.ReasonProtocolError, err.Error()))
		}
		return
	}

	if ch := c.currentChannel(); ch != nil && ch.Active() && !c.awaitClose {
		if ch.Writable() {
			out := &FrameOut{Fin: true, Opcode: byte(frame.OpcodeClose), Payload: closecode.EncodePayload(reason.Code, reason.Description)}
			if err := ch.WriteAndFlush(out); err == nil {
				c.metrics.observeFrameOut(out.Opcode)
			}
		}
		c.awaitClose = true
	}

	if ch := c.currentChannel(); ch != nil {
		ch.Close(CloseGraceful)
	}
	c.markDisconnected(reason)
}
