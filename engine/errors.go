package engine

import (
	"errors"

	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

// ErrNotAttached is returned by outbound operations called before
// Attach or after Detach.
var ErrNotAttached = errors.New("engine: connection not attached to a channel")

// ErrAwaitingClose is returned by outbound data/ping operations once a
// close frame has been sent, per invariant I2.
var ErrAwaitingClose = errors.New("engine: connection is awaiting close, no further data frames may be sent")

// translateTransportError implements spec.md §4.5: map errors surfaced
// by the upstream frame codec to a CloseReason the engine closes with.
// Recognized codec errors become protocolError with the fixed
// descriptions spec.md §4.5 specifies; anything else becomes
// unexpectedServerError with the error's own text.
func translateTransportError(err error) closecode.CloseReason {
	switch {
	case errors.Is(err, frame.ErrControlTooLong):
		return closecode.New(closecode.ReasonProtocolError, "Control frames are only allowed to have payload up to and including 125 octets")
	case errors.Is(err, frame.ErrFragmentedControl):
		return closecode.New(closecode.ReasonProtocolError, "Control frames must not be fragmented")
	case errors.Is(err, frame.ErrFrameTooLarge):
		return closecode.New(closecode.ReasonProtocolError, "Frames must be smaller than the configured maximum acceptable frame size")
	default:
		return closecode.New(closecode.ReasonServerError, err.Error())
	}
}
