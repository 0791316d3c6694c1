// Package closecode implements the on-wire ↔ domain close-code mapping
// used by the engine's close orchestration. It keeps the promotion rule
// (unrecognized codes below 3000 become protocolError) as a pure
// function so the engine can apply it identically to inbound frames and
// to reasons it originates itself.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package closecode

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"
)

// Code is the 16-bit on-wire close code (RFC 6455 section 7.4).
type Code uint16

const (
	CodeNormalClosure      Code = 1000
	CodeGoingAway          Code = 1001
	CodeProtocolError      Code = 1002
	CodeUnacceptableData   Code = 1003
	CodeNoStatusReceived   Code = 1005 // never sent on the wire; synthetic-only
	CodeAbnormalClosure    Code = 1006 // never sent on the wire; synthetic-only
	CodeDataInconsistent   Code = 1007
	CodePolicyViolation    Code = 1008
	CodeMessageTooLarge    Code = 1009
	CodeMissingExtension   Code = 1010
	CodeUnexpectedServerError Code = 1011
)

// Reason is the domain enumeration the Service callback surface uses,
// decoupled from the numeric wire code.
type Reason string

const (
	ReasonNormal              Reason = "normal"
	ReasonGoingAway           Reason = "goingAway"
	ReasonProtocolError       Reason = "protocolError"
	ReasonInvalidDataType     Reason = "invalidDataType"
	ReasonInvalidDataContents Reason = "invalidDataContents"
	ReasonPolicyViolation     Reason = "policyViolation"
	ReasonMessageTooLarge     Reason = "messageTooLarge"
	ReasonExtensionMissing    Reason = "extensionMissing"
	ReasonServerError         Reason = "serverError"
	ReasonNoReasonCodeSent    Reason = "noReasonCodeSent"
	ReasonUserDefined         Reason = "userDefined"
)

// CloseReason bundles the wire code, its domain reason, and (for peer
// closes) the UTF-8 description that accompanied it.
type CloseReason struct {
	Code        Code
	Reason      Reason
	Description string
}

var (
	// ErrBadCloseLength is returned when a close frame's payload length
	// is 1 or exceeds 125 octets.
	ErrBadCloseLength = errors.New("closecode: close payload must be 0 or between 2 and 125 octets inclusive")

	// ErrBadDescriptionUTF8 is returned when a close frame's
	// description bytes are not valid UTF-8.
	ErrBadDescriptionUTF8 = errors.New("closecode: close description is not valid UTF-8")
)

// FromWire maps an on-wire code to its domain Reason, applying the
// sub-3000 promotion rule: any code below 3000 that isn't one of the
// codes this engine defines collapses to ReasonProtocolError, matching
// the source engine's rejection of reserved slots such as 1004, 1005,
// 1006, 1014, and 1015.
func FromWire(code Code) Reason {
	switch code {
	case CodeNormalClosure:
		return ReasonNormal
	case CodeGoingAway:
		return ReasonGoingAway
	case CodeProtocolError:
		return ReasonProtocolError
	case CodeUnacceptableData:
		return ReasonInvalidDataType
	case CodeDataInconsistent:
		return ReasonInvalidDataContents
	case CodePolicyViolation:
		return ReasonPolicyViolation
	case CodeMessageTooLarge:
		return ReasonMessageTooLarge
	case CodeMissingExtension:
		return ReasonExtensionMissing
	case CodeUnexpectedServerError:
		return ReasonServerError
	default:
		if code < 3000 {
			return ReasonProtocolError
		}
		return ReasonUserDefined
	}
}

// ToWire returns the canonical on-wire code for a domain reason.
// userCode is used verbatim when reason is ReasonUserDefined.
func ToWire(reason Reason, userCode Code) Code {
	switch reason {
	case ReasonNormal:
		return CodeNormalClosure
	case ReasonGoingAway:
		return CodeGoingAway
	case ReasonProtocolError:
		return CodeProtocolError
	case ReasonInvalidDataType:
		return CodeUnacceptableData
	case ReasonInvalidDataContents:
		return CodeDataInconsistent
	case ReasonPolicyViolation:
		return CodePolicyViolation
	case ReasonMessageTooLarge:
		return CodeMessageTooLarge
	case ReasonExtensionMissing:
		return CodeMissingExtension
	case ReasonServerError:
		return CodeUnexpectedServerError
	case ReasonUserDefined:
		return userCode
	default:
		return CodeNoStatusReceived
	}
}

// New builds a normalized CloseReason from a reason and description,
// resolving the on-wire code via ToWire.
func New(reason Reason, description string) CloseReason {
	return CloseReason{Code: ToWire(reason, 0), Reason: reason, Description: description}
}

// NoReasonCodeSent is the synthetic CloseReason delivered to the
// service when no peer close frame reported a reason: the channel went
// inactive first (including after a soft close the peer never
// answered), or a heartbeat ping went unanswered.
func NoReasonCodeSent() CloseReason {
	return CloseReason{Code: CodeNoStatusReceived, Reason: ReasonNoReasonCodeSent}
}

// DecodePayload parses an inbound close frame's payload per RFC 6455
// section 5.5.1, applying the promotion rule from FromWire and
// rejecting descriptions that are not valid UTF-8.
func DecodePayload(payload []byte) (CloseReason, error) {
	switch {
	case len(payload) == 0:
		return CloseReason{Code: CodeNormalClosure, Reason: ReasonNormal}, nil
	case len(payload) == 1 || len(payload) > 125:
		return CloseReason{}, ErrBadCloseLength
	default:
		code := Code(binary.BigEndian.Uint16(payload[:2]))
		desc := payload[2:]
		if !utf8.Valid(desc) {
			return CloseReason{}, ErrBadDescriptionUTF8
		}
		reason := FromWire(code)
		effective := code
		if reason == ReasonProtocolError {
			effective = CodeProtocolError
		}
		return CloseReason{Code: effective, Reason: reason, Description: string(desc)}, nil
	}
}

// EncodePayload serializes code and description into the wire format
// expected by a close frame's payload: a 16-bit big-endian code
// optionally followed by a UTF-8 description.
func EncodePayload(code Code, description string) []byte {
	buf := make([]byte, 2, 2+len(description))
	binary.BigEndian.PutUint16(buf, uint16(code))
	return append(buf, description...)
}
