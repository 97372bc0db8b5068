// Package mpt1327 implements the MPT-1327 trunking control state (spec.md
// component H): a decoder state that consumes decoded MPT1327Message
// values and translates them into CallEvents, DecoderStateEvents, and
// TrafficChannelAllocationEvents on a channel's Bus.
//
// Grounded on MPT1327DecoderState.java.
package mpt1327

// MessageType classifies an MPT-1327 control message.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessageACK
	MessageACKI
	MessageAHYC
	MessageAHYQ
	MessageALH
	MessageGTC
	MessageHeadPlus1
	MessageHeadPlus2
	MessageHeadPlus3
	MessageHeadPlus4
	MessageCLEAR
	MessageMAINT
)

func (t MessageType) String() string {
	switch t {
	case MessageACK:
		return "ACK"
	case MessageACKI:
		return "ACKI"
	case MessageAHYC:
		return "AHYC"
	case MessageAHYQ:
		return "AHYQ"
	case MessageALH:
		return "ALH"
	case MessageGTC:
		return "GTC"
	case MessageHeadPlus1:
		return "HEAD_PLUS1"
	case MessageHeadPlus2:
		return "HEAD_PLUS2"
	case MessageHeadPlus3:
		return "HEAD_PLUS3"
	case MessageHeadPlus4:
		return "HEAD_PLUS4"
	case MessageCLEAR:
		return "CLEAR"
	case MessageMAINT:
		return "MAINT"
	default:
		return "UNKNOWN"
	}
}

// IdentType classifies the first ident field of an ACK message.
type IdentType int

const (
	IdentUnknown IdentType = iota
	IdentREGI              // registration
)

// Label returns the human-readable tag used in the details of a
// non-registration ACK's RESPONSE CallEvent, e.g. "ACK UNKNOWN".
func (t IdentType) Label() string {
	switch t {
	case IdentREGI:
		return "REGI"
	default:
		return "UNKNOWN"
	}
}

// Message is a decoded MPT-1327 control message. Fields not relevant to
// Type are zero-valued; decoders populate only what a given message type
// carries.
type Message struct {
	Valid bool
	Type  MessageType

	FromID string
	ToID   string

	Ident1Type IdentType

	Channel int    // GTC, CLEAR
	SiteID  string // ALH

	StatusMessage string // AHYQ
	RequestString string // AHYC
	FreeText      string // HEAD_PLUS1..4
}
