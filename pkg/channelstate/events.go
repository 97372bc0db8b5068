package channelstate

import "time"

// EventType identifies the kind of transition a DecoderStateEvent reports.
type EventType int

const (
	EventReset EventType = iota
	EventStart
	EventContinuation
	EventEnd
	EventChangedAttribute
	EventSourceFrequency
	EventTrafficChannelAllocation
	EventRequestReset
	EventChangeChannelTimeout
	EventMetadata
	EventCall
)

func (e EventType) String() string {
	switch e {
	case EventReset:
		return "RESET"
	case EventStart:
		return "START"
	case EventContinuation:
		return "CONTINUATION"
	case EventEnd:
		return "END"
	case EventChangedAttribute:
		return "CHANGED_ATTRIBUTE"
	case EventSourceFrequency:
		return "SOURCE_FREQUENCY"
	case EventTrafficChannelAllocation:
		return "TRAFFIC_CHANNEL_ALLOCATION"
	case EventRequestReset:
		return "REQUEST_RESET"
	case EventChangeChannelTimeout:
		return "CHANGE_CHANNEL_TIMEOUT"
	case EventMetadata:
		return "METADATA"
	case EventCall:
		return "CALL"
	default:
		return "UNKNOWN"
	}
}

// ChannelState is the coarse activity state a channel reports alongside an
// EventType.
type ChannelState int

const (
	StateIdle ChannelState = iota
	StateCall
	StateControl
	StateFade
)

func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCall:
		return "CALL"
	case StateControl:
		return "CONTROL"
	case StateFade:
		return "FADE"
	default:
		return "UNKNOWN"
	}
}

// Attribute identifies which field of a channel's tracked state a
// ChangedAttribute event reports.
type Attribute int

const (
	AttributeChannelSiteNumber Attribute = iota
	AttributeFromTalkgroup
	AttributeToTalkgroup
	AttributeChannelName
)

func (a Attribute) String() string {
	switch a {
	case AttributeChannelSiteNumber:
		return "CHANNEL_SITE_NUMBER"
	case AttributeFromTalkgroup:
		return "FROM_TALKGROUP"
	case AttributeToTalkgroup:
		return "TO_TALKGROUP"
	case AttributeChannelName:
		return "CHANNEL_NAME"
	default:
		return "UNKNOWN"
	}
}

// Event is the envelope broadcast on a Bus. Source identifies the
// component that emitted it. Only the fields relevant to Type are
// populated; the rest are zero.
type Event struct {
	Source interface{}
	Type   EventType
	State  ChannelState

	// Populated for EventChangedAttribute.
	Changed ChangedAttribute

	// Populated for EventSourceFrequency.
	FrequencyHz float64

	// Populated for EventCall.
	Call CallEvent

	// Populated for EventTrafficChannelAllocation.
	Allocation TrafficChannelAllocationEvent

	// Populated for EventChangeChannelTimeout.
	Timeout *ChangeChannelTimeoutEvent

	// Populated for EventMetadata.
	MetadataRecord Metadata

	Timestamp time.Time
}

// ChangedAttribute describes one field transition on a channel's tracked
// state.
type ChangedAttribute struct {
	Attribute Attribute
	Value     string
}

// CallEventType classifies a CallEvent, matching MPT-1327's message
// categories once translated into channel activity.
type CallEventType int

const (
	CallEventRegister CallEventType = iota
	CallEventResponse
	CallEventCommand
	CallEventStatus
	CallEventCall
	CallEventSDM
)

func (c CallEventType) String() string {
	switch c {
	case CallEventRegister:
		return "REGISTER"
	case CallEventResponse:
		return "RESPONSE"
	case CallEventCommand:
		return "COMMAND"
	case CallEventStatus:
		return "STATUS"
	case CallEventCall:
		return "CALL"
	case CallEventSDM:
		return "SDM"
	default:
		return "UNKNOWN"
	}
}

// CallEvent describes one unit of trunking activity: a registration, an
// acknowledgement, a command, a status message, a call grant, or a short
// data message. ID uniquely identifies the event for downstream consumers
// (telemetry, MQTT) that need to deduplicate or correlate it.
type CallEvent struct {
	ID      string
	Type    CallEventType
	From    string
	To      string
	Details string

	// Channel/FrequencyHz carry the granted or monitored channel for
	// CallEventCall, and the decoder's current channel and frequency for
	// REGISTER, RESPONSE, COMMAND, and STATUS events; SDM events leave them
	// zero.
	Channel     string
	FrequencyHz float64

	// Start is set when the event is first published. End is set, and the
	// same CallEvent re-published, when a tracked call concludes (e.g. a
	// RESET on a STANDARD channel); zero until then.
	Start time.Time
	End   time.Time
}

// TrafficChannelAllocationEvent wraps a CallEvent granting a traffic
// channel, carrying the channel number (as signaled, pre-parse) and its
// resolved frequency.
type TrafficChannelAllocationEvent struct {
	Call        CallEvent
	Channel     string
	FrequencyHz float64
}

// ChangeChannelTimeoutEvent requests that the channel's call-hang timeout
// be (re)armed to the given duration, e.g. on a MAINT message or a RESET.
type ChangeChannelTimeoutEvent struct {
	Timeout time.Duration
}

// Metadata records an attribute of the current call for display/telemetry
// purposes, e.g. the resolved to-talkgroup identity.
type Metadata struct {
	Attribute Attribute
	Value     string
}
