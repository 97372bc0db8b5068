package mpt1327

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/go-trunk/trunkcore/pkg/channelmap"
	"github.com/go-trunk/trunkcore/pkg/channelstate"
)

// ChannelType distinguishes a control channel from a traffic channel
// carved out of one by a GTC grant.
type ChannelType int

const (
	Standard ChannelType = iota
	Traffic
)

// DefaultCallTimeout is applied to a STANDARD channel on every RESET; a MAINT
// message applies the configured callTimeout instead.
const DefaultCallTimeout = 45 * time.Second

// DecoderState maintains per-channel MPT-1327 trunking state: observed
// idents, group membership, site tracking, and the current call, and
// translates incoming messages into CallEvents, DecoderStateEvents, and
// TrafficChannelAllocationEvents broadcast on bus.
type DecoderState struct {
	bus         *channelstate.Bus
	channelMap  *channelmap.Map
	channelType ChannelType
	callTimeout time.Duration

	idents map[string]struct{}
	groups map[string][]string

	site           string
	fromTalkgroup  string
	toTalkgroup    string
	channelNumber  int
	frequencyHz    float64
	currentCall    *channelstate.CallEvent
}

// New constructs a DecoderState publishing to bus.
func New(bus *channelstate.Bus, channelMap *channelmap.Map, channelType ChannelType, callTimeout time.Duration) *DecoderState {
	return &DecoderState{
		bus:         bus,
		channelMap:  channelMap,
		channelType: channelType,
		callTimeout: callTimeout,
		idents:      make(map[string]struct{}),
		groups:      make(map[string][]string),
	}
}

// Receive processes one decoded MPT1327Message. Invalid messages are
// dropped silently.
func (d *DecoderState) Receive(msg Message) {
	if !msg.Valid {
		return
	}

	switch msg.Type {
	case MessageACK:
		d.addIdent(msg.FromID)

		if msg.Ident1Type == IdentREGI {
			d.broadcastCall(channelstate.CallEvent{
				Type:        channelstate.CallEventRegister,
				From:        msg.ToID,
				To:          msg.FromID,
				Details:     "REGISTERED ON NETWORK",
				Channel:     strconv.Itoa(d.channelNumber),
				FrequencyHz: d.frequencyHz,
			})
		} else {
			d.broadcastCall(channelstate.CallEvent{
				Type:        channelstate.CallEventResponse,
				From:        msg.FromID,
				To:          msg.ToID,
				Details:     "ACK " + msg.Ident1Type.Label(),
				Channel:     strconv.Itoa(d.channelNumber),
				FrequencyHz: d.frequencyHz,
			})
		}
		d.continuationControl()

	case MessageACKI:
		d.addIdent(msg.FromID)
		d.addIdent(msg.ToID)
		d.continuationControl()

	case MessageAHYC:
		d.addIdent(msg.ToID)
		d.broadcastCall(channelstate.CallEvent{
			Type:        channelstate.CallEventCommand,
			From:        msg.FromID,
			To:          msg.ToID,
			Details:     msg.RequestString,
			Channel:     strconv.Itoa(d.channelNumber),
			FrequencyHz: d.frequencyHz,
		})
		d.continuationControl()

	case MessageAHYQ:
		d.broadcastCall(channelstate.CallEvent{
			Type:        channelstate.CallEventStatus,
			From:        msg.FromID,
			To:          msg.ToID,
			Details:     msg.StatusMessage,
			Channel:     strconv.Itoa(d.channelNumber),
			FrequencyHz: d.frequencyHz,
		})
		d.continuationControl()

	case MessageALH:
		if msg.SiteID != "" && msg.SiteID != d.site {
			d.site = msg.SiteID
			d.bus.Broadcast(channelstate.Event{
				Type:    channelstate.EventChangedAttribute,
				Source:  d,
				Changed: channelstate.ChangedAttribute{Attribute: channelstate.AttributeChannelSiteNumber, Value: d.site},
			})
		}
		d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventStart, State: channelstate.StateControl})

	case MessageGTC:
		if msg.FromID != "" {
			d.addIdent(msg.FromID)
		}
		if msg.ToID != "" {
			d.addIdent(msg.ToID)
		}
		if msg.FromID != "" && msg.ToID != "" {
			d.addGroupMember(msg.ToID, msg.FromID)
		}

		frequency := d.channelMap.FrequencyHz(msg.Channel)
		call := channelstate.CallEvent{
			ID:          uuid.NewString(),
			Type:        channelstate.CallEventCall,
			From:        msg.FromID,
			To:          msg.ToID,
			Details:     "GTC",
			Channel:     strconv.Itoa(msg.Channel),
			FrequencyHz: frequency,
			Start:       time.Now(),
		}
		d.bus.Broadcast(channelstate.Event{
			Source: d,
			Type:   channelstate.EventTrafficChannelAllocation,
			Allocation: channelstate.TrafficChannelAllocationEvent{
				Call:        call,
				Channel:     call.Channel,
				FrequencyHz: frequency,
			},
		})

	case MessageHeadPlus1, MessageHeadPlus2, MessageHeadPlus3, MessageHeadPlus4:
		d.broadcastCall(channelstate.CallEvent{
			Type:    channelstate.CallEventSDM,
			From:    msg.FromID,
			To:      msg.ToID,
			Details: msg.FreeText,
		})
		d.continuationControl()

	case MessageCLEAR:
		d.channelNumber = msg.Channel
		d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventEnd, State: channelstate.StateFade})

	case MessageMAINT:
		if d.channelType == Standard {
			d.bus.Broadcast(channelstate.Event{
				Source:  d,
				Type:    channelstate.EventChangeChannelTimeout,
				Timeout: &channelstate.ChangeChannelTimeoutEvent{Timeout: d.callTimeout},
			})

			if d.currentCall == nil {
				call := channelstate.CallEvent{
					ID:          uuid.NewString(),
					Type:        channelstate.CallEventCall,
					To:          msg.ToID,
					Details:     "MONITORED TRAFFIC CHANNEL",
					Channel:     strconv.Itoa(d.channelNumber),
					FrequencyHz: d.frequencyHz,
					Start:       time.Now(),
				}
				d.currentCall = &call
				d.broadcastCall(call)
			}

			d.bus.Broadcast(channelstate.Event{
				Source:         d,
				Type:           channelstate.EventMetadata,
				MetadataRecord: channelstate.Metadata{Attribute: channelstate.AttributeToTalkgroup, Value: msg.ToID},
			})

			d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventStart, State: channelstate.StateCall})
			d.setToTalkgroup(msg.ToID)
		}
	}
}

func (d *DecoderState) continuationControl() {
	d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventContinuation, State: channelstate.StateControl})
}

func (d *DecoderState) broadcastCall(call channelstate.CallEvent) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.Start.IsZero() {
		call.Start = time.Now()
	}
	d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventCall, Call: call})
}

func (d *DecoderState) addIdent(ident string) {
	if ident == "" {
		return
	}
	d.idents[ident] = struct{}{}
}

func (d *DecoderState) addGroupMember(to, from string) {
	members := d.groups[to]
	for _, m := range members {
		if m == from {
			return
		}
	}
	d.groups[to] = append(members, from)
}

// ReceiveDecoderStateEvent handles RESET, SOURCE_FREQUENCY, and
// TRAFFIC_CHANNEL_ALLOCATION events published by peers on the bus.
func (d *DecoderState) ReceiveDecoderStateEvent(event channelstate.Event) {
	switch event.Type {
	case channelstate.EventReset:
		d.resetState()
	case channelstate.EventSourceFrequency:
		d.frequencyHz = event.FrequencyHz
	case channelstate.EventTrafficChannelAllocation:
		if event.Source == d {
			return
		}
		alloc := event.Allocation
		if alloc.Channel != "" {
			if n, err := strconv.Atoi(alloc.Channel); err == nil {
				d.channelNumber = n
			}
		}
		d.frequencyHz = alloc.FrequencyHz
		d.fromTalkgroup = alloc.Call.From
		d.toTalkgroup = alloc.Call.To
	}
}

// Reset clears observed idents, then clears the talkgroups and ends the
// current call as a RESET event does. Group membership, site, channel
// number, and frequency are kept.
func (d *DecoderState) Reset() {
	d.idents = make(map[string]struct{})
	d.resetState()
}

func (d *DecoderState) resetState() {
	d.fromTalkgroup = ""
	d.bus.Broadcast(channelstate.Event{
		Source:  d,
		Type:    channelstate.EventChangedAttribute,
		Changed: channelstate.ChangedAttribute{Attribute: channelstate.AttributeFromTalkgroup},
	})

	d.toTalkgroup = ""
	d.bus.Broadcast(channelstate.Event{
		Source:  d,
		Type:    channelstate.EventChangedAttribute,
		Changed: channelstate.ChangedAttribute{Attribute: channelstate.AttributeToTalkgroup},
	})

	if d.channelType == Standard {
		d.bus.Broadcast(channelstate.Event{
			Source:  d,
			Type:    channelstate.EventChangeChannelTimeout,
			Timeout: &channelstate.ChangeChannelTimeoutEvent{Timeout: DefaultCallTimeout},
		})

		if d.currentCall != nil {
			d.currentCall.End = time.Now()
			d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventCall, Call: *d.currentCall})
			d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventEnd, State: channelstate.StateIdle})
			d.currentCall = nil
		}
	}
}

func (d *DecoderState) setToTalkgroup(talkgroup string) {
	d.toTalkgroup = talkgroup
	d.bus.Broadcast(channelstate.Event{
		Source:  d,
		Type:    channelstate.EventChangedAttribute,
		Changed: channelstate.ChangedAttribute{Attribute: channelstate.AttributeToTalkgroup, Value: talkgroup},
	})
}

// Site returns the currently tracked site id, or "" if none has been
// observed.
func (d *DecoderState) Site() string { return d.site }

// FromTalkgroup returns the current from-talkgroup.
func (d *DecoderState) FromTalkgroup() string { return d.fromTalkgroup }

// ToTalkgroup returns the current to-talkgroup.
func (d *DecoderState) ToTalkgroup() string { return d.toTalkgroup }

// ChannelNumber returns the current channel number.
func (d *DecoderState) ChannelNumber() int { return d.channelNumber }

// Idents returns the set of observed idents in sorted order.
func (d *DecoderState) Idents() []string {
	out := make([]string, 0, len(d.idents))
	for ident := range d.idents {
		out = append(out, ident)
	}
	sort.Strings(out)
	return out
}

// Groups returns the members of the given to-talkgroup, in the order they
// were first observed.
func (d *DecoderState) Groups(to string) []string {
	return d.groups[to]
}
