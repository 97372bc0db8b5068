package mpt1327

import (
	"testing"
	"time"

	"github.com/go-trunk/trunkcore/pkg/channelmap"
	"github.com/go-trunk/trunkcore/pkg/channelstate"
)

func TestACKRegistrationSwapsFromTo(t *testing.T) {
	bus := channelstate.NewBus()
	var calls []channelstate.CallEvent
	bus.Subscribe(func(e channelstate.Event) {
		if e.Type == channelstate.EventCall {
			calls = append(calls, e.Call)
		}
	})

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageACK, FromID: "100", ToID: "200", Ident1Type: IdentREGI})

	if len(calls) != 1 {
		t.Fatalf("expected 1 call event, got %d", len(calls))
	}
	if calls[0].Type != channelstate.CallEventRegister {
		t.Fatalf("expected REGISTER call event, got %v", calls[0].Type)
	}
	if calls[0].From != "200" || calls[0].To != "100" {
		t.Fatalf("expected from/to swapped (200/100), got %s/%s", calls[0].From, calls[0].To)
	}
	if !containsIdent(d.Idents(), "100") {
		t.Fatal("expected from-id added to idents")
	}
}

func TestACKNonRegistrationEmitsResponse(t *testing.T) {
	bus := channelstate.NewBus()
	var calls []channelstate.CallEvent
	bus.Subscribe(func(e channelstate.Event) {
		if e.Type == channelstate.EventCall {
			calls = append(calls, e.Call)
		}
	})

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageACK, FromID: "100", ToID: "200"})

	if len(calls) != 1 || calls[0].Type != channelstate.CallEventResponse {
		t.Fatalf("expected RESPONSE call event, got %v", calls)
	}
	if calls[0].Details != "ACK UNKNOWN" {
		t.Fatalf("expected details 'ACK UNKNOWN', got %q", calls[0].Details)
	}
}

func TestGTCGrantsTrafficChannelAndTracksGroup(t *testing.T) {
	bus := channelstate.NewBus()
	var allocations []channelstate.TrafficChannelAllocationEvent
	bus.Subscribe(func(e channelstate.Event) {
		if e.Type == channelstate.EventTrafficChannelAllocation {
			allocations = append(allocations, e.Allocation)
		}
	})

	cm := channelmap.New(map[int]float64{5: 851012500})
	d := New(bus, cm, Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageGTC, FromID: "100", ToID: "200", Channel: 5})

	if len(allocations) != 1 {
		t.Fatalf("expected 1 traffic channel allocation, got %d", len(allocations))
	}
	if allocations[0].FrequencyHz != 851012500 {
		t.Fatalf("expected resolved frequency 851012500, got %v", allocations[0].FrequencyHz)
	}

	members := d.Groups("200")
	if len(members) != 1 || members[0] != "100" {
		t.Fatalf("expected group 200 to contain member 100, got %v", members)
	}
}

func TestGTCUnmappedChannelResolvesZeroFrequency(t *testing.T) {
	bus := channelstate.NewBus()
	var allocations []channelstate.TrafficChannelAllocationEvent
	bus.Subscribe(func(e channelstate.Event) {
		if e.Type == channelstate.EventTrafficChannelAllocation {
			allocations = append(allocations, e.Allocation)
		}
	})

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageGTC, FromID: "100", ToID: "200", Channel: 99})

	if allocations[0].FrequencyHz != 0 {
		t.Fatalf("expected 0 for unmapped channel, got %v", allocations[0].FrequencyHz)
	}
}

func TestMAINTOnStandardChannelStartsMonitoredCall(t *testing.T) {
	bus := channelstate.NewBus()
	var events []channelstate.Event
	bus.Subscribe(func(e channelstate.Event) { events = append(events, e) })

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageMAINT, ToID: "200"})

	var sawTimeout, sawCall, sawMetadata, sawStart bool
	for _, e := range events {
		switch e.Type {
		case channelstate.EventChangeChannelTimeout:
			sawTimeout = true
			if e.Timeout.Timeout != 30*time.Second {
				t.Fatalf("expected 30s timeout, got %v", e.Timeout.Timeout)
			}
		case channelstate.EventCall:
			sawCall = true
			if e.Call.Details != "MONITORED TRAFFIC CHANNEL" {
				t.Fatalf("expected MONITORED TRAFFIC CHANNEL details, got %q", e.Call.Details)
			}
		case channelstate.EventMetadata:
			sawMetadata = true
		case channelstate.EventStart:
			if e.State == channelstate.StateCall {
				sawStart = true
			}
		}
	}
	if !sawTimeout || !sawCall || !sawMetadata || !sawStart {
		t.Fatalf("expected timeout, call, metadata, and start events; got %+v", events)
	}
	if d.ToTalkgroup() != "200" {
		t.Fatalf("expected to-talkgroup 200, got %q", d.ToTalkgroup())
	}
}

func TestMAINTOnTrafficChannelHasNoEffect(t *testing.T) {
	bus := channelstate.NewBus()
	fired := false
	bus.Subscribe(func(e channelstate.Event) { fired = true })

	d := New(bus, channelmap.New(nil), Traffic, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageMAINT, ToID: "200"})

	if fired {
		t.Fatal("expected no events for MAINT on a traffic channel")
	}
}

func TestCLEAREndsCallWithFade(t *testing.T) {
	bus := channelstate.NewBus()
	var last channelstate.Event
	bus.Subscribe(func(e channelstate.Event) { last = e })

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageCLEAR, Channel: 7})

	if last.Type != channelstate.EventEnd || last.State != channelstate.StateFade {
		t.Fatalf("expected END/FADE, got %v/%v", last.Type, last.State)
	}
	if d.ChannelNumber() != 7 {
		t.Fatalf("expected channel number 7, got %d", d.ChannelNumber())
	}
}

func TestResetRebroadcastsEndedCallEvent(t *testing.T) {
	bus := channelstate.NewBus()
	var calls []channelstate.CallEvent
	bus.Subscribe(func(e channelstate.Event) {
		if e.Type == channelstate.EventCall {
			calls = append(calls, e.Call)
		}
	})

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageMAINT, ToID: "200"})

	if len(calls) != 1 {
		t.Fatalf("expected 1 call event from MAINT, got %d", len(calls))
	}
	if calls[0].Start.IsZero() {
		t.Fatal("expected Start to be set on the tracked call")
	}
	if !calls[0].End.IsZero() {
		t.Fatal("expected End unset before the call concludes")
	}
	started := calls[0]

	d.ReceiveDecoderStateEvent(channelstate.Event{Type: channelstate.EventReset})

	if len(calls) != 2 {
		t.Fatalf("expected RESET to re-broadcast the ended call event, got %d call events", len(calls))
	}
	ended := calls[1]
	if ended.ID != started.ID {
		t.Fatalf("expected the same call event re-published, got ID %q want %q", ended.ID, started.ID)
	}
	if ended.End.IsZero() {
		t.Fatal("expected End to be set on the re-published call event")
	}
}

func TestResetClearsTalkgroupsAndEndsCall(t *testing.T) {
	bus := channelstate.NewBus()
	var events []channelstate.Event
	bus.Subscribe(func(e channelstate.Event) { events = append(events, e) })

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: true, Type: MessageMAINT, ToID: "200"})
	events = nil // drop MAINT's own events, only inspect RESET's

	d.ReceiveDecoderStateEvent(channelstate.Event{Type: channelstate.EventReset})

	if d.ToTalkgroup() != "" || d.FromTalkgroup() != "" {
		t.Fatalf("expected talkgroups cleared, got from=%q to=%q", d.FromTalkgroup(), d.ToTalkgroup())
	}

	var sawEnd, sawTimeout bool
	for _, e := range events {
		if e.Type == channelstate.EventEnd {
			sawEnd = true
		}
		if e.Type == channelstate.EventChangeChannelTimeout && e.Timeout.Timeout == DefaultCallTimeout {
			sawTimeout = true
		}
	}
	if !sawEnd {
		t.Fatal("expected the in-progress call to end on RESET")
	}
	if !sawTimeout {
		t.Fatal("expected default call timeout on RESET for a STANDARD channel")
	}
}

func TestInvalidMessageDropped(t *testing.T) {
	bus := channelstate.NewBus()
	fired := false
	bus.Subscribe(func(e channelstate.Event) { fired = true })

	d := New(bus, channelmap.New(nil), Standard, 30*time.Second)
	d.Receive(Message{Valid: false, Type: MessageACK, FromID: "1"})

	if fired {
		t.Fatal("expected invalid message to be dropped without effect")
	}
}

func TestTrafficChannelAllocationFromPeerAdoptsState(t *testing.T) {
	bus := channelstate.NewBus()
	d := New(bus, channelmap.New(nil), Traffic, 30*time.Second)

	other := "peer"
	d.ReceiveDecoderStateEvent(channelstate.Event{
		Type:   channelstate.EventTrafficChannelAllocation,
		Source: other,
		Allocation: channelstate.TrafficChannelAllocationEvent{
			Channel:     "12",
			FrequencyHz: 851500000,
			Call:        channelstate.CallEvent{From: "100", To: "200"},
		},
	})

	if d.ChannelNumber() != 12 {
		t.Fatalf("expected channel 12, got %d", d.ChannelNumber())
	}
	if d.FromTalkgroup() != "100" || d.ToTalkgroup() != "200" {
		t.Fatalf("expected talkgroups adopted, got %s/%s", d.FromTalkgroup(), d.ToTalkgroup())
	}
}

func TestTrafficChannelAllocationFromSelfIgnored(t *testing.T) {
	bus := channelstate.NewBus()
	d := New(bus, channelmap.New(nil), Traffic, 30*time.Second)

	d.ReceiveDecoderStateEvent(channelstate.Event{
		Type:   channelstate.EventTrafficChannelAllocation,
		Source: d,
		Allocation: channelstate.TrafficChannelAllocationEvent{
			Channel: "99",
		},
	})

	if d.ChannelNumber() != 0 {
		t.Fatalf("expected self-originated allocation to be ignored, got channel %d", d.ChannelNumber())
	}
}

func containsIdent(idents []string, target string) bool {
	for _, i := range idents {
		if i == target {
			return true
		}
	}
	return false
}
