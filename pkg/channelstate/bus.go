// Package channelstate implements the event model a channel's decoders use
// to report demodulator and trunking-protocol state to listeners: the
// per-channel telemetry broadcaster, the web API, and (in a full
// deployment) other channels reacting to a traffic-channel allocation.
//
// Dispatch is synchronous and single-threaded, matching spec.md's
// DecoderStateBus contract: everything running on a channel's dispatcher
// goroutine delivers events in registration order with no concurrency
// inside Broadcast itself. Cross-channel communication happens by a
// channel posting an event onto another channel's own Bus from outside
// that bus's Broadcast call, never reentrantly.
package channelstate

import "fmt"

// Listener receives channel-state events in the order they are broadcast.
type Listener func(Event)

// Bus is a single-threaded, synchronous publish/subscribe dispatcher
// scoped to one channel.
type Bus struct {
	listeners  []Listener
	dispatching bool
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener. Listeners are invoked in the order they
// were registered.
func (b *Bus) Subscribe(l Listener) {
	b.listeners = append(b.listeners, l)
}

// Broadcast delivers event synchronously to every registered listener, in
// registration order. Calling Broadcast from within a listener callback is
// a programmer error and panics; components that need to publish
// follow-on events in response to one they received must do so after
// returning from their receive handler.
func (b *Bus) Broadcast(event Event) {
	if b.dispatching {
		panic(fmt.Sprintf("channelstate: reentrant broadcast of %v while already dispatching", event))
	}
	b.dispatching = true
	defer func() { b.dispatching = false }()

	for _, l := range b.listeners {
		l(event)
	}
}
