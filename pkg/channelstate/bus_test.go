package channelstate

import "testing"

func TestBroadcastDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })

	bus.Broadcast(Event{Type: EventStart, State: StateCall})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected listeners invoked in registration order, got %v", order)
	}
}

func TestReentrantBroadcastPanics(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(func(e Event) {
		bus.Broadcast(Event{Type: EventEnd})
	})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on reentrant broadcast")
		}
	}()
	bus.Broadcast(Event{Type: EventStart})
}

func TestBroadcastWithNoListenersDoesNothing(t *testing.T) {
	bus := NewBus()
	bus.Broadcast(Event{Type: EventReset}) // must not panic
}
