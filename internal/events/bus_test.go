package events

import (
	"sync/atomic"
	"testing"
)

func TestPublishCallsMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		if e.Type != APIDown {
			t.Errorf("expected APIDown, got %s", e.Type)
		}
		called.Store(true)
	}, APIDown)

	bus.Publish(Event{Type: APIDown, Message: "backend unreachable"})

	if !called.Load() {
		t.Error("subscriber was not called")
	}
}

func TestSubscriberIgnoresUnmatchedTypes(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		called.Store(true)
	}, APIDown)

	bus.Publish(Event{Type: TrendUpdated, Message: "trend"})

	if called.Load() {
		t.Error("subscriber should not have been called for TrendUpdated")
	}
}

func TestWildcardSubscriberReceivesAll(t *testing.T) {
	bus := NewBus()
	var count atomic.Int32

	bus.Subscribe(func(e Event) {
		count.Add(1)
	})

	bus.Publish(Event{Type: APIUp, Message: "a"})
	bus.Publish(Event{Type: TrendUpdated, Message: "b"})
	bus.Publish(Event{Type: ReminderScheduled, Message: "c"})

	if count.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", count.Load())
	}
}

func TestPublishSetsIDAndTimestamp(t *testing.T) {
	bus := NewBus()
	var got Event

	bus.Subscribe(func(e Event) {
		got = e
	})

	bus.Publish(Event{Type: APIUp, Message: "ts"})

	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if got.ID == "" {
		t.Error("expected event id to be set")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	var first, second atomic.Int32

	id := bus.Subscribe(func(e Event) { first.Add(1) })
	bus.Subscribe(func(e Event) { second.Add(1) })

	bus.Publish(Event{Type: APIUp, Message: "a"})
	bus.Unsubscribe(id)
	bus.Publish(Event{Type: APIUp, Message: "b"})

	if first.Load() != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", first.Load())
	}
	if second.Load() != 2 {
		t.Errorf("remaining handler called %d times, want 2", second.Load())
	}

	// Unknown tokens are ignored.
	bus.Unsubscribe(999)
}

func TestSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		panic("boom")
	})
	bus.Subscribe(func(e Event) {
		called.Store(true)
	})

	bus.Publish(Event{Type: APIUp, Message: "x"})

	if !called.Load() {
		t.Error("second subscriber should still be called after a panic")
	}
}
