package messaging

import (
	"strings"
	"testing"
	"time"
)

func TestBroker(t *testing.T) {
	t.Run("addressed event reaches only its recipient", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch1 := make(chan Event, 1)
		ch2 := make(chan Event, 1)

		if err := broker.Subscribe("driver1", ch1); err != nil {
			t.Fatalf("Failed to subscribe driver1: %v", err)
		}
		if err := broker.Subscribe("driver2", ch2); err != nil {
			t.Fatalf("Failed to subscribe driver2: %v", err)
		}

		ev := Event{
			Type:      EventStepped,
			To:        []string{"driver2"},
			Content:   uint32(4),
			Timestamp: time.Now(),
		}

		if err := broker.Publish(ev); err != nil {
			t.Fatalf("Failed to publish event: %v", err)
		}

		// driver2 should receive the event
		select {
		case received := <-ch2:
			if received.Type != EventStepped || received.Content != uint32(4) {
				t.Errorf("Unexpected event received: %+v", received)
			}
		case <-time.After(time.Second):
			t.Error("Timeout waiting for event")
		}

		// driver1 should not receive the event
		select {
		case ev := <-ch1:
			t.Errorf("driver1 should not receive event but got: %+v", ev)
		case <-time.After(100 * time.Millisecond):
			// This is expected
		}
	})

	t.Run("empty recipient list broadcasts", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})

		subs := map[string]chan Event{
			"driver1": make(chan Event, 1),
			"driver2": make(chan Event, 1),
			"driver3": make(chan Event, 1),
		}
		for id, ch := range subs {
			if err := broker.Subscribe(id, ch); err != nil {
				t.Fatalf("Failed to subscribe %s: %v", id, err)
			}
		}

		if err := broker.Publish(Event{Type: EventBuilt, SceneID: "s1", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to publish broadcast event: %v", err)
		}

		for id, ch := range subs {
			select {
			case received := <-ch:
				if received.Type != EventBuilt || received.SceneID != "s1" {
					t.Errorf("Unexpected event received by %s: %+v", id, received)
				}
			case <-time.After(time.Second):
				t.Errorf("Timeout waiting for broadcast event on %s", id)
			}
		}
	})

	t.Run("duplicate and unknown subscriptions", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch := make(chan Event, 1)

		if err := broker.Subscribe("driver1", ch); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("driver1", ch); err == nil {
			t.Error("Expected error for duplicate subscription, got nil")
		}
		if err := broker.Unsubscribe("driver1"); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}
		if err := broker.Unsubscribe("driver1"); err == nil {
			t.Error("Expected error for unsubscribing non-existent subscriber, got nil")
		}
	})

	t.Run("full subscriber does not block others", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		full := make(chan Event, 1)
		open := make(chan Event, 2)

		broker.Subscribe("full", full)
		broker.Subscribe("open", open)

		if err := broker.Publish(Event{Type: EventStepped}); err != nil {
			t.Fatalf("Failed to publish first event: %v", err)
		}

		// full is now at capacity, open still has room
		if err := broker.Publish(Event{Type: EventStepped}); err == nil {
			t.Error("Expected error when publishing to full channel, got nil")
		}
		if len(open) != 2 {
			t.Errorf("open subscriber received %d events, want 2", len(open))
		}
	})
	t.Run("every full subscriber is reported", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		slow1 := make(chan Event)
		slow2 := make(chan Event)
		ok := make(chan Event, 1)
		broker.Subscribe("slow1", slow1)
		broker.Subscribe("slow2", slow2)
		broker.Subscribe("ok", ok)

		err := broker.Publish(Event{Type: EventReset})
		if err == nil {
			t.Fatal("Expected error for unbuffered subscribers, got nil")
		}
		for _, id := range []string{"slow1", "slow2"} {
			if !strings.Contains(err.Error(), "subscriber "+id) {
				t.Errorf("error %q does not name %s", err, id)
			}
		}
		if strings.Contains(err.Error(), "subscriber ok") {
			t.Errorf("error %q names a subscriber that received the event", err)
		}
		if len(ok) != 1 {
			t.Error("ok subscriber missed the event")
		}
	})

	t.Run("unknown recipients are skipped", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch := make(chan Event, 1)
		broker.Subscribe("driver1", ch)

		if err := broker.Publish(Event{Type: EventTeardown, To: []string{"gone", "driver1"}}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if len(ch) != 1 {
			t.Error("driver1 did not receive the event")
		}
	})
}
