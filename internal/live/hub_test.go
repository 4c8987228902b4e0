package live

import (
	"encoding/json"
	"testing"
	"time"

	"reactlab/internal/events"
)

func TestRegisterAndBroadcast(t *testing.T) {
	h := NewHub()

	c1 := &Client{ID: "w1", Send: make(chan []byte, 16)}
	c2 := &Client{ID: "w2", Send: make(chan []byte, 16)}

	h.Register(c1)
	h.Register(c2)

	h.Broadcast(Event{Type: "leaderboard_updated", Board: "trials"})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Send:
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "leaderboard_updated" || got.Board != "trials" {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("watcher %s did not receive event", c.ID)
		}
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := NewHub()

	c := &Client{ID: "w1", Send: make(chan []byte, 16)}
	h.Register(c)
	h.Unregister("w1")

	if _, ok := <-c.Send; ok {
		t.Fatal("Send should be closed after Unregister")
	}

	// Should not panic
	h.Unregister("nonexistent")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := NewHub()

	// Channel with capacity 1
	c := &Client{ID: "w1", Send: make(chan []byte, 1)}
	h.Register(c)

	// Fill the channel
	c.Send <- []byte("filler")

	// This should not block — message dropped
	h.Broadcast(Event{Type: "leaderboard_updated"})

	data := <-c.Send
	if string(data) != "filler" {
		t.Fatalf("expected filler, got: %s", data)
	}

	select {
	case <-c.Send:
		t.Fatal("should be empty after draining filler")
	default:
		// expected
	}
}

func TestRunForwardsBusEvents(t *testing.T) {
	h := NewHub()
	bus := events.NewBus()

	c := &Client{ID: "w1", Send: make(chan []byte, 16)}
	h.Register(c)

	go h.Run(bus)
	bus.Publish("cps")

	select {
	case data := <-c.Send:
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Board != "cps" {
			t.Fatalf("event = %+v, want board cps", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("hub never forwarded the bus event")
	}

	close(bus.LeaderboardChanges)
}
