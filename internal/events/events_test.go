package events

import (
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("NewBus() returned nil")
	}
	if bus.LeaderboardChanges == nil {
		t.Fatal("LeaderboardChanges channel is nil")
	}
}

func TestBus_PublishReceive(t *testing.T) {
	bus := NewBus()

	go bus.Publish("trials")

	select {
	case received := <-bus.LeaderboardChanges:
		if received.Board != "trials" {
			t.Errorf("received Board = %q, want %q", received.Board, "trials")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()

	// Far past the buffer size; extra events are dropped, not queued.
	for i := 0; i < 100; i++ {
		bus.Publish("cps")
	}

	drained := 0
	for {
		select {
		case <-bus.LeaderboardChanges:
			drained++
		default:
			if drained != cap(bus.LeaderboardChanges) {
				t.Errorf("drained %d events, want %d", drained, cap(bus.LeaderboardChanges))
			}
			return
		}
	}
}
