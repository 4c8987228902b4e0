package events

// LeaderboardChangedEvent marks a board whose standings may have moved.
type LeaderboardChangedEvent struct {
	Board string // "trials", "rt60" or "cps"
}

type Bus struct {
	LeaderboardChanges chan LeaderboardChangedEvent
}

func NewBus() *Bus {
	return &Bus{
		LeaderboardChanges: make(chan LeaderboardChangedEvent, 10),
	}
}

// Publish never blocks; a full bus drops the event. Watchers refresh on the
// next one.
func (b *Bus) Publish(board string) {
	select {
	case b.LeaderboardChanges <- LeaderboardChangedEvent{Board: board}:
	default:
	}
}
