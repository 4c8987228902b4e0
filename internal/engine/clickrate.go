package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"reactlab/internal/stats"
)

const (
	// DefaultSetWindow is the length of one click-speed set.
	DefaultSetWindow = 10 * time.Second
	// DefaultSetCount is how many sets make up a full run.
	DefaultSetCount = 4
	// clickGate suppresses duplicate input artifacts from one physical
	// action (e.g. key auto-repeat).
	clickGate = 50 * time.Millisecond
)

var (
	ErrSetRunning = errors.New("set already running")
	ErrRunDone    = errors.New("all sets completed")
)

// ClickSummary is the outcome of a full click-speed run.
type ClickSummary struct {
	SetClicks []int
	SetCPS    []float64
	BestCPS   float64
	AvgCPS    float64
}

// ClickEvents observe a ClickRun.
type ClickEvents struct {
	OnCountdown func(remaining time.Duration)
	OnSetEnd    func(set, clicks int, cps float64)
	OnFinish    func(ClickSummary)
}

// ClickRun counts gated clicks across fixed windows. Sets never auto-chain;
// each one starts on an explicit StartSet call.
type ClickRun struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	sets   int
	events ClickEvents

	setIndex  int
	running   bool
	clicks    int
	lastClick time.Time
	endAt     time.Time
	stop      chan struct{}
	setClicks []int
	setCPS    []float64
}

func NewClickRun(window time.Duration, sets int, clock clockwork.Clock, events ClickEvents) *ClickRun {
	if window <= 0 {
		window = DefaultSetWindow
	}
	if sets <= 0 {
		sets = DefaultSetCount
	}
	return &ClickRun{
		clock:  clock,
		window: window,
		sets:   sets,
		events: events,
	}
}

// StartSet begins the next set's window.
func (c *ClickRun) StartSet() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrSetRunning
	}
	if c.setIndex >= c.sets {
		c.mu.Unlock()
		return ErrRunDone
	}
	c.running = true
	c.clicks = 0
	c.lastClick = time.Time{}
	c.endAt = c.clock.Now().Add(c.window)
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.countdown(stop)
	return nil
}

// Click registers one input. Returns true if counted, false when the set is
// not running or the input lands inside the inter-click gate.
func (c *ClickRun) Click() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	now := c.clock.Now()
	if !c.lastClick.IsZero() && now.Sub(c.lastClick) < clickGate {
		return false
	}
	c.lastClick = now
	c.clicks++
	return true
}

// Clicks reports the count in the current set.
func (c *ClickRun) Clicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clicks
}

// SetIndex reports the zero-based index of the next (or current) set.
func (c *ClickRun) SetIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setIndex
}

// Done reports whether all sets have completed.
func (c *ClickRun) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setIndex >= c.sets && !c.running
}

// Abort cancels an in-flight set without recording it.
func (c *ClickRun) Abort() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()
}

func (c *ClickRun) countdown(stop chan struct{}) {
	ticker := c.clock.NewTicker(countdownTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				return
			}
			remaining := c.endAt.Sub(c.clock.Now())
			if remaining > 0 {
				c.mu.Unlock()
				if c.events.OnCountdown != nil {
					c.events.OnCountdown(remaining)
				}
				continue
			}
			c.finishSetLocked()
			return
		}
	}
}

// finishSetLocked closes the current set and, after the last one, emits the
// run summary. Caller holds c.mu; it is released here.
func (c *ClickRun) finishSetLocked() {
	c.running = false
	clicks := c.clicks
	cps := stats.CPS(clicks, c.window)
	c.setClicks = append(c.setClicks, clicks)
	c.setCPS = append(c.setCPS, cps)
	c.setIndex++
	set := c.setIndex
	done := c.setIndex >= c.sets
	var summary ClickSummary
	if done {
		summary = ClickSummary{
			SetClicks: append([]int(nil), c.setClicks...),
			SetCPS:    append([]float64(nil), c.setCPS...),
			BestCPS:   stats.MaxFloat(c.setCPS),
			AvgCPS:    stats.MeanFloat2(c.setCPS),
		}
	}
	c.mu.Unlock()

	if c.events.OnCountdown != nil {
		c.events.OnCountdown(0)
	}
	if c.events.OnSetEnd != nil {
		c.events.OnSetEnd(set, clicks, cps)
	}
	if done && c.events.OnFinish != nil {
		c.events.OnFinish(summary)
	}
}
