package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"reactlab/internal/stats"
)

// DefaultWindow is the wall-clock length of the repeated-reaction mode.
const DefaultWindow = 60 * time.Second

// countdownTick is how often the repeated run recomputes remaining time.
const countdownTick = 250 * time.Millisecond

// RepeatedEvents observe a RepeatedRun. OnCountdown fires on every tick with
// the remaining window time; OnFinish fires exactly once.
type RepeatedEvents struct {
	OnState     func(State)
	OnSample    func(rtMs int)
	OnCountdown func(remaining time.Duration)
	OnFinish    func(stats.Summary)
}

// RepeatedRun drives go->press cycles inside a fixed wall-clock window. When
// the window elapses the in-flight trial is abandoned, not counted.
type RepeatedRun struct {
	mu      sync.Mutex
	trial   *Trial
	clock   clockwork.Clock
	window  time.Duration
	events  RepeatedEvents
	endAt   time.Time
	running bool
	samples []int
	stop    chan struct{}
}

func NewRepeatedRun(window time.Duration, clock clockwork.Clock, events RepeatedEvents) *RepeatedRun {
	if window <= 0 {
		window = DefaultWindow
	}
	r := &RepeatedRun{
		clock:  clock,
		window: window,
		events: events,
	}
	r.trial = NewTrial(RepeatedConfig(), clock, Events{
		OnState:  events.OnState,
		OnSample: r.recordSample,
	})
	return r
}

// Start opens the window and begins the first wait phase. Starting a running
// run is a no-op.
func (r *RepeatedRun) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.samples = nil
	r.endAt = r.clock.Now().Add(r.window)
	r.stop = make(chan struct{})
	r.mu.Unlock()

	r.trial.Start()
	go r.countdown(r.stop)
}

// Press forwards the subject's input to the inner trial.
func (r *RepeatedRun) Press() {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return
	}
	r.trial.Press()
}

// Abort ends the run without finalizing (view unmounted, connection dropped).
func (r *RepeatedRun) Abort() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	r.mu.Unlock()
	r.trial.Stop()
}

// Samples returns a copy of the recorded latencies so far.
func (r *RepeatedRun) Samples() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.samples))
	copy(out, r.samples)
	return out
}

func (r *RepeatedRun) recordSample(rtMs int) {
	r.mu.Lock()
	if r.running {
		r.samples = append(r.samples, rtMs)
	}
	r.mu.Unlock()
	if r.events.OnSample != nil {
		r.events.OnSample(rtMs)
	}
}

// countdown is the ticker loop that recomputes remaining time and finalizes
// the run when the window elapses, whatever the trial sub-state is then.
func (r *RepeatedRun) countdown(stop chan struct{}) {
	ticker := r.clock.NewTicker(countdownTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			r.mu.Lock()
			if !r.running {
				r.mu.Unlock()
				return
			}
			remaining := r.endAt.Sub(r.clock.Now())
			if remaining > 0 {
				r.mu.Unlock()
				if r.events.OnCountdown != nil {
					r.events.OnCountdown(remaining)
				}
				continue
			}
			r.running = false
			samples := make([]int, len(r.samples))
			copy(samples, r.samples)
			r.mu.Unlock()

			r.trial.Stop()
			if r.events.OnCountdown != nil {
				r.events.OnCountdown(0)
			}
			if r.events.OnFinish != nil {
				r.events.OnFinish(stats.Summarize(samples))
			}
			return
		}
	}
}
