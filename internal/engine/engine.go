// Package engine implements the stimulus-response timing engine. One
// parameterized Trial state machine drives all three game modes; RepeatedRun
// and ClickRun layer windowed repetition on top of it.
//
// Timers come from a clockwork.Clock so tests can drive the engine with a
// fake clock. Every transition that schedules a callback bumps a generation
// counter and stops the previous timer; a callback that observes a stale
// generation returns without touching state. This is the invariant that keeps
// a late-firing timer from corrupting goAt or double-counting a trial.
package engine

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type State string

const (
	StateIdle    State = "idle"
	StateWait    State = "wait"
	StateGo      State = "go"
	StateTooSoon State = "too-soon"
	StateResult  State = "result"
)

// TooSoonPolicy selects where the cooldown after a false start lands.
type TooSoonPolicy int

const (
	// TooSoonToIdle returns to idle; the subject restarts by hand.
	TooSoonToIdle TooSoonPolicy = iota
	// TooSoonToWait re-enters wait with a fresh random delay.
	TooSoonToWait
)

type Config struct {
	MinDelay time.Duration // lower bound of the random wait before GO
	MaxDelay time.Duration // upper bound
	Cooldown time.Duration // pause after a false start
	TooSoon  TooSoonPolicy
	OneShot  bool // true: go->result is terminal; false: go->wait continues
}

// SingleTrialConfig matches the one-try reaction test.
func SingleTrialConfig() Config {
	return Config{
		MinDelay: 800 * time.Millisecond,
		MaxDelay: 2000 * time.Millisecond,
		Cooldown: 1500 * time.Millisecond,
		TooSoon:  TooSoonToIdle,
		OneShot:  true,
	}
}

// RepeatedConfig matches the 60-second mode's inner cycle.
func RepeatedConfig() Config {
	return Config{
		MinDelay: 800 * time.Millisecond,
		MaxDelay: 5000 * time.Millisecond,
		Cooldown: 1000 * time.Millisecond,
		TooSoon:  TooSoonToWait,
	}
}

// Events are optional observer callbacks. They fire synchronously while the
// trial lock is NOT held, in transition order for any single goroutine.
type Events struct {
	OnState  func(State)
	OnSample func(rtMs int)
}

// Trial is one stimulus-response state machine instance.
type Trial struct {
	mu     sync.Mutex
	cfg    Config
	clock  clockwork.Clock
	rng    *rand.Rand
	events Events

	state State
	goAt  time.Time
	timer clockwork.Timer
	gen   uint64
}

func NewTrial(cfg Config, clock clockwork.Clock, events Events) *Trial {
	return &Trial{
		cfg:    cfg,
		clock:  clock,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		events: events,
		state:  StateIdle,
	}
}

func (t *Trial) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start moves an idle trial into wait. Starting a non-idle trial is a no-op.
func (t *Trial) Start() {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return
	}
	t.enterWait()
	t.mu.Unlock()
	t.emitState(StateWait)
}

// Press delivers the subject's input. In go it returns the measured latency
// and reacted=true; in wait it registers a false start; in idle or too-soon
// it (re)starts the wait phase.
func (t *Trial) Press() (rtMs int, reacted bool) {
	t.mu.Lock()
	switch t.state {
	case StateIdle, StateTooSoon:
		t.enterWait()
		t.mu.Unlock()
		t.emitState(StateWait)
		return 0, false

	case StateWait:
		t.invalidateTimer()
		t.state = StateTooSoon
		gen := t.gen
		t.timer = t.clock.AfterFunc(t.cfg.Cooldown, func() { t.cooldownOver(gen) })
		t.mu.Unlock()
		t.emitState(StateTooSoon)
		return 0, false

	case StateGo:
		rt := int(math.Round(float64(t.clock.Since(t.goAt)) / float64(time.Millisecond)))
		if t.cfg.OneShot {
			t.invalidateTimer()
			t.state = StateResult
			t.mu.Unlock()
			t.emitState(StateResult)
			t.emitSample(rt)
			return rt, true
		}
		t.enterWait()
		t.mu.Unlock()
		t.emitSample(rt)
		t.emitState(StateWait)
		return rt, true
	}
	t.mu.Unlock()
	return 0, false
}

// Stop tears the trial down, cancelling any pending callback.
func (t *Trial) Stop() {
	t.mu.Lock()
	t.invalidateTimer()
	t.state = StateIdle
	t.mu.Unlock()
}

// enterWait schedules the wait->go transition after a fresh random delay.
// Caller holds t.mu.
func (t *Trial) enterWait() {
	t.invalidateTimer()
	t.state = StateWait
	gen := t.gen
	delay := t.randomDelay()
	t.timer = t.clock.AfterFunc(delay, func() { t.fireGo(gen) })
}

// invalidateTimer stops the pending timer and bumps the generation so a
// callback already in flight becomes a no-op. Caller holds t.mu.
func (t *Trial) invalidateTimer() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Trial) randomDelay() time.Duration {
	spread := t.cfg.MaxDelay - t.cfg.MinDelay
	if spread <= 0 {
		return t.cfg.MinDelay
	}
	return t.cfg.MinDelay + time.Duration(t.rng.Int63n(int64(spread)+1))
}

func (t *Trial) fireGo(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateWait {
		t.mu.Unlock()
		return
	}
	t.state = StateGo
	t.goAt = t.clock.Now()
	t.mu.Unlock()
	t.emitState(StateGo)
}

func (t *Trial) cooldownOver(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateTooSoon {
		t.mu.Unlock()
		return
	}
	if t.cfg.TooSoon == TooSoonToWait {
		t.enterWait()
		t.mu.Unlock()
		t.emitState(StateWait)
		return
	}
	t.state = StateIdle
	t.mu.Unlock()
	t.emitState(StateIdle)
}

func (t *Trial) emitState(s State) {
	if t.events.OnState != nil {
		t.events.OnState(s)
	}
}

func (t *Trial) emitSample(rtMs int) {
	if t.events.OnSample != nil {
		t.events.OnSample(rtMs)
	}
}
