package engine

import (
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"reactlab/internal/stats"
)

type repeatedHarness struct {
	run        *RepeatedRun
	clock      *clockwork.FakeClock
	states     chan State
	samples    chan int
	countdowns chan time.Duration
	finished   chan stats.Summary
}

func newRepeatedHarness(window time.Duration) *repeatedHarness {
	h := &repeatedHarness{
		clock:      clockwork.NewFakeClock(),
		states:     make(chan State, 256),
		samples:    make(chan int, 256),
		countdowns: make(chan time.Duration, 1024),
		finished:   make(chan stats.Summary, 1),
	}
	h.run = NewRepeatedRun(window, h.clock, RepeatedEvents{
		OnState:     func(s State) { h.states <- s },
		OnSample:    func(rt int) { h.samples <- rt },
		OnCountdown: func(d time.Duration) { h.countdowns <- d },
		OnFinish:    func(s stats.Summary) { h.finished <- s },
	})
	return h
}

// tick advances one countdown interval and waits for the resulting countdown
// callback, keeping the test in lock-step with the ticker goroutine.
func (h *repeatedHarness) tick(t *testing.T) {
	t.Helper()
	h.clock.Advance(countdownTick)
	select {
	case <-h.countdowns:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown tick")
	}
	// The fake clock runs AfterFunc callbacks on their own goroutine; yield so
	// a just-fired go transition is observable even on a single CPU.
	runtime.Gosched()
}

func (h *repeatedHarness) sawGo() bool {
	for {
		select {
		case s := <-h.states:
			if s == StateGo {
				return true
			}
		default:
			return false
		}
	}
}

func TestRepeatedRun_RecordsSamplesAndFinalizes(t *testing.T) {
	window := 12 * time.Second
	h := newRepeatedHarness(window)

	h.run.Start()
	h.clock.BlockUntil(2) // go timer + countdown ticker

	// Press after each observed stimulus, one extra tick later so the
	// measured latency is nonzero. Stop pressing well before the window
	// closes so every press lands inside it.
	ticks := int(window / countdownTick)
	pressed := 0
	for i := 0; i < ticks; i++ {
		h.tick(t)
		if pressed < 2 && i < ticks-8 && h.sawGo() {
			i++
			h.tick(t)
			h.run.Press()
			pressed++
		}
	}

	// The max go delay is 5s, so a 12s window guarantees at least one press.
	if pressed == 0 {
		t.Fatal("never saw a go stimulus inside the window")
	}

	select {
	case summary := <-h.finished:
		if !summary.Valid {
			t.Fatal("summary invalid despite recorded samples")
		}
		if summary.Tries != pressed {
			t.Errorf("Tries = %d, want %d", summary.Tries, pressed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finalize at window end")
	}

	got := h.run.Samples()
	if len(got) != pressed {
		t.Fatalf("Samples() = %v, want %d entries", got, pressed)
	}
	for _, rt := range got {
		if rt < int(countdownTick/time.Millisecond) {
			t.Errorf("sample %d ms below the tick the press waited for", rt)
		}
	}
}

func TestRepeatedRun_EmptyRunIsNoValidReactions(t *testing.T) {
	window := 2 * time.Second
	h := newRepeatedHarness(window)

	h.run.Start()
	h.clock.BlockUntil(2)

	for i := 0; i < int(window/countdownTick); i++ {
		h.tick(t)
	}

	select {
	case summary := <-h.finished:
		if summary.Valid {
			t.Error("summary Valid = true with zero samples, want false")
		}
		if summary.BestMs != 0 || summary.MeanMs != 0 || summary.MedianMs != 0 {
			t.Errorf("empty summary carries values: %+v", summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finalize")
	}
}

func TestRepeatedRun_InFlightTrialAbandonedAtWindowEnd(t *testing.T) {
	// Window shorter than the minimum go delay: the run always closes with
	// the inner trial still waiting.
	window := 750 * time.Millisecond
	h := newRepeatedHarness(window)

	h.run.Start()
	h.clock.BlockUntil(2)

	for i := 0; i < int(window/countdownTick); i++ {
		h.tick(t)
	}

	summary := <-h.finished
	if summary.Valid || summary.Tries != 0 {
		t.Errorf("abandoned trial was counted: %+v", summary)
	}

	// Finalizing stopped the inner trial, so its go timer must stay dead.
	h.clock.Advance(10 * time.Second)
	if h.sawGo() {
		t.Error("stale go fired after the window closed")
	}
}

func TestRepeatedRun_AbortStopsWithoutFinalize(t *testing.T) {
	h := newRepeatedHarness(10 * time.Second)

	h.run.Start()
	h.clock.BlockUntil(2)
	h.run.Abort()

	h.clock.Advance(20 * time.Second)
	select {
	case <-h.finished:
		t.Error("aborted run must not finalize")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRepeatedRun_PressBeforeStartIsIgnored(t *testing.T) {
	h := newRepeatedHarness(10 * time.Second)
	h.run.Press()
	if got := h.run.Samples(); len(got) != 0 {
		t.Errorf("samples before start: %v", got)
	}
}
