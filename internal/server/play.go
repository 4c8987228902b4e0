package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reactlab/internal/db"
	"reactlab/internal/engine"
	"reactlab/internal/live"
	"reactlab/internal/stats"
)

// playCommand is what the client sends over the play channel.
type playCommand struct {
	Type string `json:"type"` // start, press, start_set, click, abort
}

// playEvent is what the server pushes back. Fields are per-event; omitempty
// keeps each frame small.
type playEvent struct {
	Type        string    `json:"type"`
	State       string    `json:"state,omitempty"`
	RTms        int       `json:"rt_ms,omitempty"`
	Valid       *bool     `json:"valid,omitempty"`
	RemainingMs int64     `json:"remaining_ms,omitempty"`
	Set         int       `json:"set,omitempty"`
	Clicks      int       `json:"clicks,omitempty"`
	CPS         float64   `json:"cps,omitempty"`
	BestMs      *int      `json:"best_ms,omitempty"`
	MeanMs      *int      `json:"mean_ms,omitempty"`
	MedianMs    *int      `json:"median_ms,omitempty"`
	Tries       int       `json:"tries,omitempty"`
	SetCPS      []float64 `json:"set_cps,omitempty"`
	BestCPS     float64   `json:"best_cps,omitempty"`
	AvgCPS      float64   `json:"avg_cps,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// handleLive streams leaderboard refresh notifications to watchers.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.Cfg.AllowedOrigins})
	if err != nil {
		log.Warn().Err(err).Msg("live websocket accept failed")
		return
	}
	defer c.CloseNow()

	client := &live.Client{ID: uuid.NewString(), Conn: c, Send: make(chan []byte, 16)}
	s.Hub.Register(client)
	defer s.Hub.Unregister(client.ID)

	ctx := r.Context()
	go client.WritePump(ctx)

	// Inbound frames are discarded; a read error means the watcher left.
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

// handlePlay runs the timing engine server-side for one session. The client
// only delivers inputs; measurement, persistence and finalization all happen
// here.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	token := r.URL.Query().Get("session")
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "single"
	}
	if mode != "single" && mode != "rt60" && mode != "cps" {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	sess, err := s.Store.GetSession(token)
	if err != nil {
		sessionError(w, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.Cfg.AllowedOrigins})
	if err != nil {
		log.Warn().Err(err).Msg("play websocket accept failed")
		return
	}
	defer c.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan playEvent, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-out:
				if err := wsjson.Write(ctx, c, ev); err != nil {
					return
				}
			}
		}
	}()
	// Non-blocking: a stalled writer drops events rather than stalling the
	// engine's timer callbacks.
	emit := func(ev playEvent) {
		select {
		case out <- ev:
		default:
		}
	}
	onState := func(st engine.State) { emit(playEvent{Type: "state", State: string(st)}) }
	onCountdown := func(d time.Duration) { emit(playEvent{Type: "countdown", RemainingMs: d.Milliseconds()}) }

	var (
		onStart    func()
		onPress    func()
		onStartSet func() error
		onClick    func()
	)

	switch mode {
	case "single":
		ua := truncateUA(r.UserAgent())
		trial := engine.NewTrial(engine.SingleTrialConfig(), s.Clock, engine.Events{
			OnState: onState,
			OnSample: func(rt int) {
				raw, clean := stats.Classify(float64(rt))
				err := s.Store.SubmitTrial(token, db.TrialInsert{RawMs: raw, CleanMs: clean, Index: 1, UA: ua})
				if err != nil {
					log.Warn().Err(err).Str("session", token).Msg("persisting play result")
					emit(playEvent{Type: "error", Error: "result not saved"})
				} else {
					s.Bus.Publish("trials")
				}
				valid := clean != nil
				emit(playEvent{Type: "result", RTms: raw, Valid: &valid})
			},
		})
		defer trial.Stop()
		onStart = trial.Start
		onPress = func() { trial.Press() }

	case "rt60":
		run := engine.NewRepeatedRun(time.Duration(s.Cfg.RT60Duration)*time.Second, s.Clock, engine.RepeatedEvents{
			OnState:     onState,
			OnSample:    func(rt int) { emit(playEvent{Type: "sample", RTms: rt}) },
			OnCountdown: onCountdown,
			OnFinish: func(sum stats.Summary) {
				// Total counts recorded reactions, not raw presses; false
				// starts never inflate the rt60 ranking.
				job := summaryJob{
					ParticipantID: sess.ParticipantID,
					RT60:          &db.RT60Summary{TotalClicks: sum.Tries},
				}
				ev := playEvent{Type: "summary", Tries: sum.Tries}
				if sum.Valid {
					best, mean, median := sum.BestMs, sum.MeanMs, sum.MedianMs
					job.RT60.BestMs, job.RT60.AvgMs = &best, &mean
					ev.BestMs, ev.MeanMs, ev.MedianMs = &best, &mean, &median
				} else {
					ev.Error = "no valid reactions"
				}
				s.enqueueSummary(job)
				emit(ev)
			},
		})
		defer run.Abort()
		onStart = run.Start
		onPress = run.Press

	case "cps":
		run := engine.NewClickRun(time.Duration(s.Cfg.CPSWindow)*time.Second, s.Cfg.CPSSets, s.Clock, engine.ClickEvents{
			OnCountdown: onCountdown,
			OnSetEnd: func(set, clicks int, cps float64) {
				emit(playEvent{Type: "set_end", Set: set, Clicks: clicks, CPS: cps})
			},
			OnFinish: func(sum engine.ClickSummary) {
				var sets [4]int
				for i := 0; i < len(sum.SetClicks) && i < len(sets); i++ {
					sets[i] = sum.SetClicks[i]
				}
				s.enqueueSummary(summaryJob{
					ParticipantID: sess.ParticipantID,
					CPS:           &db.CPSSummary{Sets: sets, DurationSec: s.Cfg.CPSWindow},
				})
				emit(playEvent{Type: "summary", SetCPS: sum.SetCPS, BestCPS: sum.BestCPS, AvgCPS: sum.AvgCPS})
			},
		})
		defer run.Abort()
		onStartSet = run.StartSet
		onClick = func() { run.Click() }
	}

	for {
		var cmd playCommand
		if err := wsjson.Read(ctx, c, &cmd); err != nil {
			return
		}
		switch cmd.Type {
		case "start":
			if onStart != nil {
				onStart()
			}
		case "press":
			if onPress != nil {
				onPress()
			}
		case "start_set":
			if onStartSet != nil {
				if err := onStartSet(); err != nil {
					emit(playEvent{Type: "error", Error: err.Error()})
				}
			}
		case "click":
			if onClick != nil {
				onClick()
			}
		case "abort":
			c.Close(websocket.StatusNormalClosure, "aborted")
			return
		default:
			emit(playEvent{Type: "error", Error: "unknown command"})
		}
	}
}
