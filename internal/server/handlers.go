package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reactlab/internal/analytics"
	"reactlab/internal/db"
	"reactlab/internal/stats"
)

const (
	minNameLen = 2
	maxNameLen = 80
	maxUALen   = 300
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requireStore guards the routes that cannot degrade without a database.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return false
	}
	return true
}

// validateName trims and checks a participant name: 2-80 printable ASCII
// characters, no angle brackets.
func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) < minNameLen || len(name) > maxNameLen {
		return "", fmt.Errorf("name must be %d-%d characters", minNameLen, maxNameLen)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			return "", errors.New("name must be printable ASCII")
		}
		if r == '<' || r == '>' {
			return "", errors.New("name must not contain angle brackets")
		}
	}
	return name, nil
}

func truncateUA(ua string) string {
	if len(ua) > maxUALen {
		return ua[:maxUALen]
	}
	return ua
}

// sessionError maps the storage layer's session state errors onto statuses.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, db.ErrConsentRequired):
		writeError(w, http.StatusForbidden, "consent required")
	case errors.Is(err, db.ErrSessionCompleted):
		writeError(w, http.StatusConflict, "session already completed")
	default:
		log.Error().Err(err).Msg("session operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "not_configured"
	if s.Store != nil {
		dbStatus = "ok"
		if err := s.Store.Ping(); err != nil {
			log.Error().Err(err).Msg("health ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"db":     "error",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "db": dbStatus})
}

type startRequest struct {
	Name string `json:"name"`
}

type startResponse struct {
	Session       string `json:"session"`
	ParticipantID string `json:"participant_id"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req startRequest
	if !readJSON(w, r, &req) {
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.Store.GetOrCreateParticipant(name)
	if err != nil {
		log.Error().Err(err).Msg("resolving participant")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	token, err := s.Store.CreateSession(p.ID)
	if err != nil {
		log.Error().Err(err).Msg("creating session")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Session: token, ParticipantID: p.ID})
}

type consentRequest struct {
	Session string `json:"session"`
	Agree   bool   `json:"agree"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req consentRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !req.Agree {
		writeError(w, http.StatusBadRequest, "consent must be affirmative")
		return
	}
	if err := s.Store.RecordConsent(req.Session); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type submitRequest struct {
	Session string  `json:"session"`
	RTms    float64 `json:"rt_ms"`
	UA      string  `json:"ua"`
	Screen  *struct {
		W int `json:"w"`
		H int `json:"h"`
	} `json:"screen"`
}

type submitResponse struct {
	OK      bool `json:"ok"`
	RawMs   int  `json:"rt_ms_raw"`
	CleanMs *int `json:"rt_ms_clean"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req submitRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.RTms <= 0 || math.IsNaN(req.RTms) || math.IsInf(req.RTms, 0) {
		writeError(w, http.StatusBadRequest, "rt_ms must be a positive number")
		return
	}

	raw, clean := stats.Classify(req.RTms)
	trial := db.TrialInsert{
		RawMs:   raw,
		CleanMs: clean,
		Index:   1,
		UA:      truncateUA(req.UA),
	}
	if req.Screen != nil {
		trial.ScreenW = &req.Screen.W
		trial.ScreenH = &req.Screen.H
	}

	if err := s.Store.SubmitTrial(req.Session, trial); err != nil {
		sessionError(w, err)
		return
	}
	s.Bus.Publish("trials")
	writeJSON(w, http.StatusOK, submitResponse{OK: true, RawMs: raw, CleanMs: clean})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entries, err := s.Store.Leaderboard()
	if err != nil {
		log.Error().Err(err).Msg("loading leaderboard")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []analytics.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRT60Board(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entries, err := s.Store.RT60Overview()
	if err != nil {
		log.Error().Err(err).Msg("loading rt60 board")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []analytics.RT60Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCPSBoard(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entries, err := s.Store.CPSOverview()
	if err != nil {
		log.Error().Err(err).Msg("loading cps board")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []analytics.CPSEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type rt60Request struct {
	Name        string `json:"name"`
	TotalClicks int    `json:"total_clicks"`
	BestMs      *int   `json:"best_ms"`
	AvgMs       *int   `json:"avg_ms"`
}

func (s *Server) handleRT60Submit(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req rt60Request
	if !readJSON(w, r, &req) {
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TotalClicks < 0 {
		writeError(w, http.StatusBadRequest, "total_clicks must not be negative")
		return
	}

	s.enqueueSummary(summaryJob{
		Name: name,
		RT60: &db.RT60Summary{TotalClicks: req.TotalClicks, BestMs: req.BestMs, AvgMs: req.AvgMs},
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

type cpsRequest struct {
	Name        string `json:"name"`
	Set1        int    `json:"set1"`
	Set2        int    `json:"set2"`
	Set3        int    `json:"set3"`
	Set4        int    `json:"set4"`
	DurationSec int    `json:"duration_sec"`
}

func (s *Server) handleCPSSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req cpsRequest
	if !readJSON(w, r, &req) {
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Set1 < 0 || req.Set2 < 0 || req.Set3 < 0 || req.Set4 < 0 {
		writeError(w, http.StatusBadRequest, "set counts must not be negative")
		return
	}
	duration := req.DurationSec
	if duration <= 0 {
		duration = s.Cfg.CPSWindow
	}

	s.enqueueSummary(summaryJob{
		Name: name,
		CPS:  &db.CPSSummary{Sets: [4]int{req.Set1, req.Set2, req.Set3, req.Set4}, DurationSec: duration},
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

type deleteRequest struct {
	Soft *bool `json:"soft"`
}

func (s *Server) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}

	// Body is optional; absent means soft delete.
	soft := true
	var req deleteRequest
	if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Soft != nil {
			soft = *req.Soft
		}
	}

	var err error
	if soft {
		err = s.Store.SoftDeleteParticipant(id)
	} else {
		err = s.Store.HardDeleteParticipant(id)
	}
	if err != nil {
		log.Error().Err(err).Str("participant", id).Bool("soft", soft).Msg("deleting participant")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info().Str("participant", id).Bool("soft", soft).Msg("participant deleted")
	for _, board := range []string{"trials", "rt60", "cps"} {
		s.Bus.Publish(board)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entries, err := s.Store.Leaderboard()
	if err != nil {
		log.Error().Err(err).Msg("loading leaderboard for export")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.csv"`)
	if err := analytics.ExportCSV(w, entries); err != nil {
		log.Error().Err(err).Msg("writing csv export")
	}
}
