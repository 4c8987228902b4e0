package db

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionRecord struct {
	ID            string
	ParticipantID string
	Consent       bool
	Completed     bool
	CreatedAt     time.Time
}

// newSessionToken returns an opaque 32-hex-char token.
func newSessionToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func (d *DB) CreateSession(participantID string) (string, error) {
	token := newSessionToken()
	_, err := d.conn.Exec(`
		INSERT INTO sessions (id, participant_id)
		VALUES ($1, $2)
	`, token, participantID)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

func (d *DB) GetSession(token string) (*SessionRecord, error) {
	var s SessionRecord
	err := d.conn.QueryRow(`
		SELECT id, participant_id, consent, completed, created_at
		FROM sessions WHERE id = $1
	`, token).Scan(&s.ID, &s.ParticipantID, &s.Consent, &s.Completed, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}

// RecordConsent marks the session as consented. Consent on a completed
// session is rejected; recording it twice is fine.
func (d *DB) RecordConsent(token string) error {
	res, err := d.conn.Exec(`
		UPDATE sessions SET consent = TRUE WHERE id = $1 AND NOT completed
	`, token)
	if err != nil {
		return fmt.Errorf("recording consent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return d.sessionStateError(token)
	}
	return nil
}

// sessionStateError inspects a session whose guarded update matched nothing
// and returns the reason.
func (d *DB) sessionStateError(token string) error {
	var consent, completed bool
	err := d.conn.QueryRow(`
		SELECT consent, completed FROM sessions WHERE id = $1
	`, token).Scan(&consent, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("inspecting session: %w", err)
	}
	if completed {
		return ErrSessionCompleted
	}
	if !consent {
		return ErrConsentRequired
	}
	return fmt.Errorf("session %s in unexpected state", token)
}
