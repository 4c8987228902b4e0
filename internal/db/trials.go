package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// TrialInsert is one measured reaction bound for storage. Clean is nil when
// the measurement fell outside the plausible range; the classification is
// fixed at write time and never recomputed.
type TrialInsert struct {
	RawMs   int
	CleanMs *int
	Index   int
	UA      string
	ScreenW *int
	ScreenH *int
}

// SubmitTrial atomically completes the session and records its trial. The
// completed flag flips inside the same guarded UPDATE that checks consent, so
// two racing submits can never both insert; the loser gets the state error.
func (d *DB) SubmitTrial(token string, t TrialInsert) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var participantID string
	err = tx.QueryRow(`
		UPDATE sessions
		SET completed = TRUE, user_agent = $2, screen_w = $3, screen_h = $4
		WHERE id = $1 AND consent AND NOT completed
		RETURNING participant_id
	`, token, t.UA, t.ScreenW, t.ScreenH).Scan(&participantID)
	if errors.Is(err, sql.ErrNoRows) {
		// Zero rows matched: the tx holds nothing, inspect outside it.
		tx.Rollback()
		return d.sessionStateError(token)
	}
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO trials (session_id, participant_id, trial_index, rt_ms_raw, rt_ms_clean)
		VALUES ($1, $2, $3, $4, $5)
	`, token, participantID, t.Index, t.RawMs, t.CleanMs)
	if err != nil {
		return fmt.Errorf("inserting trial: %w", err)
	}
	return tx.Commit()
}
