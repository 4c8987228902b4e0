package db

import (
	"fmt"
	"time"
)

type ParticipantRecord struct {
	ID        string
	Name      string
	Deleted   bool
	CreatedAt time.Time
}

// GetOrCreateParticipant resolves a non-deleted participant by name, creating
// one if needed. The conflict target is the partial unique index on active
// names, so a soft-deleted row never blocks re-registration.
func (d *DB) GetOrCreateParticipant(name string) (*ParticipantRecord, error) {
	var p ParticipantRecord
	err := d.conn.QueryRow(`
		INSERT INTO participants (name)
		VALUES ($1)
		ON CONFLICT (name) WHERE NOT deleted DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, deleted, created_at
	`, name).Scan(&p.ID, &p.Name, &p.Deleted, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("resolving participant: %w", err)
	}
	return &p, nil
}

// SoftDeleteParticipant hides a participant and everything they recorded from
// all reads while keeping the rows. Deleting an absent or already-deleted id
// is a no-op.
func (d *DB) SoftDeleteParticipant(id string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`UPDATE participants SET deleted = TRUE WHERE id = $1`,
		`UPDATE trials SET deleted = TRUE WHERE participant_id = $1`,
		`UPDATE rt60_sessions SET deleted = TRUE WHERE participant_id = $1`,
		`UPDATE cps_sessions SET deleted = TRUE WHERE participant_id = $1`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("soft-deleting participant: %w", err)
		}
	}
	return tx.Commit()
}

// HardDeleteParticipant removes the participant row; sessions, trials and
// summaries follow through the FK cascades. Idempotent.
func (d *DB) HardDeleteParticipant(id string) error {
	if _, err := d.conn.Exec(`DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("hard-deleting participant: %w", err)
	}
	return nil
}
