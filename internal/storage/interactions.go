package storage

import (
	"database/sql"
	"fmt"
)

const interactionColumns = `id, persona_id, created_at, user_message, outcome, reply, reason, source_ids, duration_ms`

func (s *Store) SaveInteraction(i Interaction) error {
	_, err := s.db.Exec(`
		INSERT INTO interactions (`+interactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.PersonaID, formatTime(i.CreatedAt), i.UserMessage, i.Outcome,
		i.Reply, i.Reason, jsonOrEmpty(i.SourceIDs), i.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("saving interaction %s: %w", i.ID, err)
	}
	return nil
}

func (s *Store) GetInteraction(id string) (Interaction, error) {
	i, err := scanInteraction(s.db.QueryRow(`SELECT `+interactionColumns+` FROM interactions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	return i, err
}

// ListInteractions returns a persona's most recent chat turns, newest first.
func (s *Store) ListInteractions(personaID string, limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`SELECT `+interactionColumns+` FROM interactions
		WHERE persona_id = ? ORDER BY created_at DESC LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanInteraction(r rowScanner) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := r.Scan(&i.ID, &i.PersonaID, &createdAt, &i.UserMessage, &i.Outcome,
		&i.Reply, &i.Reason, &i.SourceIDs, &i.DurationMS)
	if err != nil {
		return Interaction{}, err
	}
	if i.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Interaction{}, err
	}
	return i, nil
}
