package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const personaColumns = `id, name, title, profession, location, education, years_experience,
	expertise, background, interests, skills, writing_sample, scenarios, welcome_message,
	created_at, updated_at`

// SavePersona inserts p or replaces the stored row with the same ID.
// created_at is preserved on update.
func (s *Store) SavePersona(p Persona) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO personas (`+personaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			profession = excluded.profession,
			location = excluded.location,
			education = excluded.education,
			years_experience = excluded.years_experience,
			expertise = excluded.expertise,
			background = excluded.background,
			interests = excluded.interests,
			skills = excluded.skills,
			writing_sample = excluded.writing_sample,
			scenarios = excluded.scenarios,
			welcome_message = excluded.welcome_message,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Title, p.Profession, p.Location, p.Education, p.YearsExperience,
		p.Expertise, p.Background, jsonOrEmpty(p.Interests), jsonOrEmpty(p.Skills),
		p.WritingSample, jsonOrEmpty(p.Scenarios), p.WelcomeMessage,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving persona %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetPersona(id string) (Persona, error) {
	row := s.db.QueryRow(`SELECT `+personaColumns+` FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if err == sql.ErrNoRows {
		return Persona{}, ErrNotFound
	}
	return p, err
}

// ListPersonas returns all personas, oldest first.
func (s *Store) ListPersonas() ([]Persona, error) {
	rows, err := s.db.Query(`SELECT ` + personaColumns + ` FROM personas ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePersona removes the persona together with its documents, vectors
// and interaction history.
func (s *Store) DeletePersona(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting persona %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	for _, table := range []string{"document_vectors", "documents", "interactions"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE persona_id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s for persona %s: %w", table, id, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPersona(r rowScanner) (Persona, error) {
	var p Persona
	var createdAt, updatedAt string
	err := r.Scan(
		&p.ID, &p.Name, &p.Title, &p.Profession, &p.Location, &p.Education, &p.YearsExperience,
		&p.Expertise, &p.Background, &p.Interests, &p.Skills, &p.WritingSample, &p.Scenarios,
		&p.WelcomeMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		return Persona{}, err
	}
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Persona{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Persona{}, err
	}
	return p, nil
}

func jsonOrEmpty(v string) string {
	if v == "" {
		return "[]"
	}
	return v
}
