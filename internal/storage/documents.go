package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `id, persona_id, title, content, source, tags, chunk_count, status, last_error, created_at`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// SaveDocumentWithJob stores d and queues job in one transaction, so a
// document is never left pending without the job that ingests it.
func (s *Store) SaveDocumentWithJob(d Document, job Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning document transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDocument(tx, d); err != nil {
		return err
	}
	if err := insertJob(tx, job); err != nil {
		return err
	}
	return tx.Commit()
}

// RequeueDocument resets a document to pending and queues job to ingest it
// again, in one transaction. A document that is already pending returns
// ErrDocumentQueued.
func (s *Store) RequeueDocument(id string, job Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning requeue transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM documents WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading document %s: %w", id, err)
	}
	if status == DocumentPending {
		return ErrDocumentQueued
	}
	if _, err := tx.Exec(`UPDATE documents SET status = ?, last_error = '' WHERE id = ?`, DocumentPending, id); err != nil {
		return fmt.Errorf("resetting document %s: %w", id, err)
	}
	if err := insertJob(tx, job); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDocument(e execer, d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = DocumentPending
	}
	_, err := e.Exec(`
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PersonaID, d.Title, d.Content, d.Source, jsonOrEmpty(d.Tags),
		d.ChunkCount, d.Status, d.LastError, formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) GetDocument(id string) (Document, error) {
	d, err := scanDocument(s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns a persona's documents, newest first.
func (s *Store) ListDocuments(personaID string, limit int) ([]Document, error) {
	rows, err := s.db.Query(`SELECT `+documentColumns+` FROM documents
		WHERE persona_id = ? ORDER BY created_at DESC LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus records the outcome of ingesting a document.
func (s *Store) UpdateDocumentStatus(id, status string, chunkCount int, lastError string) error {
	res, err := s.db.Exec(`UPDATE documents SET status = ?, chunk_count = ?, last_error = ? WHERE id = ?`,
		status, chunkCount, lastError, id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	return requireRow(res)
}

// DeleteDocument removes a document and its vectors.
func (s *Store) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM document_vectors WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("deleting vectors for document %s: %w", id, err)
	}
	return tx.Commit()
}

func scanDocument(r rowScanner) (Document, error) {
	var d Document
	var createdAt string
	err := r.Scan(&d.ID, &d.PersonaID, &d.Title, &d.Content, &d.Source, &d.Tags,
		&d.ChunkCount, &d.Status, &d.LastError, &createdAt)
	if err != nil {
		return Document{}, err
	}
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Document{}, err
	}
	return d, nil
}
