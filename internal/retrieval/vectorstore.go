package retrieval

import (
	"context"
	"time"
)

// VectorStore holds chunk embeddings and answers similarity queries. Every
// query is scoped to one persona so a Sim never sees another persona's
// documents.
type VectorStore interface {
	// Insert adds records in a single transaction.
	Insert(ctx context.Context, records []Record) error

	// Search returns at most topK records of personaID whose cosine
	// similarity to vector is at least threshold, highest score first.
	Search(ctx context.Context, personaID string, vector []float32, topK int, threshold float32) ([]ScoredRecord, error)

	// DeleteDocument removes every record produced from documentID.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of records stored for personaID.
	Count(ctx context.Context, personaID string) (int, error)
}

// Record is one embedded chunk of a document.
type Record struct {
	ID         string
	PersonaID  string
	DocumentID string
	ChunkIndex int
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time

	// DocumentTitle is filled in on reads and ignored on insert.
	DocumentTitle string
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
