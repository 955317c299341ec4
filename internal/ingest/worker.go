package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
)

// JobTypeIngestDocument is the job type processed by Worker.
const JobTypeIngestDocument = "ingest_document"

// JobStore abstracts the job queue and document bookkeeping.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	UpdateDocumentStatus(id, status string, chunkCount int, lastError string) error
}

// BatchEmbedder generates embeddings for many texts at once.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter stores chunk embeddings.
type VectorWriter interface {
	Insert(ctx context.Context, records []retrieval.Record) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Options tunes a Worker. Zero fields use defaults.
type Options struct {
	PollInterval time.Duration
	ChunkSize    int
	ChunkOverlap int
}

// Worker turns pending documents into searchable vectors.
type Worker struct {
	store    JobStore
	embedder BatchEmbedder
	vectors  VectorWriter
	opts     Options
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
func NewWorker(store JobStore, embedder BatchEmbedder, vectors VectorWriter, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
		if opts.ChunkOverlap == 0 {
			opts.ChunkOverlap = DefaultChunkOverlap
		}
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		opts:     opts,
		logger:   slog.Default(),
	}
}

// NewJob returns the queue entry that asks a Worker to ingest documentID.
func NewJob(documentID string) storage.Job {
	payload, _ := json.Marshal(documentPayload{DocumentID: documentID})
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeIngestDocument,
		PayloadJSON: string(payload),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes a single ingest job. It returns true if a job
// was processed, whether or not it succeeded.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeIngestDocument})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	docID, err := w.processJob(ctx, job)
	if errors.Is(err, storage.ErrNotFound) {
		// The document was deleted; there is nothing left to retry.
		w.logger.Info("dropping ingest job for deleted document", "job_id", job.ID, "document_id", docID)
		if err := w.store.CompleteJob(job.ID); err != nil {
			return true, fmt.Errorf("completing job %s: %w", job.ID, err)
		}
		return true, nil
	}
	if err != nil {
		w.logger.Warn("ingest job failed", "job_id", job.ID, "document_id", docID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		w.recordFailure(job, docID, err)
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type documentPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload documentPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return payload.DocumentID, fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	chunks := Chunk(doc.Content, w.opts.ChunkSize, w.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return doc.ID, fmt.Errorf("document %s has no text", doc.ID)
	}

	vecs, err := w.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return doc.ID, fmt.Errorf("embedding chunks: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, text := range chunks {
		records[i] = retrieval.Record{
			ID:         uuid.New().String(),
			PersonaID:  doc.PersonaID,
			DocumentID: doc.ID,
			ChunkIndex: i,
			TextChunk:  text,
			Embedding:  vecs[i],
			CreatedAt:  now,
		}
	}

	// A retried job may have inserted vectors before failing.
	if err := w.vectors.DeleteDocument(ctx, doc.ID); err != nil {
		return doc.ID, fmt.Errorf("clearing old vectors: %w", err)
	}
	if err := w.vectors.Insert(ctx, records); err != nil {
		return doc.ID, fmt.Errorf("inserting vectors: %w", err)
	}
	if err := w.store.UpdateDocumentStatus(doc.ID, storage.DocumentReady, len(records), ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted while embedding: drop the vectors just written.
			if delErr := w.vectors.DeleteDocument(ctx, doc.ID); delErr != nil {
				return doc.ID, fmt.Errorf("clearing vectors of deleted document: %w", delErr)
			}
		}
		return doc.ID, fmt.Errorf("updating document status: %w", err)
	}

	w.logger.Info("document ingested", "document_id", doc.ID, "persona_id", doc.PersonaID, "chunks", len(records))
	return doc.ID, nil
}

// recordFailure keeps the document's last error current and marks it failed
// once the job has used its final attempt.
func (w *Worker) recordFailure(job *storage.Job, docID string, cause error) {
	if docID == "" {
		return
	}
	status := storage.DocumentPending
	if job.Attempts+1 >= job.MaxAttempts {
		status = storage.DocumentFailed
	}
	if err := w.store.UpdateDocumentStatus(docID, status, 0, cause.Error()); err != nil {
		w.logger.Error("failed to record document error", "document_id", docID, "error", err)
	}
}
