package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embedFn(ctx, texts)
}

func constantEmbedder() *mockEmbedder {
	return &mockEmbedder{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{0.1, 0.2, 0.3}
		}
		return out, nil
	}}
}

func openTestStore(t *testing.T) (*storage.Store, *retrieval.SQLiteStore) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, retrieval.NewSQLiteStore(s.DB())
}

func enqueueTestDoc(t *testing.T, store *storage.Store, docID, content string) string {
	t.Helper()
	job := NewJob(docID)
	job.ID = "job-" + docID
	if err := store.SaveDocumentWithJob(storage.Document{
		ID:        docID,
		PersonaID: "p1",
		Title:     "Test Doc",
		Content:   content,
		Source:    "test",
	}, job); err != nil {
		t.Fatalf("SaveDocumentWithJob: %v", err)
	}
	return job.ID
}

// resetRunAfter makes a job claimable again after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, now, jobID); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store, jobID string) (string, int) {
	t.Helper()
	var status string
	var attempts int
	err := store.DB().QueryRow(`SELECT status, attempts FROM jobs WHERE id = ?`, jobID).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("loading job %s: %v", jobID, err)
	}
	return status, attempts
}

func TestNewJob(t *testing.T) {
	job := NewJob("doc-1")
	if job.Type != JobTypeIngestDocument || job.ID == "" {
		t.Errorf("job = %+v", job)
	}
	var p map[string]string
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil || p["document_id"] != "doc-1" {
		t.Errorf("payload = %s", job.PayloadJSON)
	}
}

func TestWorker_ProcessesJob(t *testing.T) {
	store, vectors := openTestStore(t)
	content := strings.Repeat("Estate planning starts with a will. ", 60)
	jobID := enqueueTestDoc(t, store, "doc-1", content)

	w := NewWorker(store, constantEmbedder(), vectors, Options{ChunkSize: 500, ChunkOverlap: 50})
	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	want := len(Chunk(content, 500, 50))
	if n, _ := vectors.Count(context.Background(), "p1"); n != want {
		t.Errorf("stored %d vectors, want %d", n, want)
	}
	doc, err := store.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != storage.DocumentReady || doc.ChunkCount != want {
		t.Errorf("document = status %q chunks %d, want ready/%d", doc.Status, doc.ChunkCount, want)
	}
	if status, _ := jobStatus(t, store, jobID); status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store, vectors := openTestStore(t)
	w := NewWorker(store, constantEmbedder(), vectors, Options{})
	didWork, err := w.RunOnce(context.Background())
	if err != nil || didWork {
		t.Errorf("RunOnce = %v, %v; want false, nil", didWork, err)
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store, vectors := openTestStore(t)
	jobID := enqueueTestDoc(t, store, "doc-r", "retry content")

	var calls atomic.Int32
	emb := &mockEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		if n := calls.Add(1); n <= 2 {
			return nil, fmt.Errorf("transient error %d", n)
		}
		return constantEmbedder().EmbedBatch(ctx, texts)
	}}
	w := NewWorker(store, emb, vectors, Options{})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		status, attempts := jobStatus(t, store, jobID)
		if status != "pending" || attempts != i {
			t.Errorf("after fail %d: status=%q attempts=%d", i, status, attempts)
		}
		doc, _ := store.GetDocument("doc-r")
		if doc.Status != storage.DocumentPending || !strings.Contains(doc.LastError, "transient") {
			t.Errorf("after fail %d: document = %q %q", i, doc.Status, doc.LastError)
		}
		resetRunAfter(t, store, jobID)
	}

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 3 error: %v", err)
	}
	if status, _ := jobStatus(t, store, jobID); status != "completed" {
		t.Errorf("after 3rd attempt: status=%q, want completed", status)
	}
	doc, _ := store.GetDocument("doc-r")
	if doc.Status != storage.DocumentReady || doc.LastError != "" {
		t.Errorf("document = %q %q, want ready with no error", doc.Status, doc.LastError)
	}
}

func TestWorker_MaxRetriesMarksDocumentFailed(t *testing.T) {
	store, vectors := openTestStore(t)
	jobID := enqueueTestDoc(t, store, "doc-m", "max retry content")

	emb := &mockEmbedder{embedFn: func(context.Context, []string) ([][]float32, error) {
		return nil, fmt.Errorf("permanent error")
	}}
	w := NewWorker(store, emb, vectors, Options{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil || !didWork {
			t.Fatalf("RunOnce %d = %v, %v", i, didWork, err)
		}
		if i < 3 {
			resetRunAfter(t, store, jobID)
		}
	}

	if status, _ := jobStatus(t, store, jobID); status != "failed" {
		t.Errorf("final job status = %q, want failed", status)
	}
	doc, _ := store.GetDocument("doc-m")
	if doc.Status != storage.DocumentFailed {
		t.Errorf("document status = %q, want failed", doc.Status)
	}
}

func TestWorker_EmptyDocumentFails(t *testing.T) {
	store, vectors := openTestStore(t)
	jobID := enqueueTestDoc(t, store, "doc-e", "   \n\n  ")

	w := NewWorker(store, constantEmbedder(), vectors, Options{})
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if status, attempts := jobStatus(t, store, jobID); status != "pending" || attempts != 1 {
		t.Errorf("job = %q/%d, want pending/1", status, attempts)
	}
}

func TestWorker_RerunReplacesVectors(t *testing.T) {
	store, vectors := openTestStore(t)
	enqueueTestDoc(t, store, "doc-x", "first paragraph\n\nsecond paragraph")
	w := NewWorker(store, constantEmbedder(), vectors, Options{ChunkSize: 20, ChunkOverlap: 0})
	ctx := context.Background()
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.RequeueDocument("doc-x", NewJob("doc-x")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := vectors.Count(ctx, "p1"); n != 2 {
		t.Errorf("vector count = %d after re-ingest, want 2", n)
	}
}

func TestWorker_DocumentDeletedDuringEmbedding(t *testing.T) {
	store, vectors := openTestStore(t)
	jobID := enqueueTestDoc(t, store, "doc-d", "fee schedule for estate planning clients")

	emb := &mockEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		if err := store.DeleteDocument("doc-d"); err != nil {
			return nil, err
		}
		return constantEmbedder().EmbedBatch(ctx, texts)
	}}
	w := NewWorker(store, emb, vectors, Options{})
	ctx := context.Background()

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n, _ := vectors.Count(ctx, "p1"); n != 0 {
		t.Errorf("vector count = %d for deleted document, want 0", n)
	}
	hits, err := vectors.Search(ctx, "p1", []float32{0.1, 0.2, 0.3}, 5, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("search returned %d hits from a deleted document", len(hits))
	}
	if status, _ := jobStatus(t, store, jobID); status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
}

func TestWorker_MissingDocumentCompletesJob(t *testing.T) {
	store, vectors := openTestStore(t)
	jobID := enqueueTestDoc(t, store, "doc-gone", "removed before the worker ran")
	if err := store.DeleteDocument("doc-gone"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	w := NewWorker(store, constantEmbedder(), vectors, Options{})
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if status, attempts := jobStatus(t, store, jobID); status != "completed" || attempts != 0 {
		t.Errorf("job = %q/%d, want completed/0", status, attempts)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store, vectors := openTestStore(t)
	enqueueTestDoc(t, store, "doc-run", "background content")
	w := NewWorker(store, constantEmbedder(), vectors, Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		doc, _ := store.GetDocument("doc-run")
		if doc.Status == storage.DocumentReady {
			break
		}
		select {
		case <-deadline:
			t.Fatal("document was not ingested in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
