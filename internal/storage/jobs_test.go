package storage

import (
	"errors"
	"testing"
	"time"
)

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{
		ID:          "j-claim-1",
		Type:        "ingest_document",
		PayloadJSON: `{"document_id":"d1"}`,
	}
	if err := insertJob(s.db, job); err != nil {
		t.Fatalf("insertJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"ingest_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.PayloadJSON != `{"document_id":"d1"}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob([]string{"ingest_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_NoTypes(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob: %v", err)
	}
	got, err := s.ClaimNextJob(nil)
	if err != nil || got != nil {
		t.Errorf("ClaimNextJob(nil) = %+v, %v; want nil, nil", got, err)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)

	job := Job{
		ID:          "j-future",
		Type:        "ingest_document",
		PayloadJSON: `{}`,
		RunAfter:    time.Now().Add(time.Hour),
	}
	if err := insertJob(s.db, job); err != nil {
		t.Fatalf("insertJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"ingest_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilter(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-a", Type: "a", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob a: %v", err)
	}
	if err := insertJob(s.db, Job{ID: "j-b", Type: "b", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob b: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"b"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.ID != "j-b" {
		t.Errorf("claimed %+v, want j-b", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-first", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob first: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}
	if err := insertJob(s.db, Job{ID: "j-second", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob second: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil || got.ID != "j-second" {
		t.Errorf("claimed %+v, want j-second", got)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-complete", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	j, err := s.getJob("j-complete")
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if j.Status != "completed" {
		t.Errorf("status = %q, want completed", j.Status)
	}

	if err := s.CompleteJob("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_IncrementsAttempts(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-fail-inc", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-inc", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.getJob("j-fail-inc")
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if j.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", j.Attempts)
	}
	if j.Status != "pending" {
		t.Errorf("status = %q, want pending", j.Status)
	}
	if j.LastError != "something broke" {
		t.Errorf("last_error = %q", j.LastError)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-fail-max", Type: "x", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("insertJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.getJob("j-fail-max")
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if j.Status != "failed" {
		t.Errorf("status = %q, want failed", j.Status)
	}
}

func TestFailJob_SetsBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := insertJob(s.db, Job{ID: "j-backoff", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("insertJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now()
	if err := s.FailJob("j-backoff", "retry"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.getJob("j-backoff")
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if !j.RunAfter.After(before) {
		t.Errorf("run_after %v should be after %v", j.RunAfter, before)
	}
}

func TestFailJob_NotFound(t *testing.T) {
	s := openTestStore(t)

	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestCountJobs(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := insertJob(s.db, Job{ID: id, Type: "x", PayloadJSON: `{}`}); err != nil {
			t.Fatalf("insertJob: %v", err)
		}
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	counts, err := s.CountJobs()
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts["pending"] != 2 || counts["running"] != 1 {
		t.Errorf("counts = %v, want 2 pending and 1 running", counts)
	}
}
