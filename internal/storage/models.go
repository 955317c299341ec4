package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDocumentQueued is returned when a document is already waiting for ingestion.
var ErrDocumentQueued = errors.New("document already queued")

// Persona is the flat row form of a persona profile.
type Persona struct {
	ID              string
	Name            string
	Title           string
	Profession      string
	Location        string
	Education       string
	YearsExperience int
	Expertise       string
	Background      string
	Interests       string // JSON array stored as text
	Skills          string // JSON array stored as text
	WritingSample   string
	Scenarios       string // JSON array of {question, expected_response}
	WelcomeMessage  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Document statuses.
const (
	DocumentPending = "pending"
	DocumentReady   = "ready"
	DocumentFailed  = "failed"
)

type Document struct {
	ID         string
	PersonaID  string
	Title      string
	Content    string
	Source     string
	Tags       string // JSON array stored as text
	ChunkCount int
	Status     string
	LastError  string
	CreatedAt  time.Time
}

// Interaction records one chat turn and how it was resolved.
type Interaction struct {
	ID          string
	PersonaID   string
	CreatedAt   time.Time
	UserMessage string
	Outcome     string // "answered", "redirected", "ungrounded"
	Reply       string
	Reason      string
	SourceIDs   string // JSON array stored as text
	DurationMS  int64
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
