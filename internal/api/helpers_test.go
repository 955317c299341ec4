package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/pipeline"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
)

const testToken = "test-token"

// mockResponder returns a fixed result and records what it was asked.
type mockResponder struct {
	mu       sync.Mutex
	result   pipeline.Result
	messages []string
	history  [][]engine.Message
}

func (m *mockResponder) Prepare(_ context.Context, _ profile.Persona, message string) pipeline.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return m.result
}

func (m *mockResponder) Respond(_ context.Context, _ profile.Persona, history []engine.Message, message string) pipeline.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	m.history = append(m.history, history)
	return m.result
}

type mockRecaller struct {
	chunks    []retrieval.ContextChunk
	err       error
	personaID string
}

func (m *mockRecaller) Retrieve(_ context.Context, personaID, _ string, _ float32, _ int) ([]retrieval.ContextChunk, error) {
	m.personaID = personaID
	return m.chunks, m.err
}

func newTestDeps(t *testing.T) (Deps, *mockResponder) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	responder := &mockResponder{result: pipeline.Result{Outcome: pipeline.OutcomeAnswered, Reply: "Hi!"}}
	return Deps{
		Store:     store,
		Personas:  profile.NewManager(store),
		Pipeline:  responder,
		Composer:  composer.New(nil),
		Retriever: &mockRecaller{},
		Vectors:   retrieval.NewSQLiteStore(store.DB()),
		Threshold: 0.7,
		Token:     testToken,
	}, responder
}

func createPersona(t *testing.T, deps Deps) profile.Persona {
	t.Helper()
	p, err := deps.Personas.Save(profile.Persona{
		Name:          "Jane Doe",
		Title:         "Founder",
		Profession:    "Tax attorney",
		Expertise:     "tax law, estate planning",
		WritingSample: "Hey! I'd love to chat about this, it's super exciting!!",
	})
	if err != nil {
		t.Fatalf("saving persona: %v", err)
	}
	return p
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return v
}
