package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeOllama serves the subset of the Ollama API the engine uses and records
// the last request body per path.
type fakeOllama struct {
	models []string
	bodies map[string]map[string]any
}

func newFakeOllama(t *testing.T, models ...string) (*fakeOllama, *OllamaEngine) {
	t.Helper()
	f := &fakeOllama{models: models, bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewOllamaEngine(srv.URL)
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Method == http.MethodPost {
		json.NewDecoder(r.Body).Decode(&body)
		f.bodies[r.URL.Path] = body
	}
	enc := json.NewEncoder(w)
	switch r.URL.Path {
	case "/api/tags":
		type entry struct {
			Name string `json:"name"`
		}
		out := struct {
			Models []entry `json:"models"`
		}{}
		for _, m := range f.models {
			out.Models = append(out.Models, entry{Name: m})
		}
		enc.Encode(out)
	case "/api/chat":
		reply := "Happy to help with your estate plan."
		if body["format"] != nil {
			reply = `{"is_relevant":true,"reason":"estate planning"}`
		}
		enc.Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": reply}})
	case "/api/embed":
		enc.Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}}})
	case "/api/pull":
		enc.Encode(map[string]any{"status": "pulling manifest"})
		enc.Encode(map[string]any{"status": "downloading", "total": 1000, "completed": 1000})
		enc.Encode(map[string]any{"status": "success"})
	default:
		http.NotFound(w, r)
	}
}

func TestOllamaEngine_Chat(t *testing.T) {
	f, e := newFakeOllama(t)

	got, err := e.Chat(context.Background(), "llama3.2", []Message{
		{Role: RoleSystem, Content: "You are Jane Doe."},
		{Role: RoleUser, Content: "Can you help with a trust?"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "Happy to help with your estate plan." {
		t.Errorf("reply = %q", got)
	}
	msgs, _ := f.bodies["/api/chat"]["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	if _, ok := f.bodies["/api/chat"]["format"]; ok {
		t.Error("format should be omitted without a schema")
	}
}

func TestOllamaEngine_ChatSchema(t *testing.T) {
	f, e := newFakeOllama(t)

	schema := &Schema{
		Type:       "object",
		Properties: map[string]SchemaProperty{"is_relevant": {Type: "boolean"}},
		Required:   []string{"is_relevant"},
	}
	got, err := e.Chat(context.Background(), "llama3.2", nil, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != `{"is_relevant":true,"reason":"estate planning"}` {
		t.Errorf("reply = %q", got)
	}
	format, _ := f.bodies["/api/chat"]["format"].(map[string]any)
	if format["type"] != "object" {
		t.Errorf("format = %v, want converted schema", format)
	}
	props, _ := format["properties"].(map[string]any)
	if _, ok := props["is_relevant"]; !ok {
		t.Errorf("schema properties = %v", props)
	}
}

func TestOllamaEngine_Embed(t *testing.T) {
	f, e := newFakeOllama(t)

	vec, err := e.Embed(context.Background(), "nomic-embed-text", "estate planning basics")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2, 0.3}, vec); diff != "" {
		t.Errorf("vector mismatch (-want +got):\n%s", diff)
	}
	if f.bodies["/api/embed"]["model"] != "nomic-embed-text" {
		t.Errorf("model = %v", f.bodies["/api/embed"]["model"])
	}
}

func TestOllamaEngine_Models(t *testing.T) {
	_, e := newFakeOllama(t, "llama3.2:latest", "nomic-embed-text:latest")
	ctx := context.Background()

	if !e.IsRunning(ctx) {
		t.Fatal("IsRunning() = false, want true")
	}
	names, err := e.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("ListModels = %v", names)
	}
	for name, want := range map[string]bool{"llama3.2": true, "nomic-embed-text": true, "llama3": false} {
		if got := e.HasModel(ctx, name); got != want {
			t.Errorf("HasModel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestOllamaEngine_IsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	if NewOllamaEngine(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestOllamaEngine_PullModel(t *testing.T) {
	_, e := newFakeOllama(t)

	var statuses []string
	err := e.PullModel(context.Background(), "llama3.2", func(p PullProgress) {
		statuses = append(statuses, p.Status)
	})
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if diff := cmp.Diff([]string{"pulling manifest", "downloading", "success"}, statuses); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestOllamaEngine_PullModelNilCallback(t *testing.T) {
	_, e := newFakeOllama(t)
	if err := e.PullModel(context.Background(), "llama3.2", nil); err != nil {
		t.Fatalf("PullModel: %v", err)
	}
}
