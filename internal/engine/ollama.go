package engine

import (
	"context"

	"github.com/kalambet/simkit/internal/ollama"
)

var _ Engine = (*OllamaEngine)(nil)

// OllamaEngine adapts ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL)}
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Chat(ctx, model, msgs, toOllamaSchema(jsonSchema))
}

func (e *OllamaEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{Status: p.Status, Total: p.Total, Completed: p.Completed})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}

// WarmUp loads model into memory. See EnsureReady.
func (e *OllamaEngine) WarmUp(ctx context.Context, model string) error {
	return e.client.WarmUp(ctx, model)
}

func toOllamaSchema(s *Schema) *ollama.Schema {
	if s == nil {
		return nil
	}
	out := &ollama.Schema{Type: s.Type, Required: s.Required}
	if s.Properties != nil {
		out.Properties = make(map[string]ollama.SchemaProperty, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = ollama.SchemaProperty{Type: v.Type, Description: v.Description}
		}
	}
	return out
}
