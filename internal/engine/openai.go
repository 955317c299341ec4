package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var _ Engine = (*OpenAIEngine)(nil)

// ErrPullUnsupported is returned by engines that cannot download models.
var ErrPullUnsupported = errors.New("model pull is not supported by this backend")

// OpenAIEngine talks to any server implementing the OpenAI chat and
// embeddings API (OpenAI itself, vLLM, LM Studio, llama.cpp server).
type OpenAIEngine struct {
	client *openai.Client
}

// NewOpenAIEngine creates an engine for the given base URL, for example
// "https://api.openai.com/v1". An empty baseURL uses the OpenAI default.
func NewOpenAIEngine(baseURL, apiKey string) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEngine{client: openai.NewClientWithConfig(cfg)}
}

// Chat sends a chat completion. A non-nil jsonSchema switches the request to
// JSON object mode and appends the schema to the system instructions, since
// not every compatible server accepts strict json_schema response formats.
func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)+1),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if jsonSchema != nil {
		schema, err := json.Marshal(jsonSchema)
		if err != nil {
			return "", fmt.Errorf("encoding schema: %w", err)
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		req.Messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Respond only with a JSON object matching this schema: " + string(schema),
		}}, req.Messages...)
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *OpenAIEngine) ListModels(ctx context.Context) ([]string, error) {
	list, err := e.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.ID
	}
	return names, nil
}

func (e *OpenAIEngine) HasModel(ctx context.Context, name string) bool {
	names, err := e.ListModels(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(names, name)
}

// PullModel always fails; hosted models cannot be downloaded.
func (e *OpenAIEngine) PullModel(_ context.Context, name string, _ func(PullProgress)) error {
	return fmt.Errorf("pulling %s: %w", name, ErrPullUnsupported)
}
