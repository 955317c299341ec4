package engine

import (
	"fmt"
	"strings"
)

// Supported values of the engine.backend config key.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend       string
	OllamaBaseURL string
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

// Detect returns the engine for the configured backend. An empty backend
// means Ollama.
func Detect(cfg DetectConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("engine backend %q requires openai.api_key", BackendOpenAI)
		}
		return NewOpenAIEngine(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}
