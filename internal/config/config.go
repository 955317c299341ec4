package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Engine    EngineConfig
	Ollama    ModelConfig
	OpenAI    ModelConfig
	Log       LogConfig
	Retrieval RetrievalConfig
	Guard     GuardConfig
	Prompt    PromptConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type EngineConfig struct {
	Backend string
}

// ModelConfig describes one inference backend. APIKey is only used by the
// OpenAI-compatible backend.
type ModelConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	FastModel  string
	EmbedModel string
}

type LogConfig struct {
	Level string
}

type RetrievalConfig struct {
	TopK      int
	Threshold float64
}

type GuardConfig struct {
	Enabled bool
	Timeout time.Duration
}

type PromptConfig struct {
	MaxContextTokens int
	GuidanceFile     string
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4100},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Engine:  EngineConfig{Backend: BackendOllama},
		Ollama: ModelConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			FastModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		OpenAI: ModelConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			FastModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Log:       LogConfig{Level: "info"},
		Retrieval: RetrievalConfig{TopK: 5, Threshold: 0.7},
		Guard:     GuardConfig{Enabled: true, Timeout: 10 * time.Second},
		Prompt:    PromptConfig{MaxContextTokens: 2000},
		Ingest:    IngestConfig{ChunkSize: 1000, ChunkOverlap: 150},
	}
}

// Models returns the model settings of the selected backend.
func (c Config) Models() ModelConfig {
	if c.Engine.Backend == BackendOpenAI {
		return c.OpenAI
	}
	return c.Ollama
}

// Load reads configuration in increasing order of precedence: built-in
// defaults, the JSON file at $XDG_CONFIG_HOME/simkit/config.json, and SIMKIT_*
// environment variables. A .env file in the working directory is loaded into
// the environment first; variables already set are not overridden.
//
// The OpenAI API key is read from the environment or the secret store and is
// only required when engine.backend is "openai".
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), NewSecretStore())
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadWith(b ConfigBackend, secrets SecretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		if key, err := secrets.Get(secretOpenAIKey); err == nil && key != "" {
			cfg.OpenAI.APIKey = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Engine.Backend {
	case BackendOllama:
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. " +
				"Set it via environment variable SIMKIT_OPENAI_API_KEY or the secret store")
		}
	default:
		return fmt.Errorf("invalid engine.backend %q: want %q or %q", c.Engine.Backend, BackendOllama, BackendOpenAI)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be between 0 and 1, got %v", c.Retrieval.Threshold)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
