package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SIMKIT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SIMKIT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "engine.backend", typ: kString, env: "SIMKIT_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SIMKIT_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "SIMKIT_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.fast_model", typ: kString, env: "SIMKIT_OLLAMA_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.FastModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "SIMKIT_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "openai.base_url", typ: kString, env: "SIMKIT_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.api_key", typ: kString, env: "SIMKIT_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.chat_model", typ: kString, env: "SIMKIT_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.fast_model", typ: kString, env: "SIMKIT_OPENAI_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.FastModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "SIMKIT_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "log.level", typ: kString, env: "SIMKIT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "SIMKIT_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.threshold", typ: kFloat, env: "SIMKIT_RETRIEVAL_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.Threshold },
	},
	{
		key: "guard.enabled", typ: kBool, env: "SIMKIT_GUARD_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Guard.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Guard.Enabled },
	},
	{
		key: "guard.timeout", typ: kDuration, env: "SIMKIT_GUARD_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Guard.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Guard.Timeout },
	},
	{
		key: "prompt.max_context_tokens", typ: kInt, env: "SIMKIT_PROMPT_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Prompt.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Prompt.MaxContextTokens },
	},
	{
		key: "prompt.guidance_file", typ: kString, env: "SIMKIT_PROMPT_GUIDANCE_FILE",
		apply:   func(cfg *Config, v any) { cfg.Prompt.GuidanceFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompt.GuidanceFile },
	},
	{
		key: "ingest.chunk_size", typ: kInt, env: "SIMKIT_INGEST_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ChunkSize },
	},
	{
		key: "ingest.chunk_overlap", typ: kInt, env: "SIMKIT_INGEST_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ChunkOverlap },
	},
}

// parseValue converts raw text to the Go type of s.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			slog.Warn("invalid config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			slog.Warn("invalid environment value, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
