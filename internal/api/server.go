// Package api exposes personas, chat and document ingestion over HTTP, an
// OpenAI-compatible chat endpoint and an MCP server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/pipeline"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Personas is the persona CRUD surface, satisfied by *profile.Manager.
type Personas interface {
	Get(id string) (profile.Persona, error)
	Save(p profile.Persona) (profile.Persona, error)
	List() ([]profile.Persona, error)
	Delete(id string) error
}

// Responder runs chat turns, satisfied by *pipeline.Pipeline.
type Responder interface {
	Prepare(ctx context.Context, persona profile.Persona, message string) pipeline.Result
	Respond(ctx context.Context, persona profile.Persona, history []engine.Message, message string) pipeline.Result
}

// Recaller searches a persona's knowledge, satisfied by *retrieval.Retriever.
type Recaller interface {
	Retrieve(ctx context.Context, personaID, query string, threshold float32, limit int) ([]retrieval.ContextChunk, error)
}

// VectorCounter reports how many knowledge chunks are stored, satisfied by
// *retrieval.SQLiteStore.
type VectorCounter interface {
	Count(ctx context.Context, personaID string) (int, error)
}

// Deps holds the collaborators shared by the HTTP and MCP surfaces.
type Deps struct {
	Store      *storage.Store
	Personas   Personas
	Pipeline   Responder
	Composer   *composer.Composer
	Retriever  Recaller      // optional; recall is unavailable when nil
	Vectors    VectorCounter // optional; /status omits the chunk count when nil
	Threshold  float32  // minimum recall score
	Token      string
	HTTPClient *http.Client // used to fetch URL documents
}

// NewHandler returns the full HTTP API. Everything except /health requires
// the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Composer == nil {
		deps.Composer = composer.New(nil)
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/status", handleStatus(deps))
		r.Post("/analyze", handleAnalyze)

		r.Route("/personas", func(r chi.Router) {
			r.Post("/", handleCreatePersona(deps))
			r.Get("/", handleListPersonas(deps))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleGetPersona(deps))
				r.Put("/", handleUpdatePersona(deps))
				r.Delete("/", handleDeletePersona(deps))
				r.Get("/style", handlePersonaStyle(deps))
				r.Get("/model", handlePersonaModel(deps))
				r.Get("/prompt", handlePersonaPrompt(deps))
				r.Post("/chat", handleChat(deps))
				r.Get("/interactions", handleListInteractions(deps))
				r.Post("/documents", handleUploadDocument(deps))
				r.Get("/documents", handleListDocuments(deps))
			})
		})
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
		r.Post("/documents/{id}/reingest", handleReingestDocument(deps))

		r.Get("/v1/models", handleModels(deps))
		r.Post("/v1/chat/completions", handleChatCompletions(deps))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// StatusResponse summarizes what the server holds.
type StatusResponse struct {
	Personas int            `json:"personas"`
	Chunks   *int           `json:"chunks,omitempty"`
	Jobs     map[string]int `json:"jobs"`
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personas, err := deps.Personas.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list personas: %v", err)
			return
		}
		jobs, err := deps.Store.CountJobs()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}
		res := StatusResponse{Personas: len(personas), Jobs: jobs}
		if deps.Vectors != nil {
			n, err := deps.Vectors.Count(r.Context(), "")
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to count chunks: %v", err)
				return
			}
			res.Chunks = &n
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
