package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/simkit/internal/ingest"
	"github.com/kalambet/simkit/internal/storage"
)

const maxIngestBodySize = 10 << 20 // 10MB
const maxURLFetchSize = 5 << 20    // 5MB

// Document upload types.
const (
	DocumentText = "text"
	DocumentFile = "file"
	DocumentURL  = "url"
)

// DocumentRequest uploads knowledge for a persona. Content holds plain text
// for type "text" and base64 data for type "file"; URL is fetched for type
// "url".
type DocumentRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	Content     string   `json:"content"`
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
}

// documentView is the JSON form of a stored document without its text.
type documentView struct {
	ID         string    `json:"id"`
	PersonaID  string    `json:"persona_id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Tags       []string  `json:"tags"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDocumentView(d storage.Document) documentView {
	var tags []string
	if err := json.Unmarshal([]byte(d.Tags), &tags); err != nil || tags == nil {
		tags = []string{}
	}
	return documentView{
		ID:         d.ID,
		PersonaID:  d.PersonaID,
		Title:      d.Title,
		Source:     d.Source,
		Tags:       tags,
		Status:     d.Status,
		ChunkCount: d.ChunkCount,
		LastError:  d.LastError,
		CreatedAt:  d.CreatedAt,
	}
}

func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		var req DocumentRequest
		if !decodeBody(w, r, maxIngestBodySize, &req) {
			return
		}
		if req.Type == "" {
			req.Type = DocumentText
			if req.Content == "" && req.URL != "" {
				req.Type = DocumentURL
			}
		}

		var name, contentType string
		var data []byte
		switch req.Type {
		case DocumentText:
			if req.Content == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
				return
			}
			name, contentType, data = req.Filename, "text/plain", []byte(req.Content)
		case DocumentFile:
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil || len(decoded) == 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "content must be non-empty base64 data")
				return
			}
			name, contentType, data = req.Filename, req.ContentType, decoded
			if req.Title == "" {
				req.Title = req.Filename
			}
		case DocumentURL:
			fetched, ct, err := fetchURL(r.Context(), deps.HTTPClient, req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "%v", err)
				return
			}
			name, contentType, data = urlFilename(req.URL), ct, fetched
			if req.Title == "" {
				req.Title = req.URL
			}
			if req.Source == "" {
				req.Source = req.URL
			}
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type must be %q, %q or %q", DocumentText, DocumentFile, DocumentURL)
			return
		}

		text, err := ingest.ExtractText(name, contentType, data)
		if errors.Is(err, ingest.ErrUnsupportedContent) {
			httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "could not extract text: %v", err)
			return
		}
		if strings.TrimSpace(text) == "" {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "document has no text")
			return
		}

		tagsJSON := "[]"
		if len(req.Tags) > 0 {
			b, err := json.Marshal(req.Tags)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to marshal tags: %v", err)
				return
			}
			tagsJSON = string(b)
		}
		if req.Source == "" {
			req.Source = req.Type
		}

		doc := storage.Document{
			ID:        uuid.New().String(),
			PersonaID: p.ID,
			Title:     req.Title,
			Content:   text,
			Source:    req.Source,
			Tags:      tagsJSON,
			Status:    storage.DocumentPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveDocumentWithJob(doc, ingest.NewJob(doc.ID)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     doc.ID,
			"status": doc.Status,
		})
	}
}

func handleReingestDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Store.RequeueDocument(id, ingest.NewJob(id))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		case errors.Is(err, storage.ErrDocumentQueued):
			httpError(w, http.StatusConflict, "conflict", "document is already queued for ingestion")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue document: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     id,
			"status": storage.DocumentPending,
		})
	}
}

func fetchURL(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", errors.New("url must be an absolute http(s) URL")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLFetchSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read url response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func urlFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		docs, err := deps.Store.ListDocuments(p.ID, parseIntParam(r, "limit", 50, 500))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		out := make([]documentView, len(docs))
		for i, d := range docs {
			out[i] = toDocumentView(d)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteDocument(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
