package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/storage"
	"github.com/kalambet/simkit/internal/style"
)

// AnalyzeRequest asks for the style profile of free text or of scenario
// answers. Scenarios win when both are present.
type AnalyzeRequest struct {
	Text      string           `json:"text"`
	Scenarios []style.Scenario `json:"scenarios"`
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	if len(req.Scenarios) > 0 {
		writeJSON(w, http.StatusOK, style.AnalyzeScenarios(req.Scenarios))
		return
	}
	writeJSON(w, http.StatusOK, style.Analyze(req.Text))
}

func handleCreatePersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p profile.Persona
		if !decodeBody(w, r, maxRequestBodySize, &p) {
			return
		}
		p.ID = ""
		saved, err := deps.Personas.Save(p)
		if errors.Is(err, profile.ErrInvalid) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save persona: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleListPersonas(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personas, err := deps.Personas.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list personas: %v", err)
			return
		}
		if personas == nil {
			personas = []profile.Persona{}
		}
		writeJSON(w, http.StatusOK, personas)
	}
}

// loadPersona fetches the {id} persona, writing a 404 or 500 on failure.
func loadPersona(deps Deps, w http.ResponseWriter, r *http.Request) (profile.Persona, bool) {
	p, err := deps.Personas.Get(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "persona not found")
		return profile.Persona{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load persona: %v", err)
		return profile.Persona{}, false
	}
	return p, true
}

func handleGetPersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := loadPersona(deps, w, r); ok {
			writeJSON(w, http.StatusOK, p)
		}
	}
}

func handleUpdatePersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		var p profile.Persona
		if !decodeBody(w, r, maxRequestBodySize, &p) {
			return
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt

		saved, err := deps.Personas.Save(p)
		if errors.Is(err, profile.ErrInvalid) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save persona: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleDeletePersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Personas.Delete(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "persona not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete persona: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handlePersonaStyle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := loadPersona(deps, w, r); ok {
			writeJSON(w, http.StatusOK, personality.Build(p).CommunicationStyle)
		}
	}
}

func handlePersonaModel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := loadPersona(deps, w, r); ok {
			writeJSON(w, http.StatusOK, personality.Build(p))
		}
	}
}

func handlePersonaPrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		prompt := deps.Composer.Compose(personality.Build(p), r.URL.Query().Get("context"))
		writeJSON(w, http.StatusOK, map[string]string{"system_prompt": prompt})
	}
}
