package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/pipeline"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
)

// ChatRequest is one visitor turn with the prior conversation.
type ChatRequest struct {
	Message string           `json:"message"`
	History []engine.Message `json:"history"`
}

// ChatResponse is the Sim's reply and how it was reached.
type ChatResponse struct {
	InteractionID string                   `json:"interaction_id,omitempty"`
	Outcome       string                   `json:"outcome"`
	Reply         string                   `json:"reply"`
	Relevant      bool                     `json:"relevant"`
	Reason        string                   `json:"reason,omitempty"`
	Sources       []retrieval.ContextChunk `json:"sources,omitempty"`
	DurationMS    int64                    `json:"duration_ms"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		var req ChatRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		res := deps.Pipeline.Respond(r.Context(), p, req.History, req.Message)
		writeJSON(w, http.StatusOK, ChatResponse{
			InteractionID: recordInteraction(deps.Store, p, req.Message, res),
			Outcome:       res.Outcome,
			Reply:         res.Reply,
			Relevant:      res.Verdict.IsRelevant,
			Reason:        res.Verdict.Reason,
			Sources:       res.Sources,
			DurationMS:    res.Duration.Milliseconds(),
		})
	}
}

// recordInteraction stores the turn and returns its ID, or "" when it could
// not be stored. A storage failure never fails the chat turn itself.
func recordInteraction(store *storage.Store, p profile.Persona, message string, res pipeline.Result) string {
	if store == nil {
		return ""
	}
	sourceIDs, err := json.Marshal(res.SourceIDs())
	if err != nil {
		sourceIDs = []byte("[]")
	}
	ix := storage.Interaction{
		ID:          uuid.New().String(),
		PersonaID:   p.ID,
		CreatedAt:   time.Now().UTC(),
		UserMessage: message,
		Outcome:     res.Outcome,
		Reply:       res.Reply,
		Reason:      res.Verdict.Reason,
		SourceIDs:   string(sourceIDs),
		DurationMS:  res.Duration.Milliseconds(),
	}
	if err := store.SaveInteraction(ix); err != nil {
		slog.Warn("failed to store interaction", "persona_id", p.ID, "error", err)
		return ""
	}
	return ix.ID
}

// interactionView is the JSON form of a stored interaction.
type interactionView struct {
	ID          string    `json:"id"`
	PersonaID   string    `json:"persona_id"`
	CreatedAt   time.Time `json:"created_at"`
	UserMessage string    `json:"user_message"`
	Outcome     string    `json:"outcome"`
	Reply       string    `json:"reply"`
	Reason      string    `json:"reason,omitempty"`
	SourceIDs   []string  `json:"source_ids"`
	DurationMS  int64     `json:"duration_ms"`
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPersona(deps, w, r)
		if !ok {
			return
		}
		rows, err := deps.Store.ListInteractions(p.ID, parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		out := make([]interactionView, len(rows))
		for i, ix := range rows {
			var ids []string
			if err := json.Unmarshal([]byte(ix.SourceIDs), &ids); err != nil || ids == nil {
				ids = []string{}
			}
			out[i] = interactionView{
				ID:          ix.ID,
				PersonaID:   ix.PersonaID,
				CreatedAt:   ix.CreatedAt,
				UserMessage: ix.UserMessage,
				Outcome:     ix.Outcome,
				Reply:       ix.Reply,
				Reason:      ix.Reason,
				SourceIDs:   ids,
				DurationMS:  ix.DurationMS,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
