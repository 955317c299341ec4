package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/storage"
)

// personaModelPrefix namespaces persona IDs in the OpenAI model field.
const personaModelPrefix = "persona/"

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personas, err := deps.Personas.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list models: %v", err)
			return
		}
		models := make([]openai.Model, len(personas))
		for i, p := range personas {
			models[i] = openai.Model{
				ID:        personaModelPrefix + p.ID,
				Object:    "model",
				CreatedAt: p.CreatedAt.Unix(),
				OwnedBy:   "simkit",
			}
		}
		writeJSON(w, http.StatusOK, openai.ModelsList{Models: models})
	}
}

// handleChatCompletions answers an OpenAI chat request as the persona named
// by the model field. The last message must come from the user; earlier
// messages become the conversation history.
func handleChatCompletions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if req.Stream {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "streaming is not supported")
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role != openai.ChatMessageRoleUser {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "the last message must have role %q", openai.ChatMessageRoleUser)
			return
		}

		personaID, ok := strings.CutPrefix(req.Model, personaModelPrefix)
		if !ok || personaID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "model must be %q followed by a persona id", personaModelPrefix)
			return
		}
		p, err := deps.Personas.Get(personaID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "model_not_found", "model %q does not exist", req.Model)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load persona: %v", err)
			return
		}

		history := make([]engine.Message, 0, len(req.Messages)-1)
		for _, m := range req.Messages[:len(req.Messages)-1] {
			history = append(history, engine.Message{Role: m.Role, Content: messageText(m)})
		}
		message := messageText(last)

		res := deps.Pipeline.Respond(r.Context(), p, history, message)
		recordInteraction(deps.Store, p, message, res)

		promptTokens := 0
		for _, m := range req.Messages {
			promptTokens += composer.EstimateTokens(messageText(m))
		}
		completionTokens := composer.EstimateTokens(res.Reply)

		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			ID:      "chatcmpl-" + uuid.New().String(),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: res.Reply,
				},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      promptTokens + completionTokens,
			},
		})
	}
}

// messageText flattens a message's text parts.
func messageText(m openai.ChatCompletionMessage) string {
	if len(m.MultiContent) == 0 {
		return m.Content
	}
	var parts []string
	for _, p := range m.MultiContent {
		if p.Type == openai.ChatMessagePartTypeText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
