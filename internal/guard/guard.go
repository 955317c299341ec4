// Package guard decides whether a chat message is something the persona's Sim
// should answer, and supplies the in-character redirects used when it is not.
package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/simkit/internal/engine"
)

// DefaultTimeout bounds a single relevance classification call.
const DefaultTimeout = 10 * time.Second

// ReasonUnknown is the verdict reason used whenever classification fails.
const ReasonUnknown = "unable to determine relevance"

// Chatter is the subset of engine.Engine the guard needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Verdict is the classifier's decision for one message.
type Verdict struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}

// Guard classifies messages with a small, fast chat model.
type Guard struct {
	client  Chatter
	model   string
	timeout time.Duration
}

// New creates a Guard. A non-positive timeout uses DefaultTimeout.
func New(client Chatter, model string, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{client: client, model: model, timeout: timeout}
}

// CheckRelevance asks the classifier whether userMessage is within the scope
// described by personaContext. It fails open: any transport error, timeout
// or unparseable answer yields a relevant verdict with ReasonUnknown, so a
// flaky classifier never blocks a conversation. A blank message is relevant
// without a call.
func (g *Guard) CheckRelevance(ctx context.Context, personaContext, userMessage string) Verdict {
	if strings.TrimSpace(userMessage) == "" {
		return Verdict{IsRelevant: true, Reason: "empty message"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Chat(ctx, g.model, BuildPrompt(personaContext, userMessage), verdictSchema())
	if err != nil {
		slog.Warn("relevance check failed", "error", err)
		return failOpen()
	}

	v, ok := parseVerdict(raw)
	if !ok {
		slog.Warn("unparseable relevance verdict", "response", raw)
		return failOpen()
	}
	return v
}

func failOpen() Verdict {
	return Verdict{IsRelevant: true, Reason: ReasonUnknown}
}

// parseVerdict accepts the classifier's JSON, tolerating a surrounding
// markdown code fence. A missing is_relevant field counts as unparseable.
func parseVerdict(raw string) (Verdict, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var out struct {
		IsRelevant *bool  `json:"is_relevant"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err != nil || out.IsRelevant == nil {
		return Verdict{}, false
	}
	return Verdict{IsRelevant: *out.IsRelevant, Reason: out.Reason}, true
}

func verdictSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"is_relevant": {Type: "boolean", Description: "Whether the message is within the persona's professional scope"},
			"reason":      {Type: "string", Description: "One short sentence explaining the decision"},
		},
		Required: []string{"is_relevant", "reason"},
	}
}
