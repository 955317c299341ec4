package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/simkit/internal/engine"
)

// EngineCompleter completes chat turns with an engine.Engine chat model.
type EngineCompleter struct {
	engine engine.Engine
	model  string
}

// NewEngineCompleter creates a Completer for the given chat model.
func NewEngineCompleter(e engine.Engine, model string) *EngineCompleter {
	return &EngineCompleter{engine: e, model: model}
}

// Complete sends the system prompt, prior history and the new message. System
// messages in history are dropped so the composed prompt is the only one.
func (c *EngineCompleter) Complete(ctx context.Context, systemPrompt string, history []engine.Message, message string) (string, error) {
	msgs := make([]engine.Message, 0, len(history)+2)
	msgs = append(msgs, engine.Message{Role: engine.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		if m.Role == engine.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, engine.Message{Role: engine.RoleUser, Content: message})

	reply, err := c.engine.Chat(ctx, c.model, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("completing chat turn: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
