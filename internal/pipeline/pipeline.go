// Package pipeline runs one chat turn of a persona's Sim: relevance check,
// knowledge retrieval, grounding check, prompt composition and completion.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/guard"
	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/retrieval"
)

// Turn outcomes.
const (
	OutcomeAnswered   = "answered"
	OutcomeRedirected = "redirected"
	OutcomeUngrounded = "ungrounded"
)

// Fixed replies used when the completion cannot be shown as is.
const (
	FallbackGreeting = "Hi there! Thanks for reaching out. What would you like to talk about?"
	FallbackApology  = "Sorry, I'm having trouble answering right now. Please try again in a moment."
)

// Defaults for Options fields left at zero.
const (
	DefaultThreshold = 0.7
	DefaultTopK      = 5
)

// RelevanceChecker classifies a message against a persona context.
type RelevanceChecker interface {
	CheckRelevance(ctx context.Context, personaContext, userMessage string) guard.Verdict
}

// KnowledgeRetriever finds a persona's knowledge chunks for a query.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, personaID, query string, threshold float32, limit int) ([]retrieval.ContextChunk, error)
}

// Completer produces the Sim's reply from the composed system prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []engine.Message, message string) (string, error)
}

// Options tunes a Pipeline.
type Options struct {
	// GuardDisabled skips the relevance check; every message is relevant.
	GuardDisabled    bool
	Threshold        float32
	TopK             int
	MaxContextTokens int
}

// Result describes how a turn was resolved.
type Result struct {
	Outcome      string                   `json:"outcome"`
	Reply        string                   `json:"reply"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
	Verdict      guard.Verdict            `json:"verdict"`
	Sources      []retrieval.ContextChunk `json:"sources,omitempty"`
	Duration     time.Duration            `json:"duration"`
}

// SourceIDs returns the IDs of the chunks the answer was grounded on.
func (r Result) SourceIDs() []string {
	return retrieval.ChunkIDs(r.Sources)
}

// Pipeline wires the turn's collaborators. The retriever and completer may
// be nil: without a retriever every turn has zero sources, and without a
// completer Respond behaves like Prepare.
type Pipeline struct {
	guard     RelevanceChecker
	retriever KnowledgeRetriever
	composer  *composer.Composer
	completer Completer
	opts      Options
}

// New creates a Pipeline, filling zero Options with defaults.
func New(g RelevanceChecker, r KnowledgeRetriever, c *composer.Composer, comp Completer, opts Options) *Pipeline {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = composer.DefaultMaxContextTokens
	}
	if c == nil {
		c = composer.New(nil)
	}
	return &Pipeline{guard: g, retriever: r, composer: c, completer: comp, opts: opts}
}

// Prepare resolves message up to the point of completion. For a redirected
// or ungrounded turn the Result carries the final reply; for an answered
// turn it carries the system prompt to complete with and an empty reply.
func (p *Pipeline) Prepare(ctx context.Context, persona profile.Persona, message string) Result {
	start := time.Now()
	res := p.prepare(ctx, persona, message)
	res.Duration = time.Since(start)
	return res
}

// Respond runs the full turn. It never fails: classifier and retrieval
// errors degrade, an empty completion becomes FallbackGreeting and a
// completion error becomes FallbackApology.
func (p *Pipeline) Respond(ctx context.Context, persona profile.Persona, history []engine.Message, message string) Result {
	start := time.Now()
	res := p.prepare(ctx, persona, message)
	if res.Outcome == OutcomeAnswered && p.completer != nil {
		res.Reply = p.complete(ctx, persona, res.SystemPrompt, history, message)
	}
	res.Duration = time.Since(start)

	slog.Debug("chat turn resolved",
		"persona_id", persona.ID,
		"outcome", res.Outcome,
		"sources", len(res.Sources),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (p *Pipeline) prepare(ctx context.Context, persona profile.Persona, message string) Result {
	model := personality.Build(persona)

	verdict := guard.Verdict{IsRelevant: true, Reason: "relevance check disabled"}
	if !p.opts.GuardDisabled && p.guard != nil {
		verdict = p.guard.CheckRelevance(ctx, profile.Summary(persona), message)
	}
	if !verdict.IsRelevant {
		return Result{Outcome: OutcomeRedirected, Reply: guard.OffTopicReply(model), Verdict: verdict}
	}

	sources := p.retrieve(ctx, persona.ID, message)
	if len(sources) == 0 && guard.RequiresSpecificKnowledge(message) {
		return Result{Outcome: OutcomeUngrounded, Reply: guard.UngroundedReply(model), Verdict: verdict}
	}

	knowledge := composer.FormatKnowledge(sources, p.opts.MaxContextTokens)
	return Result{
		Outcome:      OutcomeAnswered,
		SystemPrompt: p.composer.Compose(model, knowledge),
		Verdict:      verdict,
		Sources:      sources,
	}
}

func (p *Pipeline) retrieve(ctx context.Context, personaID, message string) []retrieval.ContextChunk {
	if p.retriever == nil {
		return nil
	}
	chunks, err := p.retriever.Retrieve(ctx, personaID, message, p.opts.Threshold, p.opts.TopK)
	if err != nil {
		slog.Warn("retrieval failed, answering without context", "persona_id", personaID, "error", err)
		return nil
	}
	return chunks
}

func (p *Pipeline) complete(ctx context.Context, persona profile.Persona, system string, history []engine.Message, message string) string {
	reply, err := p.completer.Complete(ctx, system, history, message)
	if err != nil {
		slog.Error("completion failed", "persona_id", persona.ID, "error", err)
		return FallbackApology
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return FallbackGreeting
	}
	return reply
}
