package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/storage"
	"github.com/kalambet/simkit/internal/style"
)

// NewMCPServer creates an MCP server exposing persona analysis, prompt
// composition, message screening and knowledge recall.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	if deps.Composer == nil {
		deps.Composer = composer.New(nil)
	}

	s := server.NewMCPServer(
		"simkit",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("simkit builds AI personas (Sims) from a person's profile and writing, and answers visitors in their voice."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_style",
			mcp.WithDescription("Analyze a writing sample and return its nine-dimension communication style profile."),
			mcp.WithString("text", mcp.Description("Writing sample to analyze"), mcp.Required()),
		),
		mcpAnalyzeStyle(),
	)

	s.AddTool(
		mcp.NewTool("compose_prompt",
			mcp.WithDescription("Compose the system prompt a persona's Sim answers with."),
			mcp.WithString("persona_id", mcp.Description("Persona ID"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional knowledge context to embed in the prompt")),
		),
		mcpComposePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("check_message",
			mcp.WithDescription("Check whether a visitor message is within a persona's scope and grounded in its knowledge, without generating a reply."),
			mcp.WithString("persona_id", mcp.Description("Persona ID"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Visitor message"), mcp.Required()),
		),
		mcpCheckMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search a persona's knowledge base and return relevant chunks."),
			mcp.WithString("persona_id", mcp.Description("Persona ID"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"personas://list",
			"Personas",
			mcp.WithResourceDescription("All personas with their ID, name and title"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePersonas(deps),
	)

	return s
}

func mcpAnalyzeStyle() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		return mcpJSON(style.Analyze(text))
	}
}

func mcpPersona(deps Deps, req mcp.CallToolRequest) (profile.Persona, *mcp.CallToolResult) {
	id, err := req.RequireString("persona_id")
	if err != nil || id == "" {
		return profile.Persona{}, mcpError("persona_id is required")
	}
	p, err := deps.Personas.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		return profile.Persona{}, mcpError(fmt.Sprintf("persona %s not found", id))
	}
	if err != nil {
		return profile.Persona{}, mcpError(fmt.Sprintf("failed to load persona: %v", err))
	}
	return p, nil
}

func mcpComposePrompt(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, errResult := mcpPersona(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		knowledge := req.GetString("context", "")
		return mcpText(deps.Composer.Compose(personality.Build(p), knowledge)), nil
	}
}

func mcpCheckMessage(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Pipeline == nil {
			return mcpError("message checks are not available"), nil
		}
		p, errResult := mcpPersona(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		res := deps.Pipeline.Prepare(ctx, p, message)
		return mcpJSON(struct {
			Outcome  string   `json:"outcome"`
			Relevant bool     `json:"relevant"`
			Reason   string   `json:"reason,omitempty"`
			Reply    string   `json:"reply,omitempty"`
			Sources  []string `json:"source_ids"`
		}{
			Outcome:  res.Outcome,
			Relevant: res.Verdict.IsRelevant,
			Reason:   res.Verdict.Reason,
			Reply:    res.Reply,
			Sources:  append([]string{}, res.SourceIDs()...),
		})
	}
}

func mcpRecall(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Retriever == nil {
			return mcpError("recall is not available: no embedding model configured"), nil
		}
		p, errResult := mcpPersona(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, p.ID, query, deps.Threshold, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(chunks)
	}
}

func mcpResourcePersonas(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		personas, err := deps.Personas.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list personas: %w", err)
		}

		type personaSummary struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Title string `json:"title,omitempty"`
		}
		summaries := make([]personaSummary, len(personas))
		for i, p := range personas {
			summaries[i] = personaSummary{ID: p.ID, Name: p.Name, Title: p.Title}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal personas: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
