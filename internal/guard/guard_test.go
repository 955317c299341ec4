package guard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/simkit/internal/engine"
)

// mockChatter implements Chatter for testing.
type mockChatter struct {
	response string
	err      error
	delay    time.Duration
	calls    int
	messages []engine.Message
	schema   *engine.Schema
}

func (m *mockChatter) Chat(ctx context.Context, _ string, messages []engine.Message, jsonSchema *engine.Schema) (string, error) {
	m.calls++
	m.messages = messages
	m.schema = jsonSchema
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func TestCheckRelevance_NotRelevant(t *testing.T) {
	mock := &mockChatter{response: `{"is_relevant":false,"reason":"weather is unrelated to tax law"}`}
	v := New(mock, "llama3.2", 0).CheckRelevance(context.Background(), "Name: Jane Doe\nExpertise: tax law", "What's the weather today?")

	if v.IsRelevant {
		t.Error("IsRelevant = true, want false")
	}
	if v.Reason != "weather is unrelated to tax law" {
		t.Errorf("Reason = %q", v.Reason)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
	if mock.schema == nil || len(mock.schema.Required) != 2 {
		t.Errorf("schema = %+v, want verdict schema", mock.schema)
	}
	if !strings.Contains(mock.messages[0].Content, "tax law") {
		t.Error("persona context missing from classifier prompt")
	}
	if last := mock.messages[len(mock.messages)-1]; last.Role != engine.RoleUser || last.Content != "What's the weather today?" {
		t.Errorf("last message = %+v", last)
	}
}

func TestCheckRelevance_Relevant(t *testing.T) {
	mock := &mockChatter{response: "```json\n{\"is_relevant\":true,\"reason\":\"estate question\"}\n```"}
	v := New(mock, "m", 0).CheckRelevance(context.Background(), "", "How should I plan my estate?")
	if !v.IsRelevant || v.Reason != "estate question" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestCheckRelevance_FailOpen(t *testing.T) {
	tests := []struct {
		name string
		mock *mockChatter
	}{
		{"transport error", &mockChatter{err: errors.New("connection refused")}},
		{"malformed json", &mockChatter{response: "not json {{"}},
		{"missing field", &mockChatter{response: `{"reason":"dunno"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(tt.mock, "m", 0).CheckRelevance(context.Background(), "", "hello there")
			if !v.IsRelevant || v.Reason != ReasonUnknown {
				t.Errorf("verdict = %+v, want fail-open", v)
			}
		})
	}
}

func TestCheckRelevance_Timeout(t *testing.T) {
	mock := &mockChatter{response: `{"is_relevant":false,"reason":"x"}`, delay: 2 * time.Second}
	start := time.Now()
	v := New(mock, "m", 50*time.Millisecond).CheckRelevance(context.Background(), "", "question")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("CheckRelevance took %v, want it bounded by the timeout", elapsed)
	}
	if !v.IsRelevant || v.Reason != ReasonUnknown {
		t.Errorf("verdict = %+v, want fail-open on timeout", v)
	}
}

func TestCheckRelevance_BlankMessageSkipsCall(t *testing.T) {
	mock := &mockChatter{response: `{"is_relevant":false,"reason":"x"}`}
	v := New(mock, "m", 0).CheckRelevance(context.Background(), "", "  \n")
	if !v.IsRelevant {
		t.Error("blank message should be relevant")
	}
	if mock.calls != 0 {
		t.Errorf("calls = %d, want 0", mock.calls)
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	if g := New(&mockChatter{}, "m", 0); g.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", g.timeout, DefaultTimeout)
	}
}
