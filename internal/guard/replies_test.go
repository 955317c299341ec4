package guard

import (
	"strings"
	"testing"

	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
)

func TestRequiresSpecificKnowledge(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Explain the estate tax exemption", true},
		{"what is a 1031 exchange?", true},
		{"Can you walk me through probate?", true},
		{"Tell me about your practice", true},
		{"Why does the IRS care?", true},
		{"Hi Jane!", false},
		{"I'd like to schedule a call", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := RequiresSpecificKnowledge(tt.msg); got != tt.want {
			t.Errorf("RequiresSpecificKnowledge(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestReplies(t *testing.T) {
	m := personality.Build(profile.Persona{Name: "Jane Doe", Expertise: "tax law, estate planning"})

	off := OffTopicReply(m)
	ungrounded := UngroundedReply(m)
	for name, reply := range map[string]string{"off-topic": off, "ungrounded": ungrounded} {
		if !strings.Contains(reply, "Jane Doe") {
			t.Errorf("%s reply missing name: %q", name, reply)
		}
		if !strings.Contains(reply, "ask about tax law or estate planning instead") {
			t.Errorf("%s reply missing topic redirect: %q", name, reply)
		}
	}
	if off == ungrounded {
		t.Error("off-topic and ungrounded replies should differ")
	}
}

func TestReplies_NoAreas(t *testing.T) {
	m := personality.Build(profile.Persona{Name: "Sam"})
	if reply := OffTopicReply(m); !strings.Contains(reply, "ask about my areas of expertise instead") {
		t.Errorf("reply = %q", reply)
	}
}

func TestTopics(t *testing.T) {
	m := personality.Model{}
	m.ExpertiseProfile.PrimaryAreas = []string{"a", "b", "c"}
	if got := topics(m); got != "a, b or c" {
		t.Errorf("topics = %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt("Name: Jane Doe", "hello")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "[Persona]\nName: Jane Doe") {
		t.Errorf("system prompt missing persona block: %q", msgs[0].Content)
	}
	if strings.Contains(BuildPrompt("", "hello")[0].Content, "[Persona]") {
		t.Error("empty persona context should not add a block")
	}
}
