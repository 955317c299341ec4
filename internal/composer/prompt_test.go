package composer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/style"
)

func janeModel() personality.Model {
	return personality.Build(profile.Persona{
		Name:            "Jane Doe",
		Title:           "Founder",
		Profession:      "Tax attorney",
		Location:        "Denver",
		YearsExperience: 12,
		Expertise:       "tax law, estate planning",
		Interests:       []string{"hiking", "jazz"},
		WritingSample:   "Hey! I'd love to chat about this, it's super exciting!!",
	})
}

// section returns the text between header and the next header in order, or
// to the end of the prompt.
func section(t *testing.T, prompt, header, next string) string {
	t.Helper()
	start := strings.Index(prompt, header)
	if start < 0 {
		t.Fatalf("prompt missing %q header:\n%s", header, prompt)
	}
	rest := prompt[start:]
	if next == "" {
		return rest
	}
	end := strings.Index(rest, next)
	if end < 0 {
		t.Fatalf("prompt missing %q header after %q", next, header)
	}
	return rest[:end]
}

func TestCompose_LayerOrder(t *testing.T) {
	prompt := New(nil).Compose(janeModel(), "")

	headers := []string{headerIdentity, headerStyle, headerKnowledge, headerInteraction, headerAwareness, headerScheduling}
	last := -1
	for _, h := range headers {
		idx := strings.Index(prompt, h)
		if idx < 0 {
			t.Fatalf("missing header %q", h)
		}
		if idx <= last {
			t.Errorf("header %q out of order", h)
		}
		last = idx
	}
	if !strings.Contains(prompt, "\n\n"+headerStyle) {
		t.Error("layers should be separated by a blank line")
	}
}

func TestCompose_NameInIdentityAndAwareness(t *testing.T) {
	prompt := New(nil).Compose(janeModel(), "")

	identity := section(t, prompt, headerIdentity, headerStyle)
	awareness := section(t, prompt, headerAwareness, "")
	if !strings.Contains(identity, "Jane Doe") {
		t.Errorf("identity layer missing name:\n%s", identity)
	}
	if !strings.Contains(awareness, "Jane Doe") {
		t.Errorf("awareness layer missing name:\n%s", awareness)
	}
	if !strings.Contains(identity, "Based in Denver.") {
		t.Errorf("identity layer missing location:\n%s", identity)
	}
}

func TestCompose_OmitsMissingLocation(t *testing.T) {
	m := personality.Build(profile.Persona{Name: "Sam"})
	prompt := New(nil).Compose(m, "")
	if strings.Contains(prompt, "Based in") {
		t.Errorf("prompt should not mention a location:\n%s", prompt)
	}
	if !strings.Contains(prompt, "You are Sam.\n") {
		t.Errorf("prompt should introduce Sam without a title:\n%s", prompt)
	}
}

func TestCompose_KnowledgeContext(t *testing.T) {
	c := New(nil)

	for _, ctx := range []string{"", "   \n\t"} {
		prompt := c.Compose(janeModel(), ctx)
		if strings.Contains(prompt, headerContext) {
			t.Errorf("context %q: prompt should not contain %q", ctx, headerContext)
		}
		if !strings.Contains(prompt, "Draw on your expertise in tax law, estate planning") {
			t.Errorf("context %q: missing expertise instruction", ctx)
		}
	}

	prompt := c.Compose(janeModel(), "The 2024 estate exemption is $13.61M.")
	knowledge := section(t, prompt, headerContext, headerInteraction)
	if !strings.Contains(knowledge, "The 2024 estate exemption is $13.61M.") {
		t.Errorf("context not embedded literally:\n%s", knowledge)
	}
	if !strings.Contains(knowledge, "naturally") {
		t.Errorf("missing instruction to use context naturally:\n%s", knowledge)
	}
	if strings.Contains(prompt, headerKnowledge+"\n") {
		t.Error("generic knowledge layer should be replaced by the context layer")
	}
}

func TestCompose_StyleGuidance(t *testing.T) {
	prompt := New(nil).Compose(janeModel(), "")
	styleLayer := section(t, prompt, headerStyle, headerKnowledge)

	if !strings.Contains(styleLayer, "Express enthusiasm") {
		t.Errorf("style layer should ask for enthusiasm:\n%s", styleLayer)
	}
	if !strings.Contains(styleLayer, "- Maintain a friendly, informal tone.") {
		t.Errorf("style layer missing casual tone bullet:\n%s", styleLayer)
	}
	if got := strings.Count(styleLayer, "\n- "); got != len(style.Dimensions) {
		t.Errorf("style layer has %d bullets, want %d", got, len(style.Dimensions))
	}
}

func TestCompose_CustomGuidance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.yaml")
	if err := os.WriteFile(path, []byte("formality_level:\n  casual: Talk like a neighbour.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	g, err := style.LoadGuidance(path)
	if err != nil {
		t.Fatalf("LoadGuidance: %v", err)
	}
	prompt := New(g).Compose(janeModel(), "")
	if !strings.Contains(prompt, "- Talk like a neighbour.") {
		t.Errorf("custom phrase not used:\n%s", prompt)
	}
}

func TestCompose_TopicPreferencesCapped(t *testing.T) {
	prompt := New(nil).Compose(janeModel(), "")
	interaction := section(t, prompt, headerInteraction, headerAwareness)

	// Two areas and two interests give four preferences; only three render.
	if !strings.Contains(interaction, "Enjoys discussing hiking") {
		t.Errorf("expected third preference:\n%s", interaction)
	}
	if strings.Contains(interaction, "Enjoys discussing jazz") {
		t.Errorf("fourth preference should be dropped:\n%s", interaction)
	}
	if !strings.Contains(interaction, "Interaction approach: "+personality.ApproachEngaging) {
		t.Errorf("missing approach label:\n%s", interaction)
	}
}

func TestCompose_SchedulingProtocol(t *testing.T) {
	prompt := New(nil).Compose(janeModel(), "")
	protocol := section(t, prompt, headerScheduling, "")

	for _, want := range []string{"Never propose", "contact information", "Jane Doe will follow up"} {
		if !strings.Contains(protocol, want) {
			t.Errorf("protocol missing %q:\n%s", want, protocol)
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c := New(nil)
	m := janeModel()
	if c.Compose(m, "ctx") != c.Compose(m, "ctx") {
		t.Error("Compose should be deterministic")
	}
}
