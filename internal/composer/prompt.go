package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/simkit/internal/personality"
	"github.com/kalambet/simkit/internal/style"
)

// Section headers. The knowledge header only appears when retrieved context
// is supplied.
const (
	headerIdentity    = "IDENTITY"
	headerStyle       = "COMMUNICATION STYLE"
	headerContext     = "RELEVANT CONTEXT"
	headerKnowledge   = "KNOWLEDGE"
	headerInteraction = "HOW YOU INTERACT"
	headerAwareness   = "SELF-AWARENESS AND BOUNDARIES"
	headerScheduling  = "SCHEDULING AND CONTACT PROTOCOL"
)

const maxTopicPreferences = 3

var approachDescriptions = map[string]string{
	personality.ApproachConsultative: "listen carefully, then advise like a trusted professional",
	personality.ApproachEngaging:     "bring energy and warmth to every exchange",
	personality.ApproachExploratory:  "ask questions to understand what the person really needs",
	personality.ApproachBalanced:     "be helpful and direct while staying personable",
}

// Composer renders personality models into system prompts.
type Composer struct {
	guidance style.Guidance
}

// New creates a Composer using the given phrase library. A nil library
// falls back to the built-in defaults.
func New(g style.Guidance) *Composer {
	if g == nil {
		g = style.DefaultGuidance()
	}
	return &Composer{guidance: g}
}

// Compose builds the layered system prompt for m. Layers appear in a fixed
// order (identity, personality, knowledge, interaction, awareness) separated
// by a blank line; empty layers are left out.
func (c *Composer) Compose(m personality.Model, knowledgeContext string) string {
	layers := []string{
		identityLayer(m),
		c.personalityLayer(m.CommunicationStyle),
		knowledgeLayer(m, knowledgeContext),
		interactionLayer(m.ConversationalPatterns),
		awarenessLayer(m),
	}
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n\n")
}

func identityLayer(m personality.Model) string {
	id := m.CoreIdentity
	var sb strings.Builder
	sb.WriteString(headerIdentity + "\n")

	sb.WriteString("You are " + id.Name)
	if id.Title != "" {
		sb.WriteString(", " + id.Title)
	}
	sb.WriteString(".\n")
	if id.Role != "" && id.Role != id.Title {
		fmt.Fprintf(&sb, "Profession: %s.\n", id.Role)
	}
	if id.Location != "" {
		fmt.Fprintf(&sb, "Based in %s.\n", id.Location)
	}
	if id.Background != "" {
		sb.WriteString(id.Background + "\n")
	}
	sb.WriteString(m.SelfAwareness.IdentityStatement + "\n")
	sb.WriteString(m.SelfAwareness.RepresentationRole + "\n")
	writeBullets(&sb, m.SelfAwareness.Boundaries)
	return sb.String()
}

func (c *Composer) personalityLayer(p style.Profile) string {
	lines := c.guidance.Lines(p)
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(headerStyle + "\n")
	writeBullets(&sb, lines)
	return sb.String()
}

func knowledgeLayer(m personality.Model, knowledgeContext string) string {
	var sb strings.Builder
	if ctx := strings.TrimSpace(knowledgeContext); ctx != "" {
		sb.WriteString(headerContext + "\n")
		sb.WriteString(ctx + "\n\n")
		sb.WriteString("Use this information naturally, as things you already know. " +
			"Do not say that you looked it up, and never refer to it as a database, document store or search result.")
		return sb.String()
	}

	sb.WriteString(headerKnowledge + "\n")
	if areas := m.ExpertiseProfile.PrimaryAreas; len(areas) > 0 {
		fmt.Fprintf(&sb, "Draw on your expertise in %s and on your professional experience. ", strings.Join(areas, ", "))
	} else {
		sb.WriteString("Draw on your stated expertise and professional experience. ")
	}
	sb.WriteString("If you are not sure about a specific fact, say so instead of guessing.")
	return sb.String()
}

func interactionLayer(cp personality.ConversationalPatterns) string {
	var sb strings.Builder
	sb.WriteString(headerInteraction + "\n")
	if len(cp.ResponsePatterns) > 0 {
		sb.WriteString("Response patterns:\n")
		writeBullets(&sb, cp.ResponsePatterns)
	}
	if topics := cp.TopicPreferences; len(topics) > 0 {
		if len(topics) > maxTopicPreferences {
			topics = topics[:maxTopicPreferences]
		}
		sb.WriteString("Topics:\n")
		writeBullets(&sb, topics)
	}
	if cp.InteractionApproach != "" {
		fmt.Fprintf(&sb, "Interaction approach: %s", cp.InteractionApproach)
		if d := approachDescriptions[cp.InteractionApproach]; d != "" {
			sb.WriteString(" (" + d + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func awarenessLayer(m personality.Model) string {
	name := m.CoreIdentity.Name
	var sb strings.Builder
	sb.WriteString(headerAwareness + "\n")
	sb.WriteString(m.SelfAwareness.IdentityStatement + "\n")
	writeBullets(&sb, m.SelfAwareness.Boundaries)
	sb.WriteString("\n" + headerScheduling + "\n")
	writeBullets(&sb, []string{
		"Never propose, suggest or confirm specific meeting times or dates.",
		fmt.Sprintf("If someone wants to meet or talk with %s, ask for their contact information and how and when they prefer to be reached.", name),
		fmt.Sprintf("Tell them %s will follow up with them directly.", name),
	})
	return sb.String()
}

func writeBullets(sb *strings.Builder, items []string) {
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
}
