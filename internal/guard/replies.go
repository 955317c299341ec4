package guard

import (
	"fmt"
	"strings"

	"github.com/kalambet/simkit/internal/personality"
)

// knowledgePhrases mark messages that ask for an explanation of a specific
// fact, which a Sim should not improvise without retrieved material.
var knowledgePhrases = []string{
	"what is",
	"what are",
	"what does",
	"how does",
	"how do",
	"how to",
	"explain",
	"tell me about",
	"describe",
	"define",
	"walk me through",
	"details on",
	"why does",
}

// RequiresSpecificKnowledge reports whether msg asks for an explanation.
func RequiresSpecificKnowledge(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range knowledgePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// OffTopicReply is sent when the classifier judges a message out of scope.
func OffTopicReply(m personality.Model) string {
	return fmt.Sprintf("I'm the Sim of %s, so I keep to what %s knows and works on. "+
		"That question is outside what I can help with here. Feel free to ask about %s instead.",
		m.CoreIdentity.Name, m.CoreIdentity.Name, topics(m))
}

// UngroundedReply is sent when a relevant question needs specific knowledge
// and nothing in the persona's knowledge base supports an answer.
func UngroundedReply(m personality.Model) string {
	return fmt.Sprintf("That's a good question, but I don't have enough of %s's own material on it to give you a reliable answer. "+
		"You could ask about %s instead, or leave your contact details and %s can follow up directly.",
		m.CoreIdentity.Name, topics(m), m.CoreIdentity.Name)
}

func topics(m personality.Model) string {
	areas := m.ExpertiseProfile.PrimaryAreas
	switch len(areas) {
	case 0:
		return "my areas of expertise"
	case 1:
		return areas[0]
	default:
		return strings.Join(areas[:len(areas)-1], ", ") + " or " + areas[len(areas)-1]
	}
}
