package guard

import (
	"fmt"

	"github.com/kalambet/simkit/internal/engine"
)

const systemPromptTemplate = `You are a relevance classifier for a digital persona. The persona answers questions only within its professional expertise, background and stated interests. Decide whether the user's message is something this persona should answer. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Greetings, small talk about the persona's work, and requests to get in touch are relevant.
- Questions about the persona's expertise, experience, skills or interests are relevant.
- Requests unrelated to the persona (weather, news, general trivia, homework, coding help for an unrelated field) are not relevant.
- When in doubt, mark the message as relevant.`

// BuildPrompt constructs the chat messages for a relevance check.
func BuildPrompt(personaContext, userMessage string) []engine.Message {
	system := systemPromptTemplate
	if personaContext != "" {
		system += fmt.Sprintf("\n\n[Persona]\n%s", personaContext)
	}
	return []engine.Message{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: userMessage},
	}
}
