// Package personality turns a persona profile into the structured model the
// prompt composer renders.
package personality

import "github.com/kalambet/simkit/internal/style"

type CoreIdentity struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Role       string `json:"role"`
	Location   string `json:"location,omitempty"`
	Background string `json:"background"`
}

type ExpertiseProfile struct {
	PrimaryAreas    []string `json:"primary_areas"`
	ExperienceLevel int      `json:"experience_level"`
	ConfidenceAreas []string `json:"confidence_areas"`
	Interests       []string `json:"interests"`
}

type ConversationalPatterns struct {
	WelcomeStyle        string   `json:"welcome_style"`
	ResponsePatterns    []string `json:"response_patterns"`
	TopicPreferences    []string `json:"topic_preferences"`
	InteractionApproach string   `json:"interaction_approach"`
}

type SelfAwareness struct {
	IdentityStatement  string   `json:"identity_statement"`
	RepresentationRole string   `json:"representation_role"`
	Boundaries         []string `json:"boundaries"`
}

// Model is everything the prompt needs to know about how a persona thinks,
// talks and where its limits are.
type Model struct {
	CoreIdentity           CoreIdentity           `json:"core_identity"`
	CommunicationStyle     style.Profile          `json:"communication_style"`
	ExpertiseProfile       ExpertiseProfile       `json:"expertise_profile"`
	ConversationalPatterns ConversationalPatterns `json:"conversational_patterns"`
	SelfAwareness          SelfAwareness          `json:"self_awareness"`
}

// Welcome styles.
const (
	WelcomeCasualFriendly   = "casual_friendly"
	WelcomeFormal           = "formal_welcoming"
	WelcomeEnthusiastic     = "enthusiastic"
	WelcomeWarmProfessional = "warm_professional"
)

// Interaction approaches.
const (
	ApproachConsultative = "professional_consultative"
	ApproachEngaging     = "enthusiastic_engaging"
	ApproachExploratory  = "curious_exploratory"
	ApproachBalanced     = "balanced_helpful"
)
