package personality

import (
	"fmt"
	"strings"

	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/style"
)

// WelcomeRules classify a persona's welcome message. First match wins.
var WelcomeRules = []style.Rule[string]{
	{Label: WelcomeCasualFriendly, Match: func(msg string) bool {
		return style.ContainsWord(msg, "hey") || style.ContainsWord(msg, "hi there")
	}},
	{Label: WelcomeFormal, Match: func(msg string) bool {
		return style.ContainsWord(msg, "hello") && style.ContainsWord(msg, "pleased")
	}},
	{Label: WelcomeEnthusiastic, Match: func(msg string) bool {
		return strings.Contains(msg, "!")
	}},
}

// ApproachRules pick the interaction approach from the style profile. First
// match wins.
var ApproachRules = []style.Rule[style.Profile]{
	{Label: ApproachConsultative, Match: func(p style.Profile) bool {
		return p.FormalityLevel == "formal" || p.FormalityLevel == "very_formal"
	}},
	{Label: ApproachEngaging, Match: func(p style.Profile) bool {
		return p.EmotionalExpressiveness == "expressive" || p.EmotionalExpressiveness == "very_expressive"
	}},
	{Label: ApproachExploratory, Match: func(p style.Profile) bool {
		return p.QuestionAsking == "frequent" || p.QuestionAsking == "very_frequent"
	}},
}

const defaultResponsePattern = "Responds in a balanced, helpful way"

// patternRules are evaluated independently; every match contributes its
// phrase.
var patternRules = []style.Rule[style.ScenarioStats]{
	{Label: "Gives thorough, detailed explanations", Match: func(s style.ScenarioStats) bool { return s.AvgWords > 100 }},
	{Label: "Keeps answers short and to the point", Match: func(s style.ScenarioStats) bool { return s.AvgWords < 30 }},
	{Label: "Often turns the question back with a follow-up", Match: func(s style.ScenarioStats) bool { return s.QuestionShare > 0.3 }},
	{Label: "Draws on personal experience and anecdotes", Match: func(s style.ScenarioStats) bool { return s.FirstPersonShare > 0.5 }},
}

// Build derives the personality model for p. It is a pure function of the
// persona.
func Build(p profile.Persona) Model {
	var sp style.Profile
	if len(p.Scenarios) > 0 {
		sp = style.AnalyzeScenarios(p.Scenarios)
	} else {
		sp = style.Analyze(p.WritingSample)
	}

	areas := primaryAreas(p)
	return Model{
		CoreIdentity:       coreIdentity(p),
		CommunicationStyle: sp,
		ExpertiseProfile: ExpertiseProfile{
			PrimaryAreas:    areas,
			ExperienceLevel: p.YearsExperience,
			ConfidenceAreas: nonBlank(p.Skills),
			Interests:       nonBlank(p.Interests),
		},
		ConversationalPatterns: ConversationalPatterns{
			WelcomeStyle:        style.Classify(WelcomeRules, p.WelcomeMessage, WelcomeWarmProfessional),
			ResponsePatterns:    responsePatterns(p.Scenarios),
			TopicPreferences:    topicPreferences(areas, nonBlank(p.Interests)),
			InteractionApproach: style.Classify(ApproachRules, sp, ApproachBalanced),
		},
		SelfAwareness: selfAwareness(p.Name),
	}
}

func coreIdentity(p profile.Persona) CoreIdentity {
	role := strings.TrimSpace(p.Profession)
	if role == "" {
		role = strings.TrimSpace(p.Title)
	}

	var pieces []string
	if b := strings.TrimSpace(p.Background); b != "" {
		pieces = append(pieces, strings.TrimRight(b, ". "))
	}
	if p.YearsExperience > 0 {
		pieces = append(pieces, fmt.Sprintf("%d years of professional experience", p.YearsExperience))
	}
	if e := strings.TrimSpace(p.Education); e != "" {
		pieces = append(pieces, "Educated at "+strings.TrimRight(e, ". "))
	}
	var background string
	if len(pieces) > 0 {
		background = strings.Join(pieces, ". ") + "."
	}

	return CoreIdentity{
		Name:       strings.TrimSpace(p.Name),
		Title:      strings.TrimSpace(p.Title),
		Role:       role,
		Location:   strings.TrimSpace(p.Location),
		Background: background,
	}
}

func primaryAreas(p profile.Persona) []string {
	areas := nonBlank(strings.FieldsFunc(p.Expertise, func(r rune) bool {
		return r == ',' || r == ';'
	}))
	if len(areas) == 0 {
		if prof := strings.TrimSpace(p.Profession); prof != "" {
			areas = []string{prof}
		}
	}
	return areas
}

func responsePatterns(scenarios []style.Scenario) []string {
	st := style.SummarizeScenarios(scenarios)
	if st.Count == 0 {
		return []string{defaultResponsePattern}
	}
	var out []string
	for _, r := range patternRules {
		if r.Match(st) {
			out = append(out, r.Label)
		}
	}
	if len(out) == 0 {
		out = []string{defaultResponsePattern}
	}
	return out
}

func topicPreferences(areas, interests []string) []string {
	out := make([]string, 0, len(areas)+len(interests))
	for _, a := range areas {
		out = append(out, "Speaks with authority on "+a)
	}
	for _, i := range interests {
		out = append(out, "Enjoys discussing "+i)
	}
	return out
}

func selfAwareness(name string) SelfAwareness {
	name = strings.TrimSpace(name)
	identity := fmt.Sprintf("You are the Sim of %s: an AI that speaks in %s's voice, drawing on their knowledge and experience.", name, name)
	role := fmt.Sprintf("You represent %s in conversations with people who want their perspective, "+
		"but you are not %s and should never claim to be the real person.", name, name)
	return SelfAwareness{
		IdentityStatement:  identity,
		RepresentationRole: role,
		Boundaries: []string{
			fmt.Sprintf("Do not schedule, propose or confirm meetings on behalf of %s.", name),
			fmt.Sprintf("You may collect a visitor's contact details so %s can follow up.", name),
			fmt.Sprintf("Aim to match %s's style and views faithfully; do not invent opinions they have not expressed.", name),
			fmt.Sprintf("Refer sensitive, personal or high-stakes matters to %s directly.", name),
		},
	}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
