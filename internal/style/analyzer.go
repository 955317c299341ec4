package style

import (
	"strings"
)

// textStats holds the raw counts every dimension is classified from.
type textStats struct {
	words       int
	sentences   int
	exclaims    int
	questions   int
	terminals   int
	formal      int
	casual      int
	technical   int
	academic    int
	emotion     int
	humor       int
	tokens      int
	firstPerson int
}

func (s textStats) avgSentenceWords() float64 {
	if s.sentences == 0 {
		return float64(s.words)
	}
	return float64(s.words) / float64(s.sentences)
}

func (s textStats) expressiveScore() int { return s.exclaims + s.emotion }

func (s textStats) questionRatio() float64 {
	if s.terminals == 0 {
		return 0
	}
	return float64(s.questions) / float64(s.terminals)
}

func (s textStats) personalRatio() float64 {
	if s.tokens == 0 {
		return 0
	}
	return float64(s.firstPerson) / float64(s.tokens)
}

func collect(text string) textStats {
	norm := normalize(text)
	s := textStats{
		words:     len(strings.Fields(norm)),
		exclaims:  strings.Count(norm, "!"),
		questions: strings.Count(norm, "?"),
		formal:    countMarkers(norm, formalMarkers),
		casual:    countMarkers(norm, casualMarkers),
		technical: countMarkers(norm, technicalMarkers),
		academic:  countMarkers(norm, academicMarkers),
		emotion:   countMarkers(norm, emotionMarkers),
		humor:     countMarkers(norm, humorMarkers),
	}
	s.terminals = s.exclaims + s.questions + strings.Count(norm, ".")

	for _, seg := range strings.FieldsFunc(norm, isTerminal) {
		if strings.TrimSpace(seg) != "" {
			s.sentences++
		}
	}

	toks := tokens(norm)
	s.tokens = len(toks)
	for _, t := range toks {
		if firstPersonTokens[t] {
			s.firstPerson++
		}
	}
	return s
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

// VocabularyRules decides vocabulary_level. Order matters.
var VocabularyRules = []Rule[textStats]{
	{Label: "technical", Match: func(s textStats) bool { return s.technical >= 2 && s.technical > s.academic }},
	{Label: "academic", Match: func(s textStats) bool { return s.academic >= 2 }},
	{Label: "casual", Match: func(s textStats) bool { return s.casual >= 2 }},
}

var formalityRules = []Rule[textStats]{
	{Label: "formal", Match: func(s textStats) bool { return s.formal > s.casual+1 }},
	{Label: "casual", Match: func(s textStats) bool { return s.casual > s.formal+1 }},
}

var complexityRules = []Rule[textStats]{
	{Label: "complex", Match: func(s textStats) bool { return s.avgSentenceWords() > 20 }},
	{Label: "simple", Match: func(s textStats) bool { return s.avgSentenceWords() < 10 }},
}

var expressivenessRules = []Rule[textStats]{
	{Label: "very_expressive", Match: func(s textStats) bool { return s.expressiveScore() >= 5 }},
	{Label: "expressive", Match: func(s textStats) bool { return s.expressiveScore() >= 3 }},
	{Label: "moderate", Match: func(s textStats) bool { return s.expressiveScore() >= 1 }},
}

var humorRules = []Rule[textStats]{
	{Label: "frequent", Match: func(s textStats) bool { return s.humor >= 4 }},
	{Label: "moderate", Match: func(s textStats) bool { return s.humor >= 2 }},
	{Label: "subtle", Match: func(s textStats) bool { return s.humor == 1 }},
}

var technicalRules = []Rule[textStats]{
	{Label: "extensive", Match: func(s textStats) bool { return s.technical >= 6 }},
	{Label: "frequent", Match: func(s textStats) bool { return s.technical >= 3 }},
	{Label: "some", Match: func(s textStats) bool { return s.technical >= 1 }},
}

var lengthRules = []Rule[textStats]{
	{Label: "extensive", Match: func(s textStats) bool { return s.words > 300 }},
	{Label: "detailed", Match: func(s textStats) bool { return s.words > 150 }},
	{Label: "moderate", Match: func(s textStats) bool { return s.words > 50 }},
}

var sharingRules = []Rule[textStats]{
	{Label: "very_open", Match: func(s textStats) bool { return s.personalRatio() >= 0.12 }},
	{Label: "open", Match: func(s textStats) bool { return s.personalRatio() >= 0.07 }},
	{Label: "some", Match: func(s textStats) bool { return s.personalRatio() >= 0.03 }},
}

// questionRules classify a share of question-terminated units and are used
// both for punctuation ratios and for per-scenario shares.
var questionRules = []Rule[float64]{
	{Label: "very_frequent", Match: func(r float64) bool { return r >= 0.5 }},
	{Label: "frequent", Match: func(r float64) bool { return r >= 0.3 }},
	{Label: "occasional", Match: func(r float64) bool { return r >= 0.1 }},
}

var scenarioLengthRules = []Rule[float64]{
	{Label: "extensive", Match: func(avg float64) bool { return avg > 150 }},
	{Label: "detailed", Match: func(avg float64) bool { return avg > 80 }},
	{Label: "moderate", Match: func(avg float64) bool { return avg > 30 }},
}

// Analyze derives a style profile from free text. Blank input yields Default.
func Analyze(text string) Profile {
	if strings.TrimSpace(text) == "" {
		return Default()
	}
	s := collect(text)
	return Profile{
		VocabularyLevel:         Classify(VocabularyRules, s, "professional"),
		SentenceComplexity:      Classify(complexityRules, s, "moderate"),
		FormalityLevel:          Classify(formalityRules, s, "neutral"),
		EmotionalExpressiveness: Classify(expressivenessRules, s, "reserved"),
		HumorUsage:              Classify(humorRules, s, "none"),
		TechnicalLanguage:       Classify(technicalRules, s, "minimal"),
		QuestionAsking:          Classify(questionRules, s.questionRatio(), "rare"),
		AvgResponseLength:       Classify(lengthRules, s, "concise"),
		PersonalSharing:         Classify(sharingRules, s, "minimal"),
	}
}

// AnalyzeScenarios derives a style profile from the expected responses of
// interaction scenarios. Response length and question asking are measured
// per response rather than over the joined text.
func AnalyzeScenarios(scenarios []Scenario) Profile {
	responses := nonBlankResponses(scenarios)
	if len(responses) == 0 {
		return Default()
	}

	p := Analyze(strings.Join(responses, "\n"))
	st := SummarizeScenarios(scenarios)

	p.AvgResponseLength = Classify(scenarioLengthRules, st.AvgWords, "concise")
	byShare := Classify(questionRules, st.QuestionShare, "rare")
	if rank(DimQuestions, byShare) > rank(DimQuestions, p.QuestionAsking) {
		p.QuestionAsking = byShare
	}
	return p
}

// ScenarioStats summarizes the non-blank expected responses of a scenario set.
type ScenarioStats struct {
	Count            int
	AvgWords         float64
	QuestionShare    float64
	FirstPersonShare float64
}

// SummarizeScenarios computes per-response statistics. Blank responses are
// ignored; a set with no responses yields the zero value.
func SummarizeScenarios(scenarios []Scenario) ScenarioStats {
	responses := nonBlankResponses(scenarios)
	if len(responses) == 0 {
		return ScenarioStats{}
	}
	var words, questions, personal int
	for _, r := range responses {
		words += len(strings.Fields(r))
		if strings.HasSuffix(r, "?") {
			questions++
		}
		if hasFirstPerson(r) {
			personal++
		}
	}
	n := float64(len(responses))
	return ScenarioStats{
		Count:            len(responses),
		AvgWords:         float64(words) / n,
		QuestionShare:    float64(questions) / n,
		FirstPersonShare: float64(personal) / n,
	}
}

func nonBlankResponses(scenarios []Scenario) []string {
	var out []string
	for _, sc := range scenarios {
		if r := strings.TrimSpace(sc.ExpectedResponse); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// rank is the position of v on d's scale, or -1 when v is not a value of d.
func rank(d Dimension, v string) int {
	for i, allowed := range Values[d] {
		if allowed == v {
			return i
		}
	}
	return -1
}
