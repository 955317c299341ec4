package style

// Dimension names a single axis of a Profile. The string values double as
// the keys of the guidance library.
type Dimension string

const (
	DimVocabulary      Dimension = "vocabulary_level"
	DimComplexity      Dimension = "sentence_complexity"
	DimFormality       Dimension = "formality_level"
	DimExpressiveness  Dimension = "emotional_expressiveness"
	DimHumor           Dimension = "humor_usage"
	DimTechnical       Dimension = "technical_language"
	DimQuestions       Dimension = "question_asking"
	DimResponseLength  Dimension = "avg_response_length"
	DimPersonalSharing Dimension = "personal_sharing"
)

// Dimensions lists every dimension in the order prompts render them.
var Dimensions = []Dimension{
	DimVocabulary,
	DimComplexity,
	DimFormality,
	DimExpressiveness,
	DimHumor,
	DimTechnical,
	DimQuestions,
	DimResponseLength,
	DimPersonalSharing,
}

// Values lists the closed set of categories for each dimension, from the
// lowest to the highest end of the scale.
var Values = map[Dimension][]string{
	DimVocabulary:      {"casual", "professional", "academic", "technical"},
	DimComplexity:      {"simple", "moderate", "complex"},
	DimFormality:       {"very_casual", "casual", "neutral", "formal", "very_formal"},
	DimExpressiveness:  {"reserved", "moderate", "expressive", "very_expressive"},
	DimHumor:           {"none", "subtle", "moderate", "frequent"},
	DimTechnical:       {"minimal", "some", "frequent", "extensive"},
	DimQuestions:       {"rare", "occasional", "frequent", "very_frequent"},
	DimResponseLength:  {"concise", "moderate", "detailed", "extensive"},
	DimPersonalSharing: {"minimal", "some", "open", "very_open"},
}

// Profile is the nine-dimension summary of how a persona writes.
type Profile struct {
	VocabularyLevel         string `json:"vocabulary_level" yaml:"vocabulary_level"`
	SentenceComplexity      string `json:"sentence_complexity" yaml:"sentence_complexity"`
	FormalityLevel          string `json:"formality_level" yaml:"formality_level"`
	EmotionalExpressiveness string `json:"emotional_expressiveness" yaml:"emotional_expressiveness"`
	HumorUsage              string `json:"humor_usage" yaml:"humor_usage"`
	TechnicalLanguage       string `json:"technical_language" yaml:"technical_language"`
	QuestionAsking          string `json:"question_asking" yaml:"question_asking"`
	AvgResponseLength       string `json:"avg_response_length" yaml:"avg_response_length"`
	PersonalSharing         string `json:"personal_sharing" yaml:"personal_sharing"`
}

// Default returns the profile used when there is no text to analyze.
func Default() Profile {
	return Profile{
		VocabularyLevel:         "professional",
		SentenceComplexity:      "moderate",
		FormalityLevel:          "neutral",
		EmotionalExpressiveness: "moderate",
		HumorUsage:              "subtle",
		TechnicalLanguage:       "some",
		QuestionAsking:          "occasional",
		AvgResponseLength:       "moderate",
		PersonalSharing:         "some",
	}
}

// Value returns the profile's category for dimension d.
func (p Profile) Value(d Dimension) string {
	switch d {
	case DimVocabulary:
		return p.VocabularyLevel
	case DimComplexity:
		return p.SentenceComplexity
	case DimFormality:
		return p.FormalityLevel
	case DimExpressiveness:
		return p.EmotionalExpressiveness
	case DimHumor:
		return p.HumorUsage
	case DimTechnical:
		return p.TechnicalLanguage
	case DimQuestions:
		return p.QuestionAsking
	case DimResponseLength:
		return p.AvgResponseLength
	case DimPersonalSharing:
		return p.PersonalSharing
	}
	return ""
}

// IsValue reports whether v is an allowed category of d.
func IsValue(d Dimension, v string) bool {
	for _, allowed := range Values[d] {
		if allowed == v {
			return true
		}
	}
	return false
}

// Scenario is a sample question paired with the answer the persona would give.
type Scenario struct {
	Question         string `json:"question" yaml:"question"`
	ExpectedResponse string `json:"expected_response" yaml:"expected_response"`
}
