package style

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker lists. Matching is case-insensitive and anchored at word
// boundaries, so "hey" does not match inside "they".
var (
	formalMarkers = []string{
		"please", "would", "could", "kindly", "sincerely", "respectfully",
		"regards", "appreciate",
	}
	casualMarkers = []string{
		"hey", "yeah", "nope", "cool", "awesome", "totally", "super",
		"gonna", "wanna", "btw",
	}
	technicalMarkers = []string{
		"api", "algorithm", "database", "framework", "implementation",
		"infrastructure", "protocol", "architecture", "deploy", "software",
		"code", "system", "data",
	}
	academicMarkers = []string{
		"research", "theory", "hypothesis", "analysis", "methodology",
		"furthermore", "moreover", "therefore", "consequently", "empirical",
		"literature",
	}
	emotionMarkers = []string{
		"love", "excited", "exciting", "amazing", "wonderful", "fantastic",
		"thrilled", "passionate", "happy", "incredible", "delighted",
	}
	humorMarkers = []string{
		"haha", "lol", "lmao", "funny", "joke", "hilarious", "kidding",
		"😂", "😄", ";)",
	}
	firstPersonTokens = map[string]bool{
		"i": true, "me": true, "my": true, "mine": true, "myself": true,
		"i'm": true, "i've": true, "i'd": true, "i'll": true,
	}
)

// normalize lower-cases text and folds typographic apostrophes so that
// "I’m" and "I'm" count the same.
func normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "’", "'")
}

// countMarkers returns the total number of occurrences of all markers in
// text, which must already be normalized.
func countMarkers(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += countWord(text, m)
	}
	return n
}

// countWord counts occurrences of marker in text. An occurrence only counts
// when it is not glued to a surrounding letter or digit; edges of the marker
// that are themselves punctuation (";)") are not checked.
//
// This is intentionally stricter than plain substring containment, which
// would count "hey" inside "they" and "lol" inside "lollipop".
func countWord(text, marker string) int {
	if marker == "" {
		return 0
	}
	first, _ := utf8.DecodeRuneInString(marker)
	last, _ := utf8.DecodeLastRuneInString(marker)
	checkBefore := isWordRune(first)
	checkAfter := isWordRune(last)

	n := 0
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], marker)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(marker)
		ok := true
		if checkBefore && start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			ok = !isWordRune(r)
		}
		if ok && checkAfter && end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			ok = !isWordRune(r)
		}
		if ok {
			n++
		}
		offset = end
	}
	return n
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ContainsWord reports whether marker occurs in text as a whole word,
// ignoring case.
func ContainsWord(text, marker string) bool {
	return countWord(normalize(text), normalize(marker)) > 0
}

// tokens splits normalized text into words with surrounding punctuation
// removed. Inner apostrophes are kept so contractions stay intact.
func tokens(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !isWordRune(r) && r != '\''
		})
		t = strings.Trim(t, "'")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// hasFirstPerson reports whether text contains a first-person pronoun.
func hasFirstPerson(text string) bool {
	for _, t := range tokens(normalize(text)) {
		if firstPersonTokens[t] {
			return true
		}
	}
	return false
}
