package style

// Rule pairs a label with the predicate that selects it.
type Rule[T any] struct {
	Label string
	Match func(T) bool
}

// Classify evaluates rules top to bottom and returns the label of the first
// rule whose predicate matches. If none match, fallback is returned.
func Classify[T any](rules []Rule[T], in T, fallback string) string {
	for _, r := range rules {
		if r.Match != nil && r.Match(in) {
			return r.Label
		}
	}
	return fallback
}
