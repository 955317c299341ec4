package style

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed guidance.yaml
var defaultGuidanceYAML []byte

// Guidance maps each dimension and value to the sentence the prompt uses to
// describe it.
type Guidance map[Dimension]map[string]string

// DefaultGuidance returns a fresh copy of the built-in phrase library.
func DefaultGuidance() Guidance {
	g, err := parseGuidance(defaultGuidanceYAML)
	if err != nil {
		panic(fmt.Sprintf("style: embedded guidance is invalid: %v", err))
	}
	return g
}

// LoadGuidance reads a YAML phrase file and merges it over the defaults.
// An empty path returns the defaults. Entries missing from the file keep
// their default sentence.
func LoadGuidance(path string) (Guidance, error) {
	g := DefaultGuidance()
	if path == "" {
		return g, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading guidance file: %w", err)
	}
	override, err := decodeGuidance(data)
	if err != nil {
		return nil, fmt.Errorf("parsing guidance file %s: %w", path, err)
	}
	for d, values := range override {
		for v, phrase := range values {
			g[d][v] = phrase
		}
	}
	return g, nil
}

// Phrase returns the sentence for dimension d at value v, or "" when unknown.
func (g Guidance) Phrase(d Dimension, v string) string {
	return g[d][v]
}

// Lines renders one sentence per dimension of p in display order, skipping
// values that have no phrase.
func (g Guidance) Lines(p Profile) []string {
	out := make([]string, 0, len(Dimensions))
	for _, d := range Dimensions {
		if s := g.Phrase(d, p.Value(d)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseGuidance(data []byte) (Guidance, error) {
	g, err := decodeGuidance(data)
	if err != nil {
		return nil, err
	}
	for _, d := range Dimensions {
		for _, v := range Values[d] {
			if g[d][v] == "" {
				return nil, fmt.Errorf("missing phrase for %s=%s", d, v)
			}
		}
	}
	return g, nil
}

// decodeGuidance parses YAML and rejects dimensions or values outside the
// closed enums, as well as blank phrases.
func decodeGuidance(data []byte) (Guidance, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	g := make(Guidance, len(raw))
	for key, values := range raw {
		d := Dimension(key)
		if _, ok := Values[d]; !ok {
			return nil, fmt.Errorf("unknown dimension %q", key)
		}
		g[d] = make(map[string]string, len(values))
		for v, phrase := range values {
			if !IsValue(d, v) {
				return nil, fmt.Errorf("unknown value %q for %s", v, key)
			}
			if strings.TrimSpace(phrase) == "" {
				return nil, fmt.Errorf("blank phrase for %s=%s", key, v)
			}
			g[d][v] = phrase
		}
	}
	return g, nil
}
