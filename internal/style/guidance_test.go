package style

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultGuidance_CoversEveryValue(t *testing.T) {
	g := DefaultGuidance()
	for _, d := range Dimensions {
		for _, v := range Values[d] {
			if g.Phrase(d, v) == "" {
				t.Errorf("no phrase for %s=%s", d, v)
			}
		}
	}
}

func TestDefaultGuidance_KeyPhrases(t *testing.T) {
	g := DefaultGuidance()
	if got := g.Phrase(DimFormality, "casual"); got != "Maintain a friendly, informal tone." {
		t.Errorf("formality casual = %q", got)
	}
	for _, v := range []string{"expressive", "very_expressive"} {
		if got := g.Phrase(DimExpressiveness, v); !strings.Contains(got, "Express enthusiasm") {
			t.Errorf("expressiveness %s = %q, want enthusiasm instruction", v, got)
		}
	}
}

func TestDefaultGuidance_ReturnsCopy(t *testing.T) {
	g := DefaultGuidance()
	g[DimHumor]["none"] = "changed"
	if DefaultGuidance().Phrase(DimHumor, "none") == "changed" {
		t.Error("mutating one library leaked into the defaults")
	}
}

func TestGuidance_Lines(t *testing.T) {
	g := DefaultGuidance()
	lines := g.Lines(Default())
	if len(lines) != len(Dimensions) {
		t.Fatalf("got %d lines, want %d", len(lines), len(Dimensions))
	}
	if lines[0] != g.Phrase(DimVocabulary, "professional") {
		t.Errorf("first line = %q, want vocabulary phrase", lines[0])
	}

	p := Default()
	p.HumorUsage = "bogus"
	if got := len(g.Lines(p)); got != len(Dimensions)-1 {
		t.Errorf("unknown value should be skipped, got %d lines", got)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guidance.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	return path
}

func TestLoadGuidance_EmptyPathReturnsDefaults(t *testing.T) {
	g, err := LoadGuidance("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Phrase(DimFormality, "casual") != DefaultGuidance().Phrase(DimFormality, "casual") {
		t.Error("expected default phrase")
	}
}

func TestLoadGuidance_MergesOverDefaults(t *testing.T) {
	path := writeFile(t, "humor_usage:\n  none: Never joke.\n")
	g, err := LoadGuidance(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Phrase(DimHumor, "none"); got != "Never joke." {
		t.Errorf("humor none = %q, want override", got)
	}
	def := DefaultGuidance()
	if got := g.Phrase(DimHumor, "frequent"); got != def.Phrase(DimHumor, "frequent") {
		t.Errorf("humor frequent = %q, want default kept", got)
	}
	if got := g.Phrase(DimFormality, "formal"); got != def.Phrase(DimFormality, "formal") {
		t.Errorf("formality formal = %q, want default kept", got)
	}
}

func TestLoadGuidance_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown dimension", "sarcasm:\n  high: Be snarky.\n", "unknown dimension"},
		{"unknown value", "humor_usage:\n  constant: Always joke.\n", "unknown value"},
		{"empty phrase", "humor_usage:\n  none: \"\"\n", "blank phrase for humor_usage=none"},
		{"whitespace phrase", "humor_usage:\n  none: \"   \"\n", "blank phrase"},
		{"malformed yaml", "humor_usage: [unterminated\n", "parsing guidance file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGuidance(writeFile(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadGuidance_MissingFile(t *testing.T) {
	if _, err := LoadGuidance(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
