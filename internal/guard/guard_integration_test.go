//go:build integration

package guard

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/simkit/internal/engine"
)

func TestCheckRelevance_RealOllama(t *testing.T) {
	ctx := context.Background()
	e := engine.NewOllamaEngine("http://localhost:11434")
	if !e.IsRunning(ctx) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	if !e.HasModel(ctx, "llama3.2") {
		t.Skip("llama3.2 model not available, skipping integration test")
	}

	g := New(e, "llama3.2", 10*time.Second)
	persona := "Name: Jane Doe\nProfession: Tax attorney\nExpertise: tax law, estate planning"

	start := time.Now()
	onTopic := g.CheckRelevance(ctx, persona, "How should I structure a trust for my kids?")
	offTopic := g.CheckRelevance(ctx, persona, "Write me a poem about the ocean.")
	elapsed := time.Since(start)

	if !onTopic.IsRelevant {
		t.Errorf("estate planning question judged off topic: %+v", onTopic)
	}
	if offTopic.IsRelevant {
		t.Logf("poem request judged relevant (model disagreement): %+v", offTopic)
	}
	t.Logf("on=%+v off=%+v (took %v)", onTopic, offTopic, elapsed)
}
