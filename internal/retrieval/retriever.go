package retrieval

import (
	"context"
	"strings"
	"time"
)

// ContextChunk is a retrieved fragment of a persona's knowledge base.
type ContextChunk struct {
	ID            string    `json:"id"`
	PersonaID     string    `json:"persona_id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	ChunkIndex    int       `json:"chunk_index"`
	Text          string    `json:"text"`
	Score         float32   `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// Retriever combines embedding and vector search to find relevant context.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds query and returns up to limit chunks of personaID scoring at
// least threshold, highest first. A blank query returns nothing without
// calling the engine.
func (r *Retriever) Retrieve(ctx context.Context, personaID, query string, threshold float32, limit int) ([]ContextChunk, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	scored, err := r.store.Search(ctx, personaID, vec, limit, threshold)
	if err != nil {
		return nil, err
	}
	return scoredToChunks(scored), nil
}

// ChunkIDs returns the IDs of chunks in order.
func ChunkIDs(chunks []ContextChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func scoredToChunks(scored []ScoredRecord) []ContextChunk {
	chunks := make([]ContextChunk, len(scored))
	for i, s := range scored {
		chunks[i] = ContextChunk{
			ID:            s.ID,
			PersonaID:     s.PersonaID,
			DocumentID:    s.DocumentID,
			DocumentTitle: s.DocumentTitle,
			ChunkIndex:    s.ChunkIndex,
			Text:          s.TextChunk,
			Score:         s.Score,
			CreatedAt:     s.CreatedAt,
		}
	}
	return chunks
}
