package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps embeddings in the document_vectors table and answers
// queries with a brute-force cosine scan over one persona's rows. Persona
// knowledge bases are small (hundreds to a few thousand chunks), which keeps
// the scan well under the latency of the chat call that follows.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB. The document_vectors table must
// already exist (created via storage migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert adds records in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_vectors (id, persona_id, document_id, chunk_index, text_chunk, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.PersonaID, r.DocumentID, r.ChunkIndex, r.TextChunk,
			encodeFloat32s(r.Embedding), createdAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// idScore holds only the ID and score during the scan phase of Search.
type idScore struct {
	ID    string
	Score float32
}

// Search scans the persona's vectors keeping the topK best scores at or
// above threshold in a min-heap, then loads full rows for the winners only.
func (s *SQLiteStore) Search(ctx context.Context, personaID string, vector []float32, topK int, threshold float32) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM document_vectors WHERE persona_id = ?`, personaID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if score < threshold {
			continue
		}
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	scores := make(map[string]float32, h.Len())
	ids := make([]string, 0, h.Len())
	for h.Len() > 0 {
		item := heap.Pop(h).(idScore)
		scores[item.ID] = item.Score
		ids = append(ids, item.ID)
	}

	records, err := s.getByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	results := make([]ScoredRecord, len(records))
	for i, r := range records {
		results[i] = ScoredRecord{Record: r, Score: scores[r.ID]}
	}
	// The IN query does not preserve order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (s *SQLiteStore) getByIDs(ctx context.Context, ids []string) ([]Record, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT v.id, v.persona_id, v.document_id, v.chunk_index, v.text_chunk, v.embedding, v.created_at,
			COALESCE(d.title, '')
		FROM document_vectors v LEFT JOIN documents d ON d.id = v.document_id
		WHERE v.id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := rows.Scan(&r.ID, &r.PersonaID, &r.DocumentID, &r.ChunkIndex, &r.TextChunk, &blob, &createdAt, &r.DocumentTitle); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if r.Embedding, err = decodeFloat32s(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteDocument removes all vectors of a document. Deleting a document
// without vectors is not an error.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_vectors WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("deleting vectors of document %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of vectors stored for personaID, or for every
// persona when personaID is empty.
func (s *SQLiteStore) Count(ctx context.Context, personaID string) (int, error) {
	query, args := `SELECT COUNT(*) FROM document_vectors`, []any{}
	if personaID != "" {
		query += ` WHERE persona_id = ?`
		args = append(args, personaID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	return decodeFloat32sInto(nil, b)
}

// decodeFloat32sInto decodes into buf, growing it only when needed, so a
// scan reuses one buffer for every row.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine returns dot(a,b) / (aNorm * |b|). Vectors of different dimension
// score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * math.Sqrt(bNormSq)))
}

// idScoreHeap is a min-heap of idScore ordered by Score.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
