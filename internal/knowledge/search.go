package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/offgridai/aidmate/internal/vecmath"
)

// categoryCap bounds ByCategory results.
const categoryCap = 100

// FullTextSearch queries the FTS5 index and returns chunks in the index's
// own relevance order. Used when keyword search under-returns.
func (s *Store) FullTextSearch(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if !s.Available() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	terms := QueryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	// Quote each term so FTS syntax characters in user input are inert.
	for i := range terms {
		terms[i] = `"` + terms[i] + `"`
	}
	match := strings.Join(terms, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.category, k.keywords, k.context, k.priority, k.embedding
		FROM knowledge_fts f
		JOIN knowledge k ON k.rowid = f.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		// The basic database build may omit the FTS table.
		return nil, nil
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ByCategory returns all chunks tagged with the category, capped.
func (s *Store) ByCategory(ctx context.Context, category string) ([]Chunk, error) {
	if !s.Available() {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, keywords, context, priority, embedding
		FROM knowledge WHERE category = ? LIMIT ?`, category, categoryCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SemanticSearch ranks chunks by cosine similarity against a query
// embedding. Chunks without a stored embedding are skipped.
func (s *Store) SemanticSearch(ctx context.Context, query vecmath.Vector, limit int) ([]Chunk, error) {
	if !s.Available() || len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, keywords, context, priority, embedding FROM knowledge WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		chunk Chunk
		sim   float64
	}
	var candidates []scored
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if sim := vecmath.CosineSimilarity(query, c.Embedding); sim > 0 {
			candidates = append(candidates, scored{chunk: c, sim: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	chunks := make([]Chunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = c.chunk
	}
	return chunks, nil
}
