// Package knowledge provides read-only access to the pre-built knowledge
// database and its hybrid keyword/vector search.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/offgridai/aidmate/internal/vecmath"
)

// ErrUnavailable is returned by Open when the database file is missing or
// does not carry the expected schema. Callers keep a nil *Store in that
// case; all query methods on a nil store return empty results.
var ErrUnavailable = errors.New("knowledge store unavailable")

// Chunk is one pre-embedded unit of knowledge text. Chunks are written by
// the external build step and never mutated at runtime.
type Chunk struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Keywords  string         `json:"keywords"`
	Context   string         `json:"context"`
	Priority  string         `json:"priority"`
	Embedding vecmath.Vector `json:"-"`
}

// PriorityWeight maps a chunk priority to its ordinal rank.
func PriorityWeight(p string) int {
	switch p {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 2
	}
}

// Store reads the knowledge database. A nil Store is valid and answers
// every query with no results.
type Store struct {
	db *sql.DB
}

// Open opens the knowledge database read-only. A missing file or a file
// without the knowledge table reports ErrUnavailable.
func Open(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=query_only(on)")
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrUnavailable, err)
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'knowledge'`).Scan(&name)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: missing knowledge table", ErrUnavailable)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Available reports whether the store can serve queries.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// SearchParams holds parameters for keyword search.
type SearchParams struct {
	Query    string
	Category string // optional pre-filter
	Limit    int
	// WidenLimit bounds the result count after a thin category search is
	// widened with an unfiltered pass. Zero means Limit.
	WidenLimit int
}

// Search ranks chunks by keyword overlap with the query, priority as the
// tie-break. When a category filter yields fewer than 2 results, a second
// unfiltered search is unioned in: filtered results keep their rank order,
// unfiltered results follow in theirs, de-duplicated by id first-seen, then
// the list is truncated to WidenLimit.
func (s *Store) Search(ctx context.Context, p SearchParams) ([]Chunk, error) {
	if !s.Available() {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}
	widen := p.WidenLimit
	if widen <= 0 {
		widen = limit
	}

	terms := QueryTerms(p.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	results, err := s.rankByKeywords(ctx, terms, p.Category, limit)
	if err != nil {
		return nil, err
	}

	if p.Category != "" && len(results) < 2 {
		unfiltered, err := s.rankByKeywords(ctx, terms, "", widen)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(results))
		for _, c := range results {
			seen[c.ID] = true
		}
		for _, c := range unfiltered {
			if !seen[c.ID] {
				seen[c.ID] = true
				results = append(results, c)
			}
		}
		if len(results) > widen {
			results = results[:widen]
		}
	}

	return results, nil
}

func (s *Store) rankByKeywords(ctx context.Context, terms []string, category string, limit int) ([]Chunk, error) {
	query := `SELECT id, category, keywords, context, priority, embedding FROM knowledge`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge query: %w", err)
	}
	defer rows.Close()

	type scored struct {
		chunk   Chunk
		matches int
	}
	var candidates []scored

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		n := keywordMatches(c.Keywords, terms)
		if n > 0 {
			candidates = append(candidates, scored{chunk: c, matches: n})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].matches != candidates[j].matches {
			return candidates[i].matches > candidates[j].matches
		}
		pi, pj := PriorityWeight(candidates[i].chunk.Priority), PriorityWeight(candidates[j].chunk.Priority)
		if pi != pj {
			return pi > pj
		}
		return candidates[i].chunk.ID < candidates[j].chunk.ID
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

// keywordMatches counts query terms that overlap the chunk's keyword list.
// A keyword matches when either string contains the other.
func keywordMatches(keywords string, terms []string) int {
	list := strings.Split(strings.ToLower(keywords), ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	n := 0
	for _, t := range terms {
		for _, k := range list {
			if k == "" {
				continue
			}
			if strings.Contains(k, t) || strings.Contains(t, k) {
				n++
				break
			}
		}
	}
	return n
}

// QueryTerms extracts lowercase alphanumeric tokens longer than 2 chars.
func QueryTerms(query string) []string {
	var terms []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 2 {
			terms = append(terms, b.String())
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(query) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

func scanChunk(rows *sql.Rows) (Chunk, error) {
	var c Chunk
	var blob []byte
	if err := rows.Scan(&c.ID, &c.Category, &c.Keywords, &c.Context, &c.Priority, &blob); err != nil {
		return c, err
	}
	// Embedding is optional in the basic build of the database.
	v, err := vecmath.DecodeVector(blob)
	if err == nil {
		c.Embedding = v
	}
	return c, nil
}
