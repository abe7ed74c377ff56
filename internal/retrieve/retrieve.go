// Package retrieve ranks stored course content against a query, either by
// vector similarity or by keyword overlap when no semantic embedder is
// configured.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/tbeckett/courserag/internal/embed"
	"github.com/tbeckett/courserag/internal/vectorstore"
)

// Result is one retrieved passage. Rank is 1-based in score order.
type Result struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Module  string  `json:"module,omitempty"`
	Score   float32 `json:"score"`
	Rank    int     `json:"rank"`
}

// Store is the slice of the vector store the retriever needs.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.ScoredPoint, error)
	ScrollAll(ctx context.Context, limit int) ([]vectorstore.Point, error)
}

// Retriever chooses the search strategy from the embedder: a semantic
// embedder means vector search, the deterministic fallback means keyword
// overlap over a scroll of the collection.
type Retriever struct {
	embedder   embed.Embedder
	store      Store
	scrollSize int
	log        *slog.Logger
}

func New(embedder embed.Embedder, store Store, scrollSize int, log *slog.Logger) *Retriever {
	if scrollSize <= 0 {
		scrollSize = 500
	}
	return &Retriever{embedder: embedder, store: store, scrollSize: scrollSize, log: log}
}

// Retrieve returns up to topK passages for the query. Retrieval failures
// degrade to an empty slice; callers render that as "no context available"
// rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []Result {
	if topK <= 0 {
		topK = 5
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if r.embedder.Semantic() {
		return r.vectorSearch(ctx, query, topK)
	}
	return r.keywordSearch(ctx, query, topK)
}

func (r *Retriever) vectorSearch(ctx context.Context, query string, topK int) []Result {
	vectors, err := r.embedder.Embed(ctx, []string{query}, embed.InputQuery)
	if err != nil || len(vectors) == 0 {
		r.log.Warn("query embedding failed, returning no context", "error", err)
		return nil
	}

	hits, err := r.store.Query(ctx, vectors[0], topK)
	if err != nil {
		r.log.Warn("vector search failed, returning no context", "error", err)
		return nil
	}

	results := make([]Result, 0, len(hits))
	for i, hit := range hits {
		results = append(results, Result{
			ID:      hit.ID,
			Content: hit.Payload.Content,
			Source:  hit.Payload.Source,
			Module:  hit.Payload.Module,
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return results
}

func (r *Retriever) keywordSearch(ctx context.Context, query string, topK int) []Result {
	points, err := r.store.ScrollAll(ctx, r.scrollSize)
	if err != nil {
		r.log.Warn("scroll failed, returning no context", "error", err)
		return nil
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		point   vectorstore.Point
		matches int
	}
	var candidates []scored
	for _, p := range points {
		m := matchCount(p.Payload, terms)
		if m > 0 {
			candidates = append(candidates, scored{point: p, matches: m})
		}
	}

	// Stable: scroll order breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].matches > candidates[j].matches
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		results = append(results, Result{
			ID:      c.point.ID,
			Content: c.point.Payload.Content,
			Source:  c.point.Payload.Source,
			Module:  c.point.Payload.Module,
			Score:   float32(c.matches),
			Rank:    i + 1,
		})
	}
	return results
}

// queryTerms lowercases the query and keeps distinct terms longer than two
// characters.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len(f) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// matchCount counts distinct terms appearing as substrings of the chunk's
// content, module or source.
func matchCount(p vectorstore.Payload, terms []string) int {
	content := strings.ToLower(p.Content)
	module := strings.ToLower(p.Module)
	source := strings.ToLower(p.Source)
	n := 0
	for _, term := range terms {
		if strings.Contains(content, term) || strings.Contains(module, term) || strings.Contains(source, term) {
			n++
		}
	}
	return n
}
