// Package vectorstore persists embedded articles in Postgres/pgvector and
// serves cosine-similarity search over them.
package vectorstore

import (
	"context"

	"marketintel/internal/core"
)

// Embedder is the embedding capability consumed by the store. Ingestion
// and query-time search must share one implementation so both sides live
// in the same embedding space.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Store provides dedup-aware persistence and semantic search for article
// embeddings.
type Store interface {
	// UpsertBatch embeds and stores the articles, deduplicating on the
	// (industry, url hash, publication day) identity key. It returns the
	// number of rows written. Individual embedding failures skip the item;
	// a storage failure aborts with a typed error.
	UpsertBatch(ctx context.Context, articles []core.Article) (int, error)

	// Search finds stored articles similar to the query embedding,
	// ordered by similarity (highest first).
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)

	// RecentArticles returns the stored articles for an industry with
	// embeddings attached, newest first, for clustering.
	RecentArticles(ctx context.Context, industry string, limit int) ([]core.Article, error)

	// CountForIndustry reports how many articles are stored for an
	// industry.
	CountForIndustry(ctx context.Context, industry string) (int, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// SearchQuery configures semantic search parameters.
type SearchQuery struct {
	// Embedding is the query vector (768-dim).
	Embedding []float64

	// Limit is the maximum number of results to return (default: 10).
	Limit int

	// Threshold is the minimum cosine similarity (0.0-1.0, default: 0.8).
	Threshold float64

	// Industry optionally restricts results to one industry.
	Industry string
}

// SearchResult contains a similar article and its similarity score.
type SearchResult struct {
	Article    core.Article
	Similarity float64 // Cosine similarity, 1 - distance
}

// DefaultSearchQuery returns sensible defaults for the given embedding.
func DefaultSearchQuery(embedding []float64) SearchQuery {
	return SearchQuery{
		Embedding: embedding,
		Limit:     10,
		Threshold: 0.8,
	}
}
