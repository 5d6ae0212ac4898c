package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver

	"marketintel/internal/apperr"
	"marketintel/internal/core"
	"marketintel/internal/logger"
)

// PgVectorStore implements Store using PostgreSQL with the pgvector
// extension. Embedding generation runs in bounded batches with a fixed
// inter-batch delay to respect upstream rate limits.
type PgVectorStore struct {
	db         *sql.DB
	embedder   Embedder
	batchSize  int
	batchDelay time.Duration
}

// Option configures a PgVectorStore.
type Option func(*PgVectorStore)

// WithBatching overrides the embedding batch size and inter-batch delay.
func WithBatching(size int, delay time.Duration) Option {
	return func(s *PgVectorStore) {
		if size > 0 {
			s.batchSize = size
		}
		s.batchDelay = delay
	}
}

// NewPgVectorStore wires a pgvector-backed store over an open database
// handle and an embedding capability.
func NewPgVectorStore(db *sql.DB, embedder Embedder, opts ...Option) *PgVectorStore {
	s := &PgVectorStore{
		db:         db,
		embedder:   embedder,
		batchSize:  5,
		batchDelay: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a Postgres connection pool with the given pool settings
// and verifies connectivity.
func Open(connectionString string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates the articles table and similarity index when missing.
func (s *PgVectorStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS market_articles (
			id UUID PRIMARY KEY,
			industry TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			url_hash BIGINT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			published_day DATE NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			sentiment DOUBLE PRECISION NOT NULL DEFAULT 0,
			embedding VECTOR(768),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (industry, url_hash, published_day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_articles_embedding_hnsw
			ON market_articles
			USING hnsw (embedding vector_cosine_ops)
			WITH (m = 16, ef_construction = 64)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperr.New(apperr.CodeStorage, "migration failed", err)
		}
	}
	return nil
}

// UpsertBatch embeds and stores the articles. Re-ingesting an article with
// the same identity key is a no-op write. The operation is best-effort per
// item: an embedding failure records a skip and processing continues.
func (s *PgVectorStore) UpsertBatch(ctx context.Context, articles []core.Article) (int, error) {
	log := logger.With("vectorstore")

	// Drop same-key duplicates submitted within one batch up front, so a
	// doubly-submitted article yields one row and one embedding call.
	unique := make([]core.Article, 0, len(articles))
	seen := make(map[core.ArticleKey]struct{}, len(articles))
	for _, article := range articles {
		key := article.IdentityKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, article)
	}

	stored := 0
	for start := 0; start < len(unique); start += s.batchSize {
		end := start + s.batchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		embeddings := s.embedBatch(ctx, batch)
		for i, article := range batch {
			if embeddings[i] == nil {
				// Placeholder skip: the item failed to embed, the rest of
				// the batch still lands.
				log.Warn().
					Str("url", article.URL).
					Msg("embedding failed, skipping article")
				continue
			}
			article.Embedding = embeddings[i]

			n, err := s.upsertOne(ctx, article)
			if err != nil {
				return stored, err
			}
			stored += n
		}

		if end < len(unique) && s.batchDelay > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				return stored, ctx.Err()
			}
		}
	}

	log.Info().Int("submitted", len(articles)).Int("stored", stored).Msg("batch upsert complete")
	return stored, nil
}

// embedBatch generates embeddings for a batch concurrently. A nil entry
// marks a failed item.
func (s *PgVectorStore) embedBatch(ctx context.Context, batch []core.Article) [][]float64 {
	embeddings := make([][]float64, len(batch))
	var wg sync.WaitGroup
	for i, article := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := article.Content
			embedding, err := s.embedder.GenerateEmbedding(ctx, text)
			if err != nil {
				return
			}
			embeddings[i] = embedding
		}()
	}
	wg.Wait()
	return embeddings
}

func (s *PgVectorStore) upsertOne(ctx context.Context, article core.Article) (int, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	key := article.IdentityKey()

	query := `
		INSERT INTO market_articles (
			id, industry, source, title, url, url_hash, published_at,
			published_day, summary, content, sentiment, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CAST($12 AS VECTOR(768)))
		ON CONFLICT (industry, url_hash, published_day) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		article.ID, article.Industry, article.Source, article.Title,
		article.URL, int64(key.URLHash), article.PublishedAt.UTC(),
		key.PublishedDay, article.Summary, article.Content,
		article.Sentiment, formatVector(article.Embedding),
	)
	if err != nil {
		return 0, apperr.New(apperr.CodeStorage, "failed to upsert article", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.New(apperr.CodeStorage, "failed to get rows affected", err)
	}
	return int(rows), nil
}

// Search finds articles similar to the query embedding using cosine
// distance (<=> operator), ordered by similarity.
func (s *PgVectorStore) Search(ctx context.Context, query SearchQuery) ([]SearchResult, error) {
	if query.Limit == 0 {
		query.Limit = 10
	}
	if query.Threshold == 0 {
		query.Threshold = 0.8
	}

	industryClause := ""
	args := []interface{}{formatVector(query.Embedding), query.Threshold, query.Limit}
	if query.Industry != "" {
		industryClause = "AND industry = $4"
		args = append(args, query.Industry)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, industry, source, title, url, published_at, summary,
		       content, sentiment,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM market_articles
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1::vector) >= $2
		  %s
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, industryClause)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperr.New(apperr.CodeSearch, "similarity search failed", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Article.ID, &r.Article.Industry, &r.Article.Source,
			&r.Article.Title, &r.Article.URL, &r.Article.PublishedAt,
			&r.Article.Summary, &r.Article.Content, &r.Article.Sentiment,
			&r.Similarity,
		); err != nil {
			return nil, apperr.New(apperr.CodeSearch, "failed to scan search result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.CodeSearch, "row iteration error", err)
	}
	return results, nil
}

// RecentArticles returns stored articles for an industry, newest first,
// with their embeddings decoded for clustering.
func (s *PgVectorStore) RecentArticles(ctx context.Context, industry string, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, industry, source, title, url, published_at, summary,
		       content, sentiment, embedding::text
		FROM market_articles
		WHERE industry = $1 AND embedding IS NOT NULL
		ORDER BY published_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, industry, limit)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorage, "failed to list recent articles", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var article core.Article
		var vectorText string
		if err := rows.Scan(
			&article.ID, &article.Industry, &article.Source, &article.Title,
			&article.URL, &article.PublishedAt, &article.Summary,
			&article.Content, &article.Sentiment, &vectorText,
		); err != nil {
			return nil, apperr.New(apperr.CodeStorage, "failed to scan article", err)
		}
		article.Embedding = parseVector(vectorText)
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// CountForIndustry reports how many articles are stored for an industry.
func (s *PgVectorStore) CountForIndustry(ctx context.Context, industry string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM market_articles WHERE industry = $1`, industry,
	).Scan(&count)
	if err != nil {
		return 0, apperr.New(apperr.CodeStorage, "failed to count articles", err)
	}
	return count, nil
}

// Ping verifies the backing database is reachable.
func (s *PgVectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// formatVector converts []float64 to the pgvector text format,
// e.g. [0.1,0.2,0.3] -> "[0.1,0.2,0.3]".
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, val := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", val)
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector decodes the pgvector text format back into a slice.
func parseVector(text string) []float64 {
	trimmed := strings.Trim(text, "[]")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	vector := make([]float64, 0, len(parts))
	for _, part := range parts {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%f", &v); err != nil {
			return nil
		}
		vector = append(vector, v)
	}
	return vector
}
