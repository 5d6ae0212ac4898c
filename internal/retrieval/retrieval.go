// Package retrieval answers questions over the ingested corpus: embed the
// query, search the vector store, build citations, and generate a
// grounded answer.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"marketintel/internal/apperr"
	"marketintel/internal/core"
	"marketintel/internal/logger"
	"marketintel/internal/vectorstore"
)

// InsufficientInfoAnswer is returned verbatim when no stored content
// clears the similarity threshold.
const InsufficientInfoAnswer = "I don't have enough information in the current market corpus to answer this question."

// Generator produces a grounded answer from a query and context snippets.
type Generator interface {
	GenerateAnswer(ctx context.Context, query string, contextSnippets []string) (string, error)
}

// Service runs the retrieval flow over pluggable embedding, search, and
// generation capabilities.
type Service struct {
	embedder  vectorstore.Embedder
	store     vectorstore.Store
	generator Generator

	defaultLimit     int
	maxLimit         int
	defaultThreshold float64
}

// Option configures a Service.
type Option func(*Service)

// WithLimits overrides the default and maximum result limits and the
// default similarity threshold.
func WithLimits(defaultLimit, maxLimit int, threshold float64) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
		if threshold > 0 {
			s.defaultThreshold = threshold
		}
	}
}

// NewService wires a retrieval service.
func NewService(embedder vectorstore.Embedder, store vectorstore.Store, generator Generator, opts ...Option) *Service {
	s := &Service{
		embedder:         embedder,
		store:            store,
		generator:        generator,
		defaultLimit:     10,
		maxLimit:         100,
		defaultThreshold: 0.8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request is a retrieval query. Zero Limit and Threshold take the service
// defaults; Industry optionally narrows the search.
type Request struct {
	Query     string
	Industry  string
	Limit     int
	Threshold float64
}

// Response carries the answer and one citation per hit that grounded it.
type Response struct {
	Answer    string          `json:"answer"`
	Citations []core.Citation `json:"citations"`
}

// Answer runs the full flow: embed, search, cite, generate. Zero hits
// short-circuit to the fixed insufficient-information answer with no
// citations and no generation call.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	if req.Query == "" {
		return Response{}, apperr.New(apperr.CodePreprocessing, "query must not be empty", nil)
	}

	results, err := s.Search(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if len(results) == 0 {
		return Response{Answer: InsufficientInfoAnswer, Citations: []core.Citation{}}, nil
	}

	snippets := make([]string, 0, len(results))
	citations := make([]core.Citation, 0, len(results))
	for i, r := range results {
		snippets = append(snippets, fmt.Sprintf("[%d] %s", i+1, r.Article.Content))
		published := r.Article.PublishedAt
		citations = append(citations, core.Citation{
			URL:            r.Article.URL,
			Title:          r.Article.Title,
			Source:         r.Article.Source,
			PublishedAt:    &published,
			RelevanceScore: r.Similarity,
		})
	}

	answer, err := s.generator.GenerateAnswer(ctx, req.Query, snippets)
	if err != nil {
		return Response{}, apperr.New(apperr.CodeAnswer, "answer generation failed", err)
	}

	logger.With("retrieval").Info().
		Str("industry", req.Industry).
		Int("hits", len(results)).
		Msg("answered query")
	return Response{Answer: answer, Citations: citations}, nil
}

// Search embeds the query and runs the similarity search without
// generating an answer.
func (s *Service) Search(ctx context.Context, req Request) ([]vectorstore.SearchResult, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, apperr.New(apperr.CodeEmbedding, "failed to embed query", err)
	}

	query := vectorstore.DefaultSearchQuery(embedding)
	query.Industry = req.Industry
	query.Limit = s.defaultLimit
	if req.Limit > 0 {
		query.Limit = req.Limit
	}
	if query.Limit > s.maxLimit {
		query.Limit = s.maxLimit
	}
	query.Threshold = s.defaultThreshold
	if req.Threshold > 0 {
		query.Threshold = req.Threshold
	}

	results, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// HealthCheck probes the store, the embedder, and the search path.
// All three passing is healthy, two is degraded, fewer is unhealthy.
func (s *Service) HealthCheck(ctx context.Context) core.HealthStatus {
	checks := core.HealthChecks{}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.store.Ping(probeCtx); err == nil {
		checks.Store = true
	}

	var embedding []float64
	if e, err := s.embedder.GenerateEmbedding(probeCtx, "health check"); err == nil && len(e) > 0 {
		checks.Embedder = true
		embedding = e
	}

	if checks.Store && checks.Embedder {
		_, err := s.store.Search(probeCtx, vectorstore.SearchQuery{
			Embedding: embedding,
			Limit:     1,
			Threshold: 0.99,
		})
		checks.VectorSearch = err == nil
	}

	passed := 0
	for _, ok := range []bool{checks.Store, checks.Embedder, checks.VectorSearch} {
		if ok {
			passed++
		}
	}
	status := "unhealthy"
	switch {
	case passed >= 3:
		status = "healthy"
	case passed == 2:
		status = "degraded"
	}
	return core.HealthStatus{Status: status, Checks: checks}
}
