package sources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"marketintel/internal/core"
	"marketintel/internal/logger"
	"marketintel/internal/normalize"
)

// Manager fans ingestion out across all configured providers and merges
// their normalized results. Provider failures and timeouts degrade to an
// empty contribution; FetchAll itself never fails.
type Manager struct {
	providers       []Provider
	providerTimeout time.Duration
}

// NewManager creates a manager over the given providers. Each provider
// call is individually bounded by timeout.
func NewManager(providers []Provider, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Manager{providers: providers, providerTimeout: timeout}
}

// FetchAll runs every provider concurrently and returns the merged,
// normalized articles. Results are appended in provider order after all
// providers have settled, so output is deterministic for a fixed input.
func (m *Manager) FetchAll(ctx context.Context, industry string, since time.Time) []core.Article {
	log := logger.With("sources")

	results := make([][]normalize.RawItem, len(m.providers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range m.providers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, m.providerTimeout)
			defer cancel()

			items, err := provider.Fetch(pctx, industry, since)
			if err != nil {
				// Recovered locally: a failing provider yields nothing.
				log.Warn().
					Str("provider", provider.Name()).
					Str("industry", industry).
					Err(err).
					Msg("provider fetch failed, continuing without it")
				return nil
			}

			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}
	// Providers never return errors through the group; Wait only orders
	// the merge after all have settled.
	_ = g.Wait()

	var articles []core.Article
	for _, items := range results {
		for _, item := range items {
			article := normalize.Normalize(item)
			if article.Content == "" || article.URL == "" {
				continue
			}
			articles = append(articles, article)
		}
	}

	log.Info().
		Str("industry", industry).
		Int("providers", len(m.providers)).
		Int("articles", len(articles)).
		Msg("ingestion fetch complete")
	return articles
}
