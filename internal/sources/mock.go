package sources

import (
	"context"
	"fmt"
	"time"

	"marketintel/internal/normalize"
	"marketintel/internal/sentiment"
)

// MockProvider returns deterministic items for development and tests.
type MockProvider struct {
	// Items overrides the generated fixtures when set.
	Items []normalize.RawItem
	// Err forces Fetch to fail, for exercising partial-source degradation.
	Err error
}

// NewMockProvider creates a mock content provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider id recorded on ingested articles.
func (p *MockProvider) Name() string {
	return string(ProviderTypeMock)
}

// Fetch returns the configured items, or three generated fixtures for the
// industry when none are set.
func (p *MockProvider) Fetch(ctx context.Context, industry string, since time.Time) ([]normalize.RawItem, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Items != nil {
		return p.Items, nil
	}

	now := time.Now().UTC()
	headlines := []string{
		"%s sector shows strong quarterly growth",
		"New regulations raise concern in the %s market",
		"Innovation drives record momentum in %s",
	}

	items := make([]normalize.RawItem, 0, len(headlines))
	for i, tmpl := range headlines {
		title := fmt.Sprintf(tmpl, industry)
		summary := fmt.Sprintf("Analysis of recent developments in the %s industry.", industry)
		score := sentiment.FallbackScore(title + " " + summary)
		items = append(items, normalize.RawItem{
			Industry:    industry,
			Source:      p.Name(),
			Title:       title,
			URL:         fmt.Sprintf("https://example.com/%s/article-%d", industry, i+1),
			PublishedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
			Summary:     summary,
			Sentiment:   &score,
		})
	}
	return items, nil
}
