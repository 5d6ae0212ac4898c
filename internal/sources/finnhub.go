package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketintel/internal/normalize"
	"marketintel/internal/sentiment"
)

// FinnhubProvider fetches financial-signal news from the Finnhub API.
type FinnhubProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFinnhubProvider creates a new Finnhub content provider.
func NewFinnhubProvider(apiKey, baseURL string) *FinnhubProvider {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &FinnhubProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider id recorded on ingested articles.
func (p *FinnhubProvider) Name() string {
	return string(ProviderTypeFinnhub)
}

// Fetch retrieves market news for the industry published at or after since.
// Finnhub supplies a per-item sentiment when available; items without one
// fall through to the lexicon scorer.
func (p *FinnhubProvider) Fetch(ctx context.Context, industry string, since time.Time) ([]normalize.RawItem, error) {
	params := url.Values{}
	params.Set("category", "general")
	params.Set("q", industry)
	params.Set("token", p.apiKey)

	fullURL := p.baseURL + "/news?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create finnhub request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute finnhub request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub request failed with status: %d", resp.StatusCode)
	}

	var apiResponse []struct {
		Headline  string   `json:"headline"`
		Summary   string   `json:"summary"`
		URL       string   `json:"url"`
		Source    string   `json:"source"`
		Datetime  int64    `json:"datetime"` // Unix seconds
		Category  string   `json:"category"`
		Related   string   `json:"related"`
		Sentiment *float64 `json:"sentiment,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse finnhub response: %w", err)
	}

	var items []normalize.RawItem
	for _, entry := range apiResponse {
		publishedAt := time.Unix(entry.Datetime, 0).UTC()
		if publishedAt.Before(since) {
			continue
		}

		item := normalize.RawItem{
			Industry:    industry,
			Source:      p.Name(),
			Title:       entry.Headline,
			URL:         entry.URL,
			PublishedAt: publishedAt,
			Summary:     entry.Summary,
			Sentiment:   entry.Sentiment,
			Entities: map[string]string{
				"category": entry.Category,
				"related":  entry.Related,
			},
		}
		if item.Sentiment == nil {
			score := sentiment.FallbackScore(entry.Headline + " " + entry.Summary)
			item.Sentiment = &score
		}
		items = append(items, item)
	}
	return items, nil
}
