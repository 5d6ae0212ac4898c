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

// NewsAPIProvider fetches industry news headlines from the NewsAPI
// everything endpoint.
type NewsAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewNewsAPIProvider creates a new NewsAPI content provider.
func NewNewsAPIProvider(apiKey, baseURL string) *NewsAPIProvider {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	return &NewsAPIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider id recorded on ingested articles.
func (p *NewsAPIProvider) Name() string {
	return string(ProviderTypeNewsAPI)
}

// Fetch retrieves articles matching the industry published at or after
// since. NewsAPI carries no polarity, so every item goes through the
// lexicon fallback scorer.
func (p *NewsAPIProvider) Fetch(ctx context.Context, industry string, since time.Time) ([]normalize.RawItem, error) {
	params := url.Values{}
	params.Set("q", industry)
	params.Set("from", since.UTC().Format(time.RFC3339))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("apiKey", p.apiKey)

	fullURL := p.baseURL + "/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create newsapi request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi request failed with status: %d", resp.StatusCode)
	}

	var apiResponse struct {
		Status   string `json:"status"`
		Message  string `json:"message,omitempty"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse newsapi response: %w", err)
	}
	if apiResponse.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", apiResponse.Message)
	}

	var items []normalize.RawItem
	for _, entry := range apiResponse.Articles {
		publishedAt, err := time.Parse(time.RFC3339, entry.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}

		score := sentiment.FallbackScore(entry.Title + " " + entry.Description)
		items = append(items, normalize.RawItem{
			Industry:    industry,
			Source:      p.Name(),
			Title:       entry.Title,
			URL:         entry.URL,
			PublishedAt: publishedAt.UTC(),
			Summary:     entry.Description,
			Content:     entry.Content,
			Sentiment:   &score,
			Entities: map[string]string{
				"publisher": entry.Source.Name,
			},
		})
	}
	return items, nil
}
