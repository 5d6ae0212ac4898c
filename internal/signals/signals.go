// Package signals fetches quantitative market indicators and scores them
// together with qualitative themes into snapshot-ready metrics.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketintel/internal/core"
	"marketintel/internal/logger"
	"marketintel/internal/sentiment"
)

// Fetcher retrieves the quantitative signal pack for an industry.
// Implementations degrade per field: an unavailable optional indicator is
// a nil pointer, not an error.
type Fetcher interface {
	Fetch(ctx context.Context, industry string) (core.SignalPack, error)
}

// HTTPFetcher pulls indicators from a quantitative signals endpoint that
// serves per-industry aggregates.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFetcher builds a fetcher against the given base URL.
func NewHTTPFetcher(baseURL, apiKey string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type signalResponse struct {
	Momentum            float64  `json:"momentum"`
	Sentiment           float64  `json:"sentiment"`
	CompetitivePressure float64  `json:"competitive_pressure"`
	CapitalFlow         float64  `json:"capital_flow"`
	HiringIndex         *float64 `json:"hiring_index"`
	SearchInterest      *float64 `json:"search_interest"`
	PriceIndex          *float64 `json:"price_index"`
	Sources             []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"sources"`
}

// Fetch requests the indicator pack. Missing optional fields stay nil in
// the result, and Sources records where each number came from.
func (f *HTTPFetcher) Fetch(ctx context.Context, industry string) (core.SignalPack, error) {
	endpoint := fmt.Sprintf("%s/signals?industry=%s", f.baseURL, url.QueryEscape(industry))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.SignalPack{}, fmt.Errorf("failed to build signals request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return core.SignalPack{}, fmt.Errorf("signals request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.SignalPack{}, fmt.Errorf("signals endpoint returned status %d", resp.StatusCode)
	}

	var payload signalResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return core.SignalPack{}, fmt.Errorf("failed to decode signals response: %w", err)
	}

	pack := core.SignalPack{
		Industry:            industry,
		Momentum:            sentiment.Clamp(payload.Momentum, -1, 1),
		Sentiment:           sentiment.Clamp(payload.Sentiment, -1, 1),
		CompetitivePressure: sentiment.Clamp(payload.CompetitivePressure, 0, 1),
		CapitalFlow:         payload.CapitalFlow,
		HiringIndex:         payload.HiringIndex,
		SearchInterest:      payload.SearchInterest,
		PriceIndex:          payload.PriceIndex,
		FetchedAt:           time.Now().UTC(),
	}
	for _, s := range payload.Sources {
		pack.Sources = append(pack.Sources, core.SignalSource{Name: s.Name, URL: s.URL})
	}
	return pack, nil
}

// DerivedFetcher computes a signal pack from already-ingested articles
// when no external quantitative feed is configured.
type DerivedFetcher struct {
	recent func(ctx context.Context, industry string, limit int) ([]core.Article, error)
}

// NewDerivedFetcher builds a fetcher over a recent-articles lookup,
// typically the vector store's RecentArticles method.
func NewDerivedFetcher(recent func(ctx context.Context, industry string, limit int) ([]core.Article, error)) *DerivedFetcher {
	return &DerivedFetcher{recent: recent}
}

// Fetch derives momentum from publication cadence and sentiment from the
// article-level scores. Indicators with no derivable basis stay nil.
func (f *DerivedFetcher) Fetch(ctx context.Context, industry string) (core.SignalPack, error) {
	articles, err := f.recent(ctx, industry, 100)
	if err != nil {
		return core.SignalPack{}, err
	}

	pack := core.SignalPack{
		Industry:  industry,
		FetchedAt: time.Now().UTC(),
		Sources:   []core.SignalSource{{Name: "article corpus", URL: ""}},
	}
	if len(articles) == 0 {
		return pack, nil
	}

	now := time.Now().UTC()
	recentCount := 0
	priorCount := 0
	totalSentiment := 0.0
	for _, a := range articles {
		age := now.Sub(a.PublishedAt)
		switch {
		case age <= 7*24*time.Hour:
			recentCount++
		case age <= 14*24*time.Hour:
			priorCount++
		}
		totalSentiment += a.Sentiment
	}

	// Momentum compares this week's coverage volume to last week's.
	if recentCount+priorCount > 0 {
		pack.Momentum = sentiment.Clamp(
			float64(recentCount-priorCount)/float64(recentCount+priorCount), -1, 1)
	}
	pack.Sentiment = sentiment.Clamp(totalSentiment/float64(len(articles)), -1, 1)

	// Distinct outlets covering the industry proxy for competitive noise.
	outlets := make(map[string]struct{})
	for _, a := range articles {
		outlets[a.Source] = struct{}{}
	}
	pack.CompetitivePressure = sentiment.Clamp(float64(len(outlets))/10.0, 0, 1)

	logger.With("signals").Debug().
		Str("industry", industry).
		Int("articles", len(articles)).
		Float64("momentum", pack.Momentum).
		Msg("derived signal pack")
	return pack, nil
}
