package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketintel/internal/normalize"
	"marketintel/internal/sentiment"
)

// RSSProvider aggregates items from a configured list of RSS feeds and
// filters them by industry keyword.
type RSSProvider struct {
	feeds  []string
	client *http.Client
}

// NewRSSProvider creates a provider over the given feed URLs.
func NewRSSProvider(feeds []string) *RSSProvider {
	return &RSSProvider{
		feeds: feeds,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider id recorded on ingested articles.
func (p *RSSProvider) Name() string {
	return string(ProviderTypeRSS)
}

type rssDocument struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Fetch pulls every configured feed and keeps items that mention the
// industry and were published at or after since. A feed that fails to
// parse is skipped; the remaining feeds still contribute.
func (p *RSSProvider) Fetch(ctx context.Context, industry string, since time.Time) ([]normalize.RawItem, error) {
	var items []normalize.RawItem
	var lastErr error

	needle := strings.ToLower(industry)
	for _, feedURL := range p.feeds {
		doc, err := p.fetchFeed(ctx, feedURL)
		if err != nil {
			lastErr = err
			continue
		}

		for _, entry := range doc.Channel.Items {
			text := entry.Title + " " + entry.Description
			if !strings.Contains(strings.ToLower(text), needle) {
				continue
			}

			publishedAt := parsePubDate(entry.PubDate)
			if publishedAt.Before(since) {
				continue
			}

			score := sentiment.FallbackScore(text)
			items = append(items, normalize.RawItem{
				Industry:    industry,
				Source:      p.Name(),
				Title:       entry.Title,
				URL:         entry.Link,
				PublishedAt: publishedAt,
				Summary:     entry.Description,
				Sentiment:   &score,
				Entities: map[string]string{
					"feed": doc.Channel.Title,
				},
			})
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all rss feeds failed: %w", lastErr)
	}
	return items, nil
}

func (p *RSSProvider) fetchFeed(ctx context.Context, feedURL string) (*rssDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rss request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	return &doc, nil
}

// parsePubDate tries the common RSS date layouts, defaulting to now so a
// malformed date never drops an otherwise valid item.
func parsePubDate(value string) time.Time {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func splitFeeds(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	feeds := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			feeds = append(feeds, trimmed)
		}
	}
	return feeds
}
