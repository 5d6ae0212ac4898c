// Package sources implements the per-provider content adapters and the
// concurrent fan-out manager that merges their results. A failing or
// timed-out provider contributes an empty slice; ingestion never aborts
// because one upstream is down.
package sources

import (
	"context"
	"errors"
	"time"

	"marketintel/internal/normalize"
)

// Provider is the unified interface for content providers. Fetch returns
// raw items for an industry published at or after since. Implementations
// must honor ctx cancellation; errors are recovered by the Manager.
type Provider interface {
	Fetch(ctx context.Context, industry string, since time.Time) ([]normalize.RawItem, error)

	// Name returns the provider id recorded on ingested articles.
	Name() string
}

// ProviderType represents the type of content provider.
type ProviderType string

const (
	ProviderTypeFinnhub ProviderType = "finnhub"
	ProviderTypeNewsAPI ProviderType = "news_api"
	ProviderTypeRSS     ProviderType = "rss"
	ProviderTypeMock    ProviderType = "mock"
)

var (
	ErrMissingAPIKey       = errors.New("provider requires an api key")
	ErrUnsupportedProvider = errors.New("unsupported provider type")
)

// Factory creates content providers based on type and configuration.
type Factory struct{}

// NewFactory creates a new provider factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a content provider of the specified type.
func (f *Factory) Create(providerType ProviderType, config map[string]string) (Provider, error) {
	switch providerType {
	case ProviderTypeFinnhub:
		apiKey, exists := config["api_key"]
		if !exists || apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewFinnhubProvider(apiKey, config["base_url"]), nil
	case ProviderTypeNewsAPI:
		apiKey, exists := config["api_key"]
		if !exists || apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewNewsAPIProvider(apiKey, config["base_url"]), nil
	case ProviderTypeRSS:
		return NewRSSProvider(splitFeeds(config["feeds"])), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
