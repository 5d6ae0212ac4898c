// Package core defines the domain model shared by the market-intelligence
// pipeline: ingested articles, themes, quantitative signal packs, scored
// outputs and the cached snapshots served to consumers.
package core

import (
	"hash/fnv"
	"time"
)

// Card identifies the snapshot kind a consumer renders.
type Card string

const (
	CardMarketSignals   Card = "market_signals"
	CardBusinessTrends  Card = "business_trends"
	CardEngagementIntel Card = "engagement_intel"
)

// Article represents one ingested content item for an industry.
// Identity is (Industry, hash of URL, publication day); re-ingesting the
// same item is a no-op write, never a duplicate row.
type Article struct {
	ID          string            `json:"id"`           // Storage identifier (UUID)
	Industry    string            `json:"industry"`     // Industry the item was fetched for
	Source      string            `json:"source"`       // Provider id (e.g. "finnhub", "news_api")
	Title       string            `json:"title"`        // Item title
	URL         string            `json:"url"`          // Canonical URL
	PublishedAt time.Time         `json:"published_at"` // Publication timestamp
	Summary     string            `json:"summary"`      // Provider summary or extracted lead
	Content     string            `json:"content"`      // Normalized full text
	Sentiment   float64           `json:"sentiment"`    // Polarity in [-1, 1]
	Entities    map[string]string `json:"entities"`     // Free-form key/value tags
	Embedding   []float64         `json:"embedding"`    // Vector embedding of the normalized text
}

// URLHash returns the stable FNV-64a hash of the article URL used in the
// identity key.
func (a Article) URLHash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(a.URL))
	return h.Sum64()
}

// IdentityKey returns the dedup key (industry, url hash, publication day).
// PublishedAt is truncated to the UTC day so intra-day re-publishes of the
// same URL collapse onto one row.
func (a Article) IdentityKey() ArticleKey {
	return ArticleKey{
		Industry:     a.Industry,
		URLHash:      a.URLHash(),
		PublishedDay: a.PublishedAt.UTC().Truncate(24 * time.Hour),
	}
}

// ArticleKey is the composite identity key for stored articles.
type ArticleKey struct {
	Industry     string
	URLHash      uint64
	PublishedDay time.Time
}

// Theme is a cluster of semantically related articles. Themes are
// recomputed on every pipeline run and never persisted on their own.
type Theme struct {
	Title          string   `json:"title"`           // Generated theme title
	Summary        string   `json:"summary"`         // Short description of the cluster
	SupportingURLs []string `json:"supporting_urls"` // Ordered source article URLs
	Sentiment      float64  `json:"sentiment"`       // Mean article sentiment in [-1, 1]
	ArticleCount   int      `json:"article_count"`   // Number of contributing articles
}

// SignalPack bundles quantitative industry readings at a point in time.
// Optional indices are nil when their upstream source was unavailable.
type SignalPack struct {
	Industry            string         `json:"industry"`
	Momentum            float64        `json:"momentum"`             // [-1, 1] directional momentum
	Sentiment           float64        `json:"sentiment"`            // [-1, 1] quantitative sentiment
	CompetitivePressure float64        `json:"competitive_pressure"` // [0, 1]
	CapitalFlow         float64        `json:"capital_flow"`         // [-1, 1] net capital direction
	HiringIndex         *float64       `json:"hiring_index,omitempty"`
	SearchInterest      *float64       `json:"search_interest,omitempty"`
	PriceIndex          *float64       `json:"price_index,omitempty"`
	Sources             []SignalSource `json:"sources"` // Feed snapshot citations
	FetchedAt           time.Time      `json:"fetched_at"`
}

// SignalSource identifies one quantitative feed for citation purposes.
type SignalSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DivergenceNote is a tagged signal raised when text-derived and
// quantitative conclusions disagree. It is never an error; the confidence
// calculator consumes Present as a discount factor.
type DivergenceNote struct {
	Present     bool   `json:"present"`
	Description string `json:"description,omitempty"`
}

// MarketSizeMetric describes the addressable market.
type MarketSizeMetric struct {
	Value       string  `json:"value"`  // e.g. "2.4T"
	Growth      float64 `json:"growth"` // percentage change
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// GrowthRateMetric describes the projected growth rate.
type GrowthRateMetric struct {
	Value       string  `json:"value"`  // e.g. "+8.5%"
	Trend       float64 `json:"trend"`  // [-1, 1] direction
	Period      string  `json:"period"` // e.g. "week over week"
	Description string  `json:"description"`
}

// CompetitionMetric describes the competitive landscape.
type CompetitionMetric struct {
	Level       string   `json:"level"` // "low" | "moderate" | "high"
	Trend       string   `json:"trend"` // "intensifying" | "stable" | "easing"
	Description string   `json:"description"`
	Details     []string `json:"details"`
}

// SentimentMetric describes aggregate market sentiment.
type SentimentMetric struct {
	Score       float64  `json:"score"` // [-1, 1]
	Trend       string   `json:"trend"` // "negative" | "neutral" | "positive"
	Factors     []string `json:"factors"`
	Description string   `json:"description"`
}

// ScoredSignals is the pipeline's normalized judgment, derived from themes
// plus a signal pack. It is never persisted directly; the drafter maps it
// into card payloads.
type ScoredSignals struct {
	Industry       string            `json:"industry"`
	MarketSize     MarketSizeMetric  `json:"market_size"`
	GrowthRate     GrowthRateMetric  `json:"growth_rate"`
	Competition    CompetitionMetric `json:"competition"`
	Sentiment      SentimentMetric   `json:"sentiment"`
	Risks          []string          `json:"risks"`
	Confidence     float64           `json:"confidence"` // [0, 1]
	Divergence     DivergenceNote    `json:"divergence"`
	Themes         []Theme           `json:"themes"`
	SignalSources  []SignalSource    `json:"signal_sources"`
	CitedArticles  []SnapshotSource  `json:"cited_articles"`
	AvgArticleDays float64           `json:"avg_article_days"` // Mean article age in days
}

// SnapshotSource is one citation attached to a persisted snapshot.
type SnapshotSource struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// MaxSnapshotSources caps the citation list persisted with a snapshot.
const MaxSnapshotSources = 10

// MarketSnapshot is the unit of external value: a cached, TTL-bound
// structured judgment about an industry. Snapshots are immutable and
// superseded, never updated; a snapshot is valid for consumption only
// while now < CreatedAt + TTLMinutes.
type MarketSnapshot struct {
	ID             string           `json:"id"`
	Card           Card             `json:"card"`
	Industry       string           `json:"industry"`
	Snapshot       map[string]any   `json:"snapshot"` // Card-shaped payload
	Sources        []SnapshotSource `json:"sources"`  // At most MaxSnapshotSources citations
	Confidence     float64          `json:"confidence"`
	ModelVersion   string           `json:"model_version"`
	TTLMinutes     int              `json:"ttl_minutes"`
	DivergenceNote string           `json:"divergence_note,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ExpiresAt returns the instant the snapshot stops being servable.
func (s MarketSnapshot) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.TTLMinutes) * time.Minute)
}

// Expired reports whether the snapshot must be treated as absent at now.
func (s MarketSnapshot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Citation is a source reference with a relevance score, attached to
// retrieval answers. Produced transiently from similarity-search hits.
type Citation struct {
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Source         string     `json:"source"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	RelevanceScore float64    `json:"relevance_score"` // [0, 1], equals search similarity
}

// ExportStatus tracks the lifecycle of an asynchronous export job.
type ExportStatus string

const (
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// ExportJob is a background report-generation task. Callers receive the
// id immediately and poll status; cancellation is not supported.
type ExportJob struct {
	ID          string       `json:"id"`
	Card        Card         `json:"card"`
	Industry    string       `json:"industry"`
	Format      string       `json:"format"` // "json" | "csv"
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	Location    string       `json:"location,omitempty"` // Path of the rendered report
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// HealthStatus summarizes the pipeline's serving readiness.
type HealthStatus struct {
	Status string       `json:"status"` // "healthy" | "degraded" | "unhealthy"
	Checks HealthChecks `json:"checks"`
}

// HealthChecks are the three boolean sub-checks behind HealthStatus.
type HealthChecks struct {
	Store        bool `json:"store"`
	Embedder     bool `json:"embedder"`
	VectorSearch bool `json:"vector_search"`
}
