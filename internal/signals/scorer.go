package signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"marketintel/internal/core"
	"marketintel/internal/sentiment"
)

// divergencePenalty applies when qualitative and quantitative sentiment
// disagree in direction.
const divergencePenalty = 0.5

// defaultCohortAlignment is used when no cohort benchmark is available.
const defaultCohortAlignment = 0.5

// Scorer fuses themes, articles, and the quantitative pack into scored
// snapshot metrics.
type Scorer struct {
	now func() time.Time
}

// NewScorer builds a scorer with the real clock.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// ScoreInput carries everything the scorer needs for one industry.
type ScoreInput struct {
	Industry string
	Themes   []core.Theme
	Articles []core.Article
	Pack     core.SignalPack
	// CohortAlignment in [0,1], or nil when no benchmark exists.
	CohortAlignment *float64
}

// Score produces the combined metrics and the confidence they deserve.
func (s *Scorer) Score(_ context.Context, in ScoreInput) core.ScoredSignals {
	qualSentiment := averageThemeSentiment(in.Themes, in.Articles)
	diverged := detectDivergence(qualSentiment, in.Pack.Sentiment)

	avgDays := averageArticleAgeDays(in.Articles, s.now().UTC())

	penalty := 0.0
	divergence := core.DivergenceNote{}
	if diverged {
		penalty = divergencePenalty
		divergence = core.DivergenceNote{
			Present: true,
			Description: fmt.Sprintf(
				"narrative sentiment (%s) diverges from quantitative sentiment (%s)",
				sentiment.Label(qualSentiment), sentiment.Label(in.Pack.Sentiment)),
		}
	}

	alignment := defaultCohortAlignment
	if in.CohortAlignment != nil {
		alignment = sentiment.Clamp(*in.CohortAlignment, 0, 1)
	}

	sourceCount := countDistinctSources(in.Articles, in.Pack)
	confidence := Confidence(sourceCount, avgDays, penalty, alignment)

	blended := sentiment.Clamp((qualSentiment+in.Pack.Sentiment)/2, -1, 1)

	return core.ScoredSignals{
		Industry:       in.Industry,
		MarketSize:     marketSize(in.Pack),
		GrowthRate:     growthRate(in.Pack),
		Competition:    competition(in.Pack),
		Sentiment:      sentimentMetric(blended, in.Themes, diverged),
		Risks:          risks(in.Pack, in.Themes, diverged),
		Confidence:     confidence,
		Divergence:     divergence,
		Themes:         in.Themes,
		SignalSources:  in.Pack.Sources,
		CitedArticles:  citedArticles(in.Articles),
		AvgArticleDays: avgDays,
	}
}

// Confidence combines four equally weighted components, each in [0,1]:
// source breadth (saturating at 8 distinct sources), recency (linear decay
// over 14 days), agreement (1 minus the divergence penalty), and cohort
// alignment. The result is clamped to [0,1].
func Confidence(sourceCount int, avgDaysOld, divergencePenalty, cohortAlignment float64) float64 {
	breadth := math.Min(float64(sourceCount), 8) / 8
	recency := sentiment.Clamp(1-avgDaysOld/14, 0, 1)
	agreement := sentiment.Clamp(1-divergencePenalty, 0, 1)
	alignment := sentiment.Clamp(cohortAlignment, 0, 1)
	return sentiment.Clamp(0.25*breadth+0.25*recency+0.25*agreement+0.25*alignment, 0, 1)
}

// detectDivergence reports whether the two sentiment readings point in
// clearly opposite directions.
func detectDivergence(qualitative, quantitative float64) bool {
	return (qualitative > 0.15 && quantitative < -0.15) ||
		(qualitative < -0.15 && quantitative > 0.15)
}

func averageThemeSentiment(themes []core.Theme, articles []core.Article) float64 {
	if len(themes) > 0 {
		total := 0.0
		weight := 0
		for _, t := range themes {
			total += t.Sentiment * float64(t.ArticleCount)
			weight += t.ArticleCount
		}
		if weight > 0 {
			return total / float64(weight)
		}
	}
	if len(articles) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range articles {
		total += a.Sentiment
	}
	return total / float64(len(articles))
}

func averageArticleAgeDays(articles []core.Article, now time.Time) float64 {
	if len(articles) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range articles {
		days := now.Sub(a.PublishedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		total += days
	}
	return total / float64(len(articles))
}

func countDistinctSources(articles []core.Article, pack core.SignalPack) int {
	seen := make(map[string]struct{})
	for _, a := range articles {
		if a.Source != "" {
			seen[a.Source] = struct{}{}
		}
	}
	for _, s := range pack.Sources {
		if s.Name != "" {
			seen[s.Name] = struct{}{}
		}
	}
	return len(seen)
}

func marketSize(pack core.SignalPack) core.MarketSizeMetric {
	metric := core.MarketSizeMetric{
		Value:       "n/a",
		Growth:      pack.CapitalFlow,
		Currency:    "USD",
		Description: "capital flow relative to trailing quarter",
	}
	if pack.PriceIndex != nil {
		metric.Value = fmt.Sprintf("index %.1f", *pack.PriceIndex)
		metric.Description = "price index with capital flow growth"
	}
	return metric
}

func growthRate(pack core.SignalPack) core.GrowthRateMetric {
	value := fmt.Sprintf("%+.1f%%", pack.Momentum*100)
	return core.GrowthRateMetric{
		Value:       value,
		Trend:       pack.Momentum,
		Period:      "week over week",
		Description: "coverage momentum across tracked outlets",
	}
}

func competition(pack core.SignalPack) core.CompetitionMetric {
	level := "low"
	switch {
	case pack.CompetitivePressure >= 0.66:
		level = "high"
	case pack.CompetitivePressure >= 0.33:
		level = "moderate"
	}
	trend := "stable"
	if pack.Momentum > 0.2 {
		trend = "intensifying"
	} else if pack.Momentum < -0.2 {
		trend = "easing"
	}
	details := make([]string, 0, len(pack.Sources))
	for _, s := range pack.Sources {
		if s.Name != "" {
			details = append(details, s.Name)
		}
	}
	return core.CompetitionMetric{
		Level:       level,
		Trend:       trend,
		Description: fmt.Sprintf("%s competitive pressure, %s", level, trend),
		Details:     details,
	}
}

func sentimentMetric(blended float64, themes []core.Theme, diverged bool) core.SentimentMetric {
	factors := make([]string, 0, 3)
	for i, t := range themes {
		if i == 3 {
			break
		}
		factors = append(factors, t.Title)
	}
	trend := sentiment.Label(blended)
	desc := fmt.Sprintf("blended narrative and quantitative sentiment is %s", trend)
	if diverged {
		desc += "; the two readings disagree"
	}
	return core.SentimentMetric{
		Score:       blended,
		Trend:       trend,
		Factors:     factors,
		Description: desc,
	}
}

func risks(pack core.SignalPack, themes []core.Theme, diverged bool) []string {
	var out []string
	if diverged {
		out = append(out, "narrative and quantitative sentiment diverge; treat directional calls with caution")
	}
	if pack.CompetitivePressure >= 0.7 {
		out = append(out, "elevated competitive pressure")
	}
	if pack.Momentum < -0.3 {
		out = append(out, "coverage momentum is contracting")
	}
	for _, t := range themes {
		if t.Sentiment < -0.3 {
			out = append(out, fmt.Sprintf("negative theme: %s", t.Title))
		}
	}
	return out
}

func citedArticles(articles []core.Article) []core.SnapshotSource {
	limit := len(articles)
	if limit > core.MaxSnapshotSources {
		limit = core.MaxSnapshotSources
	}
	sources := make([]core.SnapshotSource, 0, limit)
	for _, a := range articles[:limit] {
		published := a.PublishedAt
		sources = append(sources, core.SnapshotSource{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: &published,
		})
	}
	return sources
}
