// Package snapshot drafts, persists, and caches TTL-bound market
// snapshots for the three intelligence cards.
package snapshot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketintel/internal/core"
	"marketintel/internal/logger"
)

// Drafter renders scored signals into card-shaped snapshot payloads.
type Drafter struct {
	modelVersion string
	ttlMinutes   int
	now          func() time.Time
}

// NewDrafter builds a drafter. ttlMinutes of zero selects the default of
// six hours.
func NewDrafter(modelVersion string, ttlMinutes int) *Drafter {
	if ttlMinutes <= 0 {
		ttlMinutes = 360
	}
	return &Drafter{
		modelVersion: modelVersion,
		ttlMinutes:   ttlMinutes,
		now:          time.Now,
	}
}

// Draft produces a snapshot for the requested card. An unrecognized card
// falls back to the engagement intelligence shape.
func (d *Drafter) Draft(card core.Card, scored core.ScoredSignals) core.MarketSnapshot {
	var payload map[string]any
	switch card {
	case core.CardMarketSignals:
		payload = d.marketSignalsPayload(scored)
	case core.CardBusinessTrends:
		payload = d.businessTrendsPayload(scored)
	case core.CardEngagementIntel:
		payload = d.engagementIntelPayload(scored)
	default:
		logger.With("snapshot").Warn().
			Str("card", string(card)).
			Msg("unknown card, drafting engagement intel shape")
		payload = d.engagementIntelPayload(scored)
	}

	divergence := ""
	if scored.Divergence.Present {
		divergence = scored.Divergence.Description
	}

	return core.MarketSnapshot{
		ID:             uuid.NewString(),
		Card:           card,
		Industry:       scored.Industry,
		Snapshot:       payload,
		Sources:        citationList(scored),
		Confidence:     scored.Confidence,
		ModelVersion:   d.modelVersion,
		TTLMinutes:     d.ttlMinutes,
		DivergenceNote: divergence,
		CreatedAt:      d.now().UTC(),
	}
}

func (d *Drafter) marketSignalsPayload(scored core.ScoredSignals) map[string]any {
	return map[string]any{
		"marketSize": map[string]any{
			"value":       scored.MarketSize.Value,
			"growth":      scored.MarketSize.Growth,
			"currency":    scored.MarketSize.Currency,
			"description": scored.MarketSize.Description,
		},
		"growthRate": map[string]any{
			"value":       scored.GrowthRate.Value,
			"trend":       scored.GrowthRate.Trend,
			"period":      scored.GrowthRate.Period,
			"description": scored.GrowthRate.Description,
		},
		"competition": map[string]any{
			"level":       scored.Competition.Level,
			"trend":       scored.Competition.Trend,
			"description": scored.Competition.Description,
			"details":     scored.Competition.Details,
		},
		"sentiment": map[string]any{
			"score":       scored.Sentiment.Score,
			"trend":       scored.Sentiment.Trend,
			"factors":     scored.Sentiment.Factors,
			"description": scored.Sentiment.Description,
		},
		"fullInsight":     fullInsight(scored),
		"dataSources":     dataSources(scored),
		"confidenceScore": scored.Confidence,
		"aiModelVersion":  d.modelVersion,
	}
}

func (d *Drafter) businessTrendsPayload(scored core.ScoredSignals) map[string]any {
	trends := make([]map[string]any, 0, len(scored.Themes))
	for _, theme := range scored.Themes {
		trends = append(trends, map[string]any{
			"title":            theme.Title,
			"direction":        trendDirection(theme.Sentiment),
			"percentageChange": theme.Sentiment * 100,
			"description":      theme.Summary,
			"industry":         scored.Industry,
			"aiModelVersion":   d.modelVersion,
		})
	}
	return map[string]any{
		"trends":      trends,
		"userTier":    "standard",
		"industry":    scored.Industry,
		"generatedAt": d.now().UTC().Format(time.RFC3339),
	}
}

func (d *Drafter) engagementIntelPayload(scored core.ScoredSignals) map[string]any {
	trends := make([]map[string]any, 0, len(scored.Themes))
	for _, theme := range scored.Themes {
		trends = append(trends, map[string]any{
			"title":            theme.Title,
			"description":      theme.Summary,
			"direction":        trendDirection(theme.Sentiment),
			"percentageChange": theme.Sentiment * 100,
		})
	}
	return map[string]any{
		"industry":        scored.Industry,
		"lastUpdated":     d.now().UTC().Format(time.RFC3339),
		"signalScore":     (scored.Sentiment.Score + 1) * 50,
		"signalSummary":   scored.Sentiment.Description,
		"trends":          trends,
		"recommendations": recommendations(scored),
	}
}

// citationList merges article citations with the quantitative feeds that
// informed the snapshot, capped at the citation limit.
func citationList(scored core.ScoredSignals) []core.SnapshotSource {
	sources := make([]core.SnapshotSource, 0, len(scored.CitedArticles)+len(scored.SignalSources))
	sources = append(sources, scored.CitedArticles...)
	for _, s := range scored.SignalSources {
		sources = append(sources, core.SnapshotSource{
			Title:  s.Name,
			URL:    s.URL,
			Source: s.Name,
		})
	}
	if len(sources) > core.MaxSnapshotSources {
		sources = sources[:core.MaxSnapshotSources]
	}
	return sources
}

// trendDirection maps a sentiment score onto a card-facing direction
// using the same neutral band as sentiment labels.
func trendDirection(score float64) string {
	switch {
	case score > 0.15:
		return "up"
	case score < -0.15:
		return "down"
	default:
		return "stable"
	}
}

func fullInsight(scored core.ScoredSignals) string {
	return fmt.Sprintf("%s shows %s growth (%s) with %s competitive pressure; %s",
		scored.Industry,
		trendDirection(scored.GrowthRate.Trend),
		scored.GrowthRate.Value,
		scored.Competition.Level,
		scored.Sentiment.Description)
}

func dataSources(scored core.ScoredSignals) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range scored.CitedArticles {
		if s.Source == "" {
			continue
		}
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		out = append(out, s.Source)
	}
	for _, name := range scored.Competition.Details {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func recommendations(scored core.ScoredSignals) []string {
	var out []string
	for _, risk := range scored.Risks {
		out = append(out, fmt.Sprintf("Monitor: %s", risk))
	}
	for i, theme := range scored.Themes {
		if i == 2 {
			break
		}
		if theme.Sentiment > 0.15 {
			out = append(out, fmt.Sprintf("Lean into %q while coverage stays positive", theme.Title))
		}
	}
	if len(out) == 0 {
		out = append(out, "No immediate action; signals are stable")
	}
	return out
}
