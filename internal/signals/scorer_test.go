package signals

import (
	"context"
	"testing"
	"time"

	"marketintel/internal/core"
)

func testArticles(now time.Time, sentiments ...float64) []core.Article {
	articles := make([]core.Article, len(sentiments))
	for i, s := range sentiments {
		articles[i] = core.Article{
			Source:      "source-" + string(rune('a'+i)),
			Title:       "article",
			URL:         "https://example.com/a",
			PublishedAt: now.Add(-24 * time.Hour),
			Sentiment:   s,
		}
	}
	return articles
}

func fixedScorer(now time.Time) *Scorer {
	s := NewScorer()
	s.now = func() time.Time { return now }
	return s
}

func TestScore_DivergenceDetected(t *testing.T) {
	now := time.Now().UTC()
	scored := fixedScorer(now).Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Themes: []core.Theme{
			{Title: "Optimism everywhere", Sentiment: 0.6, ArticleCount: 3},
		},
		Articles: testArticles(now, 0.6, 0.5, 0.7),
		Pack:     core.SignalPack{Industry: "fintech", Sentiment: -0.5},
	})

	if !scored.Divergence.Present {
		t.Fatal("Expected divergence between positive narrative and negative quant sentiment")
	}
	if scored.Divergence.Description == "" {
		t.Error("Divergence note should describe the disagreement")
	}
	if len(scored.Risks) == 0 {
		t.Error("Divergence should surface as a risk")
	}
}

func TestScore_NoDivergenceWhenAligned(t *testing.T) {
	now := time.Now().UTC()
	scored := fixedScorer(now).Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Themes: []core.Theme{
			{Title: "Steady growth", Sentiment: 0.4, ArticleCount: 2},
		},
		Articles: testArticles(now, 0.4, 0.4),
		Pack:     core.SignalPack{Industry: "fintech", Sentiment: 0.3},
	})
	if scored.Divergence.Present {
		t.Error("Aligned sentiment should not flag divergence")
	}
}

func TestScore_DivergenceLowersConfidence(t *testing.T) {
	now := time.Now().UTC()
	base := ScoreInput{
		Industry: "fintech",
		Themes:   []core.Theme{{Title: "Upbeat", Sentiment: 0.6, ArticleCount: 2}},
		Articles: testArticles(now, 0.6, 0.6),
	}

	aligned := base
	aligned.Pack = core.SignalPack{Sentiment: 0.5}
	diverged := base
	diverged.Pack = core.SignalPack{Sentiment: -0.5}

	scorer := fixedScorer(now)
	a := scorer.Score(context.Background(), aligned)
	d := scorer.Score(context.Background(), diverged)
	if d.Confidence >= a.Confidence {
		t.Errorf("Divergence should lower confidence: %f vs %f", d.Confidence, a.Confidence)
	}
}

func TestScore_DefaultCohortAlignment(t *testing.T) {
	now := time.Now().UTC()
	scored := fixedScorer(now).Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Articles: testArticles(now, 0.1),
		Pack:     core.SignalPack{Sentiment: 0.1},
	})
	// 1 source, 1 day old, no divergence, default alignment 0.5:
	// 0.25*(1/8) + 0.25*(13/14) + 0.25*1 + 0.25*0.5
	want := 0.25*(1.0/8) + 0.25*(13.0/14) + 0.25 + 0.125
	if diff := scored.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %f, want %f", scored.Confidence, want)
	}
}

func TestScore_CitedArticlesCapped(t *testing.T) {
	now := time.Now().UTC()
	articles := make([]core.Article, 0, 15)
	for i := 0; i < 15; i++ {
		articles = append(articles, core.Article{
			Source:      "wire",
			Title:       "a",
			URL:         "https://example.com/a",
			PublishedAt: now,
		})
	}
	scored := fixedScorer(now).Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Articles: articles,
		Pack:     core.SignalPack{},
	})
	if len(scored.CitedArticles) != core.MaxSnapshotSources {
		t.Errorf("Cited articles = %d, want %d", len(scored.CitedArticles), core.MaxSnapshotSources)
	}
}

func TestScore_QuantSourcesCountTowardBreadth(t *testing.T) {
	now := time.Now().UTC()
	scorer := fixedScorer(now)
	without := scorer.Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Articles: testArticles(now, 0.1),
		Pack:     core.SignalPack{},
	})
	with := scorer.Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Articles: testArticles(now, 0.1),
		Pack: core.SignalPack{Sources: []core.SignalSource{
			{Name: "exchange feed", URL: "https://example.com/feed"},
		}},
	})
	if with.Confidence <= without.Confidence {
		t.Errorf("Quant sources should add breadth: %f vs %f", with.Confidence, without.Confidence)
	}
}

func TestScore_GrowthRateFromMomentum(t *testing.T) {
	now := time.Now().UTC()
	scored := fixedScorer(now).Score(context.Background(), ScoreInput{
		Industry: "fintech",
		Pack:     core.SignalPack{Momentum: 0.25},
	})
	if scored.GrowthRate.Trend != 0.25 {
		t.Errorf("GrowthRate.Trend = %f, want 0.25", scored.GrowthRate.Trend)
	}
	if scored.GrowthRate.Value != "+25.0%" {
		t.Errorf("GrowthRate.Value = %q, want +25.0%%", scored.GrowthRate.Value)
	}
}

func TestScore_CompetitionFromPressure(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		pressure  float64
		momentum  float64
		wantLevel string
		wantTrend string
	}{
		{0.1, 0.0, "low", "stable"},
		{0.5, 0.5, "moderate", "intensifying"},
		{0.9, -0.5, "high", "easing"},
	}
	for _, tc := range cases {
		scored := fixedScorer(now).Score(context.Background(), ScoreInput{
			Industry: "fintech",
			Pack: core.SignalPack{
				CompetitivePressure: tc.pressure,
				Momentum:            tc.momentum,
				Sources:             []core.SignalSource{{Name: "exchange feed"}},
			},
		})
		if scored.Competition.Level != tc.wantLevel {
			t.Errorf("pressure %.1f: Level = %q, want %q", tc.pressure, scored.Competition.Level, tc.wantLevel)
		}
		if scored.Competition.Trend != tc.wantTrend {
			t.Errorf("momentum %.1f: Trend = %q, want %q", tc.momentum, scored.Competition.Trend, tc.wantTrend)
		}
		if len(scored.Competition.Details) != 1 || scored.Competition.Details[0] != "exchange feed" {
			t.Errorf("Details = %v", scored.Competition.Details)
		}
	}
}
