package clustering

import (
	"context"
	"testing"
	"time"

	"marketintel/internal/core"
)

func article(title, url string, embedding []float64, sentiment float64) core.Article {
	return core.Article{
		Title:       title,
		URL:         url,
		PublishedAt: time.Now().UTC(),
		Content:     title + " content.",
		Sentiment:   sentiment,
		Embedding:   embedding,
	}
}

func TestEmbeddingClusterer_GroupsSimilar(t *testing.T) {
	articles := []core.Article{
		article("AI chips surge", "https://example.com/1", []float64{1, 0, 0}, 0.5),
		article("Chip demand grows", "https://example.com/2", []float64{0.99, 0.05, 0}, 0.3),
		article("Retail sales slump", "https://example.com/3", []float64{0, 1, 0}, -0.4),
		article("Retail outlook weak", "https://example.com/4", []float64{0.02, 0.98, 0}, -0.2),
	}

	themes, err := NewEmbeddingClusterer(0.9).Cluster(context.Background(), articles)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(themes) != 2 {
		t.Fatalf("Expected 2 themes, got %d", len(themes))
	}
	for _, theme := range themes {
		if theme.ArticleCount != 2 {
			t.Errorf("Theme %q has %d articles, want 2", theme.Title, theme.ArticleCount)
		}
		if len(theme.SupportingURLs) != 2 {
			t.Errorf("Theme %q has %d supporting URLs, want 2", theme.Title, len(theme.SupportingURLs))
		}
	}
}

func TestEmbeddingClusterer_TooFewArticles(t *testing.T) {
	themes, err := NewEmbeddingClusterer(0).Cluster(context.Background(), []core.Article{
		article("Lone article", "https://example.com/1", []float64{1, 0}, 0),
	})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(themes) != 0 {
		t.Errorf("Expected no themes for a single article, got %d", len(themes))
	}
}

func TestEmbeddingClusterer_SingletonsDropped(t *testing.T) {
	articles := []core.Article{
		article("One topic", "https://example.com/1", []float64{1, 0, 0}, 0),
		article("Unrelated topic", "https://example.com/2", []float64{0, 0, 1}, 0),
	}
	themes, err := NewEmbeddingClusterer(0.9).Cluster(context.Background(), articles)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(themes) != 0 {
		t.Errorf("Singleton clusters should not become themes, got %d", len(themes))
	}
}

func TestEmbeddingClusterer_ThemeSentimentIsAverage(t *testing.T) {
	articles := []core.Article{
		article("A", "https://example.com/1", []float64{1, 0}, 0.8),
		article("B", "https://example.com/2", []float64{1, 0}, 0.2),
	}
	themes, err := NewEmbeddingClusterer(0.9).Cluster(context.Background(), articles)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(themes) != 1 {
		t.Fatalf("Expected 1 theme, got %d", len(themes))
	}
	if themes[0].Sentiment != 0.5 {
		t.Errorf("Theme sentiment = %f, want 0.5", themes[0].Sentiment)
	}
}

func TestEntityOverlapClusterer_GroupsByEntities(t *testing.T) {
	a := article("Acme raises funding", "https://example.com/1", nil, 0.4)
	a.Entities = map[string]string{"company": "acme", "topic": "funding"}
	b := article("Acme expands", "https://example.com/2", nil, 0.2)
	b.Entities = map[string]string{"company": "acme"}
	c := article("Globex lawsuit", "https://example.com/3", nil, -0.5)
	c.Entities = map[string]string{"company": "globex", "topic": "legal"}

	themes, err := NewEntityOverlapClusterer(0.3).Cluster(context.Background(), []core.Article{a, b, c})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(themes) != 1 {
		t.Fatalf("Expected 1 theme, got %d", len(themes))
	}
	if themes[0].ArticleCount != 2 {
		t.Errorf("Theme has %d articles, want 2", themes[0].ArticleCount)
	}
}

func TestSelect_PrefersEmbeddingsWhenPresent(t *testing.T) {
	articles := []core.Article{
		article("A", "https://example.com/1", []float64{1, 0}, 0),
		article("B", "https://example.com/2", []float64{0, 1}, 0),
	}
	if got := Select(articles).Name(); got != "embedding" {
		t.Errorf("Select = %q, want embedding", got)
	}
}

func TestSelect_FallsBackToEntities(t *testing.T) {
	articles := []core.Article{
		article("A", "https://example.com/1", nil, 0),
		article("B", "https://example.com/2", nil, 0),
		article("C", "https://example.com/3", nil, 0),
	}
	if got := Select(articles).Name(); got != "entity_overlap" {
		t.Errorf("Select = %q, want entity_overlap", got)
	}
}
