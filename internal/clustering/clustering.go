// Package clustering groups normalized articles into topic themes.
//
// Two strategies are provided: an embedding-space clusterer that groups by
// cosine similarity against running centroids, and an entity-overlap
// clusterer for articles that carry entity annotations but no embeddings.
// Select picks the strategy that fits the input.
package clustering

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marketintel/internal/core"
	"marketintel/internal/llm"
	"marketintel/internal/sentiment"
)

// Clusterer groups articles into themes. Implementations return an empty
// slice, never an error, when the input is too small to cluster.
type Clusterer interface {
	Cluster(ctx context.Context, articles []core.Article) ([]core.Theme, error)
	Name() string
}

// minClusterInput is the smallest article count worth clustering.
const minClusterInput = 2

// Select returns the clusterer suited to the given articles: embedding
// clustering when embeddings are present, entity overlap otherwise.
func Select(articles []core.Article) Clusterer {
	withEmbeddings := 0
	for _, a := range articles {
		if len(a.Embedding) > 0 {
			withEmbeddings++
		}
	}
	if withEmbeddings*2 >= len(articles) && withEmbeddings >= minClusterInput {
		return NewEmbeddingClusterer(0)
	}
	return NewEntityOverlapClusterer(0)
}

// EmbeddingClusterer groups articles whose embeddings fall within a cosine
// similarity threshold of a cluster's running centroid.
type EmbeddingClusterer struct {
	threshold float64
}

// NewEmbeddingClusterer builds an embedding clusterer. A zero threshold
// selects the default of 0.82.
func NewEmbeddingClusterer(threshold float64) *EmbeddingClusterer {
	if threshold <= 0 {
		threshold = 0.82
	}
	return &EmbeddingClusterer{threshold: threshold}
}

func (c *EmbeddingClusterer) Name() string { return "embedding" }

type cluster struct {
	centroid []float64
	members  []core.Article
}

// Cluster assigns each article to the nearest centroid above the
// similarity threshold, creating a new cluster when none qualifies.
func (c *EmbeddingClusterer) Cluster(_ context.Context, articles []core.Article) ([]core.Theme, error) {
	embeddable := make([]core.Article, 0, len(articles))
	for _, a := range articles {
		if len(a.Embedding) > 0 {
			embeddable = append(embeddable, a)
		}
	}
	if len(embeddable) < minClusterInput {
		return []core.Theme{}, nil
	}

	var clusters []*cluster
	for _, article := range embeddable {
		best := -1
		bestSim := c.threshold
		for i, cl := range clusters {
			sim := llm.CosineSimilarity(article.Embedding, cl.centroid)
			if sim >= bestSim {
				bestSim = sim
				best = i
			}
		}
		if best < 0 {
			clusters = append(clusters, &cluster{
				centroid: append([]float64(nil), article.Embedding...),
				members:  []core.Article{article},
			})
			continue
		}
		cl := clusters[best]
		cl.members = append(cl.members, article)
		updateCentroid(cl.centroid, article.Embedding, len(cl.members))
	}

	return themesFromClusters(clusters), nil
}

// updateCentroid folds a new member into the running mean in place.
func updateCentroid(centroid, embedding []float64, count int) {
	n := float64(count)
	for i := range centroid {
		if i >= len(embedding) {
			break
		}
		centroid[i] += (embedding[i] - centroid[i]) / n
	}
}

// EntityOverlapClusterer groups articles by Jaccard overlap of their
// entity annotations.
type EntityOverlapClusterer struct {
	threshold float64
}

// NewEntityOverlapClusterer builds an entity clusterer. A zero threshold
// selects the default of 0.3.
func NewEntityOverlapClusterer(threshold float64) *EntityOverlapClusterer {
	if threshold <= 0 {
		threshold = 0.3
	}
	return &EntityOverlapClusterer{threshold: threshold}
}

func (c *EntityOverlapClusterer) Name() string { return "entity_overlap" }

// Cluster greedily merges articles whose entity sets overlap above the
// Jaccard threshold. Articles without entities each form a singleton,
// which themesFromClusters then drops.
func (c *EntityOverlapClusterer) Cluster(_ context.Context, articles []core.Article) ([]core.Theme, error) {
	if len(articles) < minClusterInput {
		return []core.Theme{}, nil
	}

	type entityCluster struct {
		entities map[string]struct{}
		members  []core.Article
	}

	var clusters []*entityCluster
	for _, article := range articles {
		entities := entitySet(article)
		best := -1
		bestScore := c.threshold
		for i, cl := range clusters {
			score := jaccard(entities, cl.entities)
			if score >= bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			clusters = append(clusters, &entityCluster{entities: entities, members: []core.Article{article}})
			continue
		}
		cl := clusters[best]
		cl.members = append(cl.members, article)
		for e := range entities {
			cl.entities[e] = struct{}{}
		}
	}

	plain := make([]*cluster, len(clusters))
	for i, cl := range clusters {
		plain[i] = &cluster{members: cl.members}
	}
	return themesFromClusters(plain), nil
}

func entitySet(article core.Article) map[string]struct{} {
	set := make(map[string]struct{}, len(article.Entities))
	for _, v := range article.Entities {
		for _, token := range strings.Split(v, ",") {
			token = strings.ToLower(strings.TrimSpace(token))
			if token != "" {
				set[token] = struct{}{}
			}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for e := range a {
		if _, ok := b[e]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// themesFromClusters converts clusters with at least two members into
// themes, largest first.
func themesFromClusters(clusters []*cluster) []core.Theme {
	themes := make([]core.Theme, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.members) < minClusterInput {
			continue
		}
		themes = append(themes, themeFromMembers(cl.members))
	}
	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].ArticleCount > themes[j].ArticleCount
	})
	return themes
}

// themeFromMembers summarizes a cluster: the newest member's title leads,
// sentiment is the member average, and supporting URLs carry provenance.
func themeFromMembers(members []core.Article) core.Theme {
	sorted := append([]core.Article(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	urls := make([]string, 0, len(sorted))
	total := 0.0
	for _, m := range sorted {
		urls = append(urls, m.URL)
		total += m.Sentiment
	}
	avg := total / float64(len(sorted))

	lead := sorted[0]
	summary := lead.Summary
	if summary == "" {
		summary = firstSentence(lead.Content)
	}

	return core.Theme{
		Title:          lead.Title,
		Summary:        fmt.Sprintf("%s (%d related articles, %s sentiment)", summary, len(sorted), sentiment.Label(avg)),
		SupportingURLs: urls,
		Sentiment:      avg,
		ArticleCount:   len(sorted),
	}
}

func firstSentence(text string) string {
	if idx := strings.IndexAny(text, ".!?"); idx > 0 && idx < 200 {
		return text[:idx+1]
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
