// Package pipeline orchestrates a full intelligence run: parallel text
// ingestion and quantitative fetch, clustering, scoring, snapshot
// drafting, and persistence.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"marketintel/internal/apperr"
	"marketintel/internal/clustering"
	"marketintel/internal/core"
	"marketintel/internal/logger"
	"marketintel/internal/metrics"
	"marketintel/internal/signals"
	"marketintel/internal/snapshot"
	"marketintel/internal/vectorstore"
)

// SourceManager fetches and normalizes articles across providers.
type SourceManager interface {
	FetchAll(ctx context.Context, industry string, since time.Time) []core.Article
}

// SnapshotWriter persists drafted snapshots.
type SnapshotWriter interface {
	Save(ctx context.Context, snap core.MarketSnapshot) error
}

// SnapshotCacher caches drafted snapshots; nil-safe via the hasCache flag.
type SnapshotCacher interface {
	Set(ctx context.Context, snap core.MarketSnapshot) error
}

// Pipeline wires the run stages together.
type Pipeline struct {
	sources      SourceManager
	store        vectorstore.Store
	fetcher      signals.Fetcher
	scorer       *signals.Scorer
	drafter      *snapshot.Drafter
	writer       SnapshotWriter
	cache        SnapshotCacher
	ingestWindow time.Duration
}

// New builds a pipeline. cache may be nil when no Redis is configured.
func New(
	sources SourceManager,
	store vectorstore.Store,
	fetcher signals.Fetcher,
	scorer *signals.Scorer,
	drafter *snapshot.Drafter,
	writer SnapshotWriter,
	cache SnapshotCacher,
	ingestWindow time.Duration,
) *Pipeline {
	if ingestWindow <= 0 {
		ingestWindow = 7 * 24 * time.Hour
	}
	return &Pipeline{
		sources:      sources,
		store:        store,
		fetcher:      fetcher,
		scorer:       scorer,
		drafter:      drafter,
		writer:       writer,
		cache:        cache,
		ingestWindow: ingestWindow,
	}
}

// RunResult summarizes one pipeline execution.
type RunResult struct {
	Industry  string
	Fetched   int
	Stored    int
	Themes    int
	Snapshots []core.MarketSnapshot
}

// Run executes a full pipeline pass for one industry. The text branch
// (fetch, normalize, embed, store, cluster) and the quantitative branch
// run concurrently and join before scoring. A storage failure aborts the
// run; a quantitative failure degrades to an empty pack.
func (p *Pipeline) Run(ctx context.Context, industry string, cards []core.Card) (RunResult, error) {
	log := logger.With("pipeline")
	start := time.Now()
	result := RunResult{Industry: industry}

	var themes []core.Theme
	var articles []core.Article
	var pack core.SignalPack

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		since := time.Now().UTC().Add(-p.ingestWindow)
		fetched := p.sources.FetchAll(gctx, industry, since)
		result.Fetched = len(fetched)

		stored, err := p.store.UpsertBatch(gctx, fetched)
		if err != nil {
			return err
		}
		result.Stored = stored
		metrics.ArticlesIngested.WithLabelValues(industry).Add(float64(stored))

		recent, err := p.store.RecentArticles(gctx, industry, 100)
		if err != nil {
			return err
		}
		articles = recent

		clusterer := clustering.Select(recent)
		clustered, err := clusterer.Cluster(gctx, recent)
		if err != nil {
			return err
		}
		themes = clustered
		return nil
	})

	g.Go(func() error {
		fetched, err := p.fetcher.Fetch(gctx, industry)
		if err != nil {
			// Quantitative outage is survivable: score from text alone.
			log.Warn().Err(err).Str("industry", industry).Msg("quant fetch failed, continuing without pack")
			pack = core.SignalPack{Industry: industry, FetchedAt: time.Now().UTC()}
			return nil
		}
		pack = fetched
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.PipelineRuns.WithLabelValues(industry, "error").Inc()
		if apperr.Is(err, apperr.CodeStorage) {
			log.Error().Err(err).Str("industry", industry).Msg("storage failure, aborting run")
		}
		return result, err
	}
	result.Themes = len(themes)

	scored := p.scorer.Score(ctx, signals.ScoreInput{
		Industry: industry,
		Themes:   themes,
		Articles: articles,
		Pack:     pack,
	})

	for _, card := range cards {
		snap := p.drafter.Draft(card, scored)
		if err := p.writer.Save(ctx, snap); err != nil {
			metrics.PipelineRuns.WithLabelValues(industry, "error").Inc()
			return result, err
		}
		if p.cache != nil {
			if err := p.cache.Set(ctx, snap); err != nil {
				log.Warn().Err(err).Str("card", string(card)).Msg("snapshot cache write failed")
			}
		}
		metrics.SnapshotConfidence.WithLabelValues(string(card), industry).Set(snap.Confidence)
		result.Snapshots = append(result.Snapshots, snap)
	}

	metrics.PipelineRuns.WithLabelValues(industry, "success").Inc()
	metrics.PipelineDuration.WithLabelValues(industry).Observe(time.Since(start).Seconds())
	log.Info().
		Str("industry", industry).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("themes", result.Themes).
		Int("snapshots", len(result.Snapshots)).
		Dur("took", time.Since(start)).
		Msg("pipeline run complete")
	return result, nil
}
