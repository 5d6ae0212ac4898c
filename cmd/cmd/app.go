/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"marketintel/internal/config"
	"marketintel/internal/export"
	"marketintel/internal/llm"
	"marketintel/internal/logger"
	"marketintel/internal/pipeline"
	"marketintel/internal/retrieval"
	"marketintel/internal/signals"
	"marketintel/internal/snapshot"
	"marketintel/internal/sources"
	"marketintel/internal/vectorstore"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	llmClient *llm.Client
	store     *vectorstore.PgVectorStore
	manager   *sources.Manager
	repo      *snapshot.Repository
	cache     *snapshot.Cache
	pipeline  *pipeline.Pipeline
	retrieval *retrieval.Service
	exports   *export.Service
}

// newApp wires everything from configuration. The snapshot cache is
// optional: a Redis connection failure logs a warning and the app runs
// repository-only.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Get()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (set MARKETINTEL_DATABASE_URL)")
	}
	db, err := vectorstore.Open(cfg.Database.URL,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewClient(ctx, cfg.AI.Gemini.Model)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := vectorstore.NewPgVectorStore(db, llmClient,
		vectorstore.WithBatching(cfg.Pipeline.EmbedBatchSize, cfg.Pipeline.EmbedBatchDelay))
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	repo := snapshot.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var cache *snapshot.Cache
	if cfg.Redis.Address != "" {
		client, err := snapshot.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Get().Warn().Err(err).Msg("redis unavailable, running without snapshot cache")
		} else {
			cache = snapshot.NewCache(client)
		}
	}

	manager, err := buildSourceManager(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var fetcher signals.Fetcher = signals.NewDerivedFetcher(store.RecentArticles)
	if cfg.Signals.Endpoint != "" {
		fetcher = signals.NewHTTPFetcher(cfg.Signals.Endpoint, cfg.Signals.APIKey, cfg.Signals.Timeout)
	}
	scorer := signals.NewScorer()
	drafter := snapshot.NewDrafter(cfg.App.ModelVersion, cfg.Pipeline.SnapshotTTL)

	var cacher pipeline.SnapshotCacher
	if cache != nil {
		cacher = cache
	}
	pipe := pipeline.New(manager, store, fetcher, scorer, drafter, repo, cacher, cfg.Pipeline.IngestWindow)

	retrievalSvc := retrieval.NewService(llmClient, store, llmClient,
		retrieval.WithLimits(cfg.Retrieval.DefaultLimit, cfg.Retrieval.MaxLimit, cfg.Retrieval.DefaultThreshold))

	return &app{
		cfg:       cfg,
		db:        db,
		llmClient: llmClient,
		store:     store,
		manager:   manager,
		repo:      repo,
		cache:     cache,
		pipeline:  pipe,
		retrieval: retrievalSvc,
		exports:   export.NewService(repo, cfg.Export.OutputDir),
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func buildSourceManager(cfg *config.Config) (*sources.Manager, error) {
	factory := sources.NewFactory()
	var providers []sources.Provider
	for _, name := range cfg.Sources.Enabled {
		var providerCfg map[string]string
		switch sources.ProviderType(name) {
		case sources.ProviderTypeFinnhub:
			providerCfg = map[string]string{
				"api_key":  cfg.Sources.Finnhub.APIKey,
				"base_url": cfg.Sources.Finnhub.BaseURL,
			}
		case sources.ProviderTypeNewsAPI:
			providerCfg = map[string]string{
				"api_key":  cfg.Sources.NewsAPI.APIKey,
				"base_url": cfg.Sources.NewsAPI.BaseURL,
			}
		case sources.ProviderTypeRSS:
			providerCfg = map[string]string{
				"feeds": strings.Join(cfg.Sources.RSS.Feeds, ","),
			}
		default:
			providerCfg = map[string]string{}
		}

		provider, err := factory.Create(sources.ProviderType(name), providerCfg)
		if err != nil {
			// A provider without credentials is skipped, not fatal.
			logger.Get().Warn().Err(err).Str("provider", name).Msg("skipping source provider")
			continue
		}
		providers = append(providers, provider)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable source providers configured")
	}
	return sources.NewManager(providers, cfg.Sources.ProviderTimeout), nil
}
