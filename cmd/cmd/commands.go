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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketintel/internal/core"
	"marketintel/internal/pipeline"
	"marketintel/internal/retrieval"
	"marketintel/internal/server"
)

var (
	flagIndustry  string
	flagCard      string
	flagLimit     int
	flagThreshold float64
	flagWindow    time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, normalize, embed, and store articles for an industry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		since := time.Now().UTC().Add(-flagWindow)
		articles := a.manager.FetchAll(ctx, flagIndustry, since)
		stored, err := a.store.UpsertBatch(ctx, articles)
		if err != nil {
			return err
		}
		total, err := a.store.CountForIndustry(ctx, flagIndustry)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d articles, stored %d new for %q (%d in corpus)\n",
			len(articles), stored, flagIndustry, total)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run the full pipeline once and draft snapshots for an industry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		cards := allCards()
		if flagCard != "" {
			cards = []core.Card{core.Card(flagCard)}
		}
		result, err := a.pipeline.Run(ctx, flagIndustry, cards)
		if err != nil {
			return err
		}

		fmt.Printf("Pipeline complete: %d fetched, %d stored, %d themes\n",
			result.Fetched, result.Stored, result.Themes)
		for _, snap := range result.Snapshots {
			fmt.Printf("  %s: confidence %.2f, expires %s\n",
				snap.Card, snap.Confidence, snap.ExpiresAt().Format(time.RFC3339))
			if snap.DivergenceNote != "" {
				fmt.Printf("  divergence: %s\n", snap.DivergenceNote)
			}
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question over the ingested corpus with cited sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.retrieval.Answer(ctx, retrieval.Request{
			Query:     strings.Join(args, " "),
			Industry:  flagIndustry,
			Limit:     flagLimit,
			Threshold: flagThreshold,
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.Answer)
		if len(resp.Citations) > 0 {
			fmt.Println("\nSources:")
			for i, c := range resp.Citations {
				fmt.Printf("  [%d] %s - %s (%.2f)\n", i+1, c.Title, c.URL, c.RelevanceScore)
			}
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline on a schedule for the configured industries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		industries := splitIndustries(flagIndustry)
		if len(industries) == 0 {
			return fmt.Errorf("at least one industry is required")
		}

		scheduler := pipeline.NewScheduler(a.pipeline, industries, allCards(), a.cfg.Pipeline.RunInterval)
		scheduler.Start(ctx)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query, snapshot, and export HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Config{
			Host:         a.cfg.Server.Host,
			Port:         a.cfg.Server.Port,
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
			CORSOrigins:  a.cfg.Server.CORSOrigins,
		}, a.retrieval, a.repo, a.cache, a.exports)

		if flagIndustry != "" {
			scheduler := pipeline.NewScheduler(a.pipeline, splitIndustries(flagIndustry), allCards(), a.cfg.Pipeline.RunInterval)
			go scheduler.Start(ctx)
		}
		return srv.Start(ctx)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the store, embedder, and search path",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		status := a.retrieval.HealthCheck(ctx)

		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		if status.Status == "unhealthy" {
			os.Exit(1)
		}
		return nil
	},
}

func allCards() []core.Card {
	return []core.Card{core.CardMarketSignals, core.CardBusinessTrends, core.CardEngagementIntel}
}

func splitIndustries(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	ingestCmd.Flags().StringVar(&flagIndustry, "industry", "", "industry to ingest (required)")
	ingestCmd.Flags().DurationVar(&flagWindow, "window", 168*time.Hour, "how far back to fetch")
	_ = ingestCmd.MarkFlagRequired("industry")

	snapshotCmd.Flags().StringVar(&flagIndustry, "industry", "", "industry to snapshot (required)")
	snapshotCmd.Flags().StringVar(&flagCard, "card", "", "single card to draft (default all)")
	_ = snapshotCmd.MarkFlagRequired("industry")

	queryCmd.Flags().StringVar(&flagIndustry, "industry", "", "restrict search to one industry")
	queryCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results to retrieve")
	queryCmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "similarity threshold override")

	runCmd.Flags().StringVar(&flagIndustry, "industry", "", "comma-separated industries (required)")
	_ = runCmd.MarkFlagRequired("industry")

	serveCmd.Flags().StringVar(&flagIndustry, "industry", "", "comma-separated industries to also run the scheduler for")

	rootCmd.AddCommand(ingestCmd, snapshotCmd, queryCmd, runCmd, serveCmd, healthCmd)
}
