// Package metrics exposes Prometheus instruments for the pipeline and
// the query surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticlesIngested counts stored articles per industry.
	ArticlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_articles_ingested_total",
		Help: "Articles stored in the vector store",
	}, []string{"industry"})

	// PipelineRuns counts pipeline executions by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_pipeline_runs_total",
		Help: "Pipeline runs by result",
	}, []string{"industry", "result"})

	// PipelineDuration observes end-to-end pipeline run time.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketintel_pipeline_duration_seconds",
		Help:    "End-to-end pipeline run duration",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"industry"})

	// Queries counts retrieval queries by outcome.
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_queries_total",
		Help: "Retrieval queries by result",
	}, []string{"result"})

	// QueryDuration observes retrieval latency.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketintel_query_duration_seconds",
		Help:    "Retrieval query duration",
		Buckets: prometheus.DefBuckets,
	})

	// SnapshotConfidence records the confidence of the latest drafted
	// snapshot per card and industry.
	SnapshotConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketintel_snapshot_confidence",
		Help: "Confidence of the most recently drafted snapshot",
	}, []string{"card", "industry"})

	// CacheHits counts snapshot cache hits and misses.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketintel_snapshot_cache_total",
		Help: "Snapshot cache lookups by result",
	}, []string{"result"})
)
