// Package export renders snapshots to downloadable files through
// asynchronous, poll-only jobs.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketintel/internal/core"
	"marketintel/internal/logger"
)

// ErrJobNotFound is returned when polling an unknown job id.
var ErrJobNotFound = errors.New("export job not found")

// ErrUnsupportedFormat is returned for formats other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// SnapshotReader fetches the latest snapshot for a card and industry.
type SnapshotReader interface {
	Latest(ctx context.Context, card core.Card, industry string) (core.MarketSnapshot, error)
}

// Service runs export jobs in the background and tracks their status in
// memory. Callers poll by job id; there is no completion callback.
type Service struct {
	reader    SnapshotReader
	outputDir string

	mu   sync.RWMutex
	jobs map[string]core.ExportJob
}

// NewService builds an export service writing to outputDir.
func NewService(reader SnapshotReader, outputDir string) *Service {
	if outputDir == "" {
		outputDir = "exports"
	}
	return &Service{
		reader:    reader,
		outputDir: outputDir,
		jobs:      make(map[string]core.ExportJob),
	}
}

// Submit starts an export job and returns it in the processing state.
// Rendering happens on a background goroutine.
func (s *Service) Submit(ctx context.Context, card core.Card, industry, format string) (core.ExportJob, error) {
	if format != "json" && format != "csv" {
		return core.ExportJob{}, ErrUnsupportedFormat
	}

	job := core.ExportJob{
		ID:        uuid.NewString(),
		Card:      card,
		Industry:  industry,
		Format:    format,
		Status:    core.ExportProcessing,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), job)
	return job, nil
}

// Status returns the current state of a job.
func (s *Service) Status(_ context.Context, id string) (core.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.ExportJob{}, ErrJobNotFound
	}
	return job, nil
}

func (s *Service) run(ctx context.Context, job core.ExportJob) {
	log := logger.With("export")

	location, err := s.render(ctx, job)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.jobs[job.ID]
	stored.CompletedAt = &now
	if err != nil {
		stored.Status = core.ExportFailed
		stored.Error = err.Error()
		log.Error().Err(err).Str("job", job.ID).Msg("export failed")
	} else {
		stored.Status = core.ExportCompleted
		stored.Location = location
		log.Info().Str("job", job.ID).Str("location", location).Msg("export complete")
	}
	s.jobs[job.ID] = stored
}

func (s *Service) render(ctx context.Context, job core.ExportJob) (string, error) {
	snap, err := s.reader.Latest(ctx, job.Card, job.Industry)
	if err != nil {
		return "", fmt.Errorf("no snapshot to export: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s.%s", job.Card, job.Industry, job.ID[:8], job.Format)
	path := filepath.Join(s.outputDir, name)

	switch job.Format {
	case "json":
		err = writeJSON(path, snap)
	case "csv":
		err = writeCSV(path, snap)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, snap core.MarketSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to write json export: %w", err)
	}
	return nil
}

// writeCSV flattens the snapshot payload into key,value rows followed by
// the source list.
func writeCSV(path string, snap core.MarketSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := [][]string{
		{"field", "value"},
		{"card", string(snap.Card)},
		{"industry", snap.Industry},
		{"confidence", fmt.Sprintf("%.3f", snap.Confidence)},
		{"model_version", snap.ModelVersion},
		{"created_at", snap.CreatedAt.Format(time.RFC3339)},
	}
	for _, row := range header {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv export: %w", err)
		}
	}

	for _, row := range flatten("", snap.Snapshot) {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv export: %w", err)
		}
	}
	for i, src := range snap.Sources {
		row := []string{fmt.Sprintf("source_%d", i+1), fmt.Sprintf("%s (%s)", src.Title, src.URL)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv export: %w", err)
		}
	}
	return w.Error()
}

// flatten turns a nested payload into dotted key rows in stable order.
func flatten(prefix string, value any) [][]string {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var rows [][]string
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			rows = append(rows, flatten(key, v[k])...)
		}
		return rows
	case []any:
		var rows [][]string
		for i, item := range v {
			rows = append(rows, flatten(fmt.Sprintf("%s.%d", prefix, i), item)...)
		}
		return rows
	case []map[string]any:
		var rows [][]string
		for i, item := range v {
			rows = append(rows, flatten(fmt.Sprintf("%s.%d", prefix, i), item)...)
		}
		return rows
	case []string:
		var rows [][]string
		for i, item := range v {
			rows = append(rows, []string{fmt.Sprintf("%s.%d", prefix, i), item})
		}
		return rows
	default:
		return [][]string{{prefix, fmt.Sprintf("%v", v)}}
	}
}
