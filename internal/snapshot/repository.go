package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"marketintel/internal/apperr"
	"marketintel/internal/core"
)

// ErrNoFreshSnapshot is returned when no unexpired snapshot exists for a
// card and industry.
var ErrNoFreshSnapshot = errors.New("no fresh snapshot available")

// Repository persists snapshots append-only; history is kept and Latest
// filters expired rows at read time.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository wires a snapshot repository over an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Migrate creates the snapshots table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS market_snapshots (
			id UUID PRIMARY KEY,
			card TEXT NOT NULL,
			industry TEXT NOT NULL,
			snapshot JSONB NOT NULL,
			sources JSONB NOT NULL DEFAULT '[]',
			confidence DOUBLE PRECISION NOT NULL,
			model_version TEXT NOT NULL,
			ttl_minutes INT NOT NULL,
			divergence_note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return apperr.New(apperr.CodeStorage, "snapshot migration failed", err)
	}
	_, err := r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_market_snapshots_lookup
			ON market_snapshots (card, industry, created_at DESC)
	`)
	if err != nil {
		return apperr.New(apperr.CodeStorage, "snapshot index migration failed", err)
	}
	return nil
}

// Save appends a snapshot. Existing rows are never updated.
func (r *Repository) Save(ctx context.Context, snap core.MarketSnapshot) error {
	payload, err := json.Marshal(snap.Snapshot)
	if err != nil {
		return apperr.New(apperr.CodeStorage, "failed to encode snapshot payload", err)
	}
	sources, err := json.Marshal(snap.Sources)
	if err != nil {
		return apperr.New(apperr.CodeStorage, "failed to encode snapshot sources", err)
	}

	query := `
		INSERT INTO market_snapshots (
			id, card, industry, snapshot, sources, confidence,
			model_version, ttl_minutes, divergence_note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		snap.ID, string(snap.Card), snap.Industry, payload, sources,
		snap.Confidence, snap.ModelVersion, snap.TTLMinutes,
		snap.DivergenceNote, snap.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return apperr.New(apperr.CodeStorage,
				fmt.Sprintf("failed to save snapshot (pq %s)", pqErr.Code), err)
		}
		return apperr.New(apperr.CodeStorage, "failed to save snapshot", err)
	}
	return nil
}

// Latest returns the newest unexpired snapshot for the card and industry,
// or ErrNoFreshSnapshot when every stored row has aged out. Expiry is
// filtered in SQL so rows with short TTLs never shadow older fresh ones.
func (r *Repository) Latest(ctx context.Context, card core.Card, industry string) (core.MarketSnapshot, error) {
	query := `
		SELECT id, card, industry, snapshot, sources, confidence,
		       model_version, ttl_minutes, divergence_note, created_at
		FROM market_snapshots
		WHERE card = $1 AND industry = $2
		  AND created_at + ttl_minutes * interval '1 minute' > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, string(card), industry, r.now().UTC())
	if err != nil {
		return core.MarketSnapshot{}, apperr.New(apperr.CodeStorage, "failed to query snapshots", err)
	}
	defer rows.Close()

	if rows.Next() {
		return scanSnapshot(rows)
	}
	if err := rows.Err(); err != nil {
		return core.MarketSnapshot{}, apperr.New(apperr.CodeStorage, "snapshot row iteration error", err)
	}
	return core.MarketSnapshot{}, ErrNoFreshSnapshot
}

func scanSnapshot(rows *sql.Rows) (core.MarketSnapshot, error) {
	var snap core.MarketSnapshot
	var card string
	var payload, sources []byte
	if err := rows.Scan(
		&snap.ID, &card, &snap.Industry, &payload, &sources,
		&snap.Confidence, &snap.ModelVersion, &snap.TTLMinutes,
		&snap.DivergenceNote, &snap.CreatedAt,
	); err != nil {
		return core.MarketSnapshot{}, apperr.New(apperr.CodeStorage, "failed to scan snapshot", err)
	}
	snap.Card = core.Card(card)
	if err := json.Unmarshal(payload, &snap.Snapshot); err != nil {
		return core.MarketSnapshot{}, apperr.New(apperr.CodeStorage, "failed to decode snapshot payload", err)
	}
	if err := json.Unmarshal(sources, &snap.Sources); err != nil {
		return core.MarketSnapshot{}, apperr.New(apperr.CodeStorage, "failed to decode snapshot sources", err)
	}
	return snap, nil
}
