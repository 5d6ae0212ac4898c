package pipeline

import (
	"context"
	"time"

	"marketintel/internal/core"
	"marketintel/internal/logger"
)

// Scheduler runs the pipeline for a set of industries on a fixed
// interval. An industry's failure never blocks the others.
type Scheduler struct {
	pipeline   *Pipeline
	industries []string
	cards      []core.Card
	interval   time.Duration
}

// NewScheduler builds a scheduler. A zero interval selects six hours.
func NewScheduler(p *Pipeline, industries []string, cards []core.Card, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if len(cards) == 0 {
		cards = []core.Card{core.CardMarketSignals, core.CardBusinessTrends, core.CardEngagementIntel}
	}
	return &Scheduler{
		pipeline:   p,
		industries: industries,
		cards:      cards,
		interval:   interval,
	}
}

// Start runs one pass immediately, then on every tick until the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.With("scheduler")
	log.Info().
		Strs("industries", s.industries).
		Dur("interval", s.interval).
		Msg("scheduler started")

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, industry := range s.industries {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.pipeline.Run(ctx, industry, s.cards); err != nil {
			logger.With("scheduler").Error().
				Err(err).
				Str("industry", industry).
				Msg("scheduled run failed")
		}
	}
}
