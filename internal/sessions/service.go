package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/pwhittaker/playpulse/internal/logging"
	"github.com/pwhittaker/playpulse/internal/metrics"
	"github.com/pwhittaker/playpulse/internal/tracing"
	"github.com/pwhittaker/playpulse/pkg/models"
)

// EventSource provides a consistent read of the full event log.
type EventSource interface {
	AllEventsOrdered(ctx context.Context) ([]models.NormalizedEvent, error)
}

// SessionSink replaces the session table atomically.
type SessionSink interface {
	ReplaceAll(ctx context.Context, sessions []models.Session) error
}

// Service runs the reconstructor on its own cadence, independent of the
// poll cycle.
type Service struct {
	reconstructor *Reconstructor
	events        EventSource
	sink          SessionSink
	interval      time.Duration
	log           *logging.Logger
}

// NewService creates a reconstruction service.
func NewService(reconstructor *Reconstructor, events EventSource, sink SessionSink, interval time.Duration, log *logging.Logger) *Service {
	return &Service{
		reconstructor: reconstructor,
		events:        events,
		sink:          sink,
		interval:      interval,
		log:           log,
	}
}

// Rebuild performs one full reconstruction pass: read the log, recompute
// every session, replace the table.
func (s *Service) Rebuild(ctx context.Context) error {
	span, ctx := tracing.StartSpan(ctx, "sessions.rebuild")
	defer tracing.FinishSpan(span)

	start := time.Now()

	events, err := s.events.AllEventsOrdered(ctx)
	if err != nil {
		tracing.LogError(span, err)
		return fmt.Errorf("failed to read event log: %w", err)
	}

	result := s.reconstructor.Rebuild(events)

	if err := s.sink.ReplaceAll(ctx, result.Sessions); err != nil {
		tracing.LogError(span, err)
		return fmt.Errorf("failed to replace session table: %w", err)
	}

	duration := time.Since(start)
	tracing.SetTag(span, "events", result.EventCount)
	tracing.SetTag(span, "sessions", len(result.Sessions))

	metrics.SessionRebuildDuration.Observe(duration.Seconds())
	metrics.SessionsCount.Set(float64(len(result.Sessions)))
	s.log.LogRebuild(result.EventCount, len(result.Sessions), result.SkippedGroups, duration)

	return nil
}

// Run rebuilds on a ticker until the context is cancelled. A failed rebuild
// is logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Rebuild(ctx); err != nil {
				s.log.ErrorWithErr("Session rebuild failed", err)
			}
		}
	}
}
