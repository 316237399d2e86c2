package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pwhittaker/playpulse/internal/ingest"
	"github.com/pwhittaker/playpulse/internal/logging"
	"github.com/pwhittaker/playpulse/internal/metrics"
	"github.com/pwhittaker/playpulse/internal/source"
	"github.com/pwhittaker/playpulse/internal/tracing"
	"github.com/pwhittaker/playpulse/pkg/models"
)

// EventStore is the slice of the event log the poller needs: append one
// event, look up the previous one for the gate.
type EventStore interface {
	Append(ctx context.Context, event *models.NormalizedEvent) error
	LastEventFor(ctx context.Context, identity models.SourceIdentity) (*models.NormalizedEvent, error)
}

// FailureTracker records per-source poll outcomes for notification purposes.
type FailureTracker interface {
	RecordSuccess(ctx context.Context, sourceKey string) error
	RecordFailure(ctx context.Context, sourceKey, errorMessage string) (bool, error)
}

// EventPublisher pushes accepted events to downstream consumers.
type EventPublisher interface {
	PublishAccepted(ctx context.Context, cycleID string, event models.NormalizedEvent) error
}

// Poller runs the poll cycle: enumerate sources, fetch each one's snapshot
// concurrently, normalize, gate, and append.
type Poller struct {
	registry      *source.Registry
	store         EventStore
	failures      FailureTracker
	publisher     EventPublisher // nil when the queue is disabled
	interval      time.Duration
	sourceTimeout time.Duration
	log           *logging.Logger
}

// NewPoller creates a poller. publisher may be nil.
func NewPoller(registry *source.Registry, store EventStore, failures FailureTracker, publisher EventPublisher, interval, sourceTimeout time.Duration, log *logging.Logger) *Poller {
	return &Poller{
		registry:      registry,
		store:         store,
		failures:      failures,
		publisher:     publisher,
		interval:      interval,
		sourceTimeout: sourceTimeout,
		log:           log,
	}
}

type sourceResult struct {
	appended   bool
	suppressed bool
	failed     bool
}

// RunCycle executes one full poll cycle. Sources are polled concurrently;
// one slow or broken source delays or fails only itself.
func (p *Poller) RunCycle(ctx context.Context) {
	span, ctx := tracing.StartSpan(ctx, "poller.cycle")
	defer tracing.FinishSpan(span)

	cycleID := uuid.New().String()
	start := time.Now()
	log := p.log.WithCycleID(cycleID)

	entries, errs := p.registry.ListAll(ctx)
	for _, err := range errs {
		log.ErrorWithErr("Source enumeration failed", err)
	}
	tracing.SetTag(span, "cycle_id", cycleID)
	tracing.SetTag(span, "sources", len(entries))

	results := make([]sourceResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry source.Entry) {
			defer wg.Done()
			results[i] = p.pollSource(ctx, cycleID, entry)
		}(i, entry)
	}
	wg.Wait()

	var appended, suppressed, failed int
	for _, r := range results {
		if r.appended {
			appended++
		}
		if r.suppressed {
			suppressed++
		}
		if r.failed {
			failed++
		}
	}

	duration := time.Since(start)
	metrics.PollCycleDuration.Observe(duration.Seconds())
	log.LogPollCycle(cycleID, len(entries), appended, suppressed, failed, duration)
}

// pollSource fetches, normalizes, gates, and stores one source's snapshot.
func (p *Poller) pollSource(ctx context.Context, cycleID string, entry source.Entry) sourceResult {
	identity := models.SourceIdentity{
		DeviceName:  entry.Descriptor.DeviceName,
		UserName:    entry.Descriptor.UserName,
		DeviceModel: entry.Descriptor.DeviceModel,
	}
	key := identity.Key()

	span, ctx := tracing.StartSpan(ctx, "poller.source")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "source", key)

	log := p.log.WithCycleID(cycleID).WithSource(key)

	// The timeout bounds the fetch only. A timed-out source must still be
	// able to record its failure, so all bookkeeping below runs on the
	// cycle context, which is still live when the fetch deadline expires.
	fetchCtx, cancel := context.WithTimeout(ctx, p.sourceTimeout)
	snap, err := entry.Provider.FetchNowPlaying(fetchCtx, entry.Descriptor)
	cancel()
	if err != nil {
		kind := source.KindOf(err)
		tracing.LogError(span, err)
		metrics.PollsTotal.WithLabelValues(key, "error").Inc()
		metrics.SourceFailuresTotal.WithLabelValues(key, string(kind)).Inc()
		log.ErrorWithErr("Poll failed", err)

		if _, ferr := p.failures.RecordFailure(ctx, key, err.Error()); ferr != nil {
			log.ErrorWithErr("Failed to record failure", ferr)
		}
		return sourceResult{failed: true}
	}

	// Reaching the source at all is a success for notification purposes,
	// whatever the snapshot contains.
	if ferr := p.failures.RecordSuccess(ctx, key); ferr != nil {
		log.ErrorWithErr("Failed to record success", ferr)
	}

	if snap == nil {
		metrics.PollsTotal.WithLabelValues(key, "idle").Inc()
		return sourceResult{}
	}

	candidate, ok := ingest.Normalize(entry.Descriptor, *snap)
	if !ok {
		metrics.PollsTotal.WithLabelValues(key, "discarded").Inc()
		metrics.EventsDiscardedTotal.Inc()
		log.Debugf("Discarded observation in state %q", snap.RawState)
		return sourceResult{}
	}

	// The gate compares against the stored history, not the raw descriptor:
	// the normalized identity (rewritten device name included) is what
	// partitions the log.
	prev, err := p.store.LastEventFor(ctx, candidate.Source)
	if err != nil {
		tracing.LogError(span, err)
		metrics.PollsTotal.WithLabelValues(key, "store_error").Inc()
		log.ErrorWithErr("Failed to load previous event", err)
		return sourceResult{failed: true}
	}

	if ingest.Decide(prev, candidate) == ingest.DecisionSuppress {
		metrics.PollsTotal.WithLabelValues(key, "suppressed").Inc()
		metrics.EventsSuppressedTotal.Inc()
		return sourceResult{suppressed: true}
	}

	if err := p.store.Append(ctx, &candidate); err != nil {
		tracing.LogError(span, err)
		metrics.PollsTotal.WithLabelValues(key, "store_error").Inc()
		log.ErrorWithErr("Failed to append event", err)
		return sourceResult{failed: true}
	}

	metrics.PollsTotal.WithLabelValues(key, "appended").Inc()
	metrics.EventsAppendedTotal.Inc()
	log.LogNowPlaying(candidate.Source.DeviceName, string(candidate.State), candidate.AppName, candidate.Media.Title)

	if p.publisher != nil {
		if err := p.publisher.PublishAccepted(ctx, cycleID, candidate); err != nil {
			// Publishing is best-effort; the event is already durable.
			log.ErrorWithErr("Failed to publish event", err)
		}
	}

	return sourceResult{appended: true}
}

// Run polls immediately and then on every tick until the context is
// cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.RunCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}
