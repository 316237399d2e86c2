package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pwhittaker/playpulse/internal/logging"
	"github.com/pwhittaker/playpulse/internal/metrics"
	"github.com/pwhittaker/playpulse/pkg/models"
)

// StateStore persists per-source failure state across process restarts.
// Implementations must make each call an atomic read-modify-write so
// overlapping runs cannot lose updates.
type StateStore interface {
	Get(ctx context.Context, key string) (models.FailureState, bool, error)
	Put(ctx context.Context, key string, state models.FailureState) error
	Delete(ctx context.Context, key string) error
}

// Mailer sends a notification. Send returns an error when the message could
// not be delivered, including the not-configured case.
type Mailer interface {
	Send(subject, body string) error
}

// Notifier tracks consecutive failures per source and decides when a
// notification is warranted. The threshold suppresses alerts for single
// transient failures; the cooldown suppresses repeat alerts for a sustained
// outage. Both are needed: the threshold alone would re-alert every cycle
// once crossed.
type Notifier struct {
	store     StateStore
	mailer    Mailer
	threshold int
	cooldown  time.Duration
	log       *logging.Logger
	now       func() time.Time
}

// NewNotifier creates a failure notifier.
func NewNotifier(store StateStore, mailer Mailer, threshold int, cooldown time.Duration, log *logging.Logger) *Notifier {
	return &Notifier{
		store:     store,
		mailer:    mailer,
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
		now:       time.Now,
	}
}

// RecordSuccess clears any stored failure state for the source. Idempotent:
// calling it for a healthy source is a no-op.
func (n *Notifier) RecordSuccess(ctx context.Context, sourceKey string) error {
	_, exists, err := n.store.Get(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("failed to read failure state: %w", err)
	}
	if !exists {
		return nil
	}

	if err := n.store.Delete(ctx, sourceKey); err != nil {
		return fmt.Errorf("failed to clear failure state: %w", err)
	}

	metrics.ConsecutiveFailures.WithLabelValues(sourceKey).Set(0)
	return nil
}

// RecordFailure increments the consecutive failure count for the source and
// sends a notification when the threshold is reached and the cooldown has
// elapsed. Returns true only when a notification was actually sent. The
// counter is persisted before any notification decision so a crash cannot
// lose failures.
func (n *Notifier) RecordFailure(ctx context.Context, sourceKey, errorMessage string) (bool, error) {
	state, _, err := n.store.Get(ctx, sourceKey)
	if err != nil {
		return false, fmt.Errorf("failed to read failure state: %w", err)
	}

	state.ConsecutiveFailures++
	if err := n.store.Put(ctx, sourceKey, state); err != nil {
		return false, fmt.Errorf("failed to persist failure state: %w", err)
	}

	metrics.ConsecutiveFailures.WithLabelValues(sourceKey).Set(float64(state.ConsecutiveFailures))
	n.log.WithSource(sourceKey).Warnf("Failure %d/%d: %s", state.ConsecutiveFailures, n.threshold, errorMessage)

	if state.ConsecutiveFailures < n.threshold {
		return false, nil
	}

	now := n.now()
	if state.LastNotifiedAt != nil {
		sinceLast := now.Sub(*state.LastNotifiedAt)
		if sinceLast < n.cooldown {
			n.log.WithSource(sourceKey).Debugf("Skipping notification, last sent %s ago", sinceLast.Round(time.Minute))
			return false, nil
		}
	}

	subject := fmt.Sprintf("Source error: %s", sourceKey)
	body := fmt.Sprintf(`Playpulse encountered persistent errors with source: %s

Time: %s
Consecutive failures: %d
Latest error: %s

This may indicate:
- The device needs re-pairing
- The device is offline or unreachable
- Network connectivity issues

The source will not be tracked until this is resolved.
`, sourceKey, now.Format(time.RFC3339), state.ConsecutiveFailures, errorMessage)

	if err := n.mailer.Send(subject, body); err != nil {
		// State stays unchanged so the next eligible failure retries the
		// send instead of starting a cooldown for a mail that never left.
		n.log.WithSource(sourceKey).ErrorWithErr("Failed to send notification", err)
		return false, nil
	}

	state.LastNotifiedAt = &now
	if err := n.store.Put(ctx, sourceKey, state); err != nil {
		return true, fmt.Errorf("failed to persist notification time: %w", err)
	}

	metrics.NotificationsSentTotal.Inc()
	n.log.WithSource(sourceKey).Infof("Sent notification after %d consecutive failures", state.ConsecutiveFailures)
	return true, nil
}

// NotifyProcessError sends an immediate notification about a process-level
// error, bypassing threshold and cooldown. Send failures are logged and
// swallowed; a failed alert must not raise further alerts.
func (n *Notifier) NotifyProcessError(component string, err error) bool {
	subject := fmt.Sprintf("Process error: %s", component)
	body := fmt.Sprintf(`Playpulse encountered a process-level error.

Component: %s
Time: %s
Error: %v

Please check the logs for more details.
`, component, n.now().Format(time.RFC3339), err)

	if sendErr := n.mailer.Send(subject, body); sendErr != nil {
		n.log.ErrorWithErr("Failed to send process error notification", sendErr)
		return false
	}

	metrics.NotificationsSentTotal.Inc()
	return true
}
