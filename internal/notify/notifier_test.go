package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwhittaker/playpulse/internal/logging"
)

type fakeMailer struct {
	sent    []string
	failing bool
}

func (m *fakeMailer) Send(subject, body string) error {
	if m.failing {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent = append(m.sent, subject)
	return nil
}

func newTestNotifier(t *testing.T, mailer Mailer, threshold int, cooldown time.Duration) *Notifier {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	store := NewFileStateStore(t.TempDir() + "/state.json")
	return NewNotifier(store, mailer, threshold, cooldown, log)
}

func TestNotifierBelowThreshold(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sent, err := n.RecordFailure(ctx, "device:Living Room", "timeout")
		require.NoError(t, err)
		assert.False(t, sent)
	}
	assert.Empty(t, mailer.sent)
}

func TestNotifierSendsAtThreshold(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	var sent bool
	var err error
	for i := 0; i < 3; i++ {
		sent, err = n.RecordFailure(ctx, "device:Living Room", "timeout")
		require.NoError(t, err)
	}

	assert.True(t, sent)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "device:Living Room")
}

func TestNotifierCooldownSuppressesRepeat(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := n.RecordFailure(ctx, "device:Bedroom", "timeout")
		require.NoError(t, err)
	}
	require.Len(t, mailer.sent, 1)

	// Still failing 30 minutes later, inside the cooldown.
	now = now.Add(30 * time.Minute)
	sent, err := n.RecordFailure(ctx, "device:Bedroom", "timeout")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, mailer.sent, 1)

	// Past the cooldown it alerts again.
	now = now.Add(31 * time.Minute)
	sent, err = n.RecordFailure(ctx, "device:Bedroom", "timeout")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, mailer.sent, 2)
}

func TestNotifierSuccessResetsCount(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := n.RecordFailure(ctx, "device:Kitchen", "timeout")
		require.NoError(t, err)
	}
	require.NoError(t, n.RecordSuccess(ctx, "device:Kitchen"))

	// The counter restarted; two more failures stay below the threshold.
	for i := 0; i < 2; i++ {
		sent, err := n.RecordFailure(ctx, "device:Kitchen", "timeout")
		require.NoError(t, err)
		assert.False(t, sent)
	}
	assert.Empty(t, mailer.sent)
}

func TestNotifierSuccessIdempotent(t *testing.T) {
	n := newTestNotifier(t, &fakeMailer{}, 3, time.Hour)
	ctx := context.Background()

	require.NoError(t, n.RecordSuccess(ctx, "device:Never Failed"))
	require.NoError(t, n.RecordSuccess(ctx, "device:Never Failed"))
}

func TestNotifierSendFailureDoesNotStartCooldown(t *testing.T) {
	mailer := &fakeMailer{failing: true}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	var sent bool
	var err error
	for i := 0; i < 3; i++ {
		sent, err = n.RecordFailure(ctx, "device:Office", "timeout")
		require.NoError(t, err)
	}
	assert.False(t, sent)

	// Mail comes back; the very next failure delivers, with no cooldown
	// held over from the failed attempt.
	mailer.failing = false
	sent, err = n.RecordFailure(ctx, "device:Office", "timeout")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, mailer.sent, 1)
}

func TestNotifierTracksSourcesIndependently(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := n.RecordFailure(ctx, "device:A", "timeout")
		require.NoError(t, err)
	}
	sent, err := n.RecordFailure(ctx, "device:B", "timeout")
	require.NoError(t, err)

	assert.False(t, sent)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "device:A")
}

func TestNotifyProcessError(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(t, mailer, 3, time.Hour)

	ok := n.NotifyProcessError("tracker", fmt.Errorf("database locked"))
	assert.True(t, ok)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "tracker")
}
