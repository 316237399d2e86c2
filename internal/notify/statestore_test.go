package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwhittaker/playpulse/pkg/models"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	store := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	assert.False(t, ok)

	notified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := models.FailureState{ConsecutiveFailures: 4, LastNotifiedAt: &notified}
	require.NoError(t, store.Put(ctx, "device:TV", want))

	got, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.ConsecutiveFailures)
	require.NotNil(t, got.LastNotifiedAt)
	assert.True(t, got.LastNotifiedAt.Equal(notified))

	require.NoError(t, store.Delete(ctx, "device:TV"))
	_, ok, err = store.Get(ctx, "device:TV")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStateStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	first := NewFileStateStore(path)
	require.NoError(t, first.Put(ctx, "device:TV", models.FailureState{ConsecutiveFailures: 2}))

	second := NewFileStateStore(path)
	got, ok, err := second.Get(ctx, "device:TV")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.ConsecutiveFailures)
}

func TestFileStateStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewFileStateStore(path)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	assert.False(t, ok)

	// Writes still work after corruption.
	require.NoError(t, store.Put(ctx, "device:TV", models.FailureState{ConsecutiveFailures: 1}))
	got, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.ConsecutiveFailures)
}

func TestRedisStateStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	store, err := NewRedisStateStore(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "device:TV", models.FailureState{ConsecutiveFailures: 3}))

	got, ok, err := store.Get(ctx, "device:TV")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.ConsecutiveFailures)

	require.NoError(t, store.Delete(ctx, "device:TV"))
	_, ok, err = store.Get(ctx, "device:TV")
	require.NoError(t, err)
	assert.False(t, ok)
}
