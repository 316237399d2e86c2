package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwhittaker/playpulse/pkg/models"
)

var base = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }

func playEvent(id int64, at time.Time, device, title string) models.NormalizedEvent {
	return models.NormalizedEvent{
		ID:        id,
		Timestamp: at,
		Source:    models.SourceIdentity{DeviceName: device, DeviceModel: "AppleTV11,1"},
		State:     models.StatePlaying,
		Media:     models.MediaIdentity{Title: strPtr(title)},
		MediaType: models.MediaTypeVideo,
	}
}

func TestRebuildGapSegmentation(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	// t=0 and t=5 belong together; t=20 is past the gap threshold and
	// starts a new session.
	events := []models.NormalizedEvent{
		playEvent(1, base, "Living Room", "Movie"),
		playEvent(2, base.Add(5*time.Minute), "Living Room", "Movie"),
		playEvent(3, base.Add(20*time.Minute), "Living Room", "Movie"),
	}

	result := r.Rebuild(events)
	require.Len(t, result.Sessions, 2)

	// Newest first.
	assert.Equal(t, base.Add(20*time.Minute), result.Sessions[0].SessionStart)
	assert.Equal(t, 1, result.Sessions[0].NumEntries)
	assert.Equal(t, base, result.Sessions[1].SessionStart)
	assert.Equal(t, base.Add(5*time.Minute), result.Sessions[1].SessionEnd)
	assert.Equal(t, 2, result.Sessions[1].NumEntries)
}

func TestRebuildExactGapIsSameSession(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	events := []models.NormalizedEvent{
		playEvent(1, base, "Living Room", "Movie"),
		playEvent(2, base.Add(10*time.Minute), "Living Room", "Movie"),
	}

	result := r.Rebuild(events)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, 2, result.Sessions[0].NumEntries)
}

func TestRebuildPartitionsByDeviceAndMedia(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	events := []models.NormalizedEvent{
		playEvent(1, base, "Living Room", "Movie"),
		playEvent(2, base.Add(time.Minute), "Bedroom", "Movie"),
		playEvent(3, base.Add(2*time.Minute), "Living Room", "Other Movie"),
	}

	result := r.Rebuild(events)
	assert.Len(t, result.Sessions, 3)
}

func TestRebuildWatchTimeFromPositions(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	first := playEvent(1, base, "Living Room", "Movie")
	first.PositionSeconds = fPtr(10)
	first.DurationSeconds = fPtr(200)
	second := playEvent(2, base.Add(5*time.Minute), "Living Room", "Movie")
	second.PositionSeconds = fPtr(190)
	second.DurationSeconds = fPtr(200)

	result := r.Rebuild([]models.NormalizedEvent{first, second})
	require.Len(t, result.Sessions, 1)

	s := result.Sessions[0]
	assert.Equal(t, 180.0, s.WatchTimeSeconds)
	require.NotNil(t, s.MaxPositionReached)
	assert.Equal(t, 190.0, *s.MaxPositionReached)
	require.NotNil(t, s.CompletionPct)
	assert.Equal(t, 95.0, *s.CompletionPct)
}

func TestRebuildWallClockFallback(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	// No position readings at all, e.g. a speaker.
	events := []models.NormalizedEvent{
		playEvent(1, base, "Kitchen", "Song"),
		playEvent(2, base.Add(3*time.Minute), "Kitchen", "Song"),
	}

	result := r.Rebuild(events)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, 180.0, result.Sessions[0].WatchTimeSeconds)
	assert.Nil(t, result.Sessions[0].CompletionPct)
}

func TestRebuildCompletionNotClamped(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	first := playEvent(1, base, "Living Room", "Movie")
	first.PositionSeconds = fPtr(0)
	second := playEvent(2, base.Add(5*time.Minute), "Living Room", "Movie")
	second.PositionSeconds = fPtr(220)
	second.DurationSeconds = fPtr(200)

	result := r.Rebuild([]models.NormalizedEvent{first, second})
	require.Len(t, result.Sessions, 1)
	require.NotNil(t, result.Sessions[0].CompletionPct)
	assert.Equal(t, 110.0, *result.Sessions[0].CompletionPct)
}

func TestRebuildNullPositionDoesNotResetProgress(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	first := playEvent(1, base, "Living Room", "Movie")
	first.PositionSeconds = fPtr(100)
	first.DurationSeconds = fPtr(200)
	// Mid-session event with no readings.
	second := playEvent(2, base.Add(time.Minute), "Living Room", "Movie")
	third := playEvent(3, base.Add(2*time.Minute), "Living Room", "Movie")
	third.PositionSeconds = fPtr(150)
	third.DurationSeconds = fPtr(200)

	result := r.Rebuild([]models.NormalizedEvent{first, second, third})
	require.Len(t, result.Sessions, 1)

	s := result.Sessions[0]
	assert.Equal(t, 50.0, s.WatchTimeSeconds)
	require.NotNil(t, s.CompletionPct)
	assert.Equal(t, 75.0, *s.CompletionPct)
}

func TestRebuildMinWatchTimeFilter(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 30*time.Second)

	// A 10 second skip-through is filtered out.
	short := []models.NormalizedEvent{
		playEvent(1, base, "Living Room", "Skipped"),
		playEvent(2, base.Add(10*time.Second), "Living Room", "Skipped"),
	}
	result := r.Rebuild(short)
	assert.Empty(t, result.Sessions)

	// A single observation has zero watch time and is filtered too.
	result = r.Rebuild([]models.NormalizedEvent{playEvent(1, base, "Living Room", "Tap")})
	assert.Empty(t, result.Sessions)
}

func TestRebuildMediaTypeFromFirstKnown(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	first := playEvent(1, base, "Living Room", "Movie")
	first.MediaType = models.MediaTypeUnknown
	second := playEvent(2, base.Add(time.Minute), "Living Room", "Movie")
	second.MediaType = models.MediaTypeVideo

	result := r.Rebuild([]models.NormalizedEvent{first, second})
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, models.MediaTypeVideo, result.Sessions[0].MediaType)
}

func TestRebuildSkipsUnstampedGroups(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	// A zero timestamp sorts first and is further than the gap threshold
	// from any real observation, so it forms its own group and is skipped
	// without disturbing the rest of the partition.
	events := []models.NormalizedEvent{
		playEvent(1, time.Time{}, "Living Room", "Movie"),
		playEvent(2, base, "Living Room", "Movie"),
		playEvent(3, base.Add(time.Minute), "Living Room", "Movie"),
	}

	result := r.Rebuild(events)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, base, result.Sessions[0].SessionStart)
	assert.Equal(t, 2, result.Sessions[0].NumEntries)
	assert.Equal(t, 1, result.SkippedGroups)
}

func TestRebuildDeterministic(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 0)

	var events []models.NormalizedEvent
	devices := []string{"Living Room", "Bedroom", "Kitchen"}
	titles := []string{"Movie A", "Movie B"}
	id := int64(0)
	for i := 0; i < 40; i++ {
		id++
		events = append(events, playEvent(id,
			base.Add(time.Duration(i)*time.Minute),
			devices[i%len(devices)], titles[i%len(titles)]))
	}

	first := r.Rebuild(events)
	second := r.Rebuild(events)
	assert.Equal(t, first.Sessions, second.Sessions)
}

func TestRebuildEmptyLog(t *testing.T) {
	r := NewReconstructor(10*time.Minute, 30*time.Second)
	result := r.Rebuild(nil)
	assert.Empty(t, result.Sessions)
	assert.Zero(t, result.EventCount)
}
