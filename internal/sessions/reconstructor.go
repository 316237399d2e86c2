package sessions

import (
	"math"
	"sort"
	"time"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// Reconstructor rebuilds the session table from the full event log. It is a
// batch pass: sessions are recomputed from scratch every run and never
// patched incrementally.
type Reconstructor struct {
	// GapThreshold is the maximum idle time between observations still
	// considered the same session.
	GapThreshold time.Duration
	// MinWatchTime filters out accidental taps and skips.
	MinWatchTime time.Duration
}

// NewReconstructor creates a reconstructor with the given thresholds.
func NewReconstructor(gapThreshold, minWatchTime time.Duration) *Reconstructor {
	return &Reconstructor{
		GapThreshold: gapThreshold,
		MinWatchTime: minWatchTime,
	}
}

// Result carries a rebuilt session table plus diagnostics.
type Result struct {
	Sessions      []models.Session
	EventCount    int
	SkippedGroups int
}

type partition struct {
	deviceName string
	media      models.MediaIdentity
	events     []models.NormalizedEvent
}

// Rebuild groups the event log into sessions. Events are partitioned by
// device name and full media identity; within a partition a new session
// starts whenever the gap to the previous event exceeds the threshold. The
// session id is the running count of boundaries, so all events between two
// boundaries share one id.
//
// The output is deterministic: two runs over the same log produce identical
// tables.
func (r *Reconstructor) Rebuild(events []models.NormalizedEvent) Result {
	partitions := make(map[string]*partition)
	for _, ev := range events {
		key := ev.Source.DeviceName + "\x1e" + ev.Media.PartitionKey()
		p, ok := partitions[key]
		if !ok {
			p = &partition{deviceName: ev.Source.DeviceName, media: ev.Media}
			partitions[key] = p
		}
		p.events = append(p.events, ev)
	}

	// Stable partition order so equal-start sessions always come out in
	// the same sequence.
	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := Result{EventCount: len(events)}
	for _, key := range keys {
		p := partitions[key]

		sort.SliceStable(p.events, func(i, j int) bool {
			if p.events[i].Timestamp.Equal(p.events[j].Timestamp) {
				return p.events[i].ID < p.events[j].ID
			}
			return p.events[i].Timestamp.Before(p.events[j].Timestamp)
		})

		sessions, skipped := r.sessionsForPartition(p)
		result.Sessions = append(result.Sessions, sessions...)
		result.SkippedGroups += skipped
	}

	// Presentation order: newest session first.
	sort.SliceStable(result.Sessions, func(i, j int) bool {
		return result.Sessions[i].SessionStart.After(result.Sessions[j].SessionStart)
	})

	return result
}

func (r *Reconstructor) sessionsForPartition(p *partition) ([]models.Session, int) {
	// Running boundary count: the session id of an event is the number of
	// boundaries seen up to and including it.
	sessionID := 0
	var groups [][]models.NormalizedEvent
	var prev *models.NormalizedEvent

	for i := range p.events {
		ev := p.events[i]
		if prev == nil || ev.Timestamp.Sub(prev.Timestamp) > r.GapThreshold {
			sessionID++
			groups = append(groups, nil)
		}
		groups[sessionID-1] = append(groups[sessionID-1], ev)
		prev = &p.events[i]
	}

	var sessions []models.Session
	skipped := 0
	for _, group := range groups {
		session, ok := r.aggregate(p, group)
		if !ok {
			skipped++
			continue
		}
		if session.WatchTimeSeconds < r.MinWatchTime.Seconds() {
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, skipped
}

// aggregate folds one group of events into a session record. Nulls are
// absent from the min/max aggregates, never treated as zero: one entry
// without a position reading does not reset a session's progress.
func (r *Reconstructor) aggregate(p *partition, group []models.NormalizedEvent) (models.Session, bool) {
	start := group[0].Timestamp
	end := group[0].Timestamp
	var minPos, maxPos, maxDur *float64
	mediaType := models.MediaTypeUnknown

	for _, ev := range group {
		if ev.Timestamp.Before(start) {
			start = ev.Timestamp
		}
		if ev.Timestamp.After(end) {
			end = ev.Timestamp
		}
		if ev.PositionSeconds != nil {
			minPos = minNullable(minPos, *ev.PositionSeconds)
			maxPos = maxNullable(maxPos, *ev.PositionSeconds)
		}
		if ev.DurationSeconds != nil {
			maxDur = maxNullable(maxDur, *ev.DurationSeconds)
		}
		if mediaType == models.MediaTypeUnknown && ev.MediaType != models.MediaTypeUnknown {
			mediaType = ev.MediaType
		}
	}

	// Rows written without an observation time cannot be placed on the
	// timeline; a zero minimum would poison the group's start. Skip the
	// group rather than abort the whole rebuild.
	if start.IsZero() {
		return models.Session{}, false
	}

	// Position progress when the source reports positions, wall clock
	// otherwise (some speakers never report a position).
	var watchTime float64
	if maxPos != nil && minPos != nil {
		watchTime = *maxPos - *minPos
	} else {
		watchTime = end.Sub(start).Seconds()
	}

	// Completion is deliberately not clamped: a position past the end of
	// the media must surface as >100 instead of hiding a source data
	// quality issue.
	var completion *float64
	if maxDur != nil && *maxDur > 0 && maxPos != nil {
		pct := round1(*maxPos / *maxDur * 100)
		completion = &pct
	}

	return models.Session{
		DeviceName:         p.deviceName,
		Media:              p.media,
		MediaType:          mediaType,
		SessionStart:       start,
		SessionEnd:         end,
		MaxPositionReached: maxPos,
		MediaDuration:      maxDur,
		WatchTimeSeconds:   watchTime,
		CompletionPct:      completion,
		NumEntries:         len(group),
	}, true
}

func minNullable(current *float64, v float64) *float64 {
	if current == nil || v < *current {
		return &v
	}
	return current
}

func maxNullable(current *float64, v float64) *float64 {
	if current == nil || v > *current {
		return &v
	}
	return current
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
