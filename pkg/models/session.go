package models

import (
	"fmt"
	"time"
)

// Session is a reconstructed contiguous viewing/listening episode of one
// media item on one device. Sessions have no identity across reconstruction
// runs; every rebuild fully replaces the session table.
type Session struct {
	DeviceName         string        `json:"device_name" db:"device_name"`
	Media              MediaIdentity `json:"media"`
	MediaType          MediaType     `json:"media_type" db:"media_type"`
	SessionStart       time.Time     `json:"session_start" db:"session_start"`
	SessionEnd         time.Time     `json:"session_end" db:"session_end"`
	MaxPositionReached *float64      `json:"max_position_reached,omitempty" db:"max_position_reached"`
	MediaDuration      *float64      `json:"media_duration,omitempty" db:"media_duration"`
	WatchTimeSeconds   float64       `json:"watch_time_seconds" db:"watch_time_seconds"`
	CompletionPct      *float64      `json:"completion_pct,omitempty" db:"completion_pct"`
	NumEntries         int           `json:"num_entries" db:"num_entries"`
}

// DisplayTitle renders a human-readable label for the session's media:
// "Series S1E2" for episodic video, "Artist - Title" for music, otherwise
// the bare title.
func (s Session) DisplayTitle() string {
	if s.Media.SeriesName != nil {
		label := *s.Media.SeriesName
		if s.Media.Season != nil && s.Media.Episode != nil {
			label = fmt.Sprintf("%s S%dE%d", label, *s.Media.Season, *s.Media.Episode)
		}
		return label
	}
	title := strPtrOrEmpty(s.Media.Title)
	if s.Media.Artist != nil {
		return fmt.Sprintf("%s - %s", *s.Media.Artist, title)
	}
	return title
}

// DeviceStats aggregates total watch time per device across all sessions.
type DeviceStats struct {
	DeviceName  string  `json:"device_name" db:"device_name"`
	TotalHours  float64 `json:"total_hours" db:"total_hours"`
	NumSessions int     `json:"num_sessions" db:"num_sessions"`
}

// MediaTypeStats aggregates total watch time per media type.
type MediaTypeStats struct {
	MediaType   MediaType `json:"media_type" db:"media_type"`
	TotalHours  float64   `json:"total_hours" db:"total_hours"`
	NumSessions int       `json:"num_sessions" db:"num_sessions"`
}
