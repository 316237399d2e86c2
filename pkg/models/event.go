package models

import (
	"fmt"
	"strings"
	"time"
)

// PlaybackState is the canonical playback state. Raw source states that are
// not playing or paused carry no session information and are discarded
// before storage.
type PlaybackState string

const (
	StatePlaying PlaybackState = "Playing"
	StatePaused  PlaybackState = "Paused"
)

// MediaType is the canonical media classification.
type MediaType string

const (
	MediaTypeVideo   MediaType = "Video"
	MediaTypeMusic   MediaType = "Music"
	MediaTypeUnknown MediaType = "Unknown"
)

// DeviceClass groups device models into broad categories used for media-type
// inference when a source reports an unknown media type.
type DeviceClass string

const (
	DeviceClassBox      DeviceClass = "box"      // set-top boxes, TVs
	DeviceClassSpeaker  DeviceClass = "speaker"  // smart speakers
	DeviceClassHandheld DeviceClass = "handheld" // phones, tablets
	DeviceClassUnknown  DeviceClass = "unknown"
)

// SourceKind tags the provider variant a snapshot came from.
type SourceKind string

const (
	SourceKindBox       SourceKind = "box"
	SourceKindSpeaker   SourceKind = "speaker"
	SourceKindStreaming SourceKind = "streaming"
)

// SourceIdentity identifies one polled media player. UserName disambiguates
// shared device labels (several people each owning an "iPhone") and is
// always carried as its own field in addition to being embedded in the
// rewritten device name.
type SourceIdentity struct {
	DeviceName  string  `json:"device_name" db:"device_name"`
	UserName    *string `json:"user_name,omitempty" db:"user_name"`
	DeviceModel string  `json:"device_model" db:"device_model"`
}

// Key returns the stable string key used for failure tracking and last-event
// lookups.
func (s SourceIdentity) Key() string {
	if s.UserName != nil && *s.UserName != "" {
		return fmt.Sprintf("device:%s|user:%s", s.DeviceName, *s.UserName)
	}
	return "device:" + s.DeviceName
}

// MediaIdentity is the tuple of fields that together define "the same piece
// of media". All fields are optional; two identities are the same only when
// every field matches.
type MediaIdentity struct {
	Title      *string `json:"title,omitempty" db:"title"`
	Artist     *string `json:"artist,omitempty" db:"artist"`
	Album      *string `json:"album,omitempty" db:"album"`
	SeriesName *string `json:"series_name,omitempty" db:"series_name"`
	Season     *int    `json:"season,omitempty" db:"season"`
	Episode    *int    `json:"episode,omitempty" db:"episode"`
}

// Equal reports whether two media identities refer to the same media.
func (m MediaIdentity) Equal(other MediaIdentity) bool {
	return strPtrEqual(m.Title, other.Title) &&
		strPtrEqual(m.Artist, other.Artist) &&
		strPtrEqual(m.Album, other.Album) &&
		strPtrEqual(m.SeriesName, other.SeriesName) &&
		intPtrEqual(m.Season, other.Season) &&
		intPtrEqual(m.Episode, other.Episode)
}

// PartitionKey returns a stable string key for grouping events of the same
// media. The unit separator keeps titles containing punctuation from
// colliding.
func (m MediaIdentity) PartitionKey() string {
	parts := []string{
		strPtrOrEmpty(m.Title),
		strPtrOrEmpty(m.Artist),
		strPtrOrEmpty(m.Album),
		strPtrOrEmpty(m.SeriesName),
		intPtrOrEmpty(m.Season),
		intPtrOrEmpty(m.Episode),
	}
	return strings.Join(parts, "\x1f")
}

// NormalizedEvent is the canonical shape all sources are translated into
// before storage. Events are immutable once appended; the log is append-only
// and ordered by timestamp within a source identity partition.
type NormalizedEvent struct {
	ID              int64          `json:"id" db:"id"`
	Timestamp       time.Time      `json:"timestamp" db:"ts"`
	Source          SourceIdentity `json:"source"`
	State           PlaybackState  `json:"state" db:"state"`
	AppName         *string        `json:"app_name,omitempty" db:"app"`
	Media           MediaIdentity  `json:"media"`
	MediaType       MediaType      `json:"media_type" db:"media_type"`
	PositionSeconds *float64       `json:"position_seconds,omitempty" db:"position"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty" db:"duration"`
}

// SameMedia reports whether two events observe the same media in the same
// app. Used by the ingest gate to detect repeated "still paused" readings.
func (e NormalizedEvent) SameMedia(other NormalizedEvent) bool {
	return e.Media.Equal(other.Media) && strPtrEqual(e.AppName, other.AppName)
}

// RawDevice carries unprocessed device metadata from a provider.
type RawDevice struct {
	Name    string  `json:"name"`
	Model   string  `json:"model"`
	Address *string `json:"address,omitempty"`
}

// RawSnapshot is one point-in-time now-playing observation as reported by a
// provider, before normalization.
type RawSnapshot struct {
	ObservedAt      time.Time `json:"observed_at"`
	Device          RawDevice `json:"device"`
	RawState        string    `json:"raw_state"`
	RawMediaType    string    `json:"raw_media_type"`
	AppName         *string   `json:"app_name,omitempty"`
	Title           *string   `json:"title,omitempty"`
	Artist          *string   `json:"artist,omitempty"`
	Album           *string   `json:"album,omitempty"`
	SeriesName      *string   `json:"series_name,omitempty"`
	Season          *int      `json:"season,omitempty"`
	Episode         *int      `json:"episode,omitempty"`
	PositionSeconds *float64  `json:"position_seconds,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
}

// SourceDescriptor describes one pollable source as advertised by a
// provider.
type SourceDescriptor struct {
	Kind        SourceKind `json:"kind"`
	DeviceName  string     `json:"device_name"`
	DeviceModel string     `json:"device_model"`
	UserName    *string    `json:"user_name,omitempty"`
	Address     *string    `json:"address,omitempty"`
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtrOrEmpty(i *int) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%d", *i)
}
