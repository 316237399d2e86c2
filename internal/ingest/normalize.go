package ingest

import (
	"fmt"
	"strings"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// genericHandheldNames are device labels shared by every owner of that
// device class. Observations carrying one are rewritten to embed the owning
// user so two people's identically named devices never share a partition.
var genericHandheldNames = map[string]bool{
	"iPhone": true,
	"iPad":   true,
	"Phone":  true,
	"Tablet": true,
}

// MapRawState translates a source's native playback state into the
// canonical space. Only playing and paused observations carry session
// information; everything else (stopped, idle, loading, seeking) reports
// ok=false and is discarded before the gate.
func MapRawState(raw string) (models.PlaybackState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "playing", "play":
		return models.StatePlaying, true
	case "paused", "pause":
		return models.StatePaused, true
	default:
		return "", false
	}
}

// MapRawMediaType translates a source's native media type into the
// canonical space.
func MapRawMediaType(raw string) models.MediaType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "video", "movie", "tv", "episode":
		return models.MediaTypeVideo
	case "music", "audio", "song", "track":
		return models.MediaTypeMusic
	default:
		return models.MediaTypeUnknown
	}
}

// ClassifyDeviceModel buckets a device model string into a broad class used
// for media-type inference.
func ClassifyDeviceModel(model string) models.DeviceClass {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "tv") || strings.Contains(m, "box"):
		return models.DeviceClassBox
	case strings.Contains(m, "homepod") || strings.Contains(m, "speaker") || strings.Contains(m, "sonos"):
		return models.DeviceClassSpeaker
	case strings.Contains(m, "iphone") || strings.Contains(m, "ipad") ||
		strings.Contains(m, "phone") || strings.Contains(m, "tablet"):
		return models.DeviceClassHandheld
	default:
		return models.DeviceClassUnknown
	}
}

// Normalize maps one raw snapshot into the canonical event shape. Returns
// ok=false when the snapshot's state carries no session information and
// must not be stored. The returned event has no ID; the store assigns one
// on append.
func Normalize(desc models.SourceDescriptor, snap models.RawSnapshot) (models.NormalizedEvent, bool) {
	state, ok := MapRawState(snap.RawState)
	if !ok {
		return models.NormalizedEvent{}, false
	}

	deviceName := snap.Device.Name
	if deviceName == "" {
		deviceName = desc.DeviceName
	}
	deviceModel := snap.Device.Model
	if deviceModel == "" {
		deviceModel = desc.DeviceModel
	}

	// Generic handheld labels collide across owners; embed the user in the
	// device name. The user is always carried as a separate field too.
	if genericHandheldNames[deviceName] && desc.UserName != nil && *desc.UserName != "" {
		deviceName = fmt.Sprintf("%s (%s)", deviceName, *desc.UserName)
	}

	event := models.NormalizedEvent{
		Timestamp: snap.ObservedAt,
		Source: models.SourceIdentity{
			DeviceName:  deviceName,
			UserName:    desc.UserName,
			DeviceModel: deviceModel,
		},
		State:   state,
		AppName: snap.AppName,
		Media: models.MediaIdentity{
			Title:      snap.Title,
			Artist:     snap.Artist,
			Album:      snap.Album,
			SeriesName: snap.SeriesName,
			Season:     snap.Season,
			Episode:    snap.Episode,
		},
		MediaType:       MapRawMediaType(snap.RawMediaType),
		PositionSeconds: snap.PositionSeconds,
		DurationSeconds: snap.DurationSeconds,
	}

	// Inference only ever fills in an unknown type; an explicit type from
	// the source is never overridden. Streaming-music accounts only ever
	// play music, so their kind decides before the field heuristics.
	if event.MediaType == models.MediaTypeUnknown {
		if desc.Kind == models.SourceKindStreaming {
			event.MediaType = models.MediaTypeMusic
		} else {
			event.MediaType = inferMediaType(event)
		}
	}

	return event, true
}

// inferMediaType guesses the media type for sources that do not report one.
// Media fields win over device class: something with an artist is music and
// something episodic is video regardless of what played it.
func inferMediaType(event models.NormalizedEvent) models.MediaType {
	if event.Media.Artist != nil {
		return models.MediaTypeMusic
	}
	if event.Media.SeriesName != nil {
		return models.MediaTypeVideo
	}

	switch ClassifyDeviceModel(event.Source.DeviceModel) {
	case models.DeviceClassSpeaker:
		return models.MediaTypeMusic
	case models.DeviceClassBox:
		return models.MediaTypeVideo
	default:
		return models.MediaTypeUnknown
	}
}
