package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// EventRepository persists the append-only now-playing event log.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates an event repository over the given store.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append stores one normalized event. Events are never updated or deleted.
func (r *EventRepository) Append(ctx context.Context, event *models.NormalizedEvent) error {
	query := r.db.rebind(`
		INSERT INTO now_playing (
			ts, device_name, user_name, device_model, state, app,
			title, artist, album, series_name, season, episode,
			media_type, position, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.conn.ExecContext(ctx, query,
		event.Timestamp, event.Source.DeviceName, event.Source.UserName,
		event.Source.DeviceModel, string(event.State), event.AppName,
		event.Media.Title, event.Media.Artist, event.Media.Album,
		event.Media.SeriesName, event.Media.Season, event.Media.Episode,
		string(event.MediaType), event.PositionSeconds, event.DurationSeconds,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

const eventColumns = `
	id, ts, device_name, user_name, device_model, state, app,
	title, artist, album, series_name, season, episode,
	media_type, position, duration
`

// LastEventFor returns the most recent event for a source identity, or nil
// when the source has never produced one.
func (r *EventRepository) LastEventFor(ctx context.Context, identity models.SourceIdentity) (*models.NormalizedEvent, error) {
	var row *sql.Row
	if identity.UserName != nil {
		query := r.db.rebind(`
			SELECT ` + eventColumns + `
			FROM now_playing
			WHERE device_name = ? AND user_name = ?
			ORDER BY ts DESC, id DESC
			LIMIT 1
		`)
		row = r.db.conn.QueryRowContext(ctx, query, identity.DeviceName, *identity.UserName)
	} else {
		query := r.db.rebind(`
			SELECT ` + eventColumns + `
			FROM now_playing
			WHERE device_name = ? AND user_name IS NULL
			ORDER BY ts DESC, id DESC
			LIMIT 1
		`)
		row = r.db.conn.QueryRowContext(ctx, query, identity.DeviceName)
	}

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last event: %w", err)
	}

	return event, nil
}

// AllEventsOrdered returns the full event log ordered by timestamp. The id
// tiebreak keeps the order deterministic for equal timestamps.
func (r *EventRepository) AllEventsOrdered(ctx context.Context) ([]models.NormalizedEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM now_playing
		ORDER BY ts ASC, id ASC
	`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.NormalizedEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

// RecentEvents returns the newest events first, for the read API.
func (r *EventRepository) RecentEvents(ctx context.Context, limit int) ([]models.NormalizedEvent, error) {
	query := r.db.rebind(`
		SELECT ` + eventColumns + `
		FROM now_playing
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`)

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []models.NormalizedEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.NormalizedEvent, error) {
	var event models.NormalizedEvent
	var userName, app, title, artist, album, seriesName sql.NullString
	var season, episode sql.NullInt64
	var position, duration sql.NullFloat64
	var state, mediaType string

	err := row.Scan(
		&event.ID, &event.Timestamp, &event.Source.DeviceName, &userName,
		&event.Source.DeviceModel, &state, &app,
		&title, &artist, &album, &seriesName, &season, &episode,
		&mediaType, &position, &duration,
	)
	if err != nil {
		return nil, err
	}

	event.State = models.PlaybackState(state)
	event.MediaType = models.MediaType(mediaType)
	event.Source.UserName = nullStr(userName)
	event.AppName = nullStr(app)
	event.Media.Title = nullStr(title)
	event.Media.Artist = nullStr(artist)
	event.Media.Album = nullStr(album)
	event.Media.SeriesName = nullStr(seriesName)
	event.Media.Season = nullInt(season)
	event.Media.Episode = nullInt(episode)
	event.PositionSeconds = nullFloat(position)
	event.DurationSeconds = nullFloat(duration)

	return &event, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
