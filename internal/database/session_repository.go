package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// SessionRepository persists the derived session table. The table has no
// identity across rebuilds; every write is an atomic full replacement.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a session repository over the given store.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ReplaceAll atomically swaps the session table contents. Readers never see
// a partially rebuilt table.
func (r *SessionRepository) ReplaceAll(ctx context.Context, sessions []models.Session) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM viewing_sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	query := r.db.rebind(`
		INSERT INTO viewing_sessions (
			device_name, title, artist, album, series_name, season, episode,
			media_type, session_start, session_end, max_position_reached,
			media_duration, watch_time_seconds, completion_pct, num_entries
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sessions {
		_, err := stmt.ExecContext(ctx,
			s.DeviceName, s.Media.Title, s.Media.Artist, s.Media.Album,
			s.Media.SeriesName, s.Media.Season, s.Media.Episode,
			string(s.MediaType), s.SessionStart, s.SessionEnd,
			s.MaxPositionReached, s.MediaDuration, s.WatchTimeSeconds,
			s.CompletionPct, s.NumEntries,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session replace: %w", err)
	}

	return nil
}

const sessionColumns = `
	device_name, title, artist, album, series_name, season, episode,
	media_type, session_start, session_end, max_position_reached,
	media_duration, watch_time_seconds, completion_pct, num_entries
`

// ListRecent returns sessions ordered by session start, newest first.
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]models.Session, error) {
	query := r.db.rebind(`
		SELECT ` + sessionColumns + `
		FROM viewing_sessions
		ORDER BY session_start DESC
		LIMIT ?
	`)

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListAll returns the full session table ordered by session start, newest
// first.
func (r *SessionRepository) ListAll(ctx context.Context) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM viewing_sessions
		ORDER BY session_start DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// DeviceStats aggregates total watch hours and session counts per device.
func (r *SessionRepository) DeviceStats(ctx context.Context) ([]models.DeviceStats, error) {
	query := `
		SELECT device_name, SUM(watch_time_seconds), COUNT(*)
		FROM viewing_sessions
		GROUP BY device_name
		ORDER BY SUM(watch_time_seconds) DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query device stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DeviceStats
	for rows.Next() {
		var s models.DeviceStats
		var totalSeconds float64
		if err := rows.Scan(&s.DeviceName, &totalSeconds, &s.NumSessions); err != nil {
			return nil, fmt.Errorf("failed to scan device stats: %w", err)
		}
		s.TotalHours = math.Round(totalSeconds/3600.0*100) / 100
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// MediaTypeStats aggregates total watch hours and session counts per media
// type.
func (r *SessionRepository) MediaTypeStats(ctx context.Context) ([]models.MediaTypeStats, error) {
	query := `
		SELECT media_type, SUM(watch_time_seconds), COUNT(*)
		FROM viewing_sessions
		GROUP BY media_type
		ORDER BY SUM(watch_time_seconds) DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query media type stats: %w", err)
	}
	defer rows.Close()

	var stats []models.MediaTypeStats
	for rows.Next() {
		var s models.MediaTypeStats
		var mediaType string
		var totalSeconds float64
		if err := rows.Scan(&mediaType, &totalSeconds, &s.NumSessions); err != nil {
			return nil, fmt.Errorf("failed to scan media type stats: %w", err)
		}
		s.MediaType = models.MediaType(mediaType)
		s.TotalHours = math.Round(totalSeconds/3600.0*100) / 100
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func scanSessions(rows *sql.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var title, artist, album, seriesName sql.NullString
		var season, episode sql.NullInt64
		var maxPosition, mediaDuration, completionPct sql.NullFloat64
		var mediaType string

		err := rows.Scan(
			&s.DeviceName, &title, &artist, &album, &seriesName, &season,
			&episode, &mediaType, &s.SessionStart, &s.SessionEnd,
			&maxPosition, &mediaDuration, &s.WatchTimeSeconds,
			&completionPct, &s.NumEntries,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		s.MediaType = models.MediaType(mediaType)
		s.Media.Title = nullStr(title)
		s.Media.Artist = nullStr(artist)
		s.Media.Album = nullStr(album)
		s.Media.SeriesName = nullStr(seriesName)
		s.Media.Season = nullInt(season)
		s.Media.Episode = nullInt(episode)
		s.MaxPositionReached = nullFloat(maxPosition)
		s.MediaDuration = nullFloat(mediaDuration)
		s.CompletionPct = nullFloat(completionPct)
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
