package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pwhittaker/playpulse/internal/config"
)

// DB wraps the store connection. SQLite is the default embeddable backend;
// postgres is available when several trackers share one store.
type DB struct {
	conn   *sql.DB
	dbType string
}

// New creates a new store connection and, for SQLite, bootstraps the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	var conn *sql.DB
	var err error

	switch cfg.Type {
	case "sqlite":
		// WAL plus a busy timeout so concurrent source tasks can append
		// while the reconstructor reads.
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_loc=UTC", cfg.SQLitePath)
		conn, err = sql.Open("sqlite3", dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		conn, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dbType: cfg.Type}

	// Only create tables for SQLite; postgres schemas are managed externally
	if cfg.Type == "sqlite" {
		if err := db.createTables(); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS now_playing (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		device_name TEXT NOT NULL,
		user_name TEXT,
		device_model TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		app TEXT,
		title TEXT,
		artist TEXT,
		album TEXT,
		series_name TEXT,
		season INTEGER,
		episode INTEGER,
		media_type TEXT NOT NULL,
		position DOUBLE,
		duration DOUBLE
	);
	CREATE INDEX IF NOT EXISTS idx_now_playing_device_ts
		ON now_playing (device_name, user_name, ts);

	CREATE TABLE IF NOT EXISTS viewing_sessions (
		device_name TEXT NOT NULL,
		title TEXT,
		artist TEXT,
		album TEXT,
		series_name TEXT,
		season INTEGER,
		episode INTEGER,
		media_type TEXT NOT NULL,
		session_start TIMESTAMP NOT NULL,
		session_end TIMESTAMP NOT NULL,
		max_position_reached DOUBLE,
		media_duration DOUBLE,
		watch_time_seconds DOUBLE NOT NULL,
		completion_pct DOUBLE,
		num_entries INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_viewing_sessions_start
		ON viewing_sessions (session_start);
	`

	_, err := db.conn.Exec(query)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Health checks if the database is reachable
func (db *DB) Health(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// rebind converts ? placeholders to the $n form when running on postgres.
func (db *DB) rebind(query string) string {
	if db.dbType != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
