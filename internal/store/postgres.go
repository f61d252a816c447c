package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	guid TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	end_at TIMESTAMPTZ NOT NULL,
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	location_type TEXT NOT NULL,
	categories TEXT NOT NULL DEFAULT '[]',
	group_id TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	group_website TEXT NOT NULL DEFAULT '',
	also_published_by TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	last_seen TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_group ON events(group_id);

CREATE TABLE IF NOT EXISTS groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	website TEXT NOT NULL DEFAULT '',
	feed_url TEXT NOT NULL DEFAULT '',
	fallback_url TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	suppress_urls TEXT NOT NULL DEFAULT '[]',
	suppress_guids TEXT NOT NULL DEFAULT '[]',
	categories TEXT NOT NULL DEFAULT '[]',
	url_override TEXT,
	scan_for_metadata BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS overrides (
	guid TEXT PRIMARY KEY,
	title TEXT,
	url TEXT,
	location TEXT,
	time TEXT,
	categories TEXT,
	hidden BOOLEAN,
	duplicate_of TEXT
);

CREATE TABLE IF NOT EXISTS manual_events (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
`

// OpenPostgres opens the Postgres-backed store at the given DSN.
func OpenPostgres(dsn string) (EventStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres store: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}

	return &sqlStore{db: db, postgres: true}, nil
}
