package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	guid TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	start_at TIMESTAMP NOT NULL,
	end_at TIMESTAMP NOT NULL,
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	location_type TEXT NOT NULL,
	categories TEXT NOT NULL DEFAULT '[]',
	group_id TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	group_website TEXT NOT NULL DEFAULT '',
	also_published_by TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
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
	active BOOLEAN NOT NULL DEFAULT 1,
	suppress_urls TEXT NOT NULL DEFAULT '[]',
	suppress_guids TEXT NOT NULL DEFAULT '[]',
	categories TEXT NOT NULL DEFAULT '[]',
	url_override TEXT,
	scan_for_metadata BOOLEAN NOT NULL DEFAULT 0
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
	submitted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
`

// OpenSQLite opens (or creates) the SQLite-backed store at path.
func OpenSQLite(path string) (EventStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// WAL lets the read API serve queries while a sync is writing.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &sqlStore{db: db}, nil
}
