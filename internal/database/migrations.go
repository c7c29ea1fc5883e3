package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    feed_url TEXT UNIQUE NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('news', 'podcast')),
    is_active INTEGER DEFAULT 1,
    is_draft_focused INTEGER DEFAULT 0,
    fetch_interval_minutes INTEGER DEFAULT 0,
    last_fetched_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    normalized_name TEXT UNIQUE NOT NULL,
    position TEXT,
    school TEXT,
    is_stub INTEGER DEFAULT 0,
    notes TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS player_aliases (
    player_id INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    alias TEXT NOT NULL,
    normalized_alias TEXT NOT NULL,
    PRIMARY KEY (player_id, normalized_alias)
);

CREATE TABLE IF NOT EXISTS content_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    external_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT,
    tag TEXT,
    media_url TEXT,
    artwork_url TEXT,
    duration_seconds INTEGER,
    season INTEGER,
    episode_number INTEGER,
    player_id INTEGER REFERENCES players(id),
    published_at TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (source_id, external_id)
);

CREATE TABLE IF NOT EXISTS mentions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    player_id INTEGER NOT NULL REFERENCES players(id),
    origin TEXT NOT NULL CHECK(origin IN ('ai', 'manual', 'backfill')),
    published_at TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (item_id, player_id)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    sources_processed INTEGER DEFAULT 0,
    items_added INTEGER DEFAULT 0,
    items_skipped INTEGER DEFAULT 0,
    items_filtered INTEGER DEFAULT 0,
    mentions_added INTEGER DEFAULT 0,
    errors TEXT
);

CREATE INDEX IF NOT EXISTS idx_items_source ON content_items(source_id);
CREATE INDEX IF NOT EXISTS idx_items_published ON content_items(published_at);
CREATE INDEX IF NOT EXISTS idx_items_player ON content_items(player_id);
CREATE INDEX IF NOT EXISTS idx_mentions_player ON mentions(player_id);
CREATE INDEX IF NOT EXISTS idx_aliases_normalized ON player_aliases(normalized_alias);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
