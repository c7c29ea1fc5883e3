package database

import (
	"database/sql"
	"time"
)

// InsertSource creates a new feed source. A duplicate feed_url is an error.
func (db *DB) InsertSource(name, feedURL, kind string, draftFocused bool, intervalMinutes int) (int64, error) {
	focused := 0
	if draftFocused {
		focused = 1
	}
	result, err := db.conn.Exec(
		`INSERT INTO sources (name, feed_url, kind, is_draft_focused, fetch_interval_minutes)
		VALUES (?, ?, ?, ?, ?)`,
		name, feedURL, kind, focused, intervalMinutes,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ActiveSources returns a snapshot of all active sources.
func (db *DB) ActiveSources() ([]Source, error) {
	return db.querySources("SELECT " + sourceColumns + " FROM sources WHERE is_active = 1 ORDER BY name")
}

// AllSources returns all sources, active or not.
func (db *DB) AllSources() ([]Source, error) {
	return db.querySources("SELECT " + sourceColumns + " FROM sources ORDER BY name")
}

// GetSource returns a single source by ID, or nil if not found.
func (db *DB) GetSource(sourceID int64) (*Source, error) {
	row := db.conn.QueryRow("SELECT "+sourceColumns+" FROM sources WHERE id = ?", sourceID)
	s, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ToggleSource flips a source's active state.
func (db *DB) ToggleSource(sourceID int64) error {
	_, err := db.conn.Exec("UPDATE sources SET is_active = NOT is_active WHERE id = ?", sourceID)
	return err
}

// DeleteSource removes a source and, via cascade, its content items.
func (db *DB) DeleteSource(sourceID int64) error {
	_, err := db.conn.Exec("DELETE FROM sources WHERE id = ?", sourceID)
	return err
}

// TouchSourceCursor sets last_fetched_at. PersistBatch does this
// atomically with the item insert; this standalone form exists for
// admin corrections.
func (db *DB) TouchSourceCursor(sourceID int64, fetchedAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE sources SET last_fetched_at = ? WHERE id = ?",
		formatTime(fetchedAt), sourceID,
	)
	return err
}

const sourceColumns = "id, name, feed_url, kind, is_active, is_draft_focused, fetch_interval_minutes, last_fetched_at, created_at"

func (db *DB) querySources(query string, args ...any) ([]Source, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

func scanSource(scan func(...any) error) (*Source, error) {
	var s Source
	var active, focused int
	var lastFetched *string
	if err := scan(&s.ID, &s.Name, &s.FeedURL, &s.Kind, &active, &focused,
		&s.FetchIntervalMinutes, &lastFetched, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.IsActive = active != 0
	s.DraftFocused = focused != 0
	s.LastFetchedAt = scanNullableTime(lastFetched)
	return &s, nil
}
