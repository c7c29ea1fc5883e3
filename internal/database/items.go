package database

import (
	"fmt"
	"strings"
	"time"
)

// PersistBatch inserts content items for one source and advances the
// source's last_fetched_at cursor in the same transaction. Rows that
// collide with an existing (source_id, external_id) pair are silently
// skipped. The returned map holds external_id -> item ID for the rows
// actually inserted, which is what makes re-ingestion idempotent.
func (db *DB) PersistBatch(sourceID int64, items []ContentItem, fetchedAt time.Time) (map[string]int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin persist: %w", err)
	}

	inserted := make(map[string]int64, len(items))
	for _, it := range items {
		result, err := tx.Exec(
			`INSERT INTO content_items
			(source_id, external_id, kind, title, summary, tag, media_url,
			 artwork_url, duration_seconds, season, episode_number, player_id, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_id, external_id) DO NOTHING`,
			sourceID, it.ExternalID, it.Kind, it.Title, it.Summary, it.Tag, it.MediaURL,
			it.ArtworkURL, it.DurationSeconds, it.Season, it.EpisodeNumber, it.PlayerID,
			formatTime(it.PublishedAt),
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("inserting item %q: %w", it.ExternalID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("rows affected for %q: %w", it.ExternalID, err)
		}
		if n > 0 {
			id, err := result.LastInsertId()
			if err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("last insert id for %q: %w", it.ExternalID, err)
			}
			inserted[it.ExternalID] = id
		}
	}

	if _, err := tx.Exec(
		"UPDATE sources SET last_fetched_at = ? WHERE id = ?",
		formatTime(fetchedAt), sourceID,
	); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("advancing cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit persist: %w", err)
	}
	return inserted, nil
}

// membershipChunk bounds the number of placeholders per IN query.
const membershipChunk = 200

// ExistingExternalIDs reports which of the given external IDs already
// have a content item for the source.
func (db *DB) ExistingExternalIDs(sourceID int64, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for start := 0; start < len(externalIDs); start += membershipChunk {
		end := start + membershipChunk
		if end > len(externalIDs) {
			end = len(externalIDs)
		}
		chunk := externalIDs[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, sourceID)
		for _, id := range chunk {
			args = append(args, id)
		}

		rows, err := db.conn.Query(
			"SELECT external_id FROM content_items WHERE source_id = ? AND external_id IN ("+placeholders+")",
			args...,
		)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			existing[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

// RecentItems returns the most recently published content items.
func (db *DB) RecentItems(limit int) ([]ContentItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM content_items ORDER BY published_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows.Next, rows.Scan, rows.Err)
}

// ItemsForSource returns all content items for one source, newest first.
func (db *DB) ItemsForSource(sourceID int64) ([]ContentItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM content_items WHERE source_id = ? ORDER BY published_at DESC", sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows.Next, rows.Scan, rows.Err)
}

// CountItemsForSource returns the number of persisted items for a source.
func (db *DB) CountItemsForSource(sourceID int64) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM content_items WHERE source_id = ?", sourceID,
	).Scan(&count)
	return count, err
}

const itemColumns = "id, source_id, external_id, kind, title, summary, tag, media_url, artwork_url, duration_seconds, season, episode_number, player_id, published_at, created_at"

func scanItems(next func() bool, scan func(...any) error, rowsErr func() error) ([]ContentItem, error) {
	var items []ContentItem
	for next() {
		var it ContentItem
		var published string
		if err := scan(&it.ID, &it.SourceID, &it.ExternalID, &it.Kind, &it.Title,
			&it.Summary, &it.Tag, &it.MediaURL, &it.ArtworkURL, &it.DurationSeconds,
			&it.Season, &it.EpisodeNumber, &it.PlayerID, &published, &it.CreatedAt); err != nil {
			return nil, err
		}
		if t, err := parseTime(published); err == nil {
			it.PublishedAt = t
		}
		items = append(items, it)
	}
	return items, rowsErr()
}
