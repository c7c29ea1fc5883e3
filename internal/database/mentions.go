package database

import "fmt"

// InsertMentions bulk-inserts mention rows, ignoring conflicts on the
// (item_id, player_id) uniqueness constraint, and returns how many rows
// were actually added.
func (db *DB) InsertMentions(mentions []Mention) (int, error) {
	if len(mentions) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin mention insert: %w", err)
	}

	added := 0
	for _, m := range mentions {
		result, err := tx.Exec(
			`INSERT INTO mentions (item_id, player_id, origin, published_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (item_id, player_id) DO NOTHING`,
			m.ItemID, m.PlayerID, m.Origin, formatTime(m.PublishedAt),
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting mention (%d, %d): %w", m.ItemID, m.PlayerID, err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mention insert: %w", err)
	}
	return added, nil
}

// MentionsForItem returns the mentions recorded for one content item.
func (db *DB) MentionsForItem(itemID int64) ([]Mention, error) {
	return db.queryMentions("SELECT "+mentionColumns+" FROM mentions WHERE item_id = ? ORDER BY id", itemID)
}

// MentionsForPlayer returns a player's mentions in feed order, newest first.
func (db *DB) MentionsForPlayer(playerID int64) ([]Mention, error) {
	return db.queryMentions("SELECT "+mentionColumns+" FROM mentions WHERE player_id = ? ORDER BY published_at DESC", playerID)
}

const mentionColumns = "id, item_id, player_id, origin, published_at, created_at"

func (db *DB) queryMentions(query string, args ...any) ([]Mention, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []Mention
	for rows.Next() {
		var m Mention
		var published string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.PlayerID, &m.Origin, &published, &m.CreatedAt); err != nil {
			return nil, err
		}
		if t, err := parseTime(published); err == nil {
			m.PublishedAt = t
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}
