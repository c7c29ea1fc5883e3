package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// NormalizeName lowercases, trims, and collapses inner whitespace so
// that name matching is insensitive to case and spacing.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// InsertPlayer creates a canonical (non-stub) player record.
func (db *DB) InsertPlayer(name string, position, school, notes *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO players (name, normalized_name, position, school, notes, is_stub)
		VALUES (?, ?, ?, ?, ?, 0)`,
		strings.TrimSpace(name), NormalizeName(name), position, school, notes,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CreateStubPlayer inserts a minimal stub record for an unresolved name.
// The insert ignores conflicts on normalized_name and re-reads, so a
// concurrent creation of the same stub resolves to one row.
func (db *DB) CreateStubPlayer(name string) (int64, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return 0, fmt.Errorf("empty player name")
	}

	result, err := db.conn.Exec(
		`INSERT INTO players (name, normalized_name, is_stub) VALUES (?, ?, 1)
		ON CONFLICT (normalized_name) DO NOTHING`,
		strings.TrimSpace(name), norm,
	)
	if err != nil {
		return 0, err
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return result.LastInsertId()
	}

	var id int64
	if err := db.conn.QueryRow(
		"SELECT id FROM players WHERE normalized_name = ?", norm,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading existing player %q: %w", norm, err)
	}
	return id, nil
}

// FindPlayerIDs resolves normalized names to player IDs in bulk,
// matching canonical names first, then aliases.
func (db *DB) FindPlayerIDs(normalizedNames []string) (map[string]int64, error) {
	found := make(map[string]int64)
	if len(normalizedNames) == 0 {
		return found, nil
	}

	queries := []string{
		"SELECT normalized_name, id FROM players WHERE normalized_name IN (%s)",
		"SELECT normalized_alias, player_id FROM player_aliases WHERE normalized_alias IN (%s)",
	}
	for _, q := range queries {
		for start := 0; start < len(normalizedNames); start += membershipChunk {
			end := start + membershipChunk
			if end > len(normalizedNames) {
				end = len(normalizedNames)
			}
			chunk := normalizedNames[start:end]

			placeholders := strings.Repeat("?,", len(chunk))
			placeholders = placeholders[:len(placeholders)-1]
			args := make([]any, len(chunk))
			for i, n := range chunk {
				args[i] = n
			}

			rows, err := db.conn.Query(fmt.Sprintf(q, placeholders), args...)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var name string
				var id int64
				if err := rows.Scan(&name, &id); err != nil {
					rows.Close()
					return nil, err
				}
				// Canonical names run first and win over aliases.
				if _, ok := found[name]; !ok {
					found[name] = id
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
	}
	return found, nil
}

// AddAlias records an alternate name for a player.
func (db *DB) AddAlias(playerID int64, alias string) error {
	_, err := db.conn.Exec(
		`INSERT INTO player_aliases (player_id, alias, normalized_alias) VALUES (?, ?, ?)
		ON CONFLICT (player_id, normalized_alias) DO NOTHING`,
		playerID, strings.TrimSpace(alias), NormalizeName(alias),
	)
	return err
}

// GetPlayer returns a single player by ID, or nil if not found.
func (db *DB) GetPlayer(playerID int64) (*Player, error) {
	row := db.conn.QueryRow("SELECT "+playerColumns+" FROM players WHERE id = ?", playerID)
	p, err := scanPlayer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AllPlayers returns all players ordered by name, stubs last.
func (db *DB) AllPlayers() ([]Player, error) {
	rows, err := db.conn.Query("SELECT " + playerColumns + " FROM players ORDER BY is_stub, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		p, err := scanPlayer(rows.Scan)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

const playerColumns = "id, name, normalized_name, position, school, is_stub, notes, created_at"

func scanPlayer(scan func(...any) error) (*Player, error) {
	var p Player
	var stub int
	if err := scan(&p.ID, &p.Name, &p.NormalizedName, &p.Position, &p.School,
		&stub, &p.Notes, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.IsStub = stub != 0
	return &p, nil
}
