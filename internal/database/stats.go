package database

// GetStats returns aggregate counts for the status command and dashboard.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sources", &s.TotalSources},
		{"SELECT COUNT(*) FROM sources WHERE is_active = 1", &s.ActiveSources},
		{"SELECT COUNT(*) FROM content_items", &s.TotalItems},
		{"SELECT COUNT(*) FROM content_items WHERE kind = 'news'", &s.NewsItems},
		{"SELECT COUNT(*) FROM content_items WHERE kind = 'podcast'", &s.Episodes},
		{"SELECT COUNT(*) FROM players", &s.TotalPlayers},
		{"SELECT COUNT(*) FROM players WHERE is_stub = 1", &s.StubPlayers},
		{"SELECT COUNT(*) FROM mentions", &s.TotalMentions},
		{"SELECT COUNT(*) FROM ingest_runs", &s.Runs},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
