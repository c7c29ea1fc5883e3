package database

import "encoding/json"

// InsertRun records the outcome of one ingestion cycle.
func (db *DB) InsertRun(r RunRecord) (int64, error) {
	var errJSON *string
	if len(r.Errors) > 0 {
		data, err := json.Marshal(r.Errors)
		if err != nil {
			return 0, err
		}
		s := string(data)
		errJSON = &s
	}

	result, err := db.conn.Exec(
		`INSERT INTO ingest_runs
		(started_at, finished_at, sources_processed, items_added, items_skipped, items_filtered, mentions_added, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt, r.FinishedAt, r.SourcesProcessed, r.ItemsAdded,
		r.ItemsSkipped, r.ItemsFiltered, r.MentionsAdded, errJSON,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// RecentRuns returns the most recent ingestion runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT id, started_at, finished_at, sources_processed, items_added,
		items_skipped, items_filtered, mentions_added, errors
		FROM ingest_runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errJSON *string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourcesProcessed,
			&r.ItemsAdded, &r.ItemsSkipped, &r.ItemsFiltered, &r.MentionsAdded, &errJSON); err != nil {
			return nil, err
		}
		if errJSON != nil {
			if err := json.Unmarshal([]byte(*errJSON), &r.Errors); err != nil {
				r.Errors = nil
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
