package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-call
// LogCall writes an attempt to the api_calls table.
func LogCall(db *sql.DB, entry CallEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO api_calls (run_id, purpose, model, key_index, attempt, outcome, error, fingerprint, decoding_json, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Purpose,
		entry.Model,
		entry.KeyIndex,
		entry.Attempt,
		entry.Outcome,
		nullIfEmpty(entry.Error),
		entry.Fingerprint,
		nullIfEmpty(entry.DecodingJSON),
		entry.LatencyMS,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log call: %w", err)
	}
	return nil
}
// #endregion log-call

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
