package logging

import "time"

// #region call-entry
// CallEntry is a single row in the api_calls table: one outbound attempt.
type CallEntry struct {
	RunID        string
	Purpose      string // "generate" | "evaluate"
	Model        string
	KeyIndex     int
	Attempt      int
	Outcome      string // "ok" | "rate_limited" | "error"
	Error        string
	Fingerprint  string
	DecodingJSON string
	LatencyMS    int64
	CreatedAt    time.Time
}
// #endregion call-entry
