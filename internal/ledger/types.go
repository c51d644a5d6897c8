package ledger

import "time"

// #region run-record
// Run is one CLI invocation that talked to the API.
type Run struct {
	RunID       string
	Command     string // "generate" | "evaluate"
	Fingerprint string
	Status      string // "running" | "ok" | "failed"
	Summary     string
	StartedAt   time.Time
	FinishedAt  time.Time
}
// #endregion run-record

// #region call-record
// Call is one api_calls row as read back.
type Call struct {
	ID          int64
	RunID       string
	Purpose     string
	Model       string
	KeyIndex    int
	Attempt     int
	Outcome     string
	Error       string
	Fingerprint string
	LatencyMS   int64
	CreatedAt   time.Time
}

// CallFilter narrows ListCalls. Zero values match everything.
type CallFilter struct {
	RunID   string
	Outcome string
	Limit   int
}
// #endregion call-record

// Run status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)
