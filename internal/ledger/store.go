package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	command      TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	status       TEXT NOT NULL,
	summary      TEXT,
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS api_calls (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	purpose       TEXT NOT NULL,
	model         TEXT NOT NULL,
	key_index     INTEGER NOT NULL,
	attempt       INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	error         TEXT,
	fingerprint   TEXT NOT NULL,
	decoding_json TEXT,
	latency_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS api_calls_run ON api_calls(run_id);
`
// #endregion schema

// #region store-struct
// Store is the run and API-call ledger. It never holds benchmark data;
// pairs and results live in the CSV tables.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// Open opens a SQLite database, creating its directory if needed, and runs
// migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; evaluation workers share it.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for logging.LogCall.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region runs
// BeginRun records the start of a command and returns its run.
func (s *Store) BeginRun(command, fingerprint string) (Run, error) {
	run := Run{
		RunID:       uuid.New().String(),
		Command:     command,
		Fingerprint: fingerprint,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, command, fingerprint, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Command, run.Fingerprint, run.Status, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun closes a run with its final status and a one-line summary.
func (s *Store) FinishRun(runID, status, summary string) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE run_id = ?`,
		status, summary, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, command, fingerprint, status, summary, started_at, finished_at
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var summary, finished sql.NullString
		var started string
		if err := rows.Scan(&r.RunID, &r.Command, &r.Fingerprint, &r.Status, &summary, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Summary = summary.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
// #endregion runs

// #region calls
// ListCalls returns api_calls rows, newest first.
func (s *Store) ListCalls(f CallFilter) ([]Call, error) {
	var where []string
	var args []any
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	q := `SELECT id, run_id, purpose, model, key_index, attempt, outcome, error, fingerprint, latency_ms, created_at FROM api_calls`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		var errText sql.NullString
		var created string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Purpose, &c.Model, &c.KeyIndex, &c.Attempt, &c.Outcome, &errText, &c.Fingerprint, &c.LatencyMS, &created); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Error = errText.String
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Fingerprints returns the distinct decoding fingerprints seen in a run's
// calls. A consistent run has exactly one.
func (s *Store) Fingerprints(runID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT fingerprint FROM api_calls WHERE run_id = ? ORDER BY fingerprint`, runID)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
// #endregion calls
