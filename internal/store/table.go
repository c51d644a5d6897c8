package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// #region schema

// Schema fixes the column set of a table.
type Schema struct {
	Name     string
	Columns  []string
	Required []string
	// Check validates field values beyond presence. Optional.
	Check func(Row) error
}

// Row is one record keyed by column name.
type Row map[string]string

// SchemaError reports a row or header that does not fit the table schema.
type SchemaError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("schema %s: field %q: %s", e.Table, e.Field, e.Reason)
}

func (s Schema) validate(row Row) error {
	known := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		known[c] = true
		if _, ok := row[c]; !ok {
			return &SchemaError{Table: s.Name, Field: c, Reason: "missing"}
		}
	}
	for f := range row {
		if !known[f] {
			return &SchemaError{Table: s.Name, Field: f, Reason: "unknown field"}
		}
	}
	for _, c := range s.Required {
		if strings.TrimSpace(row[c]) == "" {
			return &SchemaError{Table: s.Name, Field: c, Reason: "empty required field"}
		}
	}
	if s.Check != nil {
		if err := s.Check(row); err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				return err
			}
			return &SchemaError{Table: s.Name, Reason: err.Error()}
		}
	}
	return nil
}

func (s Schema) encode(row Row) []string {
	rec := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		rec[i] = row[c]
	}
	return rec
}

func (s Schema) decode(rec []string) Row {
	row := make(Row, len(s.Columns))
	for i, c := range s.Columns {
		row[c] = rec[i]
	}
	return row
}

// #endregion schema

// #region table

// LoadReport summarises what Open recovered from disk.
type LoadReport struct {
	Recovered  int
	Discarded  int
	Duplicates int
}

// Table is an append-only CSV log with an in-memory identity index.
// Append is durable before it returns; the mutex makes check-then-write
// atomic for concurrent writers within one process.
type Table struct {
	mu     sync.Mutex
	path   string
	schema Schema
	keyOf  func(Row) string
	file   *os.File
	seen   map[string]struct{}
	rows   []Row
	logger *zap.Logger
}

// Open loads path (creating it if needed) and prepares it for appends.
// A damaged tail is moved to path+".discarded" and cut off; only a header
// that does not match the schema is an error.
func Open(path string, schema Schema, keyOf func(Row) string, logger *zap.Logger) (*Table, LoadReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{
		path:   path,
		schema: schema,
		keyOf:  keyOf,
		seen:   make(map[string]struct{}),
		logger: logger.Named("store").With(zap.String("table", schema.Name)),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, LoadReport{}, fmt.Errorf("create data dir: %w", err)
	}

	report, err := t.load()
	if err != nil {
		return nil, report, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, report, fmt.Errorf("open %s: %w", path, err)
	}
	t.file = f

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, report, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := t.writeRecord(schema.Columns); err != nil {
			f.Close()
			return nil, report, fmt.Errorf("write header: %w", err)
		}
	}

	t.logger.Info("table loaded",
		zap.Int("recovered", report.Recovered),
		zap.Int("discarded", report.Discarded))
	return t, report, nil
}

// load reads existing rows and truncates any damaged tail.
func (t *Table) load() (LoadReport, error) {
	var report LoadReport
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read %s: %w", t.path, err)
	}
	if len(data) == 0 {
		return report, nil
	}

	bom := 0
	if bytes.HasPrefix(data, []byte(utf8BOM)) {
		bom = len(utf8BOM)
	}
	body := data[bom:]

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || !equalColumns(header, t.schema.Columns) {
		return report, &SchemaError{Table: t.schema.Name, Reason: fmt.Sprintf("header %v does not match %v", header, t.schema.Columns)}
	}
	good := r.InputOffset()

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) != len(t.schema.Columns) {
			break
		}
		off := r.InputOffset()
		if off == int64(len(body)) && body[len(body)-1] != '\n' {
			// unterminated final row: a torn write
			break
		}
		row := t.schema.decode(rec)
		if t.schema.validate(row) != nil {
			break
		}
		good = off

		key := t.keyOf(row)
		if _, dup := t.seen[key]; dup {
			report.Duplicates++
			continue
		}
		t.seen[key] = struct{}{}
		t.rows = append(t.rows, row)
		report.Recovered++
	}

	if tail := body[good:]; len(bytes.TrimSpace(tail)) > 0 {
		report.Discarded = countLines(tail)
		if err := t.discardTail(tail, int64(bom)+good); err != nil {
			return report, err
		}
		t.logger.Warn("discarded damaged tail",
			zap.Int("recovered", report.Recovered),
			zap.Int("discarded", report.Discarded),
			zap.String("moved_to", t.path+".discarded"))
	} else if body[len(body)-1] != '\n' {
		if err := appendBytes(t.path, []byte("\n")); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (t *Table) discardTail(tail []byte, keep int64) error {
	if err := appendBytes(t.path+".discarded", tail); err != nil {
		return fmt.Errorf("save discarded tail: %w", err)
	}
	if err := os.Truncate(t.path, keep); err != nil {
		return fmt.Errorf("truncate %s: %w", t.path, err)
	}
	return nil
}

// Append validates row and writes it unless its identity is already
// present. It reports whether a row was written.
func (t *Table) Append(row Row) (bool, error) {
	if err := t.schema.validate(row); err != nil {
		return false, err
	}
	key := t.keyOf(row)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[key]; dup {
		t.logger.Debug("duplicate append ignored", zap.String("key", key))
		return false, nil
	}
	if err := t.writeRecord(t.schema.encode(row)); err != nil {
		return false, fmt.Errorf("append %s: %w", t.schema.Name, err)
	}
	t.seen[key] = struct{}{}
	t.rows = append(t.rows, cloneRow(row))
	return true, nil
}

// writeRecord encodes one CSV record, writes it in a single call and
// fsyncs the file.
func (t *Table) writeRecord(rec []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if _, err := t.file.Write(buf.Bytes()); err != nil {
		return err
	}
	return t.file.Sync()
}

// Has reports whether key is already persisted.
func (t *Table) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[key]
	return ok
}

// Rows returns a copy of all rows in persisted order.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Len returns the number of persisted rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Path returns the backing file path.
func (t *Table) Path() string {
	return t.path
}

// Close releases the file handle.
func (t *Table) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}

// #endregion table

// #region helpers

const utf8BOM = "\ufeff"

func equalColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// countLines counts non-blank lines; a quoted field spanning lines counts
// once per line.
func countLines(b []byte) int {
	n := 0
	for _, line := range bytes.Split(b, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

func appendBytes(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// #endregion helpers
