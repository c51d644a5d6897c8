package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region pair-schema

// PairSchema is the minimal_pairs table layout.
var PairSchema = Schema{
	Name:     "minimal_pairs",
	Columns:  []string{"id", "phenomenon", "grammatical", "ungrammatical", "target", "error_type"},
	Required: []string{"id", "phenomenon", "grammatical", "ungrammatical", "target", "error_type"},
	Check: func(r Row) error {
		if !bench.ValidPairID(r["id"]) {
			return &SchemaError{Table: "minimal_pairs", Field: "id", Reason: fmt.Sprintf("malformed id %q", r["id"])}
		}
		p := bench.Phenomenon(r["phenomenon"])
		if !p.Valid() {
			return &SchemaError{Table: "minimal_pairs", Field: "phenomenon", Reason: fmt.Sprintf("unknown phenomenon %q", p)}
		}
		if idP, _, err := bench.ParsePairID(r["id"]); err != nil || idP != p {
			return &SchemaError{Table: "minimal_pairs", Field: "id", Reason: "id does not match phenomenon"}
		}
		return nil
	},
}

// #endregion pair-schema

// #region pair-store

// PairStore persists minimal pairs keyed by id.
type PairStore struct {
	table *Table
}

// OpenPairs loads the pair table at path.
func OpenPairs(path string, logger *zap.Logger) (*PairStore, LoadReport, error) {
	t, report, err := Open(path, PairSchema, func(r Row) string { return r["id"] }, logger)
	if err != nil {
		return nil, report, err
	}
	return &PairStore{table: t}, report, nil
}

// Append writes p unless its id already exists.
func (s *PairStore) Append(p bench.MinimalPair) (bool, error) {
	return s.table.Append(Row{
		"id":            p.ID,
		"phenomenon":    string(p.Phenomenon),
		"grammatical":   p.Grammatical,
		"ungrammatical": p.Ungrammatical,
		"target":        p.Target,
		"error_type":    p.ErrorType,
	})
}

// Has reports whether a pair with id is persisted.
func (s *PairStore) Has(id string) bool {
	return s.table.Has(id)
}

// Pairs returns all pairs in persisted order.
func (s *PairStore) Pairs() []bench.MinimalPair {
	rows := s.table.Rows()
	out := make([]bench.MinimalPair, len(rows))
	for i, r := range rows {
		out[i] = bench.MinimalPair{
			ID:            r["id"],
			Phenomenon:    bench.Phenomenon(r["phenomenon"]),
			Grammatical:   r["grammatical"],
			Ungrammatical: r["ungrammatical"],
			Target:        r["target"],
			ErrorType:     r["error_type"],
		}
	}
	return out
}

// Len returns the number of persisted pairs.
func (s *PairStore) Len() int {
	return s.table.Len()
}

// Close releases the underlying file.
func (s *PairStore) Close() error {
	return s.table.Close()
}

// #endregion pair-store
