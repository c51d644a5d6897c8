package store

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region result-schema

// ResultSchema is the evaluation_results table layout. response may be
// empty: an empty completion is stored as an invalid answer.
var ResultSchema = Schema{
	Name:     "evaluation_results",
	Columns:  []string{"model", "pair_id", "order", "choice", "response", "correct"},
	Required: []string{"model", "pair_id", "order", "choice", "correct"},
	Check:    checkResult,
}

func checkResult(r Row) error {
	order := bench.Order(r["order"])
	if order != bench.OrderAGram && order != bench.OrderBGram {
		return &SchemaError{Table: "evaluation_results", Field: "order", Reason: fmt.Sprintf("unknown order %q", order)}
	}
	choice := bench.Choice(r["choice"])
	switch choice {
	case bench.ChoiceA, bench.ChoiceB, bench.ChoiceInvalid:
	default:
		return &SchemaError{Table: "evaluation_results", Field: "choice", Reason: fmt.Sprintf("unknown choice %q", choice)}
	}
	correct, err := strconv.ParseBool(r["correct"])
	if err != nil {
		return &SchemaError{Table: "evaluation_results", Field: "correct", Reason: err.Error()}
	}
	if correct != (choice == order.GrammaticalSlot()) {
		return &SchemaError{Table: "evaluation_results", Field: "correct", Reason: "inconsistent with order and choice"}
	}
	return nil
}

func resultKey(r Row) string {
	return bench.CombinationKey(r["model"], r["pair_id"])
}

// #endregion result-schema

// #region result-store

// ResultStore persists evaluation records keyed by (model, pair_id).
type ResultStore struct {
	table *Table
}

// OpenResults loads the results table at path.
func OpenResults(path string, logger *zap.Logger) (*ResultStore, LoadReport, error) {
	t, report, err := Open(path, ResultSchema, resultKey, logger)
	if err != nil {
		return nil, report, err
	}
	return &ResultStore{table: t}, report, nil
}

// Append writes rec unless its (model, pair_id) already exists.
func (s *ResultStore) Append(rec bench.EvaluationRecord) (bool, error) {
	return s.table.Append(Row{
		"model":    rec.Model,
		"pair_id":  rec.PairID,
		"order":    string(rec.Order),
		"choice":   string(rec.Choice),
		"response": rec.Response,
		"correct":  strconv.FormatBool(rec.Correct),
	})
}

// Has reports whether (model, pairID) has a record.
func (s *ResultStore) Has(model, pairID string) bool {
	return s.table.Has(bench.CombinationKey(model, pairID))
}

// Records returns all records in persisted order.
func (s *ResultStore) Records() []bench.EvaluationRecord {
	rows := s.table.Rows()
	out := make([]bench.EvaluationRecord, len(rows))
	for i, r := range rows {
		correct, _ := strconv.ParseBool(r["correct"])
		out[i] = bench.EvaluationRecord{
			Model:    r["model"],
			PairID:   r["pair_id"],
			Order:    bench.Order(r["order"]),
			Choice:   bench.Choice(r["choice"]),
			Response: r["response"],
			Correct:  correct,
		}
	}
	return out
}

// Len returns the number of persisted records.
func (s *ResultStore) Len() int {
	return s.table.Len()
}

// Close releases the underlying file.
func (s *ResultStore) Close() error {
	return s.table.Close()
}

// #endregion result-store
