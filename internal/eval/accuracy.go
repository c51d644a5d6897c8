package eval

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// ErrIncompleteEvaluation is returned when records do not cover exactly
// every (model, pair) combination.
var ErrIncompleteEvaluation = errors.New("eval: incomplete evaluation")

// #region completeness

// coverage indexes a record set that covers pairs × models exactly once.
type coverage struct {
	pairs  map[string]bench.MinimalPair
	roster map[string]int
}

// checkCoverage is the completeness gate shared by every aggregate.
func checkCoverage(pairs []bench.MinimalPair, models []string, records []bench.EvaluationRecord) (coverage, error) {
	want := len(pairs) * len(models)
	if len(records) != want {
		return coverage{}, fmt.Errorf("%w: have %d records, need %d (%d pairs x %d models)",
			ErrIncompleteEvaluation, len(records), want, len(pairs), len(models))
	}

	cov := coverage{
		pairs:  make(map[string]bench.MinimalPair, len(pairs)),
		roster: make(map[string]int, len(models)),
	}
	for _, p := range pairs {
		cov.pairs[p.ID] = p
	}
	for i, m := range models {
		cov.roster[m] = i
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if _, ok := cov.roster[r.Model]; !ok {
			return coverage{}, fmt.Errorf("%w: record for unknown model %q", ErrIncompleteEvaluation, r.Model)
		}
		if _, ok := cov.pairs[r.PairID]; !ok {
			return coverage{}, fmt.Errorf("%w: record for unknown pair %q", ErrIncompleteEvaluation, r.PairID)
		}
		if seen[r.Key()] {
			return coverage{}, fmt.Errorf("%w: duplicate record for %s on %s", ErrIncompleteEvaluation, r.Model, r.PairID)
		}
		seen[r.Key()] = true
	}
	return cov, nil
}

// #endregion completeness

// #region accuracy

// ComputeAccuracy derives per-model metrics from the full record set. It
// refuses to compute anything unless records cover pairs × models exactly
// once.
func ComputeAccuracy(pairs []bench.MinimalPair, models []string, records []bench.EvaluationRecord) ([]bench.Metrics, error) {
	cov, err := checkCoverage(pairs, models, records)
	if err != nil {
		return nil, err
	}

	overall := make([]bench.Tally, len(models))
	per := make([]map[bench.Phenomenon]bench.Tally, len(models))
	for i := range per {
		per[i] = make(map[bench.Phenomenon]bench.Tally, len(bench.Phenomena))
		for _, p := range bench.Phenomena {
			per[i][p] = bench.Tally{}
		}
	}

	for _, r := range records {
		mi := cov.roster[r.Model]
		phen := cov.pairs[r.PairID].Phenomenon
		overall[mi].Add(r.Correct)
		t := per[mi][phen]
		t.Add(r.Correct)
		per[mi][phen] = t
	}

	out := make([]bench.Metrics, len(models))
	for i, m := range models {
		out[i] = bench.Metrics{
			Model:           m,
			OverallAccuracy: overall[i].Accuracy(),
			Correct:         overall[i].Correct,
			Total:           overall[i].Total,
			PerPhenomenon:   per[i],
		}
	}
	return out, nil
}

// #endregion accuracy
