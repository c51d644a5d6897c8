package eval

import (
	"math"
	"strings"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// BiasSignificance is the p-value below which a model's A/B preference is
// reported as a bias.
const BiasSignificance = 0.05

// UnspecifiedErrorType groups pairs whose error_type is blank.
const UnspecifiedErrorType = "unspecified"

// #region types

// Analysis describes how one model answered, beyond plain accuracy.
type Analysis struct {
	Model   string
	Total   int
	Choices map[bench.Choice]int

	// ChiSquare tests A against B answers for a 50/50 split (1 degree of
	// freedom). Invalid answers are left out of the test.
	ChiSquare float64
	PValue    float64

	ByOrder     map[bench.Order]bench.Tally
	ByErrorType map[string]bench.Tally
}

// Favoured returns the slot the model picked more often, or "" on a tie.
func (a Analysis) Favoured() bench.Choice {
	switch na, nb := a.Choices[bench.ChoiceA], a.Choices[bench.ChoiceB]; {
	case na > nb:
		return bench.ChoiceA
	case nb > na:
		return bench.ChoiceB
	}
	return ""
}

// Biased reports a significant preference for one slot.
func (a Analysis) Biased() bool {
	return a.PValue < BiasSignificance
}

// OrderGap is the absolute accuracy difference between the two orders.
func (a Analysis) OrderGap() float64 {
	return math.Abs(a.ByOrder[bench.OrderAGram].Accuracy() - a.ByOrder[bench.OrderBGram].Accuracy())
}

// #endregion types

// #region analyze

// AnalyzeResponses reports choice bias, order effect and accuracy per error
// type for every model. It is gated on the same completeness check as
// ComputeAccuracy.
func AnalyzeResponses(pairs []bench.MinimalPair, models []string, records []bench.EvaluationRecord) ([]Analysis, error) {
	cov, err := checkCoverage(pairs, models, records)
	if err != nil {
		return nil, err
	}

	out := make([]Analysis, len(models))
	for i, m := range models {
		out[i] = Analysis{
			Model:   m,
			Choices: map[bench.Choice]int{bench.ChoiceA: 0, bench.ChoiceB: 0, bench.ChoiceInvalid: 0},
			ByOrder: map[bench.Order]bench.Tally{
				bench.OrderAGram: {},
				bench.OrderBGram: {},
			},
			ByErrorType: map[string]bench.Tally{},
		}
	}

	for _, r := range records {
		a := &out[cov.roster[r.Model]]
		a.Total++
		a.Choices[r.Choice]++

		t := a.ByOrder[r.Order]
		t.Add(r.Correct)
		a.ByOrder[r.Order] = t

		et := errorTypeKey(cov.pairs[r.PairID].ErrorType)
		t = a.ByErrorType[et]
		t.Add(r.Correct)
		a.ByErrorType[et] = t
	}

	for i := range out {
		out[i].ChiSquare, out[i].PValue = choiceChiSquare(out[i].Choices[bench.ChoiceA], out[i].Choices[bench.ChoiceB])
	}
	return out, nil
}

// #endregion analyze

// #region helpers

// choiceChiSquare is Pearson's statistic against an even split, with the
// upper-tail p-value of the chi-square distribution with one degree of
// freedom.
func choiceChiSquare(na, nb int) (chi2, p float64) {
	n := float64(na + nb)
	if n == 0 {
		return 0, 1
	}
	expected := n / 2
	da, db := float64(na)-expected, float64(nb)-expected
	chi2 = (da*da + db*db) / expected
	return chi2, math.Erfc(math.Sqrt(chi2 / 2))
}

func errorTypeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UnspecifiedErrorType
	}
	return s
}

// #endregion helpers
