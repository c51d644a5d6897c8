package dataset

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region audit-types

// Check is one named dataset property.
type Check struct {
	Name   string
	Value  float64
	Pass   bool
	Detail string
}

// AuditResult is the outcome of Audit.
type AuditResult struct {
	Passed bool
	Checks []Check
	Reason string
}

// #endregion audit-types

// #region audit

// BalanceTolerance is the allowed relative deviation from the even split.
const BalanceTolerance = 0.10

// Audit checks a persisted dataset: id format, id uniqueness, single-token
// difference, one grammatical sentence per phenomenon, and balance against
// targets.
func Audit(pairs []bench.MinimalPair, targets map[bench.Phenomenon]int) AuditResult {
	var checks []Check
	var failReasons []string
	add := func(c Check) {
		checks = append(checks, c)
		if !c.Pass {
			failReasons = append(failReasons, fmt.Sprintf("%s: %s", c.Name, c.Detail))
		}
	}

	// 1. id format
	bad := 0
	first := ""
	for _, p := range pairs {
		phen, _, err := bench.ParsePairID(p.ID)
		if !bench.ValidPairID(p.ID) || err != nil || phen != p.Phenomenon {
			if first == "" {
				first = p.ID
			}
			bad++
		}
	}
	add(Check{Name: "id_format", Value: float64(bad), Pass: bad == 0, Detail: detail(bad, "malformed id", first)})

	// 2. id uniqueness
	ids := map[string]bool{}
	dup, first := 0, ""
	for _, p := range pairs {
		if ids[p.ID] {
			if first == "" {
				first = p.ID
			}
			dup++
		}
		ids[p.ID] = true
	}
	add(Check{Name: "id_unique", Value: float64(dup), Pass: dup == 0, Detail: detail(dup, "duplicate id", first)})

	// 3. minimal difference
	wide, first := 0, ""
	for _, p := range pairs {
		if !bench.DiffersByOneToken(p.Grammatical, p.Ungrammatical) {
			if first == "" {
				first = p.ID
			}
			wide++
		}
	}
	add(Check{Name: "single_token_difference", Value: float64(wide), Pass: wide == 0, Detail: detail(wide, "pair not minimal", first)})

	// 4. no sentence reused within a phenomenon
	sentences := map[string]bool{}
	reused, first := 0, ""
	for _, p := range pairs {
		k := string(p.Phenomenon) + "\x1f" + sentenceKey(p.Grammatical)
		if sentences[k] {
			if first == "" {
				first = p.ID
			}
			reused++
		}
		sentences[k] = true
	}
	add(Check{Name: "sentence_unique", Value: float64(reused), Pass: reused == 0, Detail: detail(reused, "sentence reused", first)})

	// 5. balance per phenomenon
	counts := map[bench.Phenomenon]int{}
	for _, p := range pairs {
		counts[p.Phenomenon]++
	}
	even := float64(len(pairs)) / float64(len(bench.Phenomena))
	for _, p := range bench.Phenomena {
		got := counts[p]
		want := targets[p]
		pass := got == want
		d := fmt.Sprintf("%d of %d", got, want)
		if even > 0 && math.Abs(float64(got)-even) > even*BalanceTolerance {
			pass = false
			d += fmt.Sprintf(", more than %.0f%% from even split %.1f", BalanceTolerance*100, even)
		}
		add(Check{Name: "balance_" + string(p), Value: float64(got), Pass: pass, Detail: d})
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = "audit failed: " + failReasons[0]
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("audit failed: %d checks: %s", len(failReasons), failReasons[0])
	}
	return AuditResult{Passed: len(failReasons) == 0, Checks: checks, Reason: reason}
}

// #endregion audit

func detail(n int, what, first string) string {
	if n == 0 {
		return "ok"
	}
	return fmt.Sprintf("%d %s (first %s)", n, what, first)
}
