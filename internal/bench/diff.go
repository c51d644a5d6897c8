package bench

import "strings"

// DiffersByOneToken reports whether a and b have the same number of
// whitespace-separated tokens and differ at exactly one position.
// A changed morphological feature surfaces as one changed token.
func DiffersByOneToken(a, b string) bool {
	_, ok := DifferingToken(a, b)
	return ok
}

// DifferingToken returns the index of the single differing token.
func DifferingToken(a, b string) (int, bool) {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) != len(tb) || len(ta) == 0 {
		return -1, false
	}
	idx := -1
	for i := range ta {
		if ta[i] == tb[i] {
			continue
		}
		if idx >= 0 {
			return -1, false
		}
		idx = i
	}
	return idx, idx >= 0
}
