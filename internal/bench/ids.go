package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pairIDPattern = regexp.MustCompile(`^ON_(QUIRKY_CASE|ADJECTIVE|UMLAUT|MIDDLE_VOICE)_(\d{3,})$`)

// PairID formats the id for the n-th pair of a phenomenon, e.g. ON_UMLAUT_004.
func PairID(p Phenomenon, n int) string {
	return fmt.Sprintf("ON_%s_%03d", strings.ToUpper(string(p)), n)
}

// ParsePairID splits an id into its phenomenon and sequence number.
func ParsePairID(id string) (Phenomenon, int, error) {
	m := pairIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, fmt.Errorf("malformed pair id %q", id)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("pair id %q: %w", id, err)
	}
	return Phenomenon(m[1]), n, nil
}

// ValidPairID reports whether id matches ON_<PHENOMENON>_<NNN> with exactly
// three zero-padded digits.
func ValidPairID(id string) bool {
	m := pairIDPattern.FindStringSubmatch(id)
	return m != nil && len(m[2]) == 3
}
