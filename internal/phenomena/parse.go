package phenomena

import (
	"strings"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

const (
	fieldContains      = "CONTAINS:"
	fieldGrammatical   = "GRAMMATICAL:"
	fieldUngrammatical = "UNGRAMMATICAL:"
	fieldTarget        = "TARGET:"
	fieldErrorType     = "ERROR_TYPE:"
)

// #region result

// Result is the parsed outcome of a generation call. Exactly one of
// Applicable, NotApplicable or Malformed.
type Result interface {
	isResult()
}

// Applicable carries a proposed minimal pair.
type Applicable struct {
	Grammatical   string
	Ungrammatical string
	Target        string
	ErrorType     string
}

// NotApplicable means the model judged the sentence free of the phenomenon.
type NotApplicable struct{}

// Malformed keeps a response that could not be used.
type Malformed struct {
	Raw    string
	Reason string
}

func (Applicable) isResult()    {}
func (NotApplicable) isResult() {}
func (Malformed) isResult()     {}

// #endregion result

// #region parse

// ParseGeneration reads the CONTAINS/GRAMMATICAL/... block. An Applicable
// result is only returned when all four fields are present and the two
// sentences differ in exactly one token.
func ParseGeneration(raw string) Result {
	fields := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		// UNGRAMMATICAL must be tried before GRAMMATICAL.
		for _, key := range []string{fieldContains, fieldUngrammatical, fieldGrammatical, fieldTarget, fieldErrorType} {
			if rest, ok := cutPrefixFold(line, key); ok {
				if _, seen := fields[key]; !seen {
					fields[key] = strings.TrimSpace(rest)
				}
				break
			}
		}
	}

	contains, ok := fields[fieldContains]
	if !ok {
		return Malformed{Raw: raw, Reason: "missing CONTAINS"}
	}
	switch strings.ToLower(strings.Trim(contains, " .\"'*")) {
	case "no":
		return NotApplicable{}
	case "yes":
	default:
		return Malformed{Raw: raw, Reason: "CONTAINS is neither yes nor no"}
	}

	a := Applicable{
		Grammatical:   unquote(fields[fieldGrammatical]),
		Ungrammatical: unquote(fields[fieldUngrammatical]),
		Target:        unquote(fields[fieldTarget]),
		ErrorType:     unquote(fields[fieldErrorType]),
	}
	switch {
	case a.Grammatical == "":
		return Malformed{Raw: raw, Reason: "missing GRAMMATICAL"}
	case a.Ungrammatical == "":
		return Malformed{Raw: raw, Reason: "missing UNGRAMMATICAL"}
	case a.Target == "":
		return Malformed{Raw: raw, Reason: "missing TARGET"}
	case a.ErrorType == "":
		return Malformed{Raw: raw, Reason: "missing ERROR_TYPE"}
	case !bench.DiffersByOneToken(a.Grammatical, a.Ungrammatical):
		return Malformed{Raw: raw, Reason: "sentences do not differ in exactly one token"}
	}
	return a
}

// #endregion parse

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
