package corpus

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// #region normalize

// letterforms maps manuscript variants to the normalized orthography.
var letterforms = strings.NewReplacer(
	"ſ", "s", // long s
	"ꝛ", "r", // r rotunda
	"ꝺ", "d", // insular d
	"ꝼ", "f", // insular f
	"ꝥ", "þ", // thorn with stroke
	"ę", "æ", // e caudata
	"Ę", "Æ",
	"ꜳ", "á",
	"Ꜳ", "Á",
	"ꝏ", "ó",
	"Ꝏ", "Ó",
)

// Normalize composes characters (NFC) and folds historical letterforms to
// their canonical forms. Everything else is left untouched.
func Normalize(text string) string {
	return letterforms.Replace(norm.NFC.String(text))
}

// #endregion normalize

// #region segment

// Segment splits text at '.', ':' and ';'. Sentences are trimmed and
// empty ones dropped.
func Segment(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == ':' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.Join(strings.Fields(p), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// #endregion segment

// #region filter

// Filter bounds sentence length in words.
type Filter struct {
	MinWords int
	MaxWords int
}

// DefaultFilter keeps sentences of 5 to 20 words.
func DefaultFilter() Filter {
	return Filter{MinWords: 5, MaxWords: 20}
}

const editorialMarkers = "[]()<>"

// Usable reports whether s is a prose sentence worth sending to the API:
// within length bounds, free of editorial brackets, not a bare number.
func (f Filter) Usable(s string) bool {
	words := strings.Fields(s)
	if len(words) < f.MinWords || (f.MaxWords > 0 && len(words) > f.MaxWords) {
		return false
	}
	if strings.ContainsAny(s, editorialMarkers) {
		return false
	}
	return !isDigits(strings.ReplaceAll(s, " ", ""))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// #endregion filter
