package phenomena

import (
	"strings"
	"unicode"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region word-lists

// obliqueSubjects are dative and accusative pronouns that can stand as the
// subject of an impersonal (quirky case) verb.
var obliqueSubjects = set(
	"mér", "þér", "hánum", "honum", "henni", "oss", "yðr", "okkr", "ykkr", "þeim", "sér",
	"mik", "þik", "hann", "hana", "þá",
)

// quirkyVerbStems start the impersonal verbs that take oblique subjects.
var quirkyVerbStems = []string{
	"lík", "þyk", "þót", "þurf", "lang", "leng", "byrj", "hungr", "þyrst", "sýn", "virð", "berr", "bar",
}

// adjectiveStems come from the beginner grammar vocabulary.
var adjectiveStems = []string{
	"góð", "ill", "stór", "lang", "reið", "glað", "glǫð", "svang", "hrædd", "rag", "dauð",
	"dansk", "norsk", "íslenzk", "mikil", "mikl", "lítil", "lítl", "gaml", "gamal", "ung",
	"sterk", "rík", "fagr", "fǫgr", "hvít", "svart", "rauð", "vís", "heil", "grœn", "spak",
	"breið", "djúp", "harð", "sann", "full", "frœg",
}

// adjectiveEndings cover strong and weak masculine singular/plural forms.
var adjectiveEndings = []string{"r", "an", "um", "s", "ir", "a", "ra", "i", "u", "ri", "ar", "t", "ur"}

// definiteMarkers signal a definite noun phrase, which selects weak forms.
var definiteMarkers = set("inn", "hinn", "in", "hin", "it", "hit", "sá", "sú", "þat")

// middleVoiceEndings are the -sk family of suffixes.
var middleVoiceEndings = []string{"ask", "isk", "usk", "ðisk", "ðusk", "zk", "sk", "st", "zt", "mk"}

// notMiddleVoice end in -sk/-st without being verbs.
var notMiddleVoice = set(
	"fyrst", "síðast", "mest", "flest", "best", "helzt", "helst", "verst", "næst", "fast",
	"hest", "gest", "kost", "brjóst", "ást", "traust", "vist", "lost", "austr", "sízt",
	"dansk", "norsk", "íslenzk", "írsk", "þýzk", "fisk", "borgarfjǫrð", "ost", "lest",
)

// #endregion word-lists

// #region eligible

// Eligible returns the phenomena a sentence plausibly exhibits, in
// canonical order. The API has the final word; this only avoids spending
// calls on hopeless candidates.
func Eligible(sentence string) []bench.Phenomenon {
	tokens := Tokens(sentence)
	var out []bench.Phenomenon
	if hasQuirkyCase(tokens) {
		out = append(out, bench.QuirkyCase)
	}
	if hasAdjective(tokens) {
		out = append(out, bench.Adjective)
	}
	if hasUmlaut(tokens) {
		out = append(out, bench.Umlaut)
	}
	if hasMiddleVoice(tokens) {
		out = append(out, bench.MiddleVoice)
	}
	return out
}

// Tokens lowercases and strips surrounding punctuation.
func Tokens(sentence string) []string {
	fields := strings.Fields(sentence)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(strings.ToLower(f), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func hasQuirkyCase(tokens []string) bool {
	pronoun, verb := false, false
	for _, t := range tokens {
		if obliqueSubjects[t] {
			pronoun = true
		}
		if hasAnyPrefix(t, quirkyVerbStems) {
			verb = true
		}
	}
	return pronoun && verb
}

func hasAdjective(tokens []string) bool {
	for _, t := range tokens {
		for _, stem := range adjectiveStems {
			if !strings.HasPrefix(t, stem) {
				continue
			}
			rest := strings.TrimPrefix(t, stem)
			if rest == "" || contains(adjectiveEndings, rest) {
				return true
			}
		}
	}
	for _, t := range tokens {
		if definiteMarkers[t] {
			return len(tokens) >= 3
		}
	}
	return false
}

func hasUmlaut(tokens []string) bool {
	for _, t := range tokens {
		if strings.ContainsAny(t, "ǫö") {
			return true
		}
	}
	return false
}

func hasMiddleVoice(tokens []string) bool {
	for _, t := range tokens {
		if len([]rune(t)) < 4 || notMiddleVoice[t] {
			continue
		}
		if hasAnySuffix(t, middleVoiceEndings) {
			return true
		}
	}
	return false
}

// #endregion eligible

// #region helpers

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, p := range suffixes {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// #endregion helpers
