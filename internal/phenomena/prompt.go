package phenomena

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region templates

type template struct {
	task          string
	instruction   string
	ungrammatical string
	target        string
	errorType     string
	example       example
}

type example struct {
	grammatical, ungrammatical, target, errorType string
}

var templates = map[bench.Phenomenon]template{
	bench.QuirkyCase: {
		task:          "Determine if this sentence contains a quirky case verb (verbs like líka, þykja, þurfa that require dative or accusative subjects instead of nominative).",
		instruction:   "1. Identify the quirky case subject (dative or accusative)\n2. Create an UNGRAMMATICAL variant by changing that subject to nominative case",
		ungrammatical: "[sentence with nominative subject]",
		target:        "[the word that was changed]",
		errorType:     `[e.g., "dative_to_nominative" or "accusative_to_nominative"]`,
		example:       example{"Hánum líkaði þat.", "Hann líkaði þat.", "Hánum", "dative_to_nominative"},
	},
	bench.Adjective: {
		task:          "Determine if this sentence contains an adjective that must be in strong or weak form based on definiteness.",
		instruction:   "1. Identify the adjective and determine if it should be strong (indefinite context) or weak (definite context)\n2. Create an UNGRAMMATICAL variant by using the wrong form",
		ungrammatical: "[sentence with wrong adjective form]",
		target:        "[the adjective that was changed]",
		errorType:     `[e.g., "strong_to_weak" or "weak_to_strong"]`,
		example:       example{"Hann sá stóran mann.", "Hann sá stóri mann.", "stóran", "strong_to_weak"},
	},
	bench.Umlaut: {
		task:          "Determine if this sentence contains a word with u-umlaut (vowel shift from 'a' to 'ǫ' in plural or dative contexts, like land → lǫnd).",
		instruction:   "1. Identify the umlauted word\n2. Create an UNGRAMMATICAL variant by reverting the ǫ to a",
		ungrammatical: "[sentence with ǫ changed to a]",
		target:        "[the word that was changed]",
		errorType:     "umlaut_removed",
		example:       example{"Þeir sá lǫnd.", "Þeir sá land.", "lǫnd", "umlaut_removed"},
	},
	bench.MiddleVoice: {
		task:          "Determine if this sentence contains a middle-voice verb (verb with -sk suffix indicating reflexive or reciprocal action).",
		instruction:   "1. Identify the middle-voice verb (ends in -sk, -st, or similar)\n2. Create an UNGRAMMATICAL variant by removing the middle-voice suffix",
		ungrammatical: "[sentence with -sk suffix removed]",
		target:        "[the verb that was changed]",
		errorType:     "middle_voice_removed",
		example:       example{"Þeir finnask í morgin.", "Þeir finna í morgin.", "finnask", "middle_voice_removed"},
	},
}

// #endregion templates

// Prompt renders the generation instructions for one sentence.
func Prompt(p bench.Phenomenon, sentence string) (string, error) {
	t, ok := templates[p]
	if !ok {
		return "", fmt.Errorf("unknown phenomenon %q", p)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an Old Norse linguist. Analyze this sentence:\n\n%q\n\n", sentence)
	fmt.Fprintf(&b, "Task: %s\n\n", t.task)
	fmt.Fprintf(&b, "If YES:\n%s\n3. Respond in this exact format:\n", t.instruction)
	writeFields(&b, "[original sentence]", t.ungrammatical, t.target, t.errorType)
	b.WriteString("\nIf NO:\nRespond with only:\nCONTAINS: no\n\n")
	fmt.Fprintf(&b, "Example:\nInput: %q\nOutput:\n", t.example.grammatical)
	writeFields(&b, t.example.grammatical, t.example.ungrammatical, t.example.target, t.example.errorType)
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeFields(b *strings.Builder, grammatical, ungrammatical, target, errorType string) {
	fmt.Fprintf(b, "%s yes\n", fieldContains)
	fmt.Fprintf(b, "%s %s\n", fieldGrammatical, grammatical)
	fmt.Fprintf(b, "%s %s\n", fieldUngrammatical, ungrammatical)
	fmt.Fprintf(b, "%s %s\n", fieldTarget, target)
	fmt.Fprintf(b, "%s %s\n", fieldErrorType, errorType)
}
