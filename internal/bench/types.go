package bench

import "encoding/json"

// #region phenomenon

// Phenomenon tags one of the four grammatical features under test.
type Phenomenon string

const (
	QuirkyCase  Phenomenon = "QUIRKY_CASE"
	Adjective   Phenomenon = "ADJECTIVE"
	Umlaut      Phenomenon = "UMLAUT"
	MiddleVoice Phenomenon = "MIDDLE_VOICE"
)

// Phenomena lists every phenomenon in canonical order.
var Phenomena = []Phenomenon{QuirkyCase, Adjective, Umlaut, MiddleVoice}

// Valid reports whether p is one of the enumerated phenomena.
func (p Phenomenon) Valid() bool {
	for _, known := range Phenomena {
		if p == known {
			return true
		}
	}
	return false
}

// #endregion phenomenon

// #region minimal-pair

// MinimalPair is a grammatical sentence and an ungrammatical variant that
// differ in exactly one token. Immutable once persisted.
type MinimalPair struct {
	ID            string
	Phenomenon    Phenomenon
	Grammatical   string
	Ungrammatical string
	Target        string
	ErrorType     string
}

// #endregion minimal-pair

// #region evaluation-record

// Order records which slot held the grammatical sentence.
type Order string

const (
	OrderAGram Order = "A_gram"
	OrderBGram Order = "B_gram"
)

// Choice is the parsed answer of a forced-choice response.
type Choice string

const (
	ChoiceA       Choice = "A"
	ChoiceB       Choice = "B"
	ChoiceInvalid Choice = "INVALID"
)

// GrammaticalSlot returns the choice that is correct under this order.
func (o Order) GrammaticalSlot() Choice {
	if o == OrderBGram {
		return ChoiceB
	}
	return ChoiceA
}

// EvaluationRecord is one model's answer for one pair.
type EvaluationRecord struct {
	Model    string
	PairID   string
	Order    Order
	Choice   Choice
	Response string // raw model output, kept even when Choice is invalid
	Correct  bool
}

// Key identifies the (model, pair) combination.
func (r EvaluationRecord) Key() string {
	return CombinationKey(r.Model, r.PairID)
}

// CombinationKey joins a model and a pair id into one identity.
func CombinationKey(model, pairID string) string {
	return model + "\x1f" + pairID
}

// #endregion evaluation-record

// #region metrics

// Tally counts correct answers out of a total.
type Tally struct {
	Correct int
	Total   int
}

// Add counts one answer.
func (t *Tally) Add(correct bool) {
	t.Total++
	if correct {
		t.Correct++
	}
}

// Accuracy is Correct/Total, or 0 for an empty tally.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

func (t Tally) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Accuracy float64 `json:"accuracy"`
		Correct  int     `json:"correct"`
		Total    int     `json:"total"`
	}{t.Accuracy(), t.Correct, t.Total})
}

// Metrics is the accuracy summary for one model. Derived from records only.
type Metrics struct {
	Model           string
	OverallAccuracy float64
	Correct         int
	Total           int
	PerPhenomenon   map[Phenomenon]Tally
}

// #endregion metrics
