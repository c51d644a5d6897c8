package eval

import (
	"encoding/binary"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region prompt

// FormatPrompt places the pair's sentences into slots A and B according
// to order.
func FormatPrompt(pair bench.MinimalPair, order bench.Order) string {
	a, b := pair.Grammatical, pair.Ungrammatical
	if order == bench.OrderBGram {
		a, b = b, a
	}
	return "Which of the following Old Norse sentences is grammatically correct? A: " + a + " B: " + b + " Answer with A or B only."
}

// OrderFor picks the slot order for one (model, pair) combination. It is
// a pure function of its inputs, so a resumed run reproduces the orders of
// the interrupted one while different models see independent orders.
func OrderFor(seed int64, model, pairID string) bench.Order {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write([]byte(model))
	h.Write([]byte{0x1f})
	h.Write([]byte(pairID))
	if h.Sum64()&1 == 0 {
		return bench.OrderAGram
	}
	return bench.OrderBGram
}

// #endregion prompt

// #region parse

// ParseChoice reads the leading A or B of a response. Anything else is
// ChoiceInvalid with ok=false; the raw text is kept by the caller.
func ParseChoice(raw string) (bench.Choice, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return bench.ChoiceInvalid, false
	}
	tok := strings.TrimFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	switch strings.ToUpper(tok) {
	case "A":
		return bench.ChoiceA, true
	case "B":
		return bench.ChoiceB, true
	}
	return bench.ChoiceInvalid, false
}

// Score builds the record for one answered combination.
func Score(model string, pair bench.MinimalPair, order bench.Order, raw string) bench.EvaluationRecord {
	choice, _ := ParseChoice(raw)
	return bench.EvaluationRecord{
		Model:    model,
		PairID:   pair.ID,
		Order:    order,
		Choice:   choice,
		Response: raw,
		Correct:  choice == order.GrammaticalSlot(),
	}
}

// #endregion parse
