package ledger

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
	"github.com/danielpatrickdp/norse-minpairs/internal/logging"
)

// #region recorder
// Recorder writes every API attempt of one run to the ledger. It
// implements llm.Observer; write failures are logged, never returned, so a
// ledger problem cannot fail a benchmark call.
type Recorder struct {
	store    *Store
	runID    string
	decoding string
	logger   *zap.Logger
}

// NewRecorder binds a recorder to run. decoding is stored verbatim with
// each row.
func NewRecorder(store *Store, run Run, decoding llm.Decoding, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := json.Marshal(decoding)
	if err != nil {
		logger.Warn("marshal decoding", zap.Error(err))
	}
	return &Recorder{store: store, runID: run.RunID, decoding: string(raw), logger: logger.Named("ledger")}
}

// ObserveCall implements llm.Observer.
func (r *Recorder) ObserveCall(ev llm.CallEvent) {
	err := logging.LogCall(r.store.DB(), logging.CallEntry{
		RunID:        r.runID,
		Purpose:      string(ev.Purpose),
		Model:        ev.Model,
		KeyIndex:     ev.KeyIndex,
		Attempt:      ev.Attempt,
		Outcome:      string(ev.Outcome),
		Error:        ev.Err,
		Fingerprint:  ev.Fingerprint,
		DecodingJSON: r.decoding,
		LatencyMS:    ev.Latency.Milliseconds(),
	})
	if err != nil {
		r.logger.Warn("ledger write failed", zap.String("run_id", r.runID), zap.Error(err))
	}
}
// #endregion recorder
