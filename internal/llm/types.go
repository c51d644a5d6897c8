package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
)

// #region errors

var (
	// ErrRateLimited marks a transport failure caused by a 429-equivalent.
	// Transports wrap it; the caller rotates keys when it sees it.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrCallExhausted is returned when the transient-retry budget is spent.
	ErrCallExhausted = errors.New("llm: call attempts exhausted")
)

// #endregion errors

// #region decoding

// Decoding is the sampling configuration shared by every outbound request
// of a run.
type Decoding struct {
	Temperature float32 `yaml:"temperature" json:"temperature"`
	TopP        float32 `yaml:"top_p" json:"top_p"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// Fingerprint is a short stable digest used to compare configurations
// across ledger rows.
func (d Decoding) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("t=%.4f|p=%.4f|m=%d", d.Temperature, d.TopP, d.MaxTokens)))
	return hex.EncodeToString(sum[:6])
}

// #endregion decoding

// #region request

// Purpose labels a request for logging and the ledger.
type Purpose string

const (
	PurposeGenerate Purpose = "generate"
	PurposeEvaluate Purpose = "evaluate"
)

// Request is one logical call. Decoding is deliberately absent: the caller
// attaches its own.
type Request struct {
	Purpose Purpose
	Model   string
	Prompt  string
}

// Response is the text returned by a successful call.
type Response struct {
	Text     string // exactly as the model produced it
	KeyIndex int
	Attempts int
}

// Outbound is what a Transport actually sends.
type Outbound struct {
	Model    string
	Prompt   string
	Decoding Decoding
}

// #endregion request

// #region interfaces

// Transport performs a single network round trip with the given key.
// Rate-limit failures must wrap ErrRateLimited.
type Transport interface {
	Complete(ctx context.Context, apiKey string, out Outbound) (string, error)
}

// KeySource is the part of the credential rotator the caller needs.
type KeySource interface {
	CurrentKey() (credentials.Key, error)
	MarkRateLimited(key credentials.Key)
}

// Completer is what the generator and evaluator depend on.
type Completer interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// CallEvent describes one attempt, successful or not.
type CallEvent struct {
	Purpose     Purpose
	Model       string
	KeyIndex    int
	Attempt     int
	Outcome     Outcome
	Err         string
	Fingerprint string
	Latency     time.Duration
}

// Outcome classifies an attempt.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// Observer receives every attempt. Implementations must not block for long.
type Observer interface {
	ObserveCall(ev CallEvent)
}

// #endregion interfaces
