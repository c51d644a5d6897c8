package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
)

// #region config

// Config is the fixed call configuration of a run.
type Config struct {
	Timeout           time.Duration
	Retry             RetryPolicy
	RequestsPerSecond float64
	Decoding          Decoding
}

// DefaultConfig: 30s timeout, 3 attempts, 10 requests per second.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BackoffBase: time.Second,
			BackoffMax:  8 * time.Second,
		},
		RequestsPerSecond: 10,
		Decoding:          Decoding{Temperature: 0.1, TopP: 1.0, MaxTokens: 300},
	}
}

// #endregion config

// #region caller

// Caller wraps a Transport with timeout, pacing, retry and key rotation.
type Caller struct {
	transport Transport
	keys      KeySource
	cfg       Config
	limiter   *rate.Limiter
	observer  Observer
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Caller.
type Option func(*Caller)

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(c *Caller) { c.observer = o }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Caller) { c.sleep = fn }
}

// NewCaller creates a caller. keys is normally a *credentials.Rotator scoped
// to the current run.
func NewCaller(t Transport, keys KeySource, cfg Config, logger *zap.Logger, opts ...Option) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Caller{
		transport: t,
		keys:      keys,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.Named("llm"),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decoding returns the configuration attached to every request.
func (c *Caller) Decoding() Decoding {
	return c.cfg.Decoding
}

// Call runs req through the retry machine. It returns
// credentials.ErrCredentialsExhausted when no key is left and
// ErrCallExhausted when transient retries run out.
func (c *Caller) Call(ctx context.Context, req Request) (Response, error) {
	out := Outbound{Model: req.Model, Prompt: req.Prompt, Decoding: c.cfg.Decoding}
	fp := c.cfg.Decoding.Fingerprint()

	var (
		state    = stateAttempting
		key      credentials.Key
		failures int
		attempts int
		lastErr  error
	)

	for {
		switch state {
		case stateAttempting:
			if err := ctx.Err(); err != nil {
				return Response{}, err
			}
			k, err := c.keys.CurrentKey()
			if err != nil {
				return Response{}, err
			}
			key = k
			if err := c.limiter.Wait(ctx); err != nil {
				return Response{}, fmt.Errorf("pace request: %w", err)
			}

			attempts++
			start := time.Now()
			attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			text, err := c.transport.Complete(attemptCtx, key.Value, out)
			cancel()
			latency := time.Since(start)

			if err == nil {
				c.observe(req, key, attempts, OutcomeOK, "", fp, latency)
				return Response{Text: text, KeyIndex: key.Index, Attempts: attempts}, nil
			}
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}

			lastErr = err
			limited := errors.Is(err, ErrRateLimited)
			if limited {
				c.observe(req, key, attempts, OutcomeRateLimited, err.Error(), fp, latency)
			} else {
				failures++
				c.observe(req, key, attempts, OutcomeError, err.Error(), fp, latency)
			}
			state = c.cfg.Retry.next(limited, failures)

		case stateRateLimited:
			c.logger.Warn("rate limited, rotating key",
				zap.Int("key_index", key.Index),
				zap.String("model", req.Model))
			c.keys.MarkRateLimited(key)
			state = stateAttempting

		case stateRetrying:
			wait := c.cfg.Retry.Backoff(failures)
			c.logger.Info("transient failure, backing off",
				zap.Int("failures", failures),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			if err := c.sleep(ctx, wait); err != nil {
				return Response{}, err
			}
			state = stateAttempting

		case stateExhausted:
			return Response{}, fmt.Errorf("%w after %d attempts: %v", ErrCallExhausted, failures, lastErr)
		}
	}
}

func (c *Caller) observe(req Request, key credentials.Key, attempt int, outcome Outcome, errText, fp string, latency time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveCall(CallEvent{
		Purpose:     req.Purpose,
		Model:       req.Model,
		KeyIndex:    key.Index,
		Attempt:     attempt,
		Outcome:     outcome,
		Err:         errText,
		Fingerprint: fp,
		Latency:     latency,
	})
}

// #endregion caller

// #region helpers

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion helpers
