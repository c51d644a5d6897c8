package llm

import "time"

// #region states

// callState is a node of the per-request retry machine.
type callState int

const (
	stateAttempting callState = iota
	stateRateLimited
	stateRetrying
	stateExhausted
)

func (s callState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateRateLimited:
		return "rate_limited"
	case stateRetrying:
		return "retrying"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// #endregion states

// #region policy

// RetryPolicy bounds transient retries. Rate-limit rotations are not counted.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BackoffBase time.Duration // wait after the first failure
	BackoffMax  time.Duration // cap for the exponential schedule
}

// next returns the state following a failed attempt. failures counts
// transient failures so far, including the one just observed.
func (p RetryPolicy) next(rateLimited bool, failures int) callState {
	if rateLimited {
		return stateRateLimited
	}
	if failures >= p.MaxAttempts {
		return stateExhausted
	}
	return stateRetrying
}

// Backoff returns the wait before retry number n (1-based): base·2^(n-1),
// capped at BackoffMax.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BackoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

// #endregion policy
