package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
)

// #region transport

// Transport serves completions from a Fixture instead of the network. It
// lets the whole pipeline run offline, including key rotation: keys listed
// in RateLimitedKeys always answer with a rate limit.
type Transport struct {
	fixture *Fixture
	limited map[string]bool

	mu       sync.Mutex
	requests []llm.Outbound
}

// NewTransport wraps f.
func NewTransport(f *Fixture) *Transport {
	limited := make(map[string]bool, len(f.RateLimitedKeys))
	for _, k := range f.RateLimitedKeys {
		limited[k] = true
	}
	return &Transport{fixture: f, limited: limited}
}

// Complete implements llm.Transport.
func (t *Transport) Complete(ctx context.Context, apiKey string, out llm.Outbound) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	t.requests = append(t.requests, out)
	t.mu.Unlock()

	if t.limited[apiKey] {
		return "", fmt.Errorf("%w: fixture key", llm.ErrRateLimited)
	}
	r, ok := t.fixture.Match(out.Model, out.Prompt)
	if !ok {
		return t.fixture.Default, nil
	}
	if r.Error != "" {
		return "", errors.New(r.Error)
	}
	return r.Text, nil
}

// Requests returns every outbound request seen so far.
func (t *Transport) Requests() []llm.Outbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]llm.Outbound(nil), t.requests...)
}

// #endregion transport
