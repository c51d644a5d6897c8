package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
)

// #region fakes

type step struct {
	text string
	err  error
}

type sentCall struct {
	key         string
	out         Outbound
	hasDeadline bool
}

// scriptedTransport replays steps in order; extra calls succeed with "ok".
type scriptedTransport struct {
	mu    sync.Mutex
	steps []step
	sent  []sentCall
}

func (s *scriptedTransport) Complete(ctx context.Context, apiKey string, out Outbound) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	s.sent = append(s.sent, sentCall{key: apiKey, out: out, hasDeadline: hasDeadline})
	if len(s.steps) == 0 {
		return "ok", nil
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.text, st.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []CallEvent
}

func (r *recordingObserver) ObserveCall(ev CallEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

var rateLimited = fmt.Errorf("%w: 429", ErrRateLimited)
var transient = errors.New("connection reset by peer")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0
	return cfg
}

func newTestCaller(t *testing.T, tr Transport, keys []string, opts ...Option) (*Caller, *[]time.Duration) {
	t.Helper()
	rot, err := credentials.New(keys)
	require.NoError(t, err)
	var waits []time.Duration
	opts = append(opts, WithSleep(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))
	return NewCaller(tr, rot, testConfig(), nil, opts...), &waits
}

// #endregion fakes

func TestCall_Success(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{text: "  A \n"}}}
	c, _ := newTestCaller(t, tr, []string{"k1"})

	resp, err := c.Call(context.Background(), Request{Purpose: PurposeEvaluate, Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "  A \n", resp.Text, "response text is returned untrimmed")
	assert.Equal(t, 1, resp.Attempts)
	require.Len(t, tr.sent, 1)
	assert.True(t, tr.sent[0].hasDeadline, "every attempt carries the call timeout")
}

func TestCall_TwoKeysRotationScenario(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{text: "first"},      // call 1 on k1
		{err: rateLimited},   // call 2 on k1
		{text: "second"},     // call 2 retried on k2
		{text: "third"},      // call 3 on k2
		{err: rateLimited},   // call 4 on k2, nothing left
	}}
	c, waits := newTestCaller(t, tr, []string{"k1", "k2"})
	ctx := context.Background()
	req := Request{Purpose: PurposeGenerate, Model: "m", Prompt: "p"}

	r1, err := c.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, r1.KeyIndex)

	r2, err := c.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)
	assert.Equal(t, 1, r2.KeyIndex)

	r3, err := c.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, r3.KeyIndex)

	_, err = c.Call(ctx, req)
	assert.ErrorIs(t, err, credentials.ErrCredentialsExhausted)

	var keys []string
	for _, s := range tr.sent {
		keys = append(keys, s.key)
	}
	assert.Equal(t, []string{"k1", "k1", "k2", "k2", "k2"}, keys)
	assert.Empty(t, *waits, "rotation does not back off")
}

func TestCall_TransientRetriesThenExhausted(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{err: transient}, {err: transient}, {err: transient}, {text: "never"}}}
	c, waits := newTestCaller(t, tr, []string{"k1"})

	_, err := c.Call(context.Background(), Request{Model: "m", Prompt: "p"})
	require.ErrorIs(t, err, ErrCallExhausted)
	assert.Len(t, tr.sent, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestCall_TransientThenSuccess(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{err: transient}, {text: "B"}}}
	c, waits := newTestCaller(t, tr, []string{"k1"})

	resp, err := c.Call(context.Background(), Request{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Text)
	assert.Equal(t, 2, resp.Attempts)
	assert.Len(t, *waits, 1)
}

func TestCall_RateLimitDoesNotConsumeRetryBudget(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{err: transient},
		{err: transient},
		{err: rateLimited},
		{text: "done"},
	}}
	c, _ := newTestCaller(t, tr, []string{"k1", "k2"})

	resp, err := c.Call(context.Background(), Request{Model: "m", Prompt: "p"})
	require.NoError(t, err, "two transient failures plus a rotation stay within budget")
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 1, resp.KeyIndex)
	assert.Equal(t, 4, resp.Attempts)
}

func TestCall_ConsistentDecodingOnEveryRequest(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{err: transient}, {}, {err: rateLimited}, {}, {}}}
	obs := &recordingObserver{}
	c, _ := newTestCaller(t, tr, []string{"k1", "k2"}, WithObserver(obs))
	ctx := context.Background()

	_, err := c.Call(ctx, Request{Purpose: PurposeGenerate, Model: "gen", Prompt: "x"})
	require.NoError(t, err)
	_, err = c.Call(ctx, Request{Purpose: PurposeEvaluate, Model: "eval-a", Prompt: "y"})
	require.NoError(t, err)
	_, err = c.Call(ctx, Request{Purpose: PurposeEvaluate, Model: "eval-b", Prompt: "z"})
	require.NoError(t, err)

	require.NotEmpty(t, tr.sent)
	want := c.Decoding()
	for i, s := range tr.sent {
		assert.Equal(t, want, s.out.Decoding, "request %d", i)
	}
	for _, ev := range obs.events {
		assert.Equal(t, want.Fingerprint(), ev.Fingerprint)
	}
	assert.Len(t, obs.events, len(tr.sent))
}

func TestCall_ObserverOutcomes(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{err: rateLimited}, {err: transient}, {text: "A"}}}
	obs := &recordingObserver{}
	c, _ := newTestCaller(t, tr, []string{"k1", "k2"}, WithObserver(obs))

	_, err := c.Call(context.Background(), Request{Purpose: PurposeEvaluate, Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.Len(t, obs.events, 3)
	assert.Equal(t, OutcomeRateLimited, obs.events[0].Outcome)
	assert.Equal(t, 0, obs.events[0].KeyIndex)
	assert.Equal(t, OutcomeError, obs.events[1].Outcome)
	assert.Equal(t, OutcomeOK, obs.events[2].Outcome)
	assert.Equal(t, 3, obs.events[2].Attempt)
}

func TestCall_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &scriptedTransport{}
	c, _ := newTestCaller(t, tr, []string{"k1"})

	_, err := c.Call(ctx, Request{Model: "m", Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoding_Fingerprint(t *testing.T) {
	a := Decoding{Temperature: 0.1, TopP: 1, MaxTokens: 300}
	b := a
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.MaxTokens = 301
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 12)
}
