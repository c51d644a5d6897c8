package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// #region errors

var (
	// ErrConfiguration is returned when no usable keys are supplied.
	ErrConfiguration = errors.New("credentials: no API keys configured")
	// ErrCredentialsExhausted is returned once every key has been rate limited.
	ErrCredentialsExhausted = errors.New("credentials: all API keys exhausted")
)

// #endregion errors

// #region rotator

// Key is an API key together with its position in the configured list.
// Index is safe to log; Value is not.
type Key struct {
	Index int
	Value string
}

// Rotator holds the ordered key list for one run. Exhausted keys are never
// reused within the process; rotation never wraps.
type Rotator struct {
	mu        sync.Mutex
	keys      []string
	exhausted []bool
	current   int
}

// New creates a rotator starting at the first key.
func New(keys []string) (*Rotator, error) {
	if len(keys) == 0 {
		return nil, ErrConfiguration
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Rotator{
		keys:      cp,
		exhausted: make([]bool, len(keys)),
	}, nil
}

// Len returns the number of configured keys.
func (r *Rotator) Len() int {
	return len(r.keys)
}

// CurrentKey returns the active key or ErrCredentialsExhausted.
func (r *Rotator) CurrentKey() (Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current >= len(r.keys) {
		return Key{}, ErrCredentialsExhausted
	}
	return Key{Index: r.current, Value: r.keys[r.current]}, nil
}

// MarkRateLimited flags key as exhausted and moves the active index to the
// next non-exhausted key in list order. Marking a key that is no longer
// active only records the flag.
func (r *Rotator) MarkRateLimited(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.Index < 0 || key.Index >= len(r.keys) {
		return
	}
	r.exhausted[key.Index] = true
	for r.current < len(r.keys) && r.exhausted[r.current] {
		r.current++
	}
}

// Remaining returns how many keys are still usable.
func (r *Rotator) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ex := range r.exhausted {
		if !ex {
			n++
		}
	}
	return n
}

// #endregion rotator

// #region env

// FromEnv collects keys from PREFIX, then PREFIX_1, PREFIX_2, ... up to the
// first missing index. Whitespace and surrounding quotes are stripped and
// duplicates dropped, keeping first occurrence order.
func FromEnv(prefix string) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)
	add := func(v string) {
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		keys = append(keys, v)
	}

	add(os.Getenv(prefix))
	for i := 1; ; i++ {
		v, ok := os.LookupEnv(fmt.Sprintf("%s_%d", prefix, i))
		if !ok {
			break
		}
		add(v)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: set %s or %s_1..N", ErrConfiguration, prefix, prefix)
	}
	return keys, nil
}

// #endregion env
