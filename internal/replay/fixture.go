package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// #region fixture-types

// Fixture is the top-level JSON structure for an offline response fixture.
type Fixture struct {
	Description     string            `json:"description"`
	Responses       []FixtureResponse `json:"responses"`
	Default         string            `json:"default"`
	RateLimitedKeys []string          `json:"rate_limited_keys,omitempty"`
}

// FixtureResponse answers every prompt that contains all of Contains,
// optionally only for one model.
type FixtureResponse struct {
	Model    string   `json:"model,omitempty"`
	Contains []string `json:"contains"`
	Text     string   `json:"text"`
	Error    string   `json:"error,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, r := range f.Responses {
		if len(r.Contains) == 0 {
			return nil, fmt.Errorf("fixture %s: response %d has no contains patterns", path, i)
		}
	}
	return &f, nil
}

// Match returns the first response whose patterns all occur in prompt.
func (f *Fixture) Match(model, prompt string) (FixtureResponse, bool) {
	for _, r := range f.Responses {
		if r.Model != "" && r.Model != model {
			continue
		}
		if containsAll(prompt, r.Contains) {
			return r, true
		}
	}
	return FixtureResponse{}, false
}

// #endregion fixture-loader

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
