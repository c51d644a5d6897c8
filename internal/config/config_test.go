package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "norsebench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	want := map[bench.Phenomenon]int{
		bench.QuirkyCase: 125, bench.Adjective: 125, bench.Umlaut: 125, bench.MiddleVoice: 125,
	}
	if diff := cmp.Diff(want, cfg.Dataset.Targets); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, cfg.Eval.Models, 4)
	assert.Equal(t, llm.Decoding{Temperature: 0.1, TopP: 1.0, MaxTokens: 300}, cfg.API.Decoding)
	assert.Equal(t, 30*time.Second, cfg.LLM().Timeout)
	assert.Equal(t, 3, cfg.LLM().Retry.MaxAttempts)
	assert.Equal(t, filepath.Join("data", "minimal_pairs.csv"), cfg.PairsPath())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
data_dir: /tmp/bench
dataset:
  size: 40
  targets:
    QUIRKY_CASE: 10
    ADJECTIVE: 11
    UMLAUT: 9
    MIDDLE_VOICE: 10
eval:
  models: [m1, m2]
  workers: 4
api:
  timeout: 12s
  decoding:
    temperature: 0
    top_p: 0.9
    max_tokens: 16
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bench", cfg.DataDir)
	assert.Equal(t, 11, cfg.Dataset.Targets[bench.Adjective])
	assert.Equal(t, []string{"m1", "m2"}, cfg.Eval.Models)
	assert.Equal(t, 4, cfg.Eval.Workers)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, llm.Decoding{Temperature: 0, TopP: 0.9, MaxTokens: 16}, cfg.API.Decoding)
	assert.Equal(t, "openai/gpt-oss-120b", cfg.Dataset.Model, "unset fields keep defaults")
}

func TestLoad_SizeWithoutTargetsSplitsEvenly(t *testing.T) {
	cfg, err := Load(writeYAML(t, "dataset:\n  size: 42\n"))
	require.NoError(t, err)
	assert.Equal(t, map[bench.Phenomenon]int{
		bench.QuirkyCase: 11, bench.Adjective: 11, bench.Umlaut: 10, bench.MiddleVoice: 10,
	}, cfg.Dataset.Targets)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NORSEBENCH_DATA_DIR", "/srv/norse")
	t.Setenv("NORSEBENCH_MODELS", "a, b ,c")
	t.Setenv("NORSEBENCH_WORKERS", "3")
	t.Setenv("NORSEBENCH_TIMEOUT", "5")
	t.Setenv("NORSEBENCH_SEED", "99")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/norse", cfg.DataDir)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Eval.Models)
	assert.Equal(t, 3, cfg.Eval.Workers)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, int64(99), cfg.Eval.Seed)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("NORSEBENCH_WORKERS", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "NORSEBENCH_WORKERS")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		msg    string
	}{
		"targets do not sum": {func(c *Config) { c.Dataset.Targets[bench.Umlaut] = 124 }, "sum to 499"},
		"unbalanced": {func(c *Config) {
			c.Dataset.Targets[bench.Umlaut] = 150
			c.Dataset.Targets[bench.MiddleVoice] = 100
		}, "more than 10%"},
		"missing phenomenon": {func(c *Config) { delete(c.Dataset.Targets, bench.Umlaut) }, "exactly 4 phenomena"},
		"unknown phenomenon": {func(c *Config) {
			delete(c.Dataset.Targets, bench.Umlaut)
			c.Dataset.Targets["GENDER"] = 125
		}, "unknown phenomenon"},
		"empty roster":       {func(c *Config) { c.Eval.Models = nil }, "eval.models is empty"},
		"duplicate model":    {func(c *Config) { c.Eval.Models = []string{"a", "a"} }, "twice"},
		"zero attempts":      {func(c *Config) { c.API.MaxAttempts = 0 }, "max_attempts"},
		"zero timeout":       {func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		"bad top_p":          {func(c *Config) { c.API.Decoding.TopP = 0 }, "top_p"},
		"no workers":         {func(c *Config) { c.Eval.Workers = 0 }, "eval.workers"},
		"no generator model": {func(c *Config) { c.Dataset.Model = "" }, "dataset.model"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Dataset.Targets = EvenTargets(cfg.Dataset.Size)
			require.NoError(t, cfg.Validate())
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.msg)
		})
	}
}

func TestEvenTargets_SumsToSize(t *testing.T) {
	for _, size := range []int{4, 7, 100, 501} {
		sum := 0
		for _, n := range EvenTargets(size) {
			sum += n
		}
		assert.Equal(t, size, sum)
	}
}
