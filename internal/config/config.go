package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
)

// #region types

// Config is the full run configuration. API keys are never part of it;
// they are read from the environment variables named by KeyEnv.
type Config struct {
	DataDir   string        `yaml:"data_dir"`
	CorpusDir string        `yaml:"corpus_dir"`
	BaseURL   string        `yaml:"base_url"`
	KeyEnv    string        `yaml:"key_env"`
	Dataset   DatasetConfig `yaml:"dataset"`
	Eval      EvalConfig    `yaml:"eval"`
	API       APIConfig     `yaml:"api"`

	// ReplayFixture, when set, serves responses from a JSON fixture
	// instead of the network.
	ReplayFixture string `yaml:"replay_fixture"`
}

// DatasetConfig controls generation.
type DatasetConfig struct {
	Size    int                      `yaml:"size"`
	Model   string                   `yaml:"model"`
	Targets map[bench.Phenomenon]int `yaml:"targets"`
}

// EvalConfig controls evaluation.
type EvalConfig struct {
	Models  []string `yaml:"models"`
	Seed    int64    `yaml:"seed"`
	Workers int      `yaml:"workers"`
}

// APIConfig is shared by generation and evaluation.
type APIConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Decoding          llm.Decoding  `yaml:"decoding"`
}

// #endregion types

// #region defaults

// DefaultConfig returns the stock configuration: a 500-pair dataset split
// evenly, and the four-model roster.
func DefaultConfig() Config {
	call := llm.DefaultConfig()
	return Config{
		DataDir:   "data",
		CorpusDir: "corpus",
		BaseURL:   llm.DefaultBaseURL,
		KeyEnv:    "GROQ_API_KEY",
		Dataset: DatasetConfig{
			Size:  500,
			Model: "openai/gpt-oss-120b",
		},
		Eval: EvalConfig{
			Models: []string{
				"openai/gpt-oss-120b",
				"openai/gpt-oss-20b",
				"llama-3.3-70b-versatile",
				"llama-3.1-8b-instant",
			},
			Seed:    1,
			Workers: 1,
		},
		API: APIConfig{
			Timeout:           call.Timeout,
			MaxAttempts:       call.Retry.MaxAttempts,
			BackoffBase:       call.Retry.BackoffBase,
			BackoffMax:        call.Retry.BackoffMax,
			RequestsPerSecond: call.RequestsPerSecond,
			Decoding:          call.Decoding,
		},
	}
}

// EvenTargets splits size across the phenomena; any remainder goes to the
// first phenomena in canonical order.
func EvenTargets(size int) map[bench.Phenomenon]int {
	n := len(bench.Phenomena)
	out := make(map[bench.Phenomenon]int, n)
	for i, p := range bench.Phenomena {
		out[p] = size / n
		if i < size%n {
			out[p]++
		}
	}
	return out
}

// #endregion defaults

// #region load

// Load reads an optional YAML file over the defaults, applies environment
// overrides and validates the result. An empty path means defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if len(cfg.Dataset.Targets) == 0 {
		cfg.Dataset.Targets = EvenTargets(cfg.Dataset.Size)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides reads NORSEBENCH_* variables. Malformed numbers are
// errors rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("NORSEBENCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("NORSEBENCH_CORPUS_DIR"); v != "" {
		c.CorpusDir = v
	}
	if v := os.Getenv("NORSEBENCH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("NORSEBENCH_REPLAY_FIXTURE"); v != "" {
		c.ReplayFixture = v
	}
	if v := os.Getenv("NORSEBENCH_KEY_ENV"); v != "" {
		c.KeyEnv = v
	}
	if v := os.Getenv("NORSEBENCH_GENERATION_MODEL"); v != "" {
		c.Dataset.Model = v
	}
	if v := os.Getenv("NORSEBENCH_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		c.Eval.Models = models
	}
	if v := os.Getenv("NORSEBENCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NORSEBENCH_WORKERS: %w", err)
		}
		c.Eval.Workers = n
	}
	if v := os.Getenv("NORSEBENCH_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NORSEBENCH_SEED: %w", err)
		}
		c.Eval.Seed = n
	}
	if v := os.Getenv("NORSEBENCH_TIMEOUT"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NORSEBENCH_TIMEOUT: %w", err)
		}
		c.API.Timeout = time.Duration(sec) * time.Second
	}
	if v := os.Getenv("NORSEBENCH_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("NORSEBENCH_RPS: %w", err)
		}
		c.API.RequestsPerSecond = f
	}
	return nil
}

// #endregion load

// #region validate

// BalanceTolerance bounds each target's distance from the even split.
const BalanceTolerance = 0.10

// maxPerPhenomenon keeps ids within three digits.
const maxPerPhenomenon = 999

// Validate checks the configuration before any API call is made.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.DataDir == "" {
		fail("data_dir is empty")
	}
	if c.KeyEnv == "" {
		fail("key_env is empty")
	}

	d := c.Dataset
	if d.Size <= 0 {
		fail("dataset.size must be positive, got %d", d.Size)
	}
	if d.Model == "" {
		fail("dataset.model is empty")
	}
	if len(d.Targets) != len(bench.Phenomena) {
		fail("dataset.targets must name exactly %d phenomena, got %d", len(bench.Phenomena), len(d.Targets))
	}
	sum := 0
	even := float64(d.Size) / float64(len(bench.Phenomena))
	for p, n := range d.Targets {
		if !p.Valid() {
			fail("dataset.targets: unknown phenomenon %q", p)
			continue
		}
		sum += n
		if n > maxPerPhenomenon {
			fail("dataset.targets.%s: %d exceeds %d", p, n, maxPerPhenomenon)
		}
		if math.Abs(float64(n)-even) > even*BalanceTolerance {
			fail("dataset.targets.%s: %d is more than %.0f%% from the even split %.2f", p, n, BalanceTolerance*100, even)
		}
	}
	if sum != d.Size {
		fail("dataset.targets sum to %d, want dataset.size %d", sum, d.Size)
	}

	if len(c.Eval.Models) == 0 {
		fail("eval.models is empty")
	}
	seen := map[string]bool{}
	for _, m := range c.Eval.Models {
		if m == "" {
			fail("eval.models contains an empty name")
		}
		if seen[m] {
			fail("eval.models lists %q twice", m)
		}
		seen[m] = true
	}
	if c.Eval.Workers < 1 {
		fail("eval.workers must be at least 1, got %d", c.Eval.Workers)
	}

	a := c.API
	if a.Timeout <= 0 {
		fail("api.timeout must be positive")
	}
	if a.MaxAttempts < 1 {
		fail("api.max_attempts must be at least 1, got %d", a.MaxAttempts)
	}
	if a.BackoffBase < 0 || a.BackoffMax < a.BackoffBase {
		fail("api backoff must satisfy 0 <= backoff_base <= backoff_max")
	}
	if a.RequestsPerSecond < 0 {
		fail("api.requests_per_second must not be negative")
	}
	if a.Decoding.Temperature < 0 || a.Decoding.Temperature > 2 {
		fail("api.decoding.temperature %.2f outside [0, 2]", a.Decoding.Temperature)
	}
	if a.Decoding.TopP <= 0 || a.Decoding.TopP > 1 {
		fail("api.decoding.top_p %.2f outside (0, 1]", a.Decoding.TopP)
	}
	if a.Decoding.MaxTokens <= 0 {
		fail("api.decoding.max_tokens must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// #endregion validate

// #region derived

// LLM returns the caller configuration.
func (c Config) LLM() llm.Config {
	return llm.Config{
		Timeout: c.API.Timeout,
		Retry: llm.RetryPolicy{
			MaxAttempts: c.API.MaxAttempts,
			BackoffBase: c.API.BackoffBase,
			BackoffMax:  c.API.BackoffMax,
		},
		RequestsPerSecond: c.API.RequestsPerSecond,
		Decoding:          c.API.Decoding,
	}
}

// PairsPath is the minimal pairs table.
func (c Config) PairsPath() string { return filepath.Join(c.DataDir, "minimal_pairs.csv") }

// ResultsPath is the evaluation results table.
func (c Config) ResultsPath() string { return filepath.Join(c.DataDir, "evaluation_results.csv") }

// MetricsPath is the derived metrics table.
func (c Config) MetricsPath() string { return filepath.Join(c.DataDir, "metrics.csv") }

// LedgerPath is the SQLite run ledger.
func (c Config) LedgerPath() string { return filepath.Join(c.DataDir, "ledger.db") }

// #endregion derived
