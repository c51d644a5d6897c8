package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/eval"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

// seedDataDir writes a four-pair dataset, fully evaluated by one model,
// and a config pointing at it.
func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")

	pairs, _, err := store.OpenPairs(filepath.Join(data, "minimal_pairs.csv"), nil)
	require.NoError(t, err)
	results, _, err := store.OpenResults(filepath.Join(data, "evaluation_results.csv"), nil)
	require.NoError(t, err)
	for i, p := range bench.Phenomena {
		pair := bench.MinimalPair{
			ID:            bench.PairID(p, 1),
			Phenomenon:    p,
			Grammatical:   fmt.Sprintf("good sentence %d", i),
			Ungrammatical: fmt.Sprintf("bad sentence %d", i),
			Target:        "good",
			ErrorType:     "test",
		}
		_, err := pairs.Append(pair)
		require.NoError(t, err)
		_, err = results.Append(bench.EvaluationRecord{
			Model: "m1", PairID: pair.ID, Order: bench.OrderAGram,
			Choice: bench.ChoiceA, Response: "A", Correct: true,
		})
		require.NoError(t, err)
	}
	require.NoError(t, pairs.Close())
	require.NoError(t, results.Close())

	cfgPath := filepath.Join(dir, "norsebench.yaml")
	body := fmt.Sprintf("data_dir: %s\nkey_env: NORSEBENCH_TEST_UNSET_KEY\ndataset:\n  size: 4\neval:\n  models: [m1]\n", data)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMetricsCommand(t *testing.T) {
	cfgPath := seedDataDir(t)

	out, err := execute(t, "metrics", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "1.0000")
	assert.Contains(t, out, "1.0000 (1/1)")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "data", "metrics.csv"))
}

func TestAnalyzeCommand(t *testing.T) {
	cfgPath := seedDataDir(t)

	out, err := execute(t, "analyze", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Choice bias and order effect:")
	assert.Contains(t, out, "to A", "four A answers out of four")
	assert.Contains(t, out, "test")
	assert.Contains(t, out, "1.0000     4/4")
}

func TestAnalyzeCommand_Incomplete(t *testing.T) {
	cfgPath := seedDataDir(t)
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte(fmt.Sprintf("data_dir: %s\ndataset:\n  size: 4\neval:\n  models: [m1, m2]\n", filepath.Join(filepath.Dir(cfgPath), "data"))), 0o644))

	_, err := execute(t, "analyze", "--config", cfgPath)
	require.ErrorIs(t, err, eval.ErrIncompleteEvaluation)
}

func TestRule(t *testing.T) {
	assert.Equal(t, "----  --  -", rule(4, 2, 1))
}

func TestVerifyCommand(t *testing.T) {
	cfgPath := seedDataDir(t)

	out, err := execute(t, "verify", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "id_unique")
	assert.Contains(t, out, "balance_UMLAUT")
}

func TestEvaluateCommand_NoKeys(t *testing.T) {
	cfgPath := seedDataDir(t)

	_, err := execute(t, "evaluate", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NORSEBENCH_TEST_UNSET_KEY")
}

func TestInspectCommand_Empty(t *testing.T) {
	cfgPath := seedDataDir(t)

	out, err := execute(t, "inspect", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestInspectCommand_FreshDataDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "norsebench.yaml")
	body := fmt.Sprintf("data_dir: %s\ndataset:\n  size: 4\n", filepath.Join(dir, "not", "yet", "created"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	out, err := execute(t, "inspect", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestOfflinePipeline(t *testing.T) {
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "saga.txt"),
		[]byte("Þeir sá lǫnd fyrir handan. Hann gaf hǫnd sína þar heima. Þeir finnask þar um vetr.\n"), 0o644))

	fixture, err := filepath.Abs(filepath.Join("..", "..", "internal", "replay", "testdata", "offline_run.json"))
	require.NoError(t, err)

	data := filepath.Join(dir, "data")
	cfgPath := filepath.Join(dir, "norsebench.yaml")
	body := fmt.Sprintf(`data_dir: %s
corpus_dir: %s
replay_fixture: %s
key_env: NORSEBENCH_TEST_E2E_KEY
dataset:
  size: 8
  model: gen-model
eval:
  models: [strong-model, weak-model]
api:
  backoff_base: 1ms
  backoff_max: 1ms
  requests_per_second: 0
`, data, corpusDir, fixture)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	t.Setenv("NORSEBENCH_TEST_E2E_KEY_1", "key-a")
	t.Setenv("NORSEBENCH_TEST_E2E_KEY_2", "key-b")

	out, err := execute(t, "generate", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "failed 1")

	pairs, _, err := store.OpenPairs(filepath.Join(data, "minimal_pairs.csv"), nil)
	require.NoError(t, err)
	var ids []string
	for _, p := range pairs.Pairs() {
		ids = append(ids, p.ID)
	}
	require.NoError(t, pairs.Close())
	assert.Equal(t, []string{"ON_UMLAUT_001", "ON_MIDDLE_VOICE_001"}, ids)

	out, err = execute(t, "evaluate", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "coverage: 4 of 4")

	out, err = execute(t, "metrics", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "strong-model")
	assert.Contains(t, out, "0.5000")

	out, err = execute(t, "analyze", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "weak-model")
	assert.Contains(t, out, "Accuracy by error type:")

	_, err = execute(t, "verify", "--config", cfgPath)
	assert.Error(t, err, "two of four phenomena are empty")

	out, err = execute(t, "inspect", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "generate")
	assert.Contains(t, out, "evaluate")
	assert.NotContains(t, out, "MIXED")
}
