package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// #region helpers

func umlautPair(n int) bench.MinimalPair {
	return bench.MinimalPair{
		ID:            bench.PairID(bench.Umlaut, n),
		Phenomenon:    bench.Umlaut,
		Grammatical:   fmt.Sprintf("Þeir sá lǫnd %d.", n),
		Ungrammatical: fmt.Sprintf("Þeir sá land %d.", n),
		Target:        "lǫnd",
		ErrorType:     "umlaut_removed",
	}
}

func openPairs(t *testing.T, path string) (*PairStore, LoadReport) {
	t.Helper()
	s, report, err := OpenPairs(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, report
}

// #endregion helpers

// #region pair-store-tests

func TestPairStore_AppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	s, report := openPairs(t, path)
	assert.Equal(t, 0, report.Recovered)

	for i := 1; i <= 3; i++ {
		ok, err := s.Append(umlautPair(i))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	reopened, report := openPairs(t, path)
	assert.Equal(t, 3, report.Recovered)
	assert.Equal(t, 0, report.Discarded)
	assert.Equal(t, s.Pairs(), reopened.Pairs())
}

func TestPairStore_DurableBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	s, _ := openPairs(t, path)
	_, err := s.Append(umlautPair(1))
	require.NoError(t, err)

	// a second process opening the file sees the row without Close
	other, report := openPairs(t, path)
	assert.Equal(t, 1, report.Recovered)
	assert.True(t, other.Has("ON_UMLAUT_001"))
}

func TestPairStore_DuplicateIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	s, _ := openPairs(t, path)

	ok, err := s.Append(umlautPair(1))
	require.NoError(t, err)
	require.True(t, ok)

	again := umlautPair(1)
	again.Grammatical = "something else entirely"
	ok, err = s.Append(again)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	reopened, _ := openPairs(t, path)
	ok, err = reopened.Append(umlautPair(1))
	require.NoError(t, err)
	assert.False(t, ok, "dedupe survives restart")
	assert.Equal(t, 1, reopened.Len())
}

func TestPairStore_SchemaErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	s, _ := openPairs(t, path)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := umlautPair(1)
	bad.Target = "  "
	_, err = s.Append(bad)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "target", se.Field)

	bad = umlautPair(1)
	bad.ID = "ON_UMLAUT_1"
	_, err = s.Append(bad)
	require.True(t, errors.As(err, &se))

	bad = umlautPair(1)
	bad.Phenomenon = bench.Adjective
	_, err = s.Append(bad)
	require.True(t, errors.As(err, &se), "id/phenomenon mismatch")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, s.Len())
}

func TestPairStore_CorruptedTailScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	s, _ := openPairs(t, path)
	for i := 1; i <= 4; i++ {
		_, err := s.Append(umlautPair(i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`ON_UMLAUT_005,UMLAUT,"Þeir sá lǫ`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, report := openPairs(t, path)
	assert.Equal(t, 4, report.Recovered)
	assert.Equal(t, 1, report.Discarded)
	assert.Equal(t, "ON_UMLAUT_004", reopened.Pairs()[3].ID)

	discarded, err := os.ReadFile(path + ".discarded")
	require.NoError(t, err)
	assert.Contains(t, string(discarded), "ON_UMLAUT_005")

	// the tail is gone, so a fresh append lands on a clean line
	ok, err := reopened.Append(umlautPair(5))
	require.NoError(t, err)
	require.True(t, ok)

	final, report := openPairs(t, path)
	assert.Equal(t, 5, report.Recovered)
	assert.Equal(t, 0, report.Discarded)
	assert.True(t, final.Has("ON_UMLAUT_005"))
}

func TestPairStore_TornRowWithoutNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	content := strings.Join(PairSchema.Columns, ",") + "\n" +
		"ON_UMLAUT_001,UMLAUT,Þeir sá lǫnd.,Þeir sá land.,lǫnd,umlaut_removed\n" +
		"ON_UMLAUT_002,UMLAUT,Þeir sá lǫnd.,Þeir sá land.,lǫnd,umlaut_rem"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, report := openPairs(t, path)
	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 1, report.Discarded)
}

func TestPairStore_InvalidRowStopsRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	content := strings.Join(PairSchema.Columns, ",") + "\n" +
		"ON_UMLAUT_001,UMLAUT,Þeir sá lǫnd.,Þeir sá land.,lǫnd,umlaut_removed\n" +
		"ON_UMLAUT_002,UMLAUT,,Þeir sá land.,lǫnd,umlaut_removed\n" +
		"ON_UMLAUT_003,UMLAUT,Þeir sá lǫnd.,Þeir sá land.,lǫnd,umlaut_removed\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, report := openPairs(t, path)
	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 2, report.Discarded)
	assert.False(t, s.Has("ON_UMLAUT_003"))
}

func TestPairStore_HeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,foo\nx,y\n"), 0o644))

	_, _, err := OpenPairs(path, nil)
	var se *SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestPairStore_ToleratesBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal_pairs.csv")
	content := utf8BOM + strings.Join(PairSchema.Columns, ",") + "\n" +
		"ON_UMLAUT_001,UMLAUT,Þeir sá lǫnd.,Þeir sá land.,lǫnd,umlaut_removed\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, report := openPairs(t, path)
	assert.Equal(t, 1, report.Recovered)
}

// #endregion pair-store-tests

// #region result-store-tests

func TestResultStore_AppendAndDedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluation_results.csv")
	s, _, err := OpenResults(path, nil)
	require.NoError(t, err)
	defer s.Close()

	rec := bench.EvaluationRecord{
		Model: "llama-3.1-8b-instant", PairID: "ON_UMLAUT_001",
		Order: bench.OrderBGram, Choice: bench.ChoiceInvalid, Response: "c", Correct: false,
	}
	ok, err := s.Append(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Append(rec)
	require.NoError(t, err)
	assert.False(t, ok)

	other := rec
	other.Model = "openai/gpt-oss-20b"
	ok, err = s.Append(other)
	require.NoError(t, err)
	assert.True(t, ok, "same pair under another model is a new combination")

	assert.True(t, s.Has("llama-3.1-8b-instant", "ON_UMLAUT_001"))
	assert.Equal(t, []bench.EvaluationRecord{rec, other}, s.Records())
}

func TestResultStore_RejectsInconsistentCorrect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluation_results.csv")
	s, _, err := OpenResults(path, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(bench.EvaluationRecord{
		Model: "m", PairID: "ON_UMLAUT_001",
		Order: bench.OrderAGram, Choice: bench.ChoiceB, Response: "B", Correct: true,
	})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "correct", se.Field)
}

func TestResultStore_EmptyResponseAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluation_results.csv")
	s, _, err := OpenResults(path, nil)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Append(bench.EvaluationRecord{
		Model: "m", PairID: "ON_UMLAUT_001",
		Order: bench.OrderAGram, Choice: bench.ChoiceInvalid, Response: "", Correct: false,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

// #endregion result-store-tests

// #region metrics-tests

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.csv")
	err := WriteMetrics(path, []bench.Metrics{{
		Model: "m", OverallAccuracy: 0.75, Correct: 3, Total: 4,
		PerPhenomenon: map[bench.Phenomenon]bench.Tally{
			bench.QuirkyCase:  {Correct: 1, Total: 1},
			bench.Adjective:   {Correct: 1, Total: 2},
			bench.Umlaut:      {Correct: 1, Total: 1},
			bench.MiddleVoice: {Correct: 0, Total: 0},
		},
	}})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, MetricsColumns(), rows[0])
	assert.Equal(t, []string{
		"m", "0.7500", "3", "4",
		"1.0000", "1", "1",
		"0.5000", "1", "2",
		"1.0000", "1", "1",
		"0.0000", "0", "0",
	}, rows[1])
	assert.Equal(t, "QUIRKY_CASE_correct", rows[0][5])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

// #endregion metrics-tests
