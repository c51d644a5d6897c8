package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
)

// MetricsColumns is the header of the derived metrics table.
func MetricsColumns() []string {
	cols := []string{"model", "overall_accuracy", "correct", "total"}
	for _, p := range bench.Phenomena {
		cols = append(cols, string(p), string(p)+"_correct", string(p)+"_total")
	}
	return cols
}

// WriteMetrics regenerates the metrics table at path. The file is written
// beside the target and renamed over it, so readers never see a partial
// table.
func WriteMetrics(path string, metrics []bench.Metrics) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*.csv")
	if err != nil {
		return fmt.Errorf("create temp metrics: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(MetricsColumns()); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics header: %w", err)
	}
	for _, m := range metrics {
		rec := []string{
			m.Model,
			formatAccuracy(m.OverallAccuracy),
			strconv.Itoa(m.Correct),
			strconv.Itoa(m.Total),
		}
		for _, p := range bench.Phenomena {
			t := m.PerPhenomenon[p]
			rec = append(rec, formatAccuracy(t.Accuracy()), strconv.Itoa(t.Correct), strconv.Itoa(t.Total))
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write metrics row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush metrics: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace metrics: %w", err)
	}
	return nil
}

func formatAccuracy(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
