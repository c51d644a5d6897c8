package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/eval"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

var metricsJSON bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute per-model accuracy once every combination is evaluated",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _, err := store.OpenPairs(cfg.PairsPath(), logger)
		if err != nil {
			return err
		}
		defer pairs.Close()
		results, _, err := store.OpenResults(cfg.ResultsPath(), logger)
		if err != nil {
			return err
		}
		defer results.Close()

		metrics, err := eval.ComputeAccuracy(pairs.Pairs(), cfg.Eval.Models, results.Records())
		if err != nil {
			return err
		}
		if err := store.WriteMetrics(cfg.MetricsPath(), metrics); err != nil {
			return err
		}

		if metricsJSON {
			return printJSON(cmd.OutOrStdout(), metrics)
		}
		printMetricsTable(cmd, metrics)
		fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %s\n", cfg.MetricsPath())
		return nil
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "output as JSON instead of table")
}

func printMetricsTable(cmd *cobra.Command, metrics []bench.Metrics) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-26s  %8s  %9s", "Model", "Overall", "Correct")
	widths := []int{26, 8, 9}
	for _, p := range bench.Phenomena {
		fmt.Fprintf(out, "  %-16s", p)
		widths = append(widths, 16)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, rule(widths...))
	for _, m := range metrics {
		fmt.Fprintf(out, "%-26s  %8.4f  %4d/%-4d", m.Model, m.OverallAccuracy, m.Correct, m.Total)
		for _, p := range bench.Phenomena {
			t := m.PerPhenomenon[p]
			fmt.Fprintf(out, "  %-16s", fmt.Sprintf("%.4f (%d/%d)", t.Accuracy(), t.Correct, t.Total))
		}
		fmt.Fprintln(out)
	}
}
