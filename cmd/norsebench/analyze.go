package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/eval"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report choice bias, order effect and accuracy per error type",
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

		analyses, err := eval.AnalyzeResponses(pairs.Pairs(), cfg.Eval.Models, results.Records())
		if err != nil {
			return err
		}
		if analyzeJSON {
			return printJSON(cmd.OutOrStdout(), analyzeRows(analyses))
		}
		printAnalysis(cmd.OutOrStdout(), analyses)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output as JSON instead of table")
}

type analyzeRow struct {
	Model       string                      `json:"model"`
	Total       int                         `json:"total"`
	Choices     map[bench.Choice]int        `json:"choices"`
	ChiSquare   float64                     `json:"chi_square"`
	PValue      float64                     `json:"p_value"`
	Favoured    bench.Choice                `json:"favoured,omitempty"`
	Biased      bool                        `json:"biased"`
	ByOrder     map[bench.Order]bench.Tally `json:"by_order"`
	OrderGap    float64                     `json:"order_gap"`
	ByErrorType map[string]bench.Tally      `json:"by_error_type"`
}

func analyzeRows(analyses []eval.Analysis) []analyzeRow {
	rows := make([]analyzeRow, len(analyses))
	for i, a := range analyses {
		rows[i] = analyzeRow{
			Model:       a.Model,
			Total:       a.Total,
			Choices:     a.Choices,
			ChiSquare:   a.ChiSquare,
			PValue:      a.PValue,
			Favoured:    a.Favoured(),
			Biased:      a.Biased(),
			ByOrder:     a.ByOrder,
			OrderGap:    a.OrderGap(),
			ByErrorType: a.ByErrorType,
		}
	}
	return rows
}

func printAnalysis(w io.Writer, analyses []eval.Analysis) {
	fmt.Fprintln(w, "Choice bias and order effect:")
	fmt.Fprintf(w, "%-26s  %5s  %5s  %7s  %8s  %8s  %-6s  %7s  %7s  %6s\n",
		"Model", "A", "B", "Invalid", "Chi2", "p", "Bias", "A_gram", "B_gram", "Gap")
	fmt.Fprintln(w, rule(26, 5, 5, 7, 8, 8, 6, 7, 7, 6))
	for _, a := range analyses {
		bias := "-"
		if a.Biased() {
			bias = "to " + string(a.Favoured())
		}
		fmt.Fprintf(w, "%-26s  %5d  %5d  %7d  %8.3f  %8.6f  %-6s  %7.4f  %7.4f  %6.4f\n",
			a.Model,
			a.Choices[bench.ChoiceA], a.Choices[bench.ChoiceB], a.Choices[bench.ChoiceInvalid],
			a.ChiSquare, a.PValue, bias,
			a.ByOrder[bench.OrderAGram].Accuracy(), a.ByOrder[bench.OrderBGram].Accuracy(), a.OrderGap())
	}

	fmt.Fprintln(w, "\nAccuracy by error type:")
	fmt.Fprintf(w, "%-26s  %-30s  %8s  %9s\n", "Model", "Error type", "Accuracy", "Correct")
	fmt.Fprintln(w, rule(26, 30, 8, 9))
	for _, a := range analyses {
		types := make([]string, 0, len(a.ByErrorType))
		for et := range a.ByErrorType {
			types = append(types, et)
		}
		sort.Strings(types)
		for _, et := range types {
			t := a.ByErrorType[et]
			fmt.Fprintf(w, "%-26s  %-30s  %8.4f  %4d/%-4d\n", a.Model, truncate(et, 30), t.Accuracy(), t.Correct, t.Total)
		}
	}
}
