package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/eval"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Ask every model in the roster about every pair not yet evaluated",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		pairs, _, err := store.OpenPairs(cfg.PairsPath(), logger)
		if err != nil {
			return err
		}
		defer pairs.Close()
		if pairs.Len() == 0 {
			return fmt.Errorf("no pairs in %s; run generate first", cfg.PairsPath())
		}

		results, load, err := store.OpenResults(cfg.ResultsPath(), logger)
		if err != nil {
			return err
		}
		defer results.Close()
		if load.Discarded > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "recovered %d results, moved %d damaged rows to %s.discarded\n",
				load.Recovered, load.Discarded, cfg.ResultsPath())
		}

		s, err := openSession("evaluate")
		if err != nil {
			return err
		}
		var summary string
		defer func() { s.close(err, summary) }()

		ev, err := eval.NewEvaluator(results, s.caller, eval.Config{
			Models:  cfg.Eval.Models,
			Seed:    cfg.Eval.Seed,
			Workers: cfg.Eval.Workers,
		}, logger)
		if err != nil {
			return err
		}

		report, err := ev.Run(cmd.Context(), pairs.Pairs())
		summary = fmt.Sprintf("evaluated %d of %d pending, %d invalid, %d failed",
			report.Evaluated, report.Pending, report.Invalid, report.Failed)
		fmt.Fprintln(cmd.OutOrStdout(), summary)

		want := pairs.Len() * len(cfg.Eval.Models)
		fmt.Fprintf(cmd.OutOrStdout(), "coverage: %d of %d combinations\n", results.Len(), want)
		return err
	},
}
