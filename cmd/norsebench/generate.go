package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/corpus"
	"github.com/danielpatrickdp/norse-minpairs/internal/dataset"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

var corpusDir string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate minimal pairs from the corpus until every phenomenon reaches its target",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		dir := cfg.CorpusDir
		if corpusDir != "" {
			dir = corpusDir
		}

		pairs, load, err := store.OpenPairs(cfg.PairsPath(), logger)
		if err != nil {
			return err
		}
		defer pairs.Close()
		if load.Discarded > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "recovered %d pairs, moved %d damaged rows to %s.discarded\n",
				load.Recovered, load.Discarded, cfg.PairsPath())
		}

		s, err := openSession("generate")
		if err != nil {
			return err
		}
		var summary string
		defer func() { s.close(err, summary) }()

		gen, err := dataset.NewGenerator(pairs, s.caller, dataset.Config{
			Model:   cfg.Dataset.Model,
			Targets: cfg.Dataset.Targets,
		}, logger)
		if err != nil {
			return err
		}

		report, err := gen.Run(cmd.Context(), corpus.NewDirSource(dir))
		summary = fmt.Sprintf("added %d pairs from %d sentences in %d calls", sum(report.Added), report.Sentences, report.Calls)
		printGenerateReport(cmd, report)
		return err
	},
}

func init() {
	generateCmd.Flags().StringVar(&corpusDir, "corpus", "", "directory of .txt corpus files (overrides corpus_dir)")
}

func printGenerateReport(cmd *cobra.Command, r dataset.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-14s  %6s  %6s  %6s\n", "Phenomenon", "Have", "Target", "Added")
	fmt.Fprintln(out, rule(14, 6, 6, 6))
	for _, p := range bench.Phenomena {
		fmt.Fprintf(out, "%-14s  %6d  %6d  %6d\n", p, r.Counts[p], r.Targets[p], r.Added[p])
	}
	fmt.Fprintf(out, "\nsentences %d, calls %d, not applicable %d, malformed %d, failed %d, duplicates %d\n",
		r.Sentences, r.Calls, r.NotApplicable, r.Malformed, r.Failed, r.Duplicates)
	if !r.Complete() {
		fmt.Fprintf(out, "corpus exhausted before targets were met: %v\n", r.Shortfall())
	}
}

func sum(m map[bench.Phenomenon]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
