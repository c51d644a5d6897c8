package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/dataset"
	"github.com/danielpatrickdp/norse-minpairs/internal/store"
)

var verifyJSON bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit the persisted dataset: id format, uniqueness, minimal difference, balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _, err := store.OpenPairs(cfg.PairsPath(), logger)
		if err != nil {
			return err
		}
		defer pairs.Close()

		res := dataset.Audit(pairs.Pairs(), cfg.Dataset.Targets)
		if verifyJSON {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-26s  %-4s  %s\n", "Check", "Pass", "Detail")
			fmt.Fprintln(out, rule(26, 4, 20))
			for _, c := range res.Checks {
				pass := "yes"
				if !c.Pass {
					pass = "NO"
				}
				fmt.Fprintf(out, "%-26s  %-4s  %s\n", c.Name, pass, c.Detail)
			}
		}
		if !res.Passed {
			return errors.New(res.Reason)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output as JSON instead of table")
}
