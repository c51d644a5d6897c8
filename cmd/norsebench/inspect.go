package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norse-minpairs/internal/ledger"
)

var (
	inspectLast    int
	inspectRun     string
	inspectOutcome string
	inspectJSON    bool
)

// #region command

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List recent runs and API calls from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		lg, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer lg.Close()

		if inspectRun != "" {
			return runCallsMode(cmd.OutOrStdout(), lg)
		}
		return runRunsMode(cmd.OutOrStdout(), lg)
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent rows")
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "show the API calls of one run")
	inspectCmd.Flags().StringVar(&inspectOutcome, "outcome", "", "filter calls by outcome (ok, rate_limited, error)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

// #endregion command

// #region runs-mode

type runRow struct {
	RunID        string   `json:"run_id"`
	Command      string   `json:"command"`
	Status       string   `json:"status"`
	Fingerprints []string `json:"fingerprints"`
	Summary      string   `json:"summary,omitempty"`
	StartedAt    string   `json:"started_at"`
}

func runRunsMode(w io.Writer, lg *ledger.Store) error {
	runs, err := lg.ListRuns(inspectLast)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	rows := make([]runRow, len(runs))
	for i, r := range runs {
		fps, err := lg.Fingerprints(r.RunID)
		if err != nil {
			return err
		}
		rows[i] = runRow{
			RunID:        r.RunID,
			Command:      r.Command,
			Status:       r.Status,
			Fingerprints: fps,
			Summary:      r.Summary,
			StartedAt:    r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if inspectJSON {
		return printJSON(w, rows)
	}
	fmt.Fprintf(w, "%-8s  %-8s  %-7s  %-12s  %-20s  %s\n", "Run", "Command", "Status", "Decoding", "Started", "Summary")
	fmt.Fprintln(w, rule(8, 8, 7, 12, 20, 20))
	for _, r := range rows {
		decoding := "-"
		switch len(r.Fingerprints) {
		case 0:
		case 1:
			decoding = r.Fingerprints[0]
		default:
			decoding = fmt.Sprintf("MIXED(%d)", len(r.Fingerprints))
		}
		fmt.Fprintf(w, "%-8s  %-8s  %-7s  %-12s  %-20s  %s\n",
			shortID(r.RunID), r.Command, r.Status, decoding, r.StartedAt, r.Summary)
	}
	return nil
}

// #endregion runs-mode

// #region calls-mode

type callRow struct {
	ID        int64  `json:"id"`
	Purpose   string `json:"purpose"`
	Model     string `json:"model"`
	KeyIndex  int    `json:"key_index"`
	Attempt   int    `json:"attempt"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CreatedAt string `json:"created_at"`
}

func runCallsMode(w io.Writer, lg *ledger.Store) error {
	calls, err := lg.ListCalls(ledger.CallFilter{RunID: inspectRun, Outcome: inspectOutcome, Limit: inspectLast})
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		fmt.Fprintln(w, "no calls found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]callRow, len(calls))
	for i, c := range calls {
		rows[len(calls)-1-i] = callRow{
			ID:        c.ID,
			Purpose:   c.Purpose,
			Model:     c.Model,
			KeyIndex:  c.KeyIndex,
			Attempt:   c.Attempt,
			Outcome:   c.Outcome,
			Error:     c.Error,
			LatencyMS: c.LatencyMS,
			CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if inspectJSON {
		return printJSON(w, rows)
	}
	fmt.Fprintf(w, "%6s  %-8s  %-26s  %3s  %3s  %-12s  %7s  %s\n", "ID", "Purpose", "Model", "Key", "Try", "Outcome", "ms", "Error")
	fmt.Fprintln(w, rule(6, 8, 26, 3, 3, 12, 7, 5))
	for _, r := range rows {
		fmt.Fprintf(w, "%6d  %-8s  %-26s  %3d  %3d  %-12s  %7d  %s\n",
			r.ID, r.Purpose, r.Model, r.KeyIndex, r.Attempt, r.Outcome, r.LatencyMS, truncate(r.Error, 60))
	}
	return nil
}

// #endregion calls-mode

// #region output

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// rule draws the dashed line under a table header whose columns are the
// given widths, separated by two spaces.
func rule(widths ...int) string {
	parts := make([]string, len(widths))
	for i, n := range widths {
		parts[i] = strings.Repeat("-", n)
	}
	return strings.Join(parts, "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// #endregion output
