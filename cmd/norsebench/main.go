package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/config"
	"github.com/danielpatrickdp/norse-minpairs/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

// #region root
var rootCmd = &cobra.Command{
	Use:   "norsebench",
	Short: "Old Norse grammaticality minimal-pair benchmark",
	Long: `norsebench builds a balanced set of Old Norse minimal pairs from a text
corpus, asks a roster of language models to pick the grammatical sentence of
each pair, and reports per-model accuracy.

Every step appends to CSV tables under the data directory and can be
interrupted and resumed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults plus NORSEBENCH_* env when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(generateCmd, evaluateCmd, metricsCmd, analyzeCmd, verifyCmd, inspectCmd)
}
// #endregion root

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
// #endregion main
