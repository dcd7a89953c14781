// Package cli provides the command-line interface for datacompass.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/datacompass-go/internal/config"
	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and session metrics
	cfg       config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	closeLog  func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "datacompass",
	Short: "Startup analysis and benchmarking agent",
	Long: `Datacompass analyzes a startup company profile and builds a benchmarking
report against the most similar companies in a company catalog.

Without a subcommand it starts an interactive session. Each line is either a
JSON/YAML company profile or free text:

  {"companyName": "TechCorp", "industry": "SaaS", "stage": "Series A", "revenueRange": "$1M-$5M"}

Type 'quit' to exit.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if verbose && collector != nil {
			printSnapshot(cmd.ErrOrStderr(), collector.Snapshot())
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
	RunE: runShell,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and session metrics")

	// Add subcommands
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(indexCmd)
}
