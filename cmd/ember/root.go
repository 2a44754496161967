package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags.
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ember",
	Short: "Explore half-life activity scoring and decay rate limits",
	Long: `Ember is a CLI companion to the ember cache library. It replays
activity events through the same decay math the library uses, so score
curves and ranking behavior can be inspected without a running service.

Examples:
  # Rank entities from a JSONL event log by one-day half-life
  ember rank --half-life day events.jsonl

  # Trace a decaying rate limiter fed events at t:cost
  ember decay --half-life 60 --threshold 100 0:50 30:50 40:20`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newLogger returns a development logger in verbose mode, no-op
// otherwise.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
