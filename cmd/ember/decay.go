package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kindling/ember/internal/decay"
)

var (
	decayHalfLife  float64
	decayThreshold float64
)

var decayCmd = &cobra.Command{
	Use:   "decay [t:cost ...]",
	Short: "Trace a decaying rate limiter over a series of costs",
	Long: `Decay feeds a series of time:cost events through a rate limiter and
prints, for each event, the accumulated value and whether the cost was
admitted. Events are sorted by time before replay.

Example:
  ember decay --half-life 60 --threshold 100 0:50 30:50 40:20 120:10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecay,
}

func init() {
	decayCmd.Flags().Float64Var(&decayHalfLife, "half-life", 60, "decay half-life, in the event time unit")
	decayCmd.Flags().Float64Var(&decayThreshold, "threshold", 100, "admission threshold")
	rootCmd.AddCommand(decayCmd)
}

// event is one time:cost pair.
type event struct {
	at   float64
	cost float64
}

func runDecay(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	events := make([]event, 0, len(args))
	for _, arg := range args {
		ev, err := parseEvent(arg)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at < events[j].at })

	limiter := decay.NewLimiter(decayThreshold, decayHalfLife)
	logger.Debug("replaying events",
		zap.Int("count", len(events)),
		zap.Float64("halfLife", decayHalfLife),
		zap.Float64("threshold", decayThreshold),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "%10s %10s %12s %s\n", "t", "cost", "value", "admitted")
	for _, ev := range events {
		exceeded := limiter.Exceeded(ev.at, ev.cost)
		fmt.Fprintf(cmd.OutOrStdout(), "%10g %10g %12.3f %v\n",
			ev.at, ev.cost, limiter.Value(ev.at), !exceeded)
	}
	return nil
}

func parseEvent(arg string) (event, error) {
	at, cost, ok := strings.Cut(arg, ":")
	if !ok {
		return event{}, fmt.Errorf("event %q: want t:cost", arg)
	}
	t, err := strconv.ParseFloat(at, 64)
	if err != nil {
		return event{}, fmt.Errorf("event %q: bad time: %w", arg, err)
	}
	c, err := strconv.ParseFloat(cost, 64)
	if err != nil {
		return event{}, fmt.Errorf("event %q: bad cost: %w", arg, err)
	}
	return event{at: t, cost: c}, nil
}
