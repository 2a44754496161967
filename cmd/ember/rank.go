package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/kindling/ember/score"
)

var (
	rankHalfLife string
	rankLimit    int
)

var rankCmd = &cobra.Command{
	Use:   "rank [events.jsonl]",
	Short: "Rank entities from an event log by decayed activity score",
	Long: `Rank replays a JSONL event log through the half-life scoring engine
and prints entities ordered by their log-domain ordering key. Each line
is one event:

  {"id": "post~42", "weight": 1, "t": 227904}

where t is in hours since 2000-01-01 UTC. With no file, events are read
from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVar(&rankHalfLife, "half-life", "day", "half-life to rank by: day, week, month, year, or hours")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 20, "number of entities to print, 0 for all")
	rootCmd.AddCommand(rankCmd)
}

// scoreEvent is one line of the event log.
type scoreEvent struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	T      float64 `json:"t"`
}

func runRank(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	half, ok := score.ParseHalfLife(rankHalfLife)
	if !ok {
		return fmt.Errorf("unknown half-life %q", rankHalfLife)
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	sets, lastT, err := replay(in, half)
	if err != nil {
		return err
	}
	logger.Debug("replayed event log",
		zap.Int("entities", len(sets)),
		zap.String("halfLife", score.Name(half)),
	)

	ids := make([]string, 0, len(sets))
	keys := make([]float64, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return score.OrderingKey(sets[ids[i]], half) > score.OrderingKey(sets[ids[j]], half)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "%-24s %12s %12s\n", "id", "log score", "score now")
	for i, id := range ids {
		key := score.OrderingKey(sets[id], half)
		keys = append(keys, key)
		if rankLimit > 0 && i >= rankLimit {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %12.4f %12.4f\n",
			id, key, score.At(sets[id], half, lastT))
	}

	if len(keys) > 1 {
		mean, std := stat.MeanStdDev(keys, nil)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d entities, log score mean %.4f, stddev %.4f\n",
			len(keys), mean, std)
	}
	return nil
}

// replay folds the event log into one score set per entity and returns
// the latest event time seen.
func replay(in io.Reader, half float64) (map[string]*score.Set, float64, error) {
	sets := make(map[string]*score.Set)
	var lastT float64

	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev scoreEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.ID == "" {
			return nil, 0, fmt.Errorf("line %d: missing id", line)
		}

		set, ok := sets[ev.ID]
		if !ok {
			s := score.NewSet(half)
			set = &s
			sets[ev.ID] = set
		}
		score.RecordEvent(set, ev.Weight, ev.T)
		if ev.T > lastT {
			lastT = ev.T
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return sets, lastT, nil
}
