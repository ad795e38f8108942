package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime statistics",
	Long: `Show operation timings and token usage of a running server (--server),
or the per-status run counts from the local run history.

Examples:
  radar stats --server http://localhost:8000
  radar stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var snap *metrics.Snapshot
	var counts []db.StatusCount
	if c, ok := remote(); ok {
		var err error
		snap, err = c.Metrics(ctx)
		if err != nil {
			return fmt.Errorf("get server stats: %w", err)
		}
	} else {
		r, err := getRadar(ctx)
		if err != nil {
			return err
		}
		counts, err = r.HistoryCounts(ctx)
		if errors.Is(err, service.ErrHistoryDisabled) {
			return fmt.Errorf("no server given and run history is disabled; set SURREALDB_URL or pass --server")
		}
		if err != nil {
			return fmt.Errorf("count runs: %w", err)
		}
		if counts == nil {
			counts = []db.StatusCount{}
		}
	}

	printStats(cmd.OutOrStdout(), snap, counts)
	return nil
}
