package cli

import (
	"fmt"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List or inspect persisted runs",
	Long: `List recent runs from the SurrealDB run history, or show one run in full.
Requires SURREALDB_URL (in-process) or a server with history enabled.

Examples:
  radar history
  radar history --limit 50
  radar history 7c9e6679-7425-40de-944b-e07fc1f90ae7`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		if _, ok := remote(); ok {
			return fmt.Errorf("inspecting a single run is only supported in-process")
		}
		r, err := getRadar(ctx)
		if err != nil {
			return err
		}
		run, err := r.HistoryRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		if historyJSON {
			return writeJSON(w, run)
		}
		printRun(w, *run)
		return nil
	}

	var runs []models.RunRecord
	if c, ok := remote(); ok {
		var err error
		runs, err = c.History(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
	} else {
		r, err := getRadar(ctx)
		if err != nil {
			return err
		}
		runs, err = r.History(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
	}

	if historyJSON {
		return writeJSON(w, runs)
	}
	printHistory(w, runs)
	return nil
}
