package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	watchSchedule    string
	watchIDs         []string
	watchKeywords    []string
	watchConcurrency int
	watchOnce        bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a watchlist on a schedule",
	Long: `Re-run the pipeline for a list of ids on a cron schedule, in the foreground.
Defaults come from RADAR_WATCHLIST_SCHEDULE, RADAR_WATCHLIST and
RADAR_WATCHLIST_KEYWORDS.

Examples:
  radar watch --schedule "0 7 * * *" --id 2401.12345 --id 2402.00001 -k agents
  radar watch --once`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (default RADAR_WATCHLIST_SCHEDULE)")
	watchCmd.Flags().StringArrayVar(&watchIDs, "id", nil, "content id to watch (repeatable, default RADAR_WATCHLIST)")
	watchCmd.Flags().StringArrayVarP(&watchKeywords, "keyword", "k", nil, "required topic (repeatable, default RADAR_WATCHLIST_KEYWORDS)")
	watchCmd.Flags().IntVar(&watchConcurrency, "concurrency", scheduler.DefaultConcurrency, "items analyzed at once")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run the watchlist once and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if _, ok := remote(); ok {
		return fmt.Errorf("watch runs in-process; set RADAR_WATCHLIST_SCHEDULE on the server instead")
	}

	opts := scheduler.Options{
		Schedule:    firstNonEmpty(watchSchedule, cfg.WatchlistSchedule),
		IDs:         watchIDs,
		Keywords:    watchKeywords,
		Concurrency: watchConcurrency,
	}
	if len(opts.IDs) == 0 {
		opts.IDs = cfg.Watchlist
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = cfg.WatchlistKeywords
	}
	if watchOnce && opts.Schedule == "" {
		opts.Schedule = "@daily" // validated but never scheduled
	}

	w := cmd.OutOrStdout()
	opts.OnBatch = func(results []models.Result) {
		printBatch(w, results)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := getRadar(ctx)
	if err != nil {
		return err
	}

	watchlist, err := scheduler.New(r, opts)
	if err != nil {
		return err
	}

	if watchOnce {
		_, err := watchlist.RunOnce(ctx)
		return err
	}

	if err := watchlist.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Watching %d items, next run %s. Press Ctrl+C to stop.\n",
		len(opts.IDs), watchlist.Next().Local().Format("2006-01-02 15:04"))
	<-ctx.Done()
	watchlist.Stop()
	return nil
}

func printBatch(w io.Writer, results []models.Result) {
	t := defaultTheme
	for _, r := range results {
		switch r.Status {
		case models.StatusFailed:
			fmt.Fprintln(w, t.errorStyle().Render("✗ "+r.ContentID)+"  "+r.Error)
		default:
			title := r.Title
			if title == "" {
				title = truncate(r.Summary, 60)
			}
			fmt.Fprintln(w, t.completedStyle().Render("✓ "+r.ContentID)+"  "+title)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
