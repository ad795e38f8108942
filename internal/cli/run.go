package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/spf13/cobra"
)

var (
	runKeywords   []string
	runJSON       bool
	runNoProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run <content-id>",
	Short: "Analyze a paper or video",
	Long: `Run the full pipeline for one item: fetch metadata, check relevance,
extract and index the full text, answer the analytical questions and write
a summary.

The id may be an arXiv id, a YouTube video id or a YouTube URL.

Examples:
  radar run 2401.12345
  radar run 2401.12345 -k "retrieval augmented generation" -k agents
  radar run https://www.youtube.com/watch?v=dQw4w9WgXcQ --json
  radar run 2401.12345 --server http://localhost:8000`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runKeywords, "keyword", "k", nil, "required topic (repeatable); the run stops early when none match")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "disable the live stage display")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]
	interactive := !runJSON && !runNoProgress && isTerminal()

	var res *models.Result
	if c, ok := remote(); ok {
		if interactive {
			runID, err := c.SubmitRun(ctx, id, runKeywords)
			if err != nil {
				return fmt.Errorf("submit run: %w", err)
			}
			res, err = RunProgress(remoteSource(ctx, c, runID))
			if errors.Is(err, errInterrupted) {
				return nil
			}
			if err != nil {
				return err
			}
		} else {
			out, err := c.Analyze(ctx, id, runKeywords)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			r := out.Result()
			res = &r
		}
	} else {
		r, err := getRadar(ctx)
		if err != nil {
			return err
		}
		if interactive {
			runs := service.NewRunManager(r, 0)
			runID, err := runs.Submit(ctx, id, runKeywords)
			if err != nil {
				return err
			}
			src, err := localSource(runs, runID)
			if err != nil {
				return err
			}
			res, err = RunProgress(src)
			if err != nil {
				return err
			}
		} else {
			out := r.RunForContent(ctx, id, runKeywords)
			res = &out
		}
	}

	if err := printResult(cmd.OutOrStdout(), *res, runJSON); err != nil {
		return err
	}
	if res.Status == models.StatusFailed {
		return fmt.Errorf("run failed: %s", res.Error)
	}
	return nil
}
