// Package cli provides the command-line interface for research radar.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/research-radar/internal/client"
	"github.com/raphaelgruber/research-radar/internal/config"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	cfg        config.Config
	logCleanup func() error

	// Lazy-initialized in-process pipeline
	radar *service.Radar
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "Research radar: summarize and interrogate papers and videos",
	Long: `Research radar fetches a paper (arXiv id) or video (YouTube id or URL),
checks it against your topics, indexes its full text and answers a fixed set
of analytical questions about it.

Commands run the pipeline in-process by default. Pass --server to use a
running radar-server instead.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Interactive sessions only log warnings unless -v is given.
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		} else if cfg.LogLevel < slog.LevelWarn && isTerminal() {
			cfg.LogLevel = slog.LevelWarn
		}
		_, logCleanup = config.SetupLogger(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if radar != nil {
			if err := radar.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close radar: %v\n", err)
			}
			radar = nil
		}
		if logCleanup != nil {
			_ = logCleanup()
			logCleanup = nil
		}
	},
}

// getRadar builds the in-process pipeline on first use.
func getRadar(ctx context.Context) (*service.Radar, error) {
	if radar != nil {
		return radar, nil
	}
	r, err := service.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init radar: %w", err)
	}
	radar = r
	return radar, nil
}

// remote returns a client when --server is set.
func remote() (*client.Client, bool) {
	if serverURL == "" {
		return nil, false
	}
	return client.New(serverURL), true
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a context that commands can observe.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "radar-server URL (e.g. http://localhost:8000); empty runs in-process")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}
