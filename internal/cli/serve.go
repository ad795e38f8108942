package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/research-radar/internal/api"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the radar HTTP API (analyze, chat, background runs with a
websocket event stream, metrics and history). Runs the watchlist too when
RADAR_WATCHLIST_SCHEDULE is set.

Examples:
  radar serve
  radar serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default RADAR_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := getRadar(ctx)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	return api.Serve(ctx, r, cfg, addr)
}
