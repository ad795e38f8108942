package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/raphaelgruber/research-radar/internal/config"
	"github.com/raphaelgruber/research-radar/internal/scheduler"
	"github.com/raphaelgruber/research-radar/internal/service"
)

const (
	// cleanupInterval is how often finished runs past retention are dropped.
	cleanupInterval = 5 * time.Minute
	drainTimeout    = 30 * time.Second
)

// Serve runs the HTTP API for radar on addr until ctx is cancelled. When cfg
// names a watchlist schedule the watchlist runs alongside the server.
func Serve(ctx context.Context, radar *service.Radar, cfg config.Config, addr string) error {
	runs := service.NewRunManager(radar, service.DefaultRetention)
	runs.StartCleanup(ctx, cleanupInterval)

	if cfg.WatchlistSchedule != "" {
		w, err := scheduler.New(radar, scheduler.Options{
			Schedule: cfg.WatchlistSchedule,
			IDs:      cfg.Watchlist,
			Keywords: cfg.WatchlistKeywords,
		})
		switch {
		case errors.Is(err, scheduler.ErrEmptyWatchlist):
			slog.Warn("watchlist schedule set but RADAR_WATCHLIST is empty")
		case err != nil:
			return err
		default:
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}
	}

	err := NewServer(radar, runs).Run(ctx, addr)

	drained := make(chan struct{})
	go func() {
		runs.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		slog.Warn("in-flight runs still running at shutdown")
	}
	return err
}
