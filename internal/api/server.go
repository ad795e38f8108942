// Package api serves the radar over HTTP with a websocket stream of run events.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	writeTimeout    = 10 * time.Second
	// slowRequest is the latency above which requests are logged at WARN level.
	slowRequest = 2 * time.Second
)

// Radar is the subset of service.Radar the API needs.
type Radar interface {
	RunForContent(ctx context.Context, contentID string, requiredKeywords []string) models.Result
	Chat(ctx context.Context, contentHash, query string) (analysis.ChatAnswer, error)
	Metrics() metrics.Snapshot
	History(ctx context.Context, limit int) ([]models.RunRecord, error)
	HistoryRun(ctx context.Context, runID string) (*models.RunRecord, error)
}

// Runs tracks asynchronous runs.
type Runs interface {
	Submit(ctx context.Context, contentID string, keywords []string) (string, error)
	Get(id string) (service.RunState, error)
	List() []service.RunState
	Subscribe(id string) (<-chan service.Event, func(), error)
}

// Server holds the state for the REST API server.
type Server struct {
	radar    Radar
	runs     Runs
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer creates a Server with all routes registered.
func NewServer(radar Radar, runs Runs) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), allowAllOrigins())

	s := &Server{
		radar:  radar,
		runs:   runs,
		router: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/chat", s.handleChat)
	api.POST("/runs", s.handleSubmitRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/history", s.handleHistory)
	api.GET("/history/:id", s.handleHistoryRun)
}

// requestLogger logs every request with its latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", duration.Milliseconds(),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logAttrs := append(attrs, "error", c.Errors.String())
			slog.Error("request failed", logAttrs...)
		case duration > slowRequest:
			slog.Warn("slow request", attrs...)
		default:
			slog.Debug("request completed", attrs...)
		}
	}
}

// allowAllOrigins answers CORS preflights for browser front ends.
func allowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
