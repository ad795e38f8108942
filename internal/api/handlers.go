package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/raphaelgruber/research-radar/internal/workflow"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type analyzeRequest struct {
	PaperID  string   `json:"paper_id"`
	Keywords []string `json:"keywords"`
}

type analyzeResponse struct {
	PaperID  string            `json:"paper_id"`
	Title    string            `json:"title,omitempty"`
	Summary  string            `json:"summary"`
	Analysis map[string]string `json:"analysis"`
	Status   models.Status     `json:"status"`
	HashID   string            `json:"hash_id,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type chatRequest struct {
	Query  string `json:"query"`
	HashID string `json:"hash_id"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "research-radar"})
}

// handleAnalyze runs the whole pipeline synchronously.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.PaperID) == "" {
		abort(c, http.StatusBadRequest, "paper_id is required")
		return
	}

	res := s.radar.RunForContent(c.Request.Context(), req.PaperID, req.Keywords)
	body := analyzeResponse{
		PaperID:  res.ContentID,
		Title:    res.Title,
		Summary:  res.Summary,
		Analysis: res.Analysis,
		Status:   res.Status,
		HashID:   res.ContentHash,
		Error:    res.Error,
	}
	if body.Analysis == nil {
		body.Analysis = map[string]string{}
	}

	code := http.StatusOK
	if res.Status == models.StatusFailed {
		code = http.StatusInternalServerError
		_ = c.Error(errors.New(res.Error))
	}
	c.JSON(code, body)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.HashID) == "" {
		abort(c, http.StatusBadRequest, "query and hash_id are required")
		return
	}

	answer, err := s.radar.Chat(c.Request.Context(), req.HashID, req.Query)
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "failed to process chat request: "+err.Error())
		return
	}
	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer.Answer, "sources": sources})
}

// handleSubmitRun starts a run in the background and returns its id.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := s.runs.Submit(c.Request.Context(), req.PaperID, req.Keywords)
	if errors.Is(err, workflow.ErrInvalidInput) {
		abort(c, http.StatusBadRequest, "paper_id is required")
		return
	}
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, s.runs.List())
}

func (s *Server) handleGetRun(c *gin.Context) {
	state, err := s.runs.Get(c.Param("id"))
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleRunEvents upgrades to a websocket and streams the run's events until
// it finishes or the client goes away.
func (s *Server) handleRunEvents(c *gin.Context) {
	id := c.Param("id")
	events, cancel, err := s.runs.Subscribe(id)
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping frames are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				deadline := time.Now().Add(writeTimeout)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("websocket write failed", "run_id", id, "error", err)
				return
			}
		case <-gone:
			slog.Debug("websocket client disconnected", "run_id", id)
			return
		}
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.radar.Metrics())
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abort(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.radar.History(c.Request.Context(), limit)
	if err != nil {
		historyError(c, err)
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleHistoryRun(c *gin.Context) {
	run, err := s.radar.HistoryRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		abort(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, db.ErrNotFound):
		abort(c, http.StatusNotFound, err.Error())
	default:
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "load history: "+err.Error())
	}
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
