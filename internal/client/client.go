// Package client provides an HTTP client for the radar-server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
)

// DefaultServerURL is used when neither an endpoint nor RADAR_SERVER_URL is set.
const DefaultServerURL = "http://localhost:8000"

// Client talks to a radar-server instance.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// New creates a new client.
// If endpoint is empty, uses RADAR_SERVER_URL env var or defaults to localhost:8000.
// Timeout can be configured via RADAR_CLIENT_TIMEOUT env var (default 10m, a full run is slow).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("RADAR_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = DefaultServerURL
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("RADAR_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AnalyzeResult mirrors the /api/analyze response.
type AnalyzeResult struct {
	PaperID  string            `json:"paper_id"`
	Title    string            `json:"title,omitempty"`
	Summary  string            `json:"summary"`
	Analysis map[string]string `json:"analysis"`
	Status   models.Status     `json:"status"`
	HashID   string            `json:"hash_id,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Result converts to the shared result shape.
func (r AnalyzeResult) Result() models.Result {
	return models.Result{
		ContentID:   r.PaperID,
		Summary:     r.Summary,
		Analysis:    r.Analysis,
		ContentHash: r.HashID,
		Status:      r.Status,
		Error:       r.Error,
		Title:       r.Title,
	}
}

// ChatAnswer mirrors the /api/chat response.
type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type analyzeRequest struct {
	PaperID  string   `json:"paper_id"`
	Keywords []string `json:"keywords,omitempty"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return err
	}
	if out["status"] != "healthy" {
		return fmt.Errorf("unexpected health status %q", out["status"])
	}
	return nil
}

// Analyze runs the pipeline synchronously. A failed run is returned as a
// result with status failed, not as an error.
func (c *Client) Analyze(ctx context.Context, contentID string, keywords []string) (*AnalyzeResult, error) {
	var out AnalyzeResult
	err := c.do(ctx, http.MethodPost, "/api/analyze", analyzeRequest{PaperID: contentID, Keywords: keywords}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError && out.Status == models.StatusFailed {
		return &out, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat asks a question about an analyzed item.
func (c *Client) Chat(ctx context.Context, hashID, query string) (*ChatAnswer, error) {
	var out ChatAnswer
	body := map[string]string{"query": query, "hash_id": hashID}
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitRun starts a background run and returns its id.
func (c *Client) SubmitRun(ctx context.Context, contentID string, keywords []string) (string, error) {
	var out struct {
		RunID string `json:"run_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/runs", analyzeRequest{PaperID: contentID, Keywords: keywords}, &out); err != nil {
		return "", err
	}
	return out.RunID, nil
}

// GetRun fetches the current state of a background run.
func (c *Client) GetRun(ctx context.Context, id string) (*service.RunState, error) {
	var out service.RunState
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns lists the runs the server is tracking.
func (c *Client) ListRuns(ctx context.Context) ([]service.RunState, error) {
	var out []service.RunState
	if err := c.do(ctx, http.MethodGet, "/api/runs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Metrics fetches the server's runtime statistics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists recently persisted runs. limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]models.RunRecord, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.RunRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchRun streams a run's events over a websocket until the run finishes.
// Return an error from onEvent to stop early.
func (c *Client) WatchRun(ctx context.Context, id string, onEvent func(service.Event) error) error {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/runs/" + url.PathEscape(id) + "/events")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &APIError{StatusCode: resp.StatusCode, Message: "watch run " + id}
		}
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev service.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Kind == service.EventRunFinished {
			return nil
		}
	}
}

// do sends a JSON request and decodes the JSON response into out. The body
// is decoded into out even for error statuses so callers can inspect it.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		if out != nil {
			_ = json.Unmarshal(respBody, out)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
