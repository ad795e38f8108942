package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/raphaelgruber/research-radar/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRadar struct {
	history    []models.RunRecord
	historyErr error
	chatErr    error
	gotKW      []string
}

func (f *fakeRadar) RunForContent(_ context.Context, id string, kws []string) models.Result {
	f.gotKW = kws
	if id == "0000.00000" {
		return models.Result{ContentID: id, Status: models.StatusFailed, Error: "metadata extraction failed"}
	}
	return models.Result{
		ContentID:   id,
		Summary:     "a summary",
		Analysis:    map[string]string{"Q": "A"},
		ContentHash: "abc123",
		Status:      models.StatusCompleted,
		Title:       "A Paper",
	}
}

func (f *fakeRadar) Chat(_ context.Context, hash, query string) (analysis.ChatAnswer, error) {
	if f.chatErr != nil {
		return analysis.ChatAnswer{}, f.chatErr
	}
	return analysis.ChatAnswer{Answer: query + "@" + hash, Sources: []string{"Methods"}}, nil
}

func (f *fakeRadar) Metrics() metrics.Snapshot {
	return metrics.Snapshot{UptimeSeconds: 42}
}

func (f *fakeRadar) History(context.Context, int) ([]models.RunRecord, error) {
	return f.history, f.historyErr
}

func (f *fakeRadar) HistoryRun(_ context.Context, id string) (*models.RunRecord, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	for _, r := range f.history {
		if r.RunID == id {
			return &r, nil
		}
	}
	return nil, db.ErrNotFound
}

// gatedPipeline holds every run until release is closed.
type gatedPipeline struct {
	release chan struct{}
}

func (p *gatedPipeline) Run(ctx context.Context, id string, _ []string, _ ...workflow.RunOption) models.RunRecord {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
		}
	}
	return models.RunRecord{ContentID: id, Status: models.StatusCompleted, Summary: "done", StartedAt: time.Now()}
}

func newTestServer(t *testing.T, radar *fakeRadar, pipeline *gatedPipeline) (*Server, *service.RunManager) {
	t.Helper()
	if pipeline == nil {
		pipeline = &gatedPipeline{}
	}
	runs := service.NewRunManager(pipeline, time.Minute)
	t.Cleanup(runs.Wait)
	return NewServer(radar, runs), runs
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{}, nil)

	w := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"research-radar"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{}, nil)

	w := do(t, srv, http.MethodOptions, "/api/analyze", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus models.Status
		wantError  string
	}{
		{name: "success", body: `{"paper_id":"2401.12345","keywords":["rag"]}`, wantCode: http.StatusOK, wantStatus: models.StatusCompleted},
		{name: "failed run", body: `{"paper_id":"0000.00000"}`, wantCode: http.StatusInternalServerError, wantStatus: models.StatusFailed, wantError: "metadata extraction failed"},
		{name: "empty id", body: `{"paper_id":"  "}`, wantCode: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeRadar{}, nil)

			w := do(t, srv, http.MethodPost, "/api/analyze", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusBadRequest {
				var body map[string]string
				decode(t, w, &body)
				assert.NotEmpty(t, body["error"])
				return
			}

			var body analyzeResponse
			decode(t, w, &body)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotNil(t, body.Analysis)
		})
	}
}

func TestAnalyzeResponseShape(t *testing.T) {
	radar := &fakeRadar{}
	srv, _ := newTestServer(t, radar, nil)

	w := do(t, srv, http.MethodPost, "/api/analyze", `{"paper_id":"2401.12345","keywords":["rag","agents"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "2401.12345", body["paper_id"])
	assert.Equal(t, "abc123", body["hash_id"])
	assert.Equal(t, "a summary", body["summary"])
	assert.Equal(t, map[string]any{"Q": "A"}, body["analysis"])
	assert.NotContains(t, body, "error")
	assert.Equal(t, []string{"rag", "agents"}, radar.gotKW)
}

func TestChat(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{}, nil)

	w := do(t, srv, http.MethodPost, "/api/chat", `{"query":"what?","hash_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"what?@abc","sources":["Methods"]}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/api/chat", `{"query":"what?"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing, _ := newTestServer(t, &fakeRadar{chatErr: errors.New("model offline")}, nil)
	w = do(t, failing, http.MethodPost, "/api/chat", `{"query":"what?","hash_id":"abc"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "model offline")
}

func TestRunsLifecycle(t *testing.T) {
	pipeline := &gatedPipeline{release: make(chan struct{})}
	srv, runs := newTestServer(t, &fakeRadar{}, pipeline)

	w := do(t, srv, http.MethodPost, "/api/runs", `{"paper_id":"2401.12345"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var submitted map[string]string
	decode(t, w, &submitted)
	id := submitted["run_id"]
	require.NotEmpty(t, id)

	w = do(t, srv, http.MethodGet, "/api/runs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var state service.RunState
	decode(t, w, &state)
	assert.Equal(t, "2401.12345", state.ContentID)
	assert.False(t, state.Status.Terminal())

	close(pipeline.release)
	runs.Wait()

	w = do(t, srv, http.MethodGet, "/api/runs/"+id, "")
	decode(t, w, &state)
	assert.Equal(t, models.StatusCompleted, state.Status)
	require.NotNil(t, state.Result)
	assert.Equal(t, "done", state.Result.Summary)

	w = do(t, srv, http.MethodGet, "/api/runs", "")
	var list []service.RunState
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestRunsErrors(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{}, nil)

	w := do(t, srv, http.MethodPost, "/api/runs", `{"paper_id":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/runs/missing/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunEventsWebsocket(t *testing.T) {
	pipeline := &gatedPipeline{release: make(chan struct{})}
	srv, runs := newTestServer(t, &fakeRadar{}, pipeline)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id, err := runs.Submit(context.Background(), "2401.12345", nil)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/runs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	close(pipeline.release)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev service.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, service.EventRunFinished, ev.Kind)
	assert.Equal(t, id, ev.RunID)
	assert.Equal(t, models.StatusCompleted, ev.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{}, nil)

	w := do(t, srv, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap metrics.Snapshot
	decode(t, w, &snap)
	assert.InDelta(t, 42, snap.UptimeSeconds, 0.001)
}

func TestHistory(t *testing.T) {
	radar := &fakeRadar{history: []models.RunRecord{{RunID: "r1", ContentID: "2401.12345", Status: models.StatusCompleted}}}
	srv, _ := newTestServer(t, radar, nil)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "list", path: "/api/history", wantCode: http.StatusOK},
		{name: "list with limit", path: "/api/history?limit=5", wantCode: http.StatusOK},
		{name: "bad limit", path: "/api/history?limit=zero", wantCode: http.StatusBadRequest},
		{name: "one run", path: "/api/history/r1", wantCode: http.StatusOK},
		{name: "unknown run", path: "/api/history/nope", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRadar{historyErr: service.ErrHistoryDisabled}, nil)

	w := do(t, srv, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	broken, _ := newTestServer(t, &fakeRadar{historyErr: errors.New("connection reset")}, nil)
	w = do(t, broken, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
