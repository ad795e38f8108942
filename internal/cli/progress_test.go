package cli

import (
	"context"
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(res *models.Result, err error) runSource {
	return runSource{
		runID:  "r1",
		events: make(chan service.Event),
		stop:   func() {},
		result: func(context.Context) (*models.Result, error) { return res, err },
	}
}

func update(t *testing.T, m progressModel, msg tea.Msg) (progressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(progressModel)
	require.True(t, ok)
	return pm, cmd
}

func TestProgressModelStages(t *testing.T) {
	m := newProgressModel(testSource(nil, nil))
	require.Equal(t, "route", m.stages[0])
	require.Equal(t, "publish", m.stages[len(m.stages)-1])
	assert.Zero(t, m.fraction())

	m, _ = update(t, m, eventMsg{Kind: service.EventStageStarted, Stage: "route"})
	assert.Equal(t, stageRunning, m.state["route"])
	assert.Equal(t, "route", m.current)

	m, _ = update(t, m, eventMsg{Kind: service.EventStageFinished, Stage: "route", Status: models.StatusRunning})
	m, _ = update(t, m, eventMsg{Kind: service.EventStageFinished, Stage: "fetch_metadata", Status: models.StatusFailed})
	assert.Equal(t, stageDone, m.state["route"])
	assert.Equal(t, stageFailed, m.state["fetch_metadata"])
	assert.InDelta(t, 2.0/float64(len(m.stages)), m.fraction(), 1e-9)

	view := m.renderContent()
	assert.Contains(t, view, "[run r1]")
	assert.Contains(t, view, "✓ ")
	assert.Contains(t, view, "✗ fetch_metadata")
	assert.Contains(t, view, "Press Ctrl+C to stop")
}

func TestProgressModelFinish(t *testing.T) {
	want := &models.Result{ContentID: "x", Status: models.StatusCompleted}
	m := newProgressModel(testSource(want, nil))

	m, cmd := update(t, m, eventMsg{Kind: service.EventRunFinished, Status: models.StatusCompleted})
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, resultMsg{}, msg)

	m, cmd = update(t, m, msg)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.NoError(t, m.err)
	assert.Equal(t, want, m.result)
	assert.Contains(t, m.renderContent(), "Completed")
}

func TestProgressModelResultErrors(t *testing.T) {
	tests := []struct {
		name    string
		msg     resultMsg
		wantErr string
	}{
		{"fetch failed", resultMsg{err: errors.New("gone")}, "failed to fetch run result: gone"},
		{"no result", resultMsg{}, "run r1 ended without a result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := update(t, newProgressModel(testSource(nil, nil)), tt.msg)
			require.Error(t, m.err)
			assert.Equal(t, tt.wantErr, m.err.Error())
		})
	}
}

func TestProgressModelStreamClosed(t *testing.T) {
	m := newProgressModel(testSource(&models.Result{Status: models.StatusFailed, Error: "boom"}, nil))

	m, cmd := update(t, m, streamClosedMsg{})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.renderContent(), "Run failed: boom")
}

func TestProgressModelQuit(t *testing.T) {
	src := testSource(nil, nil)
	src.remote = true
	m := newProgressModel(src)

	m, cmd := update(t, m, tea.KeyPressMsg{Code: 'q', Text: "q"})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Contains(t, m.renderContent(), "continues on the server")
}

func TestWaitForEvent(t *testing.T) {
	events := make(chan service.Event, 1)
	events <- service.Event{Kind: service.EventStageStarted, Stage: "route"}
	close(events)

	cmd := waitForEvent(events)
	assert.Equal(t, eventMsg{Kind: service.EventStageStarted, Stage: "route"}, cmd())
	assert.Equal(t, streamClosedMsg{}, cmd())
}
