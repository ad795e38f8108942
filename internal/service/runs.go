package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/workflow"
)

// ErrRunNotFound is returned for an unknown or already cleaned up run id.
var ErrRunNotFound = errors.New("run not found")

// DefaultRetention is how long finished runs stay queryable.
const DefaultRetention = time.Hour

// eventBuffer is the per-subscriber channel size on top of the replayed
// history. Slow subscribers drop events.
const eventBuffer = 32

// EventKind tags a run event.
type EventKind string

const (
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventRunFinished   EventKind = "run_finished"
)

// Event is one observable step of a run.
type Event struct {
	RunID  string        `json:"run_id"`
	Kind   EventKind     `json:"kind"`
	Stage  string        `json:"stage,omitempty"`
	Status models.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
	Time   time.Time     `json:"time"`
}

// RunState is a point-in-time view of a tracked run.
type RunState struct {
	ID          string         `json:"run_id"`
	ContentID   string         `json:"content_id"`
	Keywords    []string       `json:"keywords,omitempty"`
	Status      models.Status  `json:"status"`
	Stage       string         `json:"stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      *models.Result `json:"result,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type trackedRun struct {
	mu     sync.RWMutex
	state  RunState
	record *models.RunRecord
	events []Event
	subs   map[int]chan Event
	nextID int
}

// RunManager runs the pipeline in the background and tracks each run.
type RunManager struct {
	pipeline  Pipeline
	retention time.Duration

	mu     sync.RWMutex
	runs   map[string]*trackedRun
	idFunc func() string
	wg     sync.WaitGroup
}

// NewRunManager tracks runs executed by pipeline. A retention of 0 uses
// DefaultRetention.
func NewRunManager(pipeline Pipeline, retention time.Duration) *RunManager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RunManager{
		pipeline:  pipeline,
		retention: retention,
		runs:      make(map[string]*trackedRun),
		idFunc:    shortID,
	}
}

// Submit starts a run and returns its id immediately. The run outlives ctx's
// cancellation but keeps its values.
func (m *RunManager) Submit(ctx context.Context, contentID string, keywords []string) (string, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return "", workflow.ErrInvalidInput
	}

	tr := &trackedRun{
		state: RunState{
			ContentID: contentID,
			Keywords:  keywords,
			Status:    models.StatusPending,
			StartedAt: time.Now(),
		},
		subs: make(map[int]chan Event),
	}

	m.mu.Lock()
	id := m.newID()
	tr.state.ID = id
	m.runs[id] = tr
	m.mu.Unlock()

	slog.Info("run submitted", "run_id", id, "content_id", contentID, "keywords", len(keywords))

	bg := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("run goroutine panicked", "run_id", id, "panic", r)
				m.finish(tr, models.RunRecord{
					RunID:     id,
					ContentID: contentID,
					Status:    models.StatusFailed,
					Error:     fmt.Sprintf("internal panic: %v", r),
					StartedAt: tr.state.StartedAt,
				})
			}
		}()

		run := m.pipeline.Run(bg, contentID, keywords, workflow.WithRunID(id), workflow.WithObserver(m))
		m.finish(tr, run)
	}()

	return id, nil
}

// newID returns a short run id not yet tracked. Callers hold m.mu.
func (m *RunManager) newID() string {
	for {
		id := m.idFunc()
		if _, taken := m.runs[id]; !taken {
			return id
		}
	}
}

func shortID() string {
	return uuid.New().String()[:8]
}

// Get returns a snapshot of one run.
func (m *RunManager) Get(id string) (RunState, error) {
	tr := m.lookup(id)
	if tr == nil {
		return RunState{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tr.snapshot(), nil
}

// Record returns the full run record once the run has finished.
func (m *RunManager) Record(id string) (*models.RunRecord, error) {
	tr := m.lookup(id)
	if tr == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	if tr.record == nil {
		return nil, nil
	}
	rec := *tr.record
	return &rec, nil
}

// List returns every tracked run, most recent first.
func (m *RunManager) List() []RunState {
	m.mu.RLock()
	out := make([]RunState, 0, len(m.runs))
	for _, tr := range m.runs {
		out = append(out, tr.snapshot())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b RunState) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out
}

// Subscribe streams the events of one run, starting with every event already
// published. The channel is closed after the run_finished event. Call cancel
// to stop early.
func (m *RunManager) Subscribe(id string) (<-chan Event, func(), error) {
	tr := m.lookup(id)
	if tr == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	ch := make(chan Event, len(tr.events)+eventBuffer)
	for _, ev := range tr.events {
		ch <- ev
	}
	if tr.state.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	subID := tr.nextID
	tr.nextID++
	tr.subs[subID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			if sub, ok := tr.subs[subID]; ok {
				delete(tr.subs, subID)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

// Cleanup drops finished runs older than the retention window and returns
// how many were removed.
func (m *RunManager) Cleanup() int {
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, tr := range m.runs {
		s := tr.snapshot()
		if s.CompletedAt != nil && s.CompletedAt.Before(cutoff) {
			delete(m.runs, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("cleaned up finished runs", "removed", removed)
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *RunManager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// Wait blocks until every submitted run has finished.
func (m *RunManager) Wait() {
	m.wg.Wait()
}

// StageStarted implements workflow.Observer.
func (m *RunManager) StageStarted(runID string, stage workflow.StageID) {
	tr := m.lookup(runID)
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.state.Status == models.StatusPending {
		tr.state.Status = models.StatusRunning
	}
	tr.state.Stage = stage.String()
	tr.publish(Event{RunID: runID, Kind: EventStageStarted, Stage: stage.String(), Status: tr.state.Status, Time: time.Now()})
}

// StageFinished implements workflow.Observer.
func (m *RunManager) StageFinished(runID string, stage workflow.StageID, status models.Status, errMsg string) {
	tr := m.lookup(runID)
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.publish(Event{RunID: runID, Kind: EventStageFinished, Stage: stage.String(), Status: status, Error: errMsg, Time: time.Now()})
}

func (m *RunManager) lookup(id string) *trackedRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[id]
}

func (m *RunManager) finish(tr *trackedRun, run models.RunRecord) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.state.Status.Terminal() {
		return
	}

	now := time.Now()
	result := run.Result()
	tr.record = &run
	tr.state.Status = run.Status
	tr.state.Error = run.Error
	tr.state.Result = &result
	tr.state.CompletedAt = &now

	tr.publish(finishedEvent(tr.state))
	for id, ch := range tr.subs {
		close(ch)
		delete(tr.subs, id)
	}

	if run.Status == models.StatusFailed {
		slog.Warn("tracked run failed", "run_id", tr.state.ID, "error", run.Error)
	} else {
		slog.Info("tracked run completed", "run_id", tr.state.ID)
	}
}

// publish records ev and fans it out to subscribers. Caller holds tr.mu.
func (tr *trackedRun) publish(ev Event) {
	tr.events = append(tr.events, ev)
	for _, ch := range tr.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping run event for slow subscriber", "run_id", ev.RunID, "kind", ev.Kind)
		}
	}
}

func (tr *trackedRun) snapshot() RunState {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	s := tr.state
	s.Keywords = slices.Clone(s.Keywords)
	return s
}

func finishedEvent(s RunState) Event {
	at := time.Now()
	if s.CompletedAt != nil {
		at = *s.CompletedAt
	}
	return Event{RunID: s.ID, Kind: EventRunFinished, Status: s.Status, Error: s.Error, Time: at}
}
