package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/research-radar/internal/client"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/raphaelgruber/research-radar/internal/workflow"
)

const resultTimeout = 10 * time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status).Bold(true)
}

type stageState int

const (
	stagePending stageState = iota
	stageRunning
	stageDone
	stageFailed
)

// runSource is where the progress view gets events and the final result from.
type runSource struct {
	runID  string
	remote bool
	events <-chan service.Event
	stop   func()
	result func(ctx context.Context) (*models.Result, error)
}

// localSource follows a run tracked in this process.
func localSource(runs *service.RunManager, id string) (runSource, error) {
	events, cancel, err := runs.Subscribe(id)
	if err != nil {
		return runSource{}, err
	}
	return runSource{
		runID:  id,
		events: events,
		stop:   cancel,
		result: func(context.Context) (*models.Result, error) {
			state, err := runs.Get(id)
			if err != nil {
				return nil, err
			}
			return state.Result, nil
		},
	}, nil
}

// remoteSource follows a run on a radar-server over its websocket stream.
func remoteSource(ctx context.Context, c *client.Client, id string) runSource {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan service.Event, 16)
	go func() {
		defer close(events)
		_ = c.WatchRun(ctx, id, func(ev service.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return runSource{
		runID:  id,
		remote: true,
		events: events,
		stop:   cancel,
		result: func(ctx context.Context) (*models.Result, error) {
			state, err := c.GetRun(ctx, id)
			if err != nil {
				return nil, err
			}
			return state.Result, nil
		},
	}
}

// eventMsg carries one run event.
type eventMsg service.Event

// streamClosedMsg signals the event stream ended.
type streamClosedMsg struct{}

// resultMsg carries the final run result.
type resultMsg struct {
	result *models.Result
	err    error
}

// progressModel is the bubbletea model for stage progress.
type progressModel struct {
	src      runSource
	stages   []string
	state    map[string]stageState
	current  string
	progress progress.Model
	theme    Theme
	started  time.Time
	done     bool
	quitting bool
	result   *models.Result
	err      error
}

func newProgressModel(src runSource) progressModel {
	stages := make([]string, 0, len(workflow.Stages()))
	for _, s := range workflow.Stages() {
		stages = append(stages, s.String())
	}

	return progressModel{
		src:    src,
		stages: stages,
		state:  make(map[string]stageState, len(stages)),
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme:   defaultTheme,
		started: time.Now(),
	}
}

// Init starts reading events.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.src.events),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case eventMsg:
		m.apply(service.Event(msg))
		if msg.Kind == service.EventRunFinished {
			return m, m.fetchResult()
		}
		return m, waitForEvent(m.src.events)

	case streamClosedMsg:
		// The stream can end without run_finished when the connection drops.
		return m, m.fetchResult()

	case resultMsg:
		m.done = true
		m.result = msg.result
		switch {
		case msg.err != nil:
			m.err = fmt.Errorf("failed to fetch run result: %w", msg.err)
		case msg.result == nil:
			m.err = fmt.Errorf("run %s ended without a result", m.src.runID)
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one event into the stage table.
func (m *progressModel) apply(ev service.Event) {
	switch ev.Kind {
	case service.EventStageStarted:
		m.state[ev.Stage] = stageRunning
		m.current = ev.Stage
	case service.EventStageFinished:
		if ev.Status == models.StatusFailed {
			m.state[ev.Stage] = stageFailed
		} else {
			m.state[ev.Stage] = stageDone
		}
	case service.EventRunFinished:
		m.current = ""
	}
}

// fraction is the share of stages that have finished.
func (m progressModel) fraction() float64 {
	if len(m.stages) == 0 {
		return 0
	}
	finished := 0
	for _, s := range m.stages {
		if st := m.state[s]; st == stageDone || st == stageFailed {
			finished++
		}
	}
	return float64(finished) / float64(len(m.stages))
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	var b strings.Builder
	status := m.theme.statusStyle().Render(fmt.Sprintf("[run %s]", m.src.runID))
	fmt.Fprintf(&b, "%s %s %s\n\n", status, m.progress.ViewAs(m.fraction()), time.Since(m.started).Round(time.Second))

	for _, s := range m.stages {
		switch m.state[s] {
		case stageRunning:
			b.WriteString(m.theme.statusStyle().Render("  ▸ "+s) + "\n")
		case stageDone:
			b.WriteString(m.theme.completedStyle().Render("  ✓ ") + s + "\n")
		case stageFailed:
			b.WriteString(m.theme.errorStyle().Render("  ✗ "+s) + "\n")
		default:
			b.WriteString(m.theme.hintStyle().Render("  · "+s) + "\n")
		}
	}

	hint := "Press Ctrl+C to stop"
	if m.src.remote {
		hint = "Press Ctrl+C to continue in background"
	}
	b.WriteString("\n" + m.theme.hintStyle().Render(hint) + "\n")
	return b.String()
}

func (m progressModel) finalView() string {
	if m.quitting {
		if m.src.remote {
			return m.theme.hintStyle().Render(fmt.Sprintf("\nRun %s continues on the server.\n", m.src.runID))
		}
		return m.theme.hintStyle().Render("\nRun cancelled.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}
	if m.result != nil && m.result.Status == models.StatusFailed {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Run failed: %s\n", m.result.Error))
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ Completed in %s\n", time.Since(m.started).Round(time.Second)))
}

// fetchResult loads the final result in a command so Update never blocks.
func (m progressModel) fetchResult() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
		defer cancel()

		res, err := m.src.result(ctx)
		return resultMsg{result: res, err: err}
	}
}

func waitForEvent(events <-chan service.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// errInterrupted is returned when the user leaves the progress view early.
var errInterrupted = errors.New("interrupted")

// RunProgress shows live stage progress until the run finishes and returns its result.
// Leaving with Ctrl+C returns errInterrupted.
func RunProgress(src runSource) (*models.Result, error) {
	defer src.stop()

	p := tea.NewProgram(newProgressModel(src))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok {
		return nil, fmt.Errorf("unexpected progress model %T", finalModel)
	}
	if m.quitting {
		return nil, errInterrupted
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
