// Package tui implements the live progress view behind "plancraft watch".
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/scheduler"
	"github.com/felixgeelhaar/plancraft/internal/ux"
)

// Snapshot is what the view renders: a plan as of one checkpoint.
type Snapshot struct {
	Plan       *plan.Plan
	Checkpoint domain.CheckpointID
}

// Loader reads the newest snapshot of the watched plan.
type Loader func(ctx context.Context) (Snapshot, error)

// Model is the bubbletea model for the watch view.
type Model struct {
	load    Loader
	changes <-chan domain.CheckpointID
	timeout time.Duration

	snap      Snapshot
	decision  scheduler.Decision
	updatedAt time.Time
	reloads   int
	lastError string

	bar      progress.Model
	noColor  bool
	styles   ux.Styles
	width    int
	ready    bool
	quitting bool
}

// NewModel creates a watch model. changes may be nil, in which case the
// view only reloads on demand.
func NewModel(load Loader, changes <-chan domain.CheckpointID, noColor bool) Model {
	return Model{
		load:    load,
		changes: changes,
		timeout: 5 * time.Second,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		styles:  ux.NewStyles(noColor),
		noColor: noColor,
	}
}

// snapshotMsg carries a freshly loaded snapshot.
type snapshotMsg struct {
	snap Snapshot
	at   time.Time
}

// errMsg reports a failed reload.
type errMsg struct{ err error }

// CheckpointMsg signals that a new checkpoint was written.
type CheckpointMsg struct {
	ID domain.CheckpointID
}

// watchClosedMsg is sent once the change channel is closed.
type watchClosedMsg struct{}

// Init loads the first snapshot and starts listening for checkpoints.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reload(), m.waitForCheckpoint())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		m.ready = true
		return m, nil

	case CheckpointMsg:
		return m, tea.Batch(m.reload(), m.waitForCheckpoint())

	case watchClosedMsg:
		m.changes = nil
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.decision = scheduler.Decide(msg.snap.Plan)
		m.updatedAt = msg.at
		m.reloads++
		m.lastError = ""
		m.ready = true
		return m, nil

	case errMsg:
		m.lastError = msg.err.Error()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "r":
		return m, m.reload()
	}
	return m, nil
}

func (m Model) reload() tea.Cmd {
	load, timeout := m.load, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snap, err := load(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{snap: snap, at: time.Now()}
	}
}

func (m Model) waitForCheckpoint() tea.Cmd {
	ch := m.changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return CheckpointMsg{ID: id}
	}
}
