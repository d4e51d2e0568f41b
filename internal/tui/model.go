// Package tui is the full-screen generation dashboard.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/datagen/internal/events"
	"github.com/aristath/datagen/internal/registry"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneBackends PaneID = iota
	PaneAbandoned
	paneCount
)

// overviewHeight is the fixed height of the top pane.
const overviewHeight = 7

// RunInfo describes the run the dashboard follows.
type RunInfo struct {
	RunID   string
	Mode    string
	Pending int
	Pool    []registry.Handle
}

// busClosedMsg reports that the run finished and the event bus closed.
type busClosedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	overview    OverviewPaneModel
	backends    BackendPaneModel
	abandons    AbandonPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	stop        context.CancelFunc
	width       int
	height      int
	stopping    bool
	quitting    bool
}

// New creates a new TUI model subscribed to every topic of bus.
// stop is called when the operator asks to stop dispatching.
func New(bus *events.EventBus, run RunInfo, stop context.CancelFunc) Model {
	m := Model{
		overview:    NewOverviewPaneModel(run.RunID, run.Mode, run.Pending),
		backends:    NewBackendPaneModel(run.Pool),
		abandons:    NewAbandonPaneModel(),
		focusedPane: PaneBackends,
		// Sample events of one unit arrive in pairs; keep room for a burst of completions
		eventSub: bus.SubscribeAll(4096),
		stop:     stop,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			// First press stops dispatching and keeps the dashboard up while
			// in-flight samples drain; the second closes it.
			if !m.stopping {
				m.stopping = true
				if m.stop != nil {
					m.stop()
				}
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneBackends
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneAbandoned
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneAbandoned {
				var cmd tea.Cmd
				m.abandons, cmd = m.abandons.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case tickMsg:
		var cmd tea.Cmd
		m.abandons, cmd = m.abandons.Update(msg)
		cmds = append(cmds, cmd)

	case events.SampleStartedEvent, events.SampleWrittenEvent:
		m.backends, _ = m.backends.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.SampleAbandonedEvent:
		var cmd tea.Cmd
		m.backends, _ = m.backends.Update(msg)
		m.abandons, cmd = m.abandons.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.RunStartedEvent, events.RunProgressEvent, events.RunFinishedEvent:
		m.overview, _ = m.overview.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case busClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	lower := lipgloss.JoinHorizontal(lipgloss.Top, m.backends.View(), m.abandons.View())
	return lipgloss.JoinVertical(lipgloss.Left, m.overview.View(), lower, HelpView(m.stopping))
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 1 // help bar
	lowerHeight := max(5, availableHeight-overviewHeight)
	leftWidth := (m.width * 50) / 100
	rightWidth := m.width - leftWidth

	m.overview.SetSize(m.width, overviewHeight)
	m.backends.SetSize(leftWidth, lowerHeight)
	m.abandons.SetSize(rightWidth, lowerHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.backends.SetFocused(m.focusedPane == PaneBackends)
	m.abandons.SetFocused(m.focusedPane == PaneAbandoned)
}

// Stopping reports whether the operator asked to stop dispatching.
func (m Model) Stopping() bool {
	return m.stopping
}
