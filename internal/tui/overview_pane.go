package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/datagen/internal/events"
)

// OverviewPaneModel shows run-wide counters and the overall progress bar.
type OverviewPaneModel struct {
	runID     string
	mode      string
	total     int
	done      int
	written   int
	abandoned int
	running   int
	started   time.Time
	finished  bool
	bar       progress.Model
	width     int
	height    int
}

// NewOverviewPaneModel creates an overview for total pending samples.
func NewOverviewPaneModel(runID, mode string, total int) OverviewPaneModel {
	return OverviewPaneModel{
		runID: runID,
		mode:  mode,
		total: total,
		bar:   progress.New(progress.WithDefaultGradient()),
	}
}

// Update handles run events.
func (m OverviewPaneModel) Update(msg tea.Msg) (OverviewPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunStartedEvent:
		m.runID = msg.RunID
		m.mode = msg.Mode
		m.total = msg.Pending
		m.started = msg.Timestamp

	case events.RunProgressEvent:
		// Progress events may be dropped; counters only move forward
		if msg.Done >= m.done {
			m.total = msg.Total
			m.done = msg.Done
			m.written = msg.Written
			m.abandoned = msg.Abandoned
			m.running = msg.Running
		}

	case events.RunFinishedEvent:
		m.finished = true
		m.written = msg.Written
		m.abandoned = msg.Abandoned
		m.done = msg.Written + msg.Abandoned
		m.running = 0
	}

	return m, nil
}

// Percent returns the completed fraction in [0, 1].
func (m OverviewPaneModel) Percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return min(1, float64(m.done)/float64(m.total))
}

// View renders the overview pane.
func (m OverviewPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render(fmt.Sprintf("datagen %s (%s mode)", m.runID, m.mode))
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.done, m.total))

	b.WriteString(fmt.Sprintf("Written: %s  Abandoned: %s  Running: %s  Pending: %s",
		StyleWritten.Render(fmt.Sprintf("%d", m.written)),
		StyleAbandoned.Render(fmt.Sprintf("%d", m.abandoned)),
		StyleRunning.Render(fmt.Sprintf("%d", m.running)),
		StylePending.Render(fmt.Sprintf("%d", max(0, m.total-m.done-m.running))),
	))
	if !m.started.IsZero() {
		b.WriteString(fmt.Sprintf("  Elapsed: %s", time.Since(m.started).Round(time.Second)))
	}
	if m.finished {
		b.WriteString("  " + StyleWritten.Render("done"))
	}
	b.WriteString("\n")

	return StyleUnfocusedBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *OverviewPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.bar.Width = max(10, min(w-16, 60))
}
