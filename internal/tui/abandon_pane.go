package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/datagen/internal/events"
)

// maxAbandonLines bounds the scrollback of the abandoned-samples pane.
const maxAbandonLines = 500

// AbandonPaneModel is a scrollable log of samples that produced no record.
type AbandonPaneModel struct {
	lines     []string
	byOutcome map[string]int
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	updateTag int // for debouncing
}

// NewAbandonPaneModel creates an empty abandoned-samples pane.
func NewAbandonPaneModel() AbandonPaneModel {
	return AbandonPaneModel{
		byOutcome: make(map[string]int),
		viewport:  viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the abandoned-samples pane.
func (m AbandonPaneModel) Update(msg tea.Msg) (AbandonPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.viewport, cmd = m.viewport.Update(msg)

	case events.SampleAbandonedEvent:
		m.byOutcome[msg.Outcome]++
		line := fmt.Sprintf("#%d %s %s", msg.Index, StyleAbandoned.Render(msg.Outcome), msg.Backend)
		if msg.Error != "" {
			line += " " + StylePending.Render(msg.Error)
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxAbandonLines {
			m.lines = m.lines[len(m.lines)-maxAbandonLines:]
		}
		// Bursts of abandons redraw once
		m.updateTag++
		tag := m.updateTag
		return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
			return tickMsg{tag: tag}
		})

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// Count returns how many abandoned samples had outcome.
func (m AbandonPaneModel) Count(outcome string) int {
	return m.byOutcome[outcome]
}

// Lines returns the retained log lines, oldest first.
func (m AbandonPaneModel) Lines() []string {
	return m.lines
}

// View renders the pane.
func (m AbandonPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := StyleTitle.Render("Abandoned samples")
	header := title + "\n" + strings.Repeat("=", lipgloss.Width(title))

	body := m.viewport.View()
	if len(m.lines) == 0 {
		body = StylePending.Render("None so far.")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

func (m *AbandonPaneModel) updateViewportContent() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *AbandonPaneModel) resizeViewport() {
	m.viewport.Width = max(10, m.width-4)
	m.viewport.Height = max(3, m.height-6) // border plus title
}

// SetSize updates the pane dimensions.
func (m *AbandonPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *AbandonPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
