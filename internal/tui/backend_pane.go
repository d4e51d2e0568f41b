package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/datagen/internal/events"
	"github.com/aristath/datagen/internal/registry"
)

// BackendStats are the per-backend counters shown in the backend pane.
type BackendStats struct {
	Address   string
	ModelID   string
	Running   int
	Written   int
	Abandoned int
}

// BackendPaneModel lists every live backend with its counters.
type BackendPaneModel struct {
	stats   map[string]*BackendStats // address -> stats
	order   []string                 // pool order
	width   int
	height  int
	focused bool
}

// NewBackendPaneModel creates a pane for the live pool, in pool order.
func NewBackendPaneModel(handles []registry.Handle) BackendPaneModel {
	m := BackendPaneModel{stats: make(map[string]*BackendStats)}
	for _, h := range handles {
		m.add(h.Address, h.ModelID)
	}
	return m
}

func (m *BackendPaneModel) add(address, modelID string) *BackendStats {
	s, ok := m.stats[address]
	if !ok {
		s = &BackendStats{Address: address, ModelID: modelID}
		m.stats[address] = s
		m.order = append(m.order, address)
	}
	return s
}

// Update handles sample events.
func (m BackendPaneModel) Update(msg tea.Msg) (BackendPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.SampleStartedEvent:
		m.add(msg.Backend, "").Running++

	case events.SampleWrittenEvent:
		s := m.add(msg.Backend, "")
		s.Running = max(0, s.Running-1)
		s.Written++

	case events.SampleAbandonedEvent:
		s := m.add(msg.Backend, "")
		s.Running = max(0, s.Running-1)
		s.Abandoned++
	}

	return m, nil
}

// Stats returns the counters for address, or nil when unknown.
func (m BackendPaneModel) Stats(address string) *BackendStats {
	return m.stats[address]
}

// View renders the backend pane.
func (m BackendPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render(fmt.Sprintf("Backends (%d)", len(m.order)))
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	addrWidth := max(12, m.width-36)
	for _, addr := range m.order {
		s := m.stats[addr]
		name := addr
		if len(name) > addrWidth {
			name = "..." + name[len(name)-addrWidth+3:]
		}
		b.WriteString(fmt.Sprintf("%-*s %s %s %s\n", addrWidth, name,
			StyleRunning.Render(fmt.Sprintf("%4d", s.Running)),
			StyleWritten.Render(fmt.Sprintf("%6d", s.Written)),
			StyleAbandoned.Render(fmt.Sprintf("%5d", s.Abandoned)),
		))
		if s.ModelID != "" {
			b.WriteString(StylePending.Render("  " + s.ModelID))
			b.WriteString("\n")
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *BackendPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *BackendPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
