package tui

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
)

// HelpView returns a one-line help bar. Once a stop was requested, q quits the dashboard.
func HelpView(stopping bool) string {
	if stopping {
		return StyleHelp.Render("Stopping: waiting for in-flight samples | q: close dashboard")
	}
	return StyleHelp.Render("Tab: cycle focus | 1/2: jump to pane | j/k: scroll | q: stop dispatching")
}
