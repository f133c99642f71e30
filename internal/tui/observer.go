package tui

import tea "github.com/charmbracelet/bubbletea"

// listen adapts a live channel to Bubble Tea: the returned command waits for the
// next value and wraps it as a message. Handlers re-issue it to keep listening.
// A closed channel ends the loop.
func listen[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}
