package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// View renders the whole screen
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var body string
	if m.Screen == ScreenDetails {
		body = m.details.View()
	} else {
		body = m.activeList().View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderFooter(),
	)
}

// renderHeader renders the tab bar with the connectivity badge on the right
func (m Model) renderHeader() string {
	tabs := []string{
		renderTab("Popular", m.Tab == TabPopular),
		renderTab("Favorites", m.Tab == TabFavorites),
	}
	left := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	right := renderConnectivity(m.connState)

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func renderTab(label string, active bool) string {
	if active {
		return styles.ActiveTabStyle.Render(label)
	}
	return styles.InactiveTabStyle.Render(label)
}

func renderConnectivity(state connectivity.State) string {
	switch state {
	case connectivity.Online:
		return styles.OnlineBadge.Render("● online")
	case connectivity.Offline:
		return styles.OfflineBadge.Render("○ offline")
	default:
		return styles.UnknownBadge.Render("… checking")
	}
}

// renderFooter shows the toast when there is one, otherwise the key help
func (m Model) renderFooter() string {
	if m.toast != "" {
		style := styles.ToastStyle
		if m.toastErr {
			style = style.Background(styles.Red).Foreground(styles.White)
		}
		return style.Render(styles.Truncate(m.toast, max(m.width-2, 1)))
	}
	return m.help.View(Keys)
}
