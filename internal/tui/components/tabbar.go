package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

// Tab is one entry of the tab bar.
type Tab struct {
	Name string
	Key  rune
}

// Tabs in display order.
var Tabs = []Tab{
	{Name: "Waterfall", Key: 'w'},
	{Name: "Matrix", Key: 'm'},
	{Name: "Review", Key: 'r'},
}

// TabVisualWidth is the rendered width of a tab, shortcut hint included.
// Mouse hit testing relies on it matching RenderTabBar.
func TabVisualWidth(tab Tab, active bool) int {
	w := lipgloss.Width(tab.Name) + 2
	if !active {
		w += 3 // "[k]"
	}
	return w
}

// RenderTabBar renders a single row of tabs followed by a status badge
// right-aligned to width.
func RenderTabBar(activeIdx int, badge string, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.SurfaceHover).
		Bold(true).
		Padding(0, 1)
	inactiveStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	sep := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts[i] = activeStyle.Render(tab.Name)
			continue
		}
		parts[i] = inactiveStyle.Render(" "+tab.Name) +
			dimStyle.Render("[") + keyStyle.Render(string(tab.Key)) + dimStyle.Render("]") +
			inactiveStyle.Render(" ")
	}
	row := strings.Join(parts, sep)

	gap := width - lipgloss.Width(row) - lipgloss.Width(badge)
	if gap < 1 {
		return row
	}
	return row + lipgloss.NewStyle().Background(t.Surface).Render(strings.Repeat(" ", gap)) + badge
}

// TabIdxByKey returns the tab index for a shortcut key, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
