package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

// Status is what the bottom bar reports about the workspace.
type Status struct {
	Changes  int
	Acked    bool
	Blocking int
	Baseline string
	Message  string
	IsError  bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s Status) string {
	t := theme.Active

	bg := lipgloss.NewStyle().Background(t.Surface)
	muted := bg.Foreground(t.TextMuted)
	key := bg.Foreground(t.Cyan).Bold(true)

	left := key.Render(" ?") + muted.Render(" help  ") + key.Render("q") + muted.Render(" quit")
	if s.Message != "" {
		msgColor := t.Green
		if s.IsError {
			msgColor = t.Red
		}
		left += muted.Render("  │ ") + bg.Foreground(msgColor).Render(s.Message)
	}

	var right string
	switch {
	case s.Changes == 0:
		right = muted.Render("clean")
	case s.Acked:
		right = bg.Foreground(t.Green).Bold(true).Render(fmt.Sprintf("%d change(s) reviewed", s.Changes))
	default:
		right = bg.Foreground(t.Yellow).Bold(true).Render(fmt.Sprintf("%d change(s) unreviewed", s.Changes))
	}
	if s.Blocking > 0 {
		right += muted.Render(" · ") + bg.Foreground(t.Red).Render(fmt.Sprintf("%d blocking", s.Blocking))
	}
	if s.Baseline != "" {
		right += muted.Render(" · base " + s.Baseline)
	}
	right += bg.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		return lipgloss.NewStyle().Background(t.Surface).Width(width).MaxWidth(width).Render(left)
	}
	return left + bg.Render(fmt.Sprintf("%*s", padding, "")) + right
}
