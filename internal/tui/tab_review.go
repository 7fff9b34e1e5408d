package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/tui/components"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

type reviewState struct {
	scroll       int
	confirmReset bool
}

func (r *reviewState) clamp(n int) {
	r.scroll = clampIdx(r.scroll, n)
}

// changeLines is the change listing without its baseline header line.
func (a App) changeLines() []string {
	lines := a.changes.Lines()
	if len(lines) <= 1 {
		return nil
	}
	return lines[1:]
}

func (a App) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if a.reviewTab.confirmReset {
		a.reviewTab.confirmReset = false
		if key == "y" {
			a.ws.Reset()
			a.refresh()
			a.setStatus("uncommitted edits discarded", false)
		} else {
			a.setStatus("reset cancelled", false)
		}
		return a, nil
	}
	if a.committing {
		return a, nil
	}

	switch key {
	case "j", "down":
		a.reviewTab.scroll = clampIdx(a.reviewTab.scroll+1, len(a.changeLines()))
	case "k", "up":
		a.reviewTab.scroll = max(a.reviewTab.scroll-1, 0)
	case "a":
		if err := a.ws.Acknowledge(a.changes); err != nil {
			a.setStatus(err.Error(), true)
			return a, nil
		}
		a.setStatus("acknowledged "+a.changes.FingerprintHex(), false)
	case "c":
		snap, err := a.ws.PrepareCommit("")
		if err != nil {
			a.setStatus("commit failed: "+err.Error(), true)
			return a, nil
		}
		a.committing = true
		a.setStatus("committing...", false)
		return a, saveCmd(a.opts.Committer, snap)
	case "U":
		if a.changes.IsEmpty() {
			return a, nil
		}
		a.reviewTab.confirmReset = true
		a.setStatus(fmt.Sprintf("discard %d change(s)? y/n", a.changes.Len()), true)
	}
	return a, nil
}

func (a App) renderReviewTab(cw, h int) string {
	t := theme.Active
	cs := a.changes
	blocking := review.Blocking(a.issues)

	ack := "no"
	if a.ws.Acknowledged() {
		ack = "yes"
	}
	net := pipeline.SumAmounts(cs.FranchiseDeltas)
	metrics := components.MetricCardRow([]components.Metric{
		{Label: "Changes", Value: cli.FormatCount(cs.Len()), Note: fmt.Sprintf("%d moves", len(cs.Moves))},
		{Label: "Fingerprint", Value: cs.FingerprintHex()},
		{Label: "Acknowledged", Value: ack},
		{Label: "Blocking", Value: cli.FormatCount(len(blocking)), Note: fmt.Sprintf("%d warnings", len(a.issues)-len(blocking))},
		{Label: "Net franchise delta", Value: a.delta(net)},
	}, cw)

	if cs.IsEmpty() {
		body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).
			Render("No changes since the last commit.")
		return metrics + "\n" + components.ContentCard("Changes", body, cw) + "\n" + a.renderIssues(cw)
	}

	widths := components.LayoutRow(cw, 2)
	listH := max(h-lipgloss.Height(metrics)-4, 3)
	return metrics + "\n" +
		components.CardRow([]string{
			components.ContentCard("Changes", a.renderChangeList(components.CardInnerWidth(widths[0]), listH), widths[0]),
			components.ContentCard("Franchise Impact", a.renderImpacts(components.CardInnerWidth(widths[1]), listH), widths[1]),
		}) + "\n" + a.renderIssues(cw)
}

func (a App) renderChangeList(w, h int) string {
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)
	lines := a.changeLines()

	var b strings.Builder
	end := min(a.reviewTab.scroll+h, len(lines))
	for _, l := range lines[a.reviewTab.scroll:end] {
		color := t.TextPrimary
		switch l[:min(len(l), 1)] {
		case "+":
			color = t.Green
		case "-":
			color = t.Red
		case "~":
			color = t.Yellow
		case "=":
			color = t.Cyan
		}
		b.WriteString(bg.Foreground(color).Render(truncStr(l, w)))
		b.WriteString("\n")
	}
	if end < len(lines) {
		b.WriteString(bg.Foreground(t.TextDim).Render(fmt.Sprintf("… %d more (j/k)", len(lines)-end)))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (a App) renderImpacts(w, h int) string {
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)
	name := bg.Foreground(t.TextPrimary)
	muted := bg.Foreground(t.TextMuted)

	impacts := a.changes.Significant(a.opts.Threshold)
	if len(impacts) == 0 {
		return muted.Render("No franchise moves above the threshold.")
	}

	var lines []string
	for _, imp := range impacts {
		lines = append(lines, name.Bold(true).Render(truncStr(imp.Name, w)))
		for _, f := range imp.Franchises {
			d := a.delta(f.Delta)
			pct := cli.FormatChange(f.ChangePct)
			labelW := max(w-lipgloss.Width(d)-lipgloss.Width(pct)-4, 6)
			lines = append(lines,
				muted.Render(fmt.Sprintf("  %-*s", labelW, truncStr(string(f.Franchise), labelW)))+
					bg.Foreground(t.ForSign(f.Delta.Sign())).Render(d)+
					muted.Render("  "+pct))
		}
	}
	if len(lines) > h {
		lines = append(lines[:h-1], muted.Render(fmt.Sprintf("… %d more", len(lines)-h+1)))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderIssues(cw int) string {
	t := theme.Active
	if len(a.issues) == 0 {
		return components.ContentCard("Readiness",
			lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface).Render("Ready to commit."), cw)
	}
	bg := lipgloss.NewStyle().Background(t.Surface)
	inner := components.CardInnerWidth(cw)
	var lines []string
	for _, i := range a.issues {
		color := t.Yellow
		if i.Severity == review.SeverityError {
			color = t.Red
		}
		lines = append(lines, bg.Foreground(color).Render(fmt.Sprintf("%-6s", i.Severity))+
			bg.Foreground(t.TextMuted).Render(truncStr(i.Message, inner-6)))
	}
	return components.ContentCard("Readiness", strings.Join(lines, "\n"), cw)
}
