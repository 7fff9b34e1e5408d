package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

// styles holds the CLI styles of the active theme.
type styles struct {
	title, header, value, muted, bar, dim lipgloss.Style
	warn, err, ok                         lipgloss.Style
	border                                lipgloss.Color
}

func current() styles {
	t := theme.Active
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return styles{
		title:  fg(t.TextPrimary).Bold(true).Align(lipgloss.Center),
		header: fg(t.Accent).Bold(true),
		value:  fg(t.TextPrimary),
		muted:  fg(t.TextMuted),
		bar:    fg(t.Cyan),
		dim:    fg(t.TextDim),
		warn:   fg(t.Orange),
		err:    fg(t.Red).Bold(true),
		ok:     fg(t.Green),
		border: t.Border,
	}
}

// OK, Warn, Error and Muted color single words or lines of command output.
func OK(s string) string    { return current().ok.Render(s) }
func Warn(s string) string  { return current().warn.Render(s) }
func Error(s string) string { return current().err.Render(s) }
func Muted(s string) string { return current().muted.Render(s) }

// Separator is a row that renders as a horizontal rule.
var Separator = []string{"---"}

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// TextCols is how many leading columns are left-aligned; the rest are
	// right-aligned. Zero means one.
	TextCols int
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	st := current()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(st.border).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)
	return box.Render(st.title.Render(title))
}

// pad fills s to w display cells.
func pad(s string, w int, left bool) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return " " + s + " "
	}
	if left {
		return " " + s + strings.Repeat(" ", gap) + " "
	}
	return " " + strings.Repeat(" ", gap) + s + " "
}

func rule(dimStyle lipgloss.Style, widths []int, l, m, r string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(l))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			b.WriteString(dimStyle.Render(m))
		}
	}
	b.WriteString(dimStyle.Render(r))
	b.WriteString("\n")
	return b.String()
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		numCols = len(t.Rows[0])
	}
	textCols := t.TextCols
	if textCols == 0 {
		textCols = 1
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	st := current()
	dimStyle, headerStyle := st.dim, st.header
	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	b.WriteString(rule(dimStyle, widths, "╭", "┬", "╮"))

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(pad(h, widths[i], true)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		b.WriteString(rule(dimStyle, widths, "├", "┼", "┤"))
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == Separator[0] {
			b.WriteString(rule(dimStyle, widths, "├", "┼", "┤"))
			continue
		}

		b.WriteString(dimStyle.Render("│"))
		for i := range numCols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(st.value.Render(pad(cell, widths[i], i < textCols)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	b.WriteString(rule(dimStyle, widths, "╰", "┴", "╯"))
	return b.String()
}

// RenderBar renders value as a share of total, e.g. for a franchise split.
func RenderBar(value, total decimal.Decimal, width int) string {
	if !total.IsPositive() || width <= 0 {
		return ""
	}
	filled := int(value.Div(total).Mul(decimal.NewFromInt(int64(width))).Round(0).IntPart())
	filled = min(max(filled, 0), width)
	st := current()
	return st.bar.Render(strings.Repeat("█", filled)) + st.muted.Render(strings.Repeat("░", width-filled))
}
