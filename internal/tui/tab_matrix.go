package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/tui/components"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

const matrixColW = 12

type matrixState struct {
	pool    int
	row     int
	col     int
	editing bool
	input   textinput.Model
	preview percent.Parsed
}

func clampIdx(i, n int) int {
	if i >= n {
		i = n - 1
	}
	return max(i, 0)
}

func (m *matrixState) clamp(s *model.State) {
	pools := s.PoolIDs()
	m.pool = clampIdx(m.pool, len(pools))
	rows := 0
	if len(pools) > 0 {
		rows = len(s.ActivitiesIn(pools[m.pool]))
	}
	m.row = clampIdx(m.row, rows)
	m.col = clampIdx(m.col, len(model.Expenses()))
}

func (a App) poolID() string {
	pools := a.state.PoolIDs()
	if len(pools) == 0 {
		return ""
	}
	return pools[a.matrix.pool]
}

func (a App) matrixRows() []string {
	id := a.poolID()
	if id == "" {
		return nil
	}
	return a.state.ActivitiesIn(id)
}

func (a App) selectedCell() (string, model.ExpenseKey, bool) {
	rows := a.matrixRows()
	if len(rows) == 0 {
		return "", "", false
	}
	return rows[a.matrix.row], model.Expenses()[a.matrix.col], true
}

func newCellInput(value string) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "0"
	in.CharLimit = len("100.00")
	in.Width = matrixColW - 3
	in.SetValue(value)
	in.Focus()
	return in
}

func (a App) updateMatrix(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		a.matrix.row = max(a.matrix.row-1, 0)
	case "down", "j":
		a.matrix.row = clampIdx(a.matrix.row+1, len(a.matrixRows()))
	case "left", "h":
		a.matrix.col = max(a.matrix.col-1, 0)
	case "right", "l":
		a.matrix.col = clampIdx(a.matrix.col+1, len(model.Expenses()))
	case "[":
		a.matrix.pool = max(a.matrix.pool-1, 0)
		a.matrix.row = 0
	case "]":
		a.matrix.pool = clampIdx(a.matrix.pool+1, len(a.state.Pools))
		a.matrix.row = 0
	case "enter":
		id, key, ok := a.selectedCell()
		if !ok {
			return a, nil
		}
		raw, staged := a.ws.Draft(id, key)
		if !staged {
			if v := a.state.Cells.Value(id, string(key)); !v.IsZero() {
				raw = v.String()
			}
		}
		a.matrix.editing = true
		a.matrix.input = newCellInput(raw)
		a.matrix.preview = percent.Parse(raw)
		a.setStatus("", false)
		return a, textinput.Blink
	case "x":
		id, key, ok := a.selectedCell()
		if !ok {
			return a, nil
		}
		if v, clamped := a.ws.ClampCell(id, key); clamped {
			a.setStatus(fmt.Sprintf("clamped %s/%s to %s", id, key, cli.FormatPercent(v)), false)
			a.refresh()
		} else {
			a.setStatus("cell is within its cap", false)
		}
	case "d":
		id, key, ok := a.selectedCell()
		if !ok {
			return a, nil
		}
		if _, err := a.ws.SetCell(id, key, decimal.Zero); err != nil {
			a.setStatus(err.Error(), true)
			return a, nil
		}
		a.setStatus(fmt.Sprintf("cleared %s/%s", id, key), false)
		a.refresh()
	}
	return a, nil
}

// updateCellInput handles keys while a cell editor is open. Keystrokes that
// would make the text an invalid percentage are dropped.
func (a App) updateCellInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id, key, ok := a.selectedCell()
	if !ok {
		a.matrix.editing = false
		return a, nil
	}

	switch msg.String() {
	case "enter":
		a.matrix.editing = false
		if _, staged := a.ws.Draft(id, key); !staged {
			return a, nil
		}
		v, err := a.ws.CommitCell(id, key)
		if err != nil {
			a.setStatus(err.Error(), true)
		} else {
			a.setStatus(fmt.Sprintf("%s/%s = %s", id, key, cli.FormatPercent(v)), false)
		}
		a.refresh()
		return a, nil
	case "esc":
		a.ws.DiscardCell(id, key)
		a.matrix.editing = false
		a.setStatus("edit discarded", false)
		return a, nil
	}

	prev := a.matrix.input.Value()
	var cmd tea.Cmd
	a.matrix.input, cmd = a.matrix.input.Update(msg)
	raw := a.matrix.input.Value()
	if raw == prev {
		return a, cmd
	}
	p := a.ws.EditCell(id, key, raw)
	if !p.Valid {
		a.matrix.input.SetValue(prev)
		a.setStatus(p.Reason, true)
		return a, cmd
	}
	a.matrix.preview = p
	a.setStatus("", false)
	return a, cmd
}

func (a App) renderMatrixTab(cw int) string {
	t := theme.Active
	poolID := a.poolID()
	if poolID == "" {
		return components.ContentCard("Allocation Matrix",
			"No cost pools yet. Create them with `costfall pools suggest`.", cw)
	}
	pool := a.state.Pools[poolID]
	rows := a.matrixRows()

	bg := lipgloss.NewStyle().Background(t.Surface)
	muted := bg.Foreground(t.TextMuted)
	head := bg.Foreground(t.TextMuted).Bold(true)
	text := bg.Foreground(t.TextPrimary)
	dim := bg.Foreground(t.TextDim)
	over := bg.Foreground(t.Orange).Bold(true)
	selected := lipgloss.NewStyle().Background(t.SurfaceHover).Foreground(t.AccentBright).Bold(true)

	inner := components.CardInnerWidth(cw)
	keys := model.Expenses()
	nameW := max(inner-len(keys)*matrixColW, 12)

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s\n\n",
		text.Bold(true).Render(pool.Name),
		muted.Render(fmt.Sprintf("  LE %s · service %s", pool.SourceLE, pool.ServiceID)),
		dim.Render(fmt.Sprintf("   pool %d/%d  [ ]", a.matrix.pool+1, len(a.state.Pools))))

	b.WriteString(head.Render(fmt.Sprintf("%-*s", nameW, "Activity")))
	for _, k := range keys {
		b.WriteString(head.Render(fmt.Sprintf("%*s", matrixColW, k)))
	}
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(dim.Render("No activities in this pool."))
	}
	for r, id := range rows {
		act := a.state.Activities[id]
		b.WriteString(text.Render(fmt.Sprintf("%-*s", nameW, truncStr(act.Name, nameW-1))))
		for c, k := range keys {
			v := a.state.Cells.Value(id, string(k))
			cell := fmt.Sprintf("%*s", matrixColW, cli.FormatPercent(v))
			style := text
			switch {
			case v.GreaterThan(pipeline.CapFor(a.state, id, k)):
				style = over
			case v.IsZero():
				style = dim
				cell = fmt.Sprintf("%*s", matrixColW, "·")
			}
			if r == a.matrix.row && c == a.matrix.col {
				if a.matrix.editing {
					cell = lipgloss.PlaceHorizontal(matrixColW, lipgloss.Right, a.matrix.input.View()+" ")
				}
				style = selected
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteString("\n")
	}

	if len(rows) > 0 {
		b.WriteString(muted.Render(strings.Repeat("─", nameW+len(keys)*matrixColW)))
		b.WriteString("\n")
		b.WriteString(head.Render(fmt.Sprintf("%-*s", nameW, "Column total")))
		for _, k := range keys {
			total := a.state.Cells.ColumnTotal(string(k), rows...)
			style := bg.Foreground(t.Red)
			if a.state.Cells.IsColumnValid(string(k), rows...) {
				style = bg.Foreground(t.Green)
			}
			b.WriteString(style.Render(fmt.Sprintf("%*s", matrixColW, cli.FormatPercent(total))))
		}
	}

	title := "Allocation Matrix"
	card := components.ContentCard
	if a.matrix.editing {
		title = "Allocation Matrix · editing"
		card = components.FocusCard
	}
	out := card(title, b.String(), cw)

	if len(rows) == 0 {
		return out
	}
	widths := components.LayoutRow(cw, 2)
	return out + "\n" + components.CardRow([]string{
		components.ContentCard("Cell", a.renderCellDetail(components.CardInnerWidth(widths[0])), widths[0]),
		components.ContentCard("Franchise Flows", a.renderActivityFlows(components.CardInnerWidth(widths[1])), widths[1]),
	})
}

func (a App) renderCellDetail(w int) string {
	t := theme.Active
	id, key, _ := a.selectedCell()
	act := a.state.Activities[id]

	bg := lipgloss.NewStyle().Background(t.Surface)
	label := bg.Foreground(t.TextMuted)
	value := bg.Foreground(t.TextPrimary)

	current := a.state.Cells.Value(id, string(key))
	limit := pipeline.CapFor(a.state, id, key)
	amount := a.totals.Activities[id].ByExpense[key]

	line := func(k, v string) string {
		return label.Render(fmt.Sprintf("%-10s", k)) + value.Render(v) + "\n"
	}

	var b strings.Builder
	b.WriteString(line("Activity", act.Name+" ("+id+")"))
	b.WriteString(line("Expense", string(key)))
	metric := act.MetricID
	if metric == "" {
		metric = "none"
	}
	b.WriteString(line("Metric", metric))
	b.WriteString(line("Units", cli.FormatCount(len(a.state.EffectiveUnits(id)))))
	b.WriteString(line("Value", cli.FormatPercent(current)))
	if a.matrix.editing && a.matrix.preview.Valid {
		b.WriteString(line("Draft", cli.FormatPercent(a.matrix.preview.Value)))
	}
	b.WriteString(line("Cap", cli.FormatPercent(limit)))
	b.WriteString(line("Amount", a.money(amount)))

	used := 0.0
	switch {
	case limit.IsPositive():
		used = current.Div(limit).InexactFloat64()
	case current.IsPositive():
		used = 2
	}
	b.WriteString(components.UsageBar("Cap use", used, 10, max(w-10-7, 8)))
	return b.String()
}

func (a App) renderActivityFlows(w int) string {
	t := theme.Active
	id, _, _ := a.selectedCell()
	bg := lipgloss.NewStyle().Background(t.Surface)
	muted := bg.Foreground(t.TextMuted)
	value := bg.Foreground(t.TextPrimary)

	for _, e := range a.totals.Excluded {
		if e.ActivityID == id {
			return bg.Foreground(t.Yellow).Render("Excluded: " + e.Reason)
		}
	}

	flows := a.totals.ActivityFranchises(id)
	if len(flows) == 0 {
		return muted.Render("Nothing attributed yet.")
	}
	total := pipeline.SumAmounts(flows)
	var b strings.Builder
	for _, f := range pipeline.SortedAmounts(flows) {
		share := 0.0
		if total.IsPositive() {
			share = f.Amount.Div(total).InexactFloat64()
		}
		amt := a.money(f.Amount)
		nameW := max(w-lipgloss.Width(amt)-12, 8)
		b.WriteString(muted.Render(fmt.Sprintf("%-*s", nameW, truncStr(string(f.Key), nameW-1))))
		b.WriteString(components.ShareBar(share, 10))
		b.WriteString(value.Render(" " + amt))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
