package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/tui/components"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

func (a App) renderWaterfallTab(cw int) string {
	grand := decimal.Zero
	for _, u := range a.state.Units {
		grand = grand.Add(u.Total())
	}
	attributed := pipeline.SumAmounts(a.totals.Franchises)

	unassigned := 0
	for id := range a.state.Units {
		if a.state.PoolOf[id] == "" {
			unassigned++
		}
	}

	metrics := components.MetricCardRow([]components.Metric{
		{Label: "Total cost", Value: a.money(grand), Note: fmt.Sprintf("%s units", cli.FormatCount(len(a.state.Units)))},
		{Label: "Attributed", Value: a.money(attributed), Note: sharePct(attributed, grand) + " of total"},
		{Label: "Unattributed", Value: a.money(grand.Sub(attributed)), Note: fmt.Sprintf("%d activities excluded", len(a.totals.Excluded))},
		{Label: "Pools", Value: cli.FormatCount(len(a.state.Pools)), Note: fmt.Sprintf("%d units unpooled", unassigned)},
		{Label: "Activities", Value: cli.FormatCount(len(a.state.Activities))},
	}, cw)

	widths := components.LayoutRow(cw, 2)
	left := components.CardInnerWidth(widths[0])
	right := components.CardInnerWidth(widths[1])

	top := components.CardRow([]string{
		components.ContentCard("By Service", a.renderServices(left), widths[0]),
		components.ContentCard("By Pool", a.renderPools(right), widths[1]),
	})
	bottom := components.CardRow([]string{
		components.ContentCard("By Franchise", a.renderFranchises(left, attributed), widths[0]),
		components.ContentCard("By Legal Entity", a.renderLegalEntities(right), widths[1]),
	})
	return metrics + "\n" + top + "\n" + bottom
}

func sharePct(part, whole decimal.Decimal) string {
	if !whole.IsPositive() {
		return "0%"
	}
	return cli.FormatPercent(part.Div(whole).Mul(decimal.NewFromInt(100)))
}

// amountRow renders a left label and a right-aligned amount in width w.
func amountRow(label, amount string, w int) string {
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)
	labelW := max(w-lipgloss.Width(amount)-1, 4)
	return bg.Foreground(t.TextMuted).Render(fmt.Sprintf("%-*s ", labelW, truncStr(label, labelW))) +
		bg.Foreground(t.TextPrimary).Render(amount)
}

func emptyNote(msg string) string {
	t := theme.Active
	return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render(msg)
}

func (a App) renderServices(w int) string {
	totals := pipeline.SortedTotals(a.totals.Services)
	if len(totals) == 0 {
		return emptyNote("No units assigned to a service.")
	}
	lines := make([]string, 0, len(totals))
	for _, st := range totals {
		svc := a.state.Services[st.ID]
		name := svc.Name
		if svc.Tower != "" {
			name += " · " + svc.Tower
		}
		lines = append(lines, amountRow(name, a.money(st.Total()), w))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderPools(w int) string {
	totals := pipeline.SortedTotals(a.totals.Pools)
	if len(totals) == 0 {
		return emptyNote("No units assigned to a pool.")
	}
	lines := make([]string, 0, len(totals))
	for _, pt := range totals {
		p := a.state.Pools[pt.ID]
		lines = append(lines, amountRow(fmt.Sprintf("%s (%d)", p.Name, pt.Units), a.money(pt.Total()), w))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderFranchises(w int, attributed decimal.Decimal) string {
	amounts := pipeline.SortedAmounts(a.totals.Franchises)
	if len(amounts) == 0 {
		return emptyNote("Nothing attributed to a franchise yet.")
	}
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)
	barW := min(16, w/4)
	lines := make([]string, 0, len(amounts))
	for _, f := range amounts {
		share := 0.0
		if attributed.IsPositive() {
			share = f.Amount.Div(attributed).InexactFloat64()
		}
		lines = append(lines, amountRow(string(f.Key), a.money(f.Amount), w-barW-1)+bg.Render(" ")+components.ShareBar(share, barW))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderLegalEntities(w int) string {
	amounts := pipeline.SortedAmounts(a.totals.LegalEntities)
	if len(amounts) == 0 {
		return emptyNote("Nothing attributed to a legal entity yet.")
	}
	lines := make([]string, 0, len(amounts))
	for _, le := range amounts {
		lines = append(lines, amountRow(string(le.Key), a.money(le.Amount), w))
	}
	return strings.Join(lines, "\n")
}
