package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Waterfall totals by service, pool, franchise and legal entity",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	st := sess.ws.State()
	res := sess.ws.Totals()

	if len(st.Units) == 0 {
		fmt.Println("\n  No cost units in the scenario.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("COST WATERFALL  %d units", len(st.Units))))
	fmt.Println()

	grand := decimal.Zero
	for _, u := range st.Units {
		grand = grand.Add(u.Total())
	}

	svcRows := make([][]string, 0, len(res.Services)+2)
	for _, t := range pipeline.SortedTotals(res.Services) {
		svc := st.Services[t.ID]
		svcRows = append(svcRows, []string{svc.Name, svc.Tower, cli.FormatCount(t.Units), cli.FormatFTE(t.FTE), sess.money(t.Total())})
	}
	svcRows = append(svcRows, cli.Separator, []string{"TOTAL", "", cli.FormatCount(len(st.Units)), "", sess.money(grand)})
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "By Service",
		Headers:  []string{"Service", "Tower", "Units", "FTE", "Cost"},
		Rows:     svcRows,
		TextCols: 2,
	}))
	fmt.Println()

	poolRows := make([][]string, 0, len(res.Pools))
	for _, t := range pipeline.SortedTotals(res.Pools) {
		p := st.Pools[t.ID]
		poolRows = append(poolRows, []string{p.Name, p.SourceLE, cli.FormatCount(t.Units), sess.money(t.Staff), sess.money(t.NonStaff), sess.money(t.Total())})
	}
	if len(poolRows) > 0 {
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "By Pool",
			Headers:  []string{"Pool", "LE", "Units", "Staff", "Non-staff", "Total"},
			Rows:     poolRows,
			TextCols: 2,
		}))
		fmt.Println()
	}

	attributed := pipeline.SumAmounts(res.Franchises)
	frRows := make([][]string, 0, len(res.Franchises)+2)
	for _, a := range pipeline.SortedAmounts(res.Franchises) {
		frRows = append(frRows, []string{string(a.Key), sess.money(a.Amount), cli.RenderBar(a.Amount, attributed, 20)})
	}
	frRows = append(frRows, cli.Separator, []string{"TOTAL", sess.money(attributed), ""})
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "By Franchise",
		Headers:  []string{"Franchise", "Amount", "Share"},
		Rows:     frRows,
		TextCols: 1,
	}))
	fmt.Println()

	leRows := make([][]string, 0, len(res.LegalEntities))
	for _, a := range pipeline.SortedAmounts(res.LegalEntities) {
		leRows = append(leRows, []string{string(a.Key), sess.money(a.Amount)})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "By Legal Entity",
		Headers: []string{"Legal entity", "Amount"},
		Rows:    leRows,
	}))

	if unattributed := grand.Sub(attributed); !unattributed.IsZero() {
		fmt.Printf("\n  %s of %s not attributed to a franchise (run `costfall validate`)\n",
			cli.Warn(sess.money(unattributed)), sess.money(grand))
	}
	if len(res.Excluded) > 0 {
		fmt.Printf("  %d activities excluded from attribution\n", len(res.Excluded))
	}
	return nil
}
