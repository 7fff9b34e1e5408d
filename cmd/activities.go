package cmd

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
)

var flagPool string

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "Activity totals per expense column and franchise flows",
	RunE:  runActivities,
}

var (
	flagCapActivity string
	flagCapExpense  string
)

var capCmd = &cobra.Command{
	Use:   "cap",
	Short: "Show the overlap cap for one activity cell",
	RunE:  runCap,
}

func init() {
	activitiesCmd.Flags().StringVarP(&flagPool, "pool", "p", "", "Only activities in this pool")
	capCmd.Flags().StringVarP(&flagCapActivity, "activity", "a", "", "Activity ID")
	capCmd.Flags().StringVarP(&flagCapExpense, "expense", "e", "", "Expense column ("+fmt.Sprint(model.ExpenseColumns())+")")
	_ = capCmd.MarkFlagRequired("activity")
	_ = capCmd.MarkFlagRequired("expense")
	rootCmd.AddCommand(activitiesCmd, capCmd)
}

func runActivities(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	st := sess.ws.State()
	res := sess.ws.Totals()

	excluded := make(map[string]string, len(res.Excluded))
	for _, e := range res.Excluded {
		excluded[e.ActivityID] = e.Reason
	}

	headers := []string{"Activity", "Pool"}
	headers = append(headers, model.ExpenseColumns()...)
	headers = append(headers, "Total")

	var rows [][]string
	for _, id := range st.ActivityIDs() {
		a := st.Activities[id]
		if flagPool != "" && a.PoolID != flagPool {
			continue
		}
		t := res.Activities[id]
		row := []string{a.Name, st.Pools[a.PoolID].Name}
		for _, k := range model.Expenses() {
			row = append(row, sess.money(t.ByExpense[k]))
		}
		row = append(row, sess.money(t.Total))
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		fmt.Println("\n  No activities found.")
		return nil
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Title: "Activities", Headers: headers, Rows: rows, TextCols: 2}))
	fmt.Println()

	var flows [][]string
	for _, id := range st.ActivityIDs() {
		a := st.Activities[id]
		if flagPool != "" && a.PoolID != flagPool {
			continue
		}
		if reason, ok := excluded[id]; ok {
			flows = append(flows, []string{a.Name, cli.Muted("excluded"), reason})
			continue
		}
		for _, f := range pipeline.SortedAmounts(res.ActivityFranchises(id)) {
			flows = append(flows, []string{a.Name, string(f.Key), sess.money(f.Amount)})
		}
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "Franchise Flows",
		Headers:  []string{"Activity", "Franchise", "Amount"},
		Rows:     flows,
		TextCols: 2,
	}))
	return nil
}

func runCap(cmd *cobra.Command, _ []string) error {
	key, ok := model.ParseExpense(flagCapExpense)
	if !ok {
		return errors.Errorf("unknown expense %q, want one of %v", flagCapExpense, model.ExpenseColumns())
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	st := sess.ws.State()
	a, ok := st.Activities[flagCapActivity]
	if !ok {
		return errors.Errorf("unknown activity %q", flagCapActivity)
	}

	limit := sess.ws.Cap(a.ID, key)
	current := st.Cells.Value(a.ID, string(key))

	fmt.Println()
	rows := [][]string{
		{"Activity", a.Name},
		{"Pool", st.Pools[a.PoolID].Name},
		{"Expense", string(key)},
		{"Current", cli.FormatPercent(current)},
		{"Cap", cli.FormatPercent(limit)},
	}
	if sess.ws.OverCap(a.ID, key) {
		rows = append(rows, []string{"Status", cli.Warn("over cap")})
	} else {
		rows = append(rows, []string{"Status", cli.OK("ok")})
	}
	fmt.Print(cli.RenderTable(cli.Table{Headers: []string{"Cell", "Value"}, Rows: rows, TextCols: 2}))
	return nil
}
