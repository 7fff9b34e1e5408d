package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
)

var (
	flagAck    bool
	flagCommit bool
	flagLabel  string
	flagFP     string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Show what changed since the last commit and its franchise impact",
	RunE:  runReview,
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit reviewed changes by their printed fingerprint",
	Long:  "Acknowledge the change set printed by `costfall review` by its fingerprint and commit it. Fails if the changes differ from what was reviewed.",
	RunE:  runCommit,
}

func init() {
	reviewCmd.Flags().BoolVar(&flagAck, "ack", false, "Prompt to acknowledge the changes")
	reviewCmd.Flags().BoolVar(&flagCommit, "commit", false, "Commit after acknowledging")
	reviewCmd.Flags().StringVarP(&flagLabel, "label", "l", "", "Snapshot label")
	commitCmd.Flags().StringVarP(&flagFP, "fingerprint", "f", "", "Fingerprint printed by review")
	commitCmd.Flags().StringVarP(&flagLabel, "label", "l", "", "Snapshot label")
	_ = commitCmd.MarkFlagRequired("fingerprint")
	rootCmd.AddCommand(reviewCmd, commitCmd)
}

func runReview(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	cs := sess.ws.Review()
	if cs.IsEmpty() {
		fmt.Println("\n  No changes since the last commit.")
		return nil
	}
	printChangeSet(sess, cs)
	printReadiness("Blocking Issues", sess.ws.Readiness(), true)

	if !flagAck && !flagCommit {
		fmt.Printf("\n  Commit with: costfall commit --fingerprint %s\n", cs.FingerprintHex())
		return nil
	}

	confirmed := false
	err = huh.NewConfirm().
		Title(fmt.Sprintf("Acknowledge %d change(s), fingerprint %s?", cs.Len(), cs.FingerprintHex())).
		Affirmative("Acknowledge").
		Negative("Cancel").
		Value(&confirmed).
		Run()
	if err != nil {
		return errors.Wrap(err, "prompt")
	}
	if !confirmed {
		fmt.Println("  Not acknowledged.")
		return nil
	}
	if err := sess.ws.Acknowledge(cs); err != nil {
		return err
	}
	fmt.Println(cli.OK("  Acknowledged."))

	if !flagCommit {
		return nil
	}
	return commit(cmd, sess)
}

func runCommit(cmd *cobra.Command, _ []string) error {
	fp, err := strconv.ParseUint(strings.TrimPrefix(flagFP, "0x"), 16, 64)
	if err != nil {
		return errors.Errorf("fingerprint %q is not hex", flagFP)
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.ws.AcknowledgeFingerprint(fp); err != nil {
		if errors.Is(err, review.ErrStaleChangeSet) {
			return errors.Wrap(err, "changes differ from the reviewed set, run `costfall review` again")
		}
		return err
	}
	return commit(cmd, sess)
}

func commit(cmd *cobra.Command, sess *session) error {
	snap, err := sess.ws.Commit(cmd.Context(), sess.store, flagLabel)
	if err != nil {
		if errors.Is(err, review.ErrNotReady) {
			printReadiness("Blocking Issues", review.Blocking(sess.ws.Readiness()), false)
		}
		return err
	}
	fmt.Printf("\n  %s snapshot %s (%s)\n", cli.OK("Committed"), snap.ID, snap.TakenAt.Format("2006-01-02 15:04"))
	return nil
}

func printChangeSet(sess *session, cs review.ChangeSet) {
	st := sess.ws.State()
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("REVIEW  %d change(s)", cs.Len())))
	fmt.Println()

	if len(cs.Moves) > 0 {
		rows := make([][]string, 0, len(cs.Moves))
		for _, m := range cs.Moves {
			rows = append(rows, []string{string(m.Stage), m.From, m.To, cli.FormatCount(len(m.Units)), sess.money(m.Total())})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Moves",
			Headers:  []string{"Stage", "From", "To", "Units", "Cost"},
			Rows:     rows,
			TextCols: 3,
		}))
		fmt.Println()
	}

	if cs.Cells.Len() > 0 {
		var rows [][]string
		cell := func(kind string, c review.CellChange) {
			name := c.ActivityID
			if a, ok := st.Activities[c.ActivityID]; ok {
				name = a.Name
			}
			rows = append(rows, []string{kind, name, string(c.Column),
				cli.FormatPercent(c.Before), cli.FormatPercent(c.After), cli.FormatChange(c.Delta())})
		}
		for _, c := range cs.Cells.Added {
			cell("+", c)
		}
		for _, c := range cs.Cells.Modified {
			cell("~", c)
		}
		for _, c := range cs.Cells.Removed {
			cell("-", c)
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Cells",
			Headers:  []string{"", "Activity", "Expense", "Before", "After", "Delta"},
			Rows:     rows,
			TextCols: 3,
		}))
		fmt.Println()
	}

	var entities [][]string
	for _, c := range cs.Units.Added {
		entities = append(entities, []string{"+", "unit", c.After.Name, sess.money(c.After.Total())})
	}
	for _, c := range cs.Units.Modified {
		entities = append(entities, []string{"~", "unit", c.After.Name,
			fmt.Sprintf("%s → %s", sess.money(c.Before.Total()), sess.money(c.After.Total()))})
	}
	for _, c := range cs.Units.Removed {
		entities = append(entities, []string{"-", "unit", c.Before.Name, sess.money(c.Before.Total())})
	}
	for _, c := range cs.Services.Added {
		entities = append(entities, []string{"+", "service", c.After.Name, c.After.Tower})
	}
	for _, c := range cs.Services.Modified {
		entities = append(entities, []string{"~", "service", c.After.Name, fmt.Sprintf("was %q/%s", c.Before.Name, c.Before.Tower)})
	}
	for _, c := range cs.Services.Removed {
		entities = append(entities, []string{"-", "service", c.Before.Name, ""})
	}
	for _, c := range cs.Pools.Added {
		entities = append(entities, []string{"+", "pool", c.After.Name, c.After.SourceLE})
	}
	for _, c := range cs.Pools.Modified {
		entities = append(entities, []string{"~", "pool", c.After.Name, fmt.Sprintf("was %q", c.Before.Name)})
	}
	for _, c := range cs.Pools.Removed {
		entities = append(entities, []string{"-", "pool", c.Before.Name, ""})
	}
	for _, c := range cs.Activities.Added {
		entities = append(entities, []string{"+", "activity", c.After.Name, ""})
	}
	for _, c := range cs.Activities.Modified {
		entities = append(entities, []string{"~", "activity", c.After.Name, strings.Join(c.Fields, ", ")})
	}
	for _, c := range cs.Activities.Removed {
		entities = append(entities, []string{"-", "activity", c.Before.Name, ""})
	}
	metric := func(kind string, c review.MetricChange) {
		parts := make([]string, 0, len(c.Fields))
		for _, f := range c.Fields {
			parts = append(parts, fmt.Sprintf("%s %s→%s", f.Path, f.Before, f.After))
		}
		entities = append(entities, []string{kind, "metric", c.Name, strings.Join(parts, "; ")})
	}
	for _, c := range cs.Metrics.Added {
		metric("+", c)
	}
	for _, c := range cs.Metrics.Modified {
		metric("~", c)
	}
	for _, c := range cs.Metrics.Removed {
		metric("-", c)
	}
	if len(entities) > 0 {
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Structure",
			Headers:  []string{"", "Kind", "Name", "Detail"},
			Rows:     entities,
			TextCols: 4,
		}))
		fmt.Println()
	}

	threshold := sess.cfg.ImpactThreshold()
	var impacts [][]string
	for _, imp := range cs.Significant(threshold) {
		for _, f := range imp.Franchises {
			impacts = append(impacts, []string{imp.Name, string(f.Franchise),
				sess.money(f.Before), sess.money(f.After), sess.delta(f.Delta), cli.FormatChange(f.ChangePct)})
		}
	}
	if len(impacts) > 0 {
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Franchise Impact by Activity",
			Headers:  []string{"Activity", "Franchise", "Before", "After", "Delta", "Change"},
			Rows:     impacts,
			TextCols: 2,
		}))
		fmt.Println()
	}

	printDeltas(sess, "Franchise Totals", "Franchise", cs.Before.Franchises, cs.After.Franchises)
	printDeltas(sess, "Legal Entity Totals", "Legal entity", cs.Before.LegalEntities, cs.After.LegalEntities)

	fmt.Printf("  Fingerprint: %s\n", cli.OK(cs.FingerprintHex()))
}

func printDeltas[K ~string](sess *session, title, header string, before, after map[K]decimal.Decimal) {
	keys := make(map[K]decimal.Decimal, len(after))
	for k, v := range before {
		keys[k] = v
	}
	for k, v := range after {
		keys[k] = v
	}
	var rows [][]string
	for _, a := range pipeline.SortedAmounts(keys) {
		b, f := before[a.Key], after[a.Key]
		d := f.Sub(b)
		if d.IsZero() {
			continue
		}
		rows = append(rows, []string{string(a.Key), sess.money(b), sess.money(f), sess.delta(d)})
	}
	if len(rows) == 0 {
		return
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   title,
		Headers: []string{header, "Before", "After", "Delta"},
		Rows:    rows,
	}))
	fmt.Println()
}

func printReadiness(title string, issues []review.Issue, onlyErrors bool) {
	var rows [][]string
	for _, i := range issues {
		if onlyErrors && i.Severity != review.SeverityError {
			continue
		}
		sev := cli.Warn(string(i.Severity))
		if i.Severity == review.SeverityError {
			sev = cli.Error(string(i.Severity))
		}
		rows = append(rows, []string{sev, i.Code, i.Message})
	}
	if len(rows) == 0 {
		return
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    title,
		Headers:  []string{"Severity", "Code", "Message"},
		Rows:     rows,
		TextCols: 3,
	}))
}
