package cmd

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/review"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the scenario for issues that block a commit",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	issues := sess.ws.Readiness()
	if len(issues) == 0 {
		fmt.Println(cli.OK("\n  Ready: no issues found."))
		return nil
	}

	fmt.Println()
	printReadiness("Readiness", issues, false)

	blocking := review.Blocking(issues)
	fmt.Printf("\n  %d issue(s), %d blocking\n", len(issues), len(blocking))
	if len(blocking) > 0 {
		return errors.Wrapf(review.ErrNotReady, "%d blocking issue(s)", len(blocking))
	}
	return nil
}
