package cmd

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/export"
)

var (
	flagOut     string
	flagChanges bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write waterfall results to an xlsx workbook",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "costfall.xlsx", "Output file")
	exportCmd.Flags().BoolVar(&flagChanges, "changes", true, "Include a Changes sheet when there are uncommitted changes")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	in := export.Input{State: sess.ws.State(), Result: sess.ws.Totals()}
	if flagChanges {
		if cs := sess.ws.Review(); !cs.IsEmpty() {
			in.Changes = &cs
		}
	}

	f, err := os.Create(flagOut) //nolint:gosec // user-chosen output path
	if err != nil {
		return errors.Wrap(err, "create export")
	}
	if err := export.Write(f, in); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close export")
	}

	fmt.Printf("  Wrote %s\n", flagOut)
	return nil
}
