package cmd

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/archive"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/config"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/store"
)

var flagSnapshotID string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Committed snapshot history",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed snapshots, newest first",
	RunE:  runSnapshotList,
}

var snapshotArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy a committed snapshot to the configured archive",
	RunE:  runSnapshotArchive,
}

var snapshotArchivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List archived snapshots",
	RunE:  runSnapshotArchived,
}

func init() {
	snapshotArchiveCmd.Flags().StringVar(&flagSnapshotID, "id", "", "Snapshot ID (default latest)")
	snapshotCmd.AddCommand(snapshotListCmd, snapshotArchiveCmd, snapshotArchivedCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func openStore() (config.Config, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return cfg, nil, errors.Wrap(err, "open store")
	}
	return cfg, st, nil
}

func openArchive(ctx context.Context, cfg config.Config) (archive.Store, error) {
	return archive.Open(ctx, archive.Config{
		Driver: cfg.Archive.Driver,
		Dir:    cfg.ArchiveDir(),
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3Bucket,
			Region:    cfg.Archive.S3Region,
			Endpoint:  cfg.Archive.S3Endpoint,
			PathStyle: cfg.Archive.S3PathStyle,
		},
	})
}

func runSnapshotList(cmd *cobra.Command, _ []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("\n  No snapshots committed yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID, e.Label, e.TakenAt.Local().Format("2006-01-02 15:04"), cli.FormatAgo(e.TakenAt),
			cli.FormatCount(e.Units), cli.FormatCount(e.Activities), cli.FormatBytes(int64(e.Size)),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "Snapshots",
		Headers:  []string{"ID", "Label", "Taken", "", "Units", "Activities", "Size"},
		Rows:     rows,
		TextCols: 4,
	}))
	return nil
}

func runSnapshotArchive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var snap model.Snapshot
	if flagSnapshotID != "" {
		snap, err = st.Get(ctx, flagSnapshotID)
	} else {
		snap, err = st.Latest(ctx)
	}
	if err != nil {
		return err
	}
	data, err := st.Payload(ctx, snap.ID)
	if err != nil {
		return err
	}

	arc, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	info, err := arc.Put(ctx, archive.KeyFor(snap), data)
	if errors.Is(err, archive.ErrExists) {
		fmt.Printf("  Snapshot %s is already archived.\n", snap.ID)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "archive snapshot")
	}

	newLogger(cfg).Info().Str("snapshot", snap.ID).Str("driver", string(arc.Driver())).Str("key", info.Key).Msg("snapshot archived")
	fmt.Printf("  Archived %s to %s:%s (%s)\n", snap.ID, arc.Driver(), info.Key, cli.FormatBytes(info.Size))
	return nil
}

func runSnapshotArchived(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	arc, err := openArchive(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	infos, err := arc.List(cmd.Context(), "snapshots/")
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("\n  Archive is empty.")
		return nil
	}
	rows := make([][]string, 0, len(infos))
	for _, i := range infos {
		rows = append(rows, []string{i.Key, cli.FormatAgo(i.LastModified), cli.FormatBytes(i.Size)})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    fmt.Sprintf("Archive (%s)", arc.Driver()),
		Headers:  []string{"Key", "Archived", "Size"},
		Rows:     rows,
		TextCols: 2,
	}))
	return nil
}
