package cmd

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/logging"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/store"
	"github.com/theirongolddev/costfall/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Edit the allocation matrix and review changes interactively",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Force TrueColor so background styling always produces ANSI codes.
	lipgloss.SetColorProfile(termenv.TrueColor)

	// stderr belongs to the alt screen while the program runs.
	storePath := cfg.StorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0o750); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	logFile, err := tea.LogToFile(filepath.Join(filepath.Dir(storePath), "tui.log"), "")
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer func() { _ = logFile.Close() }()
	log := logging.NewWithWriter(logging.Config{Level: cfg.Log.Level}, logFile)

	weights, err := cfg.Weights()
	if err != nil {
		return errors.Wrap(err, "config")
	}
	calc := pipeline.NewWaterfall(log, weights)

	st, err := store.Open(storePath)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	load := func(progress pipeline.ProgressFunc) (*review.Workspace, error) {
		res, err := pipeline.Load(cfg.General.ScenarioDir, cfg.SourceCatalog(), progress)
		if err != nil {
			return nil, errors.Wrap(err, "load scenario")
		}
		for name, keys := range res.Undecoded {
			log.Warn().Str("file", name).Strs("keys", keys).Msg("unknown keys")
		}
		baseline, err := latestBaseline(ctx, st, log)
		if err != nil {
			return nil, err
		}
		return review.NewWorkspace(log, calc, baseline, res.State, review.Options{
			EnforceCap: cfg.Allocation.EnforceOverlapCap,
		}), nil
	}

	app := tui.NewApp(tui.Options{
		Load:      load,
		Committer: st,
		Currency:  cfg.General.Currency,
		Threshold: cfg.ImpactThreshold(),
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "tui")
	}
	return nil
}
