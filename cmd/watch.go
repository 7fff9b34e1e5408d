package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/daemon"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/store"
)

var (
	flagWatchAddr     string
	flagWatchSchedule string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Serve pending changes over HTTP, reloading the scenario on a schedule",
	Long: "Reload the scenario on a cron schedule, diff it against the last commit and serve " +
		"/v1/status, /v1/changes, /v1/events and an SSE stream at /v1/stream.",
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagWatchAddr, "addr", "", "Listen address (default from config)")
	watchCmd.Flags().StringVar(&flagWatchSchedule, "schedule", "", `Poll schedule, cron with seconds or "@every 30s"`)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagWatchAddr != "" {
		cfg.Watch.Addr = flagWatchAddr
	}
	if flagWatchSchedule != "" {
		cfg.Watch.Schedule = flagWatchSchedule
	}
	log := newLogger(cfg)

	weights, err := cfg.Weights()
	if err != nil {
		return errors.Wrap(err, "config")
	}
	calc := pipeline.NewWaterfall(log, weights)

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = st.Close() }()

	load := func(ctx context.Context) (*review.Workspace, error) {
		res, err := pipeline.Load(cfg.General.ScenarioDir, cfg.SourceCatalog(), nil)
		if err != nil {
			return nil, errors.Wrap(err, "load scenario")
		}
		baseline, err := latestBaseline(ctx, st, log)
		if err != nil {
			return nil, err
		}
		return review.NewWorkspace(log, calc, baseline, res.State, review.Options{
			EnforceCap: cfg.Allocation.EnforceOverlapCap,
		}), nil
	}

	svc := daemon.New(log, daemon.Config{
		Schedule:       cfg.Watch.Schedule,
		Addr:           cfg.Watch.Addr,
		Threshold:      cfg.ImpactThreshold(),
		AllowedOrigins: cfg.Watch.AllowedOrigins,
	}, load)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}
