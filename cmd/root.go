// Package cmd implements the costfall CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/config"
	"github.com/theirongolddev/costfall/internal/logging"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/store"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

var (
	flagScenario   string
	flagStore      string
	flagConfig     string
	flagLogLevel   string
	flagQuiet      bool
	flagEnforceCap bool
)

var rootCmd = &cobra.Command{
	Use:           "costfall",
	Short:         "Waterfall cost allocation",
	Long:          "Allocate cost units through services, pools and activities to franchises and legal entities, and review changes before committing them.",
	RunE:          runSummary,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Error("  error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagScenario, "scenario", "s", "", "Scenario directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Snapshot database path (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error, off")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagEnforceCap, "enforce-cap", false, "Reject cell values above the overlap cap")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	if flagScenario != "" {
		cfg.General.ScenarioDir = flagScenario
	}
	if flagStore != "" {
		cfg.Store.Path = flagStore
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagEnforceCap {
		cfg.Allocation.EnforceOverlapCap = true
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}

// session is what most commands work on: the loaded scenario as the
// current state, the latest committed snapshot as the baseline.
type session struct {
	cfg   config.Config
	log   zerolog.Logger
	calc  *pipeline.Waterfall
	store *store.Store
	load  *pipeline.LoadResult
	ws    *review.Workspace
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession is the shared data loading path used by all commands.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	weights, err := cfg.Weights()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	calc := pipeline.NewWaterfall(log, weights)

	load, err := loadScenario(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	baseline, err := latestBaseline(ctx, st, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ws := review.NewWorkspace(log, calc, baseline, load.State, review.Options{
		EnforceCap: cfg.Allocation.EnforceOverlapCap,
	})
	return &session{cfg: cfg, log: log, calc: calc, store: st, load: load, ws: ws}, nil
}

// latestBaseline is the last committed snapshot. Before the first commit
// it is empty, so everything in the scenario reviews as added.
func latestBaseline(ctx context.Context, st *store.Store, log zerolog.Logger) (model.Snapshot, error) {
	baseline, err := st.Latest(ctx)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Msg("no committed snapshot, reviewing against an empty baseline")
		return model.Snapshot{}, nil
	}
	return baseline, err
}

func loadScenario(cfg config.Config) (*pipeline.LoadResult, error) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Loading scenario %s...\n", cfg.General.ScenarioDir)
	}

	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%10 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	result, err := pipeline.Load(cfg.General.ScenarioDir, cfg.SourceCatalog(), progressFn)
	if err != nil {
		return nil, errors.Wrap(err, "load scenario")
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "\r  Parsed %s records from %d files    \n",
			cli.FormatCount(result.Records), result.ParsedFiles)
		for name, keys := range result.Undecoded {
			fmt.Fprintf(os.Stderr, "  %s %s: unknown keys %v\n", cli.Warn("warning"), name, keys)
		}
	}
	return result, nil
}

func (s *session) money(d decimal.Decimal) string {
	return cli.FormatMoney(d, s.cfg.General.Currency)
}

func (s *session) delta(d decimal.Decimal) string {
	return cli.FormatDelta(d, s.cfg.General.Currency)
}
