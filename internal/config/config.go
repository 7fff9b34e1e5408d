// Package config loads costfall settings from a TOML file with an
// environment overlay.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/source"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COSTFALL_"

// Config holds all costfall configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Log        LogConfig        `toml:"log"`
	Store      StoreConfig      `toml:"store"`
	Allocation AllocationConfig `toml:"allocation"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Archive    ArchiveConfig    `toml:"archive"`
	Appearance AppearanceConfig `toml:"appearance"`
	Watch      WatchConfig      `toml:"watch"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	ScenarioDir string `toml:"scenario_dir" env:"SCENARIO_DIR"`
	Currency    string `toml:"currency" env:"CURRENCY"`
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Pretty bool   `toml:"pretty" env:"LOG_PRETTY"`
}

// StoreConfig locates the snapshot database.
type StoreConfig struct {
	Path string `toml:"path,omitempty" env:"STORE_PATH"`
}

// AllocationConfig holds allocation policy.
type AllocationConfig struct {
	EnforceOverlapCap bool    `toml:"enforce_overlap_cap" env:"ENFORCE_OVERLAP_CAP"`
	ImpactThreshold   float64 `toml:"impact_threshold" env:"IMPACT_THRESHOLD"`
}

// CatalogConfig enumerates allowed metric keys and the non-staff split.
type CatalogConfig struct {
	Franchises      []string           `toml:"franchises" env:"FRANCHISES" envSeparator:","`
	LegalEntities   []string           `toml:"legal_entities" env:"LEGAL_ENTITIES" envSeparator:","`
	NonStaffWeights map[string]float64 `toml:"non_staff_weights,omitempty"`
}

// ArchiveConfig selects where snapshots are archived.
type ArchiveConfig struct {
	Driver      string `toml:"driver" env:"ARCHIVE_DRIVER"`
	Dir         string `toml:"dir,omitempty" env:"ARCHIVE_DIR"`
	S3Bucket    string `toml:"s3_bucket,omitempty" env:"ARCHIVE_S3_BUCKET"`
	S3Region    string `toml:"s3_region,omitempty" env:"ARCHIVE_S3_REGION"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty" env:"ARCHIVE_S3_ENDPOINT"`
	S3PathStyle bool   `toml:"s3_path_style" env:"ARCHIVE_S3_PATH_STYLE"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme" env:"THEME"`
}

// WatchConfig controls the review watcher.
type WatchConfig struct {
	Addr           string   `toml:"addr" env:"WATCH_ADDR"`
	Schedule       string   `toml:"schedule" env:"WATCH_SCHEDULE"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty" env:"WATCH_ORIGINS" envSeparator:","`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			ScenarioDir: "scenario",
			Currency:    "GBP",
		},
		Log: LogConfig{
			Level: "warn",
		},
		Allocation: AllocationConfig{
			ImpactThreshold: 1,
		},
		Archive: ArchiveConfig{
			Driver: "fs",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Watch: WatchConfig{
			Addr:     "127.0.0.1:8787",
			Schedule: "@every 30s",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "costfall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "costfall")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory holding the store and
// the default archive.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "costfall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "costfall")
}

// Load reads the default config file.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path, returning defaults if it doesn't
// exist, then applies .env files and COSTFALL_* variables.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's own flag or XDG dir
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	case !os.IsNotExist(err):
		return cfg, errors.Wrap(err, "read config")
	}

	if err := loadDotEnv(".env", filepath.Join(Dir(), ".env")); err != nil {
		return cfg, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, errors.Wrap(err, "parse environment")
	}
	return cfg, nil
}

// loadDotEnv loads whichever of files exist. Variables already set win.
func loadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "load .env")
	}
	return nil
}

// Save writes the config to path.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // see LoadFrom
	if err != nil {
		return errors.Wrap(err, "create config file")
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StorePath is the configured snapshot database, or one in DataDir.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(DataDir(), "snapshots.db")
}

// ArchiveDir is the configured fs archive directory, or one in DataDir.
func (c Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(DataDir(), "archive")
}

// ImpactThreshold is the smallest franchise delta worth reporting.
func (c Config) ImpactThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Allocation.ImpactThreshold)
}

// Weights returns the non-staff split in expense order. Unset categories
// weigh 0; with no weights configured the default split applies.
func (c Config) Weights() (pipeline.Weights, error) {
	if len(c.Catalog.NonStaffWeights) == 0 {
		return pipeline.DefaultNonStaffWeights, nil
	}
	byKey := make(map[model.ExpenseKey]float64, len(c.Catalog.NonStaffWeights))
	for name, w := range c.Catalog.NonStaffWeights {
		key, ok := model.ParseExpense(name)
		if !ok || key == model.ExpenseStaff {
			return nil, errors.Errorf("non_staff_weights: unknown category %q", name)
		}
		if w < 0 {
			return nil, errors.Errorf("non_staff_weights: %s is negative", name)
		}
		byKey[key] = w
	}
	out := make(pipeline.Weights, 0, len(model.NonStaffExpenses))
	for _, key := range model.NonStaffExpenses {
		out = append(out, pipeline.Weight{Category: key, Weight: decimal.NewFromFloat(byKey[key])})
	}
	return out, nil
}

// SourceCatalog returns the trimmed franchise and LE lists scenarios are
// validated against.
func (c Config) SourceCatalog() source.Catalog {
	clean := func(in []string) []string {
		var out []string
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
		return out
	}
	return source.Catalog{
		Franchises:    clean(c.Catalog.Franchises),
		LegalEntities: clean(c.Catalog.LegalEntities),
	}
}
