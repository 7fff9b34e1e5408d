package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func orNone(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	fmt.Printf("  Config file: %s\n", path)
	if config.Exists(path) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Printf("  Env prefix:  %s*\n", config.EnvPrefix)
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Scenario dir: %s\n", cfg.General.ScenarioDir)
	fmt.Printf("    Currency:     %s\n", cfg.General.Currency)
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level:  %s\n", cfg.Log.Level)
	fmt.Printf("    Pretty: %v\n", cfg.Log.Pretty)
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Printf("    Path: %s\n", cfg.StorePath())
	fmt.Println()

	fmt.Println("  [Allocation]")
	fmt.Printf("    Enforce overlap cap: %v\n", cfg.Allocation.EnforceOverlapCap)
	fmt.Printf("    Impact threshold:    %s\n", cfg.ImpactThreshold().String())
	fmt.Println()

	fmt.Println("  [Catalog]")
	cat := cfg.SourceCatalog()
	fmt.Printf("    Franchises:     %s\n", orNone(strings.Join(cat.Franchises, ", ")))
	fmt.Printf("    Legal entities: %s\n", orNone(strings.Join(cat.LegalEntities, ", ")))
	weights, err := cfg.Weights()
	if err != nil {
		fmt.Printf("    Non-staff split: invalid (%s)\n", err)
	} else {
		parts := make([]string, 0, len(weights))
		for _, w := range weights {
			parts = append(parts, fmt.Sprintf("%s=%s", w.Category, w.Weight.String()))
		}
		fmt.Printf("    Non-staff split: %s\n", strings.Join(parts, ", "))
	}
	fmt.Println()

	fmt.Println("  [Archive]")
	fmt.Printf("    Driver: %s\n", cfg.Archive.Driver)
	if cfg.Archive.Driver == "s3" {
		fmt.Printf("    Bucket:   %s\n", orNone(cfg.Archive.S3Bucket))
		fmt.Printf("    Region:   %s\n", orNone(cfg.Archive.S3Region))
		fmt.Printf("    Endpoint: %s\n", orNone(cfg.Archive.S3Endpoint))
	} else {
		fmt.Printf("    Dir:    %s\n", cfg.ArchiveDir())
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Watch]")
	fmt.Printf("    Addr:     %s\n", cfg.Watch.Addr)
	fmt.Printf("    Schedule: %s\n", cfg.Watch.Schedule)
	fmt.Printf("    Origins:  %s\n", orNone(strings.Join(cfg.Watch.AllowedOrigins, ", ")))
	fmt.Println()

	fmt.Println("  Run `costfall setup` to reconfigure.")
	return nil
}
