package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/config"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runSetup(_ *cobra.Command, _ []string) error {
	path := flagConfig
	if path == "" {
		path = config.Path()
	}

	// Load existing config or defaults
	cfg, _ := config.LoadFrom(path)

	franchises := strings.Join(cfg.Catalog.Franchises, ", ")
	les := strings.Join(cfg.Catalog.LegalEntities, ", ")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Scenario directory").
				Description("Folder of *.toml scenario files").
				Value(&cfg.General.ScenarioDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Currency").
				Options(huh.NewOptions("GBP", "USD", "EUR", "JPY")...).
				Value(&cfg.General.Currency),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Franchises").
				Description("Comma-separated; leave blank to accept any").
				Value(&franchises),
			huh.NewInput().
				Title("Legal entity options").
				Description("Comma-separated; leave blank to accept any").
				Value(&les),
			huh.NewConfirm().
				Title("Reject cell values above the overlap cap?").
				Value(&cfg.Allocation.EnforceOverlapCap),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Archive driver").
				Options(huh.NewOption("Local directory", "fs"), huh.NewOption("S3 bucket", "s3")).
				Value(&cfg.Archive.Driver),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&cfg.Appearance.Theme),
		),
	)
	if err := form.Run(); err != nil {
		return errors.Wrap(err, "setup")
	}

	cfg.Catalog.Franchises = splitList(franchises)
	cfg.Catalog.LegalEntities = splitList(les)

	if err := config.Save(cfg, path); err != nil {
		return errors.Wrap(err, "saving config")
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", path)
	if cfg.Archive.Driver == "s3" {
		fmt.Println("  Set archive.s3_bucket (or COSTFALL_ARCHIVE_S3_BUCKET) before archiving.")
	}
	fmt.Println("  Run `costfall setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
