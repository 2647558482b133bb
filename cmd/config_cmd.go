package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/pipeline"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Plot log directory: %s\n", config.GetPlotDir(cfg))
	fmt.Printf("    Harvester log:      %s\n", config.GetHarvesterLog(cfg))
	tz := cfg.General.Timezone
	if tz == "" {
		tz = "local"
	}
	if _, err := cfg.Location(); err != nil {
		tz += " (invalid, using local)"
	}
	fmt.Printf("    Time zone:          %s\n", tz)
	fmt.Println()

	fmt.Println("  [Watch]")
	fmt.Printf("    Poll interval: %s\n", cfg.PollInterval())
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval:      %s\n", cfg.DaemonInterval())
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Printf("  Cache: %s\n", pipeline.CachePath())
	fmt.Println("  Run `plotlog setup` to reconfigure.")
	return nil
}
