package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/source"
	"github.com/theirongolddev/plotlog/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.Load()

	dir := config.GetPlotDir(cfg)
	if files, err := source.ScanDir(dir); err == nil && len(files) > 0 {
		fmt.Printf("\n  Found %s plot logs in %s\n\n", cli.FormatNumber(int64(len(files))), dir)
	}

	if _, err := tui.RunSetup(cfg); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `plotlog setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
