// Package cmd implements the plotlog CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/plot"
)

var (
	flagFormat  string
	flagTZ      string
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "plotlog [file]",
	Short: "Chia plotter and harvester log parser",
	Long: "Parse Chia plotter logs into structured records, follow plots live,\n" +
		"and summarize harvester activity.",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: setupLogging,
	RunE:              runParse,
	SilenceUsage:      true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&flagTZ, "tz", "", "Time zone of log timestamps (default from config, else local)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log parser diagnostics to stderr")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// runParse parses one plot log to completion and prints its record.
func runParse(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	format, err := cli.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := requireFile(args[0]); err != nil {
		return err
	}

	p := plot.New(args[0], plotOptions(cfg)...)
	c, err := p.Parse(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := c.Wait(cmd.Context()); err != nil {
		// The record gathered up to the failure is still worth showing.
		if rec := p.Record(); len(rec) > 0 {
			_ = cli.WriteRecord(os.Stdout, rec, format)
		}
		return err
	}
	return cli.WriteRecord(os.Stdout, p.Record(), format)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagTZ != "" {
		cfg.General.Timezone = flagTZ
	}
	return cfg, nil
}

func location(cfg config.Config) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		slog.Warn("falling back to local time", "err", err)
		return time.Local
	}
	return loc
}

func plotOptions(cfg config.Config) []plot.Option {
	return []plot.Option{
		plot.WithLocation(location(cfg)),
		plot.WithLogger(slog.Default()),
		plot.WithPollInterval(cfg.PollInterval()),
	}
}

// requireFile fails early with a readable message for a missing log.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: no such file", path)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
