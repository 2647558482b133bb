package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/harvest"
	"github.com/theirongolddev/plotlog/internal/model"
)

var flagHarvestFollow bool

var harvestCmd = &cobra.Command{
	Use:   "harvest [debug.log]",
	Short: "Summarize harvester activity from a debug log",
	Long: "Summarize signage points, proofs and lookup times from a harvester\n" +
		"debug log. With --follow, print new activity as it is logged.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().BoolVar(&flagHarvestFollow, "follow", false, "Follow the log from its current end")
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := config.GetHarvesterLog(cfg)
	if len(args) == 1 {
		path = args[0]
	}
	if err := requireFile(path); err != nil {
		return err
	}

	h := harvest.New(path,
		harvest.WithLocation(location(cfg)),
		harvest.WithLogger(slog.Default()),
		harvest.WithPollInterval(cfg.PollInterval()),
	)

	if flagHarvestFollow {
		return followHarvest(cmd, h)
	}

	c, err := h.Parse(cmd.Context())
	if err != nil {
		return err
	}
	res, err := c.Wait(cmd.Context())
	if err != nil {
		return err
	}
	return cli.WriteHarvest(os.Stdout, res, harvest.Summarize(res), format)
}

func followHarvest(cmd *cobra.Command, h *harvest.Parser) error {
	h.Subscribe(func(ev model.Event) {
		if ev.Kind == model.KindEndParse {
			return
		}
		fmt.Println(cli.FormatEvent(ev))
	})
	if err := h.WatchFrom(cmd.Context(), harvest.FromEnd); err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Following %s (ctrl+c to stop)\n", h.Path())
	}
	h.Wait()
	return nil
}
