package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/pipeline"
	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/store"
)

var (
	flagPlotsDays  int
	flagPlotsState string
	flagPlotsPath  string
	flagPlotsDaily bool
	flagNoCache    bool
)

var plotsCmd = &cobra.Command{
	Use:   "plots [dir]",
	Short: "Table of every plot log in a directory",
	Long: "Parse every plot log in the plotter log directory and show per-plot\n" +
		"state plus farm totals. Results are cached so later runs only read\n" +
		"what changed.",
	Args: cobra.MaximumNArgs(1),
	RunE: runPlots,
}

func init() {
	plotsCmd.Flags().IntVarP(&flagPlotsDays, "days", "n", 0, "Only plots started in the last N days (0 = all)")
	plotsCmd.Flags().StringVar(&flagPlotsState, "state", "", "Only plots in this state (preamble, plotting, completing, done, errored)")
	plotsCmd.Flags().StringVarP(&flagPlotsPath, "path", "p", "", "Only logs whose path contains this substring")
	plotsCmd.Flags().BoolVar(&flagPlotsDaily, "daily", false, "Also show completions per day")
	plotsCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite cache, reparse everything")
	rootCmd.AddCommand(plotsCmd)
}

// plotsReport is the machine-readable form of the plots command.
type plotsReport struct {
	Plots []plotRow `json:"plots" yaml:"plots"`
	Farm  farmRow   `json:"farm" yaml:"farm"`
	Days  []dayRow  `json:"days,omitempty" yaml:"days,omitempty"`
}

type plotRow struct {
	Path         string          `json:"path" yaml:"path"`
	ID           string          `json:"id,omitempty" yaml:"id,omitempty"`
	K            int64           `json:"k,omitempty" yaml:"k,omitempty"`
	State        model.PlotState `json:"state" yaml:"state"`
	Phase        int             `json:"phase" yaml:"phase"`
	Started      time.Time       `json:"started,omitzero" yaml:"started,omitempty"`
	Ended        time.Time       `json:"ended,omitzero" yaml:"ended,omitempty"`
	PhaseSeconds []float64       `json:"phase_seconds,omitempty" yaml:"phase_seconds,omitempty"`
	TotalSeconds float64         `json:"total_seconds,omitempty" yaml:"total_seconds,omitempty"`
	CopySeconds  float64         `json:"copy_seconds,omitempty" yaml:"copy_seconds,omitempty"`
	SizeGiB      float64         `json:"size_gib,omitempty" yaml:"size_gib,omitempty"`
}

type farmRow struct {
	Plots        int       `json:"plots" yaml:"plots"`
	Finished     int       `json:"finished" yaml:"finished"`
	InProgress   int       `json:"in_progress" yaml:"in_progress"`
	Errored      int       `json:"errored" yaml:"errored"`
	TotalSizeGiB float64   `json:"total_size_gib" yaml:"total_size_gib"`
	AvgSeconds   float64   `json:"avg_seconds" yaml:"avg_seconds"`
	AvgPhaseSecs []float64 `json:"avg_phase_seconds,omitempty" yaml:"avg_phase_seconds,omitempty"`
	PlotsPerDay  float64   `json:"plots_per_day" yaml:"plots_per_day"`
}

type dayRow struct {
	Date       string  `json:"date" yaml:"date"`
	Completed  int     `json:"completed" yaml:"completed"`
	SizeGiB    float64 `json:"size_gib" yaml:"size_gib"`
	AvgSeconds float64 `json:"avg_seconds" yaml:"avg_seconds"`
}

func newPlotsReport(plots []model.PlotStats, farm model.FarmStats, days []model.DailyStats) plotsReport {
	r := plotsReport{
		Plots: make([]plotRow, 0, len(plots)),
		Farm: farmRow{
			Plots:        farm.TotalPlots,
			Finished:     farm.Finished,
			InProgress:   farm.InProgress,
			Errored:      farm.Errored,
			TotalSizeGiB: farm.TotalSizeGiB,
			AvgSeconds:   farm.AvgTotalSecs,
			AvgPhaseSecs: farm.AvgPhaseSecs,
			PlotsPerDay:  farm.PlotsPerDay,
		},
	}
	for _, p := range plots {
		row := plotRow{
			Path:         p.FilePath,
			ID:           p.PlotID,
			K:            p.K,
			State:        p.State,
			Phase:        p.Phase,
			Started:      p.StartTime,
			Ended:        p.EndTime,
			TotalSeconds: p.TotalSeconds,
			CopySeconds:  p.CopySeconds,
			SizeGiB:      p.FinalSizeGiB,
		}
		for n := 1; n <= len(p.Phases); n++ {
			row.PhaseSeconds = append(row.PhaseSeconds, p.PhaseSeconds(n))
		}
		r.Plots = append(r.Plots, row)
	}
	for _, d := range days {
		r.Days = append(r.Days, dayRow{
			Date:       d.Date.Format("2006-01-02"),
			Completed:  d.Completed,
			SizeGiB:    d.SizeGiB,
			AvgSeconds: d.AvgSecs,
		})
	}
	return r
}

func runPlots(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	switch model.PlotState(flagPlotsState) {
	case "", model.StatePreamble, model.StateInPhase, model.StateCompleting, model.StateDone, model.StateErrored:
	default:
		return fmt.Errorf("unknown state %q", flagPlotsState)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := config.GetPlotDir(cfg)
	if len(args) == 1 {
		dir = args[0]
	}

	result, err := loadPlots(cmd, dir, plotOptions(cfg))
	if err != nil {
		return err
	}

	var since time.Time
	if flagPlotsDays > 0 {
		since = time.Now().AddDate(0, 0, -flagPlotsDays)
	}
	plots := pipeline.FilterByTime(result.Plots, since, time.Time{})
	plots = pipeline.FilterByState(plots, model.PlotState(flagPlotsState))
	plots = pipeline.FilterByPath(plots, flagPlotsPath)

	farm := pipeline.Aggregate(plots, since, time.Time{})
	var days []model.DailyStats
	if flagPlotsDaily {
		days = pipeline.AggregateDays(plots, since, time.Time{})
	}

	switch format {
	case cli.FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(newPlotsReport(plots, farm, days))
	case cli.FormatYAML:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(newPlotsReport(plots, farm, days)); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(plots) == 0 {
		fmt.Printf("\n  No plot logs found in %s.\n", dir)
		return nil
	}

	title := "PLOT LOGS  All time"
	if flagPlotsDays > 0 {
		title = fmt.Sprintf("PLOT LOGS  Last %dd", flagPlotsDays)
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.PlotsTable(plots)))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.FarmTable(farm)))
	if len(days) > 0 {
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.DaysTable(days)))
	}
	if result.FileErrors > 0 {
		fmt.Println()
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d logs stopped on a parse error", result.FileErrors)))
	}
	return nil
}

// loadPlots is the shared loading path. It uses the SQLite cache when
// available and falls back to a full parse.
func loadPlots(cmd *cobra.Command, dir string, opts []plot.Option) (*pipeline.LoadResult, error) {
	ctx := cmd.Context()
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", dir)
	}

	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%25 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	if !flagNoCache {
		cache, err := store.Open(pipeline.CachePath())
		if err != nil {
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full parse\n")
			}
		} else {
			defer func() { _ = cache.Close() }()

			cr, err := pipeline.LoadWithCache(ctx, dir, cache, opts, progressFn)
			if err == nil {
				if !flagQuiet && cr.TotalFiles > 0 {
					fmt.Fprintf(os.Stderr, "\r  %d cached, %d resumed, %d parsed    \n",
						cr.CacheHits, cr.Resumed, cr.Reparsed)
				}
				return &cr.LoadResult, nil
			}
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "\n  Cache error, falling back to full parse\n")
			}
		}
	}

	result, err := pipeline.Load(ctx, dir, opts, progressFn)
	if err != nil {
		return nil, err
	}
	if !flagQuiet && result.TotalFiles > 0 {
		fmt.Fprintf(os.Stderr, "\r  Parsed %s plot logs    \n", cli.FormatNumber(int64(result.ParsedFiles)))
	}
	return result, nil
}
