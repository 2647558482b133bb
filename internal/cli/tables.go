package cli

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/theirongolddev/plotlog/internal/model"
)

// PlotsTable lists plot logs, one row each.
func PlotsTable(plots []model.PlotStats) Table {
	t := Table{
		Title:    "Plots",
		Headers:  []string{"Log", "Plot ID", "State", "Phase", "k", "Started", "Total", "Size"},
		TextCols: 3,
	}
	for _, p := range plots {
		id := p.PlotID
		if len(id) > 12 {
			id = id[:12]
		}
		phase := "-"
		if p.Phase > 0 {
			phase = fmt.Sprintf("%d/%d", p.Phase, p.TotalPhases)
		}
		total := "-"
		if p.Finished() {
			total = FormatDuration(p.TotalSeconds + p.CopySeconds)
		}
		t.Rows = append(t.Rows, []string{
			filepath.Base(p.FilePath),
			id,
			RenderState(p.State),
			phase,
			strconv.FormatInt(p.K, 10),
			FormatTime(p.StartTime),
			total,
			FormatGiB(p.FinalSizeGiB),
		})
	}
	return t
}

// FarmTable summarises a set of plots.
func FarmTable(s model.FarmStats) Table {
	t := Table{Title: "Summary", Headers: []string{"Metric", "Value"}}
	t.Rows = [][]string{
		{"Plots", FormatNumber(int64(s.TotalPlots))},
		{"Finished", FormatNumber(int64(s.Finished))},
		{"In progress", FormatNumber(int64(s.InProgress))},
		{"Errored", FormatNumber(int64(s.Errored))},
		{"Total size", FormatGiB(s.TotalSizeGiB)},
		{"Plots per day", fmt.Sprintf("%.1f", s.PlotsPerDay)},
		{"---"},
		{"Avg total time", FormatDuration(s.AvgTotalSecs)},
		{"Avg copy time", FormatDuration(s.AvgCopySecs)},
	}
	for i, secs := range s.AvgPhaseSecs {
		t.Rows = append(t.Rows, []string{fmt.Sprintf("Avg phase %d", i+1), FormatDuration(secs)})
	}

	if len(s.ByK) > 0 {
		t.Rows = append(t.Rows, []string{"---"})
		for _, k := range slices.Sorted(maps.Keys(s.ByK)) {
			t.Rows = append(t.Rows, []string{fmt.Sprintf("k=%d", k), FormatNumber(int64(s.ByK[k]))})
		}
	}
	return t
}

// DaysTable lists per-day completions with a sparkline of the trend.
func DaysTable(days []model.DailyStats) Table {
	t := Table{Title: "Daily", Headers: []string{"Date", "Day", "Plots", "Size", "Avg Time"}, TextCols: 2}
	values := make([]float64, len(days))
	for i, d := range days {
		values[i] = float64(d.Completed)
		t.Rows = append(t.Rows, []string{
			d.Date.Format("2006-01-02"),
			d.Date.Format("Mon"),
			strconv.Itoa(d.Completed),
			FormatGiB(d.SizeGiB),
			FormatDuration(d.AvgSecs),
		})
	}
	if len(days) > 1 {
		t.Title += "  " + RenderSparkline(values)
	}
	return t
}

// HarvestTable summarises a harvester log.
func HarvestTable(s model.HarvestStats) Table {
	return Table{
		Title:   "Harvester",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Signage points", FormatNumber(int64(s.SignagePoints))},
			{"Eligible plots", FormatCount(s.EligibleTotal)},
			{"Proofs found", FormatNumber(s.ProofsFound)},
			{"Plots", FormatNumber(s.Plots)},
			{"Warnings", FormatNumber(int64(s.Warnings))},
			{"---"},
			{"Avg lookup", FormatSeconds(s.AvgLookupSecs)},
			{"Max lookup", FormatSeconds(s.MaxLookupSecs)},
			{"Slow lookups", FormatNumber(int64(s.SlowLookups))},
		},
	}
}
