// Package pipeline orchestrates plot log loading, caching, and aggregation.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/plotlog/internal/model"
)

// Aggregate computes farm-wide statistics from plot stats, filtered to
// plots started within the given time range.
func Aggregate(plots []model.PlotStats, since, until time.Time) model.FarmStats {
	filtered := FilterByTime(plots, since, until)

	stats := model.FarmStats{ByK: make(map[int64]int)}
	var totalSecs, copySecs float64
	var phaseSums []float64
	var phaseCounts []int

	for _, p := range filtered {
		stats.TotalPlots++
		switch p.State {
		case model.StateDone:
			stats.Finished++
		case model.StateErrored:
			stats.Errored++
		default:
			stats.InProgress++
		}
		if p.K > 0 {
			stats.ByK[p.K]++
		}

		for i, ph := range p.Phases {
			if !ph.Complete() {
				continue
			}
			for len(phaseSums) <= i {
				phaseSums = append(phaseSums, 0)
				phaseCounts = append(phaseCounts, 0)
			}
			phaseSums[i] += ph.Seconds
			phaseCounts[i]++
		}

		if !p.StartTime.IsZero() && (stats.FirstStart.IsZero() || p.StartTime.Before(stats.FirstStart)) {
			stats.FirstStart = p.StartTime
		}
		if !p.Finished() {
			continue
		}
		stats.TotalSizeGiB += p.FinalSizeGiB
		totalSecs += p.TotalSeconds
		copySecs += p.CopySeconds
		if p.EndTime.After(stats.LastEnd) {
			stats.LastEnd = p.EndTime
		}
	}

	if stats.Finished > 0 {
		stats.AvgTotalSecs = totalSecs / float64(stats.Finished)
		stats.AvgCopySecs = copySecs / float64(stats.Finished)
	}
	stats.AvgPhaseSecs = make([]float64, len(phaseSums))
	for i := range phaseSums {
		stats.AvgPhaseSecs[i] = phaseSums[i] / float64(phaseCounts[i])
	}

	// Completion rate over the span from first start to last finish
	if stats.Finished > 0 && stats.LastEnd.After(stats.FirstStart) {
		days := stats.LastEnd.Sub(stats.FirstStart).Hours() / 24
		stats.PlotsPerDay = float64(stats.Finished) / max(days, 1)
	}

	return stats
}

// AggregateDays computes per-day completions from plots, keyed by the
// local date each plot finished.
func AggregateDays(plots []model.PlotStats, since, until time.Time) []model.DailyStats {
	dayMap := make(map[string]*model.DailyStats)
	secs := make(map[string]float64)

	for _, p := range plots {
		if !p.Finished() || p.EndTime.IsZero() {
			continue
		}
		if !since.IsZero() && p.EndTime.Before(since) {
			continue
		}
		if !until.IsZero() && !p.EndTime.Before(until) {
			continue
		}
		dayKey := p.EndTime.Local().Format("2006-01-02")
		ds, ok := dayMap[dayKey]
		if !ok {
			t, _ := time.ParseInLocation("2006-01-02", dayKey, time.Local)
			ds = &model.DailyStats{Date: t}
			dayMap[dayKey] = ds
		}
		ds.Completed++
		ds.SizeGiB += p.FinalSizeGiB
		secs[dayKey] += p.TotalSeconds
	}

	// Fill in every day in the range so gaps show as zeros
	if !since.IsZero() && !until.IsZero() {
		day := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.Local)
		for day.Before(until) {
			dayKey := day.Format("2006-01-02")
			if _, ok := dayMap[dayKey]; !ok {
				dayMap[dayKey] = &model.DailyStats{Date: day}
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	// Convert to sorted slice (most recent first)
	days := make([]model.DailyStats, 0, len(dayMap))
	for key, ds := range dayMap {
		if ds.Completed > 0 {
			ds.AvgSecs = secs[key] / float64(ds.Completed)
		}
		days = append(days, *ds)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})

	return days
}

// FilterByTime returns plots whose start time falls within [since, until).
// Plots that have not started are kept only when no range is given.
func FilterByTime(plots []model.PlotStats, since, until time.Time) []model.PlotStats {
	if since.IsZero() && until.IsZero() {
		return plots
	}

	var result []model.PlotStats
	for _, p := range plots {
		if p.StartTime.IsZero() {
			continue
		}
		if !since.IsZero() && p.StartTime.Before(since) {
			continue
		}
		if !until.IsZero() && !p.StartTime.Before(until) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// FilterByState returns plots in the given state.
func FilterByState(plots []model.PlotStats, state model.PlotState) []model.PlotStats {
	if state == "" {
		return plots
	}
	var result []model.PlotStats
	for _, p := range plots {
		if p.State == state {
			result = append(result, p)
		}
	}
	return result
}

// FilterByPath returns plots whose log path contains substr.
func FilterByPath(plots []model.PlotStats, substr string) []model.PlotStats {
	if substr == "" {
		return plots
	}
	var result []model.PlotStats
	for _, p := range plots {
		if containsIgnoreCase(p.FilePath, substr) {
			result = append(result, p)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortPlots orders plots by start time, unstarted plots last, then by path.
func sortPlots(plots []model.PlotStats) {
	sort.SliceStable(plots, func(i, j int) bool {
		a, b := plots[i].StartTime, plots[j].StartTime
		switch {
		case a.IsZero() != b.IsZero():
			return !a.IsZero()
		case !a.Equal(b):
			return a.Before(b)
		}
		return plots[i].FilePath < plots[j].FilePath
	})
}
