package model

import "time"

// PlotState is the parse state of one plot log.
type PlotState string

// Plot states, in lifecycle order. Errored is absorbing.
const (
	StatePreamble   PlotState = "preamble"
	StateInPhase    PlotState = "plotting"
	StateCompleting PlotState = "completing"
	StateDone       PlotState = "done"
	StateErrored    PlotState = "errored"
)

// PlotStats is a typed view of one parsed plot log.
type PlotStats struct {
	FilePath string
	PlotID   string
	K        int64
	Buckets  int64
	Threads  int64
	TmpDirs  []string

	State       PlotState
	Phase       int // current phase, 0 before the first phase starts
	TotalPhases int
	Phases      []PhaseRecord

	StartTime time.Time
	EndTime   time.Time

	TotalSeconds float64
	CopySeconds  float64
	CPUPercent   float64
	FinalSizeGiB float64

	Created  time.Time
	Modified time.Time
	Offset   int64
}

// Finished reports whether the plot log reached its completion block.
func (p PlotStats) Finished() bool {
	return p.State == StateDone
}

// PhaseSeconds returns the duration of phase n (1-based), or 0.
func (p PlotStats) PhaseSeconds(n int) float64 {
	if n < 1 || n > len(p.Phases) {
		return 0
	}
	return p.Phases[n-1].Seconds
}
