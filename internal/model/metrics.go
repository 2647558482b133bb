package model

import "time"

// FarmStats holds the aggregate across a set of plot logs.
type FarmStats struct {
	TotalPlots   int
	Finished     int
	InProgress   int
	Errored      int
	ByK          map[int64]int
	TotalSizeGiB float64

	AvgTotalSecs float64
	AvgCopySecs  float64
	AvgPhaseSecs []float64 // indexed by phase-1

	FirstStart  time.Time
	LastEnd     time.Time
	PlotsPerDay float64
}

// DailyStats holds plot completions for a single calendar day.
type DailyStats struct {
	Date      time.Time
	Completed int
	SizeGiB   float64
	AvgSecs   float64
}

// HarvestStats summarises a harvester log.
type HarvestStats struct {
	SignagePoints int
	EligibleTotal int64
	ProofsFound   int64
	Warnings      int
	Plots         int64 // last reported plot count
	AvgLookupSecs float64
	MaxLookupSecs float64
	SlowLookups   int // lookups over the five-second threshold
}
