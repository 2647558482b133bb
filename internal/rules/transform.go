package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts written by the plotter and the harvester. Fractional
// seconds after the seconds field are accepted when parsing ISO times.
const (
	PlotTimeLayout = "Mon Jan 2 15:04:05 2006"
	ISOTimeLayout  = "2006-01-02T15:04:05"
)

// Int parses a base-10 integer.
func Int(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing integer %q: %w", s, err)
	}
	return n, nil
}

// Float parses a decimal number.
func Float(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing number %q: %w", s, err)
	}
	return f, nil
}

// PlotTime returns a transform for plotter timestamps such as
// "Sat May  8 09:38:18 2021", interpreted in loc.
func PlotTime(loc *time.Location) Transform {
	return func(s string) (any, error) {
		return ParsePlotTime(s, loc)
	}
}

// ParsePlotTime parses a plotter timestamp in loc. Runs of whitespace are
// collapsed first so both padded and unpadded day numbers parse.
func ParsePlotTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	norm := strings.Join(strings.Fields(s), " ")
	t, err := time.ParseInLocation(PlotTimeLayout, norm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing plot timestamp %q: %w", s, err)
	}
	return t, nil
}

// ISOTime returns a transform for harvester timestamps such as
// "2021-05-22T15:38:49.837", interpreted in loc.
func ISOTime(loc *time.Location) Transform {
	return func(s string) (any, error) {
		if loc == nil {
			loc = time.Local
		}
		t, err := time.ParseInLocation(ISOTimeLayout, strings.TrimSpace(s), loc)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
		return t, nil
	}
}
