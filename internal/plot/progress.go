package plot

import (
	"regexp"
	"strconv"
)

type progressStep struct {
	pattern  *regexp.Regexp
	percents []int
}

// progressTable maps the sub-step lines of phases 1 to 3 onto overall
// completion percentages. The captured table number selects the entry.
var progressTable = []progressStep{
	{regexp.MustCompile(`Computing table (\d+)`), []int{1, 6, 12, 20, 28, 36, 42}},
	{regexp.MustCompile(`Backpropagating on table (\d+)`), []int{63, 61, 58, 55, 51, 48, 43}},
	{regexp.MustCompile(`Compressing tables (\d+)`), []int{66, 73, 79, 85, 92, 98}},
}

// Progress returns the completion percentage a line reports while in the
// given phase. ok is false for phases without sub-steps, for lines that are
// not sub-steps and for table numbers outside the table.
func Progress(phase int, line string) (percent int, ok bool) {
	if phase < 1 || phase > len(progressTable) {
		return 0, false
	}
	step := progressTable[phase-1]
	m := step.pattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 || idx > len(step.percents) {
		return 0, false
	}
	return step.percents[idx-1], true
}

// AllowedProgress returns every percentage phase can report.
func AllowedProgress(phase int) []int {
	if phase < 1 || phase > len(progressTable) {
		return nil
	}
	return append([]int(nil), progressTable[phase-1].percents...)
}
