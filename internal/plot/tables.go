// Package plot parses Chia plotter logs into a single accumulated record,
// emitting lifecycle, phase and progress events along the way.
package plot

import (
	"regexp"
	"time"

	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/rules"
)

// Record fields written by the preamble and completion stages.
const (
	FieldTmpDirs          = "tmpDirs"
	FieldID               = "id"
	FieldPlotSize         = "plotSize"
	FieldBufferSize       = "bufferSize"
	FieldBuckets          = "buckets"
	FieldThreads          = "threads"
	FieldStripeSize       = "stripeSize"
	FieldFinalFileSize    = "finalFileSize"
	FieldTotalTimeSeconds = "totalTimeSeconds"
	FieldCPU              = "cpu"
	FieldFinishedTime     = "finishedTime"
	FieldCopyTimeSeconds  = "copyTimeSeconds"
	FieldCopyCPU          = "copyCpu"
	FieldCopyFinishedTime = "copyFinishedTime"
	FieldCreated          = "created"
	FieldModified         = "modified"
)

func preambleRules() []rules.Rule {
	return []rules.Rule{
		{
			Pattern: regexp.MustCompile(`Starting plotting progress into temporary dirs: ([^\s]+) and ([^\s]+)`),
			Values:  []rules.ValueSpec{rules.Append(FieldTmpDirs), rules.Append(FieldTmpDirs)},
		},
		{
			Pattern: regexp.MustCompile(`ID: ([^\s]+)`),
			Values:  []rules.ValueSpec{rules.Set(FieldID)},
		},
		{
			Pattern: regexp.MustCompile(`Plot size is: (\d+)`),
			Values:  []rules.ValueSpec{rules.As(FieldPlotSize, rules.Int)},
		},
		{
			Pattern: regexp.MustCompile(`Buffer size is: (\d+)`),
			Values:  []rules.ValueSpec{rules.As(FieldBufferSize, rules.Int)},
		},
		{
			Pattern: regexp.MustCompile(`Using (\d+) buckets`),
			Values:  []rules.ValueSpec{rules.As(FieldBuckets, rules.Int)},
		},
		{
			Pattern: regexp.MustCompile(`Using (\d+) threads of stripe size (\d+)`),
			Values:  []rules.ValueSpec{rules.As(FieldThreads, rules.Int), rules.As(FieldStripeSize, rules.Int)},
			Event:   model.KindStarted,
		},
	}
}

func completionRules(loc *time.Location) []rules.Rule {
	return []rules.Rule{
		{
			Pattern: regexp.MustCompile(`Final File size: (\d+(\.\d+)?)`),
			Values:  []rules.ValueSpec{rules.As(FieldFinalFileSize, rules.Float)},
		},
		{
			Pattern: regexp.MustCompile(`Total time = (\d+(\.\d+)?) seconds. CPU \((\d+(\.\d+)?)%\) ([^$]+)`),
			Values: []rules.ValueSpec{
				rules.As(FieldTotalTimeSeconds, rules.Float),
				rules.Skip,
				rules.As(FieldCPU, rules.Float),
				rules.Skip,
				rules.As(FieldFinishedTime, rules.PlotTime(loc)),
			},
		},
		{
			Pattern: regexp.MustCompile(`Copy time = (\d+(\.\d+)?) seconds. CPU \((\d+(\.\d+)?)%\) ([^$]+)`),
			Values: []rules.ValueSpec{
				rules.As(FieldCopyTimeSeconds, rules.Float),
				rules.Skip,
				rules.As(FieldCopyCPU, rules.Float),
				rules.Skip,
				rules.As(FieldCopyFinishedTime, rules.PlotTime(loc)),
			},
			Event: model.KindFinished,
		},
	}
}
