// Package harvest classifies Chia harvester log lines into signage point,
// warning and plot load payloads.
package harvest

import (
	"regexp"
	"time"

	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/rules"
)

// Payload fields.
const (
	FieldTimestamp = "timestamp"
	FieldEligible  = "eligible"
	FieldHash      = "hash"
	FieldProofs    = "proofs"
	FieldDuration  = "duration"
	FieldPlots     = "plots"
	FieldMessage   = "message"
	FieldSize      = "size"
	FieldSizeUnit  = "sizeUnit"
	FieldTime      = "time"
)

// Kinds lists the payload events in declaration order.
var Kinds = []model.Kind{model.KindSignagePoint, model.KindWarning, model.KindLoad}

func filters(loc *time.Location) []rules.Rule {
	ts := rules.As(FieldTimestamp, rules.ISOTime(loc))
	return []rules.Rule{
		{
			Pattern: regexp.MustCompile(`^([^\s]+) harvester chia.harvester.harvester: INFO\s+(\d+) plots were eligible for farming ([^\.]+)\.\.\. Found (\d+) proofs. Time: (\d+\.\d+) s. Total (\d+) plots`),
			Values: []rules.ValueSpec{
				ts,
				rules.As(FieldEligible, rules.Int),
				rules.Set(FieldHash),
				rules.As(FieldProofs, rules.Int),
				rules.As(FieldDuration, rules.Float),
				rules.As(FieldPlots, rules.Int),
			},
			Event: model.KindSignagePoint,
		},
		{
			Pattern: regexp.MustCompile(`^([^\s]+) harvester [^:]+: WARNING\s+([^$]+)`),
			Values:  []rules.ValueSpec{ts, rules.Set(FieldMessage)},
			Event:   model.KindWarning,
		},
		{
			Pattern: regexp.MustCompile(`^([^\s]+) harvester [^:]+: INFO\s+Loaded a total of (\d+) plots of size (\d+(\.\d+)?) ([^,]+), in (\d+(\.\d+)?)`),
			Values: []rules.ValueSpec{
				ts,
				rules.As(FieldPlots, rules.Int),
				rules.As(FieldSize, rules.Float),
				rules.Skip,
				rules.Set(FieldSizeUnit),
				rules.As(FieldTime, rules.Float),
			},
			Event: model.KindLoad,
		},
	}
}
