package plot

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/rules"
)

// DefaultTotalPhases is assumed until a phase-start line says otherwise.
const DefaultTotalPhases = 4

var (
	phaseStartRe = regexp.MustCompile(`Starting phase (\d+)/(\d+): .*?\.\.\.\s([^$]+)`)
	phaseEndRe   = regexp.MustCompile(`Time for phase (\d+) = (\d+(\.\d+)?) seconds. CPU \((\d+(\.\d+)?)%\) ([^$]+)`)
)

// phaseTracker opens a phase record on each phase-start line and completes
// it on the matching phase-end line.
type phaseTracker struct {
	loc     *time.Location
	log     *slog.Logger
	current int
	total   int
}

// track checks line for a phase boundary. It returns the event to emit, if
// any. A phase end without a recorded start is logged and skipped.
func (t *phaseTracker) track(line string, rec model.Record) (*model.Event, error) {
	if m := phaseStartRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("phase number %q: %w", m[1], err)
		}
		total, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("phase count %q: %w", m[2], err)
		}
		start, err := rules.ParsePlotTime(m[3], t.loc)
		if err != nil {
			return nil, fmt.Errorf("phase %d start: %w", n, err)
		}

		data := &model.PhaseRecord{StartTime: start}
		rec[model.PhaseKey(n)] = data
		t.current = n
		t.total = total
		cp := *data
		return &model.Event{Kind: model.KindPhaseStart, Phase: n, PhaseData: &cp}, nil
	}

	m := phaseEndRe.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("phase number %q: %w", m[1], err)
	}
	data := rec.Phase(n)
	if data == nil {
		t.log.Warn("phase end without start", "phase", n)
		return nil, nil
	}

	secs, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, fmt.Errorf("phase %d seconds: %w", n, err)
	}
	cpu, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return nil, fmt.Errorf("phase %d cpu: %w", n, err)
	}
	end, err := rules.ParsePlotTime(m[6], t.loc)
	if err != nil {
		return nil, fmt.Errorf("phase %d end: %w", n, err)
	}

	data.Seconds = secs
	data.CPUPercent = cpu
	data.EndTime = end
	cp := *data
	return &model.Event{Kind: model.KindPhaseEnd, Phase: n, PhaseData: &cp}, nil
}
