package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/plotlog/internal/model"
)

// Format selects how records are written.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
}

// WriteRecord writes a parsed plot record in the given format.
func WriteRecord(w io.Writer, rec model.Record, f Format) error {
	if f == FormatText {
		_, err := io.WriteString(w, RenderRecord(rec))
		return err
	}
	return encode(w, rec, f)
}

// WriteHarvest writes collected harvester payloads keyed by event kind.
func WriteHarvest(w io.Writer, res map[model.Kind][]model.Record, stats model.HarvestStats, f Format) error {
	if f == FormatText {
		_, err := io.WriteString(w, RenderTitle("HARVESTER")+"\n\n"+RenderTable(HarvestTable(stats)))
		return err
	}
	return encode(w, res, f)
}

func encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", f)
}

// RenderRecord renders the scalar fields of a record followed by its phase
// timings.
func RenderRecord(rec model.Record) string {
	var fields, phases []string
	for k := range rec {
		if _, ok := rec[k].(*model.PhaseRecord); ok {
			phases = append(phases, k)
		} else {
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)
	slices.SortFunc(phases, func(a, b string) int {
		return phaseNum(a) - phaseNum(b)
	})

	t := Table{Title: "Record", Headers: []string{"Field", "Value"}, TextCols: 2}
	for _, k := range fields {
		t.Rows = append(t.Rows, []string{k, FormatValue(rec[k])})
	}
	out := RenderTable(t)

	if len(phases) > 0 {
		pt := Table{Title: "Phases", Headers: []string{"Phase", "Start", "End", "Duration", "CPU"}}
		for _, k := range phases {
			pt.Rows = append(pt.Rows, phaseRow(k, rec[k].(*model.PhaseRecord)))
		}
		out += "\n" + RenderTable(pt)
	}
	return out
}

// PhaseTable renders the phase timings of a typed plot view.
func PhaseTable(p model.PlotStats) Table {
	t := Table{Title: "Phases", Headers: []string{"Phase", "Start", "End", "Duration", "CPU"}}
	for i := range p.Phases {
		t.Rows = append(t.Rows, phaseRow(model.PhaseKey(i+1), &p.Phases[i]))
	}
	return t
}

func phaseRow(name string, p *model.PhaseRecord) []string {
	if !p.Complete() {
		return []string{name, FormatTime(p.StartTime), "-", "-", "-"}
	}
	return []string{
		name,
		FormatTime(p.StartTime),
		FormatTime(p.EndTime),
		FormatDuration(p.Seconds),
		FormatPercent(p.CPUPercent),
	}
}

func phaseNum(key string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(key, "phase"))
	return n
}

// FormatValue renders one record value as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case *model.PhaseRecord:
		if !val.Complete() {
			return "started " + FormatTime(val.StartTime)
		}
		return fmt.Sprintf("%s (%s CPU)", FormatDuration(val.Seconds), FormatPercent(val.CPUPercent))
	default:
		return fmt.Sprint(val)
	}
}

// FormatEvent renders an event as a single plain log line.
func FormatEvent(ev model.Event) string {
	switch ev.Kind {
	case model.KindPhaseStart, model.KindPhaseEnd:
		if ev.PhaseData == nil {
			return fmt.Sprintf("%s phase %d", ev.Kind, ev.Phase)
		}
	}
	switch ev.Kind {
	case model.KindPhaseStart:
		return fmt.Sprintf("%s phase %d started at %s", ev.Kind, ev.Phase, FormatTime(ev.PhaseData.StartTime))
	case model.KindPhaseEnd:
		return fmt.Sprintf("%s phase %d took %s", ev.Kind, ev.Phase, FormatDuration(ev.PhaseData.Seconds))
	case model.KindProgress:
		return fmt.Sprintf("%s phase %d %d%%", ev.Kind, ev.Phase, ev.Percent)
	case model.KindError:
		return fmt.Sprintf("%s %v", ev.Kind, ev.Err)
	case model.KindSignagePoint, model.KindWarning, model.KindLoad:
		keys := slices.Sorted(maps.Keys(ev.Record))
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+FormatValue(ev.Record[k]))
		}
		return fmt.Sprintf("%s %s", ev.Kind, strings.Join(parts, " "))
	default:
		return string(ev.Kind)
	}
}
