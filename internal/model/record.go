// Package model defines domain types for plotlog records, events and plot stats.
package model

import (
	"fmt"
	"maps"
	"strconv"
	"time"
)

// Record is the structured result of parsing a log: a mapping from field
// name to value. Values are string, []string, int64, float64, time.Time or
// *PhaseRecord. Fields are only ever added or merged, never removed.
type Record map[string]any

// PhaseRecord holds the timing of one numbered plotting phase. It is created
// by a phase-start line and completed by the matching phase-end line.
type PhaseRecord struct {
	StartTime  time.Time `json:"startTime" yaml:"startTime"`
	Seconds    float64   `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	CPUPercent float64   `json:"cpuPercent,omitempty" yaml:"cpuPercent,omitempty"`
	EndTime    time.Time `json:"endTime,omitzero" yaml:"endTime,omitempty"`
}

// Complete reports whether the phase-end line has been merged.
func (p *PhaseRecord) Complete() bool {
	return p != nil && !p.EndTime.IsZero()
}

// PhaseKey returns the record field name for phase n, e.g. "phase1".
func PhaseKey(n int) string {
	return "phase" + strconv.Itoa(n)
}

// Phase returns the phase sub-record for n, or nil if none was opened.
func (r Record) Phase(n int) *PhaseRecord {
	p, _ := r[PhaseKey(n)].(*PhaseRecord)
	return p
}

// String returns the field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Strings returns a list field.
func (r Record) Strings(field string) []string {
	s, _ := r[field].([]string)
	return s
}

// Int returns an integer field, or 0.
func (r Record) Int(field string) int64 {
	switch v := r[field].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns a numeric field as float64, or 0.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Time returns a date field, or the zero time.
func (r Record) Time(field string) time.Time {
	t, _ := r[field].(time.Time)
	return t
}

// Merge copies every field of other into r, overwriting existing keys.
func (r Record) Merge(other Record) {
	maps.Copy(r, other)
}

// Clone returns a deep copy, so snapshots handed to observers on other
// goroutines never alias the accumulating record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		switch val := v.(type) {
		case []string:
			out[k] = append([]string(nil), val...)
		case *PhaseRecord:
			cp := *val
			out[k] = &cp
		default:
			out[k] = v
		}
	}
	return out
}

// Without returns a clone minus the named fields. Used to compare records
// while ignoring file metadata.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Append adds value to the list field, creating it if needed.
func (r Record) Append(field, value string) error {
	switch cur := r[field].(type) {
	case nil:
		r[field] = []string{value}
	case []string:
		r[field] = append(cur, value)
	default:
		return fmt.Errorf("field %q holds %T, cannot append", field, cur)
	}
	return nil
}
