// Package rules holds the declarative pattern rules shared by the plot and
// harvester parsers: value specs that map capture groups onto record fields,
// an ordered stage sequencer, and a first-match classifier.
package rules

import (
	"fmt"

	"github.com/theirongolddev/plotlog/internal/model"
)

// Transform converts captured text into a typed field value.
type Transform func(string) (any, error)

// Merger converts captured text into a partial record merged into the target.
type Merger func(string) (model.Record, error)

type specKind int

const (
	kindSkip specKind = iota
	kindSet
	kindConvert
	kindAppend
	kindMerge
)

// ValueSpec maps one capture group onto the record. The zero value skips
// the group.
type ValueSpec struct {
	kind      specKind
	field     string
	transform Transform
	merge     Merger
}

// Skip ignores its capture group.
var Skip = ValueSpec{}

// Set assigns the captured text to field.
func Set(field string) ValueSpec {
	return ValueSpec{kind: kindSet, field: field}
}

// As assigns field after applying fn to the captured text.
func As(field string, fn Transform) ValueSpec {
	return ValueSpec{kind: kindConvert, field: field, transform: fn}
}

// Append adds the captured text to the list field, for repeated captures.
func Append(field string) ValueSpec {
	return ValueSpec{kind: kindAppend, field: field}
}

// MergeWith merges the partial record produced by fn into the target.
func MergeWith(fn Merger) ValueSpec {
	return ValueSpec{kind: kindMerge, merge: fn}
}

// Field returns the target field name ("" for Skip and MergeWith).
func (v ValueSpec) Field() string {
	return v.field
}

// Apply writes the capture groups of one match into rec. specs[i] maps
// groups[i+1]; group 0 (the whole match) is never mapped. Groups without a
// spec are ignored.
func Apply(specs []ValueSpec, groups []string, rec model.Record) error {
	for i, spec := range specs {
		idx := i + 1
		if spec.kind == kindSkip {
			continue
		}
		if idx >= len(groups) {
			return fmt.Errorf("value spec %d (%s): no capture group %d", i, spec.field, idx)
		}
		val := groups[idx]

		switch spec.kind {
		case kindSet:
			rec[spec.field] = val
		case kindConvert:
			out, err := spec.transform(val)
			if err != nil {
				return fmt.Errorf("field %s: %w", spec.field, err)
			}
			rec[spec.field] = out
		case kindAppend:
			if err := rec.Append(spec.field, val); err != nil {
				return err
			}
		case kindMerge:
			part, err := spec.merge(val)
			if err != nil {
				return fmt.Errorf("merge group %d: %w", idx, err)
			}
			rec.Merge(part)
		}
	}
	return nil
}
