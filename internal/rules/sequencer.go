package rules

import (
	"regexp"

	"github.com/theirongolddev/plotlog/internal/model"
)

// Rule is an immutable pattern definition: one value spec per capture
// group, and an optional lifecycle event fired when the rule matches.
type Rule struct {
	Pattern *regexp.Regexp
	Values  []ValueSpec
	Event   model.Kind
}

// Match returns the capture groups of the first match in line, or nil.
func (r Rule) Match(line string) []string {
	return r.Pattern.FindStringSubmatch(line)
}

// Sequencer walks an ordered list of rules. Stage K+1 is only attempted
// once stage K has matched on an earlier line; non-matching lines leave the
// cursor where it is. The cursor never skips or rewinds.
type Sequencer struct {
	stages []Rule
	cursor int
}

// NewSequencer returns a sequencer positioned at the first stage.
func NewSequencer(stages []Rule) *Sequencer {
	return &Sequencer{stages: stages}
}

// NewSequencerAt returns a sequencer positioned at cursor. It is used to
// restore a persisted session; cursor is clamped to the stage range.
func NewSequencerAt(stages []Rule, cursor int) *Sequencer {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(stages) {
		cursor = len(stages)
	}
	return &Sequencer{stages: stages, cursor: cursor}
}

// Cursor returns the index of the next stage to be attempted.
func (s *Sequencer) Cursor() int {
	return s.cursor
}

// Exhausted reports whether every stage has matched.
func (s *Sequencer) Exhausted() bool {
	return s.cursor >= len(s.stages)
}

// TryAdvance attempts the current stage against line. On a match the
// stage's value specs are applied to rec, the cursor advances by one and the
// stage's lifecycle event (possibly "") is returned.
func (s *Sequencer) TryAdvance(line string, rec model.Record) (bool, model.Kind, error) {
	if s.Exhausted() {
		return false, "", nil
	}
	stage := s.stages[s.cursor]
	groups := stage.Match(line)
	if groups == nil {
		return false, "", nil
	}
	if err := Apply(stage.Values, groups, rec); err != nil {
		return false, "", err
	}
	s.cursor++
	return true, stage.Event, nil
}
