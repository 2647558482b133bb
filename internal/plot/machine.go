package plot

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/rules"
	"github.com/theirongolddev/plotlog/internal/source"
)

// Session is the persistable parse state of one plot log.
type Session struct {
	PreambleCursor   int
	CompletionCursor int
	Phase            int
	TotalPhases      int
	Started          bool
	Finished         bool
	Errored          bool
	Record           model.Record
}

// State derives the lifecycle state from the session.
func (s Session) State() model.PlotState {
	switch {
	case s.Errored:
		return model.StateErrored
	case s.Finished:
		return model.StateDone
	case s.Record.Phase(s.TotalPhases).Complete():
		return model.StateCompleting
	case s.Started:
		return model.StateInPhase
	default:
		return model.StatePreamble
	}
}

// Machine is the plot log state machine. Its accessors are safe to call
// while a parser is feeding it lines.
type Machine struct {
	mu         sync.Mutex
	loc        *time.Location
	log        *slog.Logger
	preamble   *rules.Sequencer
	completion *rules.Sequencer
	phases     phaseTracker
	started    bool
	finished   bool
	err        error
	rec        model.Record
}

var _ engine.Machine[model.Record] = (*Machine)(nil)

var errRestoredFailed = errors.New("restored session had failed")

// NewMachine returns a machine that reads plotter timestamps in loc.
func NewMachine(loc *time.Location, log *slog.Logger) *Machine {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Machine{loc: loc, log: log}
	m.reset(Session{})
	return m
}

func (m *Machine) reset(s Session) {
	m.preamble = rules.NewSequencerAt(preambleRules(), s.PreambleCursor)
	m.completion = rules.NewSequencerAt(completionRules(m.loc), s.CompletionCursor)
	total := s.TotalPhases
	if total == 0 {
		total = DefaultTotalPhases
	}
	m.phases = phaseTracker{loc: m.loc, log: m.log, current: s.Phase, total: total}
	m.started = s.Started
	m.finished = s.Finished
	m.err = nil
	if s.Errored {
		m.err = errRestoredFailed
	}
	m.rec = s.Record.Clone()
	if m.rec == nil {
		m.rec = model.Record{}
	}
}

// Begin implements engine.Machine.
func (m *Machine) Begin(meta source.FileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(Session{})
	m.rec[FieldCreated] = meta.Created
	m.rec[FieldModified] = meta.Modified
}

// Resume implements engine.Machine.
func (m *Machine) Resume(meta source.FileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec[FieldModified] = meta.Modified
}

// Consume implements engine.Machine. Empty lines and lines after the
// finished event are ignored.
func (m *Machine) Consume(line string, emit engine.Emit) error {
	m.mu.Lock()
	events, err := m.consume(line)
	m.mu.Unlock()

	for _, ev := range events {
		emit(ev)
	}
	return err
}

func (m *Machine) consume(line string) ([]model.Event, error) {
	if line == "" || m.finished || m.err != nil {
		return nil, nil
	}

	if !m.started {
		_, kind, err := m.preamble.TryAdvance(line, m.rec)
		if err != nil {
			return nil, err
		}
		if kind == model.KindStarted {
			m.started = true
			return []model.Event{{Kind: model.KindStarted, Record: m.rec.Clone()}}, nil
		}
		return nil, nil
	}

	var events []model.Event
	ev, err := m.phases.track(line, m.rec)
	if err != nil {
		return events, err
	}
	if ev != nil {
		events = append(events, *ev)
	}

	if pct, ok := Progress(m.phases.current, line); ok {
		events = append(events, model.Event{Kind: model.KindProgress, Phase: m.phases.current, Percent: pct})
	}

	if m.rec.Phase(m.phases.total).Complete() {
		_, kind, err := m.completion.TryAdvance(line, m.rec)
		if err != nil {
			return events, err
		}
		if kind == model.KindFinished {
			m.finished = true
			events = append(events, model.Event{Kind: model.KindFinished, Record: m.rec.Clone()})
		}
	}
	return events, nil
}

// Flush implements engine.Machine: parseEnd always, done once finished.
func (m *Machine) Flush(emit engine.Emit) {
	m.mu.Lock()
	rec := m.rec.Clone()
	finished := m.finished
	m.mu.Unlock()

	emit(model.Event{Kind: model.KindParseEnd, Record: rec})
	if finished {
		emit(model.Event{Kind: model.KindDone, Record: rec.Clone()})
	}
}

// Finished implements engine.Machine.
func (m *Machine) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// Fail implements engine.Machine.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Result implements engine.Machine and returns a copy of the record.
func (m *Machine) Result() model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Clone()
}

// Snapshot returns a copy of the parse state.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Session{
		PreambleCursor:   m.preamble.Cursor(),
		CompletionCursor: m.completion.Cursor(),
		Phase:            m.phases.current,
		TotalPhases:      m.phases.total,
		Started:          m.started,
		Finished:         m.finished,
		Errored:          m.err != nil,
		Record:           m.rec.Clone(),
	}
}

// Restore replaces the parse state with s.
func (m *Machine) Restore(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(s)
}

// State returns the current lifecycle state.
func (m *Machine) State() model.PlotState {
	return m.Snapshot().State()
}
