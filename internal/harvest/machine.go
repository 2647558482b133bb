package harvest

import (
	"sync"
	"time"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/rules"
	"github.com/theirongolddev/plotlog/internal/source"
)

// Result groups collected payloads by event. Every kind in Kinds is present.
type Result map[model.Kind][]model.Record

func newResult() Result {
	r := make(Result, len(Kinds))
	for _, k := range Kinds {
		r[k] = []model.Record{}
	}
	return r
}

// Machine classifies harvester lines. It collects the payloads of the
// current batch; Flush starts a new batch so a long tail stays bounded.
type Machine struct {
	mu        sync.Mutex
	cls       *rules.Classifier
	collected Result
}

var _ engine.Machine[Result] = (*Machine)(nil)

// NewMachine returns a machine that reads timestamps in loc.
func NewMachine(loc *time.Location) *Machine {
	if loc == nil {
		loc = time.Local
	}
	return &Machine{
		cls:       rules.NewClassifier(filters(loc)),
		collected: newResult(),
	}
}

// Begin implements engine.Machine.
func (m *Machine) Begin(source.FileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collected = newResult()
}

// Resume implements engine.Machine.
func (m *Machine) Resume(source.FileMeta) {}

// Consume implements engine.Machine.
func (m *Machine) Consume(line string, emit engine.Emit) error {
	kind, payload, ok, err := m.cls.Classify(line)
	if err != nil || !ok {
		return err
	}

	m.mu.Lock()
	m.collected[kind] = append(m.collected[kind], payload)
	m.mu.Unlock()

	emit(model.Event{Kind: kind, Record: payload.Clone()})
	return nil
}

// Flush implements engine.Machine.
func (m *Machine) Flush(emit engine.Emit) {
	m.mu.Lock()
	m.collected = newResult()
	m.mu.Unlock()
	emit(model.Event{Kind: model.KindEndParse})
}

// Finished implements engine.Machine. A harvester log never finishes.
func (m *Machine) Finished() bool { return false }

// Fail implements engine.Machine.
func (m *Machine) Fail(error) {}

// Result implements engine.Machine.
func (m *Machine) Result() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := newResult()
	for k, recs := range m.collected {
		out[k] = append(out[k], recs...)
	}
	return out
}
