package model

// Kind names an event emitted by a parser.
type Kind string

// Plot parser events.
const (
	KindPhaseStart Kind = "phaseStart"
	KindPhaseEnd   Kind = "phaseEnd"
	KindProgress   Kind = "progress"
	KindStarted    Kind = "started"
	KindFinished   Kind = "finished"
	KindParseEnd   Kind = "parseEnd"
	KindDone       Kind = "done"
	KindError      Kind = "error"
)

// Harvester parser events.
const (
	KindSignagePoint Kind = "signagePoint"
	KindWarning      Kind = "warning"
	KindLoad         Kind = "load"
	KindEndParse     Kind = "endParse"
)

// Event is one lifecycle, progress or payload notification. Which fields are
// set depends on Kind:
//   - phaseStart/phaseEnd: Phase, PhaseData
//   - progress:            Phase, Percent
//   - started/finished/parseEnd/done: Record (a snapshot)
//   - signagePoint/warning/load: Record (the payload)
//   - error: Err
type Event struct {
	Kind      Kind
	Session   string
	Path      string
	Phase     int
	Percent   int
	PhaseData *PhaseRecord
	Record    Record
	Err       error
}
