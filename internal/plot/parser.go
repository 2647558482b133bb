package plot

import (
	"context"
	"log/slog"
	"time"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/model"
)

// Option configures a Parser.
type Option func(*options)

type options struct {
	loc    *time.Location
	log    *slog.Logger
	engine []engine.Option
}

// WithLocation sets the time zone plotter timestamps are read in. The
// plotter writes local time without a zone; the default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
		o.engine = append(o.engine, engine.WithLogger(l))
	}
}

// WithPollInterval sets the fallback poll interval used by Watch.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.engine = append(o.engine, engine.WithPollInterval(d)) }
}

// Parser parses one plot log. Start, Continue, Watch, Stop, Wait and
// Subscribe come from the embedded engine parser.
type Parser struct {
	*engine.Parser[model.Record]
	m *Machine
}

// New returns a parser for the plot log at path.
func New(path string, opts ...Option) *Parser {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m := NewMachine(o.loc, o.log)
	return &Parser{
		Parser: engine.New[model.Record](path, m, o.engine...),
		m:      m,
	}
}

// Parse reads the whole log and resolves with the accumulated record.
func (p *Parser) Parse(ctx context.Context) (*engine.Completion[model.Record], error) {
	return p.Start(ctx)
}

// ParseFile is a convenience for a blocking one-shot parse.
func ParseFile(ctx context.Context, path string, opts ...Option) (model.Record, error) {
	c, err := New(path, opts...).Parse(ctx)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx)
}

// Record returns a copy of the record accumulated so far.
func (p *Parser) Record() model.Record {
	return p.m.Result()
}

// State returns the current lifecycle state.
func (p *Parser) State() model.PlotState {
	return p.m.State()
}

// Stats returns a typed view of the current parse.
func (p *Parser) Stats() model.PlotStats {
	s, _ := p.Session()
	return StatsOf(p.Path(), p.m.Snapshot(), s.Offset)
}

// Snapshot captures everything needed to resume this parse later. ok is
// false before the first read.
func (p *Parser) Snapshot() (snap Snapshot, ok bool) {
	s, ok := p.Session()
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{SessionID: s.ID, Offset: s.Offset, State: p.m.Snapshot()}, true
}

// Restore installs a snapshot; a following Continue or Watch resumes from
// its offset.
func (p *Parser) Restore(snap Snapshot) error {
	return p.Parser.Restore(engine.Session{ID: snap.SessionID, Offset: snap.Offset}, func() {
		p.m.Restore(snap.State)
	})
}
