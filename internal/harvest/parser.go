package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/source"
)

// FromEnd makes WatchFrom start at the current end of the file.
const FromEnd int64 = -1

// Option configures a Parser.
type Option func(*options)

type options struct {
	loc    *time.Location
	engine []engine.Option
}

// WithLocation sets the time zone harvester timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.engine = append(o.engine, engine.WithLogger(l)) }
}

// WithPollInterval sets the fallback poll interval used when watching.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.engine = append(o.engine, engine.WithPollInterval(d)) }
}

// Parser reads a harvester debug log.
type Parser struct {
	*engine.Parser[Result]
}

// New returns a parser for the harvester log at path.
func New(path string, opts ...Option) *Parser {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser{Parser: engine.New[Result](path, NewMachine(o.loc), o.engine...)}
}

// Parse reads the whole log and resolves with every payload grouped by kind.
func (p *Parser) Parse(ctx context.Context) (*engine.Completion[Result], error) {
	return p.Start(ctx)
}

// WatchFrom follows the log starting at byte offset, or at the current end
// of file for FromEnd. An offset past the end starts over at zero.
func (p *Parser) WatchFrom(ctx context.Context, offset int64) error {
	if offset < 0 {
		meta, err := source.Stat(p.Path())
		if err != nil {
			return fmt.Errorf("watching %s: %w", p.Path(), err)
		}
		offset = meta.Size
	}
	if err := p.Restore(engine.Session{ID: uuid.New(), Offset: offset}, nil); err != nil {
		return err
	}
	return p.Watch(ctx)
}
