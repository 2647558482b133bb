package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/source"
)

// ErrBusy is returned when a read or watch is requested while another is
// still active on the same parser.
var ErrBusy = errors.New("parser busy: a read or watch is already active")

// DefaultPollInterval is how often a watched file is re-checked when no
// change notification arrives.
const DefaultPollInterval = time.Second

// Session identifies one pass over a file. A new session begins on Start,
// when a watched file is truncated, and when watching a finished log.
type Session struct {
	ID      uuid.UUID
	Offset  int64 // bytes consumed, including line terminators
	Errored bool
	Err     error
}

// Option configures a Parser.
type Option func(*options)

type options struct {
	log  *slog.Logger
	poll time.Duration
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPollInterval sets the fallback poll interval for Watch. Zero or less
// disables polling and relies on change notification alone.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// Parser feeds the lines of one file through a Machine and fans the
// resulting events out to subscribers. Events are delivered synchronously,
// in line order, on the goroutine doing the reading.
type Parser[T any] struct {
	path string
	m    Machine[T]
	log  *slog.Logger
	poll time.Duration

	mu        sync.Mutex
	session   *Session
	busy      bool
	cancel    context.CancelFunc
	tailDone  chan struct{}
	observers map[int]func(model.Event)
	nextObs   int
}

// New returns a parser over path driving m.
func New[T any](path string, m Machine[T], opts ...Option) *Parser[T] {
	o := options{poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return &Parser[T]{
		path:      path,
		m:         m,
		log:       o.log,
		poll:      o.poll,
		observers: make(map[int]func(model.Event)),
	}
}

// Path returns the file the parser reads.
func (p *Parser[T]) Path() string {
	return p.path
}

// Subscribe registers fn for every event and returns a function that
// removes it. Observers must not call Start, Continue or Watch on the same
// parser; Stop is safe.
func (p *Parser[T]) Subscribe(fn func(model.Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
}

// Session returns a copy of the current session, if any.
func (p *Parser[T]) Session() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Session{}, false
	}
	return *p.session, true
}

// Restore installs a previously persisted session so that Continue or Watch
// resumes from its offset. restore, if non-nil, runs while the parser is
// held and is where the machine state is put back.
func (p *Parser[T]) Restore(s Session, restore func()) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	p.mu.Lock()
	p.session = &s
	p.mu.Unlock()
	if restore != nil {
		restore()
	}
	return nil
}

// Start begins a fresh session and reads every newline-terminated line. A
// trailing fragment without a newline is left for a later Continue or
// Watch, so the session offset never points inside a line. The returned
// completion resolves with
// the machine's result once the final batch is flushed, or rejects on an
// I/O or parse error. ErrBusy is returned synchronously.
func (p *Parser[T]) Start(ctx context.Context) (*Completion[T], error) {
	return p.oneShot(ctx, true)
}

// Continue reads from the current session's offset to end of file into the
// same session. Without a usable session, or once the log has finished, it
// behaves like Start.
func (p *Parser[T]) Continue(ctx context.Context) (*Completion[T], error) {
	return p.oneShot(ctx, false)
}

func (p *Parser[T]) oneShot(ctx context.Context, fresh bool) (*Completion[T], error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	c := NewCompletion[T]()
	go p.readOnce(ctx, c, fresh)
	return c, nil
}

func (p *Parser[T]) readOnce(ctx context.Context, c *Completion[T], fresh bool) {
	if fresh {
		p.newSession()
	}
	meta, err := source.Stat(p.path)
	if err != nil {
		p.fail(err)
		p.release()
		c.Reject(err)
		return
	}
	switch {
	case fresh:
		p.m.Begin(meta)
	case p.resumable(meta) && !p.m.Finished():
		p.m.Resume(meta)
	default:
		p.newSession()
		p.m.Begin(meta)
	}

	if _, err := p.read(ctx); err != nil {
		if ctx.Err() == nil {
			p.fail(err)
		}
		p.release()
		c.Reject(err)
		return
	}
	res := p.m.Result()
	p.m.Flush(p.emit)
	p.release()
	c.Resolve(res)
}

// Watch follows the file from the current session's offset, starting a
// fresh session when there is none, when it errored, or when the log
// already finished. Only newline-terminated lines are consumed; a partial
// line waits for its newline. The watch ends by itself once the log
// finishes; otherwise it runs until Stop or ctx cancellation.
func (p *Parser[T]) Watch(ctx context.Context) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return ErrBusy
	}
	p.busy = true
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.tailDone = done
	p.mu.Unlock()

	w, err := source.NewWatcher(p.path, p.poll, p.log)
	if err != nil {
		cancel()
		p.release()
		close(done)
		return err
	}
	go p.tail(ctx, w, done)
	return nil
}

// Stop cancels an active watch. It does not wait; use Wait for that.
func (p *Parser[T]) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the most recent watch has fully stopped.
func (p *Parser[T]) Wait() {
	p.mu.Lock()
	done := p.tailDone
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Parser[T]) tail(ctx context.Context, w *source.Watcher, done chan struct{}) {
	defer close(done)
	defer p.release()
	defer func() { _ = w.Close() }()

	meta, err := source.Stat(p.path)
	if err != nil {
		p.fail(err)
		return
	}
	if p.resumable(meta) && !p.m.Finished() {
		p.m.Resume(meta)
	} else {
		p.newSession()
		p.m.Begin(meta)
	}
	if !p.batch(ctx, true) || p.finished() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Changes():
		}

		meta, err := source.Stat(p.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				p.log.Debug("watched file missing", "path", p.path)
				continue
			}
			p.fail(err)
			return
		}
		off := p.offset()
		switch {
		case meta.Size < off:
			p.log.Info("file truncated, starting new session", "path", p.path, "size", meta.Size, "offset", off)
			p.newSession()
			p.m.Begin(meta)
		case meta.Size == off:
			continue
		}
		if !p.batch(ctx, false) || p.finished() {
			return
		}
	}
}

func (p *Parser[T]) finished() bool {
	if p.m.Finished() {
		p.log.Debug("log finished, watch ends", "path", p.path)
		return true
	}
	return false
}

// batch reads the newly completed lines and flushes if any bytes were
// consumed (or force is set). It reports whether tailing should go on.
func (p *Parser[T]) batch(ctx context.Context, force bool) bool {
	n, err := p.read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.fail(err)
		}
		return false
	}
	if n > 0 || force {
		p.m.Flush(p.emit)
	}
	return true
}

// read consumes lines from the session offset and returns the number of
// bytes consumed.
func (p *Parser[T]) read(ctx context.Context) (int64, error) {
	start := p.offset()
	_, err := source.ReadLines(ctx, p.path, start, func(line string, size int64) error {
		if err := p.m.Consume(line, p.emit); err != nil {
			return err
		}
		p.mu.Lock()
		p.session.Offset += size
		p.mu.Unlock()
		return nil
	})
	return p.offset() - start, err
}

func (p *Parser[T]) emit(ev model.Event) {
	p.mu.Lock()
	if p.session != nil {
		ev.Session = p.session.ID.String()
	}
	ev.Path = p.path
	fns := make([]func(model.Event), 0, len(p.observers))
	for _, id := range slices.Sorted(maps.Keys(p.observers)) {
		fns = append(fns, p.observers[id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Parser[T]) fail(err error) {
	p.m.Fail(err)
	p.mu.Lock()
	if p.session != nil {
		p.session.Errored = true
		p.session.Err = err
	}
	p.mu.Unlock()
	p.log.Warn("parse failed", "path", p.path, "err", err)
	p.emit(model.Event{Kind: model.KindError, Err: err})
}

func (p *Parser[T]) newSession() {
	s := &Session{ID: uuid.New()}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	p.log.Debug("session started", "path", p.path, "session", s.ID.String())
}

func (p *Parser[T]) resumable(meta source.FileMeta) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && !p.session.Errored && meta.Size >= p.session.Offset
}

func (p *Parser[T]) offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.Offset
}

func (p *Parser[T]) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return ErrBusy
	}
	p.busy = true
	return nil
}

func (p *Parser[T]) release() {
	p.mu.Lock()
	cancel := p.cancel
	p.busy = false
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
