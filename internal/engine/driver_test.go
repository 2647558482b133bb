package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/source"
)

const kindLine model.Kind = "line"

// lineMachine records every consumed line. "boom" fails, "END" finishes.
type lineMachine struct {
	mu       sync.Mutex
	begins   int
	resumes  int
	flushes  int
	lines    []string
	finished bool
	failed   error
}

func (m *lineMachine) Begin(source.FileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begins++
	m.lines = nil
	m.finished = false
	m.failed = nil
}

func (m *lineMachine) Resume(source.FileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
}

func (m *lineMachine) Consume(line string, emit Emit) error {
	if line == "boom" {
		return errors.New("boom")
	}
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return nil
	}
	m.lines = append(m.lines, line)
	if line == "END" {
		m.finished = true
	}
	m.mu.Unlock()
	emit(model.Event{Kind: kindLine, Record: model.Record{"line": line}})
	return nil
}

func (m *lineMachine) Flush(emit Emit) {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	emit(model.Event{Kind: model.KindParseEnd})
}

func (m *lineMachine) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

func (m *lineMachine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = err
}

func (m *lineMachine) Result() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

func (m *lineMachine) counts() (begins, resumes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begins, m.resumes
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func wait[T any](t *testing.T, c *Completion[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Wait(ctx)
}

// recorder collects events and forwards them to a channel.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
	ch     chan model.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan model.Event, 256)}
}

func (r *recorder) observe(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) next(t *testing.T, kind model.Kind) model.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return model.Event{}
		}
	}
}

func TestStart_ReadsWholeFile(t *testing.T) {
	path := writeLog(t, "a\r\nb\n\nc\n")
	m := &lineMachine{}
	p := New[[]string](path, m)
	rec := newRecorder()
	p.Subscribe(rec.observe)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "", "c"}, lines)
	s, ok := p.Session()
	require.True(t, ok)
	assert.Equal(t, int64(8), s.Offset)
	assert.False(t, s.Errored)

	events := rec.all()
	require.Len(t, events, 5)
	assert.Equal(t, model.KindParseEnd, events[4].Kind)
	for _, ev := range events {
		assert.Equal(t, s.ID.String(), ev.Session)
		assert.Equal(t, path, ev.Path)
	}
}

func TestStart_LeavesUnterminatedLineForContinue(t *testing.T) {
	path := writeLog(t, "a\nhal")
	m := &lineMachine{}
	p := New[[]string](path, m)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, lines)
	s, _ := p.Session()
	assert.Equal(t, int64(2), s.Offset)

	appendLog(t, path, "f\n")
	c, err = p.Continue(context.Background())
	require.NoError(t, err)
	lines, err = wait(t, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "half"}, lines)
	s, _ = p.Session()
	assert.Equal(t, int64(7), s.Offset)
}

func TestContinue_FinishedLogStartsFresh(t *testing.T) {
	path := writeLog(t, "a\nEND\n")
	m := &lineMachine{}
	p := New[[]string](path, m)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
	first, _ := p.Session()

	c, err = p.Continue(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "END"}, lines)

	s, _ := p.Session()
	assert.NotEqual(t, first.ID, s.ID)
	begins, resumes := m.counts()
	assert.Equal(t, 2, begins)
	assert.Equal(t, 0, resumes)
}

func TestStart_NewSessionEachTime(t *testing.T) {
	path := writeLog(t, "a\n")
	p := New[[]string](path, &lineMachine{})

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
	first, _ := p.Session()

	c, err = p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
	second, _ := p.Session()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Offset)
}

func TestStart_BusyWhileReading(t *testing.T) {
	path := writeLog(t, "a\nb\n")
	p := New[[]string](path, &lineMachine{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p.Subscribe(func(model.Event) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	<-entered

	_, err = p.Start(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	_, err = p.Continue(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, p.Watch(context.Background()), ErrBusy)

	close(release)
	_, err = wait(t, c)
	require.NoError(t, err)
}

func TestContinue_ResumesSameSession(t *testing.T) {
	path := writeLog(t, "a\nb\n")
	m := &lineMachine{}
	p := New[[]string](path, m)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
	first, _ := p.Session()

	appendLog(t, path, "c\n")
	c, err = p.Continue(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, lines)
	s, _ := p.Session()
	assert.Equal(t, first.ID, s.ID)
	assert.Equal(t, int64(6), s.Offset)
	begins, resumes := m.counts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, resumes)
}

func TestContinue_WithoutSessionStartsFresh(t *testing.T) {
	path := writeLog(t, "a\n")
	m := &lineMachine{}
	p := New[[]string](path, m)

	c, err := p.Continue(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, lines)
	begins, _ := m.counts()
	assert.Equal(t, 1, begins)
}

func TestRestore_ContinuesFromOffset(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")
	m := &lineMachine{}
	p := New[[]string](path, m)

	restored := false
	s := Session{ID: [16]byte{1}, Offset: 4}
	require.NoError(t, p.Restore(s, func() { restored = true }))
	assert.True(t, restored)

	c, err := p.Continue(context.Background())
	require.NoError(t, err)
	lines, err := wait(t, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, lines)

	got, _ := p.Session()
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, int64(6), got.Offset)
}

func TestStart_ConsumeErrorEndsSession(t *testing.T) {
	path := writeLog(t, "a\nboom\nb\n")
	m := &lineMachine{}
	p := New[[]string](path, m)
	rec := newRecorder()
	p.Subscribe(rec.observe)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.EqualError(t, err, "boom")

	s, _ := p.Session()
	assert.True(t, s.Errored)
	assert.Equal(t, int64(2), s.Offset)
	assert.Equal(t, []string{"a"}, m.Result())
	assert.EqualError(t, m.failed, "boom")

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, model.KindError, events[1].Kind)
	assert.EqualError(t, events[1].Err, "boom")
}

func TestStart_MissingFile(t *testing.T) {
	p := New[[]string](filepath.Join(t.TempDir(), "missing.log"), &lineMachine{})
	rec := newRecorder()
	p.Subscribe(rec.observe)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.ErrorIs(t, err, fs.ErrNotExist)

	ev := rec.next(t, model.KindError)
	assert.ErrorIs(t, ev.Err, fs.ErrNotExist)
	assert.NotEmpty(t, ev.Session)
}

func TestStart_Directory(t *testing.T) {
	p := New[[]string](t.TempDir(), &lineMachine{})
	rec := newRecorder()
	p.Subscribe(rec.observe)

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.Error(t, err)
	rec.next(t, model.KindError)

	s, _ := p.Session()
	assert.True(t, s.Errored)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	path := writeLog(t, "a\n")
	p := New[[]string](path, &lineMachine{})

	var mu sync.Mutex
	count := 0
	unsubscribe := p.Subscribe(func(model.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsubscribe()
	unsubscribe()

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestWatch_FollowsAppends(t *testing.T) {
	path := writeLog(t, "a\n")
	m := &lineMachine{}
	p := New[[]string](path, m, WithPollInterval(20*time.Millisecond))
	rec := newRecorder()
	p.Subscribe(rec.observe)

	require.NoError(t, p.Watch(context.Background()))
	assert.Equal(t, "a", rec.next(t, kindLine).Record.String("line"))
	rec.next(t, model.KindParseEnd)

	appendLog(t, path, "b\nhal")
	assert.Equal(t, "b", rec.next(t, kindLine).Record.String("line"))
	rec.next(t, model.KindParseEnd)

	appendLog(t, path, "f\n")
	assert.Equal(t, "half", rec.next(t, kindLine).Record.String("line"))

	p.Stop()
	p.Wait()

	s, _ := p.Session()
	assert.Equal(t, int64(9), s.Offset)
	assert.Equal(t, []string{"a", "b", "half"}, m.Result())

	// The parser is free again once the watch has stopped.
	c, err := p.Continue(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
}

func TestWatch_TruncationStartsNewSession(t *testing.T) {
	path := writeLog(t, "first\nsecond\n")
	m := &lineMachine{}
	p := New[[]string](path, m, WithPollInterval(20*time.Millisecond))
	rec := newRecorder()
	p.Subscribe(rec.observe)

	require.NoError(t, p.Watch(context.Background()))
	rec.next(t, model.KindParseEnd)
	before, _ := p.Session()

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
	ev := rec.next(t, kindLine)
	assert.Equal(t, "x", ev.Record.String("line"))
	assert.NotEqual(t, before.ID.String(), ev.Session)

	p.Stop()
	p.Wait()
	begins, _ := m.counts()
	assert.Equal(t, 2, begins)
}

func TestWatch_FinishedLogStartsFresh(t *testing.T) {
	path := writeLog(t, "a\nEND\n")
	m := &lineMachine{}
	p := New[[]string](path, m, WithPollInterval(20*time.Millisecond))

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = wait(t, c)
	require.NoError(t, err)
	first, _ := p.Session()

	rec := newRecorder()
	p.Subscribe(rec.observe)
	require.NoError(t, p.Watch(context.Background()))
	rec.next(t, model.KindParseEnd)
	p.Stop()
	p.Wait()

	s, _ := p.Session()
	assert.NotEqual(t, first.ID, s.ID)
	assert.Equal(t, int64(6), s.Offset)
}

func TestStop_FromObserver(t *testing.T) {
	path := writeLog(t, "a\n")
	p := New[[]string](path, &lineMachine{}, WithPollInterval(20*time.Millisecond))
	p.Subscribe(func(ev model.Event) {
		if ev.Kind == model.KindParseEnd {
			p.Stop()
		}
	})

	require.NoError(t, p.Watch(context.Background()))

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_ContextCancel(t *testing.T) {
	path := writeLog(t, "a\n")
	p := New[[]string](path, &lineMachine{}, WithPollInterval(20*time.Millisecond))
	rec := newRecorder()
	p.Subscribe(rec.observe)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Watch(ctx))
	rec.next(t, model.KindParseEnd)
	cancel()
	p.Wait()

	for _, ev := range rec.all() {
		assert.NotEqual(t, model.KindError, ev.Kind)
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	p := New[[]string](filepath.Join(t.TempDir(), "nope", "x.log"), &lineMachine{}, WithPollInterval(0))
	require.Error(t, p.Watch(context.Background()))
	p.Wait()

	// A failed watch does not leave the parser busy.
	_, err := p.Start(context.Background())
	require.NoError(t, err)
}
