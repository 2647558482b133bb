package plot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/model"
)

const (
	fullLog     = "testdata/plot-log.txt"
	unfinishLog = "testdata/plot-log-unfinished.txt"
	plotID      = "1553a1f4a9bb4d36a8a81e4334854c36d8abec1f192c362a28bd935fb035a03c"
)

func at(h, m, s int) time.Time {
	return time.Date(2021, time.May, 8, h, m, s, 0, time.UTC)
}

func preambleRecord() model.Record {
	return model.Record{
		FieldTmpDirs:    []string{"/foobar", "/foobar"},
		FieldID:         plotID,
		FieldPlotSize:   int64(32),
		FieldBufferSize: int64(3390),
		FieldBuckets:    int64(128),
		FieldThreads:    int64(2),
		FieldStripeSize: int64(65536),
	}
}

func finishedRecord() model.Record {
	rec := preambleRecord()
	rec["phase1"] = &model.PhaseRecord{StartTime: at(9, 38, 18), Seconds: 9998.132, CPUPercent: 145.15, EndTime: at(12, 24, 56)}
	rec["phase2"] = &model.PhaseRecord{StartTime: at(12, 24, 56), Seconds: 4188.688, CPUPercent: 98.23, EndTime: at(13, 34, 45)}
	rec["phase3"] = &model.PhaseRecord{StartTime: at(13, 34, 45), Seconds: 7607.997, CPUPercent: 98.21, EndTime: at(15, 41, 33)}
	rec["phase4"] = &model.PhaseRecord{StartTime: at(15, 41, 33), Seconds: 552.296, CPUPercent: 99.46, EndTime: at(15, 50, 45)}
	rec[FieldFinalFileSize] = 101.42
	rec[FieldTotalTimeSeconds] = 22347.115
	rec[FieldCPU] = 119.24
	rec[FieldFinishedTime] = at(15, 50, 45)
	rec[FieldCopyTimeSeconds] = 152.474
	rec[FieldCopyCPU] = 75.12
	rec[FieldCopyFinishedTime] = at(15, 53, 19)
	return rec
}

func withoutMeta(rec model.Record) model.Record {
	return rec.Without(FieldCreated, FieldModified)
}

// events collects everything a parser emits.
type events struct {
	mu  sync.Mutex
	all []model.Event
	ch  chan model.Event
}

func collect(p *Parser) *events {
	e := &events{ch: make(chan model.Event, 1024)}
	p.Subscribe(func(ev model.Event) {
		e.mu.Lock()
		e.all = append(e.all, ev)
		e.mu.Unlock()
		e.ch <- ev
	})
	return e
}

func (e *events) list() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Event(nil), e.all...)
}

func (e *events) counts() map[model.Kind]int {
	out := map[model.Kind]int{}
	for _, ev := range e.list() {
		out[ev.Kind]++
	}
	return out
}

func (e *events) await(t *testing.T, kind model.Kind) model.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-e.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
			return model.Event{}
		}
	}
}

func parse(t *testing.T, p *Parser) (model.Record, error) {
	t.Helper()
	c, err := p.Parse(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Wait(ctx)
}

func newParser(path string) *Parser {
	return New(path, WithLocation(time.UTC), WithPollInterval(20*time.Millisecond))
}

func copyFile(t *testing.T, src string, keep func(string) string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	content := string(data)
	if keep != nil {
		content = keep(content)
	}
	dst := filepath.Join(t.TempDir(), filepath.Base(src))
	require.NoError(t, os.WriteFile(dst, []byte(content), 0o600))
	return dst
}

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestParse_FinishedLog(t *testing.T) {
	p := newParser(fullLog)
	rec, err := parse(t, p)
	require.NoError(t, err)

	assert.False(t, rec.Time(FieldCreated).IsZero(), "created")
	assert.False(t, rec.Time(FieldModified).IsZero(), "modified")
	assert.Equal(t, finishedRecord(), withoutMeta(rec))
	assert.Equal(t, model.StateDone, p.State())
}

func TestParse_UnfinishedLog(t *testing.T) {
	p := newParser(unfinishLog)
	ev := collect(p)
	rec, err := parse(t, p)
	require.NoError(t, err)

	want := preambleRecord()
	want["phase1"] = &model.PhaseRecord{StartTime: at(9, 38, 18)}
	assert.Equal(t, want, withoutMeta(rec))
	assert.Equal(t, model.StateInPhase, p.State())

	counts := ev.counts()
	assert.Equal(t, 1, counts[model.KindParseEnd])
	assert.Zero(t, counts[model.KindDone])
	assert.Zero(t, counts[model.KindFinished])

	end := ev.await(t, model.KindParseEnd)
	assert.Equal(t, want, withoutMeta(end.Record))
}

func TestParse_TruncatedPreamble(t *testing.T) {
	path := copyFile(t, unfinishLog, func(s string) string {
		i := strings.Index(s, "Using 2 threads")
		return s[:i]
	})
	p := newParser(path)
	ev := collect(p)
	rec, err := parse(t, p)
	require.NoError(t, err)

	assert.Equal(t, model.StatePreamble, p.State())
	assert.Nil(t, rec.Phase(1))
	assert.Equal(t, int64(128), rec.Int(FieldBuckets))
	assert.NotContains(t, rec, FieldThreads)

	counts := ev.counts()
	assert.Zero(t, counts[model.KindStarted])
	assert.Zero(t, counts[model.KindPhaseStart])
	assert.Equal(t, 1, counts[model.KindParseEnd])
}

func TestStart_EventCounts(t *testing.T) {
	p := newParser(fullLog)
	ev := collect(p)
	_, err := parse(t, p)
	require.NoError(t, err)

	counts := ev.counts()
	assert.Equal(t, 4, counts[model.KindPhaseStart])
	assert.Equal(t, 4, counts[model.KindPhaseEnd])
	assert.Equal(t, 1, counts[model.KindStarted])
	assert.Equal(t, 1, counts[model.KindFinished])
	assert.Equal(t, 1, counts[model.KindDone])
	assert.Equal(t, 1, counts[model.KindParseEnd])
	assert.Equal(t, 19, counts[model.KindProgress])
	assert.Zero(t, counts[model.KindError])

	list := ev.list()
	assert.Equal(t, model.KindDone, list[len(list)-1].Kind)
	assert.Equal(t, finishedRecord(), withoutMeta(list[len(list)-1].Record))
}

func TestStart_PhasePairingAndProgressBounds(t *testing.T) {
	p := newParser(fullLog)
	ev := collect(p)
	_, err := parse(t, p)
	require.NoError(t, err)

	started := map[int]bool{}
	for _, e := range ev.list() {
		switch e.Kind {
		case model.KindPhaseStart:
			started[e.Phase] = true
			require.NotNil(t, e.PhaseData)
			assert.False(t, e.PhaseData.StartTime.IsZero())
		case model.KindPhaseEnd:
			assert.True(t, started[e.Phase], "phaseEnd %d before its phaseStart", e.Phase)
			assert.True(t, e.PhaseData.Complete())
		case model.KindProgress:
			assert.Contains(t, AllowedProgress(e.Phase), e.Percent, "phase %d", e.Phase)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	first, err := parse(t, newParser(fullLog))
	require.NoError(t, err)
	second, err := parse(t, newParser(fullLog))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParse_EveryPrefixIsSafe(t *testing.T) {
	data, err := os.ReadFile(fullLog)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	dir := t.TempDir()

	for n := 0; n <= len(lines); n++ {
		path := filepath.Join(dir, "prefix.log")
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines[:n], "")), 0o600))

		p := newParser(path)
		ev := collect(p)
		_, err := parse(t, p)
		require.NoError(t, err, "prefix of %d lines", n)

		counts := ev.counts()
		assert.Zero(t, counts[model.KindError], "prefix of %d lines", n)
		assert.LessOrEqual(t, counts[model.KindPhaseEnd], counts[model.KindPhaseStart])
		assert.LessOrEqual(t, counts[model.KindProgress], 19)
		assert.Equal(t, 1, counts[model.KindParseEnd])
	}
}

func TestStart_Directory(t *testing.T) {
	p := newParser(t.TempDir())
	ev := collect(p)
	_, err := parse(t, p)
	require.Error(t, err)

	e := ev.await(t, model.KindError)
	assert.Error(t, e.Err)
	assert.Equal(t, model.StateErrored, p.State())
}

func TestConsume_PhaseEndWithoutStart(t *testing.T) {
	path := copyFile(t, unfinishLog, func(s string) string {
		return s + "Time for phase 2 = 10.000 seconds. CPU (99.000%) Sat May  8 10:00:00 2021\nComputing table 1\n"
	})
	p := newParser(path)
	ev := collect(p)
	rec, err := parse(t, p)
	require.NoError(t, err)

	counts := ev.counts()
	assert.Zero(t, counts[model.KindPhaseEnd])
	assert.Zero(t, counts[model.KindError])
	assert.Equal(t, 1, counts[model.KindProgress])
	assert.Nil(t, rec.Phase(2))
}

func TestConsume_BadTimestampErrors(t *testing.T) {
	path := copyFile(t, unfinishLog, func(s string) string {
		return strings.Replace(s, "Sat May  8 09:38:18 2021", "Sat Foo 99 99:99:99 2021", 1)
	})
	p := newParser(path)
	ev := collect(p)
	_, err := parse(t, p)
	require.Error(t, err)

	assert.Equal(t, 1, ev.counts()[model.KindError])
	assert.Equal(t, model.StateErrored, p.State())
	s, _ := p.Session()
	assert.True(t, s.Errored)
}

func TestConsume_IgnoresLinesAfterFinished(t *testing.T) {
	path := copyFile(t, fullLog, func(s string) string {
		return s + "Starting phase 1/4: Forward Propagation into tmp files... Sun May  9 09:00:00 2021\n"
	})
	rec, err := parse(t, newParser(path))
	require.NoError(t, err)
	assert.Equal(t, finishedRecord(), withoutMeta(rec))
}

func TestSnapshot_ResumeMatchesFullParse(t *testing.T) {
	data, err := os.ReadFile(fullLog)
	require.NoError(t, err)
	full := string(data)
	cut := strings.Index(full, "Backpropagating on table 4")
	require.Positive(t, cut)

	path := filepath.Join(t.TempDir(), "resume.log")
	require.NoError(t, os.WriteFile(path, []byte(full[:cut]), 0o600))

	first := newParser(path)
	_, err = parse(t, first)
	require.NoError(t, err)
	snap, ok := first.Snapshot()
	require.True(t, ok)
	assert.Equal(t, int64(cut), snap.Offset)
	assert.Equal(t, model.StateInPhase, snap.State.State())

	encoded, err := snap.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, decoded.SessionID)
	assert.Equal(t, snap.Offset, decoded.Offset)
	assert.Equal(t, snap.State.PreambleCursor, decoded.State.PreambleCursor)
	assert.Equal(t, snap.State.Phase, decoded.State.Phase)
	assert.Equal(t, withoutMeta(snap.State.Record), withoutMeta(decoded.State.Record))
	assert.True(t, snap.State.Record.Time(FieldCreated).Equal(decoded.State.Record.Time(FieldCreated)))

	appendTo(t, path, full[cut:])

	second := newParser(path)
	ev := collect(second)
	require.NoError(t, second.Restore(decoded))
	c, err := second.Continue(context.Background())
	require.NoError(t, err)
	rec, err := c.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, finishedRecord(), withoutMeta(rec))
	s, _ := second.Session()
	assert.Equal(t, snap.SessionID, s.ID)
	assert.Equal(t, int64(len(full)), s.Offset)

	counts := ev.counts()
	assert.Equal(t, 2, counts[model.KindPhaseStart])
	assert.Equal(t, 3, counts[model.KindPhaseEnd])
	assert.Zero(t, counts[model.KindStarted])
	assert.Equal(t, 1, counts[model.KindDone])
}

func TestSnapshot_CutMidLineResumesCleanly(t *testing.T) {
	data, err := os.ReadFile(fullLog)
	require.NoError(t, err)
	full := string(data)

	for _, marker := range []string{"stripe size 655", "tmp files... Sat May  8 09:3"} {
		cut := strings.Index(full, marker) + len(marker)
		require.Greater(t, cut, len(marker), marker)

		path := filepath.Join(t.TempDir(), "live.log")
		require.NoError(t, os.WriteFile(path, []byte(full[:cut]), 0o600))

		p := newParser(path)
		ev := collect(p)
		_, err := parse(t, p)
		require.NoError(t, err, marker)
		assert.Zero(t, ev.counts()[model.KindError], marker)

		snap, ok := p.Snapshot()
		require.True(t, ok)
		assert.Less(t, snap.Offset, int64(cut), marker)
		assert.Equal(t, byte('\n'), full[snap.Offset-1], "offset must sit on a line boundary")

		appendTo(t, path, full[cut:])
		c, err := p.Continue(context.Background())
		require.NoError(t, err)
		rec, err := c.Wait(context.Background())
		require.NoError(t, err)

		assert.Equal(t, finishedRecord(), withoutMeta(rec), marker)
		assert.Equal(t, int64(65536), rec.Int(FieldStripeSize))
		assert.Equal(t, 1, ev.counts()[model.KindDone], marker)
	}
}

func TestWatch_FollowsToCompletion(t *testing.T) {
	data, err := os.ReadFile(fullLog)
	require.NoError(t, err)
	full := string(data)
	cut := strings.Index(full, "Starting phase 3/4")

	path := filepath.Join(t.TempDir(), "live.log")
	require.NoError(t, os.WriteFile(path, []byte(full[:cut]), 0o600))

	p := newParser(path)
	ev := collect(p)
	require.NoError(t, p.Watch(context.Background()))
	ev.await(t, model.KindParseEnd)
	assert.Equal(t, model.StateInPhase, p.State())

	appendTo(t, path, full[cut:])
	done := ev.await(t, model.KindDone)
	assert.Equal(t, finishedRecord(), withoutMeta(done.Record))

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after the log finished")
	}

	counts := ev.counts()
	assert.Equal(t, 4, counts[model.KindPhaseStart])
	assert.Equal(t, 19, counts[model.KindProgress])
	assert.Equal(t, 1, counts[model.KindDone])
}

func TestWatch_Busy(t *testing.T) {
	p := newParser(unfinishLog)
	ev := collect(p)
	require.NoError(t, p.Watch(context.Background()))
	ev.await(t, model.KindParseEnd)

	require.ErrorIs(t, p.Watch(context.Background()), engine.ErrBusy)
	_, err := p.Parse(context.Background())
	require.ErrorIs(t, err, engine.ErrBusy)

	p.Stop()
	p.Wait()
}

func TestStats(t *testing.T) {
	p := newParser(fullLog)
	_, err := parse(t, p)
	require.NoError(t, err)

	st := p.Stats()
	assert.Equal(t, fullLog, st.FilePath)
	assert.Equal(t, plotID, st.PlotID)
	assert.Equal(t, int64(32), st.K)
	assert.Equal(t, model.StateDone, st.State)
	assert.True(t, st.Finished())
	require.Len(t, st.Phases, 4)
	assert.InDelta(t, 4188.688, st.PhaseSeconds(2), 1e-9)
	assert.Equal(t, at(9, 38, 18), st.StartTime)
	assert.Equal(t, at(15, 53, 19), st.EndTime)
	assert.InDelta(t, 101.42, st.FinalSizeGiB, 1e-9)
	assert.Positive(t, st.Offset)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		phase int
		line  string
		want  int
		ok    bool
	}{
		{1, "Computing table 1", 1, true},
		{1, "Computing table 7", 42, true},
		{1, "Computing table 8", 0, false},
		{1, "Backpropagating on table 7", 0, false},
		{2, "Backpropagating on table 7", 43, true},
		{2, "Backpropagating on table 2", 61, true},
		{3, "Compressing tables 1 and 2", 66, true},
		{3, "Compressing tables 6 and 7", 98, true},
		{3, "Compressing tables 7 and 8", 0, false},
		{4, "Computing table 1", 0, false},
		{0, "Computing table 1", 0, false},
	}
	for _, tt := range tests {
		got, ok := Progress(tt.phase, tt.line)
		assert.Equal(t, tt.ok, ok, "phase %d %q", tt.phase, tt.line)
		assert.Equal(t, tt.want, got, "phase %d %q", tt.phase, tt.line)
	}
}
