package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/plot"
)

func newTestApp(t *testing.T) App {
	t.Helper()
	p := plot.New("../plot/testdata/plot-log.txt", plot.WithLocation(time.UTC))
	a := NewApp(context.Background(), p)
	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m.(App)
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	return m.(App)
}

func TestApp_ProgressEvents(t *testing.T) {
	a := newTestApp(t)

	a = update(t, a, EventMsg{Event: model.Event{Kind: model.KindPhaseStart, Phase: 1}})
	a = update(t, a, EventMsg{Event: model.Event{Kind: model.KindProgress, Phase: 1, Percent: 40}})
	if got := a.percent[1]; got != 40 {
		t.Fatalf("phase 1 percent = %d, want 40", got)
	}
	if len(a.log) != 2 {
		t.Fatalf("log has %d lines, want 2", len(a.log))
	}
	if !strings.Contains(a.log[1], "progress phase 1 40%") {
		t.Errorf("log line = %q", a.log[1])
	}

	a.stats.TotalPhases = 4
	if got := a.overall(); got != 0.1 {
		t.Errorf("overall = %v, want 0.1", got)
	}

	a = update(t, a, EventMsg{Event: model.Event{Kind: model.KindPhaseEnd, Phase: 1}})
	if got := a.phasePct(1); got != 1 {
		t.Errorf("phase 1 after end = %v, want 1", got)
	}
}

func TestApp_LoadingUntilParseEnd(t *testing.T) {
	a := newTestApp(t)
	if !strings.Contains(a.View(), "Reading log") {
		t.Fatal("expected the loading view before the first batch")
	}

	a = update(t, a, EventMsg{Event: model.Event{Kind: model.KindParseEnd, Record: model.Record{plot.FieldID: "abc"}}})
	if !a.loaded {
		t.Fatal("parseEnd should mark the view loaded")
	}
	if a.record.String(plot.FieldID) != "abc" {
		t.Errorf("record id = %q", a.record.String(plot.FieldID))
	}
	if len(a.log) != 0 {
		t.Errorf("parseEnd should not be logged, got %v", a.log)
	}
	if v := a.View(); !strings.Contains(v, "Overview") {
		t.Errorf("main view missing tab bar:\n%s", v)
	}
}

func TestApp_TabKeys(t *testing.T) {
	a := newTestApp(t)
	a.loaded = true

	a = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	if a.activeTab != 3 {
		t.Fatalf("activeTab = %d after 'e', want 3", a.activeTab)
	}
	a = update(t, a, tea.KeyMsg{Type: tea.KeyTab})
	if a.activeTab != 0 {
		t.Fatalf("activeTab = %d after tab, want 0 (wrap)", a.activeTab)
	}
	a = update(t, a, tea.KeyMsg{Type: tea.KeyLeft})
	if a.activeTab != 3 {
		t.Fatalf("activeTab = %d after left, want 3", a.activeTab)
	}

	a = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	a = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if a.activeTab != 1 || a.scroll != 0 {
		t.Errorf("switching tabs should reset scroll, got tab %d scroll %d", a.activeTab, a.scroll)
	}

	a = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !a.showHelp {
		t.Fatal("'?' should open help")
	}
	a = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if a.showHelp || a.activeTab != 1 {
		t.Errorf("a key while help is open should only close it, got help=%v tab=%d", a.showHelp, a.activeTab)
	}
}

func TestApp_QuitStopsOnce(t *testing.T) {
	a := newTestApp(t)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	// A second quit must not panic on the closed channel.
	_, _ = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
}

func TestApp_TooNarrow(t *testing.T) {
	a := newTestApp(t)
	a = update(t, a, tea.WindowSizeMsg{Width: 40, Height: 10})
	if !strings.Contains(a.View(), "too narrow") {
		t.Error("expected the narrow-terminal message")
	}
}

func TestSetupValues_RoundTrip(t *testing.T) {
	t.Setenv("PLOTLOG_PLOT_DIR", "")
	t.Setenv("PLOTLOG_HARVESTER_LOG", "")

	cfg := config.DefaultConfig()
	cfg.General.PlotDir = "/mnt/logs"
	cfg.General.Timezone = "UTC"

	v := SetupValuesFrom(cfg)
	if v.PlotDir != "/mnt/logs" || v.Timezone != "UTC" || v.Theme != "chia-dark" {
		t.Fatalf("values = %+v", v)
	}

	v.Theme = "tokyo-night"
	v.HarvesterLog = "/var/log/debug.log"
	v.Apply(&cfg)
	if cfg.Appearance.Theme != "tokyo-night" || cfg.General.HarvesterLog != "/var/log/debug.log" {
		t.Errorf("applied config = %+v", cfg)
	}
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"", "Local", "UTC"} {
		if err := validateTimezone(tz); err != nil {
			t.Errorf("validateTimezone(%q) = %v", tz, err)
		}
	}
	if err := validateTimezone("Mars/Olympus"); err == nil {
		t.Error("expected an error for an unknown zone")
	}
}

func TestValidateDir(t *testing.T) {
	if err := validateDir(t.TempDir()); err != nil {
		t.Errorf("temp dir rejected: %v", err)
	}
	if err := validateDir(""); err == nil {
		t.Error("empty dir accepted")
	}
	if err := validateDir("../plot/testdata/plot-log.txt"); err == nil {
		t.Error("file accepted as directory")
	}
}
