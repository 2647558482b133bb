// Package tui provides the interactive Bubble Tea view that follows a plot
// log live.
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/tui/components"
	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

// EventMsg carries one parser event into the update loop.
type EventMsg struct {
	Event model.Event
}

// WatchEndedMsg is sent once the parser stops following the log.
type WatchEndedMsg struct{}

// WatchErrMsg is sent when the watch could not be started.
type WatchErrMsg struct {
	Err error
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	maxLogLines      = 500
	eventBuffer      = 256
)

// App is the root Bubble Tea model.
type App struct {
	ctx    context.Context
	parser *plot.Parser
	events chan model.Event
	ended  chan struct{}
	quit   chan struct{}
	stop   func()

	// Parse state
	stats    model.PlotStats
	record   model.Record
	percent  map[int]int // last progress percent per phase
	log      []string
	loaded   bool
	watching bool
	err      error

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	scroll    int
	spinner   spinner.Model
}

// NewApp creates a watch view for the parser. The watch starts from Init and
// is stopped when the program quits.
func NewApp(ctx context.Context, p *plot.Parser) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	a := App{
		ctx:      ctx,
		parser:   p,
		events:   make(chan model.Event, eventBuffer),
		ended:    make(chan struct{}),
		quit:     make(chan struct{}),
		percent:  make(map[int]int),
		spinner:  sp,
		watching: true,
	}
	events, quit := a.events, a.quit
	a.stop = sync.OnceFunc(func() {
		close(quit)
		p.Stop()
	})
	p.Subscribe(func(ev model.Event) {
		select {
		case events <- ev:
		case <-quit:
		}
	})
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		a.spinner.Tick,
		a.startWatch(),
		waitForEvent(a.events, a.ended),
	)
}

func (a App) startWatch() tea.Cmd {
	p, ended := a.parser, a.ended
	ctx := a.ctx
	return func() tea.Msg {
		if err := p.Watch(ctx); err != nil {
			close(ended)
			return WatchErrMsg{Err: err}
		}
		go func() {
			p.Wait()
			close(ended)
		}()
		return nil
	}
}

// waitForEvent delivers the next event, draining buffered events before
// reporting the end of the watch.
func waitForEvent(events <-chan model.Event, ended <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return EventMsg{Event: ev}
		case <-ended:
			select {
			case ev := <-events:
				return EventMsg{Event: ev}
			default:
				return WatchEndedMsg{}
			}
		}
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.scroll = max(a.scroll-1, 0)
		case tea.MouseButtonWheelDown:
			a.scroll++
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := components.TabAtX(msg.X, a.activeTab); tab >= 0 {
					a.setTab(tab)
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case spinner.TickMsg:
		if a.loaded {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.apply(msg.Event)
		return a, waitForEvent(a.events, a.ended)

	case WatchEndedMsg:
		a.watching = false
		a.loaded = true
		a.stats = a.parser.Stats()
		a.record = a.parser.Record()
		return a, nil

	case WatchErrMsg:
		a.watching = false
		a.loaded = true
		a.err = msg.Err
		return a, nil
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c", "q":
		return a, a.shutdown()
	case "?":
		a.showHelp = !a.showHelp
		return a, nil
	}

	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "tab", "right", "l":
		a.setTab((a.activeTab + 1) % len(components.Tabs))
	case "shift+tab", "left", "h":
		a.setTab((a.activeTab + len(components.Tabs) - 1) % len(components.Tabs))
	case "down", "j":
		a.scroll++
	case "up", "k":
		a.scroll = max(a.scroll-1, 0)
	case "g", "home":
		a.scroll = 0
	default:
		if len(msg.Runes) == 1 {
			if tab := components.TabIdxByKey(msg.Runes[0]); tab >= 0 {
				a.setTab(tab)
			}
		}
	}
	return a, nil
}

func (a *App) setTab(i int) {
	if i != a.activeTab {
		a.activeTab = i
		a.scroll = 0
	}
}

func (a App) shutdown() tea.Cmd {
	a.stop()
	return tea.Quit
}

// apply folds one parser event into the view state.
func (a *App) apply(ev model.Event) {
	switch ev.Kind {
	case model.KindPhaseStart:
		a.percent[ev.Phase] = 0
	case model.KindProgress:
		a.percent[ev.Phase] = ev.Percent
	case model.KindPhaseEnd:
		a.percent[ev.Phase] = 100
	case model.KindError:
		a.err = ev.Err
	case model.KindParseEnd, model.KindDone:
		a.loaded = true
		a.record = ev.Record
		a.stats = a.parser.Stats()
		return
	}
	if ev.Kind == model.KindStarted || ev.Kind == model.KindFinished {
		a.record = ev.Record
	}

	text := cli.FormatEvent(ev)
	switch ev.Kind {
	case model.KindWarning:
		text = lipgloss.NewStyle().Foreground(theme.Active.Warn).Render(text)
	case model.KindError:
		text = lipgloss.NewStyle().Foreground(theme.Active.Fail).Render(text)
	}
	line := time.Now().Format("15:04:05") + "  " + text
	a.log = append(a.log, line)
	if len(a.log) > maxLogLines {
		a.log = a.log[len(a.log)-maxLogLines:]
	}
}

// overall estimates whole-plot completion from phase states. Phases without
// sub-step progress count only once complete.
func (a App) overall() float64 {
	if a.stats.Finished() {
		return 1
	}
	total := max(a.stats.TotalPhases, 1)
	var sum float64
	for n := 1; n <= total; n++ {
		sum += a.phasePct(n)
	}
	return sum / float64(total)
}

func (a App) phasePct(n int) float64 {
	if n <= len(a.stats.Phases) && a.stats.Phases[n-1].Complete() {
		return 1
	}
	return float64(a.percent[n]) / 100
}
