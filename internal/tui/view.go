package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/tui/components"
	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  plotlog needs at least %d columns.\n",
		a.width, minTerminalWidth)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	body := logoStyle.Render("◈ plotlog") +
		subtitleStyle.Render(" · watching "+filepath.Base(a.parser.Path())) + "\n\n" +
		a.spinner.View() + subtitleStyle.Render(" Reading log...")

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(body))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Key).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	bindings := []struct{ key, desc string }{
		{"o p r e", "Jump to tab"},
		{"tab ← →", "Previous / Next tab"},
		{"j k", "Scroll"},
		{"g", "Back to top"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-8s", bind.key)),
			descStyle.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

func (a App) viewMain() string {
	w := a.width
	cw := a.contentWidth()

	header := components.RenderTabBar(a.activeTab, w)
	statusBar := components.RenderStatusBar(w, a.statusInfo())

	contentH := max(a.height-lipgloss.Height(header)-lipgloss.Height(statusBar), 5)

	var content string
	switch a.activeTab {
	case 0:
		content = a.renderOverview(cw)
	case 1:
		content = a.renderPhases(cw)
	case 2:
		content = scrollLines(cli.RenderRecord(a.record), a.scroll, contentH)
	case 3:
		content = a.renderEvents(contentH)
	}
	content = padHeight(truncateHeight(content, contentH), contentH)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (a App) statusInfo() string {
	state := string(a.stats.State)
	if a.watching {
		state += " · following"
	}
	return fmt.Sprintf("%s · %s B  %s", state, cli.FormatNumber(a.stats.Offset), components.ProgressBar(a.overall(), 12))
}

func (a App) renderOverview(cw int) string {
	t := theme.Active
	s := a.stats

	id := s.PlotID
	if len(id) > 12 {
		id = id[:12] + "…"
	}
	metrics := []components.Metric{
		{Label: "Plot", Value: orDash(id), Detail: filepath.Base(s.FilePath)},
		{Label: "k", Value: intOrDash(s.K)},
		{Label: "Threads", Value: intOrDash(s.Threads)},
		{Label: "Buckets", Value: intOrDash(s.Buckets)},
		{Label: "State", Value: string(s.State), Detail: phaseLabel(s)},
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	barW := max(cw-30, 10)
	var bars strings.Builder
	bars.WriteString(components.PhaseBar("Overall", a.overall(), elapsed(s), 8, barW))
	for n := 1; n <= s.TotalPhases; n++ {
		bars.WriteString("\n")
		bars.WriteString(components.PhaseBar("Phase "+strconv.Itoa(n), a.phasePct(n), phaseDetail(s, n), 8, barW))
	}
	b.WriteString(components.ContentCard("Progress", bars.String(), cw))

	if a.err != nil {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Fail).Render("  error: " + a.err.Error()))
	}
	return b.String()
}

func (a App) renderPhases(cw int) string {
	s := a.stats
	var labels []string
	var secs []float64
	for i, p := range s.Phases {
		if p.Complete() {
			labels = append(labels, "Phase "+strconv.Itoa(i+1))
			secs = append(secs, p.Seconds)
		}
	}
	if s.CopySeconds > 0 {
		labels = append(labels, "Copy")
		secs = append(secs, s.CopySeconds)
	}

	chart := components.HBarChart(labels, secs, cli.FormatDuration, components.CardInnerWidth(cw))
	if chart == "" {
		chart = lipgloss.NewStyle().Foreground(theme.Active.TextDim).Render("No completed phases yet")
	}
	return components.ContentCard("Phase durations", chart, cw) + "\n" +
		cli.RenderTable(cli.PhaseTable(s))
}

func (a App) renderEvents(h int) string {
	if len(a.log) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Active.TextDim).Render("  No events yet")
	}
	// newest first
	lines := make([]string, len(a.log))
	for i, l := range a.log {
		lines[len(a.log)-1-i] = "  " + l
	}
	return scrollLines(strings.Join(lines, "\n"), a.scroll, h)
}

func phaseLabel(s model.PlotStats) string {
	if s.Phase == 0 {
		return ""
	}
	return fmt.Sprintf("phase %d/%d", s.Phase, s.TotalPhases)
}

func phaseDetail(s model.PlotStats, n int) string {
	if n > len(s.Phases) {
		return "-"
	}
	p := s.Phases[n-1]
	if p.Complete() {
		return cli.FormatDuration(p.Seconds)
	}
	return "since " + p.StartTime.Format("15:04")
}

func elapsed(s model.PlotStats) string {
	if s.Finished() {
		return cli.FormatDuration(s.TotalSeconds + s.CopySeconds)
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(n int64) string {
	if n == 0 {
		return "-"
	}
	return strconv.FormatInt(n, 10)
}

func scrollLines(s string, offset, h int) string {
	lines := strings.Split(s, "\n")
	offset = min(offset, max(len(lines)-h, 0))
	return strings.Join(lines[offset:], "\n")
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}
