package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestCardRowHeightAndWidth(t *testing.T) {
	theme.SetActive("flexoki-dark")

	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 30)

	shortLines := len(strings.Split(shortCard, "\n"))
	tallLines := len(strings.Split(tallCard, "\n"))
	if shortLines >= tallLines {
		t.Fatal("Test setup error: short card should be shorter than tall card")
	}

	joined := CardRow([]string{tallCard, shortCard})
	lines := strings.Split(joined, "\n")
	if len(lines) != tallLines {
		t.Errorf("Joined height should match tallest card: got %d, want %d", len(lines), tallLines)
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w != 52 {
			t.Errorf("line %d width = %d, want 52", i, w)
		}
	}
}

func TestMetricCardRowFillsWidth(t *testing.T) {
	row := MetricCardRow([]Metric{
		{Label: "k", Value: "32"},
		{Label: "Threads", Value: "4"},
		{Label: "Buckets", Value: "128", Detail: "stripe 65536"},
	}, 61)
	for i, line := range strings.Split(row, "\n") {
		if w := lipgloss.Width(line); w != 61 {
			t.Errorf("line %d width = %d, want 61", i, w)
		}
	}
	if LayoutRow(10, 3)[0] != 4 {
		t.Error("first column should absorb the remainder")
	}
}

func TestTabAtX(t *testing.T) {
	for active := range Tabs {
		pos := 0
		for i := range Tabs {
			w := TabWidth(i, active)
			if got := TabAtX(pos+w/2, active); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, pos+w/2, got, i)
			}
			pos += w + len(TabSeparator)
		}
		if got := TabAtX(pos+50, active); got != -1 {
			t.Fatalf("x past the bar -> tab=%d, want -1", got)
		}
	}
}

func TestTabWidthMatchesRender(t *testing.T) {
	for active := range Tabs {
		want := 0
		for i := range Tabs {
			want += TabWidth(i, active)
		}
		want += len(TabSeparator) * (len(Tabs) - 1)
		if got := lipgloss.Width(RenderTabBar(active, 200)); got != want {
			t.Errorf("active=%d rendered width = %d, want %d", active, got, want)
		}
	}
}

func TestHBarChart(t *testing.T) {
	out := HBarChart(
		[]string{"phase1", "phase2"},
		[]float64{100, 50},
		func(v float64) string { return strings.Repeat("x", int(v/50)) },
		41,
	)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lipgloss.Width(lines[0]) != lipgloss.Width(lines[1]) {
		t.Error("bars should be padded to a common width")
	}
	if strings.Count(lines[0], "█") != 2*strings.Count(lines[1], "█") {
		t.Errorf("bars not proportional:\n%s", out)
	}
}

func TestProgressBarClamps(t *testing.T) {
	if got := ProgressBar(2, 10); !strings.Contains(got, "100%") {
		t.Errorf("ProgressBar(2) = %q", got)
	}
	if got := ProgressBar(-1, 10); !strings.Contains(got, "  0%") {
		t.Errorf("ProgressBar(-1) = %q", got)
	}
}
