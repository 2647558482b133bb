package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

// HBarChart renders one horizontal bar per value, scaled to the largest,
// with the label on the left and the formatted value on the right.
func HBarChart(labels []string, values []float64, format func(float64) string, width int) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	labelW := 0
	for _, l := range labels {
		labelW = max(labelW, lipgloss.Width(l))
	}
	valueStrs := make([]string, len(values))
	valueW := 0
	peak := 0.0
	for i, v := range values {
		valueStrs[i] = format(v)
		valueW = max(valueW, len(valueStrs[i]))
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}
	barMax := max(width-labelW-valueW-3, 4)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)

	lines := make([]string, len(values))
	for i, v := range values {
		n := int(v / peak * float64(barMax))
		if v > 0 && n == 0 {
			n = 1
		}
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		barStyle := lipgloss.NewStyle().Foreground(barColor(i, t))
		lines[i] = labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
			barStyle.Render(strings.Repeat("█", n)) +
			strings.Repeat(" ", barMax-n) + " " +
			valueStyle.Render(fmt.Sprintf("%*s", valueW, valueStrs[i]))
	}
	return strings.Join(lines, "\n")
}

func barColor(i int, t theme.Theme) lipgloss.Color {
	return t.Phase(i + 1)
}
