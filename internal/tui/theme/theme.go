// Package theme defines color themes for the plotlog watch view.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds the color roles the watch view draws with. The phase
// colors are cycled through by the phase chart in table order.
type Theme struct {
	Name         string
	SurfaceHover lipgloss.Color // active tab
	Border       lipgloss.Color
	BorderAccent lipgloss.Color // focused card
	TextDim      lipgloss.Color // hints, empty states
	TextMuted    lipgloss.Color // labels
	TextPrimary  lipgloss.Color
	Accent       lipgloss.Color // spinner, running phase
	AccentBright lipgloss.Color
	Done         lipgloss.Color // finished plots and phases
	Warn         lipgloss.Color
	Fail         lipgloss.Color
	Key          lipgloss.Color // key hints in the status bar
	Phases       [4]lipgloss.Color
}

// Active is the currently selected theme.
var Active = ChiaDark

// ChiaDark is the default theme, built around the Chia network green.
var ChiaDark = Theme{
	Name:         "chia-dark",
	SurfaceHover: lipgloss.Color("#1F2A22"),
	Border:       lipgloss.Color("#2F3D33"),
	BorderAccent: lipgloss.Color("#3AAC59"),
	TextDim:      lipgloss.Color("#56655A"),
	TextMuted:    lipgloss.Color("#8A9A8E"),
	TextPrimary:  lipgloss.Color("#E8F2EA"),
	Accent:       lipgloss.Color("#3AAC59"),
	AccentBright: lipgloss.Color("#5FD37F"),
	Done:         lipgloss.Color("#9BD34B"),
	Warn:         lipgloss.Color("#E0A33A"),
	Fail:         lipgloss.Color("#E0564B"),
	Key:          lipgloss.Color("#4FC1B0"),
	Phases: [4]lipgloss.Color{
		lipgloss.Color("#3AAC59"),
		lipgloss.Color("#4F8FD6"),
		lipgloss.Color("#C46AC0"),
		lipgloss.Color("#D8C048"),
	},
}

// FlexokiDark is a warm, paper-inspired dark theme.
var FlexokiDark = Theme{
	Name:         "flexoki-dark",
	SurfaceHover: lipgloss.Color("#282726"),
	Border:       lipgloss.Color("#403E3C"),
	BorderAccent: lipgloss.Color("#3AA99F"),
	TextDim:      lipgloss.Color("#575653"),
	TextMuted:    lipgloss.Color("#878580"),
	TextPrimary:  lipgloss.Color("#FFFCF0"),
	Accent:       lipgloss.Color("#3AA99F"),
	AccentBright: lipgloss.Color("#5BC8BE"),
	Done:         lipgloss.Color("#879A39"),
	Warn:         lipgloss.Color("#DA702C"),
	Fail:         lipgloss.Color("#D14D41"),
	Key:          lipgloss.Color("#24837B"),
	Phases: [4]lipgloss.Color{
		lipgloss.Color("#3AA99F"),
		lipgloss.Color("#4385BE"),
		lipgloss.Color("#CE5D97"),
		lipgloss.Color("#D0A215"),
	},
}

// TokyoNight is a cool blue and purple theme.
var TokyoNight = Theme{
	Name:         "tokyo-night",
	SurfaceHover: lipgloss.Color("#343A52"),
	Border:       lipgloss.Color("#565F89"),
	BorderAccent: lipgloss.Color("#7AA2F7"),
	TextDim:      lipgloss.Color("#565F89"),
	TextMuted:    lipgloss.Color("#A9B1D6"),
	TextPrimary:  lipgloss.Color("#C0CAF5"),
	Accent:       lipgloss.Color("#7AA2F7"),
	AccentBright: lipgloss.Color("#A9C1FF"),
	Done:         lipgloss.Color("#9ECE6A"),
	Warn:         lipgloss.Color("#FF9E64"),
	Fail:         lipgloss.Color("#F7768E"),
	Key:          lipgloss.Color("#7DCFFF"),
	Phases: [4]lipgloss.Color{
		lipgloss.Color("#7AA2F7"),
		lipgloss.Color("#BB9AF7"),
		lipgloss.Color("#E0AF68"),
		lipgloss.Color("#9ECE6A"),
	},
}

// Terminal uses ANSI 16 colors only.
var Terminal = Theme{
	Name:         "terminal",
	SurfaceHover: lipgloss.Color("8"),
	Border:       lipgloss.Color("8"),
	BorderAccent: lipgloss.Color("2"),
	TextDim:      lipgloss.Color("8"),
	TextMuted:    lipgloss.Color("7"),
	TextPrimary:  lipgloss.Color("15"),
	Accent:       lipgloss.Color("2"),
	AccentBright: lipgloss.Color("10"),
	Done:         lipgloss.Color("10"),
	Warn:         lipgloss.Color("3"),
	Fail:         lipgloss.Color("1"),
	Key:          lipgloss.Color("6"),
	Phases:       [4]lipgloss.Color{"2", "4", "5", "3"},
}

// All available themes.
var All = []Theme{ChiaDark, FlexokiDark, TokyoNight, Terminal}

// ByName returns a theme by its name, defaulting to ChiaDark.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return ChiaDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}

// Names lists the theme names in display order.
func Names() []string {
	names := make([]string, len(All))
	for i, t := range All {
		names[i] = t.Name
	}
	return names
}

// Phase returns the color for a 1-based plotting phase.
func (t Theme) Phase(n int) lipgloss.Color {
	if n < 1 {
		n = 1
	}
	return t.Phases[(n-1)%len(t.Phases)]
}
