package tui

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/plotlog/internal/config"
	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

// SetupValues holds the answers of the setup form.
type SetupValues struct {
	PlotDir      string
	HarvesterLog string
	Timezone     string
	Theme        string
}

// SetupValuesFrom seeds the form from an existing configuration.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		PlotDir:      config.GetPlotDir(cfg),
		HarvesterLog: config.GetHarvesterLog(cfg),
		Timezone:     cfg.General.Timezone,
		Theme:        cfg.Appearance.Theme,
	}
}

// Apply writes the answers into cfg.
func (v SetupValues) Apply(cfg *config.Config) {
	cfg.General.PlotDir = v.PlotDir
	cfg.General.HarvesterLog = v.HarvesterLog
	cfg.General.Timezone = v.Timezone
	cfg.Appearance.Theme = v.Theme
}

// NewSetupForm builds the first-run setup form bound to v.
func NewSetupForm(v *SetupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themes = append(themes, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to plotlog").
				Description("Where your plotter and harvester write their logs."),
			huh.NewInput().
				Title("Plotter log directory").
				Value(&v.PlotDir).
				Validate(validateDir),
			huh.NewInput().
				Title("Harvester log").
				Description("Usually ~/.chia/mainnet/log/debug.log. Leave empty to skip.").
				Value(&v.HarvesterLog),
			huh.NewInput().
				Title("Log time zone").
				Description("IANA name such as Europe/Berlin, UTC, or empty for local time.").
				Value(&v.Timezone).
				Validate(validateTimezone),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.Theme),
		),
	)
}

// RunSetup shows the setup form and saves the result. It returns
// huh.ErrUserAborted if the user cancels.
func RunSetup(cfg config.Config) (config.Config, error) {
	v := SetupValuesFrom(cfg)
	if err := NewSetupForm(&v).Run(); err != nil {
		return cfg, err
	}
	v.Apply(&cfg)
	if err := config.Save(cfg); err != nil {
		return cfg, fmt.Errorf("saving config: %w", err)
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}

func validateDir(s string) error {
	if s == "" {
		return errors.New("a directory is required")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

func validateTimezone(s string) error {
	if s == "" || s == "Local" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown time zone %q", s)
	}
	return nil
}
