package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all plotlog configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Watch      WatchConfig      `toml:"watch"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds log locations and how to read them.
type GeneralConfig struct {
	PlotDir      string `toml:"plot_dir,omitempty"`
	HarvesterLog string `toml:"harvester_log,omitempty"`
	Timezone     string `toml:"timezone,omitempty"`
}

// WatchConfig holds settings for following growing logs.
type WatchConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// DaemonConfig holds background daemon settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	IntervalSecs int    `toml:"interval_secs"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Watch: WatchConfig{
			PollIntervalMS: 1000,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			IntervalSecs: 30,
			EventsBuffer: 500,
		},
		Appearance: AppearanceConfig{
			Theme: "chia-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "plotlog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "plotlog")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// chiaRoot is where a default Chia install keeps its logs.
func chiaRoot() string {
	if root := os.Getenv("CHIA_ROOT"); root != "" {
		return root
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chia", "mainnet")
}

// GetPlotDir returns the plotter log directory from env var, config or the
// Chia default, in that order.
func GetPlotDir(cfg Config) string {
	if dir := os.Getenv("PLOTLOG_PLOT_DIR"); dir != "" {
		return dir
	}
	if cfg.General.PlotDir != "" {
		return cfg.General.PlotDir
	}
	return filepath.Join(chiaRoot(), "plotter")
}

// GetHarvesterLog returns the harvester debug log path from env var, config
// or the Chia default, in that order.
func GetHarvesterLog(cfg Config) string {
	if path := os.Getenv("PLOTLOG_HARVESTER_LOG"); path != "" {
		return path
	}
	if cfg.General.HarvesterLog != "" {
		return cfg.General.HarvesterLog
	}
	return filepath.Join(chiaRoot(), "log", "debug.log")
}

// Location returns the zone log timestamps are written in. The plotter and
// harvester write local time without an offset.
func (c Config) Location() (*time.Location, error) {
	switch c.General.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.General.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.General.Timezone, err)
	}
	return loc, nil
}

// PollInterval returns the watch poll fallback interval.
func (c Config) PollInterval() time.Duration {
	if c.Watch.PollIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.Watch.PollIntervalMS) * time.Millisecond
}

// DaemonInterval returns how often the daemon rescans the plot directory.
func (c Config) DaemonInterval() time.Duration {
	if c.Daemon.IntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Daemon.IntervalSecs) * time.Second
}
