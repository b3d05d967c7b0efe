// Package config loads cancomm CLI settings from a TOML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvDevice   = "CANCOMM_DEVICE"
	EnvLogLevel = "CANCOMM_LOG_LEVEL"
)

// Config holds CLI settings. Flags given on the command line win over the
// file, and the environment wins over both defaults and the file.
type Config struct {
	// Device is the interface to connect to. Empty selects the first CAN
	// interface found.
	Device       string
	LogLevel     string
	Output       string
	PollInterval time.Duration
	MetricsAddr  string
	Echo         EchoConfig
}

// EchoConfig configures the echo command.
type EchoConfig struct {
	// IDOffset is added to the identifier of every echoed frame.
	IDOffset uint32
}

type fileConfig struct {
	Device       string `toml:"device"`
	LogLevel     string `toml:"log_level"`
	Output       string `toml:"output"`
	PollInterval string `toml:"poll_interval"`
	MetricsAddr  string `toml:"metrics_addr"`
	Echo         struct {
		IDOffset uint32 `toml:"id_offset"`
	} `toml:"echo"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:     "info",
		Output:       "table",
		PollInterval: time.Millisecond,
		Echo:         EchoConfig{IDOffset: 1},
	}
}

// Load reads path on top of Default and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(raw.Output))
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("echo", "id_offset") {
		cfg.Echo.IDOffset = raw.Echo.IDOffset
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDevice)); v != "" {
		cfg.Device = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("config: unsupported output %q", c.Output)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	if len(c.Device) >= 16 {
		return fmt.Errorf("config: device name %q too long", c.Device)
	}
	return nil
}
