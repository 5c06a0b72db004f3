// Package config loads mcache settings from JSONC files and flag overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/tailscale/hujson"
)

// Errors returned by LoadConfig.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrInvalidInterval    = errors.New("sweep_interval must be a positive duration")
	ErrInvalidLogLevel    = errors.New("log_level must be one of debug, info, warn, error")
	ErrInvalidCapacity    = errors.New("max_capacity must be at least 16")
)

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config holds the resolved settings.
type Config struct {
	MaxCapacity      uint64
	SweepInterval    time.Duration
	MinFreeBytes     uint64
	SweepBudgetBytes uint64
	LogLevel         string

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Overlay is a partial config. Nil fields leave the value below untouched.
// Config files decode into it and flag overrides are expressed with it.
type Overlay struct {
	MaxCapacity      *uint64 `json:"max_capacity"`
	SweepInterval    *string `json:"sweep_interval"`
	MinFreeBytes     *uint64 `json:"min_free_bytes"`
	SweepBudgetBytes *uint64 `json:"sweep_budget_bytes"`
	LogLevel         *string `json:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxCapacity:   1 << 20,
		SweepInterval: 5 * time.Second,
		LogLevel:      "info",
	}
}

// FileName is the project config file name.
const FileName = ".membercache.json"

// globalPath returns $XDG_CONFIG_HOME/membercache/config.json, falling back
// to ~/.config. Empty when neither is known.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "membercache", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "membercache", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Env             map[string]string // environment variables
	Overrides       Overlay           // flag values, applied last
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/membercache/config.json)
// 3. Project config file (.membercache.json, if exists)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. Flag overrides.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		overlay, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			if cfg, err = merge(cfg, overlay); err != nil {
				return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
			}

			cfg.Sources.Global = path
		}
	}

	path, mustExist := filepath.Join(workDir, FileName), false

	if input.ConfigPath != "" {
		path, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	overlay, loaded, err := loadFile(path, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		if cfg, err = merge(cfg, overlay); err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
		}

		cfg.Sources.Project = path
	}

	cfg, err = merge(cfg, input.Overrides)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile reads and parses one config file. A missing optional file is
// not an error and reports loaded=false.
func loadFile(path string, mustExist bool) (Overlay, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return Overlay{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Overlay{}, false, nil
	}

	overlay, err := Parse(data)
	if err != nil {
		return Overlay{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return overlay, true, nil
}

// Parse decodes a JSONC config document.
func Parse(data []byte) (Overlay, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Overlay{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var overlay Overlay

	err = json.Unmarshal(standardized, &overlay)
	if err != nil {
		return Overlay{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return overlay, nil
}

// merge applies overlay on top of base and validates the result.
func merge(base Config, overlay Overlay) (Config, error) {
	if overlay.MaxCapacity != nil {
		base.MaxCapacity = *overlay.MaxCapacity
	}

	if overlay.SweepInterval != nil {
		d, err := time.ParseDuration(*overlay.SweepInterval)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidInterval, *overlay.SweepInterval)
		}

		base.SweepInterval = d
	}

	if overlay.MinFreeBytes != nil {
		base.MinFreeBytes = *overlay.MinFreeBytes
	}

	if overlay.SweepBudgetBytes != nil {
		base.SweepBudgetBytes = *overlay.SweepBudgetBytes
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	return base, validate(base)
}

func validate(cfg Config) error {
	if cfg.MaxCapacity < 16 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, cfg.MaxCapacity)
	}

	if !slices.Contains(LogLevels, cfg.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	return nil
}
