// Package config provides TOML-based configuration for ace-dash.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the full ace-dash configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Shell   ShellConfig   `toml:"shell"`
	Host    HostConfig    `toml:"host"`
	Metrics MetricsConfig `toml:"metrics"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	StateDir string `toml:"state_dir"`
}

// ShellConfig configures the dashboard shell and its visuals.
type ShellConfig struct {
	Title        string `toml:"title"`
	HomeIcon     string `toml:"home_icon"`
	AssetDir     string `toml:"asset_dir"`
	IconProtocol string `toml:"icon_protocol"`
	IconWidth    int    `toml:"icon_width"`
	IconHeight   int    `toml:"icon_height"`
}

// HostConfig configures the host container side: the app manifest and the
// control socket external hosts use.
type HostConfig struct {
	Manifest       string   `toml:"manifest"`
	SocketPath     string   `toml:"socket_path"`
	PIDFile        string   `toml:"pid_file"`
	HealthFile     string   `toml:"health_file"`
	HealthInterval Duration `toml:"health_interval"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables
// it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validProtocols = []string{"auto", "halfblocks", "kitty", "iterm2", "sixel", "text"}
)

// Validate checks field values and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	if !contains(validLogLevels, strings.ToLower(c.General.LogLevel)) {
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}
	if strings.TrimSpace(c.Shell.Title) == "" {
		errs = append(errs, errors.New("shell.title: must not be empty"))
	}
	if !contains(validProtocols, c.Shell.IconProtocol) {
		errs = append(errs, fmt.Errorf("shell.icon_protocol: unknown protocol %q", c.Shell.IconProtocol))
	}
	if c.Shell.IconWidth < 4 || c.Shell.IconHeight < 2 {
		errs = append(errs, fmt.Errorf("shell.icon_width/icon_height: %dx%d is smaller than 4x2",
			c.Shell.IconWidth, c.Shell.IconHeight))
	}
	if c.Host.SocketPath == "" {
		errs = append(errs, errors.New("host.socket_path: must not be empty"))
	}
	if c.Host.HealthFile != "" && c.Host.HealthInterval.Duration <= 0 {
		errs = append(errs, errors.New("host.health_interval: must be positive when health_file is set"))
	}
	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
