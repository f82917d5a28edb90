package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appDir = "ace-dash"

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/ace-dash/config.toml
//  2. ~/.config/ace-dash/config.toml
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	paths := configSearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path. A missing
// file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader on top of the
// defaults, then applies environment overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(xdgStateHome(home), appDir)

	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			LogFile:  filepath.Join(stateDir, "ace-dash.log"),
			StateDir: stateDir,
		},
		Shell: ShellConfig{
			Title:        "Ace Car Entertainment",
			HomeIcon:     "home",
			AssetDir:     filepath.Join(xdgDataHome(home), appDir, "assets"),
			IconProtocol: "auto",
			IconWidth:    14,
			IconHeight:   4,
		},
		Host: HostConfig{
			SocketPath:     filepath.Join(stateDir, "ace-dash.sock"),
			PIDFile:        filepath.Join(stateDir, "ace-dash.pid"),
			HealthFile:     filepath.Join(stateDir, "health.json"),
			HealthInterval: Duration{10 * time.Second},
		},
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACEDASH_TITLE"); v != "" {
		cfg.Shell.Title = v
	}
	if v := os.Getenv("ACEDASH_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("ACEDASH_ASSETS"); v != "" {
		cfg.Shell.AssetDir = v
	}
	if v := os.Getenv("ACEDASH_SOCKET"); v != "" {
		cfg.Host.SocketPath = v
	}
	if v := os.Getenv("ACEDASH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, appDir, "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, appDir, "config.toml"))
	}

	return paths
}

func xdgConfigHome(home string) string {
	return xdgDir("XDG_CONFIG_HOME", home, ".config")
}

func xdgStateHome(home string) string {
	return xdgDir("XDG_STATE_HOME", home, filepath.Join(".local", "state"))
}

func xdgDataHome(home string) string {
	return xdgDir("XDG_DATA_HOME", home, filepath.Join(".local", "share"))
}

func xdgDir(env, home, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return filepath.Join(home, fallback)
}
