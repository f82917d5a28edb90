package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Shell.Title != "Ace Car Entertainment" {
		t.Errorf("title = %q", cfg.Shell.Title)
	}
	if cfg.Host.HealthInterval.Duration != 10*time.Second {
		t.Errorf("health interval = %v", cfg.Host.HealthInterval)
	}
}

func TestLoadFromReaderOverlaysDefaults(t *testing.T) {
	in := `
[general]
log_level = "debug"

[shell]
title = "Dash"
icon_width = 20

[host]
manifest = "/etc/ace-dash/apps.yaml"
health_interval = "250ms"

[metrics]
addr = ":9099"
`
	cfg, err := LoadFromReader(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.General.LogLevel)
	}
	if cfg.Shell.Title != "Dash" || cfg.Shell.IconWidth != 20 {
		t.Errorf("shell = %+v", cfg.Shell)
	}
	if cfg.Shell.IconHeight != 4 {
		t.Errorf("icon_height default lost: %d", cfg.Shell.IconHeight)
	}
	if cfg.Host.Manifest != "/etc/ace-dash/apps.yaml" {
		t.Errorf("manifest = %q", cfg.Host.Manifest)
	}
	if cfg.Host.HealthInterval.Duration != 250*time.Millisecond {
		t.Errorf("health_interval = %v", cfg.Host.HealthInterval)
	}
	if cfg.Metrics.Addr != ":9099" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("[host]\nhealth_interval = \"-5s\"\n"))
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadFromReaderRejectsBadTOML(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("[shell\ntitle=")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ACEDASH_TITLE", "Road Trip")
	t.Setenv("ACEDASH_LOG_LEVEL", "warn")
	t.Setenv("ACEDASH_ASSETS", "/srv/assets")
	t.Setenv("ACEDASH_SOCKET", "/tmp/dash.sock")
	t.Setenv("ACEDASH_METRICS_ADDR", "127.0.0.1:9100")

	cfg, err := LoadFromReader(strings.NewReader(`[shell]
title = "from file"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shell.Title != "Road Trip" {
		t.Errorf("title = %q, env should win", cfg.Shell.Title)
	}
	if cfg.General.LogLevel != "warn" || cfg.Shell.AssetDir != "/srv/assets" ||
		cfg.Host.SocketPath != "/tmp/dash.sock" || cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFromFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shell.IconWidth != DefaultConfig().Shell.IconWidth {
		t.Errorf("expected defaults, got %+v", cfg.Shell)
	}
}

func TestLoadSearchesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "ace-dash"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "ace-dash", "config.toml")
	if err := os.WriteFile(path, []byte("[shell]\ntitle = \"XDG\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shell.Title != "XDG" {
		t.Errorf("title = %q, want XDG", cfg.Shell.Title)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.General.LogLevel = "loud" }, "general.log_level"},
		{"title", func(c *Config) { c.Shell.Title = "  " }, "shell.title"},
		{"protocol", func(c *Config) { c.Shell.IconProtocol = "vga" }, "shell.icon_protocol"},
		{"icon size", func(c *Config) { c.Shell.IconWidth = 2 }, "shell.icon_width"},
		{"socket", func(c *Config) { c.Host.SocketPath = "" }, "host.socket_path"},
		{"health", func(c *Config) { c.Host.HealthInterval = Duration{} }, "host.health_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.LogLevel = "nope"
	cfg.Shell.Title = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "log_level") || !strings.Contains(msg, "title") {
		t.Errorf("expected both problems reported, got %q", msg)
	}
}
