package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration written as a Go duration string in TOML
// ("500ms", "10s", "1m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a non-negative duration. An empty string is zero.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q not allowed", text)
	}
	d.Duration = parsed
	return nil
}

// MarshalText encodes the duration in time.Duration.String form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
