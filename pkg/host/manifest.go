package host

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest lists the apps a host provides and when they come and go.
type Manifest struct {
	Apps []AppSpec `yaml:"apps"`
}

// AppSpec describes one app.
//
//	- name: Music
//	  position: 10
//	  glyph: "♪"
//	  body: ["Now playing", "Radio 1"]
//	  appear_after: 2s
//	  remove_after: 30s
type AppSpec struct {
	Name        string        `yaml:"name"`
	Position    int           `yaml:"position"`
	Glyph       string        `yaml:"glyph"`
	Title       string        `yaml:"title"`
	Body        []string      `yaml:"body"`
	AppearAfter time.Duration `yaml:"appear_after"`
	RemoveAfter time.Duration `yaml:"remove_after"`
}

// DefaultManifest is used when no manifest file is configured.
func DefaultManifest() *Manifest {
	return &Manifest{Apps: []AppSpec{
		{Name: "Music", Position: 10, Glyph: "♪", Body: []string{"Now playing", "Radio Ace FM"}},
		{Name: "Nav", Position: 5, Glyph: "➤", Title: "Navigation", Body: []string{"Next turn in 300 m"}},
		{Name: "Phone", Position: 10, Glyph: "✆", Body: []string{"No recent calls"}},
	}}
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes and validates a YAML manifest. Unknown fields are
// rejected.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names and timings.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.Apps))
	for i, a := range m.Apps {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("apps[%d]: name is required", i))
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("apps[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true
		if a.AppearAfter < 0 || a.RemoveAfter < 0 {
			errs = append(errs, fmt.Errorf("apps[%d] %q: negative delay", i, a.Name))
		}
		if a.RemoveAfter != 0 && a.RemoveAfter <= a.AppearAfter {
			errs = append(errs, fmt.Errorf("apps[%d] %q: remove_after must be later than appear_after", i, a.Name))
		}
	}
	return errors.Join(errs...)
}
