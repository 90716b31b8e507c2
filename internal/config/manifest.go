package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AbdouB/adaptive/internal/models"
)

//go:embed default_manifest.yaml
var defaultManifest []byte

// Manifest declares the components a session registers
type Manifest struct {
	Components []models.ComponentConfig `yaml:"components"`
}

// DefaultManifest returns the built-in demo components
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(bytes.NewReader(defaultManifest))
}

// LoadManifest reads a manifest file, or the built-in one when path is empty
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are rejected.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks ids are present and unique
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Components))
	for i, c := range m.Components {
		if c.ID == "" {
			return fmt.Errorf("component %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate component id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
