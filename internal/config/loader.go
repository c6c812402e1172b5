package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rox-desktop/rox-filer-sub001/internal/choices"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the choices path of config.yaml.
func DefaultConfigPath() (string, error) {
	return choices.Path("config.yaml")
}

// Load reads the config from the standard location. A missing file yields
// the defaults.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config at path over the defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.RunActions == nil {
		cfg.RunActions = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvironment exports Display/XAuthority so the X connection picks
// them up.
func (c *Config) ApplyEnvironment() {
	if c.Display != "" {
		os.Setenv("DISPLAY", c.Display)
	}
	if c.XAuthority != "" {
		os.Setenv("XAUTHORITY", c.XAuthority)
	}
}
