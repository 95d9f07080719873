// Package config loads, validates, and persists gridaudit configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (GRIDAUDIT_*). Nested keys use underscores:
// GRIDAUDIT_API_TOKEN -> api.token.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// GRIDAUDIT_API_TOKEN -> api.token, GRIDAUDIT_MIRROR_PATH -> mirror_path.
	// Only known section prefixes nest; top-level keys keep their underscores.
	sections := []string{"api", "sheets", "period", "tuning", "log"}
	if err := k.Load(env.Provider("GRIDAUDIT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "GRIDAUDIT_"))
		for _, section := range sections {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path. The token is
// blanked first so credentials never land in the file.
func (c *Config) Save(path string) error {
	clone := *c
	clone.API.Token = ""

	data, err := yamlv3.Marshal(&clone)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validKinds is the set of recognized coercion kinds.
var validKinds = map[string]bool{
	"currency": true,
	"count":    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Token == "" {
		return fmt.Errorf("api.token is required (set GRIDAUDIT_API_TOKEN)")
	}
	if len(c.TrackedColumns) == 0 {
		return fmt.Errorf("at least one tracked column is required")
	}
	for _, col := range c.TrackedColumns {
		if col.Column == "" {
			return fmt.Errorf("tracked column with empty name")
		}
		if !validKinds[col.Kind] {
			return fmt.Errorf("tracked column %q: invalid kind %q: must be currency or count", col.Column, col.Kind)
		}
	}
	if c.Period.ReferenceColumn == "" {
		return fmt.Errorf("period.reference_column is required")
	}
	if _, ok := weekdays[c.Period.BoundaryWeekday]; !ok {
		return fmt.Errorf("period.boundary_weekday %q: unknown weekday", c.Period.BoundaryWeekday)
	}
	if c.Period.Timezone != "" {
		if _, err := time.LoadLocation(c.Period.Timezone); err != nil {
			return fmt.Errorf("period.timezone %q: %w", c.Period.Timezone, err)
		}
	}
	if c.Tuning.RetryMaxAttempts < 1 {
		return fmt.Errorf("tuning.retry_max_attempts must be at least 1")
	}
	if c.Tuning.RowBatchSize < 1 || c.Tuning.FlushBatchSize < 1 {
		return fmt.Errorf("batch sizes must be at least 1")
	}
	return nil
}
