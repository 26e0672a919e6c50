package config

import (
	"fmt"
	"slices"
	"strings"

	intconfig "github.com/leapstack-labs/leapdata/internal/config"
)

// DefaultSchemaForType returns the default schema for a database type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t *TargetConfig) error {
	return intconfig.ValidateTarget(t)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	if c.OutputFormat != "" && !slices.Contains(OutputFormats, strings.ToLower(c.OutputFormat)) {
		return fmt.Errorf("unknown output format %q (expected one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		key := strings.ToLower(e.Name)
		if seen[key] {
			return fmt.Errorf("entity %q is declared more than once", e.Name)
		}
		seen[key] = true
	}
	return nil
}

// ValidateEntities checks that the project declares entities to work with.
// Commands that open a session call it; help and version do not.
func (c *Config) ValidateEntities() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("no entities declared\nHint: add an entities: section to %s", intconfig.ConfigFileName)
	}
	return nil
}
