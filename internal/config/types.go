// Package config provides shared project configuration types for leapdata.
// It is decoupled from CLI concerns so library callers can load the same
// project file the command line uses.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/adapter"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/dialect"
)

// ProjectConfig holds the project file settings needed to open a session.
// This is a subset of the full CLI Config.
type ProjectConfig struct {
	Target        *core.TargetConfig  `koanf:"target"`
	PageSize      int                 `koanf:"page_size"`
	MigrationsDir string              `koanf:"migrations_dir"`
	Entities      []core.EntityConfig `koanf:"entities"`
}

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; if not found, returns "main" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// ValidateTarget checks that a target names a registered adapter.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// Entity returns the declared entity with the given name, case-insensitively.
func (c *ProjectConfig) Entity(name string) (core.EntityConfig, bool) {
	for _, e := range c.Entities {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return core.EntityConfig{}, false
}
