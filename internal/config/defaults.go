package config

import "github.com/leapstack-labs/leapdata/pkg/core"

// Default configuration values.
const (
	DefaultPageSize      = 100
	DefaultMigrationsDir = "migrations"
	DefaultTargetType    = "sqlite"
)

// ApplyDefaults applies default values to a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.PageSize < 1 {
		c.PageSize = DefaultPageSize
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = DefaultMigrationsDir
	}
	if c.Target != nil {
		ApplyTargetDefaults(c.Target)
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}
