// Package config provides configuration management for the leapdata CLI.
//
// This package extends the shared project configuration from internal/config
// with CLI-specific fields. The shared types (TargetConfig, EntityConfig)
// are defined in pkg/core and re-exported here via type aliases for
// convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapdata/internal/config"
	"github.com/leapstack-labs/leapdata/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// EntityConfig is an alias for the shared entity declaration.
type EntityConfig = core.EntityConfig

// Config holds all CLI configuration options.
type Config struct {
	PageSize      int                  `koanf:"page_size"`
	MigrationsDir string               `koanf:"migrations_dir"`
	Environment   string               `koanf:"environment"`
	Verbose       bool                 `koanf:"verbose"`
	OutputFormat  string               `koanf:"output"`
	Target        *TargetConfig        `koanf:"target"`
	Entities      []EntityConfig       `koanf:"entities"`
	Environments  map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	MigrationsDir string        `koanf:"migrations_dir"`
	Target        *TargetConfig `koanf:"target"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultPageSize      = sharedcfg.DefaultPageSize
	DefaultMigrationsDir = sharedcfg.DefaultMigrationsDir
	DefaultEnv           = "dev"
	DefaultOutput        = "table"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"table", "json", "yaml", "csv", "md"}
