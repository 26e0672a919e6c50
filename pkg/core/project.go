package core

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // sqlite, duckdb, postgres

	// File-based databases (DuckDB, SQLite)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Adapter-specific structured settings (e.g. DuckDB extensions)
	Params map[string]any `koanf:"params"`
}

// ToAdapterConfig converts the target into adapter connection settings.
func (t *TargetConfig) ToAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Type:     t.Type,
		Path:     t.Database,
		Database: t.Database,
		Schema:   t.Schema,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// EntityConfig declares an entity in the project schema.
type EntityConfig struct {
	Name       string            `koanf:"name"`
	Table      string            `koanf:"table"`
	Attributes []AttributeConfig `koanf:"attributes"`
	Relations  []RelationDef     `koanf:"relations"`
}

// AttributeConfig declares one entity attribute.
type AttributeConfig struct {
	Name      string `koanf:"name"`
	Column    string `koanf:"column"`
	Type      string `koanf:"type"`
	Identity  bool   `koanf:"identity"`
	Generated bool   `koanf:"generated"`
	Ref       string `koanf:"ref"`
}
