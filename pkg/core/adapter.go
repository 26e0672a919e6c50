package core

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column represents a column in a database table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// TableMetadata holds metadata about a database table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Column returns the column with the given name, case-insensitively.
func (m *TableMetadata) Column(name string) (Column, bool) {
	key := FoldName(name)
	for _, c := range m.Columns {
		if FoldName(c.Name) == key {
			return c, true
		}
	}
	return Column{}, false
}
