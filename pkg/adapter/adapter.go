// Package adapter provides the database adapter contract used by the
// session layer.
//
// An adapter owns a database/sql connection pool, knows its SQL dialect and
// can describe tables for entity introspection. Concrete implementations
// live in pkg/adapters/ subdirectories and register themselves in init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/dialect"
)

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata
)

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// DB returns the underlying connection pool. Sessions open their
	// transactions on it.
	DB() *sql.DB

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// GetTableMetadata retrieves metadata for a specified table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// ListTables returns the user tables of the default schema.
	ListTables(ctx context.Context) ([]string, error)

	// Dialect returns the SQL dialect configuration for this adapter.
	Dialect() *dialect.Dialect
}
