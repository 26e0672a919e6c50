// Package dialect provides the DuckDB SQL dialect definition.
// This package has no database driver dependencies, so tools that only
// render statements can import it without opening connections.
package dialect

import (
	"github.com/leapstack-labs/leapdata/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// duckdbReservedWords lists keywords that must be quoted as identifiers.
var duckdbReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc",
	"asymmetric", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "default", "deferrable", "desc", "describe",
	"distinct", "do", "else", "end", "except", "false", "fetch", "for",
	"foreign", "from", "grant", "group", "having", "in", "initially",
	"intersect", "into", "lateral", "leading", "limit", "not", "null",
	"offset", "on", "only", "or", "order", "pivot", "placing", "primary",
	"qualify", "references", "returning", "select", "show", "some",
	"summarize", "symmetric", "table", "then", "to", "trailing", "true",
	"union", "unique", "unpivot", "using", "variadic", "when", "where",
	"window", "with",
}

// DuckDB is the DuckDB dialect configuration.
var DuckDB = dialect.NewDialect("duckdb").
	Identifiers(`"`, `"`, `""`).
	DefaultSchema("main").
	PlaceholderStyle(dialect.PlaceholderQuestion).
	Returning(true).
	WithReservedWords(duckdbReservedWords...).
	Build()
