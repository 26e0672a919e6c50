// Package migrate applies schema migrations to a target database.
package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/leapdata/pkg/adapter"
)

// goose keeps its base filesystem, dialect and logger in package globals.
var gooseMu sync.Mutex

// Migrator runs goose migrations from one directory of a filesystem.
type Migrator struct {
	db      *sql.DB
	dialect string
	fsys    fs.FS
	dir     string
	logger  *slog.Logger
}

// New creates a migrator for a database of the given adapter type. The
// type must be registered with a migration dialect.
// A nil fsys reads dir from the operating system.
func New(db *sql.DB, adapterType string, fsys fs.FS, dir string, logger *slog.Logger) (*Migrator, error) {
	dialect, ok := adapter.MigrationDialect(adapterType)
	if !ok {
		return nil, fmt.Errorf("migrations are not supported for %q targets", adapterType)
	}
	if fsys == nil {
		fsys = os.DirFS(".")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{db: db, dialect: dialect, fsys: fsys, dir: dir, logger: logger}, nil
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fsys)
	goose.SetLogger(&gooseLogger{logger: m.logger})
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	return m.with(func() error {
		if err := goose.Up(m.db, m.dir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	return m.with(func() error {
		if err := goose.Down(m.db, m.dir); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return nil
	})
}

// Version returns the current migration version.
func (m *Migrator) Version() (int64, error) {
	var version int64
	err := m.with(func() error {
		v, err := goose.GetDBVersion(m.db)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// gooseLogger forwards goose output to slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "migrate"))
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "migrate"))
}
