package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapdata/internal/migrate"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the target",
		Long: `Apply goose SQL migrations from the migrations directory to the target.

Migrations are supported for sqlite and postgres targets. The directory is
taken from migrations_dir (default: migrations under the project root).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *migrate.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *migrate.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *migrate.Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, m *migrate.Migrator) error {
	v, err := m.Version()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migration version %d\n", v)
	return nil
}

// withMigrator connects to the target and runs fn with a migrator over the
// configured migrations directory.
func withMigrator(cmd *cobra.Command, fn func(m *migrate.Migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := NewCommandContext(cmd)

	dir := cmdCtx.Cfg.MigrationsDir
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory %q not found", dir)
	}

	adp, err := connect(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	m, err := migrate.New(adp.DB(), cmdCtx.Cfg.Target.Type, os.DirFS(dir), ".", cmdCtx.Logger)
	if err != nil {
		return err
	}
	return fn(m)
}
