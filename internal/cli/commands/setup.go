package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdata/internal/cli/config"
	"github.com/leapstack-labs/leapdata/internal/registry"
	"github.com/leapstack-labs/leapdata/pkg/adapter"
	"github.com/leapstack-labs/leapdata/pkg/datasource"
	"github.com/leapstack-labs/leapdata/pkg/session"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext collects the loaded config and the context logger.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// Format returns the output format, preferring a non-empty override.
func (c *CommandContext) Format(override string) string {
	if override != "" {
		return override
	}
	return c.Cfg.OutputFormat
}

// getConfig returns the current configuration, or the built-in defaults
// when no config has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		PageSize:      config.DefaultPageSize,
		MigrationsDir: config.DefaultMigrationsDir,
		Environment:   config.DefaultEnv,
		OutputFormat:  config.DefaultOutput,
		Target:        &config.TargetConfig{Type: "sqlite", Database: ":memory:"},
	}
}

// connect opens the configured target without building a session.
func connect(ctx context.Context, cmdCtx *CommandContext) (adapter.Adapter, error) {
	target := cmdCtx.Cfg.Target
	if target == nil {
		return nil, fmt.Errorf("no target configured")
	}
	adp, err := adapter.NewAdapter(target.ToAdapterConfig(), cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, target.ToAdapterConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s target: %w", target.Type, err)
	}
	return adp, nil
}

// Workspace is an open session over the configured target and entities.
type Workspace struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapter  adapter.Adapter
	Registry *registry.EntityRegistry
	Session  *session.Session
}

// OpenWorkspace connects to the target, introspects the declared entities
// and builds the session. Close must be called when done.
func OpenWorkspace(ctx context.Context, cmdCtx *CommandContext) (*Workspace, error) {
	if err := cmdCtx.Cfg.ValidateEntities(); err != nil {
		return nil, err
	}

	adp, err := connect(ctx, cmdCtx)
	if err != nil {
		return nil, err
	}

	meta, err := session.Introspect(ctx, adp, cmdCtx.Cfg.Entities, registry.TableName, cmdCtx.Logger)
	if err != nil {
		_ = adp.Close()
		return nil, err
	}
	reg, err := registry.Build(cmdCtx.Cfg.Entities, meta)
	if err != nil {
		_ = adp.Close()
		return nil, fmt.Errorf("failed to build entity registry: %w", err)
	}

	cmdCtx.Logger.Debug("workspace opened",
		slog.String("target", cmdCtx.Cfg.Target.Type),
		slog.Int("entities", reg.Count()))

	return &Workspace{
		Cfg:      cmdCtx.Cfg,
		Logger:   cmdCtx.Logger,
		Adapter:  adp,
		Registry: reg,
		Session:  session.ForAdapter(adp, reg, session.WithLogger(cmdCtx.Logger)),
	}, nil
}

// DataSource opens a cursor over the named entity with the configured page size.
func (w *Workspace) DataSource(ctx context.Context, entity string) (*datasource.DataSource, error) {
	return datasource.New(ctx, w.Session, entity,
		datasource.WithPageSize(w.Cfg.PageSize),
		datasource.WithLogger(w.Logger))
}

// Commit flushes and commits pending work.
func (w *Workspace) Commit(ctx context.Context) error {
	return w.Session.Commit(ctx)
}

// Close rolls back uncommitted work and closes the connection.
func (w *Workspace) Close() error {
	if w.Session.Active() {
		_ = w.Session.Rollback()
	}
	return w.Adapter.Close()
}

// withWorkspace opens a workspace for the duration of fn.
func withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := NewCommandContext(cmd)
	ws, err := OpenWorkspace(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()
	return fn(ctx, cmdCtx, ws)
}
