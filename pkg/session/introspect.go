package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapdata/pkg/adapter"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"golang.org/x/sync/errgroup"
)

// introspectLimit bounds concurrent metadata queries.
const introspectLimit = 4

// Introspect loads table metadata for every declared entity, keyed by table
// name. Metadata is required only for entities that declare no attributes;
// lookup failures for the others are logged and skipped.
func Introspect(ctx context.Context, adp adapter.Adapter, defs []core.EntityConfig, tableName func(core.EntityConfig) string, logger *slog.Logger) (map[string]*core.TableMetadata, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		mu   sync.Mutex
		meta = make(map[string]*core.TableMetadata, len(defs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(introspectLimit)
	for _, def := range defs {
		table := tableName(def)
		required := len(def.Attributes) == 0
		g.Go(func() error {
			m, err := adp.GetTableMetadata(gctx, table)
			if err != nil {
				if required {
					return fmt.Errorf("failed to introspect entity %s: %w", def.Name, err)
				}
				logger.Debug("skipping table metadata", slog.String("table", table), slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			meta[table] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meta, nil
}
