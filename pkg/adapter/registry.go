package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapdata/pkg/core"
)

// Factory constructs an adapter. A nil logger means discard.
type Factory func(*slog.Logger) Adapter

// registration is one registered adapter type.
type registration struct {
	factory          Factory
	migrationDialect string
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithMigrationDialect names the goose dialect used to migrate targets of
// this type. Types registered without one cannot be migrated.
func WithMigrationDialect(name string) RegisterOption {
	return func(r *registration) { r.migrationDialect = name }
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register adds an adapter factory to the registry. Adapter packages call it
// from init. Registering a name twice replaces the earlier entry.
func Register(name string, factory Factory, opts ...RegisterOption) {
	r := registration{factory: factory}
	for _, opt := range opts {
		opt(&r)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = r
}

// Get retrieves an adapter factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r.factory, ok
}

// MigrationDialect returns the goose dialect registered for an adapter type.
func MigrationDialect(name string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	if !ok || r.migrationDialect == "" {
		return "", false
	}
	return r.migrationDialect, true
}

// NewAdapter creates an adapter for cfg.Type. The logger is handed to the
// factory.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      cfg.Type,
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// ListAdapters returns all registered adapter names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether an adapter type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check your target.type in leapdata.yaml", e.Type, e.Available)
}
