// Package core defines the shared language of the LeapData system.
//
// This package contains:
//   - Dynamic values and their coercion (Value, Kind)
//   - Entity structure (Entity, Attribute, Relation) and records
//   - Paging types (Page, PageRequest) and the Session contract
//   - The error taxonomy (ResolutionError, QueryError, PersistenceError)
//   - Configuration types (TargetConfig, EntityConfig)
//
// pkg/core imports only stdlib and small conversion helpers.
// All other packages depend on core, not the reverse.
package core
