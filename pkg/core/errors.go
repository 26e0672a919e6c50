package core

import (
	"errors"
	"fmt"
)

// ErrNoCurrentRecord is returned when an operation needs a current record
// and the cursor points at none.
var ErrNoCurrentRecord = errors.New("no current record")

// ResolutionError is returned when an entity, relation or attribute name
// cannot be resolved.
type ResolutionError struct {
	What  string // "entity", "relation", "attribute"
	Name  string
	Owner string // owning entity for relations and attributes
}

func (e *ResolutionError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("%s %q not found on entity %q", e.What, e.Name, e.Owner)
	}
	return fmt.Sprintf("%s %q not found", e.What, e.Name)
}

// QueryError reports malformed query text, a parameter/placeholder
// mismatch, or a failed type coercion.
type QueryError struct {
	Query string
	Msg   string
	Cause error
}

// NewQueryError creates a query error with a formatted message.
func NewQueryError(query string, format string, args ...any) *QueryError {
	return &QueryError{Query: query, Msg: fmt.Sprintf(format, args...)}
}

func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query error: %s: %v", e.Msg, e.Cause)
	}
	return "query error: " + e.Msg
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// PersistenceError wraps a failure of the underlying database on
// execute, persist, merge or remove.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// WrapPersistence wraps err as a PersistenceError unless it already carries
// one of the taxonomy types.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	var qe *QueryError
	var re *ResolutionError
	if errors.As(err, &pe) || errors.As(err, &qe) || errors.As(err, &re) {
		return err
	}
	return &PersistenceError{Op: op, Cause: err}
}
