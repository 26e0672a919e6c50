package core

import "context"

// PageRequest identifies a result window by page number and size.
type PageRequest struct {
	Number int
	Size   int
}

// NewPageRequest returns the request for page number of the given size.
func NewPageRequest(number, size int) PageRequest {
	return PageRequest{Number: number, Size: size}
}

// Offset returns the index of the first row of the window.
func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

// Page is a fetched window of records.
type Page struct {
	Records []*Record
	Request PageRequest
	Total   int64
}

// Len returns the number of records in the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Records)
}

// HasNext reports whether rows exist after this window.
func (p *Page) HasNext() bool {
	if p == nil {
		return false
	}
	return int64(p.Request.Offset()+len(p.Records)) < p.Total
}

// HasPrevious reports whether this window is not the first one.
func (p *Page) HasPrevious() bool {
	return p != nil && p.Request.Number > 0
}

// NextRequest returns the request for the following window.
func (p *Page) NextRequest() PageRequest {
	return PageRequest{Number: p.Request.Number + 1, Size: p.Request.Size}
}

// PreviousRequest returns the request for the preceding window.
func (p *Page) PreviousRequest() PageRequest {
	if p.Request.Number == 0 {
		return p.Request
	}
	return PageRequest{Number: p.Request.Number - 1, Size: p.Request.Size}
}

// Statement is query or statement text with named `:param` placeholders
// and the parameters to bind. Entity is the entity the result rows map to.
type Statement struct {
	Text   string
	Params []Value
	Entity *Entity
}

// Session is the persistence collaborator a DataSource delegates to.
type Session interface {
	// ResolveEntity returns the structural descriptor of a named entity.
	ResolveEntity(ctx context.Context, name string) (*Entity, error)

	// Relation resolves relation metadata declared on owner.
	Relation(ctx context.Context, owner *Entity, refID string) (*Relation, error)

	// ExecuteQuery runs a select statement and returns the requested window.
	ExecuteQuery(ctx context.Context, stmt Statement, req PageRequest) (*Page, error)

	// ExecuteStatement runs an update or delete and returns the affected rows.
	ExecuteStatement(ctx context.Context, stmt Statement) (int64, error)

	// Persist inserts a new record.
	Persist(ctx context.Context, rec *Record) error

	// Merge upserts a record and returns the managed instance.
	Merge(ctx context.Context, rec *Record) (*Record, error)

	// Remove deletes a record by identity.
	Remove(ctx context.Context, rec *Record) error

	// BeginIfInactive starts a transaction unless one is active.
	BeginIfInactive(ctx context.Context) error
}
