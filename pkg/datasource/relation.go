package datasource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// ownerPageSize is the window used to locate the owner of a relation.
const ownerPageSize = 100

// FilterByRelation fetches the targets of relation refID owned by the
// record whose identity is ownerKeys. The page holds target records.
func (ds *DataSource) FilterByRelation(ctx context.Context, refID string, req core.PageRequest, ownerKeys ...core.Value) error {
	rel, err := ds.session.Relation(ctx, ds.entity, refID)
	if err != nil {
		return err
	}
	stmt, err := query.RelationSelect(rel, ownerKeys)
	if err != nil {
		return err
	}
	return ds.run(ctx, stmt, req)
}

// InsertRelation links a new target to the owner identified by ownerKeys.
// The owner is located first and becomes the current record. Omitting
// ownerKeys is a QueryError.
//
// For an associative relation a new association record linking the owner
// to the target described by fields is persisted and the owner is returned.
// For a direct relation a new target record built from fields, owned by the
// owner, is persisted and returned.
func (ds *DataSource) InsertRelation(ctx context.Context, refID string, fields map[string]any, ownerKeys ...core.Value) (*core.Record, error) {
	rel, err := ds.session.Relation(ctx, ds.entity, refID)
	if err != nil {
		return nil, err
	}
	if len(ownerKeys) == 0 {
		return nil, core.NewQueryError("", "relation %s: owner identity is required", refID)
	}
	if err := ds.FilterPage(ctx, "", core.NewPageRequest(0, ownerPageSize), ownerKeys...); err != nil {
		return nil, err
	}
	owner, err := ds.Current()
	if err != nil {
		return nil, fmt.Errorf("owner of relation %s: %w", refID, err)
	}

	var insertion, result *core.Record
	if rel.IsAssociative() {
		target, err := rel.Target.RecordFrom(fields)
		if err != nil {
			return nil, err
		}
		insertion = rel.Association.NewRecord()
		if err := insertion.Load(rel.TargetAttr, target); err != nil {
			return nil, err
		}
		if err := insertion.Load(rel.OwnerAttr, owner); err != nil {
			return nil, err
		}
		result = owner
	} else {
		insertion, err = rel.Target.RecordFrom(fields)
		if err != nil {
			return nil, err
		}
		if err := insertion.Load(rel.OwnerAttr, owner); err != nil {
			return nil, err
		}
		result = insertion
	}

	if err := ds.session.BeginIfInactive(ctx); err != nil {
		return nil, err
	}
	if err := ds.session.Persist(ctx, insertion); err != nil {
		return nil, err
	}
	ds.logger.Debug("inserted relation",
		slog.String("entity", ds.entity.Name),
		slog.String("relation", rel.ID),
		slog.String("record", insertion.Entity().Name))
	return result, nil
}

// DeleteRelation unlinks the target identified by targetKeys from the owner
// identified by ownerKeys. For an associative relation the association rows
// matching both identities are deleted; for a direct relation the target
// rows themselves are deleted.
func (ds *DataSource) DeleteRelation(ctx context.Context, refID string, ownerKeys, targetKeys []core.Value) (int64, error) {
	rel, err := ds.session.Relation(ctx, ds.entity, refID)
	if err != nil {
		return 0, err
	}
	stmt, err := query.RelationDelete(rel, ownerKeys, targetKeys)
	if err != nil {
		return 0, err
	}
	return ds.exec(ctx, stmt)
}
