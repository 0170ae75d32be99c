// resolver.go turns foreign-key ids and to-many collections into display strings
// for listings and exports.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiee/dorsale/internal/record"
	"github.com/jmoiron/sqlx"
)

// Resolver loads related records by id and renders them with record.DisplayString.
// A Resolver caches lookups and is meant to live for one request.
type Resolver struct {
	db       sqlx.ExtContext
	registry *record.Registry
	cache    map[string]string
}

// NewResolver creates a request-scoped resolver.
func NewResolver(db sqlx.ExtContext, registry *record.Registry) *Resolver {
	return &Resolver{db: db, registry: registry, cache: make(map[string]string)}
}

// Display returns the display string of the record ref/id. Deleted records still
// resolve; a missing one renders as "#id".
func (r *Resolver) Display(ctx context.Context, ref record.Ref, id int64) (string, error) {
	key := fmt.Sprintf("%s:%d", ref, id)
	if s, ok := r.cache[key]; ok {
		return s, nil
	}
	desc, err := r.registry.LookupRef(ref)
	if err != nil {
		return "", err
	}
	rec, err := newQuery(r.db, desc).Get(ctx, id)
	var s string
	switch {
	case err == nil:
		s = record.DisplayString(rec)
	case errors.Is(err, ErrNotFound):
		s = fmt.Sprintf("#%d", id)
	default:
		return "", err
	}
	r.cache[key] = s
	return s, nil
}

// FieldDisplay returns the display form of a relation field of rec: a string for
// foreign keys (nil when unset) and a []string for collections.
func (r *Resolver) FieldDisplay(ctx context.Context, f record.Field, rec record.Record) (any, error) {
	if f.Collection != nil {
		return r.collection(ctx, f, rec.PK())
	}
	if f.Related == nil {
		return nil, fmt.Errorf("field %q has no related type", f.Name)
	}
	v, err := record.Get(rec, f.Name)
	if err != nil || v == nil {
		return nil, err
	}
	id, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("field %q holds %T, want int64", f.Name, v)
	}
	return r.Display(ctx, *f.Related, id)
}

func (r *Resolver) collection(ctx context.Context, f record.Field, ownerID int64) ([]string, error) {
	c := f.Collection
	var ids []int64
	if c.MemberColumn == "" {
		query := sqlx.Rebind(sqlx.DOLLAR, "SELECT id FROM "+c.Table+" WHERE "+c.OwnerColumn+" = ? ORDER BY id")
		if err := sqlx.SelectContext(ctx, r.db, &ids, query, ownerID); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.Name, err)
		}
	} else {
		query := sqlx.Rebind(sqlx.DOLLAR, "SELECT "+c.MemberColumn+" FROM "+c.Table+
			" WHERE "+c.OwnerColumn+" = ? AND "+c.MemberColumn+" IS NOT NULL ORDER BY "+c.MemberColumn)
		if err := sqlx.SelectContext(ctx, r.db, &ids, query, ownerID); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.Name, err)
		}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if f.Related == nil {
			out = append(out, fmt.Sprintf("#%d", id))
			continue
		}
		s, err := r.Display(ctx, *f.Related, id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
