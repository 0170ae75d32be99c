// collector.go walks the reverse foreign keys declared on record types and plans a
// cascading delete: which records get flagged, which rows get removed and which
// references get cleared.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiee/dorsale/internal/record"
	"github.com/jmoiron/sqlx"
)

// ErrProtected is returned when a protecting relation still has live dependents.
var ErrProtected = errors.New("record is referenced by protected dependents")

// SoftItem is a dependent record that will be flagged as deleted.
type SoftItem struct {
	Desc   *record.Descriptor
	Record record.Record
}

// Removal physically deletes rows of Table. Registered types are removed by id,
// plain tables by their foreign key to ParentID.
type Removal struct {
	Table    string
	Desc     *record.Descriptor
	Column   string
	ParentID int64
	IDs      []int64
}

// Nullify clears Column on rows of Table that reference ParentID.
type Nullify struct {
	Table    string
	Column   string
	ParentID int64
}

// Plan is the ordered work of one cascade. Removals are children first.
type Plan struct {
	Soft     []SoftItem
	Nullify  []Nullify
	Removals []Removal
}

// Collector computes cascade plans from the registry's relation graph.
type Collector struct {
	registry *record.Registry
}

// NewCollector creates a collector over registry.
func NewCollector(registry *record.Registry) *Collector {
	return &Collector{registry: registry}
}

// Collect plans the cascade below root. The root itself is not part of the plan.
// Below a row that gets removed, soft-deletable dependents are removed as well
// (flagged ones included), so no remaining row references a missing parent.
func (c *Collector) Collect(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, root record.Record) (*Plan, error) {
	plan := &Plan{}
	visited := map[string]bool{visitKey(desc.Table, root.PK()): true}
	if err := c.collect(ctx, ext, desc, root.PK(), !desc.SoftDeletable(), plan, visited); err != nil {
		return nil, err
	}
	return plan, nil
}

func visitKey(table string, id int64) string {
	return fmt.Sprintf("%s:%d", table, id)
}

func (c *Collector) collect(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, id int64, removing bool, plan *Plan, visited map[string]bool) error {
	for _, rel := range desc.Relations {
		child, registered := c.registry.ByTable(rel.Table)

		switch rel.OnDelete {
		case record.Protect:
			n, err := countDependents(ctx, ext, rel, child, id, removing)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %d row(s) in %s", ErrProtected, n, rel.Table)
			}
			continue
		case record.SetNull:
			plan.Nullify = append(plan.Nullify, Nullify{Table: rel.Table, Column: rel.Column, ParentID: id})
			continue
		}

		if !registered {
			plan.Removals = append(plan.Removals, Removal{Table: rel.Table, Column: rel.Column, ParentID: id})
			continue
		}

		removeChild := removing || !child.SoftDeletable()
		q := newQuery(ext, child).Filter(rel.Column+" = ?", id)
		if !removeChild {
			q = q.Filter("deleted = ?", false)
		}
		deps, err := q.All(ctx)
		if err != nil {
			return err
		}

		var removed []int64
		for _, dep := range deps {
			key := visitKey(child.Table, dep.PK())
			if visited[key] {
				continue
			}
			visited[key] = true
			if !removeChild {
				plan.Soft = append(plan.Soft, SoftItem{Desc: child, Record: dep})
			}
			if err := c.collect(ctx, ext, child, dep.PK(), removeChild, plan, visited); err != nil {
				return err
			}
			if removeChild {
				removed = append(removed, dep.PK())
			}
		}
		if len(removed) > 0 {
			plan.Removals = append(plan.Removals, Removal{Table: child.Table, Desc: child, IDs: removed})
		}
	}
	return nil
}

// countDependents counts the rows that protect id. Flagged rows only count when
// the parent is about to be removed.
func countDependents(ctx context.Context, ext sqlx.ExtContext, rel record.Relation, child *record.Descriptor, id int64, removing bool) (int, error) {
	query := "SELECT COUNT(*) FROM " + rel.Table + " WHERE " + rel.Column + " = ?"
	if child != nil && child.SoftDeletable() && !removing {
		query += " AND deleted = false"
	}
	var n int
	if err := ext.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dependents in %s: %w", rel.Table, err)
	}
	return n, nil
}
