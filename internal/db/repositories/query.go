// query.go implements Query, an immutable SELECT builder over one registered record
// type. Managers hand out Queries that already carry the tenant, deletion and
// ownership predicates; handlers only add ordering and paging.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fiee/dorsale/internal/record"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned by Get when no row matches inside the query's scope.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownField is returned when ordering by something that is not a column.
	ErrUnknownField = errors.New("unknown field")
)

// Query selects rows of one record type. Every method returns a copy.
type Query struct {
	db    sqlx.ExtContext
	desc  *record.Descriptor
	where []string
	args  []any
	order []string
	none  bool
}

func newQuery(db sqlx.ExtContext, desc *record.Descriptor) *Query {
	return &Query{db: db, desc: desc}
}

func (q *Query) clone() *Query {
	c := *q
	c.where = append([]string(nil), q.where...)
	c.args = append([]any(nil), q.args...)
	c.order = append([]string(nil), q.order...)
	return &c
}

// Descriptor returns the record type the query selects.
func (q *Query) Descriptor() *record.Descriptor { return q.desc }

// Filter adds a predicate. Use ? for placeholders.
func (q *Query) Filter(expr string, args ...any) *Query {
	c := q.clone()
	c.where = append(c.where, expr)
	c.args = append(c.args, args...)
	return c
}

// None returns a query that matches nothing without touching the database.
func (q *Query) None() *Query {
	c := q.clone()
	c.none = true
	return c
}

// IsNone reports whether the query was emptied by None.
func (q *Query) IsNone() bool { return q.none }

// OrderBy replaces the ordering. Terms are column names, "-" prefixed for descending.
func (q *Query) OrderBy(terms ...string) (*Query, error) {
	order := make([]string, 0, len(terms))
	for _, t := range terms {
		col, desc := record.OrderingColumn(t)
		if !q.desc.HasColumn(col) {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownField, col, q.desc.Key())
		}
		if desc {
			order = append(order, col+" DESC")
		} else {
			order = append(order, col+" ASC")
		}
	}
	c := q.clone()
	c.order = order
	return c, nil
}

// Ordering returns the current ORDER BY terms.
func (q *Query) Ordering() []string { return q.order }

func (q *Query) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// SQL renders the SELECT statement with Postgres placeholders.
func (q *Query) SQL(limit, offset int) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.desc.Columns(), ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.desc.Table)
	b.WriteString(q.whereClause())
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	args := append([]any(nil), q.args...)
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	if offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, offset)
	}
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), args
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.none {
		return 0, nil
	}
	query := sqlx.Rebind(sqlx.DOLLAR, "SELECT COUNT(*) FROM "+q.desc.Table+q.whereClause())
	var n int
	if err := q.db.QueryRowxContext(ctx, query, q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.desc.Key(), err)
	}
	return n, nil
}

// Exists reports whether at least one row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if q.none {
		return false, nil
	}
	query := sqlx.Rebind(sqlx.DOLLAR, "SELECT EXISTS (SELECT 1 FROM "+q.desc.Table+q.whereClause()+")")
	var ok bool
	if err := q.db.QueryRowxContext(ctx, query, q.args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", q.desc.Key(), err)
	}
	return ok, nil
}

// Fetch returns one page of records. A limit of zero means no limit.
func (q *Query) Fetch(ctx context.Context, limit, offset int) ([]record.Record, error) {
	if q.none {
		return nil, nil
	}
	query, args := q.SQL(limit, offset)
	rows, err := q.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.desc.Key(), err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec := q.desc.New()
		if err := rows.StructScan(rec); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", q.desc.Key(), err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// All returns every matching record.
func (q *Query) All(ctx context.Context) ([]record.Record, error) {
	return q.Fetch(ctx, 0, 0)
}

// Get returns the record with id inside the query's scope, or ErrNotFound.
func (q *Query) Get(ctx context.Context, id int64) (record.Record, error) {
	if q.none {
		return nil, ErrNotFound
	}
	query, args := q.Filter("id = ?", id).SQL(1, 0)
	rec := q.desc.New()
	err := q.db.QueryRowxContext(ctx, query, args...).StructScan(rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", q.desc.Key(), id, err)
	}
	return rec, nil
}
