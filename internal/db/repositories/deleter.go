// deleter.go implements the cascading soft delete. The root and every soft-deletable
// dependent are flagged and re-stamped, plain dependents are removed, all in one
// transaction. Hooks observe the physical removals.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/telemetry"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrUnsaved is returned when deleting a record that was never persisted.
	ErrUnsaved = errors.New("record has no primary key")
	// ErrCascadeFailed wraps any failure inside the delete transaction.
	ErrCascadeFailed = errors.New("cascading delete failed")
)

// DeleteEvent describes one batch of physically removed rows.
type DeleteEvent struct {
	Table    string
	Type     string // registry key, empty for plain tables
	Column   string
	ParentID int64
	IDs      []int64
	Removed  int64 // set for PostDelete only
	Actor    int64
	TenantID int64
}

// DeleteHook observes a removal inside the delete transaction. A returned error
// aborts the whole cascade.
type DeleteHook func(ctx context.Context, tx *sqlx.Tx, ev DeleteEvent) error

// DeleteHooks is the set of PreDelete/PostDelete subscribers.
type DeleteHooks struct {
	mu   sync.RWMutex
	pre  []DeleteHook
	post []DeleteHook
}

// OnPreDelete subscribes fn to run before each removal.
func (h *DeleteHooks) OnPreDelete(fn DeleteHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pre = append(h.pre, fn)
}

// OnPostDelete subscribes fn to run after each removal.
func (h *DeleteHooks) OnPostDelete(fn DeleteHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.post = append(h.post, fn)
}

func (h *DeleteHooks) fire(ctx context.Context, tx *sqlx.Tx, pre bool, ev DeleteEvent) error {
	h.mu.RLock()
	hooks := h.post
	if pre {
		hooks = h.pre
	}
	hooks = append([]DeleteHook(nil), hooks...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		if err := fn(ctx, tx, ev); err != nil {
			return err
		}
	}
	return nil
}

// DeleteResult counts what a cascade touched, keyed by type or table.
type DeleteResult struct {
	SoftDeleted map[string]int `json:"soft_deleted"`
	Removed     map[string]int `json:"removed"`
	Nullified   map[string]int `json:"nullified"`
}

func newDeleteResult() *DeleteResult {
	return &DeleteResult{
		SoftDeleted: make(map[string]int),
		Removed:     make(map[string]int),
		Nullified:   make(map[string]int),
	}
}

// Total returns the number of affected rows.
func (r *DeleteResult) Total() int {
	n := 0
	for _, m := range []map[string]int{r.SoftDeleted, r.Removed, r.Nullified} {
		for _, v := range m {
			n += v
		}
	}
	return n
}

// Deleter runs cascading deletes.
type Deleter struct {
	db        *sqlx.DB
	saver     *Saver
	collector *Collector
	Hooks     *DeleteHooks
}

// NewDeleter creates a deleter. The registry provides the relation graph.
func NewDeleter(db *sqlx.DB, saver *Saver, registry *record.Registry) *Deleter {
	return &Deleter{
		db:        db,
		saver:     saver,
		collector: NewCollector(registry),
		Hooks:     &DeleteHooks{},
	}
}

// Delete flags rec and its dependents as deleted on behalf of actor. Types without
// soft deletion are removed after their dependents.
func (d *Deleter) Delete(ctx context.Context, desc *record.Descriptor, tenantID int64, rec record.Record, actor int64) (*DeleteResult, error) {
	if rec == nil || rec.PK() == 0 {
		return nil, ErrUnsaved
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrCascadeFailed, err)
	}
	result, err := d.run(ctx, tx, desc, tenantID, rec, actor)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("failed to roll back cascade", "type", desc.Key(), "id", rec.PK(), "error", rbErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrCascadeFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit: %w", ErrCascadeFailed, err)
	}

	for k, n := range result.SoftDeleted {
		telemetry.CascadeObjectsTotal.WithLabelValues("soft_deleted", k).Add(float64(n))
	}
	for k, n := range result.Removed {
		telemetry.CascadeObjectsTotal.WithLabelValues("removed", k).Add(float64(n))
	}
	return result, nil
}

func (d *Deleter) run(ctx context.Context, tx *sqlx.Tx, desc *record.Descriptor, tenantID int64, rec record.Record, actor int64) (*DeleteResult, error) {
	result := newDeleteResult()
	opts := SaveOptions{Actor: &actor}

	if desc.SoftDeletable() {
		if err := d.flag(ctx, tx, desc, rec, opts); err != nil {
			return nil, err
		}
		result.SoftDeleted[desc.Key()]++
	}

	plan, err := d.collector.Collect(ctx, tx, desc, rec)
	if err != nil {
		return nil, err
	}
	if !desc.SoftDeletable() {
		plan.Removals = append(plan.Removals, Removal{Table: desc.Table, Desc: desc, IDs: []int64{rec.PK()}})
	}

	for _, item := range plan.Soft {
		if err := d.flag(ctx, tx, item.Desc, item.Record, opts); err != nil {
			return nil, err
		}
		result.SoftDeleted[item.Desc.Key()]++
	}

	for _, n := range plan.Nullify {
		query := sqlx.Rebind(sqlx.DOLLAR, fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", n.Table, n.Column, n.Column))
		res, err := tx.ExecContext(ctx, query, n.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to clear %s.%s: %w", n.Table, n.Column, err)
		}
		affected, _ := res.RowsAffected()
		result.Nullified[n.Table] += int(affected)
	}

	for _, rm := range plan.Removals {
		ev := DeleteEvent{
			Table:    rm.Table,
			Column:   rm.Column,
			ParentID: rm.ParentID,
			IDs:      rm.IDs,
			Actor:    actor,
			TenantID: tenantID,
		}
		key := rm.Table
		if rm.Desc != nil {
			ev.Type = rm.Desc.Key()
			key = ev.Type
		}
		if err := d.Hooks.fire(ctx, tx, true, ev); err != nil {
			return nil, fmt.Errorf("pre-delete hook on %s: %w", rm.Table, err)
		}

		var query string
		var arg any
		if rm.Desc != nil {
			query, arg = fmt.Sprintf("DELETE FROM %s WHERE id = ANY(?)", rm.Table), pq.Array(rm.IDs)
		} else {
			query, arg = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rm.Table, rm.Column), rm.ParentID
		}
		res, err := tx.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), arg)
		if err != nil {
			return nil, fmt.Errorf("failed to remove from %s: %w", rm.Table, err)
		}
		ev.Removed, _ = res.RowsAffected()
		result.Removed[key] += int(ev.Removed)

		if err := d.Hooks.fire(ctx, tx, false, ev); err != nil {
			return nil, fmt.Errorf("post-delete hook on %s: %w", rm.Table, err)
		}
	}
	return result, nil
}

func (d *Deleter) flag(ctx context.Context, tx *sqlx.Tx, desc *record.Descriptor, rec record.Record, opts SaveOptions) error {
	sd, ok := rec.(record.SoftDeletable)
	if !ok {
		return fmt.Errorf("%s is not soft-deletable", desc.Key())
	}
	sd.MarkDeleted()
	return d.saver.Save(ctx, tx, desc, rec, opts)
}
