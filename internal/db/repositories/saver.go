// saver.go implements Saver, which persists records and stamps audit and tenant
// metadata on the way. RawSave skips the stamping for batch jobs.
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fiee/dorsale/internal/record"
	"github.com/jmoiron/sqlx"
)

// SaveOptions carries the optional actor and tenant of a save.
type SaveOptions struct {
	Actor    *int64
	TenantID *int64
}

// ActorOrAnonymous returns the actor id or the anonymous sentinel.
func (o SaveOptions) ActorOrAnonymous() int64 {
	if o.Actor == nil {
		return record.AnonymousActorID
	}
	return *o.Actor
}

// Saver writes records with INSERT ... RETURNING id or UPDATE by id.
type Saver struct {
	// Now is the clock used for audit stamps.
	Now func() time.Time
}

// NewSaver creates a Saver using the wall clock.
func NewSaver() *Saver {
	return &Saver{Now: time.Now}
}

// Save stamps rec and persists it. New records get created_* set once; every
// save sets modified_*. Without an actor the anonymous sentinel is used for the
// creation stamp and the modifier is left unchanged on updates.
func (s *Saver) Save(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, rec record.Record, opts SaveOptions) error {
	now := s.Now()
	if a, ok := rec.(record.Auditable); ok && desc.Auditable() {
		info := a.AuditInfo()
		if rec.PK() == 0 {
			info.StampCreated(opts.ActorOrAnonymous(), now)
			info.StampModified(opts.ActorOrAnonymous(), now)
		} else {
			modifier := info.ModifiedBy
			if opts.Actor != nil {
				modifier = *opts.Actor
			}
			info.StampModified(modifier, now)
		}
	}
	if t, ok := rec.(record.TenantScoped); ok && opts.TenantID != nil && desc.TenantScoped() {
		t.SetTenant(*opts.TenantID)
	}
	return s.RawSave(ctx, ext, desc, rec)
}

// RawSave persists rec exactly as it is.
func (s *Saver) RawSave(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, rec record.Record) error {
	cols := desc.Columns()[1:]
	vals, err := record.Values(rec, cols)
	if err != nil {
		return err
	}

	if rec.PK() == 0 {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			desc.Table, strings.Join(cols, ", "), placeholders(len(cols)))
		var id int64
		if err := ext.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), vals...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert %s: %w", desc.Key(), err)
		}
		rec.SetPK(id)
		return nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", desc.Table, strings.Join(sets, ", "))
	if _, err := ext.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), append(vals, rec.PK())...); err != nil {
		return fmt.Errorf("failed to update %s %d: %w", desc.Key(), rec.PK(), err)
	}
	return nil
}

// SetColumn updates a single column of a saved record without stamping.
func (s *Saver) SetColumn(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, rec record.Record, column string, val any) error {
	if err := record.Set(rec, column, val); err != nil {
		return err
	}
	query := sqlx.Rebind(sqlx.DOLLAR, fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", desc.Table, column))
	if _, err := ext.ExecContext(ctx, query, val, rec.PK()); err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", desc.Key(), column, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
