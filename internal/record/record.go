// Package record defines the building blocks shared by every persisted entity:
// audit metadata, tenant ownership and the soft-delete flag. Concrete record types
// embed Base (or a subset of its parts) and are described to the rest of the
// application through a Descriptor held in a Registry.
package record

import "time"

// AnonymousActorID is stamped into created_by/modified_by when no actor is known.
const AnonymousActorID int64 = -1

// Record is anything with a numeric primary key. A zero PK means "not yet saved".
type Record interface {
	PK() int64
	SetPK(id int64)
}

// Auditable records carry creation/modification stamps.
type Auditable interface {
	Record
	AuditInfo() *Audit
}

// TenantScoped records belong to exactly one site.
type TenantScoped interface {
	Record
	Tenant() int64
	SetTenant(id int64)
}

// SoftDeletable records are flagged instead of removed.
type SoftDeletable interface {
	Record
	IsDeleted() bool
	MarkDeleted()
}

// Displayer is implemented by records with a human-readable label.
type Displayer interface {
	Display() string
}

// Audit holds creation and modification stamps.
type Audit struct {
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	CreatedBy  int64     `db:"created_by" json:"created_by"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
	ModifiedBy int64     `db:"modified_by" json:"modified_by"`
}

// AuditInfo exposes the stamps for Auditable.
func (a *Audit) AuditInfo() *Audit { return a }

// StampCreated sets the creation stamp.
func (a *Audit) StampCreated(actor int64, now time.Time) {
	a.CreatedAt = now
	a.CreatedBy = actor
}

// StampModified sets the modification stamp.
func (a *Audit) StampModified(actor int64, now time.Time) {
	a.ModifiedAt = now
	a.ModifiedBy = actor
}

// TenantRef links a record to its owning site.
type TenantRef struct {
	SiteID int64 `db:"site_id" json:"site_id"`
}

func (t *TenantRef) Tenant() int64 { return t.SiteID }
func (t *TenantRef) SetTenant(id int64) { t.SiteID = id }

// Deletion is the soft-delete flag.
type Deletion struct {
	Deleted bool `db:"deleted" json:"deleted"`
}

func (d *Deletion) IsDeleted() bool { return d.Deleted }
func (d *Deletion) MarkDeleted() { d.Deleted = true }

// Base composes an id with all three capabilities. Most record types embed it.
type Base struct {
	ID int64 `db:"id" json:"id"`
	Audit
	TenantRef
	Deletion
}

func (b *Base) PK() int64 { return b.ID }
func (b *Base) SetPK(id int64) { b.ID = id }
func (b *Base) IsNew() bool { return b.ID == 0 }

// Capabilities reports which optional behaviours rec supports.
type Capabilities struct {
	Auditable     bool
	TenantScoped  bool
	SoftDeletable bool
}

// CapabilitiesOf inspects rec once; callers usually rely on the cached copy in Descriptor.
func CapabilitiesOf(rec Record) Capabilities {
	_, a := rec.(Auditable)
	_, t := rec.(TenantScoped)
	_, s := rec.(SoftDeletable)
	return Capabilities{Auditable: a, TenantScoped: t, SoftDeletable: s}
}
