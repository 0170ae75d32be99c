// manager.go implements Manager, the scoped entry point for reading records of one type.
// Every scope applies the tenant and deletion predicates the type supports; Mine adds
// ownership by creator and, for group-owned types, by group membership.
package repositories

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/telemetry"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ActorLookup resolves actors and their group memberships.
type ActorLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GroupIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Manager builds scoped queries for one record type.
type Manager struct {
	db     sqlx.ExtContext
	desc   *record.Descriptor
	actors ActorLookup

	warnedNoGroups atomic.Bool
}

// NewManager creates a manager for desc.
func NewManager(db sqlx.ExtContext, desc *record.Descriptor, actors ActorLookup) *Manager {
	return &Manager{db: db, desc: desc, actors: actors}
}

// Descriptor returns the managed record type.
func (m *Manager) Descriptor() *record.Descriptor { return m.desc }

// WithTx returns a manager that reads through tx.
func (m *Manager) WithTx(tx *sqlx.Tx) *Manager {
	return &Manager{db: tx, desc: m.desc, actors: m.actors}
}

// ReallyAll returns every row, deleted or not, across all tenants.
func (m *Manager) ReallyAll() *Query {
	return newQuery(m.db, m.desc)
}

func (m *Manager) tenantScope(tenantID int64) *Query {
	q := m.ReallyAll()
	if m.desc.TenantScoped() {
		q = q.Filter("site_id = ?", tenantID)
	}
	return q
}

// CurrentScope returns the live rows of tenantID.
func (m *Manager) CurrentScope(tenantID int64) *Query {
	q := m.tenantScope(tenantID)
	if m.desc.SoftDeletable() {
		q = q.Filter("deleted = ?", false)
	}
	return q
}

// DeletedScope returns the soft-deleted rows of tenantID. Types without soft
// deletion never have any.
func (m *Manager) DeletedScope(tenantID int64) *Query {
	q := m.tenantScope(tenantID)
	if !m.desc.SoftDeletable() {
		return q.None()
	}
	return q.Filter("deleted = ?", true)
}

// Mine narrows CurrentScope to records created by actorID. Unknown, anonymous
// and inactive actors get an empty query; lookup failures are logged, not returned.
func (m *Manager) Mine(ctx context.Context, tenantID, actorID int64) *Query {
	q := m.CurrentScope(tenantID)
	if actorID < 0 {
		telemetry.ScopeEmptyTotal.WithLabelValues("anonymous").Inc()
		return q.None()
	}
	user, err := m.actors.GetUserByID(ctx, actorID)
	if err != nil {
		slog.Error("failed to look up actor", "actor_id", actorID, "type", m.desc.Key(), "error", err)
		telemetry.ScopeEmptyTotal.WithLabelValues("lookup_failed").Inc()
		return q.None()
	}
	if user == nil {
		telemetry.ScopeEmptyTotal.WithLabelValues("unknown_actor").Inc()
		return q.None()
	}
	if !user.IsActive {
		telemetry.ScopeEmptyTotal.WithLabelValues("inactive_actor").Inc()
		return q.None()
	}

	if m.desc.Auditable() {
		q = q.Filter("created_by = ?", actorID)
	}
	if !m.desc.GroupOwned() || user.IsSuperuser {
		return q
	}

	groups, err := m.actors.GroupIDs(ctx, actorID)
	if err != nil {
		slog.Error("failed to look up actor groups", "actor_id", actorID, "type", m.desc.Key(), "error", err)
		return q
	}
	if len(groups) == 0 {
		if m.warnedNoGroups.CompareAndSwap(false, true) {
			slog.Warn("actor belongs to no group, group filter skipped",
				"actor_id", actorID, "type", m.desc.Key())
		}
		return q
	}
	return q.Filter(m.groupPredicate(), pq.Array(groups))
}

func (m *Manager) groupPredicate() string {
	if m.desc.GroupVia != nil {
		via := m.desc.GroupVia
		return via.ForeignKey + " IN (SELECT id FROM " + via.Table + " WHERE " + via.GroupColumn + " = ANY(?))"
	}
	return m.desc.GroupField + " = ANY(?)"
}

// Managers holds one Manager per registered type.
type Managers struct {
	registry *record.Registry
	byKey    map[string]*Manager
}

// NewManagers builds a manager for every type in registry.
func NewManagers(db sqlx.ExtContext, registry *record.Registry, actors ActorLookup) *Managers {
	ms := &Managers{registry: registry, byKey: make(map[string]*Manager)}
	for _, d := range registry.All() {
		ms.byKey[d.Key()] = NewManager(db, d, actors)
	}
	return ms
}

// Get returns the manager of namespace.name.
func (ms *Managers) Get(namespace, name string) (*Manager, error) {
	d, err := ms.registry.Lookup(namespace, name)
	if err != nil {
		return nil, err
	}
	return ms.byKey[d.Key()], nil
}

// ForTable returns the manager of the type stored in table.
func (ms *Managers) ForTable(table string) (*Manager, bool) {
	d, ok := ms.registry.ByTable(table)
	if !ok {
		return nil, false
	}
	return ms.byKey[d.Key()], true
}
