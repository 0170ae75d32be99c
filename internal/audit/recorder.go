package audit

import (
	"context"
	"log/slog"

	"github.com/fiee/dorsale/internal/db/models"
)

// Store persists audit rows; *repositories.AuditRepository implements it.
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Recorder writes audit rows and forwards them to the configured shippers.
type Recorder struct {
	store   Store
	shipper Shipper
}

// NewRecorder creates a recorder. Either argument may be nil.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	return &Recorder{store: store, shipper: shipper}
}

// Record stores entry and ships a copy in the background. Failures are logged,
// never returned: auditing must not fail the request that triggered it.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditLog) {
	if r == nil || entry == nil {
		return
	}
	if r.store != nil {
		if err := r.store.CreateAuditLog(ctx, entry); err != nil {
			slog.Error("failed to create audit log", "action", entry.Action, "error", err)
		}
	}
	if r.shipper != nil {
		ShipAsync(r.shipper, EntryFromLog(entry))
	}
}
