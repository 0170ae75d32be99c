// Package models - audit_log.go defines the AuditLog model for recording record
// creation, modification and deletion, including cascaded removals.
package models

import "time"

// AuditLog represents an audit log entry
type AuditLog struct {
	ID     int64  `json:"id" db:"id"`
	UserID *int64 `json:"user_id,omitempty" db:"user_id"`
	SiteID *int64 `json:"site_id,omitempty" db:"site_id"`
	// Action is "record.create", "record.update", "record.delete" or "record.remove".
	Action string `json:"action" db:"action"`
	// ResourceType is a registry key like "projects.task", or a plain table name.
	ResourceType *string                `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty" db:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"-"`
	IPAddress    *string                `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}
