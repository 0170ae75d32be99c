// audit.go provides Gin middleware that records authenticated write operations on
// records to the audit log.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/models"
)

// AuditedKey is set by handlers that wrote their own, more detailed audit entry.
const AuditedKey = "audited"

// AuditRecorder stores an audit entry; *audit.Recorder implements it.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

// AuditMiddleware records successful writes by authenticated actors. Reads are only
// recorded when cfg.LogReadOperations is set. Requests a handler already audited
// (see AuditedKey) are skipped.
func AuditMiddleware(rec AuditRecorder, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled || rec == nil || c.GetBool(AuditedKey) {
			return
		}
		method := c.Request.Method
		if method == http.MethodOptions || method == http.MethodHead {
			return
		}
		isRead := method == http.MethodGet
		if isRead && !cfg.LogReadOperations {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}
		userID := ActorID(c)
		if userID == 0 {
			return
		}

		entry := &models.AuditLog{
			UserID: &userID,
			Action: auditAction(c),
			Metadata: map[string]interface{}{
				"method":      method,
				"path":        c.Request.URL.Path,
				"status_code": c.Writer.Status(),
			},
		}
		if requestID := RequestID(c); requestID != "" {
			entry.Metadata["request_id"] = requestID
		}
		if tenantID := TenantID(c); tenantID > 0 {
			entry.SiteID = &tenantID
		}
		if app, name := c.Param("app"), c.Param("name"); app != "" && name != "" {
			rt := app + "." + name
			entry.ResourceType = &rt
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		ip := c.ClientIP()
		entry.IPAddress = &ip

		// the request context may already be cancelled by the time the client disconnects
		rec.Record(context.WithoutCancel(c.Request.Context()), entry)
	}
}

// auditAction derives "record.<verb>" from the matched route.
func auditAction(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case strings.HasSuffix(path, "/new/"):
		return "record.create"
	case strings.HasSuffix(path, "/edit/"):
		return "record.update"
	case strings.HasSuffix(path, "/delete/"):
		return "record.delete"
	case strings.HasSuffix(path, "/export"):
		return "record.export"
	case c.Request.Method == http.MethodGet:
		return "record.view"
	}
	return "http." + strings.ToLower(c.Request.Method)
}
