// records.go implements the admin view of registered record types: listing live or
// deleted records of the current site, and saving a record with full audit stamping.
// Only superusers see and change records created by others.
package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/forms"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/record"
)

// HasChangePermission reports whether user may change rec: superusers may
// change anything, everyone else only what they created.
func HasChangePermission(user *models.User, rec record.Record) bool {
	if !user.CanAct() || rec == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	a, ok := rec.(record.Auditable)
	return ok && a.AuditInfo().CreatedBy == user.ID
}

// RecordAdminHandlers serves /admin/records
type RecordAdminHandlers struct {
	db       *sqlx.DB
	managers *repositories.Managers
	saver    *repositories.Saver
	userRepo *repositories.UserRepository
}

// NewRecordAdminHandlers creates a new RecordAdminHandlers instance
func NewRecordAdminHandlers(db *sqlx.DB, managers *repositories.Managers, saver *repositories.Saver) *RecordAdminHandlers {
	return &RecordAdminHandlers{
		db:       db,
		managers: managers,
		saver:    saver,
		userRepo: repositories.NewUserRepository(db),
	}
}

func (h *RecordAdminHandlers) manager(c *gin.Context) (*repositories.Manager, bool) {
	m, err := h.managers.Get(c.Param("app"), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown record type"})
		return nil, false
	}
	return m, true
}

// scope is every record of the current site, deleted or not, narrowed to the
// actor's own records for non-superusers.
func scope(c *gin.Context, m *repositories.Manager, q *repositories.Query) *repositories.Query {
	desc := m.Descriptor()
	if desc.TenantScoped() {
		q = q.Filter("site_id = ?", middleware.TenantID(c))
	}
	user := middleware.Actor(c)
	if user == nil || !user.CanAct() {
		return q.None()
	}
	if !user.IsSuperuser {
		if !desc.Auditable() {
			return q.None()
		}
		q = q.Filter("created_by = ?", user.ID)
	}
	return q
}

// @Summary      List records
// @Description  Paginated records of one type on the current site. ?deleted=true lists soft-deleted records. Non-superusers only see records they created.
// @Tags         Records
// @Security     Bearer
// @Produce      json
// @Param        app       path   string  true   "Namespace"
// @Param        name      path   string  true   "Type name"
// @Param        deleted   query  bool    false  "List deleted records"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "type, fields, records, pagination"
// @Failure      404  {object}  map[string]interface{}  "Unknown record type"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /admin/records/{app}/{name} [get]
// ListRecords lists records of a type
// GET /admin/records/:app/:name?deleted=true
func (h *RecordAdminHandlers) ListRecords(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	desc := m.Descriptor()
	ctx := c.Request.Context()
	page, perPage, offset := pageParams(c)

	base := m.ReallyAll()
	if desc.SoftDeletable() {
		deleted, _ := strconv.ParseBool(c.DefaultQuery("deleted", "false"))
		base = base.Filter("deleted = ?", deleted)
	}
	q, err := scope(c, m, base).OrderBy(desc.DefaultOrdering()...)
	if err != nil {
		slog.Error("invalid default ordering", "type", desc.Key(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	total, err := q.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count records"})
		return
	}
	recs, err := q.Fetch(ctx, perPage, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"type":    desc.Key(),
		"fields":  desc.ListColumns(),
		"records": recs,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

func (h *RecordAdminHandlers) load(c *gin.Context, m *repositories.Manager) (record.Record, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record ID"})
		return nil, false
	}
	rec, err := scope(c, m, m.ReallyAll()).Get(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve record"})
		return nil, false
	}
	return rec, true
}

// GetRecord returns one record with its change permission
// GET /admin/records/:app/:name/:id
func (h *RecordAdminHandlers) GetRecord(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	rec, ok := h.load(c, m)
	if !ok {
		return
	}
	desc := m.Descriptor()
	c.JSON(http.StatusOK, gin.H{
		"type":       desc.Key(),
		"record":     rec,
		"display":    record.DisplayString(rec),
		"url":        desc.AbsoluteURL(rec),
		"can_change": HasChangePermission(middleware.Actor(c), rec),
	})
}

// @Summary      Save record
// @Description  Update editable fields of a record. Omitted fields keep their value. "deleted" flags or restores soft-deletable records. The record is stamped with the acting user, the current time and the current site.
// @Tags         Records
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        app   path  string  true  "Namespace"
// @Param        name  path  string  true  "Type name"
// @Param        id    path  int     true  "Record ID"
// @Success      200  {object}  map[string]interface{}  "type, record"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      403  {object}  map[string]interface{}  "Access denied"
// @Failure      404  {object}  map[string]interface{}  "Record not found"
// @Failure      422  {object}  map[string]interface{}  "Validation errors"
// @Router       /admin/records/{app}/{name}/{id} [put]
// SaveRecord updates a record
// PUT /admin/records/:app/:name/:id
func (h *RecordAdminHandlers) SaveRecord(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	desc := m.Descriptor()
	rec, ok := h.load(c, m)
	if !ok {
		return
	}
	user := middleware.Actor(c)
	if !HasChangePermission(user, rec) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	ctx := c.Request.Context()
	opts := forms.Options{Actor: user, Instance: rec}
	for _, f := range desc.Fields {
		if f.Kind == record.KindGroup && f.Editable {
			groups, err := h.userRepo.Groups(ctx, user.ID)
			if err != nil {
				slog.Warn("failed to load groups, group choices left empty", "user_id", user.ID, "error", err)
			}
			opts.GroupChoices = groups
			break
		}
	}

	// start from the stored values so omitted fields are kept
	data := url.Values{}
	for _, b := range forms.New(desc, opts).Fields() {
		data.Set(b.Name, b.Value)
	}
	for k, v := range body {
		if k == "deleted" {
			continue
		}
		switch x := v.(type) {
		case nil:
			data.Set(k, "")
		case bool:
			if x {
				data.Set(k, "on")
			} else {
				data.Set(k, "")
			}
		default:
			data.Set(k, fmt.Sprint(x))
		}
	}

	if v, ok := body["deleted"]; ok && desc.SoftDeletable() {
		deleted, isBool := v.(bool)
		if !isBool {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deleted must be a boolean"})
			return
		}
		if err := record.Set(rec, "deleted", deleted); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save record"})
			return
		}
	}

	opts.Data = data
	form := forms.New(desc, opts)
	if _, err := form.Save(ctx, h.saver, h.db, middleware.TenantID(c)); err != nil {
		if errors.Is(err, forms.ErrInvalid) || errors.Is(err, forms.ErrActorRequired) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors":           form.FieldErrors,
				"non_field_errors": form.NonFieldErrors,
			})
			return
		}
		slog.Error("admin save failed", "type", desc.Key(), "id", rec.PK(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"type": desc.Key(), "record": rec})
}
