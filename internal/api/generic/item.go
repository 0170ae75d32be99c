package generic

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/forms"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/record"
)

// Show displays one of the actor's records as a read-only form.
// GET /:app/:name/:id/
func (h *Handler) Show() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		id, ok := parseID(c)
		if !ok {
			h.fail(c, http.StatusNotFound, "Record not found")
			return
		}
		ctx := c.Request.Context()

		rec, err := m.Mine(ctx, middleware.TenantID(c), actorID(c)).Get(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			h.fail(c, http.StatusNotFound, "Record not found")
			return
		}
		if err != nil {
			slog.Error("failed to load record", "type", desc.Key(), "id", id, "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to load record")
			return
		}

		var form *forms.Form
		retries := h.settings.Listing().ShowRetries
		for attempt := 1; attempt <= retries; attempt++ {
			form = h.newForm(c, desc, rec, nil, nil, true)
			if len(form.VisibleFields()) > 0 {
				break
			}
			slog.Warn("record form has no visible fields",
				"type", desc.Key(), "id", id, "attempt", attempt, "max_attempts", retries)
		}
		if err := form.ResolveDisplays(ctx, repositories.NewResolver(h.db, h.registry)); err != nil {
			slog.Error("failed to resolve related records", "type", desc.Key(), "id", id, "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to load record")
			return
		}

		h.render(c, http.StatusOK, "show.html",
			gin.H{"Title": desc.ClassName(), "Type": desc, "Object": rec, "Form": form},
			gin.H{"type": desc.Key(), "id": rec.PK(), "url": desc.AbsoluteURL(rec), "object": rec, "form": formJSON(form)})
	}
}

// Edit shows and saves the edit form of one of the actor's records.
// GET|POST /:app/:name/:id/edit/
func (h *Handler) Edit() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		rec, ok := h.ownedRecord(c, m)
		if !ok {
			return
		}
		title := "Edit " + desc.ClassName()

		if c.Request.Method != http.MethodPost {
			form := h.newForm(c, desc, rec, nil, nil, false)
			h.renderForm(c, http.StatusOK, title, desc, form)
			return
		}

		data, files, err := formData(c)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "Invalid form data")
			return
		}
		form := h.newForm(c, desc, rec, data, files, false)
		if _, err := form.Save(c.Request.Context(), h.saver, h.db, middleware.TenantID(c)); err != nil {
			if errors.Is(err, forms.ErrInvalid) || errors.Is(err, forms.ErrActorRequired) {
				h.renderForm(c, http.StatusUnprocessableEntity, title, desc, form)
				return
			}
			slog.Error("failed to save record", "type", desc.Key(), "id", rec.PK(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to save record")
			return
		}

		h.flashes.Add(c, fmt.Sprintf("%s %d saved.", desc.ClassName(), rec.PK()))
		c.Redirect(http.StatusSeeOther, c.Request.URL.Path)
	}
}

// Delete asks for confirmation and then soft-deletes one of the actor's
// records together with its dependents.
// GET|POST /:app/:name/:id/delete/
func (h *Handler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		rec, ok := h.ownedRecord(c, m)
		if !ok {
			return
		}

		if c.Request.Method != http.MethodPost {
			h.render(c, http.StatusOK, "delete.html",
				gin.H{"Title": "Delete " + desc.ClassName(), "Type": desc, "Object": rec, "Action": c.Request.URL.Path},
				gin.H{"type": desc.Key(), "id": rec.PK(), "display": record.DisplayString(rec)})
			return
		}

		res, err := h.deleter.Delete(c.Request.Context(), desc, middleware.TenantID(c), rec, actorID(c))
		switch {
		case errors.Is(err, repositories.ErrProtected):
			h.fail(c, http.StatusConflict, "This record is still referenced and cannot be deleted")
			return
		case err != nil:
			slog.Error("failed to delete record", "type", desc.Key(), "id", rec.PK(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to delete record")
			return
		}

		h.auditDeletion(c, desc, rec, res)
		h.flashes.Add(c, fmt.Sprintf("%s %d deleted.", desc.ClassName(), rec.PK()))
		c.Redirect(http.StatusSeeOther, desc.ListURL())
	}
}

// auditDeletion records the delete with the cascade totals, replacing the
// generic entry of the audit middleware.
func (h *Handler) auditDeletion(c *gin.Context, desc *record.Descriptor, rec record.Record, res *repositories.DeleteResult) {
	if h.audit == nil {
		return
	}
	userID := middleware.ActorID(c)
	resourceType := desc.Key()
	resourceID := strconv.FormatInt(rec.PK(), 10)
	ip := c.ClientIP()
	entry := &models.AuditLog{
		UserID:       &userID,
		Action:       "record.delete",
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		IPAddress:    &ip,
		Metadata: map[string]interface{}{
			"soft_deleted": res.SoftDeleted,
			"removed":      res.Removed,
			"nullified":    res.Nullified,
			"total":        res.Total(),
		},
	}
	if tenantID := middleware.TenantID(c); tenantID > 0 {
		entry.SiteID = &tenantID
	}
	if requestID := middleware.RequestID(c); requestID != "" {
		entry.Metadata["request_id"] = requestID
	}
	h.audit.Record(c.Request.Context(), entry)
	c.Set(middleware.AuditedKey, true)
}

// Create shows and saves the form for a new record. Records whose unique
// fields match an existing one are rejected.
// GET|POST /:app/:name/new/
func (h *Handler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		title := "New " + desc.ClassName()

		if c.Request.Method != http.MethodPost {
			h.renderForm(c, http.StatusOK, title, desc, h.newForm(c, desc, nil, nil, nil, false))
			return
		}

		data, files, err := formData(c)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "Invalid form data")
			return
		}
		form := h.newForm(c, desc, nil, data, files, false)
		if !form.IsValid() {
			h.renderForm(c, http.StatusUnprocessableEntity, title, desc, form)
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.TenantID(c)
		opts := h.options(desc)

		if len(opts.UniqueFields) > 0 {
			q := m.CurrentScope(tenant)
			for _, name := range opts.UniqueFields {
				v, _ := form.Cleaned(name)
				if v == nil {
					q = q.Filter(name + " IS NULL")
				} else {
					q = q.Filter(name+" = ?", v)
				}
			}
			dup, err := q.Exists(ctx)
			if err != nil {
				slog.Error("failed to check for duplicates", "type", desc.Key(), "error", err)
				h.fail(c, http.StatusInternalServerError, "Failed to save record")
				return
			}
			if dup {
				h.renderForm(c, http.StatusConflict, title, desc, form,
					fmt.Sprintf("This %s already exists!", desc.ClassName()))
				return
			}
		}

		tx, err := h.db.BeginTxx(ctx, nil)
		if err != nil {
			slog.Error("failed to begin transaction", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to save record")
			return
		}
		defer tx.Rollback() // nolint:errcheck

		rec, err := form.Save(ctx, h.saver, tx, tenant)
		if err != nil {
			if errors.Is(err, forms.ErrInvalid) || errors.Is(err, forms.ErrActorRequired) {
				h.renderForm(c, http.StatusUnprocessableEntity, title, desc, form)
				return
			}
			slog.Error("failed to create record", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to save record")
			return
		}
		if opts.PostCreate != nil {
			if err := opts.PostCreate(ctx, tx, actorID(c), rec.PK()); err != nil {
				slog.Error("post-create hook failed", "type", desc.Key(), "id", rec.PK(), "error", err)
				h.fail(c, http.StatusInternalServerError, "Failed to save record")
				return
			}
		}
		if err := tx.Commit(); err != nil {
			slog.Error("failed to commit new record", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to save record")
			return
		}

		h.flashes.Add(c, fmt.Sprintf("New %s saved.", desc.ClassName()))
		c.Redirect(http.StatusSeeOther, desc.AbsoluteURL(rec))
	}
}

func (h *Handler) renderForm(c *gin.Context, status int, title string, desc *record.Descriptor, form *forms.Form, notices ...string) {
	data := gin.H{
		"Title":  title,
		"Type":   desc,
		"Form":   form,
		"Object": form.Instance(),
		"Action": c.Request.URL.Path,
	}
	jsonData := formJSON(form)
	jsonData["type"] = desc.Key()
	if len(notices) > 0 {
		jsonData["error"] = notices[0]
	}
	h.render(c, status, "edit.html", data, jsonData, notices...)
}
