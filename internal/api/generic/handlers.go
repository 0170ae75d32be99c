// Package generic serves the list, show, edit, delete, create and export pages
// of every registered record type under /:app/:name/. Responses are HTML or
// JSON, depending on the Accept header.
package generic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/forms"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/storage"
)

// maxUploadMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const maxUploadMemory = 32 << 20

var offered = []string{gin.MIMEHTML, gin.MIMEJSON}

// PostCreateFunc runs inside the creating transaction once a new record has an id.
type PostCreateFunc func(ctx context.Context, ext sqlx.ExtContext, actorID, newID int64) error

// TypeOptions customizes the handlers of one record type.
type TypeOptions struct {
	// UniqueFields replaces Descriptor.UniqueFields for the duplicate check on create.
	UniqueFields []string
	PostCreate   PostCreateFunc
}

// GroupLister returns the groups of a user; *repositories.UserRepository implements it.
type GroupLister interface {
	Groups(ctx context.Context, userID int64) ([]models.Group, error)
}

// Deps are the collaborators of a Handler.
type Deps struct {
	DB       *sqlx.DB
	Registry *record.Registry
	Managers *repositories.Managers
	Saver    *repositories.Saver
	Deleter  *repositories.Deleter
	Groups   GroupLister
	Storage  storage.Storage
	Flashes  *Flashes
	Settings *config.Runtime
	Audit    middleware.AuditRecorder
}

// Handler serves the record pages.
type Handler struct {
	db       *sqlx.DB
	registry *record.Registry
	managers *repositories.Managers
	saver    *repositories.Saver
	deleter  *repositories.Deleter
	groups   GroupLister
	storage  storage.Storage
	flashes  *Flashes
	settings *config.Runtime
	audit    middleware.AuditRecorder

	types map[string]TypeOptions
}

// NewHandler creates a Handler from d.
func NewHandler(d Deps) *Handler {
	return &Handler{
		db:       d.DB,
		registry: d.Registry,
		managers: d.Managers,
		saver:    d.Saver,
		deleter:  d.Deleter,
		groups:   d.Groups,
		storage:  d.Storage,
		flashes:  d.Flashes,
		settings: d.Settings,
		audit:    d.Audit,
		types:    make(map[string]TypeOptions),
	}
}

// Configure sets the options of namespace.name. It must be called before serving.
func (h *Handler) Configure(namespace, name string, opts TypeOptions) {
	h.types[strings.ToLower(namespace)+"."+strings.ToLower(name)] = opts
}

func (h *Handler) options(desc *record.Descriptor) TypeOptions {
	opts := h.types[desc.Key()]
	if opts.UniqueFields == nil {
		opts.UniqueFields = desc.UniqueFields
	}
	return opts
}

// RegisterRoutes mounts the record pages on rg.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/:app/:name/", h.List())
	rg.GET("/:app/:name/export", h.Export())
	rg.GET("/:app/:name/new/", h.Create())
	rg.POST("/:app/:name/new/", h.Create())
	rg.GET("/:app/:name/:id/", h.Show())
	rg.GET("/:app/:name/:id/edit/", h.Edit())
	rg.POST("/:app/:name/:id/edit/", h.Edit())
	rg.GET("/:app/:name/:id/delete/", h.Delete())
	rg.POST("/:app/:name/:id/delete/", h.Delete())
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// actorID is the acting user, or the anonymous sentinel.
func actorID(c *gin.Context) int64 {
	if id := middleware.ActorID(c); id > 0 {
		return id
	}
	return record.AnonymousActorID
}

func (h *Handler) manager(c *gin.Context) (*repositories.Manager, bool) {
	m, err := h.managers.Get(c.Param("app"), c.Param("name"))
	if err != nil {
		h.fail(c, http.StatusNotFound, "Unknown record type")
		return nil, false
	}
	return m, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// ownedRecord loads id from the tenant's live records and checks that the actor
// may change it. It writes the error response itself.
func (h *Handler) ownedRecord(c *gin.Context, m *repositories.Manager) (record.Record, bool) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, http.StatusNotFound, "Record not found")
		return nil, false
	}
	ctx := c.Request.Context()
	tenant := middleware.TenantID(c)

	rec, err := m.CurrentScope(tenant).Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		h.fail(c, http.StatusNotFound, "Record not found")
		return nil, false
	}
	if err != nil {
		slog.Error("failed to load record", "type", m.Descriptor().Key(), "id", id, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to load record")
		return nil, false
	}

	mine, err := m.Mine(ctx, tenant, actorID(c)).Filter("id = ?", id).Exists(ctx)
	if err != nil {
		slog.Error("failed to check ownership", "type", m.Descriptor().Key(), "id", id, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to load record")
		return nil, false
	}
	if !mine {
		h.fail(c, http.StatusForbidden, "Access denied")
		return nil, false
	}
	return rec, true
}

// formData reads a submitted form from a urlencoded, multipart or JSON body.
func formData(c *gin.Context) (url.Values, map[string][]*multipart.FileHeader, error) {
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, nil, err
		}
		mf := c.Request.MultipartForm
		return url.Values(mf.Value), mf.File, nil
	case gin.MIMEJSON:
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			return nil, nil, err
		}
		data := url.Values{}
		for k, v := range body {
			switch x := v.(type) {
			case nil:
				data.Set(k, "")
			case bool:
				if x {
					data.Set(k, "on")
				}
			default:
				data.Set(k, fmt.Sprint(x))
			}
		}
		return data, nil, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, nil, err
	}
	return c.Request.PostForm, nil, nil
}

// newForm builds a form for desc with the choices the acting user may pick.
func (h *Handler) newForm(c *gin.Context, desc *record.Descriptor, instance record.Record, data url.Values, files map[string][]*multipart.FileHeader, disabled bool) *forms.Form {
	ctx := c.Request.Context()
	actor := middleware.Actor(c)
	opts := forms.Options{
		Data:     data,
		Files:    files,
		Actor:    actor,
		Instance: instance,
		Disabled: disabled,
		Storage:  h.storage,
	}
	for _, f := range desc.Fields {
		if !f.Editable {
			continue
		}
		switch {
		case f.Kind == record.KindGroup && opts.GroupChoices == nil && actor != nil && h.groups != nil:
			groups, err := h.groups.Groups(ctx, actor.ID)
			if err != nil {
				slog.Warn("failed to load groups, group choices left empty", "user_id", actor.ID, "error", err)
				continue
			}
			opts.GroupChoices = groups
		case f.Kind == record.KindForeignKey && f.Related != nil && !disabled:
			choices, err := h.relatedChoices(c, *f.Related)
			if err != nil {
				slog.Warn("failed to load choices", "type", desc.Key(), "field", f.Name, "error", err)
				continue
			}
			if opts.RelatedChoices == nil {
				opts.RelatedChoices = make(map[string][]record.Choice)
			}
			opts.RelatedChoices[f.Name] = choices
		}
	}
	return forms.New(desc, opts)
}

// relatedChoices lists the records of ref the actor owns.
func (h *Handler) relatedChoices(c *gin.Context, ref record.Ref) ([]record.Choice, error) {
	m, err := h.managers.Get(ref.Namespace, ref.Name)
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	q, err := m.Mine(ctx, middleware.TenantID(c), actorID(c)).OrderBy(m.Descriptor().DefaultOrdering()...)
	if err != nil {
		return nil, err
	}
	recs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	choices := make([]record.Choice, len(recs))
	for i, r := range recs {
		choices[i] = record.Choice{Value: strconv.FormatInt(r.PK(), 10), Label: record.DisplayString(r)}
	}
	return choices, nil
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// render negotiates HTML or JSON. The HTML page gets the common layout keys
// and any pending flash messages plus notices.
func (h *Handler) render(c *gin.Context, status int, page string, data gin.H, jsonData any, notices ...string) {
	if c.NegotiateFormat(offered...) == gin.MIMEJSON {
		c.JSON(status, jsonData)
		return
	}
	data["Actor"] = middleware.Actor(c)
	data["Profile"] = middleware.SiteProfile(c)
	data["Messages"] = append(h.flashes.Pop(c), notices...)
	if _, ok := data["Title"]; !ok {
		data["Title"] = ""
	}
	c.HTML(status, page, data)
}

// fail writes an error page or {"error": msg}.
func (h *Handler) fail(c *gin.Context, status int, msg string) {
	h.render(c, status, "error.html",
		gin.H{"Title": http.StatusText(status), "Status": status, "Message": msg, "Path": c.Request.URL.Path},
		gin.H{"error": msg})
	c.Abort()
}

// formJSON is the JSON shape of a form.
func formJSON(f *forms.Form) gin.H {
	out := gin.H{"fields": f.Fields()}
	if len(f.FieldErrors) > 0 {
		out["errors"] = f.FieldErrors
	}
	if len(f.NonFieldErrors) > 0 {
		out["non_field_errors"] = f.NonFieldErrors
	}
	return out
}
