package generic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/export"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/pagination"
	"github.com/fiee/dorsale/internal/record"
)

type column struct {
	Name  string
	Label string
	// Sort is the orderby value of the column header link.
	Sort string
}

type listRow struct {
	URL   string
	Cells []string
}

// ordered applies the requested ordering to q. Invalid orderings fall back to
// the type's default ordering and then to id.
func ordered(q *repositories.Query, raw string) (*repositories.Query, []string) {
	desc := q.Descriptor()
	terms := record.ParseOrdering(raw)
	if !desc.ValidOrdering(terms) {
		terms = desc.DefaultOrdering()
	}
	if oq, err := q.OrderBy(terms...); err == nil {
		return oq, terms
	}
	slog.Warn("invalid default ordering", "type", desc.Key(), "ordering", terms)
	oq, _ := q.OrderBy("id")
	return oq, []string{"id"}
}

// List shows the actor's records of one type, sorted and paginated.
// GET /:app/:name/?orderby=a,-b&page=N
func (h *Handler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		ctx := c.Request.Context()
		listing := h.settings.Listing()

		q, ordering := ordered(m.Mine(ctx, middleware.TenantID(c), actorID(c)), c.Query("orderby"))
		count, err := q.Count(ctx)
		if err != nil {
			slog.Error("failed to count records", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to list records")
			return
		}
		page := pagination.Paginate(count, desc.PageSize(listing.ItemsPerPage), listing.Orphans, c.Query("page"))

		var recs []record.Record
		if page.Limit > 0 {
			recs, err = q.Fetch(ctx, page.Limit, page.Offset)
			if err != nil {
				slog.Error("failed to list records", "type", desc.Key(), "error", err)
				h.fail(c, http.StatusInternalServerError, "Failed to list records")
				return
			}
		}

		rows, err := h.listRows(ctx, desc, recs)
		if err != nil {
			slog.Error("failed to render records", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to list records")
			return
		}

		orderBy := strings.Join(ordering, ",")
		cols := desc.ListColumns()
		columns := make([]column, len(cols))
		for i, name := range cols {
			columns[i] = column{Name: name, Label: desc.Label(name), Sort: record.ToggleOrdering(name, ordering)}
		}

		h.render(c, http.StatusOK, "list.html",
			gin.H{
				"Title":   desc.ClassNamePlural(),
				"Type":    desc,
				"Columns": columns,
				"Rows":    rows,
				"Page":    page,
				"OrderBy": orderBy,
			},
			gin.H{
				"type":      desc.Key(),
				"count":     page.Count,
				"page":      page.Number,
				"num_pages": page.NumPages,
				"per_page":  page.PerPage,
				"orderby":   orderBy,
				"results":   recs,
			})
	}
}

// listRows renders the list columns of recs as display strings.
func (h *Handler) listRows(ctx context.Context, desc *record.Descriptor, recs []record.Record) ([]listRow, error) {
	resolver := repositories.NewResolver(h.db, h.registry)
	cols := desc.ListColumns()
	rows := make([]listRow, len(recs))
	for i, rec := range recs {
		cells := make([]string, len(cols))
		for j, name := range cols {
			var v any
			var err error
			if f, ok := desc.Field(name); ok && (f.Related != nil || f.Collection != nil) {
				v, err = resolver.FieldDisplay(ctx, f, rec)
			} else {
				v, err = desc.Value(rec, name)
			}
			if err != nil {
				return nil, err
			}
			cells[j] = cellText(v)
		}
		if len(cells) > 0 && cells[0] == "" {
			cells[0] = record.DisplayString(rec)
		}
		rows[i] = listRow{URL: desc.AbsoluteURL(rec), Cells: cells}
	}
	return rows, nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}

// exportColumns picks the requested fields that exist on desc, and the header
// label given at the same position in rawHeaders. Missing or blank labels fall
// back to the field label. Without fields every described field is exported.
func exportColumns(desc *record.Descriptor, rawFields, rawHeaders string) (fields, headers []string) {
	var names []string
	if strings.TrimSpace(rawFields) != "" {
		names = strings.Split(rawFields, ",")
	} else if strings.TrimSpace(rawHeaders) != "" {
		for _, f := range desc.Fields {
			names = append(names, f.Name)
		}
	}
	var labels []string
	if strings.TrimSpace(rawHeaders) != "" {
		labels = strings.Split(rawHeaders, ",")
	}

	for i, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := desc.Field(name); !ok {
			continue
		}
		label := ""
		if i < len(labels) {
			label = strings.TrimSpace(labels[i])
		}
		if label == "" {
			label = desc.Label(name)
		}
		fields = append(fields, name)
		headers = append(headers, label)
	}
	return fields, headers
}

// Export streams the actor's records of one type in the requested format.
// GET /:app/:name/export?format=csv&orderby=name&fields=a,b&headers=A,B
func (h *Handler) Export() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := h.manager(c)
		if !ok {
			return
		}
		desc := m.Descriptor()
		ctx := c.Request.Context()
		settings := h.settings.Export()

		format := strings.ToLower(c.DefaultQuery("format", settings.DefaultFormat))
		contentType, err := export.ContentType(format, settings.Charset)
		if err != nil {
			h.fail(c, http.StatusNotFound, err.Error())
			return
		}

		q, _ := ordered(m.Mine(ctx, middleware.TenantID(c), actorID(c)), c.Query("orderby"))
		recs, err := q.All(ctx)
		if err != nil {
			slog.Error("failed to load records for export", "type", desc.Key(), "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to export records")
			return
		}

		fallback, err := language.Parse(settings.Language)
		if err != nil {
			fallback = language.English
		}
		fields, headers := exportColumns(desc, c.Query("fields"), c.Query("headers"))
		var buf bytes.Buffer
		err = export.Write(ctx, &buf, recs, export.Params{
			Desc:       desc,
			Format:     format,
			Fields:     fields,
			Headers:    headers,
			Charset:    settings.Charset,
			SheetTitle: settings.SheetTitle,
			Language:   export.MatchLanguage(c.GetHeader("Accept-Language"), fallback),
			Resolver:   repositories.NewResolver(h.db, h.registry),
		})
		var fe *export.FormatError
		if errors.As(err, &fe) {
			h.fail(c, http.StatusNotFound, fe.Error())
			return
		}
		if err != nil {
			slog.Error("export failed", "type", desc.Key(), "format", format, "error", err)
			h.fail(c, http.StatusInternalServerError, "Failed to export records")
			return
		}

		filename := export.Filename(desc.Name, format, time.Now())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		c.Header("Cache-Control", "must-revalidate")
		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}
