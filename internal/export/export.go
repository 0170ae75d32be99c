// Package export streams record result sets as downloadable files. Writer
// formats (csv, xls, ods, txt) produce a header row followed by one row per
// record; serializer formats (json, xml, yaml, py) produce a list of
// {model, pk, fields} objects. Every format sees the same normalized values.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/telemetry"
	"github.com/fiee/dorsale/internal/textutil"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/language"
)

// ErrUnsupportedFormat is returned for format tags outside the allow-list.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// FormatError carries the rejected tag.
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("`%s` is not a supported format.", e.Format)
}

func (e *FormatError) Unwrap() error { return ErrUnsupportedFormat }

// Defaults applied by Params.withDefaults.
const (
	DefaultFormat     = "csv"
	DefaultCharset    = "utf-8"
	DefaultSheetTitle = "Export"
)

type format struct {
	mimetype string
	ext      string // file extension when it differs from the tag
	binary   bool
	write    func(ctx context.Context, w io.Writer, t *table) error
}

// xls is kept as a request tag but always produces an OOXML workbook.
const xlsxMimetype = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var formats = map[string]format{
	"csv":  {mimetype: "text/csv", write: writeCSV},
	"txt":  {mimetype: "text/plain", write: writeText},
	"json": {mimetype: "text/json", write: writeJSON},
	"xml":  {mimetype: "text/xml", write: writeXML},
	"yaml": {mimetype: "text/yaml", write: writeYAML},
	"py":   {mimetype: "application/python", write: writePython},
	"xls":  {mimetype: xlsxMimetype, ext: "xlsx", binary: true, write: writeXLSX},
	"xlsx": {mimetype: xlsxMimetype, binary: true, write: writeXLSX},
	"ods":  {mimetype: "application/vnd.oasis.opendocument.spreadsheet", binary: true, write: writeODS},
}

// Supported reports whether tag is an allow-listed format.
func Supported(tag string) bool {
	_, ok := formats[tag]
	return ok
}

// Formats lists the allow-listed tags.
func Formats() []string {
	return []string{"csv", "json", "xml", "yaml", "py", "xls", "xlsx", "ods", "txt"}
}

// ContentType returns the Content-Type header value for tag and charset.
func ContentType(tag, charset string) (string, error) {
	f, ok := formats[tag]
	if !ok {
		return "", &FormatError{Format: tag}
	}
	if f.binary {
		return f.mimetype, nil
	}
	if charset == "" {
		charset = DefaultCharset
	}
	return f.mimetype + "; charset=" + charset, nil
}

// Filename builds "<slug>_<YYYY-MM-DD>.<format>", using the real extension for
// aliases such as xls.
func Filename(typeName, tag string, day time.Time) string {
	ext := tag
	if f, ok := formats[tag]; ok && f.ext != "" {
		ext = f.ext
	}
	return fmt.Sprintf("%s_%s.%s", textutil.Slugify(typeName), day.Format("2006-01-02"), ext)
}

// Resolver turns foreign-key and collection fields into display strings.
// repositories.Resolver satisfies it.
type Resolver interface {
	FieldDisplay(ctx context.Context, f record.Field, rec record.Record) (any, error)
}

// Params selects what to export and how.
type Params struct {
	Desc       *record.Descriptor
	Format     string
	Fields     []string
	Headers    []string
	Charset    string
	SheetTitle string
	Language   language.Tag
	Resolver   Resolver
}

func (p Params) withDefaults() Params {
	if p.Format == "" {
		p.Format = DefaultFormat
	}
	if len(p.Fields) == 0 {
		for _, f := range p.Desc.Fields {
			p.Fields = append(p.Fields, f.Name)
		}
	}
	if len(p.Headers) != len(p.Fields) {
		p.Headers = make([]string, len(p.Fields))
		for i, n := range p.Fields {
			p.Headers[i] = p.Desc.Label(n)
		}
	}
	if p.Charset == "" {
		p.Charset = DefaultCharset
	}
	if p.SheetTitle == "" {
		p.SheetTitle = DefaultSheetTitle
	}
	if p.Language == language.Und {
		p.Language = language.English
	}
	return p
}

// Write normalizes rows and streams them to w in p.Format.
func Write(ctx context.Context, w io.Writer, rows []record.Record, p Params) error {
	if p.Desc == nil {
		return fmt.Errorf("export needs a record type")
	}
	p = p.withDefaults()
	f, ok := formats[p.Format]
	if !ok {
		slog.Warn("export format rejected", "format", p.Format, "type", p.Desc.Key())
		return &FormatError{Format: p.Format}
	}

	t, err := buildTable(ctx, rows, p)
	if err != nil {
		return err
	}

	out := w
	if !f.binary && !isUTF8(p.Charset) {
		enc, err := htmlindex.Get(p.Charset)
		if err != nil {
			return fmt.Errorf("unknown charset %q: %w", p.Charset, err)
		}
		out = enc.NewEncoder().Writer(w)
	}
	if err := f.write(ctx, out, t); err != nil {
		return fmt.Errorf("failed to write %s export: %w", p.Format, err)
	}
	telemetry.ExportsTotal.WithLabelValues(p.Format).Inc()
	return nil
}

func isUTF8(charset string) bool {
	c := strings.ToLower(strings.ReplaceAll(charset, "-", ""))
	return c == "utf8"
}
