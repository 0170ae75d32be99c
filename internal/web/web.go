// Package web holds the HTML templates of the record pages and the helper
// functions they use.
package web

import (
	"embed"
	"html/template"

	"github.com/fiee/dorsale/internal/colors"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/textutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// Funcs are available in every template.
var Funcs = template.FuncMap{
	"slugify":     textutil.Slugify,
	"texquote":    textutil.TeXQuote,
	"texlines":    textutil.TeXLines,
	"display":     record.DisplayString,
	"toggleorder": record.ToggleOrdering,
	"colorspot": func(code, text string) template.HTML {
		return template.HTML(colors.ColorSpot(code, text)) // nolint:gosec
	},
}

// Templates parses the embedded page templates. Pages are named after their
// file, e.g. "list.html".
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(Funcs).ParseFS(templateFS, "templates/*.html"))
}
