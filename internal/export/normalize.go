package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fiee/dorsale/internal/record"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Localized tokens.
const (
	tokenYes     = "Yes"
	tokenNo      = "No"
	tokenUnknown = "Unknown"
)

var tokens = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, s := range []string{tokenYes, tokenNo, tokenUnknown} {
		_ = b.SetString(language.English, s, s)
	}
	_ = b.SetString(language.German, tokenYes, "Ja")
	_ = b.SetString(language.German, tokenNo, "Nein")
	_ = b.SetString(language.German, tokenUnknown, "Unbekannt")
	return b
}

var translated = []language.Tag{language.English, language.German}

// Languages lists the languages with translated tokens.
func Languages() []language.Tag { return translated }

// MatchLanguage picks the best token language for an Accept-Language header,
// falling back to fallback.
func MatchLanguage(acceptLanguage string, fallback language.Tag) language.Tag {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	supported := append([]language.Tag{fallback}, translated...)
	_, idx, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// table is a result set after normalization.
type table struct {
	model      string
	sheetTitle string
	fields     []string
	headers    []string
	rows       []row
}

type row struct {
	pk    int64
	cells []any
}

// normalizer applies the value rules shared by every format.
type normalizer struct {
	desc     *record.Descriptor
	resolver Resolver
	printer  *message.Printer
}

func buildTable(ctx context.Context, recs []record.Record, p Params) (*table, error) {
	n := &normalizer{
		desc:     p.Desc,
		resolver: p.Resolver,
		printer:  message.NewPrinter(p.Language, message.Catalog(tokens)),
	}
	t := &table{
		model:      p.Desc.Key(),
		sheetTitle: p.SheetTitle,
		fields:     p.Fields,
		headers:    p.Headers,
		rows:       make([]row, 0, len(recs)),
	}
	for _, rec := range recs {
		cells := make([]any, len(p.Fields))
		for i, name := range p.Fields {
			v, err := n.value(ctx, rec, name)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s of %s #%d: %w", name, t.model, rec.PK(), err)
			}
			cells[i] = v
		}
		t.rows = append(t.rows, row{pk: rec.PK(), cells: cells})
	}
	return t, nil
}

func (n *normalizer) value(ctx context.Context, rec record.Record, name string) (any, error) {
	f, described := n.desc.Field(name)
	var (
		v   any
		err error
	)
	switch {
	case described && n.resolver != nil && (f.Kind == record.KindForeignKey || f.Collection != nil):
		v, err = n.resolver.FieldDisplay(ctx, f, rec)
	case described && f.Collection != nil:
		v = nil
	default:
		v, err = n.desc.Value(rec, name)
	}
	if err != nil {
		return nil, err
	}
	if fn, ok := v.(func() any); ok {
		v = fn()
	}
	return n.token(v, f.Kind), nil
}

func (n *normalizer) token(v any, kind record.Kind) any {
	switch x := v.(type) {
	case nil:
		return n.printer.Sprintf(tokenUnknown)
	case bool:
		if x {
			return n.printer.Sprintf(tokenYes)
		}
		return n.printer.Sprintf(tokenNo)
	case []string:
		return strings.Join(x, ", ")
	case record.Record:
		return record.DisplayString(x)
	case time.Time:
		if kind == record.KindDate {
			return x.Format("2006-01-02")
		}
		return x
	case fmt.Stringer:
		return x.String()
	}
	return v
}
