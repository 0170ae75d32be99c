package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/xuri/excelize/v2"
)

func isFormula(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || len(s) < 2 || s[0] != '=' {
		return "", false
	}
	return s, true
}

// cellText renders a normalized value for text formats.
func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func writeCSV(_ context.Context, w io.Writer, t *table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.headers); err != nil {
		return err
	}
	rec := make([]string, len(t.fields))
	for _, r := range t.rows {
		for i, v := range r.cells {
			rec[i] = cellText(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(_ context.Context, w io.Writer, t *table) error {
	tw := prettytable.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(prettytable.StyleLight)

	header := make(prettytable.Row, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, r := range t.rows {
		out := make(prettytable.Row, len(r.cells))
		for i, v := range r.cells {
			out[i] = cellText(v)
		}
		tw.AppendRow(out)
	}
	tw.Render()
	return nil
}

func writeXLSX(_ context.Context, w io.Writer, t *table) error {
	f := excelize.NewFile()
	defer f.Close() // nolint:errcheck

	sheet := t.sheetTitle
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range t.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return err
		}
	}
	for ri, r := range t.rows {
		for ci, v := range r.cells {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return err
			}
			if formula, ok := isFormula(v); ok {
				err = f.SetCellFormula(sheet, cell, strings.TrimPrefix(formula, "="))
			} else {
				err = f.SetCellValue(sheet, cell, v)
			}
			if err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}
	_, err = f.WriteTo(w)
	return err
}

const odsMimetype = "application/vnd.oasis.opendocument.spreadsheet"

const odsManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:full-path="/" manifest:media-type="application/vnd.oasis.opendocument.spreadsheet"/>
 <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>
`

const odsContentHead = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
	`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" ` +
	`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" ` +
	`xmlns:of="urn:oasis:names:tc:opendocument:xmlns:of:1.2" office:version="1.2">` +
	`<office:body><office:spreadsheet>`

const odsContentTail = `</office:spreadsheet></office:body></office:document-content>`

// writeODS builds a minimal OpenDocument spreadsheet: mimetype (stored,
// first), manifest and content.
func writeODS(_ context.Context, w io.Writer, t *table) error {
	zw := zip.NewWriter(w)
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mt, odsMimetype); err != nil {
		return err
	}
	mf, err := zw.Create("META-INF/manifest.xml")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mf, odsManifest); err != nil {
		return err
	}
	content, err := zw.Create("content.xml")
	if err != nil {
		return err
	}
	if err := writeODSContent(content, t); err != nil {
		return err
	}
	return zw.Close()
}

func writeODSContent(w io.Writer, t *table) error {
	var b strings.Builder
	b.WriteString(odsContentHead)
	b.WriteString(`<table:table table:name="`)
	b.WriteString(escapeXML(t.sheetTitle))
	b.WriteString(`">`)
	odsRow(&b, stringsToAny(t.headers))
	for _, r := range t.rows {
		odsRow(&b, r.cells)
	}
	b.WriteString(`</table:table>`)
	b.WriteString(odsContentTail)
	_, err := io.WriteString(w, b.String())
	return err
}

func odsRow(b *strings.Builder, cells []any) {
	b.WriteString("<table:table-row>")
	for _, v := range cells {
		if formula, ok := isFormula(v); ok {
			fmt.Fprintf(b, `<table:table-cell table:formula="of:%s"/>`, escapeXML(formula))
			continue
		}
		switch x := v.(type) {
		case int, int32, int64, float32, float64:
			fmt.Fprintf(b, `<table:table-cell office:value-type="float" office:value="%s"><text:p>%s</text:p></table:table-cell>`,
				cellText(x), cellText(x))
		case time.Time:
			fmt.Fprintf(b, `<table:table-cell office:value-type="date" office:date-value="%s"><text:p>%s</text:p></table:table-cell>`,
				x.Format("2006-01-02T15:04:05"), cellText(x))
		default:
			fmt.Fprintf(b, `<table:table-cell office:value-type="string"><text:p>%s</text:p></table:table-cell>`,
				escapeXML(cellText(v)))
		}
	}
	b.WriteString("</table:table-row>")
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
