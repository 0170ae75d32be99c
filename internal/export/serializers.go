package export

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// serialValue maps a normalized cell to a JSON/YAML friendly value.
func serialValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return v
}

// writeJSON emits [{"model": ..., "pk": ..., "fields": {...}}] keeping field order.
func writeJSON(_ context.Context, w io.Writer, t *table) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for ri, r := range t.rows {
		if ri > 0 {
			buf.WriteString(",")
		}
		model, _ := json.Marshal(t.model)
		fmt.Fprintf(&buf, "\n  {\"model\": %s, \"pk\": %d, \"fields\": {", model, r.pk)
		for i, name := range t.fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			k, _ := json.Marshal(name)
			v, err := json.Marshal(serialValue(r.cells[i]))
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			buf.Write(k)
			buf.WriteString(": ")
			buf.Write(v)
		}
		buf.WriteString("}}")
	}
	if len(t.rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlObject struct {
	Model  string     `xml:"model,attr"`
	PK     int64      `xml:"pk,attr"`
	Fields []xmlField `xml:"field"`
}

type xmlObjects struct {
	XMLName xml.Name    `xml:"objects"`
	Version string      `xml:"version,attr"`
	Objects []xmlObject `xml:"object"`
}

func xmlType(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "float"
	case time.Time:
		return "datetime"
	}
	return ""
}

func writeXML(_ context.Context, w io.Writer, t *table) error {
	doc := xmlObjects{Version: "1.0", Objects: make([]xmlObject, 0, len(t.rows))}
	for _, r := range t.rows {
		obj := xmlObject{Model: t.model, PK: r.pk, Fields: make([]xmlField, len(t.fields))}
		for i, name := range t.fields {
			v := r.cells[i]
			obj.Fields[i] = xmlField{Name: name, Type: xmlType(v), Value: cellText(serialValue(v))}
		}
		doc.Objects = append(doc.Objects, obj)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func scalarNode(v any) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(serialValue(v)); err != nil {
		return nil, err
	}
	return n, nil
}

func writeYAML(_ context.Context, w io.Writer, t *table) error {
	list := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range t.rows {
		fields := &yaml.Node{Kind: yaml.MappingNode}
		for i, name := range t.fields {
			val, err := scalarNode(r.cells[i])
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			fields.Content = append(fields.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, val)
		}
		obj := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "model"}, {Kind: yaml.ScalarNode, Value: t.model},
			{Kind: yaml.ScalarNode, Value: "pk"}, {Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(r.pk, 10)},
			{Kind: yaml.ScalarNode, Value: "fields"}, fields,
		}}
		list.Content = append(list.Content, obj)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(list); err != nil {
		return err
	}
	return enc.Close()
}

// pyLiteral renders v as a Python literal.
func pyLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int, int32, int64:
		return fmt.Sprint(x)
	case float32, float64:
		return cellText(x)
	case time.Time:
		return pyString(x.Format("2006-01-02 15:04:05"))
	case string:
		return pyString(x)
	}
	return pyString(cellText(v))
}

var pyEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func pyString(s string) string { return "u'" + pyEscaper.Replace(s) + "'" }

func writePython(_ context.Context, w io.Writer, t *table) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for ri, r := range t.rows {
		if ri > 0 {
			buf.WriteString(",\n ")
		}
		fmt.Fprintf(&buf, "{'model': %s, 'pk': %d, 'fields': {", pyString(t.model), r.pk)
		for i, name := range t.fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(pyString(name))
			buf.WriteString(": ")
			buf.WriteString(pyLiteral(r.cells[i]))
		}
		buf.WriteString("}}")
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}
