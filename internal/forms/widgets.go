package forms

import (
	"bytes"
	"html/template"
	"sort"

	"github.com/fiee/dorsale/internal/record"
)

// Widget selects how a field is rendered.
type Widget int

const (
	TextInput Widget = iota
	Textarea
	NumberInput
	Checkbox
	Select
	DatePicker
	ColorPicker
	CMYKInput
	FileInput
	HiddenInput
)

var widgetNames = [...]string{
	TextInput:   "text",
	Textarea:    "textarea",
	NumberInput: "number",
	Checkbox:    "checkbox",
	Select:      "select",
	DatePicker:  "datepicker",
	ColorPicker: "colorpicker",
	CMYKInput:   "cmyk",
	FileInput:   "file",
	HiddenInput: "hidden",
}

func (w Widget) String() string {
	if int(w) < len(widgetNames) {
		return widgetNames[w]
	}
	return "unknown"
}

// MarshalText lets widgets appear by name in JSON responses.
func (w Widget) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// Option is one entry of a select widget.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

var widgetTmpl = template.Must(template.New("widget").Parse(`
{{- define "attrs"}}{{range .Attrs}} {{.K}}="{{.V}}"{{end}}{{end -}}
{{- define "text"}}<input type="text" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}"{{template "attrs" .}}>{{end -}}
{{- define "textarea"}}<textarea name="{{.Name}}" id="id_{{.Name}}"{{template "attrs" .}}>{{.Value}}</textarea>{{end -}}
{{- define "number"}}<input type="number" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}"{{template "attrs" .}}>{{end -}}
{{- define "checkbox"}}<input type="checkbox" name="{{.Name}}" id="id_{{.Name}}"{{if .Value}} checked{{end}}{{template "attrs" .}}>{{end -}}
{{- define "select"}}<select name="{{.Name}}" id="id_{{.Name}}"{{template "attrs" .}}>{{range .Choices}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}</select>{{end -}}
{{- define "datepicker"}}<input type="text" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}" class="datepicker" data-date-format="yy-mm-dd"{{template "attrs" .}}>{{end -}}
{{- define "colorpicker"}}<input type="text" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}" class="colorpicker" maxlength="7"{{template "attrs" .}}>{{end -}}
{{- define "cmyk"}}<input type="text" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}" class="cmyk" placeholder="0,0,0,0"{{template "attrs" .}}>{{end -}}
{{- define "file"}}{{if .Value}}<span class="current-file">{{.Value}}</span> {{end}}<input type="file" name="{{.Name}}" id="id_{{.Name}}"{{template "attrs" .}}>{{end -}}
{{- define "hidden"}}<input type="hidden" name="{{.Name}}" id="id_{{.Name}}" value="{{.Value}}">{{end -}}
`))

type attr struct{ K, V string }

// HTML renders the field's input element.
func (b *BoundField) HTML() template.HTML {
	keys := make([]string, 0, len(b.Attrs))
	for k := range b.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]attr, len(keys))
	for i, k := range keys {
		attrs[i] = attr{k, b.Attrs[k]}
	}

	var buf bytes.Buffer
	err := widgetTmpl.ExecuteTemplate(&buf, b.Widget.String(), struct {
		Name    string
		Value   string
		Attrs   []attr
		Choices []Option
	}{b.Name, b.Value, attrs, b.Choices})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(buf.String()) // nolint:gosec
}

// widgetFor picks the widget of f. Disabled forms render date and colour
// fields as plain text inputs.
func widgetFor(f record.Field, disabled bool) Widget {
	if f.Hidden {
		return HiddenInput
	}
	switch f.Kind {
	case record.KindLongText:
		return Textarea
	case record.KindInt, record.KindDecimal:
		return NumberInput
	case record.KindBool:
		return Checkbox
	case record.KindChoice, record.KindForeignKey, record.KindGroup:
		return Select
	case record.KindDate:
		if disabled {
			return TextInput
		}
		return DatePicker
	case record.KindColor:
		if disabled {
			return TextInput
		}
		return ColorPicker
	case record.KindCMYK:
		return CMYKInput
	case record.KindFile:
		return FileInput
	}
	return TextInput
}
