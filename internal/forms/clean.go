package forms

import (
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/fiee/dorsale/internal/colors"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/validation"
)

const msgRequired = "This field is required."

var dateTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04", time.RFC3339}

func (f *Form) clean() {
	f.cleaned = make(map[string]any, len(f.fields))
	f.uploads = make(map[string]*multipart.FileHeader)
	for _, b := range f.fields {
		if b.Field.Kind == record.KindFile {
			f.cleanFile(b)
			continue
		}
		v, msg := cleanValue(b.Field, strings.TrimSpace(b.Value))
		if msg == "" {
			msg = f.checkChoice(b, v)
		}
		if msg != "" {
			f.AddError(b.Name, msg)
			continue
		}
		if v != nil && b.Field.Validate != "" {
			for _, m := range validation.Var(v, b.Field.Validate) {
				f.AddError(b.Name, m)
			}
		}
		f.cleaned[b.Name] = v
	}
}

func (f *Form) cleanFile(b *BoundField) {
	if fhs := f.opts.Files[b.Name]; len(fhs) > 0 {
		f.uploads[b.Name] = fhs[0]
		return
	}
	// keep the stored file; b.Value holds its key
	if b.Required && b.Value == "" {
		f.AddError(b.Name, msgRequired)
	}
}

// cleanValue converts raw input to the Go value stored for f. A nil value
// means "unset". The returned message is empty when raw is acceptable.
func cleanValue(f record.Field, raw string) (any, string) {
	if f.Kind == record.KindBool {
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes":
			return true, ""
		}
		return false, ""
	}
	if raw == "" {
		if f.Required {
			return nil, msgRequired
		}
		return nil, ""
	}

	switch f.Kind {
	case record.KindText, record.KindLongText:
		if f.MaxLength > 0 {
			if msgs := validation.Var(raw, "max="+strconv.Itoa(f.MaxLength)); len(msgs) > 0 {
				return nil, msgs[0]
			}
		}
		return raw, ""
	case record.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "Enter a whole number."
		}
		return n, ""
	case record.KindDecimal:
		x, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			return nil, "Enter a number."
		}
		return x, ""
	case record.KindDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "Enter a valid date."
		}
		return t, ""
	case record.KindDateTime:
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, ""
			}
		}
		return nil, "Enter a valid date/time."
	case record.KindColor:
		if msgs := validation.Var(raw, "htmlcolor"); len(msgs) > 0 {
			return nil, msgs[0]
		}
		return "#" + strings.ToUpper(strings.Join(colors.HTMLToStrings(raw), "")), ""
	case record.KindCMYK:
		raw = strings.ReplaceAll(raw, " ", "")
		if msgs := validation.Var(raw, "cmyk"); len(msgs) > 0 {
			return nil, msgs[0]
		}
		return raw, ""
	case record.KindForeignKey, record.KindGroup:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "Select a valid choice."
		}
		return n, ""
	}
	return raw, ""
}

// checkChoice rejects values that are not among the offered options. Foreign
// keys are only checked when choices were supplied for them.
func (f *Form) checkChoice(b *BoundField, v any) string {
	if v == nil {
		return ""
	}
	switch b.Field.Kind {
	case record.KindChoice, record.KindGroup:
	case record.KindForeignKey:
		if _, ok := f.opts.RelatedChoices[b.Name]; !ok {
			return ""
		}
	default:
		return ""
	}
	want := strings.TrimSpace(b.Value)
	for _, o := range b.Choices {
		if o.Value != "" && o.Value == want {
			return ""
		}
	}
	return "Select a valid choice. " + want + " is not one of the available choices."
}
