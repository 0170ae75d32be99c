// Package forms builds HTML/JSON forms for registered record types. A Form binds
// request data to the editable fields of a Descriptor, cleans and validates it,
// and saves the result through a Saver with the acting user stamped in.
package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/attachments"
	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/storage"
)

var (
	// ErrActorRequired is returned by Save when the form has no bound actor.
	ErrActorRequired = errors.New("an actor is required to save this form")
	// ErrInvalid is returned by Save when the data does not validate.
	ErrInvalid = errors.New("form data is invalid")
)

// Saver persists records; *repositories.Saver implements it.
type Saver interface {
	Save(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, rec record.Record, opts repositories.SaveOptions) error
	SetColumn(ctx context.Context, ext sqlx.ExtContext, desc *record.Descriptor, rec record.Record, column string, val any) error
}

// Resolver renders foreign keys and collections for display.
type Resolver interface {
	FieldDisplay(ctx context.Context, f record.Field, rec record.Record) (any, error)
}

// Options configures a Form.
type Options struct {
	// Data is the submitted form; nil means an unbound form.
	Data  url.Values
	Files map[string][]*multipart.FileHeader
	Actor *models.User
	// Instance is the record being edited; nil creates a new one.
	Instance record.Record
	Disabled bool
	// GroupChoices are the groups a group field may be set to, normally the
	// actor's own groups.
	GroupChoices []models.Group
	// RelatedChoices holds the selectable targets of foreign-key fields by field name.
	RelatedChoices map[string][]record.Choice
	// Storage receives uploads of file fields.
	Storage storage.Storage
}

// BoundField is one field of a form together with its current value.
type BoundField struct {
	Field    record.Field      `json:"-"`
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Widget   Widget            `json:"widget"`
	Required bool              `json:"required"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	// Value is the raw input value.
	Value   string   `json:"value"`
	Choices []Option `json:"choices,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	// Display is the human-readable value, filled by ResolveDisplays.
	Display any `json:"display,omitempty"`
}

// IsHidden reports whether the field is rendered as a hidden input.
func (b *BoundField) IsHidden() bool { return b.Widget == HiddenInput }

// Form binds data to the editable fields of one record type.
type Form struct {
	desc     *record.Descriptor
	opts     Options
	instance record.Record
	fields   []*BoundField

	validated bool
	cleaned   map[string]any
	uploads   map[string]*multipart.FileHeader

	FieldErrors    map[string][]string
	NonFieldErrors []string
}

// New builds a form for desc. Without an instance a fresh record is created.
func New(desc *record.Descriptor, opts Options) *Form {
	f := &Form{
		desc:        desc,
		opts:        opts,
		instance:    opts.Instance,
		FieldErrors: make(map[string][]string),
	}
	if f.instance == nil {
		f.instance = desc.New()
	}
	for _, fd := range desc.Fields {
		if !fd.Editable || fd.Computed() {
			continue
		}
		f.fields = append(f.fields, f.bind(fd))
	}
	return f
}

func (f *Form) bind(fd record.Field) *BoundField {
	b := &BoundField{
		Field:    fd,
		Name:     fd.Name,
		Label:    fd.Label,
		Widget:   widgetFor(fd, f.opts.Disabled),
		Required: fd.Required && fd.Kind != record.KindBool,
		Attrs:    map[string]string{},
	}
	if f.opts.Disabled {
		b.Attrs["disabled"] = "disabled"
	}
	if fd.MaxLength > 0 && (fd.Kind == record.KindText || fd.Kind == record.KindLongText) {
		b.Attrs["maxlength"] = strconv.Itoa(fd.MaxLength)
	}
	if fd.Kind == record.KindDecimal {
		b.Attrs["step"] = "any"
	}

	if f.IsBound() && fd.Kind != record.KindFile {
		b.Value = f.opts.Data.Get(fd.Name)
	} else if v, err := record.Get(f.instance, fd.Name); err == nil {
		b.Value = formatValue(fd, v)
	}

	if b.Widget == Select {
		b.Choices = f.choices(fd, b.Value, b.Required)
	}
	return b
}

func (f *Form) choices(fd record.Field, current string, required bool) []Option {
	var opts []Option
	if !required {
		opts = append(opts, Option{Value: "", Label: "---------"})
	}
	add := func(value, label string) {
		opts = append(opts, Option{Value: value, Label: label, Selected: value == current})
	}
	switch fd.Kind {
	case record.KindChoice:
		for _, c := range fd.Choices {
			add(c.Value, c.Label)
		}
	case record.KindGroup:
		for _, g := range f.opts.GroupChoices {
			add(strconv.FormatInt(g.ID, 10), g.Name)
		}
	case record.KindForeignKey:
		for _, c := range f.opts.RelatedChoices[fd.Name] {
			add(c.Value, c.Label)
		}
	}
	return opts
}

func formatValue(fd record.Field, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if fd.Kind == record.KindDateTime {
			return x.Format("2006-01-02T15:04")
		}
		return x.Format("2006-01-02")
	case bool:
		if x {
			return "on"
		}
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Descriptor returns the record type of the form.
func (f *Form) Descriptor() *record.Descriptor { return f.desc }

// Instance returns the bound record.
func (f *Form) Instance() record.Record { return f.instance }

// IsBound reports whether request data was supplied.
func (f *Form) IsBound() bool { return f.opts.Data != nil }

// Disabled reports whether the form is read-only.
func (f *Form) Disabled() bool { return f.opts.Disabled }

// Fields returns all bound fields in declaration order.
func (f *Form) Fields() []*BoundField { return f.fields }

// VisibleFields returns the fields that are not hidden.
func (f *Form) VisibleFields() []*BoundField {
	var out []*BoundField
	for _, b := range f.fields {
		if !b.IsHidden() {
			out = append(out, b)
		}
	}
	return out
}

// Field returns the bound field called name.
func (f *Form) Field(name string) (*BoundField, bool) {
	for _, b := range f.fields {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// AddError records a message for field, or a non-field error when field is empty.
func (f *Form) AddError(field, msg string) {
	if field == "" {
		f.NonFieldErrors = append(f.NonFieldErrors, msg)
		return
	}
	f.FieldErrors[field] = append(f.FieldErrors[field], msg)
	if b, ok := f.Field(field); ok {
		b.Errors = append(b.Errors, msg)
	}
}

// HasErrors reports whether any error was recorded.
func (f *Form) HasErrors() bool {
	return len(f.FieldErrors) > 0 || len(f.NonFieldErrors) > 0
}

// IsValid cleans every field once and reports whether no errors were found.
// Unbound and disabled forms are never valid.
func (f *Form) IsValid() bool {
	if !f.IsBound() || f.opts.Disabled {
		return false
	}
	if !f.validated {
		f.validated = true
		f.clean()
	}
	return !f.HasErrors()
}

// Cleaned returns the cleaned value of field after IsValid.
func (f *Form) Cleaned(field string) (any, bool) {
	v, ok := f.cleaned[field]
	return v, ok
}

// ResolveDisplays fills Display of every field: foreign keys through r, groups
// from the group choices, everything else from the raw value.
func (f *Form) ResolveDisplays(ctx context.Context, r Resolver) error {
	for _, b := range f.fields {
		switch b.Field.Kind {
		case record.KindForeignKey:
			if r == nil {
				b.Display = b.Value
				continue
			}
			v, err := r.FieldDisplay(ctx, b.Field, f.instance)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", b.Name, err)
			}
			b.Display = v
		case record.KindGroup, record.KindChoice:
			b.Display = b.Value
			for _, o := range b.Choices {
				if o.Value == b.Value && o.Value != "" {
					b.Display = o.Label
				}
			}
		case record.KindBool:
			b.Display = b.Value != ""
		default:
			b.Display = b.Value
		}
	}
	return nil
}

// Save writes the cleaned data into the instance and persists it through
// saver, stamped with the bound actor and tenantID. Uploaded files are stored
// and moved below the record id once the record has one.
func (f *Form) Save(ctx context.Context, saver Saver, ext sqlx.ExtContext, tenantID int64) (record.Record, error) {
	if f.opts.Actor == nil {
		f.AddError("", "You must be logged in to save this.")
		return nil, ErrActorRequired
	}
	if !f.IsValid() {
		return nil, ErrInvalid
	}

	for name, v := range f.cleaned {
		if err := record.Set(f.instance, name, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	if len(f.uploads) > 0 && f.opts.Storage == nil {
		return nil, fmt.Errorf("no attachment storage configured for %s", f.desc.Key())
	}
	type pending struct {
		field, key, contentType, previous string
	}
	var moves []pending
	for name, fh := range f.uploads {
		obj, err := attachments.SaveUpload(ctx, f.opts.Storage, fh)
		if err != nil {
			return nil, err
		}
		prev, _ := record.Get(f.instance, name)
		previous, _ := prev.(string)
		if err := record.Set(f.instance, name, obj.Key); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
		moves = append(moves, pending{name, obj.Key, obj.ContentType, previous})
	}

	actor := f.opts.Actor.ID
	if err := saver.Save(ctx, ext, f.desc, f.instance, repositories.SaveOptions{Actor: &actor, TenantID: &tenantID}); err != nil {
		return nil, err
	}

	for _, m := range moves {
		key, err := attachments.MoveToInstanceIDPath(ctx, f.opts.Storage, f.desc, f.instance, m.key, m.contentType)
		if err != nil {
			return nil, err
		}
		if err := saver.SetColumn(ctx, ext, f.desc, f.instance, m.field, key); err != nil {
			return nil, err
		}
		if m.previous != "" && m.previous != key {
			if err := f.opts.Storage.Delete(ctx, m.previous); err != nil {
				slog.Warn("failed to remove replaced attachment", "key", m.previous, "error", err)
			}
		}
	}
	return f.instance, nil
}
