package record

import (
	"fmt"
	"strconv"
)

// DefaultItemsPerPage is used when a descriptor does not set ItemsPerPage.
const DefaultItemsPerPage = 10

// PageSize returns the list page size, falling back to fallback and then to
// DefaultItemsPerPage.
func (d *Descriptor) PageSize(fallback int) int {
	switch {
	case d.ItemsPerPage > 0:
		return d.ItemsPerPage
	case fallback > 0:
		return fallback
	default:
		return DefaultItemsPerPage
	}
}

// FieldNames lists fields that are editable or explicitly displayed.
func (d *Descriptor) FieldNames() []string {
	shown := make(map[string]bool, len(d.ListDisplay))
	for _, n := range d.ListDisplay {
		shown[n] = true
	}
	var names []string
	for _, f := range d.Fields {
		if f.Editable || shown[f.Name] {
			names = append(names, f.Name)
		}
	}
	return names
}

// VerboseFieldNames returns the labels matching FieldNames.
func (d *Descriptor) VerboseFieldNames() []string {
	names := d.FieldNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Label(n)
	}
	return out
}

// Label returns the human label of a field, or the name itself.
func (d *Descriptor) Label(name string) string {
	if f, ok := d.Field(name); ok {
		return f.Label
	}
	return name
}

// ListColumns is ListDisplay, or FieldNames when none was declared.
func (d *Descriptor) ListColumns() []string {
	if len(d.ListDisplay) > 0 {
		return d.ListDisplay
	}
	return d.FieldNames()
}

// Value reads a described field, invoking Compute for derived fields.
func (d *Descriptor) Value(rec Record, name string) (any, error) {
	if f, ok := d.Field(name); ok && f.Compute != nil {
		return f.Compute(rec), nil
	}
	return Get(rec, name)
}

// FieldValues returns the values of FieldNames for rec.
func (d *Descriptor) FieldValues(rec Record) ([]any, error) {
	names := d.FieldNames()
	out := make([]any, len(names))
	for i, n := range names {
		v, err := d.Value(rec, n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Descriptor) ClassName() string { return d.VerboseName }
func (d *Descriptor) ClassNamePlural() string { return d.VerbosePlural }

// ListURL is the path of the list view of this type.
func (d *Descriptor) ListURL() string {
	return "/" + d.Namespace + "/" + d.Name + "/"
}

// AbsoluteURL is the path of the detail view of rec.
func (d *Descriptor) AbsoluteURL(rec Record) string {
	return d.ListURL() + strconv.FormatInt(rec.PK(), 10) + "/"
}

// DisplayString is the label used wherever rec stands in for a reference.
func DisplayString(rec Record) string {
	if rec == nil {
		return ""
	}
	if dr, ok := rec.(Displayer); ok {
		return dr.Display()
	}
	if s, ok := rec.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("#%d", rec.PK())
}
