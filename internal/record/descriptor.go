package record

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind classifies a field for form widgets, validation and export typing.
type Kind int

const (
	KindText Kind = iota
	KindLongText
	KindInt
	KindDecimal
	KindBool
	KindDate
	KindDateTime
	KindColor
	KindCMYK
	KindChoice
	KindForeignKey
	KindGroup
	KindFile
	KindCollection
)

var kindNames = map[Kind]string{
	KindText:       "text",
	KindLongText:   "longtext",
	KindInt:        "int",
	KindDecimal:    "decimal",
	KindBool:       "bool",
	KindDate:       "date",
	KindDateTime:   "datetime",
	KindColor:      "color",
	KindCMYK:       "cmyk",
	KindChoice:     "choice",
	KindForeignKey: "foreignkey",
	KindGroup:      "group",
	KindFile:       "file",
	KindCollection: "collection",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Choice is one allowed value of a KindChoice field.
type Choice struct {
	Value string
	Label string
}

// Ref names another registered record type.
type Ref struct {
	Namespace string
	Name      string
}

func (r Ref) String() string { return r.Namespace + "." + r.Name }

// Field describes one user-facing attribute of a record type. Name is the
// database column unless Compute is set, in which case the value is derived.
type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Editable  bool
	Required  bool
	Hidden    bool
	MaxLength int
	// Validate holds extra validator tags, e.g. "htmlcolor" or "gte=0".
	Validate string
	Choices  []Choice
	// Related is the referenced type of foreign-key and collection fields.
	Related    *Ref
	Collection *Collection
	Compute    func(rec Record) any
}

// Collection locates the members of a to-many field. Without MemberColumn,
// Table holds the members and OwnerColumn points back at the owner; with it,
// Table is a join table linking OwnerColumn to MemberColumn.
type Collection struct {
	Table        string
	OwnerColumn  string
	MemberColumn string
}

// Computed reports whether the field has no backing column.
func (f Field) Computed() bool { return f.Compute != nil || f.Collection != nil }

// OnDelete controls what happens to dependents when their parent is deleted.
type OnDelete int

const (
	Cascade OnDelete = iota
	SetNull
	Protect
)

func (o OnDelete) String() string {
	switch o {
	case SetNull:
		return "set_null"
	case Protect:
		return "protect"
	default:
		return "cascade"
	}
}

// Relation is a reverse foreign key: rows of Table whose Column references
// this record's id.
type Relation struct {
	Table    string
	Column   string
	OnDelete OnDelete
}

// GroupPath locates the owning group of a record through a foreign key, for
// record types that do not carry a group column of their own.
type GroupPath struct {
	ForeignKey  string
	Table       string
	GroupColumn string
}

// Descriptor is the runtime description of a record type.
type Descriptor struct {
	Namespace     string
	Name          string
	Table         string
	VerboseName   string
	VerbosePlural string
	Fields        []Field
	Ordering      []string
	ItemsPerPage  int
	ListDisplay   []string
	UniqueFields  []string
	// GroupField is the column holding the owning group id, if any.
	GroupField string
	GroupVia   *GroupPath
	Relations  []Relation
	New        func() Record

	caps    Capabilities
	columns []string
}

// Key returns the registry key "namespace.name".
func (d *Descriptor) Key() string { return d.Namespace + "." + d.Name }

func (d *Descriptor) Capabilities() Capabilities { return d.caps }
func (d *Descriptor) Auditable() bool { return d.caps.Auditable }
func (d *Descriptor) TenantScoped() bool { return d.caps.TenantScoped }
func (d *Descriptor) SoftDeletable() bool { return d.caps.SoftDeletable }

// GroupOwned reports whether queries must be narrowed to the actor's groups.
func (d *Descriptor) GroupOwned() bool { return d.GroupField != "" || d.GroupVia != nil }

// Columns lists every db-tagged column of the record struct, id first.
func (d *Descriptor) Columns() []string { return d.columns }

// HasColumn reports whether name is a real column of the table.
func (d *Descriptor) HasColumn(name string) bool {
	for _, c := range d.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Field looks up a described field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultOrdering returns the declared ordering or ["id"].
func (d *Descriptor) DefaultOrdering() []string {
	if len(d.Ordering) > 0 {
		return d.Ordering
	}
	return []string{"id"}
}

func (d *Descriptor) init() error {
	if d.Namespace == "" || d.Name == "" {
		return fmt.Errorf("record type needs namespace and name")
	}
	if d.New == nil {
		return fmt.Errorf("record type %s has no constructor", d.Key())
	}
	d.Namespace = strings.ToLower(d.Namespace)
	d.Name = strings.ToLower(d.Name)
	if d.Table == "" {
		d.Table = d.Name + "s"
	}
	if d.VerboseName == "" {
		d.VerboseName = d.Name
	}
	if d.VerbosePlural == "" {
		d.VerbosePlural = d.VerboseName + "s"
	}
	proto := d.New()
	d.caps = CapabilitiesOf(proto)
	d.columns = columnsOf(reflect.TypeOf(proto))
	if len(d.columns) == 0 || d.columns[0] != "id" {
		return fmt.Errorf("record type %s must have an id column first", d.Key())
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Label == "" {
			f.Label = strings.ReplaceAll(f.Name, "_", " ")
		}
		if !f.Computed() && !d.HasColumn(f.Name) {
			return fmt.Errorf("record type %s: field %q has no column", d.Key(), f.Name)
		}
	}
	return nil
}

// columnsOf walks embedded structs depth-first in declaration order.
func columnsOf(t reflect.Type) []string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if sf.Anonymous && tag == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				cols = append(cols, columnsOf(ft)...)
			}
			continue
		}
		if !sf.IsExported() || tag == "" {
			continue
		}
		cols = append(cols, strings.Split(tag, ",")[0])
	}
	return cols
}
