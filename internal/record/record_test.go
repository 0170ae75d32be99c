package record

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

type widget struct {
	Base
	Name    string         `db:"name"`
	Color   string         `db:"color"`
	Count   int64          `db:"count"`
	Parent  *int64         `db:"parent_id"`
	Note    sql.NullString `db:"note"`
	Due     *time.Time     `db:"due"`
	Ignored string         `db:"-"`
}

func (w *widget) Display() string { return w.Name }

type plain struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (p *plain) PK() int64      { return p.ID }
func (p *plain) SetPK(id int64) { p.ID = id }

func widgetDescriptor() *Descriptor {
	return &Descriptor{
		Namespace:   "Shop",
		Name:        "Widget",
		VerboseName: "widget",
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindText, Editable: true, Required: true},
			{Name: "color", Label: "Colour", Kind: KindColor, Editable: true},
			{Name: "count", Kind: KindInt},
			{Name: "shout", Label: "Shout", Compute: func(r Record) any { return r.(*widget).Name + "!" }},
		},
		ListDisplay: []string{"name", "count"},
		New:         func() Record { return &widget{} },
	}
}

func TestRegister_FillsDefaults(t *testing.T) {
	reg := NewRegistry()
	d := widgetDescriptor()
	if err := reg.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if d.Key() != "shop.widget" {
		t.Errorf("Key = %q, want shop.widget", d.Key())
	}
	if d.Table != "widgets" {
		t.Errorf("Table = %q, want widgets", d.Table)
	}
	if d.VerbosePlural != "widgets" {
		t.Errorf("VerbosePlural = %q", d.VerbosePlural)
	}
	want := []string{"id", "created_at", "created_by", "modified_at", "modified_by", "site_id", "deleted",
		"name", "color", "count", "parent_id", "note", "due"}
	got := d.Columns()
	if len(got) != len(want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Columns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	caps := d.Capabilities()
	if !caps.Auditable || !caps.TenantScoped || !caps.SoftDeletable {
		t.Errorf("Capabilities = %+v, want all true", caps)
	}
}

func TestRegister_Errors(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Descriptor{Namespace: "a", Name: "b"}); err == nil {
		t.Error("expected error for missing constructor")
	}
	d := widgetDescriptor()
	d.Fields = append(d.Fields, Field{Name: "nope"})
	if err := reg.Register(d); err == nil {
		t.Error("expected error for field without column")
	}
	reg.MustRegister(widgetDescriptor())
	if err := reg.Register(widgetDescriptor()); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestLookup(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(widgetDescriptor())

	d, err := reg.Lookup("SHOP", "widget")
	if err != nil || d.Name != "widget" {
		t.Fatalf("Lookup = %v, %v", d, err)
	}
	_, err = reg.Lookup("shop", "gadget")
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
	if _, ok := reg.ByTable("widgets"); !ok {
		t.Error("ByTable(widgets) not found")
	}
}

func TestCapabilities_PlainRecord(t *testing.T) {
	caps := CapabilitiesOf(&plain{})
	if caps.Auditable || caps.TenantScoped || caps.SoftDeletable {
		t.Errorf("plain record should have no capabilities, got %+v", caps)
	}
}

func TestGetSet(t *testing.T) {
	w := &widget{}
	if err := Set(w, "name", "bolt"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	if err := Set(w, "parent_id", int64(7)); err != nil {
		t.Fatalf("Set parent_id: %v", err)
	}
	if err := Set(w, "note", "fragile"); err != nil {
		t.Fatalf("Set note: %v", err)
	}
	if err := Set(w, "count", 3); err != nil {
		t.Fatalf("Set count: %v", err)
	}
	if err := Set(w, "created_by", int64(5)); err != nil {
		t.Fatalf("Set created_by: %v", err)
	}

	if w.Name != "bolt" || w.Parent == nil || *w.Parent != 7 || w.Note.String != "fragile" || w.Count != 3 {
		t.Errorf("unexpected widget state: %+v", w)
	}
	if w.CreatedBy != 5 {
		t.Errorf("CreatedBy = %d, want 5", w.CreatedBy)
	}

	v, _ := Get(w, "due")
	if v != nil {
		t.Errorf("Get(due) = %v, want nil", v)
	}
	v, _ = Get(w, "parent_id")
	if v != int64(7) {
		t.Errorf("Get(parent_id) = %v, want 7", v)
	}
	if err := Set(w, "parent_id", nil); err != nil || w.Parent != nil {
		t.Errorf("Set nil parent: %v, %v", err, w.Parent)
	}
	if _, err := Get(w, "missing"); err == nil {
		t.Error("expected error for unknown column")
	}
	if err := Set(w, "name", 12); err == nil {
		t.Error("expected error assigning int to string")
	}
}

func TestValues_LeavesUnsetPointersNil(t *testing.T) {
	w := &widget{Name: "bolt"}

	vals, err := Values(w, []string{"name", "parent_id", "due", "note"})
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if w.Parent != nil || w.Due != nil {
		t.Errorf("reading values modified the record: parent=%v due=%v", w.Parent, w.Due)
	}
	if vals[0] != "bolt" {
		t.Errorf("name = %v, want bolt", vals[0])
	}
	if vals[1] != nil || vals[2] != nil {
		t.Errorf("unset pointers = %v, %v, want nil", vals[1], vals[2])
	}

	if v, _ := Get(w, "parent_id"); v != nil {
		t.Errorf("Get(parent_id) = %v, want nil", v)
	}
	if w.Parent != nil {
		t.Error("Get allocated parent_id")
	}
}

func TestFieldInfo(t *testing.T) {
	reg := NewRegistry()
	d := widgetDescriptor()
	reg.MustRegister(d)

	names := d.FieldNames()
	want := []string{"name", "color", "count"}
	if len(names) != len(want) {
		t.Fatalf("FieldNames = %v, want %v", names, want)
	}
	labels := d.VerboseFieldNames()
	if labels[1] != "Colour" || labels[2] != "count" {
		t.Errorf("VerboseFieldNames = %v", labels)
	}

	w := &widget{Name: "bolt", Count: 2}
	w.ID = 42
	vals, err := d.FieldValues(w)
	if err != nil {
		t.Fatalf("FieldValues: %v", err)
	}
	if vals[0] != "bolt" || vals[2] != int64(2) {
		t.Errorf("FieldValues = %v", vals)
	}
	shout, _ := d.Value(w, "shout")
	if shout != "bolt!" {
		t.Errorf("computed value = %v", shout)
	}
	if got := d.AbsoluteURL(w); got != "/shop/widget/42/" {
		t.Errorf("AbsoluteURL = %q", got)
	}
	if DisplayString(w) != "bolt" {
		t.Errorf("DisplayString = %q", DisplayString(w))
	}
	if DisplayString(&plain{ID: 3}) != "#3" {
		t.Errorf("DisplayString(plain) = %q", DisplayString(&plain{ID: 3}))
	}
	if d.PageSize(0) != DefaultItemsPerPage || d.PageSize(25) != 25 {
		t.Errorf("PageSize fallback wrong")
	}
}

func TestOrdering(t *testing.T) {
	reg := NewRegistry()
	d := widgetDescriptor()
	reg.MustRegister(d)

	terms := ParseOrdering(" name, -count ,,")
	if len(terms) != 2 || terms[1] != "-count" {
		t.Fatalf("ParseOrdering = %v", terms)
	}
	if !d.ValidOrdering(terms) {
		t.Error("expected valid ordering")
	}
	if d.ValidOrdering([]string{"name", "-bogus"}) {
		t.Error("expected invalid ordering")
	}
	if d.ValidOrdering(nil) {
		t.Error("empty ordering must be invalid")
	}
	if got := d.DefaultOrdering(); len(got) != 1 || got[0] != "id" {
		t.Errorf("DefaultOrdering = %v", got)
	}

	tests := []struct {
		field   string
		current []string
		want    string
	}{
		{"name", nil, "name"},
		{"name", []string{"name"}, "-name"},
		{"name", []string{"-name", "count"}, "name,count"},
		{"color", []string{"name"}, "color"},
	}
	for _, tt := range tests {
		if got := ToggleOrdering(tt.field, tt.current); got != tt.want {
			t.Errorf("ToggleOrdering(%q, %v) = %q, want %q", tt.field, tt.current, got, tt.want)
		}
	}
}
