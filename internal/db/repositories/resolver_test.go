package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestResolver_ForeignKeyIsCached(t *testing.T) {
	tt := newTestTypes(t)
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM customers WHERE id").
		WithArgs(int64(4), 1).
		WillReturnRows(sqlmock.NewRows(customerCols).AddRow(4, fixedNow, 5, fixedNow, 5, 1, false, "ACME"))

	r := NewResolver(db, tt.registry)
	f, _ := tt.project.Field("customer_id")
	p := liveProject(1)
	p.CustomerID = int64Ptr(4)

	for i := 0; i < 2; i++ {
		v, err := r.FieldDisplay(context.Background(), f, p)
		if err != nil {
			t.Fatalf("FieldDisplay: %v", err)
		}
		if v != "ACME" {
			t.Errorf("display = %v, want ACME", v)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolver_UnsetForeignKeyIsNil(t *testing.T) {
	tt := newTestTypes(t)
	db, _ := newMockDB(t)
	f, _ := tt.project.Field("customer_id")

	v, err := NewResolver(db, tt.registry).FieldDisplay(context.Background(), f, liveProject(1))
	if err != nil || v != nil {
		t.Errorf("FieldDisplay = %v, %v; want nil", v, err)
	}
}

func TestResolver_MissingTargetRendersID(t *testing.T) {
	tt := newTestTypes(t)
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM customers").WillReturnRows(sqlmock.NewRows(customerCols))

	s, err := NewResolver(db, tt.registry).Display(context.Background(), *tt.project.Fields[1].Related, 77)
	if err != nil || s != "#77" {
		t.Errorf("Display = %q, %v", s, err)
	}
}

func TestResolver_Collection(t *testing.T) {
	tt := newTestTypes(t)
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id FROM tasks WHERE project_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10).AddRow(11))
	mock.ExpectQuery("FROM tasks WHERE id").
		WillReturnRows(taskRow(sqlmock.NewRows(taskCols), 10, 1, "Design"))
	mock.ExpectQuery("FROM tasks WHERE id").
		WillReturnRows(taskRow(sqlmock.NewRows(taskCols), 11, 1, "Build"))

	f, _ := tt.project.Field("tasks")
	v, err := NewResolver(db, tt.registry).FieldDisplay(context.Background(), f, liveProject(1))
	if err != nil {
		t.Fatalf("FieldDisplay: %v", err)
	}
	got := v.([]string)
	if len(got) != 2 || got[0] != "Design" || got[1] != "Build" {
		t.Errorf("collection = %v", got)
	}
}
