package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/record"
	"github.com/jmoiron/sqlx"
)

var errDB = errors.New("db error")

// ---------------------------------------------------------------------------
// Record types used across the package tests
// ---------------------------------------------------------------------------

type testCustomer struct {
	record.Base
	Name string `db:"name"`
}

func (c *testCustomer) Display() string { return c.Name }

type testProject struct {
	record.Base
	CustomerID *int64 `db:"customer_id"`
	GroupID    *int64 `db:"group_id"`
	Name       string `db:"name"`
}

func (p *testProject) Display() string { return p.Name }

type testTask struct {
	record.Base
	ProjectID int64  `db:"project_id"`
	Title     string `db:"title"`
}

func (t *testTask) Display() string { return t.Title }

// testLabel has no audit, tenant or deletion support.
type testLabel struct {
	ID        int64  `db:"id"`
	ProjectID int64  `db:"project_id"`
	Name      string `db:"name"`
}

func (l *testLabel) PK() int64      { return l.ID }
func (l *testLabel) SetPK(id int64) { l.ID = id }

var (
	customerCols = []string{"id", "created_at", "created_by", "modified_at", "modified_by", "site_id", "deleted", "name"}
	projectCols  = []string{"id", "created_at", "created_by", "modified_at", "modified_by", "site_id", "deleted", "customer_id", "group_id", "name"}
	taskCols     = []string{"id", "created_at", "created_by", "modified_at", "modified_by", "site_id", "deleted", "project_id", "title"}
	labelCols    = []string{"id", "project_id", "name"}
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testTypes struct {
	registry *record.Registry
	customer *record.Descriptor
	project  *record.Descriptor
	task     *record.Descriptor
	label    *record.Descriptor
}

func newTestTypes(t *testing.T) *testTypes {
	t.Helper()
	tt := &testTypes{
		registry: record.NewRegistry(),
		customer: &record.Descriptor{
			Namespace: "test",
			Name:      "customer",
			Fields:    []record.Field{{Name: "name", Kind: record.KindText, Editable: true}},
			Relations: []record.Relation{{Table: "projects", Column: "customer_id", OnDelete: record.Protect}},
			New:       func() record.Record { return &testCustomer{} },
		},
		project: &record.Descriptor{
			Namespace:  "test",
			Name:       "project",
			GroupField: "group_id",
			Fields: []record.Field{
				{Name: "name", Kind: record.KindText, Editable: true},
				{Name: "customer_id", Kind: record.KindForeignKey, Related: &record.Ref{Namespace: "test", Name: "customer"}},
				{Name: "tasks", Kind: record.KindCollection, Related: &record.Ref{Namespace: "test", Name: "task"},
					Collection: &record.Collection{Table: "tasks", OwnerColumn: "project_id"}},
			},
			Relations: []record.Relation{
				{Table: "tasks", Column: "project_id", OnDelete: record.Cascade},
				{Table: "labels", Column: "project_id", OnDelete: record.Cascade},
				{Table: "task_assignments", Column: "project_id", OnDelete: record.Cascade},
				{Table: "notes", Column: "project_id", OnDelete: record.SetNull},
			},
			New: func() record.Record { return &testProject{} },
		},
		task: &record.Descriptor{
			Namespace: "test",
			Name:      "task",
			GroupVia:  &record.GroupPath{ForeignKey: "project_id", Table: "projects", GroupColumn: "group_id"},
			Fields:    []record.Field{{Name: "title", Kind: record.KindText, Editable: true}},
			Relations: []record.Relation{{Table: "task_assignments", Column: "task_id", OnDelete: record.Cascade}},
			New:       func() record.Record { return &testTask{} },
		},
		label: &record.Descriptor{
			Namespace: "test",
			Name:      "label",
			Fields:    []record.Field{{Name: "name", Kind: record.KindText, Editable: true}},
			New:       func() record.Record { return &testLabel{} },
		},
	}
	tt.registry.MustRegister(tt.customer, tt.project, tt.task, tt.label)
	return tt
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func fixedSaver() *Saver {
	return &Saver{Now: func() time.Time { return fixedNow }}
}

func projectRow(rows *sqlmock.Rows, id int64, name string, groupID any) *sqlmock.Rows {
	return rows.AddRow(id, fixedNow, 5, fixedNow, 5, 1, false, nil, groupID, name)
}

func taskRow(rows *sqlmock.Rows, id, projectID int64, title string) *sqlmock.Rows {
	return rows.AddRow(id, fixedNow, 5, fixedNow, 5, 1, false, projectID, title)
}

// fakeActors is an in-memory ActorLookup.
type fakeActors struct {
	users  map[int64]*models.User
	groups map[int64][]int64
	err    error
	calls  int
}

func (f *fakeActors) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeActors) GroupIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.groups[userID], nil
}

func newFakeActors() *fakeActors {
	return &fakeActors{
		users: map[int64]*models.User{
			5: {ID: 5, Username: "alice", IsActive: true},
			6: {ID: 6, Username: "bob", IsActive: false},
			7: {ID: 7, Username: "root", IsActive: true, IsSuperuser: true},
			8: {ID: 8, Username: "loner", IsActive: true},
		},
		groups: map[int64][]int64{5: {2, 3}, 7: {2}},
	}
}
