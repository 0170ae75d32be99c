package generic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/apps/projects"
	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

var (
	alice = &models.User{ID: 7, Username: "alice", IsActive: true}
	bob   = &models.User{ID: 8, Username: "bob", IsActive: true}
)

type fakeActors struct {
	users  map[int64]*models.User
	groups map[int64][]models.Group
}

func newFakeActors() *fakeActors {
	return &fakeActors{
		users:  map[int64]*models.User{alice.ID: alice, bob.ID: bob},
		groups: map[int64][]models.Group{alice.ID: {{ID: 2, Name: "Design"}}},
	}
}

func (f *fakeActors) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeActors) GroupIDs(_ context.Context, userID int64) ([]int64, error) {
	return models.GroupIDs(f.groups[userID]), nil
}

func (f *fakeActors) Groups(_ context.Context, userID int64) ([]models.Group, error) {
	return f.groups[userID], nil
}

type recordedAudit struct {
	entries []*models.AuditLog
}

func (r *recordedAudit) Record(_ context.Context, entry *models.AuditLog) {
	r.entries = append(r.entries, entry)
}

// shelf protects the books standing on it.
type shelf struct {
	record.Base
	Name string `db:"name"`
}

func (s *shelf) Display() string { return s.Name }

// ---------------------------------------------------------------------------
// Setup
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var customerCols = []string{"id", "created_at", "created_by", "modified_at", "modified_by", "site_id", "deleted", "name", "email"}

func customerRows() *sqlmock.Rows {
	return sqlmock.NewRows(customerCols)
}

func addCustomer(rows *sqlmock.Rows, id int64, name, email string) *sqlmock.Rows {
	return rows.AddRow(id, fixedNow, 7, fixedNow, 7, 1, false, name, email)
}

type testEnv struct {
	mock    sqlmock.Sqlmock
	handler *Handler
	router  *gin.Engine
	audit   *recordedAudit
	actor   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := sqlx.NewDb(sqlDB, "sqlmock")

	registry := record.NewRegistry()
	if err := projects.Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	registry.MustRegister(&record.Descriptor{
		Namespace:   "library",
		Name:        "shelf",
		Table:       "shelves",
		VerboseName: "Shelf",
		Fields:      []record.Field{{Name: "name", Label: "Name", Kind: record.KindText, Editable: true}},
		Relations:   []record.Relation{{Table: "books", Column: "shelf_id", OnDelete: record.Protect}},
		New:         func() record.Record { return &shelf{} },
	})

	actors := newFakeActors()
	saver := &repositories.Saver{Now: func() time.Time { return fixedNow }}
	flashes, err := NewFlashes(config.SessionsConfig{Secret: "test-session-secret-0123456789abcdef", CookieName: "dorsale_session"})
	if err != nil {
		t.Fatalf("flashes: %v", err)
	}
	audit := &recordedAudit{}

	h := NewHandler(Deps{
		DB:       db,
		Registry: registry,
		Managers: repositories.NewManagers(db, registry, actors),
		Saver:    saver,
		Deleter:  repositories.NewDeleter(db, saver, registry),
		Groups:   actors,
		Flashes:  flashes,
		Settings: config.NewRuntime(&config.Config{
			Listing: config.ListingConfig{ItemsPerPage: 10, Orphans: 2, ModulePageSize: 20, ShowRetries: 3},
			Export:  config.ExportConfig{DefaultFormat: "csv", Charset: "utf-8", SheetTitle: "Export", Language: "en"},
		}),
		Audit: audit,
	})

	env := &testEnv{mock: mock, handler: h, audit: audit, actor: alice}
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.Use(func(c *gin.Context) {
		if env.actor != nil {
			c.Set(middleware.UserKey, env.actor)
		}
		c.Set(middleware.TenantIDKey, int64(1))
		c.Next()
	})
	h.RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(method, target, body, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, "", "")
}

func (e *testEnv) postForm(target, body string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, target, body, "application/x-www-form-urlencoded")
}

func (e *testEnv) getHTML(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
