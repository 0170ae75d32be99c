package repositories

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fiee/dorsale/internal/db/models"
)

// ---------------------------------------------------------------------------
// SiteRepository
// ---------------------------------------------------------------------------

func TestGetSiteByDomain(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSiteRepository(db)
	mock.ExpectQuery("SELECT id, domain, name FROM sites WHERE domain").
		WithArgs("example.org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "name"}).AddRow(2, "example.org", "Example"))

	site, err := repo.GetSiteByDomain(context.Background(), "example.org")
	if err != nil || site == nil || site.ID != 2 {
		t.Fatalf("GetSiteByDomain = %+v, %v", site, err)
	}
}

func TestGetSiteByDomain_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM sites").WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "name"}))

	site, err := NewSiteRepository(db).GetSiteByDomain(context.Background(), "nowhere")
	if err != nil || site != nil {
		t.Errorf("GetSiteByDomain = %+v, %v; want nil, nil", site, err)
	}
}

// ---------------------------------------------------------------------------
// ModuleRepository
// ---------------------------------------------------------------------------

var moduleCols = []string{"id", "name", "code", "description", "available"}

func TestCreateModule_RejectsUnknownAvailability(t *testing.T) {
	db, _ := newMockDB(t)
	err := NewModuleRepository(db).CreateModule(context.Background(), &models.Module{Name: "x", Code: "x", Available: "soon"})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestCreateModule(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO modules").
		WithArgs("Projects", "projects", "", "avail").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	m := &models.Module{Name: "Projects", Code: "projects", Available: models.AvailabilityAvailable}
	if err := NewModuleRepository(db).CreateModule(context.Background(), m); err != nil {
		t.Fatalf("CreateModule: %v", err)
	}
	if m.ID != 4 {
		t.Errorf("ID = %d", m.ID)
	}
}

func TestListModules(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM modules")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("FROM modules ORDER BY name LIMIT").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(moduleCols).
			AddRow(1, "Addresses", "addr", "", "plan").
			AddRow(2, "Projects", "projects", "", "avail"))

	modules, total, err := NewModuleRepository(db).ListModules(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if total != 2 || len(modules) != 2 || modules[0].Availability() != "planned" {
		t.Errorf("total = %d, modules = %+v", total, modules)
	}
}

// ---------------------------------------------------------------------------
// SiteProfileRepository
// ---------------------------------------------------------------------------

func TestGetBySiteID_LoadsModules(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM site_profiles WHERE site_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "code", "base_language", "admin_group_id", "own_style", "home_url"}).
			AddRow(1, "fiee", "de", nil, true, "/projects/project/"))
	mock.ExpectQuery("FROM modules m.*JOIN site_profile_modules").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(moduleCols).AddRow(2, "Projects", "projects", "", "avail"))

	p, err := NewSiteProfileRepository(db).GetBySiteID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetBySiteID: %v", err)
	}
	if p.CSS() != "css/fiee.css" || !p.HasModule("projects") {
		t.Errorf("unexpected profile: %+v", p)
	}
	if url, ok := p.HomeRedirect(); !ok || url != "/projects/project/" {
		t.Errorf("HomeRedirect = %q, %v", url, ok)
	}
}

func TestGetBySiteID_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM site_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}))

	p, err := NewSiteProfileRepository(db).GetBySiteID(context.Background(), 9)
	if err != nil || p != nil {
		t.Errorf("GetBySiteID = %+v, %v; want nil, nil", p, err)
	}
}

func TestUpsert_ReplacesModules(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO site_profiles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM site_profile_modules").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO site_profile_modules").WithArgs(int64(1), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO site_profile_modules").WithArgs(int64(1), int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &models.SiteProfile{SiteID: 1, Code: "fiee", BaseLanguage: "de", HomeURL: "/"}
	if err := NewSiteProfileRepository(db).Upsert(context.Background(), p, []int64{2, 5}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsert_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO site_profiles").WillReturnError(errDB)
	mock.ExpectRollback()

	if err := NewSiteProfileRepository(db).Upsert(context.Background(), &models.SiteProfile{SiteID: 1}, nil); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
