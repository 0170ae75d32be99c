package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

var auditCols = []string{"id", "user_id", "site_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "created_at"}

func newAuditRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	mock, db := newDB(t)
	h := NewAuditHandlers(db)

	r := gin.New()
	r.Use(withActor(superuser))
	r.GET("/audit-logs", h.ListAuditLogsHandler())
	r.GET("/audit-logs/:id", h.GetAuditLogHandler())
	return mock, r
}

func auditRow(id, siteID int64) *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow(id, 7, siteID, "record.delete", "projects.customer", "3", []byte(`{"total":5}`), "10.0.0.1", fixedNow)
}

func TestListAuditLogs_ScopedToSite(t *testing.T) {
	mock, r := newAuditRouter(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE 1=1 AND user_id = \$1 AND site_id = \$2 AND action = \$3`).
		WithArgs(7, 1, "record.delete").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$4 OFFSET \$5`).
		WithArgs(7, 1, "record.delete", 20, 0).
		WillReturnRows(auditRow(11, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?user_id=7&action=record.delete", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	logs, _ := getJSON(w)["logs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("logs = %v, want 1", getJSON(w)["logs"])
	}
	entry := logs[0].(map[string]interface{})
	if meta, _ := entry["metadata"].(map[string]interface{}); meta["total"] != float64(5) {
		t.Errorf("metadata = %v, want total 5", entry["metadata"])
	}
}

func TestListAuditLogs_InvalidFilters(t *testing.T) {
	_, r := newAuditRouter(t)

	for _, q := range []string{"user_id=abc", "start_date=yesterday", "end_date=2024-13-01"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestListAuditLogs_DateRange(t *testing.T) {
	mock, r := newAuditRouter(t)
	mock.ExpectQuery(`AND site_id = \$1 AND created_at >= \$2 AND created_at <= \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM audit_logs`).WillReturnRows(sqlmock.NewRows(auditCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/audit-logs?start_date=2024-01-01T00:00:00Z&end_date=2024-02-01T00:00:00Z", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetAuditLog_Success(t *testing.T) {
	mock, r := newAuditRouter(t)
	mock.ExpectQuery(`FROM audit_logs\s+WHERE id = \$1`).WithArgs(11).WillReturnRows(auditRow(11, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs/11", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if getJSON(w)["action"] != "record.delete" {
		t.Errorf("action = %v", getJSON(w)["action"])
	}
}

func TestGetAuditLog_OtherSite(t *testing.T) {
	mock, r := newAuditRouter(t)
	mock.ExpectQuery(`FROM audit_logs`).WillReturnRows(auditRow(11, 2))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs/11", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetAuditLog_Missing(t *testing.T) {
	mock, r := newAuditRouter(t)
	mock.ExpectQuery(`FROM audit_logs`).WillReturnRows(sqlmock.NewRows(auditCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs/11", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
