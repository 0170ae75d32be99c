package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/models"
)

func newAuditRouter(rec AuditRecorder, cfg config.AuditConfig, actor *models.User) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, int64(2))
		if actor != nil {
			c.Set(UserKey, actor)
			c.Set(UserIDKey, actor.ID)
		}
	})
	r.Use(AuditMiddleware(rec, cfg))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/:app/:name/", ok)
	r.POST("/:app/:name/new/", ok)
	r.POST("/:app/:name/:id/edit/", ok)
	r.POST("/:app/:name/:id/delete/", func(c *gin.Context) {
		c.Set(AuditedKey, true)
		c.Status(http.StatusSeeOther)
	})
	r.POST("/:app/:name/:id/fail/", func(c *gin.Context) { c.Status(http.StatusUnprocessableEntity) })
	return r
}

func sendAudit(r *gin.Engine, method, path string) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
}

var alice = &models.User{ID: 7, Username: "alice", IsActive: true}

// ---------------------------------------------------------------------------
// AuditMiddleware
// ---------------------------------------------------------------------------

func TestAuditMiddleware_RecordsWrite(t *testing.T) {
	rec := newRecordedAudit()
	r := newAuditRouter(rec, config.AuditConfig{Enabled: true}, alice)

	sendAudit(r, http.MethodPost, "/projects/task/12/edit/")

	e := rec.next()
	require.NotNil(t, e)
	assert.Equal(t, "record.update", e.Action)
	require.NotNil(t, e.UserID)
	assert.Equal(t, int64(7), *e.UserID)
	require.NotNil(t, e.SiteID)
	assert.Equal(t, int64(2), *e.SiteID)
	require.NotNil(t, e.ResourceType)
	assert.Equal(t, "projects.task", *e.ResourceType)
	require.NotNil(t, e.ResourceID)
	assert.Equal(t, "12", *e.ResourceID)
	assert.Equal(t, http.StatusOK, e.Metadata["status_code"])
	assert.NotEmpty(t, e.Metadata["request_id"])
}

func TestAuditMiddleware_Create(t *testing.T) {
	rec := newRecordedAudit()
	r := newAuditRouter(rec, config.AuditConfig{Enabled: true}, alice)

	sendAudit(r, http.MethodPost, "/projects/task/new/")

	e := rec.next()
	require.NotNil(t, e)
	assert.Equal(t, "record.create", e.Action)
	assert.Nil(t, e.ResourceID)
}

func TestAuditMiddleware_Skips(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.AuditConfig
		actor  *models.User
		method string
		path   string
	}{
		{"disabled", config.AuditConfig{}, alice, http.MethodPost, "/projects/task/1/edit/"},
		{"anonymous", config.AuditConfig{Enabled: true}, nil, http.MethodPost, "/projects/task/1/edit/"},
		{"read", config.AuditConfig{Enabled: true}, alice, http.MethodGet, "/projects/task/"},
		{"failed", config.AuditConfig{Enabled: true}, alice, http.MethodPost, "/projects/task/1/fail/"},
		{"handler audited", config.AuditConfig{Enabled: true}, alice, http.MethodPost, "/projects/task/1/delete/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordedAudit()
			sendAudit(newAuditRouter(rec, tt.cfg, tt.actor), tt.method, tt.path)
			assert.Nil(t, rec.next())
		})
	}
}

func TestAuditMiddleware_ReadOperations(t *testing.T) {
	rec := newRecordedAudit()
	r := newAuditRouter(rec, config.AuditConfig{Enabled: true, LogReadOperations: true}, alice)

	sendAudit(r, http.MethodGet, "/projects/task/")

	e := rec.next()
	require.NotNil(t, e)
	assert.Equal(t, "record.view", e.Action)
}

func TestAuditMiddleware_NilRecorder(t *testing.T) {
	r := newAuditRouter(nil, config.AuditConfig{Enabled: true}, alice)
	sendAudit(r, http.MethodPost, "/projects/task/1/edit/")
}
