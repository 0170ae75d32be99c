package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/auth"
	"github.com/fiee/dorsale/internal/db/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeTokens accepts "good-<id>" tokens.
type fakeTokens map[string]int64

func (f fakeTokens) Validate(token string) (*auth.Claims, error) {
	if id, ok := f[token]; ok {
		return &auth.Claims{UserID: id}, nil
	}
	return nil, errors.New("invalid token")
}

type fakeUsers struct {
	users map[int64]*models.User
	err   error
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

type fakeSites struct {
	sites map[string]*models.Site
	err   error
	calls int
}

func (f *fakeSites) GetSiteByDomain(_ context.Context, domain string) (*models.Site, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sites[domain], nil
}

type fakeProfiles struct {
	profiles map[int64]*models.SiteProfile
	err      error
}

func (f *fakeProfiles) GetBySiteID(_ context.Context, id int64) (*models.SiteProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[id], nil
}

type recordedAudit struct {
	ch chan *models.AuditLog
}

func newRecordedAudit() *recordedAudit {
	return &recordedAudit{ch: make(chan *models.AuditLog, 10)}
}

func (r *recordedAudit) Record(_ context.Context, e *models.AuditLog) { r.ch <- e }

// next returns the next entry, or nil after a short wait.
func (r *recordedAudit) next() *models.AuditLog {
	select {
	case e := <-r.ch:
		return e
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}
