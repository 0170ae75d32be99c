package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/models"
)

// Context keys set by TenantMiddleware.
const (
	TenantIDKey    = "tenant_id"
	SiteKey        = "site"
	SiteProfileKey = "site_profile"
)

// SiteLookup resolves host names; *repositories.SiteRepository implements it.
type SiteLookup interface {
	GetSiteByDomain(ctx context.Context, domain string) (*models.Site, error)
}

// ProfileLookup loads site profiles; *repositories.SiteProfileRepository implements it.
type ProfileLookup interface {
	GetBySiteID(ctx context.Context, siteID int64) (*models.SiteProfile, error)
}

// TenantMiddleware maps the request host to a site. Hosts that match no site keep
// the configured default tenant, as do paths listed in cfg.SkipPaths. The site
// profile is optional: a missing one is logged and the request continues.
func TenantMiddleware(sites SiteLookup, profiles ProfileLookup, cfg config.TenancyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := cfg.DefaultSiteID
		if skipTenantLookup(c.Request.URL.Path, cfg.SkipPaths) {
			c.Set(TenantIDKey, tenantID)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		host := hostWithoutPort(c.Request.Host)
		site, err := sites.GetSiteByDomain(ctx, host)
		if err != nil {
			slog.Error("failed to resolve site", "host", host, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve site"})
			return
		}
		if site != nil {
			tenantID = site.ID
			c.Set(SiteKey, site)
		} else {
			slog.Debug("no site for host, keeping default tenant", "host", host, "tenant_id", tenantID)
		}
		c.Set(TenantIDKey, tenantID)

		if profiles != nil && tenantID > 0 {
			profile, err := profiles.GetBySiteID(ctx, tenantID)
			switch {
			case err != nil:
				slog.Warn("failed to load site profile", "tenant_id", tenantID, "error", err)
			case profile == nil:
				slog.Warn("site has no profile", "tenant_id", tenantID)
			default:
				c.Set(SiteProfileKey, profile)
			}
		}
		c.Next()
	}
}

func skipTenantLookup(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.ToLower(h)
	}
	return strings.ToLower(host)
}

// TenantID returns the tenant resolved for the request.
func TenantID(c *gin.Context) int64 {
	return c.GetInt64(TenantIDKey)
}

// SiteProfile returns the profile of the request's site, or nil.
func SiteProfile(c *gin.Context) *models.SiteProfile {
	v, ok := c.Get(SiteProfileKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.SiteProfile)
	return p
}
